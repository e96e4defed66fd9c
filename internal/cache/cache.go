// Package cache stores generated output on disk, keyed by a hash of
// everything that determines it, so unchanged sources skip compilation.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

const indexVersion = "2"

// Cache maps keys to generated output files under one directory. The
// index of entries is kept in memory and mirrored to index.json.
type Cache struct {
	mu       sync.Mutex
	dir      string
	index    *index
	maxSize  int64
	maxAge   time.Duration
	policy   Policy
	stats    Stats
	logger   *slog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

type index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry describes one cached output.
type Entry struct {
	Key    string `json:"key"`
	Source string `json:"source"`
	Digest string `json:"digest"`
	File   string `json:"file"`
	Size   int64  `json:"size"`

	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"last_access"`
	Hits       int       `json:"hits"`

	// Dependencies are the sub-document paths the output refers to
	Dependencies []string `json:"dependencies,omitempty"`
}

// Stats counts cache activity since the cache was opened or cleared.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Bytes     int64 `json:"bytes"`
	Entries   int   `json:"entries"`
}

// Policy chooses which entry is evicted when the cache is full.
type Policy int

const (
	// LRU evicts the least recently read entry
	LRU Policy = iota
	// LFU evicts the least read entry
	LFU
	// FIFO evicts the oldest entry
	FIFO
)

var policyNames = map[Policy]string{LRU: "lru", LFU: "lfu", FIFO: "fifo"}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts a policy name as written in configuration.
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return LRU, fmt.Errorf("unknown eviction policy %q", name)
}

// Config holds cache settings.
type Config struct {
	Dir     string        // cache directory (default: user cache dir/hah)
	MaxSize int64         // bytes of output kept; 0 means unlimited
	MaxAge  time.Duration // entry lifetime; 0 means forever
	Policy  Policy
	Logger  *slog.Logger

	// SweepInterval is how often expired entries are removed in the
	// background. Defaults to an hour.
	SweepInterval time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		Dir:     filepath.Join(dir, "hah"),
		MaxSize: 256 << 20,
		MaxAge:  30 * 24 * time.Hour,
		Policy:  LRU,
	}
}

// New opens the cache in cfg.Dir, loading any index left by a previous run.
// A missing or unreadable index starts an empty cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Dir == "" {
		cfg.Dir = DefaultConfig().Dir
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}

	if err := os.MkdirAll(filepath.Join(cfg.Dir, "output"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:     cfg.Dir,
		index:   newIndex(),
		maxSize: cfg.MaxSize,
		maxAge:  cfg.MaxAge,
		policy:  cfg.Policy,
		logger:  cfg.Logger,
		stopCh:  make(chan struct{}),
	}

	if err := c.loadIndex(); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("discarding unreadable cache index", "dir", c.dir, "error", err)
		c.index = newIndex()
	}
	c.recount()

	go c.sweep(cfg.SweepInterval)

	return c, nil
}

func newIndex() *index {
	return &index{
		Version: indexVersion,
		Entries: make(map[string]*Entry),
		Updated: time.Now(),
	}
}

// Key derives a cache key from the source path, the source text and the
// fingerprint of the settings it is compiled with.
func Key(path, source, fingerprint string) string {
	h := sha256.New()
	for _, part := range []string{filepath.Clean(path), source, fingerprint} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the output stored under key. Expired entries and entries
// whose file has gone missing count as misses and are dropped.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	entry, ok := c.index.Entries[key]
	if ok && c.expired(entry) {
		c.removeLocked(key)
		ok = false
	}
	if !ok {
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}
	file := entry.File
	c.mu.Unlock()

	data, err := os.ReadFile(file)
	if err != nil {
		c.logger.Debug("cached output unreadable", "key", key, "error", err)
		c.mu.Lock()
		c.removeLocked(key)
		c.stats.Misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	entry.LastAccess = time.Now()
	entry.Hits++
	c.stats.Hits++
	c.mu.Unlock()

	return data, true
}

// Put stores output for source under key.
func (c *Cache) Put(key, source string, data []byte) error {
	return c.PutWithDeps(key, source, data, nil)
}

// PutWithDeps stores output along with the paths it depends on, so a
// change to any of them can invalidate it.
func (c *Cache) PutWithDeps(key, source string, data []byte, deps []string) error {
	digest := sha256.Sum256(data)
	hash := hex.EncodeToString(digest[:])

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index.Entries[key]; ok && existing.Digest == hash {
		existing.Dependencies = cleanPaths(deps)
		return c.saveIndexLocked()
	}

	size := int64(len(data))
	c.makeRoomLocked(size)

	file := filepath.Join(c.dir, "output", key[:min(len(key), 16)]+"_"+hash[:8])
	if err := atomic.WriteFile(file, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write cached output: %w", err)
	}

	if old, ok := c.index.Entries[key]; ok {
		c.removeLocked(old.Key)
	}

	now := time.Now()
	c.index.Entries[key] = &Entry{
		Key:          key,
		Source:       filepath.Clean(source),
		Digest:       hash,
		File:         file,
		Size:         size,
		Created:      now,
		LastAccess:   now,
		Dependencies: cleanPaths(deps),
	}
	c.stats.Bytes += size
	c.stats.Entries = len(c.index.Entries)

	return c.saveIndexLocked()
}

// Dependencies returns the dependency paths recorded for key.
func (c *Cache) Dependencies(key string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		return nil
	}
	return append([]string(nil), entry.Dependencies...)
}

// Dependents returns the source paths of every entry that depends on path.
func (c *Cache) Dependents(path string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sources []string
	seen := make(map[string]bool)
	for _, entry := range c.index.Entries {
		if dependsOn(entry, path) && !seen[entry.Source] {
			seen[entry.Source] = true
			sources = append(sources, entry.Source)
		}
	}
	return sources
}

// Delete removes the entry stored under key.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index.Entries[key]; !ok {
		return nil
	}
	c.removeLocked(key)
	return c.saveIndexLocked()
}

// InvalidateByDependency removes every entry compiled from path or
// depending on it, or on anything below it when path is a directory.
// It returns the number of entries removed.
func (c *Cache) InvalidateByDependency(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for key, entry := range c.index.Entries {
		if entry.Source == filepath.Clean(path) || dependsOn(entry, path) {
			c.removeLocked(key)
			count++
		}
	}

	if count > 0 {
		if err := c.saveIndexLocked(); err != nil {
			c.logger.Warn("failed to save cache index", "error", err)
		}
	}
	return count
}

// Clear removes every entry and resets the statistics.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := filepath.Join(c.dir, "output")
	if err := os.RemoveAll(out); err != nil {
		return fmt.Errorf("failed to clear cached output: %w", err)
	}
	if err := os.MkdirAll(out, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	c.index = newIndex()
	c.stats = Stats{}

	return c.saveIndexLocked()
}

// Stats returns a snapshot of the cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close stops the background sweep and saves the index.
func (c *Cache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveIndexLocked()
}

func dependsOn(entry *Entry, path string) bool {
	path = filepath.Clean(path)
	for _, dep := range entry.Dependencies {
		if dep == path || strings.HasPrefix(dep, path+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func cleanPaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Clean(p)
	}
	return out
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var idx index
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	if idx.Version != indexVersion {
		return fmt.Errorf("index version %q, want %q", idx.Version, indexVersion)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*Entry)
	}

	c.index = &idx
	return nil
}

func (c *Cache) recount() {
	c.stats.Bytes = 0
	for _, entry := range c.index.Entries {
		c.stats.Bytes += entry.Size
	}
	c.stats.Entries = len(c.index.Entries)
}

// saveIndexLocked writes the index; c.mu must be held.
func (c *Cache) saveIndexLocked() error {
	c.index.Updated = time.Now()

	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(c.dir, "index.json"), bytes.NewReader(data))
}

func (c *Cache) expired(entry *Entry) bool {
	return c.maxAge > 0 && time.Since(entry.Created) > c.maxAge
}

// removeLocked drops an entry and its file; c.mu must be held.
func (c *Cache) removeLocked(key string) {
	entry, ok := c.index.Entries[key]
	if !ok {
		return
	}
	if err := os.Remove(entry.File); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove cached output", "file", entry.File, "error", err)
	}
	delete(c.index.Entries, key)
	c.stats.Bytes -= entry.Size
	c.stats.Entries = len(c.index.Entries)
}

// makeRoomLocked evicts entries until needed more bytes fit.
func (c *Cache) makeRoomLocked(needed int64) {
	if c.maxSize <= 0 {
		return
	}

	for c.stats.Bytes+needed > c.maxSize && len(c.index.Entries) > 0 {
		victim := c.victimLocked()
		if victim == nil {
			return
		}
		c.logger.Debug("evicting cached output", "source", victim.Source, "policy", c.policy)
		c.removeLocked(victim.Key)
		c.stats.Evictions++
	}
}

func (c *Cache) victimLocked() *Entry {
	var victim *Entry
	for _, entry := range c.index.Entries {
		if victim == nil {
			victim = entry
			continue
		}
		switch c.policy {
		case LFU:
			if entry.Hits < victim.Hits {
				victim = entry
			}
		case FIFO:
			if entry.Created.Before(victim.Created) {
				victim = entry
			}
		default:
			if entry.LastAccess.Before(victim.LastAccess) {
				victim = entry
			}
		}
	}
	return victim
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			removed := 0
			for key, entry := range c.index.Entries {
				if c.expired(entry) {
					c.removeLocked(key)
					removed++
				}
			}
			if removed > 0 {
				if err := c.saveIndexLocked(); err != nil {
					c.logger.Warn("failed to save cache index", "error", err)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}
