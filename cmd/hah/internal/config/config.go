package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/recera/hah/internal/cache"
	"github.com/recera/hah/pkg/hah"
)

// FileName is the project configuration file looked up in the project root.
const FileName = "hah.yaml"

// Config represents the hah.yaml configuration
type Config struct {
	// Indent is the indentation unit of generated markup
	Indent string `yaml:"indent,omitempty"`

	// Newline is "crlf", "lf" or a literal separator
	Newline string `yaml:"newline,omitempty"`

	// NonSelfClosing is a regular expression of tag names that always get
	// an explicit closing tag
	NonSelfClosing string `yaml:"nonSelfClosing,omitempty"`

	// AssetsDir is where imports not found next to a document are looked up
	AssetsDir string `yaml:"assetsDir,omitempty"`

	// HelperPrefix qualifies helper calls in generated code
	HelperPrefix string `yaml:"helperPrefix,omitempty"`

	// DocumentClass is instantiated for sub-documents
	DocumentClass string `yaml:"documentClass,omitempty"`

	// Strict turns unrecognized lines into errors
	Strict bool `yaml:"strict,omitempty"`

	// Debug prints an annotated listing instead of writing output
	Debug bool `yaml:"debug,omitempty"`

	// OutputExt is the extension of generated files
	OutputExt string `yaml:"outputExt,omitempty"`

	// CacheDir holds compiled output between runs; "off" disables caching
	CacheDir string `yaml:"cacheDir,omitempty"`

	Cache *CacheConfig `yaml:"cache,omitempty"`

	// Development server configuration
	Dev *DevConfig `yaml:"dev,omitempty"`
}

// CacheConfig contains build cache limits
type CacheConfig struct {
	// MaxSize in megabytes
	MaxSize int `yaml:"maxSize,omitempty"`

	// MaxAge as a Go duration, e.g. "720h"
	MaxAge string `yaml:"maxAge,omitempty"`

	// Policy is lru, lfu or fifo
	Policy string `yaml:"policy,omitempty"`
}

// DevConfig contains development server configuration
type DevConfig struct {
	// Server port
	Port int `yaml:"port,omitempty"`

	// Server host
	Host string `yaml:"host,omitempty"`
}

// Load loads configuration from hah.yaml in projectPath
func Load(projectPath string) (*Config, error) {
	return LoadFile(filepath.Join(projectPath, FileName))
}

// LoadFile loads configuration from the given file. A missing file yields
// the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &config, nil
}

// Save writes configuration to hah.yaml in projectPath
func Save(config *Config, projectPath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(projectPath, FileName), bytes.NewReader(data))
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	defaults := hah.DefaultConfig()
	cacheDefaults := cache.DefaultConfig()

	return &Config{
		Indent:         defaults.Indent,
		Newline:        "crlf",
		NonSelfClosing: hah.DefaultNonSelfClosing,
		HelperPrefix:   defaults.HelperPrefix,
		DocumentClass:  defaults.DocumentClass,
		OutputExt:      ".php",
		CacheDir:       cacheDefaults.Dir,
		Cache: &CacheConfig{
			MaxSize: int(cacheDefaults.MaxSize >> 20),
			MaxAge:  cacheDefaults.MaxAge.String(),
			Policy:  cacheDefaults.Policy.String(),
		},
		Dev: &DevConfig{
			Port: 8080,
			Host: "localhost",
		},
	}
}

// applyDefaults applies default values to missing configuration
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Indent == "" {
		config.Indent = defaults.Indent
	}
	if config.Newline == "" {
		config.Newline = defaults.Newline
	}
	if config.NonSelfClosing == "" {
		config.NonSelfClosing = defaults.NonSelfClosing
	}
	if config.HelperPrefix == "" {
		config.HelperPrefix = defaults.HelperPrefix
	}
	if config.DocumentClass == "" {
		config.DocumentClass = defaults.DocumentClass
	}
	if config.OutputExt == "" {
		config.OutputExt = defaults.OutputExt
	}
	if config.CacheDir == "" {
		config.CacheDir = defaults.CacheDir
	}

	if config.Cache == nil {
		config.Cache = defaults.Cache
	} else {
		if config.Cache.MaxSize == 0 {
			config.Cache.MaxSize = defaults.Cache.MaxSize
		}
		if config.Cache.MaxAge == "" {
			config.Cache.MaxAge = defaults.Cache.MaxAge
		}
		if config.Cache.Policy == "" {
			config.Cache.Policy = defaults.Cache.Policy
		}
	}

	if config.Dev == nil {
		config.Dev = defaults.Dev
	} else {
		if config.Dev.Port == 0 {
			config.Dev.Port = defaults.Dev.Port
		}
		if config.Dev.Host == "" {
			config.Dev.Host = defaults.Dev.Host
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if _, err := regexp.Compile(c.NonSelfClosing); err != nil {
		return fmt.Errorf("invalid nonSelfClosing pattern: %w", err)
	}
	if c.newline() == "" {
		return errors.New("newline must not be empty")
	}
	if c.Cache != nil {
		if _, err := time.ParseDuration(c.Cache.MaxAge); err != nil {
			return fmt.Errorf("invalid cache.maxAge: %w", err)
		}
		if _, err := cache.ParsePolicy(c.Cache.Policy); err != nil {
			return fmt.Errorf("invalid cache.policy: %w", err)
		}
	}
	if c.Dev != nil && (c.Dev.Port < 0 || c.Dev.Port > 65535) {
		return fmt.Errorf("invalid dev.port %d", c.Dev.Port)
	}
	return nil
}

func (c *Config) newline() string {
	switch c.Newline {
	case "crlf":
		return "\r\n"
	case "lf":
		return "\n"
	default:
		return c.Newline
	}
}

// ToHah converts the project settings to compiler settings. The config
// must have passed Validate.
func (c *Config) ToHah(logger *slog.Logger) hah.Config {
	return hah.Config{
		Indent:         c.Indent,
		Newline:        c.newline(),
		NonSelfClosing: regexp.MustCompile(c.NonSelfClosing),
		AssetsDir:      c.AssetsDir,
		HelperPrefix:   c.HelperPrefix,
		DocumentClass:  c.DocumentClass,
		Strict:         c.Strict,
		Logger:         logger,
		Loader:         hah.DirLoader{},
	}
}

// CacheEnabled reports whether compiled output should be cached.
func (c *Config) CacheEnabled() bool {
	return c.CacheDir != "off"
}

// ToCache converts the cache settings. The config must have passed Validate.
func (c *Config) ToCache(logger *slog.Logger) cache.Config {
	maxAge, _ := time.ParseDuration(c.Cache.MaxAge)
	policy, _ := cache.ParsePolicy(c.Cache.Policy)

	return cache.Config{
		Dir:     c.CacheDir,
		MaxSize: int64(c.Cache.MaxSize) << 20,
		MaxAge:  maxAge,
		Policy:  policy,
		Logger:  logger,
	}
}

// Addr returns the development server's listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Dev.Host, c.Dev.Port)
}
