package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/recera/hah/cmd/hah/internal/compiler"
	"github.com/recera/hah/cmd/hah/internal/config"
	"github.com/recera/hah/internal/cache"
)

var globalFlags struct {
	configPath string
	verbose    bool
}

// project is the configuration shared by every command.
type project struct {
	cfg    *config.Config
	logger *slog.Logger
	cache  *cache.Cache
}

func loadProject() (*project, error) {
	var cfg *config.Config
	var err error
	if globalFlags.configPath != "" {
		cfg, err = config.LoadFile(globalFlags.configPath)
	} else {
		cfg, err = config.Load(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level := slog.LevelWarn
	if globalFlags.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return &project{cfg: cfg, logger: logger}, nil
}

// compiler opens the build cache, if enabled, and returns a compiler
// using it. The caller closes the project when done.
func (p *project) compiler() *compiler.Compiler {
	if p.cfg.CacheEnabled() && p.cache == nil {
		c, err := cache.New(p.cfg.ToCache(p.logger))
		if err != nil {
			log.Printf("⚠️  Failed to initialize build cache: %v", err)
		} else {
			p.cache = c
		}
	}

	return compiler.New(compiler.Options{
		Config:    p.cfg.ToHah(p.logger),
		OutputExt: p.cfg.OutputExt,
		Cache:     p.cache,
		Logger:    p.logger,
	})
}

func (p *project) Close() {
	if p.cache != nil {
		if err := p.cache.Close(); err != nil {
			log.Printf("⚠️  Failed to save build cache: %v", err)
		}
	}
}
