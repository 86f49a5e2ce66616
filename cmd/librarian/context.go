package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"librarian/internal/config"
	"librarian/internal/logging"
	"librarian/internal/queue"
)

// commandContext carries the persistent flags and lazily loads the config
// and logger the first time a command asks.
type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	// configPath is the file the config was read from, set by ensureConfig.
	configPath string

	loadConfig func() (*config.Config, error)
	logger     func() *slog.Logger
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	c := &commandContext{configFlag: configFlag, jsonFlag: jsonFlag}
	c.loadConfig = sync.OnceValues(c.readConfig)
	c.logger = sync.OnceValue(c.buildLogger)
	return c
}

func (c *commandContext) readConfig() (*config.Config, error) {
	flag := ""
	if c.configFlag != nil {
		flag = strings.TrimSpace(*c.configFlag)
	}
	cfg, path, _, err := config.Load(flag)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	c.configPath = path
	return cfg, nil
}

// buildLogger falls back to a silent logger when the log file cannot be
// opened, so read-only commands keep working.
func (c *commandContext) buildLogger() *slog.Logger {
	cfg, err := c.loadConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	return c.loadConfig()
}

func (c *commandContext) loggerValue() *slog.Logger {
	return c.logger()
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// withStore opens the library database for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open library database: %w", err)
	}
	defer store.Close()
	return fn(cfg, store)
}

// shouldSkipConfig reports whether cmd or an ancestor opts out of config
// loading through the skipConfigLoad annotation.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
