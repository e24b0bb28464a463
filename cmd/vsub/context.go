package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"vsub/internal/config"
	"vsub/internal/ledger"
	"vsub/internal/logging"
	"vsub/internal/services"
)

// overrides are root flags that replace config values for one invocation.
type overrides struct {
	engine   string
	language string
	workers  int
	logLevel string
}

type commandContext struct {
	configFlag *string
	overrides  *overrides

	configOnce sync.Once
	config     *config.Config
	// configPath is the file the config was read from; empty when only
	// defaults applied.
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, ov *overrides) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		overrides:  ov,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", path, err)
			return
		}
		if err := c.applyOverrides(cfg); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config = cfg
		if exists {
			c.configPath = resolved
		}
	})
	return c.config, c.configErr
}

func (c *commandContext) applyOverrides(cfg *config.Config) error {
	ov := c.overrides
	if ov == nil {
		return nil
	}
	if v := strings.ToLower(strings.TrimSpace(ov.engine)); v != "" {
		cfg.Transcription.Engine = v
	}
	if v := strings.TrimSpace(ov.language); v != "" {
		cfg.Transcription.Language = v
	}
	if ov.workers != 0 {
		cfg.Transcription.Workers = ov.workers
	}
	if v := strings.TrimSpace(ov.logLevel); v != "" {
		cfg.Logging.Level = v
	}
	if err := cfg.Validate(); err != nil {
		return services.Wrap(services.ErrConfiguration, "config", "apply flags", "", err)
	}
	return nil
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// withLedger opens the run history for the duration of fn. A config without
// ledger_path passes a nil store, which every ledger method accepts.
func (c *commandContext) withLedger(fn func(*ledger.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := ledger.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
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
