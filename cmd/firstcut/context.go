package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/maauso/firstcut/internal/bootstrap"
	"github.com/maauso/firstcut/internal/config"
)

type commandContext struct {
	configFlag    *string
	logLevelFlag  *string
	logFormatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, logFormatFlag *string) *commandContext {
	return &commandContext{
		configFlag:    configFlag,
		logLevelFlag:  logLevelFlag,
		logFormatFlag: logFormatFlag,
	}
}

// ensureConfig loads the environment once and overlays the preset and
// logging flags.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load()
		if err != nil {
			c.configErr = err
			return
		}
		if c.configFlag != nil {
			if path := strings.TrimSpace(*c.configFlag); path != "" {
				if err := cfg.ApplyPreset(path); err != nil {
					c.configErr = err
					return
				}
			}
		}
		if c.logLevelFlag != nil && *c.logLevelFlag != "" {
			cfg.LogLevel = *c.logLevelFlag
		}
		if c.logFormatFlag != nil && *c.logFormatFlag != "" {
			cfg.LogFormat = *c.logFormatFlag
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// dependencies applies the command's settings flags to a copy of the
// configuration, validates it and wires the application.
func (c *commandContext) dependencies(cmd *cobra.Command, flags *settingsFlags) (*bootstrap.Dependencies, *slog.Logger, error) {
	base, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg := *base
	if flags != nil {
		flags.apply(cmd, &cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	logger := cfg.NewLogger(cmd.ErrOrStderr())
	deps, err := bootstrap.NewDependencies(&cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize: %w", err)
	}
	return deps, logger, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
