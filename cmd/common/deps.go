// Package common provides shared utilities for command implementations.
package common

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/app"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/config"
	"github.com/entraeiendom/entraos-metasys-crawler-cli/internal/logger"
)

// Viper keys of the global flags.
const (
	KeyConfig   = "config"
	KeyDebug    = "debug"
	KeyLogLevel = "log-level"
)

// DefaultConfigPath is read when neither --config nor CONFIG_PATH is set.
const DefaultConfigPath = "config.yaml"

// CommandDeps holds common dependencies for all commands.
type CommandDeps struct {
	Logger logger.Logger
	Config *config.Config
	App    *app.App
}

// Validate ensures all required dependencies are present.
func (d CommandDeps) Validate() error {
	if d.Logger == nil {
		return ErrLoggerRequired
	}
	if d.Config == nil {
		return ErrConfigRequired
	}
	if d.App == nil {
		return ErrAppRequired
	}
	return nil
}

// Close releases connections and flushes the logger.
func (d CommandDeps) Close() {
	if d.App != nil {
		if err := d.App.Close(); err != nil {
			d.Logger.Warn("Failed to close connections", logger.Error(err))
		}
	}
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}
}

// NewCommandDeps loads the configuration and builds the logger and the App.
func NewCommandDeps() (CommandDeps, error) {
	path := viper.GetString(KeyConfig)
	if path == "" {
		path = DefaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("load config: %w", err)
	}

	if level := viper.GetString(KeyLogLevel); level != "" {
		cfg.Logging.Level = level
	}
	if viper.GetBool(KeyDebug) {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return CommandDeps{}, fmt.Errorf("create logger: %w", err)
	}

	deps := CommandDeps{
		Logger: log,
		Config: cfg,
		App:    app.New(cfg, log),
	}
	if validateErr := deps.Validate(); validateErr != nil {
		return CommandDeps{}, fmt.Errorf("validate deps: %w", validateErr)
	}
	return deps, nil
}
