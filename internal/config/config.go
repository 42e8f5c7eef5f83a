// Package config holds the renderer's configuration and builds its logger.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds configuration options for the render pipeline and its
// stores.
type Config struct {
	// TemplatesDir is the directory the template store reads .html files
	// from. Empty means no directory-backed template store.
	TemplatesDir string `yaml:"templates"`

	// ThemesDir is the directory the theme store reads .css files from.
	ThemesDir string `yaml:"themes"`

	// DefaultTemplate is the fallback key when a requested template is
	// absent.
	DefaultTemplate string `yaml:"default_template"`

	// DefaultTheme is the fallback key when a requested theme is absent.
	DefaultTheme string `yaml:"default_theme"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig selects console log verbosity.
type LoggingConfig struct {
	// Level is one of none, normal, debug.
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DefaultTemplate: "default",
		DefaultTheme:    "default",
		Logging:         LoggingConfig{Level: "normal"},
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Logging.Level {
	case "", "none", "normal", "debug":
		return nil
	}
	return fmt.Errorf("invalid logging level %q (valid: none, normal, debug)", c.Logging.Level)
}

// Prepare builds the console logger: info and below to stdout, errors to
// stderr, level per configuration.
func (lc LoggingConfig) Prepare() (*zap.Logger, error) {
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeCaller = nil
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(ec)

	var low zapcore.LevelEnabler
	switch lc.Level {
	case "debug":
		low = zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return zapcore.DebugLevel <= lvl && lvl < zapcore.ErrorLevel
		})
	case "", "normal":
		low = zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return zapcore.InfoLevel <= lvl && lvl < zapcore.ErrorLevel
		})
	case "none":
		return zap.NewNop(), nil
	default:
		return nil, fmt.Errorf("invalid logging level %q", lc.Level)
	}

	high := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), low),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), high),
	)
	return zap.New(core), nil
}
