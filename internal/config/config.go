// Package config loads localopt settings from a TOML file.
//
// EXAMPLE:
//
//	[optimizer]
//	passes = ["algebraic-strength", "multi-instruction", "dead-code"]
//	max_iterations = 1
//	verify = true
//
//	[log]
//	level = "info"
//
// Keys missing from the file keep their defaults. Unknown keys are errors.
package config

import (
	"bytes"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hassan/localopt/internal/optimizer"
)

// FileName is the configuration file looked up in the working directory
// when no path is given.
const FileName = "localopt.toml"

// Config holds all settings.
type Config struct {
	Optimizer OptimizerConfig `toml:"optimizer"`
	Log       LogConfig       `toml:"log"`
}

// OptimizerConfig selects the pipeline.
type OptimizerConfig struct {
	// Passes are run on every block in this order
	Passes []string `toml:"passes"`

	// MaxIterations bounds the number of pipeline runs; 1 is a single run
	MaxIterations int `toml:"max_iterations"`

	// Verify checks the IR before and after optimization
	Verify bool `toml:"verify"`
}

// LogConfig configures the logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Optimizer: OptimizerConfig{
			Passes:        append([]string(nil), optimizer.DefaultPassNames...),
			MaxIterations: 1,
			Verify:        true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Parse decodes TOML data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, errors.Errorf("unknown configuration keys:\n%s", strict.String())
		}
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks pass names, the iteration bound and the log level.
func (c *Config) Validate() error {
	if len(c.Optimizer.Passes) == 0 {
		return errors.New("optimizer.passes must name at least one pass")
	}
	for _, name := range c.Optimizer.Passes {
		if _, err := optimizer.NewPass(name); err != nil {
			return errors.Wrap(err, "optimizer.passes")
		}
	}
	if c.Optimizer.MaxIterations < 1 {
		return errors.Errorf("optimizer.max_iterations must be at least 1, got %d", c.Optimizer.MaxIterations)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return level, errors.Wrap(err, "log.level")
	}
	if level > zapcore.ErrorLevel {
		return level, errors.Errorf("log.level: %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return level, nil
}

// NewLogger builds the logger for Log.Level. The debug level gets the
// human-oriented development encoder.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := c.LogLevel()
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger, nil
}

// NewOptimizer builds an optimizer running the configured pipeline.
func (c *Config) NewOptimizer(logger *zap.Logger) (*optimizer.Optimizer, error) {
	opt, err := optimizer.NewOptimizerWithPasses(c.Optimizer.Passes)
	if err != nil {
		return nil, err
	}
	opt.SetMaxIterations(c.Optimizer.MaxIterations)
	opt.SetLogger(logger)
	return opt, nil
}
