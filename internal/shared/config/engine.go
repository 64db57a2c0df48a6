package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig contains all configuration for the engine process.
type EngineConfig struct {
	Workers WorkersConfig `mapstructure:"workers"`
	Job     JobConfig     `mapstructure:"job"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// WorkersConfig contains worker pool configuration.
type WorkersConfig struct {
	Count        int           `mapstructure:"count"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// JobConfig contains per-job defaults, overridable at submission.
type JobConfig struct {
	NumReducers int           `mapstructure:"num_reducers"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// LoadEngine loads the engine configuration from the given path.
// If configPath is empty, it looks for engine.yaml in the config/ directory.
// Environment variables with MRENGINE_ prefix override config file values.
func LoadEngine(configPath string) (*EngineConfig, error) {
	v := viper.New()

	v.SetDefault("workers.count", 4)
	v.SetDefault("workers.tick_interval", time.Second)
	v.SetDefault("job.num_reducers", 4)
	v.SetDefault("job.max_attempts", 3)
	v.SetDefault("job.task_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("engine")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("MRENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}
