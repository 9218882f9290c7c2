package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()

	// Set defaults matching DefaultConfig
	v.SetDefault("content.dir", def.Content.Dir)
	v.SetDefault("content.packs", []string{})
	v.SetDefault("content.source", def.Content.Source)
	v.SetDefault("database.url", "")
	v.SetDefault("engine.max_call_depth", def.Engine.MaxCallDepth)
	v.SetDefault("engine.max_repeat_iterations", def.Engine.MaxRepeatIterations)
	v.SetDefault("runtime.host", def.Runtime.Host)
	v.SetDefault("runtime.port", def.Runtime.Port)
	v.SetDefault("runtime.tick_interval", def.Runtime.TickInterval.String())
	v.SetDefault("runtime.watch", def.Runtime.Watch)

	// Bind environment variables with ALK_ prefix
	v.SetEnvPrefix("ALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Credentials are environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Content: ContentConfig{
			Dir:    v.GetString("content.dir"),
			Packs:  splitList(v.GetStringSlice("content.packs")),
			Source: v.GetString("content.source"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
		Engine: EngineConfig{
			MaxCallDepth:        v.GetInt("engine.max_call_depth"),
			MaxRepeatIterations: v.GetInt("engine.max_repeat_iterations"),
		},
		Runtime: RuntimeConfig{
			Host:         v.GetString("runtime.host"),
			Port:         v.GetInt("runtime.port"),
			TickInterval: v.GetDuration("runtime.tick_interval"),
			Watch:        v.GetBool("runtime.watch"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks the pack source, port range and positive limits.
func validateConfig(cfg *Config) error {
	switch cfg.Content.Source {
	case SourceDir:
		if cfg.Content.Dir == "" {
			return fmt.Errorf("content.dir required when content.source is %q", SourceDir)
		}
	case SourceDB:
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url required when content.source is %q", SourceDB)
		}
	default:
		return fmt.Errorf("content.source must be %q or %q, got %q", SourceDir, SourceDB, cfg.Content.Source)
	}
	if cfg.Runtime.Port <= 0 || cfg.Runtime.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Runtime.Port)
	}
	if cfg.Runtime.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", cfg.Runtime.TickInterval)
	}
	if cfg.Engine.MaxCallDepth <= 0 {
		return fmt.Errorf("max_call_depth must be positive, got %d", cfg.Engine.MaxCallDepth)
	}
	if cfg.Engine.MaxRepeatIterations <= 0 {
		return fmt.Errorf("max_repeat_iterations must be positive, got %d", cfg.Engine.MaxRepeatIterations)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only database credentials.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("database.url") && hasPassword(v.GetString("database.url")) {
		return fmt.Errorf("database passwords not allowed in config files (use ALK_DATABASE_URL environment variable)")
	}
	return nil
}
