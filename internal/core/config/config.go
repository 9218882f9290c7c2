// Package config provides configuration management for the alkatest tools.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/solatis/alkatest/internal/types"
)

// Pack sources.
const (
	SourceDir = "dir"
	SourceDB  = "db"
)

// ContentConfig says where content packs are read from.
type ContentConfig struct {
	Dir    string
	Packs  []string
	Source string
}

// DatabaseConfig holds the pack store connection.
type DatabaseConfig struct {
	URL string
}

// EngineConfig holds the resolver limits.
type EngineConfig struct {
	MaxCallDepth        int
	MaxRepeatIterations int
}

// RuntimeConfig holds configuration for the serve command's runtime host.
type RuntimeConfig struct {
	Host         string
	Port         int
	TickInterval time.Duration
	Watch        bool
}

// Config is the full tool configuration.
type Config struct {
	Content  ContentConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Runtime  RuntimeConfig
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Content: ContentConfig{
			Dir:    "./content",
			Source: SourceDir,
		},
		Engine: EngineConfig{
			MaxCallDepth:        types.MaxCallDepth,
			MaxRepeatIterations: types.MaxRepeatIterations,
		},
		Runtime: RuntimeConfig{
			Host:         "0.0.0.0",
			Port:         50051,
			TickInterval: time.Second,
			Watch:        true,
		},
	}
}

// Addr returns the runtime listen address.
func (c RuntimeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// splitList flattens comma-separated entries, as produced by environment
// variables, into one ordered list.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// hasPassword reports whether a database URL embeds a password.
func hasPassword(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return false
	}
	_, set := u.User.Password()
	return set
}
