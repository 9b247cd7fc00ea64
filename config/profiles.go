package config

import (
	"fmt"
	"time"
)

// profiles tune DefaultConfig for each deployment environment.
var profiles = map[string]func(*Config){
	"development": func(c *Config) {
		c.Environment = EnvDevelopment
		c.Logging.Level = "debug"
		c.Logging.Format = "text"
	},
	"testing": func(c *Config) {
		c.Environment = EnvTesting
		c.Storage.Adapter = "memory"
		c.Engine.Dispatch = "sync"
		c.Logging.Level = "warn"
		c.Realtime.Enabled = false
	},
	"staging": func(c *Config) {
		c.Environment = EnvStaging
		c.Storage.Adapter = "redis"
		c.Security.EnableRateLimit = true
		c.Metrics.Enabled = true
	},
	"production": func(c *Config) {
		c.Environment = EnvProduction
		c.Storage.Adapter = "sql"
		c.Server.CORSOrigin = ""
		c.Server.ShutdownTimeout = 60 * time.Second
		c.Security.EnableRateLimit = true
		c.Security.RateLimit.RequestsPerMinute = 120
		c.Security.RateLimit.BurstSize = 20
		c.Metrics.Enabled = true
	},
}

// Profiles lists the known profile names.
func Profiles() []string {
	return []string{"development", "testing", "staging", "production"}
}

// LoadProfile returns DefaultConfig tuned for the named environment. Environment
// variables are not applied; use Load for that.
func LoadProfile(name string) (*Config, error) {
	apply, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", name)
	}
	cfg := DefaultConfig()
	cfg.Profile = name
	apply(cfg)
	return cfg, nil
}
