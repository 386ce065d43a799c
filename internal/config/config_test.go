package config

import "testing"

// TestGetDefaults tests that the default configuration is valid
func TestGetDefaults(t *testing.T) {
	cfg := GetDefaults()

	if err := validateConfig(cfg); err != nil {
		t.Fatalf("Default configuration is invalid: %v", err)
	}

	if cfg.Server.Port != 8236 {
		t.Errorf("Default port = %d", cfg.Server.Port)
	}
	if cfg.Annotate.MaxDepth != 128 {
		t.Errorf("Default max depth = %d", cfg.Annotate.MaxDepth)
	}
	if cfg.Cache.Enabled || cfg.Store.Enabled {
		t.Error("Cache and store should be disabled by default")
	}
}

// TestValidateConfig tests validation of bad configurations
func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"PortZero", func(c *Config) { c.Server.Port = 0 }},
		{"PortTooLarge", func(c *Config) { c.Server.Port = 70000 }},
		{"MaxDepthZero", func(c *Config) { c.Annotate.MaxDepth = 0 }},
		{"MaxBodyBytesZero", func(c *Config) { c.Annotate.MaxBodyBytes = 0 }},
		{"RateLimitZero", func(c *Config) { c.RateLimit.RequestsPerMin = 0 }},
		{"CacheWithoutURL", func(c *Config) { c.Cache.Enabled = true; c.Cache.RedisURL = "" }},
		{"StoreWithoutURL", func(c *Config) { c.Store.Enabled = true; c.Store.DatabaseURL = "" }},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "verbose" }},
		{"BadLogFormat", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := GetDefaults()
			tc.mutate(cfg)
			if err := validateConfig(cfg); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
