package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barberbradleyt/Cache/cache"
)

func TestDefaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "freqcached", cfg.Service.Name)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 1000, cfg.Cache.MaxSize)
	assert.Equal(t, 5*time.Minute, cfg.Cache.Expiry)
	assert.Equal(t, 8080, cfg.Gateway.Port)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"service": {"name": "cache-test", "environment": "test"},
		"cache": {"enabled": true, "max_size": 50, "expiry": "90s"},
		"gateway": {"enabled": true, "port": 18080, "read_timeout": "5s"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	loader := NewLoader()
	loader.EnableValidation(true)
	cfg, err := loader.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "cache-test", cfg.Service.Name)
	assert.Equal(t, 50, cfg.Cache.MaxSize)
	assert.Equal(t, 90*time.Second, cfg.Cache.Expiry)
	assert.Equal(t, 18080, cfg.Gateway.Port)
	assert.Equal(t, 5*time.Second, cfg.Gateway.ReadTimeout)

	// Unset fields keep their defaults.
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLayeredMerge(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.json")
	override := filepath.Join(dir, "override.json")
	require.NoError(t, os.WriteFile(base, []byte(`{"cache": {"max_size": 100, "expiry": "1m"}}`), 0o600))
	require.NoError(t, os.WriteFile(override, []byte(`{"cache": {"max_size": 200}}`), 0o600))

	loader := NewLoader()
	loader.AddLayer(base)
	loader.AddLayer(override)
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 200, cfg.Cache.MaxSize)
	assert.Equal(t, time.Minute, cfg.Cache.Expiry)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FREQCACHED_SERVICE_NAME", "env-cache")
	t.Setenv("FREQCACHED_CACHE_MAX_SIZE", "42")
	t.Setenv("FREQCACHED_CACHE_EXPIRY", "2m")
	t.Setenv("FREQCACHED_LOG_LEVEL", "DEBUG")

	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-cache", cfg.Service.Name)
	assert.Equal(t, 42, cfg.Cache.MaxSize)
	assert.Equal(t, 2*time.Minute, cfg.Cache.Expiry)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrideInvalidInt(t *testing.T) {
	t.Setenv("FREQCACHED_CACHE_MAX_SIZE", "many")

	loader := NewLoader()
	_, err := loader.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		loader := NewLoader()
		cfg, err := loader.Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(*Config) {}, false},
		{"missing service name", func(c *Config) { c.Service.Name = "" }, true},
		{"bad service name", func(c *Config) { c.Service.Name = "no spaces" }, true},
		{"bad cache size", func(c *Config) { c.Cache.MaxSize = 0 }, true},
		{"bad gateway port", func(c *Config) { c.Gateway.Port = 99999 }, true},
		{"port collision", func(c *Config) { c.Metrics.Port = c.Gateway.Port }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, true},
		{"disabled gateway skips port check", func(c *Config) { c.Gateway.Enabled = false; c.Gateway.Port = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceNameNormalized(t *testing.T) {
	cfg := &Config{
		Service: ServiceConfig{Name: "FreqCached"},
		Cache:   cache.DefaultConfig(),
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "freqcached", cfg.Service.Name)
}

func TestSafeConfig(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)

	sc := NewSafeConfig(cfg)

	// Mutating the copy must not touch the stored config.
	copy1 := sc.Get()
	copy1.Cache.MaxSize = 1
	assert.Equal(t, 1000, sc.Get().Cache.MaxSize)

	// Update validates.
	bad := cfg.Clone()
	bad.Service.Name = ""
	assert.Error(t, sc.Update(bad))

	good := cfg.Clone()
	good.Cache.MaxSize = 7
	require.NoError(t, sc.Update(good))
	assert.Equal(t, 7, sc.Get().Cache.MaxSize)
}

func TestSaveToFileRoundTrip(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load()
	require.NoError(t, err)
	cfg.Cache.MaxSize = 123

	path := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, cfg.SaveToFile(path))

	reloaded, err := NewLoader().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 123, reloaded.Cache.MaxSize)
	assert.Equal(t, cfg.Cache.Expiry, reloaded.Cache.Expiry)
}

func TestInstanceName(t *testing.T) {
	cfg := &Config{Service: ServiceConfig{Name: "freqcached"}}
	assert.Equal(t, "freqcached", cfg.InstanceName())

	cfg.Service.InstanceID = "west-1"
	assert.Equal(t, "west-1", cfg.InstanceName())
}
