package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/barberbradleyt/Cache/cache"
)

// Config represents the complete daemon configuration.
type Config struct {
	Version string        `json:"version"` // Semantic version (e.g., "1.0.0")
	Service ServiceConfig `json:"service"`
	Cache   cache.Config  `json:"cache"`
	Gateway GatewayConfig `json:"gateway"`
	Metrics MetricsConfig `json:"metrics"`
	Logging LoggingConfig `json:"logging"`
}

// ServiceConfig defines service identity.
type ServiceConfig struct {
	Name        string `json:"name"`
	InstanceID  string `json:"instance_id,omitempty"` // e.g., "west-1", "dev-local"
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// GatewayConfig defines the HTTP gateway settings.
type GatewayConfig struct {
	Enabled         bool          `json:"enabled"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout,omitempty"`
	WriteTimeout    time.Duration `json:"write_timeout,omitempty"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout,omitempty"`
	MaxBodyBytes    int64         `json:"max_body_bytes,omitempty"`
}

// MetricsConfig defines the Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path,omitempty"`
}

// LoggingConfig defines structured logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // "debug", "info", "warn", "error"
	Format string `json:"format"` // "json" or "text"
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = &Config{}
	}
	return &SafeConfig{
		config: cfg,
	}
}

// Get returns a deep copy of the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update atomically updates the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	// Validate before updating
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	// Use JSON marshaling/unmarshaling for deep copy
	data, err := json.Marshal(c)
	if err != nil {
		// Fallback to shallow copy if marshaling fails
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errors.New("service.name is required")
	}

	// Normalize name to lowercase
	c.Service.Name = strings.ToLower(c.Service.Name)

	if !isValidServiceName(c.Service.Name) {
		return fmt.Errorf(
			"service.name '%s' is not valid (must be alphanumeric with dots, dashes, underscores)",
			c.Service.Name,
		)
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache configuration: %w", err)
	}

	if c.Gateway.Enabled {
		if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
			return fmt.Errorf("gateway.port must be in 1..65535, got %d", c.Gateway.Port)
		}
		if c.Gateway.MaxBodyBytes < 0 {
			return fmt.Errorf("gateway.max_body_bytes cannot be negative, got %d", c.Gateway.MaxBodyBytes)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be in 1..65535, got %d", c.Metrics.Port)
		}
		if c.Gateway.Enabled && c.Metrics.Port == c.Gateway.Port {
			return fmt.Errorf("metrics.port %d collides with gateway.port", c.Metrics.Port)
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of json, text", c.Logging.Format)
	}

	return nil
}

// isValidServiceName checks if a string is valid as a service identifier.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidServiceName(s string) bool {
	if len(s) == 0 {
		return false
	}

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  "FREQCACHED",
	}
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := l.getDefaults()

	// Load each layer and merge using map-based approach
	for _, path := range l.layers {
		rawConfig, err := l.loadRawJSON(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		cfg = l.mergeFromMap(cfg, rawConfig)
	}

	// Apply environment overrides
	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	// Validate if enabled
	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// getDefaults returns default configuration
func (l *Loader) getDefaults() *Config {
	return &Config{
		Version: "1.0.0",
		Service: ServiceConfig{
			Name:        "freqcached",
			Environment: "dev",
		},
		Cache: cache.DefaultConfig(),
		Gateway: GatewayConfig{
			Enabled:         true,
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadRawJSON loads configuration from a JSON file as a map
func (l *Loader) loadRawJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return nil, err
	}

	// Convert duration strings
	l.parseDurations(rawConfig)

	return rawConfig, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) *Config {
	if override == nil {
		return base
	}

	// Marshal the base config to JSON then to map
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base
	}

	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return base
	}

	// Deep merge the maps
	mergedMap := l.deepMergeMaps(baseMap, override)

	// Convert back to Config
	mergedJSON, err := json.Marshal(mergedMap)
	if err != nil {
		return base
	}

	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return base
	}

	return &merged
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func (l *Loader) deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any)

	// Copy base values
	for k, v := range base {
		result[k] = v
	}

	// Override with values from override map
	for k, v := range override {
		if v == nil {
			continue
		}

		// If both base and override have maps at this key, merge them
		if baseMap, baseOk := base[k].(map[string]any); baseOk {
			if overrideMap, overrideOk := v.(map[string]any); overrideOk {
				result[k] = l.deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}

		// Otherwise, override takes precedence
		result[k] = v
	}

	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func (l *Loader) parseDurations(data map[string]any) {
	if gateway, ok := data["gateway"].(map[string]any); ok {
		for _, field := range []string{"read_timeout", "write_timeout", "shutdown_timeout"} {
			if raw, ok := gateway[field].(string); ok {
				if d, err := time.ParseDuration(raw); err == nil {
					gateway[field] = d.Nanoseconds()
				}
			}
		}
	}
	// cache.expiry is left alone; cache.Config unmarshals duration strings
	// itself.
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	if val := os.Getenv(l.envPrefix + "_SERVICE_NAME"); val != "" {
		cfg.Service.Name = val
	}
	if val := os.Getenv(l.envPrefix + "_INSTANCE_ID"); val != "" {
		cfg.Service.InstanceID = val
	}
	if val := os.Getenv(l.envPrefix + "_ENVIRONMENT"); val != "" {
		cfg.Service.Environment = val
	}

	if val := os.Getenv(l.envPrefix + "_CACHE_MAX_SIZE"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_CACHE_MAX_SIZE: %w", l.envPrefix, err)
		}
		cfg.Cache.MaxSize = n
	}
	if val := os.Getenv(l.envPrefix + "_CACHE_EXPIRY"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("%s_CACHE_EXPIRY: %w", l.envPrefix, err)
		}
		cfg.Cache.Expiry = d
	}

	if val := os.Getenv(l.envPrefix + "_GATEWAY_PORT"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_GATEWAY_PORT: %w", l.envPrefix, err)
		}
		cfg.Gateway.Port = n
	}
	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("%s_METRICS_PORT: %w", l.envPrefix, err)
		}
		cfg.Metrics.Port = n
	}

	if val := os.Getenv(l.envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = strings.ToLower(val)
	}
	if val := os.Getenv(l.envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = strings.ToLower(val)
	}

	return nil
}

// SaveToFile saves the configuration to a JSON file
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// InstanceName returns the identifier used for logs and metrics labels
// (prefer instance_id over service name).
func (c *Config) InstanceName() string {
	if c.Service.InstanceID != "" {
		return c.Service.InstanceID
	}
	return c.Service.Name
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// UnmarshalJSON implements custom JSON unmarshaling for Config so the
// gateway timeouts accept duration strings as well as nanosecond integers.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config
	aux := &struct {
		Gateway struct {
			Enabled         bool  `json:"enabled"`
			Port            int   `json:"port"`
			ReadTimeout     any   `json:"read_timeout,omitempty"`
			WriteTimeout    any   `json:"write_timeout,omitempty"`
			ShutdownTimeout any   `json:"shutdown_timeout,omitempty"`
			MaxBodyBytes    int64 `json:"max_body_bytes,omitempty"`
		} `json:"gateway"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Gateway.Enabled = aux.Gateway.Enabled
	c.Gateway.Port = aux.Gateway.Port
	c.Gateway.MaxBodyBytes = aux.Gateway.MaxBodyBytes

	parse := func(v any, dst *time.Duration) error {
		switch t := v.(type) {
		case nil:
		case string:
			d, err := time.ParseDuration(t)
			if err != nil {
				return err
			}
			*dst = d
		case float64:
			*dst = time.Duration(t)
		}
		return nil
	}

	if err := parse(aux.Gateway.ReadTimeout, &c.Gateway.ReadTimeout); err != nil {
		return err
	}
	if err := parse(aux.Gateway.WriteTimeout, &c.Gateway.WriteTimeout); err != nil {
		return err
	}
	return parse(aux.Gateway.ShutdownTimeout, &c.Gateway.ShutdownTimeout)
}
