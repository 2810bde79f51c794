package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default config", DefaultConfig(), false},
		{"disabled skips validation", Config{Enabled: false}, false},
		{"zero max size", Config{Enabled: true, MaxSize: 0, Expiry: time.Minute}, true},
		{"negative max size", Config{Enabled: true, MaxSize: -1, Expiry: time.Minute}, true},
		{"zero expiry", Config{Enabled: true, MaxSize: 10, Expiry: 0}, true},
		{"negative expiry", Config{Enabled: true, MaxSize: 10, Expiry: -time.Second}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := NewFromConfig[string](ctx, Config{Enabled: true, MaxSize: 10, Expiry: time.Minute})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer func() { _ = c.Close() }()

	if err := c.Put("key1", "value1"); err != nil {
		t.Fatalf("Unexpected error on put: %v", err)
	}
	if value, found, _ := c.Get("key1"); !found || value != "value1" {
		t.Errorf("Expected 'value1', got value %q, found %t", value, found)
	}
}

func TestNewFromConfigDisabled(t *testing.T) {
	ctx := context.Background()

	c, err := NewFromConfig[string](ctx, Config{Enabled: false})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := c.Put("key1", "value1"); err != nil {
		t.Fatalf("Unexpected error on noop put: %v", err)
	}
	if _, found, _ := c.Get("key1"); found {
		t.Error("Expected noop cache to always miss")
	}
	if c.Size() != 0 {
		t.Errorf("Expected noop size 0, got %d", c.Size())
	}
	if c.Stats() != nil {
		t.Error("Expected noop cache to have no stats")
	}
}

func TestNewFromConfigInvalid(t *testing.T) {
	ctx := context.Background()

	_, err := NewFromConfig[string](ctx, Config{Enabled: true, MaxSize: 0, Expiry: time.Minute})
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
}

func TestConfigUnmarshalDurationString(t *testing.T) {
	var config Config
	data := []byte(`{"enabled": true, "max_size": 500, "expiry": "5m"}`)

	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !config.Enabled || config.MaxSize != 500 {
		t.Errorf("Unexpected config: %+v", config)
	}
	if config.Expiry != 5*time.Minute {
		t.Errorf("Expected 5m expiry, got %v", config.Expiry)
	}
}

func TestConfigUnmarshalDurationNanoseconds(t *testing.T) {
	var config Config
	data := []byte(`{"enabled": true, "max_size": 500, "expiry": 60000000000}`)

	if err := json.Unmarshal(data, &config); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if config.Expiry != time.Minute {
		t.Errorf("Expected 1m expiry, got %v", config.Expiry)
	}
}

func TestConfigUnmarshalBadDuration(t *testing.T) {
	var config Config
	data := []byte(`{"enabled": true, "max_size": 500, "expiry": "sideways"}`)

	if err := json.Unmarshal(data, &config); err == nil {
		t.Fatal("Expected error for malformed duration")
	}
}
