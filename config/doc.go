// Package config loads and validates the daemon configuration.
//
// Configuration is assembled in three layers, later layers winning:
//
//  1. Built-in defaults (see Loader.getDefaults)
//  2. JSON file layers added with AddLayer, deep-merged field by field
//  3. FREQCACHED_* environment variable overrides
//
// Duration fields accept Go duration strings ("30s", "5m") in JSON as well
// as integer nanoseconds.
//
//	loader := config.NewLoader()
//	loader.AddLayer("/etc/freqcached/config.json")
//	loader.EnableValidation(true)
//	cfg, err := loader.Load()
//
// SafeConfig wraps a Config for concurrent readers with atomic validated
// updates.
package config
