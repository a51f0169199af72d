// Package config provides loading and environment overlay for the task
// store configuration. It exposes a Default() baseline, JSON file
// loading, and SCYLLA_* environment overrides.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/scylla.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
package config
