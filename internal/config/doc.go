// Package config provides 12-factor configuration management for cordon.
//
// Configuration is loaded from environment variables with sensible defaults.
// Every value has a built-in default so a zero-environment process still
// starts with a usable setup.
//
// Configuration Sections:
//   - Sandbox: evaluation timeout, call stack depth, console capture, pool size
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Sandbox timeout: %s\n", cfg.Sandbox.Timeout)
//
// Environment Variables:
//   - SANDBOX_TIMEOUT, SANDBOX_MAX_CALL_STACK, SANDBOX_CONSOLE, SANDBOX_POOL_SIZE
//   - LOG_LEVEL, LOG_DEV
package config
