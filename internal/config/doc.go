// Package config provides configuration management for the stopwatch service.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. YAML configuration file
//  3. Default values (lowest priority)
//
// Supported environment variables:
//   - STOPWATCH_TICK_INTERVAL: Tick interval in seconds, fractions allowed (0.001-3600)
//   - STOPWATCH_ANIMATED: Use the 0.08s animated interval when no tick interval is set
//   - STOPWATCH_AUTO_START: Start the stopwatch as soon as the service is up
//   - STOPWATCH_HTTP_PORT: HTTP server port (1-65535)
//   - STOPWATCH_LOG_LEVEL: Log level (debug, info, warn, error)
//
// Example configuration file (config.yaml):
//
//	tick_interval: 0.08
//	auto_start: false
//	http_port: 8080
//	log_level: "info"
//
// Example usage:
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//		log.Fatalf("Failed to load config: %v", err)
//	}
//
//	sw := stopwatch.New(cfg.Interval(), clock.RealClock{}, log)
package config
