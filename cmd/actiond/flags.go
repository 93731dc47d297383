package main

import (
	"flag"
	"os"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath  string
	LogLevel    string
	LogFormat   string
	ShowVersion bool
	Validate    bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("ACTIOND_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: ACTIOND_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("ACTIOND_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: ACTIOND_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("ACTIOND_LOG_FORMAT", "json"),
		"Log format: json, text (env: ACTIOND_LOG_FORMAT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	flag.Parse()
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
