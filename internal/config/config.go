// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// PlatformConfig holds connection settings for the ICA platform.
type PlatformConfig struct {
	BaseURL     string        // REST endpoint for the api transport
	APIKey      string        // from ICA_API_KEY, or ICA_API_KEY_FILE for mounted secrets
	Project     string        // project name or ID
	Transport   string        // "api" or "cli"
	CLIBinary   string        // vendor CLI binary for the cli transport
	HTTPTimeout time.Duration // per-request timeout for the api transport
}

// ServiceConfig holds settings for the embedded status server.
type ServiceConfig struct {
	StatusPort  string // "0" disables the status server
	MetricsPort string
}

// LoadPlatformConfig loads platform configuration from environment variables.
func LoadPlatformConfig() *PlatformConfig {
	apiKey := GetEnv("ICA_API_KEY", "")
	if apiKey == "" {
		apiKey = GetSecretFile(GetEnv("ICA_API_KEY_FILE", ""))
	}
	return &PlatformConfig{
		BaseURL:     GetEnv("ICA_BASE_URL", "https://ica.illumina.com/ica/rest"),
		APIKey:      apiKey,
		Project:     GetEnv("ICA_PROJECT", ""),
		Transport:   GetEnv("ICA_TRANSPORT", "api"),
		CLIBinary:   GetEnv("ICA_CLI", "ica"),
		HTTPTimeout: GetDurationEnv("ICA_HTTP_TIMEOUT", 60*time.Second),
	}
}

// LoadServiceConfig loads status server configuration from environment variables.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		StatusPort:  GetEnv("STATUS_PORT", "0"),
		MetricsPort: GetEnv("METRICS_PORT", "9090"),
	}
}
