package cmd

import (
	"fmt"

	"icabatch/internal/apperrors"
	"icabatch/internal/config"
	"icabatch/internal/notify"
	"icabatch/internal/platform"
	"icabatch/internal/platform/api"
	"icabatch/internal/platform/cli"
)

// platformBackend is the full surface both transports provide.
type platformBackend interface {
	platform.Client
	platform.DataManager
	platform.UsageReporter
}

// platformConfig loads the environment configuration with any root flag
// overrides applied.
func platformConfig() *config.PlatformConfig {
	cfg := config.LoadPlatformConfig()
	if rootFlags.project != "" {
		cfg.Project = rootFlags.project
	}
	if rootFlags.transport != "" {
		cfg.Transport = rootFlags.transport
	}
	return cfg
}

// newBackend builds the configured platform transport.
func newBackend(cfg *config.PlatformConfig) (platformBackend, error) {
	if cfg.Project == "" {
		return nil, apperrors.Validation("project", "ICA_PROJECT is required")
	}

	switch cfg.Transport {
	case "api":
		if cfg.APIKey == "" {
			return nil, apperrors.Validation("api_key", "ICA_API_KEY (or ICA_API_KEY_FILE) is required for the api transport")
		}
		return api.New(cfg), nil
	case "cli":
		return cli.New(cfg), nil
	default:
		return nil, apperrors.Validation("transport", fmt.Sprintf("unknown transport %q, expected api or cli", cfg.Transport))
	}
}

// buildNotifier assembles the notifier from an optional destinations file.
// It returns the dispatcher for draining on shutdown, nil when notifications
// are disabled.
func buildNotifier(configPath string, metrics notify.MetricsRecorder) (notify.Notifier, *notify.Dispatcher, error) {
	if configPath == "" {
		return nil, nil, nil
	}
	cfg, err := notify.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	targets := cfg.Targets()
	if len(targets) == 0 {
		return nil, nil, nil
	}
	d := notify.NewDispatcher(notify.LoadDispatcherConfig(), targets, metrics)
	return d, d, nil
}
