package audioio

import (
	"fmt"
	"log/slog"
)

// NewSource creates an audio source for cfg.Backend.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating audio source",
		"backend", cfg.Backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	switch cfg.Backend {
	case BackendTone, "":
		return NewToneSource(cfg, logger), nil
	case BackendPush:
		return NewPushSource(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
}

// AvailableBackends returns the list of supported backends.
func AvailableBackends() []Backend {
	return []Backend{BackendTone, BackendPush}
}
