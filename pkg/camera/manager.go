package camera

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrRowWidthFixed is returned for updates that change the row width. The
// line estimator is sized for the width the manager was created with.
var ErrRowWidthFixed = errors.New("camera: row_width cannot change at runtime")

// Manager holds the current camera configuration and handles updates.
type Manager struct {
	config   Config
	rowWidth int
	mu       sync.RWMutex

	// Callback when config changes (for applying to the capturer)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a manager holding cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{config: cfg, rowWidth: cfg.RowWidth}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates and stores cfg, then applies it.
func (m *Manager) SetConfig(cfg Config) error {
	if err := cfg.Err(); err != nil {
		return err
	}
	if cfg.RowWidth != m.rowWidth {
		return fmt.Errorf("%w: got %d, want %d", ErrRowWidthFixed, cfg.RowWidth, m.rowWidth)
	}

	m.mu.Lock()
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}
	return nil
}

// UpdateConfig updates specific fields of the configuration.
// A "preset" key is applied first, the other keys override it. Presets
// keep the current row width.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("unknown preset: %s", presetName)
		}
		cfg = *preset
		cfg.RowWidth = m.rowWidth
	}

	for key, value := range params {
		switch key {
		case "device":
			if v, ok := value.(string); ok {
				cfg.Device = v
			}
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "framerate":
			if v, ok := toInt(value); ok {
				cfg.Framerate = v
			}
		case "row":
			if v, ok := toInt(value); ok {
				cfg.Row = v
			}
		case "row_width":
			if v, ok := toInt(value); ok {
				cfg.RowWidth = v
			}
		case "format":
			if v, ok := value.(string); ok {
				cfg.Format = v
			}
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	data, _ := json.Marshal(m.GetConfig())
	var result map[string]interface{}
	_ = json.Unmarshal(data, &result)
	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
