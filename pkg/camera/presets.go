package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetNear    = "near"
	PresetFar     = "far"
	PresetQVGA    = "qvga"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault: DefaultConfig(),
		PresetNear:    NearConfig(),
		PresetFar:     FarConfig(),
		PresetQVGA:    QVGAConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{PresetDefault, PresetNear, PresetFar, PresetQVGA}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// NearConfig samples close to the bottom of the frame.
// Tighter line following, less anticipation of curves.
func NearConfig() Config {
	cfg := DefaultConfig()
	cfg.Row = 400
	return cfg
}

// FarConfig samples near the horizon.
func FarConfig() Config {
	cfg := DefaultConfig()
	cfg.Row = 80
	return cfg
}

// QVGAConfig captures at 320x240 and upscales the row.
// Useful on USB cameras that drop frames at VGA.
func QVGAConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 320
	cfg.Height = 240
	cfg.Row = 100
	return cfg
}
