package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/line"
)

func TestExtractRGB565(t *testing.T) {
	b0, b1 := EncodeRGB565(0xF8, 0xFC, 0xF8)
	if b0 != 0xFF || b1 != 0xFF {
		t.Fatalf("white = %#x %#x, want 0xff 0xff", b0, b1)
	}

	tests := []struct {
		name    string
		r, g, b uint8
		want    [3]uint8 // red, green, blue
	}{
		{"red", 0xF8, 0, 0, [3]uint8{0xF8, 0, 0}},
		{"green", 0, 0xFC, 0, [3]uint8{0, 0xFC, 0}},
		{"blue", 0, 0, 0xF8, [3]uint8{0, 0, 0xF8}},
		{"grey", 0x80, 0x80, 0x80, [3]uint8{0x80, 0x80, 0x80}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b0, b1 := EncodeRGB565(tt.r, tt.g, tt.b)
			raw := []byte{b0, b1, b0, b1}
			for i, ch := range []line.Channel{line.Red, line.Green, line.Blue} {
				got, err := ExtractRGB565(raw, 2, ch)
				if err != nil {
					t.Fatalf("ExtractRGB565: %v", err)
				}
				if got[0] != tt.want[i] || got[1] != tt.want[i] {
					t.Errorf("%v = %v, want %#x", ch, got, tt.want[i])
				}
			}
		})
	}
}

func TestExtractRGB565_Short(t *testing.T) {
	_, err := ExtractRGB565(make([]byte, 5), 3, line.Red)
	if !errors.Is(err, ErrShortBuffer) {
		t.Errorf("err = %v, want ErrShortBuffer", err)
	}
}

func TestExtractBGR(t *testing.T) {
	// 2x2 image, second row pixels are (b,g,r) = (1,2,3) and (4,5,6)
	data := []byte{
		9, 9, 9, 9, 9, 9,
		1, 2, 3, 4, 5, 6,
	}
	tests := []struct {
		ch   line.Channel
		want []uint8
	}{
		{line.Blue, []uint8{1, 4}},
		{line.Green, []uint8{2, 5}},
		{line.Red, []uint8{3, 6}},
	}
	for _, tt := range tests {
		got, err := ExtractBGR(data, 2, 1, tt.ch)
		if err != nil {
			t.Fatalf("ExtractBGR: %v", err)
		}
		if got[0] != tt.want[0] || got[1] != tt.want[1] {
			t.Errorf("%v = %v, want %v", tt.ch, got, tt.want)
		}
	}

	if _, err := ExtractBGR(data, 2, 2, line.Red); !errors.Is(err, ErrShortBuffer) {
		t.Errorf("row out of range err = %v", err)
	}
}

type flatScene struct{ calls int }

func (f *flatScene) Row(ch line.Channel) []uint8 {
	f.calls++
	return []uint8{uint8(ch)}
}

func TestSimCapturer(t *testing.T) {
	scene := &flatScene{}
	c := NewSimCapturer(scene, 5*time.Millisecond)

	row, err := c.Capture(context.Background(), line.Blue)
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(row) != 1 || row[0] != uint8(line.Blue) {
		t.Errorf("row = %v", row)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Capture(ctx, line.Red); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled capture err = %v", err)
	}
	if scene.calls != 1 {
		t.Errorf("scene rendered %d times, want 1", scene.calls)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config invalid: %v", errs)
	}

	cfg.Row = cfg.Height
	cfg.Format = "yuv"
	if errs := cfg.Validate(); len(errs) != 2 {
		t.Errorf("errors = %v, want 2", errs)
	}
	if cfg.Err() == nil {
		t.Error("Err() = nil for invalid config")
	}
}

func TestPresetsValid(t *testing.T) {
	for _, name := range PresetNames() {
		p := GetPreset(name)
		if p == nil {
			t.Fatalf("preset %q missing", name)
		}
		if errs := p.Validate(); len(errs) != 0 {
			t.Errorf("preset %q invalid: %v", name, errs)
		}
	}
	if GetPreset("nope") != nil {
		t.Error("unknown preset returned a config")
	}
}

func TestManager_UpdateConfig(t *testing.T) {
	m := NewManager(DefaultConfig())

	var applied []Config
	m.OnConfigChange = func(cfg Config) error {
		applied = append(applied, cfg)
		return nil
	}

	if err := m.UpdateConfig(map[string]interface{}{"preset": PresetQVGA, "row": float64(120)}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	cfg := m.GetConfig()
	if cfg.Width != 320 || cfg.Row != 120 {
		t.Errorf("config = %+v, want qvga with row 120", cfg)
	}
	if len(applied) != 1 {
		t.Errorf("callback ran %d times, want 1", len(applied))
	}

	if err := m.UpdateConfig(map[string]interface{}{"row": 999}); err == nil {
		t.Error("expected validation error")
	}
	if m.GetConfig().Row != 120 {
		t.Error("invalid update was stored")
	}

	if err := m.UpdateConfig(map[string]interface{}{"preset": "nope"}); err == nil {
		t.Error("expected unknown preset error")
	}

	m.OnConfigChange = func(Config) error { return errors.New("device busy") }
	if err := m.SetConfig(DefaultConfig()); err == nil {
		t.Error("expected apply error")
	}

	if got := m.GetConfigJSON()["row"]; got != float64(200) {
		t.Errorf("json row = %v", got)
	}
}

func TestManager_RowWidthFixed(t *testing.T) {
	base := DefaultConfig()
	base.RowWidth = 320
	m := NewManager(base)

	err := m.UpdateConfig(map[string]interface{}{"row_width": float64(640)})
	if !errors.Is(err, ErrRowWidthFixed) {
		t.Fatalf("err = %v, want ErrRowWidthFixed", err)
	}
	if m.GetConfig().RowWidth != 320 {
		t.Errorf("row width = %d, want 320 kept", m.GetConfig().RowWidth)
	}

	// presets carry their own width but keep the running one
	if err := m.UpdateConfig(map[string]interface{}{"preset": PresetFar}); err != nil {
		t.Fatalf("preset: %v", err)
	}
	if cfg := m.GetConfig(); cfg.RowWidth != 320 || cfg.Row != FarConfig().Row {
		t.Errorf("config = %+v, want far preset at width 320", cfg)
	}

	if err := m.UpdateConfig(map[string]interface{}{"row_width": float64(320)}); err != nil {
		t.Errorf("same width rejected: %v", err)
	}
}
