package line

import (
	"errors"
	"testing"
)

// dipRow returns a bright row with a dark dip of width w centered at k.
func dipRow(width, k, w int) []uint8 {
	row := make([]uint8, width)
	for i := range row {
		row[i] = 200
	}
	for i := k - w/2; i < k-w/2+w; i++ {
		row[i] = 10
	}
	return row
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestEstimator_FindsWideDip(t *testing.T) {
	cfg := DefaultConfig()
	est, err := NewEstimator(cfg)
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	tests := []struct {
		name  string
		k     int
		width int
	}{
		{"centered", 320, 100},
		{"right", 450, 120},
		{"left", 150, 90},
		{"off center", 300, 100},
		{"odd width", 333, 101},
		{"exact min width", 300, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := est.Estimate(dipRow(cfg.Width, tt.k, tt.width))
			if err != nil {
				t.Fatalf("Estimate: %v", err)
			}
			if !r.Found {
				t.Fatal("expected a line")
			}
			want := tt.k - cfg.Width/2
			if abs(r.OffsetPx-want) > 1 {
				t.Errorf("OffsetPx = %d, want %d±1", r.OffsetPx, want)
			}
			if got := r.End - r.Begin; got != tt.width {
				t.Errorf("End-Begin = %d, want dip width %d", got, tt.width)
			}
		})
	}
}

func TestEstimator_RejectsNarrowDip(t *testing.T) {
	cfg := DefaultConfig()
	est, _ := NewEstimator(cfg)

	for _, w := range []int{40, 75, 76, cfg.MinLineWidth - 1} {
		r, err := est.Estimate(dipRow(cfg.Width, 320, w))
		if err != nil {
			t.Fatalf("Estimate: %v", err)
		}
		if r.Found || r.OffsetPx != 0 {
			t.Errorf("width %d: got %+v, want not found with zero offset", w, r)
		}
	}
}

func TestEstimator_SkipsNarrowThenFindsWide(t *testing.T) {
	cfg := DefaultConfig()
	est, _ := NewEstimator(cfg)

	row := dipRow(cfg.Width, 100, 30)
	for i := 400; i < 500; i++ {
		row[i] = 10
	}

	r, _ := est.Estimate(row)
	if !r.Found {
		t.Fatal("expected the wide dip to be found")
	}
	if abs(r.OffsetPx-(450-320)) > 1 {
		t.Errorf("OffsetPx = %d, want ~%d", r.OffsetPx, 450-320)
	}
	if r.Begin != 400 || r.End != 500 {
		t.Errorf("dip = [%d,%d), want [400,500)", r.Begin, r.End)
	}
}

func TestEstimator_UniformRow(t *testing.T) {
	cfg := DefaultConfig()
	est, _ := NewEstimator(cfg)

	row := make([]uint8, cfg.Width)
	for i := range row {
		row[i] = 90
	}
	r, _ := est.Estimate(row)
	if r.Found {
		t.Error("uniform row should not contain a line")
	}
}

func TestEstimator_DipAtRightEdgeNotClosed(t *testing.T) {
	cfg := DefaultConfig()
	est, _ := NewEstimator(cfg)

	row := dipRow(cfg.Width, 320, 0)
	for i := 550; i < cfg.Width; i++ {
		row[i] = 10
	}
	if r, _ := est.Estimate(row); r.Found {
		t.Errorf("dip without a rising edge reported as %+v", r)
	}
}

func TestEstimator_WrongWidth(t *testing.T) {
	est, _ := NewEstimator(DefaultConfig())
	if _, err := est.Estimate(make([]uint8, 320)); !errors.Is(err, ErrRowWidth) {
		t.Errorf("err = %v, want ErrRowWidth", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default invalid: %v", err)
	}
	cfg.SlopeWidth = cfg.Width
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for slope wider than row")
	}
}

func TestChannel_Text(t *testing.T) {
	for _, c := range []Channel{Red, Green, Blue} {
		b, _ := c.MarshalText()
		var got Channel
		if err := got.UnmarshalText(b); err != nil || got != c {
			t.Errorf("round trip %v -> %q -> %v (%v)", c, b, got, err)
		}
	}
	if _, err := ParseChannel("purple"); err == nil {
		t.Error("expected error for unknown channel")
	}
}
