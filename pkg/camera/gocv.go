package camera

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"sync"

	"github.com/teslashibe/go-pitchnav/pkg/line"
	"gocv.io/x/gocv"
)

// GoCVCapturer reads frames from an OpenCV video device and returns one
// row of one color channel.
type GoCVCapturer struct {
	mu     sync.Mutex // Protects the device
	cfg    Config
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	scaled gocv.Mat
	logger *slog.Logger
}

// OpenGoCV opens the device named by cfg.Device.
func OpenGoCV(cfg Config, logger *slog.Logger) (*GoCVCapturer, error) {
	if err := cfg.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &GoCVCapturer{
		cfg:    cfg,
		frame:  gocv.NewMat(),
		scaled: gocv.NewMat(),
		logger: logger,
	}
	if err := c.open(cfg); err != nil {
		c.frame.Close()
		c.scaled.Close()
		return nil, err
	}
	return c, nil
}

func (c *GoCVCapturer) open(cfg Config) error {
	var device interface{} = cfg.Device
	if idx, err := strconv.Atoi(cfg.Device); err == nil {
		device = idx
	}
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("open camera %q: %w", cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	c.vc = vc
	c.cfg = cfg
	c.logger.Info("camera opened", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height, "row", cfg.Row)
	return nil
}

// Apply reopens the device with cfg. It is suitable as a
// Manager.OnConfigChange callback.
func (c *GoCVCapturer) Apply(cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc != nil {
		c.vc.Close()
		c.vc = nil
	}
	return c.open(cfg)
}

// Capture grabs a frame and extracts the configured row. A frame read
// cannot be interrupted, so ctx is checked before and after it.
func (c *GoCVCapturer) Capture(ctx context.Context, ch line.Channel) ([]uint8, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.vc == nil {
		return nil, fmt.Errorf("camera closed")
	}
	if ok := c.vc.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("camera %q: empty frame", c.cfg.Device)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := c.frame
	if src.Cols() != c.cfg.RowWidth {
		scale := float64(c.cfg.RowWidth) / float64(src.Cols())
		gocv.Resize(src, &c.scaled, image.Point{X: c.cfg.RowWidth, Y: int(float64(src.Rows()) * scale)}, 0, 0, gocv.InterpolationLinear)
		src = c.scaled
	}

	row := c.cfg.Row * src.Rows() / c.cfg.Height
	if row >= src.Rows() {
		row = src.Rows() - 1
	}
	return ExtractBGR(src.ToBytes(), src.Cols(), row, ch)
}

// Close releases the device.
func (c *GoCVCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.vc != nil {
		err = c.vc.Close()
		c.vc = nil
	}
	c.frame.Close()
	c.scaled.Close()
	return err
}

var _ line.Capturer = (*GoCVCapturer)(nil)
var _ line.Capturer = (*SimCapturer)(nil)
