package line

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/state"
)

// Capturer grabs one row of the given color channel. Capture must return
// promptly with ctx.Err() once ctx is cancelled.
type Capturer interface {
	Capture(ctx context.Context, ch Channel) ([]uint8, error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context, ch Channel) ([]uint8, error)

// Capture calls f.
func (f CapturerFunc) Capture(ctx context.Context, ch Channel) ([]uint8, error) {
	return f(ctx, ch)
}

// Demand tells the tracker whether rows are needed and in which channel.
type Demand struct {
	Active  bool    `json:"active"`
	Channel Channel `json:"channel"`
}

// TrackerStats counts the work done by a Tracker.
type TrackerStats struct {
	Captures      int64  `json:"captures"`
	CaptureErrors int64  `json:"capture_errors"`
	Cancelled     int64  `json:"cancelled"`
	Rejected      int64  `json:"rejected"`
	Stale         int64  `json:"stale"`
	Published     int64  `json:"published"`
	Dropped       uint64 `json:"dropped"`
}

// Tracker is the vision task pair. The capture goroutine runs only while
// the demand cell is active and abandons an in-flight capture as soon as
// the demand changes. The processing goroutine estimates the line in each
// captured row and publishes it, stamped with the demand version it was
// captured for. Rows whose demand has since changed are discarded.
type Tracker struct {
	cfg    Config
	est    *Estimator
	cap    Capturer
	demand *state.Cell[Demand]
	out    *state.Cell[Reading]
	box    *Mailbox
	logger *slog.Logger

	now func() time.Time

	captures      atomic.Int64
	captureErrors atomic.Int64
	cancelled     atomic.Int64
	rejected      atomic.Int64
	stale         atomic.Int64
	published     atomic.Int64
	lastWarn      atomic.Int64
}

// NewTracker creates a tracker reading demand and publishing to out.
func NewTracker(cfg Config, capturer Capturer, demand *state.Cell[Demand], out *state.Cell[Reading], logger *slog.Logger) (*Tracker, error) {
	est, err := NewEstimator(cfg)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:    cfg,
		est:    est,
		cap:    capturer,
		demand: demand,
		out:    out,
		box:    NewMailbox(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Run starts both goroutines and blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	t.logger.Info("line tracker started", "width", t.cfg.Width, "interval", t.cfg.CaptureInterval)
	defer t.logger.Info("line tracker stopped")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		t.processLoop()
	}()
	go func() {
		defer wg.Done()
		t.captureLoop(ctx)
		t.box.Close()
	}()
	wg.Wait()
	return ctx.Err()
}

func (t *Tracker) captureLoop(ctx context.Context) {
	for {
		d, version, changed := t.demand.Watch()
		if !d.Active {
			select {
			case <-ctx.Done():
				return
			case <-changed:
				continue
			}
		}

		if !t.captureOnce(ctx, d.Channel, version, changed) {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		if t.cfg.CaptureInterval > 0 {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			case <-time.After(t.cfg.CaptureInterval):
			}
		}
	}
}

// captureOnce runs a single capture that is cancelled when the demand
// changes. It reports whether a row was deposited.
func (t *Tracker) captureOnce(ctx context.Context, ch Channel, version uint64, changed <-chan struct{}) bool {
	capCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-changed:
			cancel()
		case <-capCtx.Done():
		}
	}()

	pixels, err := t.cap.Capture(capCtx, ch)
	if err != nil {
		if errors.Is(err, context.Canceled) || capCtx.Err() != nil {
			t.cancelled.Add(1)
			return false
		}
		t.captureErrors.Add(1)
		t.warnf("row capture failed", "channel", ch.String(), "error", err)
		select {
		case <-capCtx.Done():
		case <-time.After(t.cfg.CaptureInterval):
		}
		return false
	}

	t.captures.Add(1)
	t.box.Put(Row{Pixels: pixels, Channel: ch, At: t.now(), DemandVersion: version})
	return true
}

func (t *Tracker) processLoop() {
	for {
		row, ok := t.box.Take()
		if !ok {
			return
		}

		r, err := t.est.Estimate(row.Pixels)
		if err != nil {
			t.rejected.Add(1)
			t.warnf("dropping row", "len", len(row.Pixels), "want", t.cfg.Width, "error", err)
			continue
		}
		if _, v := t.demand.Load(); v != row.DemandVersion {
			t.stale.Add(1)
			continue
		}
		r.At = row.At
		r.DemandVersion = row.DemandVersion
		t.out.Store(r)
		t.published.Add(1)

		t.logger.Debug("line estimated",
			"seq", row.Seq,
			"channel", row.Channel.String(),
			"found", r.Found,
			"offset_px", r.OffsetPx,
		)
	}
}

// warnf logs at most once per second.
func (t *Tracker) warnf(msg string, args ...any) {
	now := t.now().UnixNano()
	last := t.lastWarn.Load()
	if now-last < int64(time.Second) {
		return
	}
	if t.lastWarn.CompareAndSwap(last, now) {
		t.logger.Warn(msg, args...)
	}
}

// Stats returns tracker counters.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Captures:      t.captures.Load(),
		CaptureErrors: t.captureErrors.Load(),
		Cancelled:     t.cancelled.Load(),
		Rejected:      t.rejected.Load(),
		Stale:         t.stale.Load(),
		Published:     t.published.Load(),
		Dropped:       t.box.Drops(),
	}
}
