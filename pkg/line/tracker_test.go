package line

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-pitchnav/pkg/state"
)

type fakeCapturer struct {
	mu       sync.Mutex
	row      []uint8
	block    bool
	channels []Channel
}

func (f *fakeCapturer) Capture(ctx context.Context, ch Channel) ([]uint8, error) {
	f.mu.Lock()
	f.channels = append(f.channels, ch)
	block := f.block
	row := f.row
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return row, nil
}

func (f *fakeCapturer) calls() []Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Channel(nil), f.channels...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestMailbox_OverwriteAndTake(t *testing.T) {
	m := NewMailbox()
	m.Put(Row{Pixels: []uint8{1}})
	m.Put(Row{Pixels: []uint8{2}})

	row, ok := m.Take()
	if !ok || row.Pixels[0] != 2 {
		t.Fatalf("Take = %+v, %v; want latest row", row, ok)
	}
	if row.Seq != 2 {
		t.Errorf("Seq = %d, want 2", row.Seq)
	}
	if m.Drops() != 1 {
		t.Errorf("Drops = %d, want 1", m.Drops())
	}
}

func TestMailbox_CloseWakesTake(t *testing.T) {
	m := NewMailbox()
	done := make(chan bool)
	go func() {
		_, ok := m.Take()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	m.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Take after Close should report !ok")
		}
	case <-time.After(time.Second):
		t.Fatal("Take did not wake on Close")
	}

	m.Put(Row{})
	if _, ok := m.Take(); ok {
		t.Error("closed mailbox accepted a row")
	}
}

func TestTracker_IdleUntilDemanded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureInterval = time.Millisecond

	capt := &fakeCapturer{row: dipRow(cfg.Width, 400, 100)}
	demand := state.NewCell(Demand{})
	out := state.NewCell(Reading{})

	tr, err := NewTracker(cfg, capt, demand, out, nil)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	if n := len(capt.calls()); n != 0 {
		t.Fatalf("captured %d rows while idle", n)
	}

	demand.Store(Demand{Active: true, Channel: Blue})
	waitFor(t, "line reading", func() bool {
		r, v := out.Load()
		return v > 0 && r.Found
	})

	r, _ := out.Load()
	if abs(r.OffsetPx-80) > 1 {
		t.Errorf("OffsetPx = %d, want ~80", r.OffsetPx)
	}
	for _, ch := range capt.calls() {
		if ch != Blue {
			t.Errorf("captured channel %v, want blue", ch)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tracker did not stop")
	}
}

func TestTracker_DemandChangeCancelsCapture(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureInterval = time.Millisecond

	capt := &fakeCapturer{block: true}
	demand := state.NewCell(Demand{Active: true, Channel: Red})
	out := state.NewCell(Reading{})

	tr, _ := NewTracker(cfg, capt, demand, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	waitFor(t, "first capture", func() bool { return len(capt.calls()) == 1 })

	demand.Store(Demand{Active: false})
	waitFor(t, "cancellation", func() bool { return tr.Stats().Cancelled == 1 })

	time.Sleep(20 * time.Millisecond)
	if n := len(capt.calls()); n != 1 {
		t.Errorf("captures after deactivation: %d", n)
	}
}

func TestTracker_RejectsWrongWidth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureInterval = time.Millisecond

	capt := &fakeCapturer{row: make([]uint8, 10)}
	demand := state.NewCell(Demand{Active: true})
	out := state.NewCell(Reading{OffsetPx: 7, Found: true})

	tr, _ := NewTracker(cfg, capt, demand, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	waitFor(t, "rejected row", func() bool { return tr.Stats().Rejected > 0 })

	r, v := out.Load()
	if v != 0 || r.OffsetPx != 7 {
		t.Errorf("bad row overwrote the reading: %+v (version %d)", r, v)
	}
}

func TestTracker_DiscardsRowForChangedDemand(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureInterval = time.Millisecond

	demand := state.NewCell(Demand{Active: true, Channel: Blue})
	out := state.NewCell(Reading{})

	// the phase changes while the row is on its way
	capt := CapturerFunc(func(ctx context.Context, ch Channel) ([]uint8, error) {
		demand.Store(Demand{})
		return dipRow(cfg.Width, 320, 100), nil
	})

	tr, _ := NewTracker(cfg, capt, demand, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	waitFor(t, "stale row", func() bool { return tr.Stats().Stale == 1 })

	if r, v := out.Load(); v != 0 || r.Found {
		t.Errorf("row for the old demand was published: %+v (version %d)", r, v)
	}
}

func TestTracker_StampsDemandVersion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureInterval = time.Millisecond

	capt := &fakeCapturer{row: dipRow(cfg.Width, 320, 100)}
	demand := state.NewCell(Demand{})
	out := state.NewCell(Reading{})

	tr, _ := NewTracker(cfg, capt, demand, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	dv := demand.Store(Demand{Active: true, Channel: Green})
	waitFor(t, "line reading", func() bool {
		_, v := out.Load()
		return v > 0
	})
	if r, _ := out.Load(); r.DemandVersion != dv {
		t.Errorf("DemandVersion = %d, want %d", r.DemandVersion, dv)
	}
}

func TestTracker_DemandChangeEndsPause(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureInterval = time.Hour

	capt := &fakeCapturer{row: dipRow(cfg.Width, 320, 100)}
	demand := state.NewCell(Demand{Active: true, Channel: Red})
	out := state.NewCell(Reading{})

	tr, _ := NewTracker(cfg, capt, demand, out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tr.Run(ctx)

	waitFor(t, "first capture", func() bool { return len(capt.calls()) == 1 })

	demand.Store(Demand{Active: true, Channel: Green})
	waitFor(t, "capture in the new channel", func() bool {
		calls := capt.calls()
		return len(calls) == 2 && calls[1] == Green
	})
}
