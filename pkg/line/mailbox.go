package line

import (
	"sync"
	"time"
)

// Row is one captured row reduced to a single color channel.
type Row struct {
	Pixels  []uint8
	Channel Channel
	Seq     uint64
	At      time.Time

	// DemandVersion identifies the demand the row was captured for.
	DemandVersion uint64
}

// Mailbox is a single-slot buffer between the capture and processing
// goroutines. Put overwrites an unconsumed row; Take blocks until a row is
// available or the mailbox is closed.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	row    *Row
	seq    uint64
	drops  uint64
	closed bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Put deposits row, replacing any unconsumed one. It never blocks.
func (m *Mailbox) Put(row Row) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if m.row != nil {
		m.drops++
	}
	m.seq++
	row.Seq = m.seq
	m.row = &row
	m.cond.Signal()
}

// Take waits for the next row. ok is false once the mailbox is closed.
func (m *Mailbox) Take() (row Row, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for m.row == nil && !m.closed {
		m.cond.Wait()
	}
	if m.closed {
		return Row{}, false
	}
	row = *m.row
	m.row = nil
	return row, true
}

// Close wakes any waiting Take and rejects further rows.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.row = nil
	m.cond.Broadcast()
}

// Drops returns how many rows were overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
