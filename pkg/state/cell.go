// Package state provides single-writer snapshot cells shared between tasks.
//
// Each cell has exactly one owning task that calls Store. Any number of
// tasks may Load or Watch. Readers never block on writers for longer than
// a copy of the value, and never wait for a fresh value: the last stored
// value wins.
package state

import "sync"

// Cell holds the latest value of T together with a version counter.
type Cell[T any] struct {
	mu      sync.RWMutex
	value   T
	version uint64
	changed chan struct{}
}

// NewCell creates a cell holding initial at version 0.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Store replaces the value and returns the new version.
// Only the owning task may call Store.
func (c *Cell[T]) Store(v T) uint64 {
	c.mu.Lock()
	c.value = v
	c.version++
	version := c.version
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
	return version
}

// Load returns a consistent copy of the value and its version.
func (c *Cell[T]) Load() (T, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version
}

// Watch returns the current value, its version and a channel that is
// closed by the next Store.
func (c *Cell[T]) Watch() (T, uint64, <-chan struct{}) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value, c.version, c.changed
}
