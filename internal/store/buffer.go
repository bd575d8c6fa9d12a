package store

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// Buffer is the bounded, process-local fallback store: an insertion-ordered,
// newest-first sequence capped at a fixed capacity. It is shared mutable
// state across all requests and guards itself with a mutex. Contents do not
// survive a restart.
type Buffer struct {
	mu       sync.Mutex
	capacity int
	seq      int64
	readings []Reading // newest first
}

// NewBuffer creates a buffer holding at most capacity readings. Ids are
// monotonically increasing, seeded from wall-clock millis so they keep
// ascending across restarts.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		capacity: capacity,
		seq:      time.Now().UnixMilli(),
	}
}

// Insert prepends the reading and truncates the tail when the capacity is
// exceeded. It assigns the buffer's id and cannot fail.
func (b *Buffer) Insert(_ context.Context, r *Reading) (*Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	stored := *r
	stored.ID = strconv.FormatInt(b.seq, 10)

	b.readings = append([]Reading{stored}, b.readings...)
	if len(b.readings) > b.capacity {
		b.readings = b.readings[:b.capacity]
	}
	return &stored, nil
}

// List returns up to limit readings, newest first. A non-positive limit
// means DefaultListLimit. An empty buffer yields an empty slice, never an
// error.
func (b *Buffer) List(_ context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if limit > len(b.readings) {
		limit = len(b.readings)
	}
	out := make([]Reading, limit)
	copy(out, b.readings[:limit])
	return out, nil
}

// Latest returns the most recent reading, or nil when the buffer is empty.
func (b *Buffer) Latest(_ context.Context) (*Reading, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.readings) == 0 {
		return nil, nil
	}
	r := b.readings[0]
	return &r, nil
}

// Len returns the current number of buffered readings.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// Capacity returns the configured maximum.
func (b *Buffer) Capacity() int {
	return b.capacity
}
