package store

import (
	"context"
	"log/slog"

	"github.com/jayapriya2010/aquaponics-server/internal/clock"
	"github.com/jayapriya2010/aquaponics-server/internal/metrics"
)

// CreateParams carries the caller-supplied fields of a new reading. Pointer
// fields distinguish "absent" from a legitimate zero value.
type CreateParams struct {
	WaterLevel            *float64
	TemperatureCelsius    *float64
	TemperatureFahrenheit *float64
}

// ReadingStore presents one create/list/latest contract regardless of which
// backend is active. It treats the durable store as an optimistic primary and
// the buffer as a strictly-available secondary: each operation checks the
// cached liveness flag, attempts the durable backend if live, and falls
// through to the buffer on any durable failure. Durable errors never reach
// the caller; they are logged and counted here.
//
// The check-then-act pattern on the liveness flag is racy: a live-at-check
// connection can fail moments later. Correctness depends only on the
// operation itself reporting failure honestly; the flag exists to skip
// doomed attempts.
type ReadingStore struct {
	durable Durable // nil when running buffer-only
	buffer  *Buffer
	clock   clock.Clock
	logger  *slog.Logger
}

// NewReadingStore wires the façade. durable may be nil, in which case every
// operation goes to the buffer.
func NewReadingStore(durable Durable, buffer *Buffer, clk clock.Clock, logger *slog.Logger) *ReadingStore {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReadingStore{
		durable: durable,
		buffer:  buffer,
		clock:   clk,
		logger:  logger,
	}
}

// Create validates field presence, stamps the IST timestamp, and stores the
// reading in exactly one backend. A reading written to the buffer during a
// durable outage is never migrated to the durable store afterwards.
func (s *ReadingStore) Create(ctx context.Context, p CreateParams) (*Reading, error) {
	switch {
	case p.WaterLevel == nil:
		return nil, &ValidationError{Field: "waterLevel"}
	case p.TemperatureCelsius == nil:
		return nil, &ValidationError{Field: "temperatureCelsius"}
	case p.TemperatureFahrenheit == nil:
		return nil, &ValidationError{Field: "temperatureFahrenheit"}
	}

	r := &Reading{
		WaterLevel:            *p.WaterLevel,
		TemperatureCelsius:    *p.TemperatureCelsius,
		TemperatureFahrenheit: *p.TemperatureFahrenheit,
		Timestamp:             clock.Format(s.clock.Now()),
	}

	if s.durable != nil && s.durable.Live() {
		saved, err := s.durable.Insert(ctx, r)
		if err == nil {
			metrics.IncReadingCreated(metrics.BackendDurable)
			return saved, nil
		}
		s.logger.Warn("durable insert failed, writing to buffer", "error", err)
		metrics.IncFallback("create")
	}

	saved, err := s.buffer.Insert(ctx, r)
	if err != nil {
		// The buffer has no legitimate failure mode; this is a bug.
		return nil, err
	}
	metrics.IncReadingCreated(metrics.BackendBuffer)
	return saved, nil
}

// List returns up to limit readings newest-first. It never fails: the worst
// case is an empty slice.
func (s *ReadingStore) List(ctx context.Context, limit int) []Reading {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	if s.durable != nil && s.durable.Live() {
		readings, err := s.durable.List(ctx, limit)
		if err == nil {
			return readings
		}
		s.logger.Warn("durable list failed, reading from buffer", "error", err)
		metrics.IncFallback("list")
	}

	readings, _ := s.buffer.List(ctx, limit)
	return readings
}

// Latest returns the most recent reading, or nil when no data exists in
// either backend. The buffer is consulted only when the durable store is
// unavailable, erroring, or empty.
func (s *ReadingStore) Latest(ctx context.Context) *Reading {
	if s.durable != nil && s.durable.Live() {
		r, err := s.durable.Latest(ctx)
		if err == nil && r != nil {
			return r
		}
		if err != nil {
			s.logger.Warn("durable latest failed, reading from buffer", "error", err)
			metrics.IncFallback("latest")
		}
	}

	r, _ := s.buffer.Latest(ctx)
	return r
}

// DurableLive reports the durable backend's cached liveness; false when no
// durable backend is configured.
func (s *ReadingStore) DurableLive() bool {
	return s.durable != nil && s.durable.Live()
}

// BufferStatus returns the buffer's occupancy and capacity.
func (s *ReadingStore) BufferStatus() (size, capacity int) {
	return s.buffer.Len(), s.buffer.Capacity()
}
