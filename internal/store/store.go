package store

import (
	"context"
	"errors"
	"fmt"
)

// Reading is one timestamped sensor sample. Fahrenheit is caller-supplied and
// stored as-is; it is never derived from or validated against Celsius.
// Readings are immutable once created; no update or delete operations exist.
type Reading struct {
	WaterLevel            float64 `json:"waterLevel"`
	TemperatureCelsius    float64 `json:"temperatureCelsius"`
	TemperatureFahrenheit float64 `json:"temperatureFahrenheit"`
	Timestamp             string  `json:"timestamp"`
	ID                    string  `json:"id"`
}

// Backend is the storage contract shared by the durable adapters and the
// in-memory buffer. Insert assigns the backend's own id and returns the
// stored reading; List returns up to limit readings newest-first by creation
// order. Ids are opaque and not comparable across backends.
type Backend interface {
	Insert(ctx context.Context, r *Reading) (*Reading, error)
	List(ctx context.Context, limit int) ([]Reading, error)
	Latest(ctx context.Context) (*Reading, error)
}

// Durable is a Backend bound to an external database whose connection can
// come and go. Live reads a cached connection-state flag maintained by Run;
// it never performs a round trip. Operations do not retry and do not fall
// back; that policy lives in ReadingStore.
type Durable interface {
	Backend

	Live() bool

	// Run maintains the connection and liveness flag until ctx is cancelled.
	Run(ctx context.Context) error

	Close() error
}

const (
	// DefaultListLimit applies when a caller passes a non-positive limit.
	DefaultListLimit = 10

	// DefaultBufferCapacity bounds the in-memory fallback buffer.
	DefaultBufferCapacity = 100
)

// ErrUnavailable is returned by durable operations attempted before a
// connection has ever been established.
var ErrUnavailable = errors.New("durable store unavailable")

// ValidationError reports a missing required field on create. Zero and
// negative values are valid; only absence is an error.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field %q", e.Field)
}
