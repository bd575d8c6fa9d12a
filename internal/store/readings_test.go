package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"
)

// fakeDurable implements Durable for testing the fallback policy.
type fakeDurable struct {
	mu       sync.Mutex
	live     bool
	failOps  bool
	readings []Reading // newest first
	seq      int64
}

func (f *fakeDurable) Live() bool { return f.live }

func (f *fakeDurable) Insert(_ context.Context, r *Reading) (*Reading, error) {
	if f.failOps {
		return nil, errors.New("connection reset by peer")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	stored := *r
	stored.ID = "pg-" + strconv.FormatInt(f.seq, 10)
	f.readings = append([]Reading{stored}, f.readings...)
	return &stored, nil
}

func (f *fakeDurable) List(_ context.Context, limit int) ([]Reading, error) {
	if f.failOps {
		return nil, errors.New("connection reset by peer")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.readings) {
		limit = len(f.readings)
	}
	out := make([]Reading, limit)
	copy(out, f.readings[:limit])
	return out, nil
}

func (f *fakeDurable) Latest(_ context.Context) (*Reading, error) {
	if f.failOps {
		return nil, errors.New("connection reset by peer")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readings) == 0 {
		return nil, nil
	}
	r := f.readings[0]
	return &r, nil
}

func (f *fakeDurable) Run(ctx context.Context) error { <-ctx.Done(); return nil }
func (f *fakeDurable) Close() error                  { return nil }

func (f *fakeDurable) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.readings)
}

type fixedClock struct{ t time.Time }

func (f fixedClock) Now() time.Time { return f.t }

func ptr(v float64) *float64 { return &v }

func validParams() CreateParams {
	return CreateParams{
		WaterLevel:            ptr(12.5),
		TemperatureCelsius:    ptr(28.3),
		TemperatureFahrenheit: ptr(82.9),
	}
}

func newTestStore(durable Durable) (*ReadingStore, *Buffer) {
	buffer := NewBuffer(100)
	clk := fixedClock{t: time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)}
	return NewReadingStore(durable, buffer, clk, nil), buffer
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		params CreateParams
		field  string
	}{
		{
			name:   "missing waterLevel",
			params: CreateParams{TemperatureCelsius: ptr(28.3), TemperatureFahrenheit: ptr(82.9)},
			field:  "waterLevel",
		},
		{
			name:   "missing temperatureCelsius",
			params: CreateParams{WaterLevel: ptr(12.5), TemperatureFahrenheit: ptr(82.9)},
			field:  "temperatureCelsius",
		},
		{
			name:   "missing temperatureFahrenheit",
			params: CreateParams{WaterLevel: ptr(12.5), TemperatureCelsius: ptr(28.3)},
			field:  "temperatureFahrenheit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			durable := &fakeDurable{live: true}
			s, buffer := newTestStore(durable)

			_, err := s.Create(context.Background(), tt.params)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}

			// Neither backend may have been touched.
			if durable.count() != 0 {
				t.Errorf("durable holds %d readings, want 0", durable.count())
			}
			if buffer.Len() != 0 {
				t.Errorf("buffer holds %d readings, want 0", buffer.Len())
			}
		})
	}
}

func TestCreate_ZeroAndNegativeValuesValid(t *testing.T) {
	s, _ := newTestStore(nil)

	r, err := s.Create(context.Background(), CreateParams{
		WaterLevel:            ptr(0),
		TemperatureCelsius:    ptr(-4.5),
		TemperatureFahrenheit: ptr(23.9),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.WaterLevel != 0 || r.TemperatureCelsius != -4.5 {
		t.Errorf("stored values %v/%v, want 0/-4.5", r.WaterLevel, r.TemperatureCelsius)
	}
}

func TestCreate_DurableLive(t *testing.T) {
	durable := &fakeDurable{live: true}
	s, buffer := newTestStore(durable)

	r, err := s.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID != "pg-1" {
		t.Errorf("ID = %q, want durable-assigned %q", r.ID, "pg-1")
	}
	if r.Timestamp != "2024-06-15 17:30:00" {
		t.Errorf("Timestamp = %q, want %q", r.Timestamp, "2024-06-15 17:30:00")
	}
	if buffer.Len() != 0 {
		t.Errorf("buffer holds %d readings, want 0 (reading lives in exactly one backend)", buffer.Len())
	}
}

func TestCreate_DurableDown(t *testing.T) {
	durable := &fakeDurable{live: false}
	s, buffer := newTestStore(durable)

	r, err := s.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if r.ID == "" {
		t.Error("buffer-assigned ID is empty")
	}
	if buffer.Len() != 1 {
		t.Errorf("buffer holds %d readings, want 1", buffer.Len())
	}
	if durable.count() != 0 {
		t.Errorf("durable holds %d readings, want 0", durable.count())
	}
}

func TestCreate_FallthroughOnDurableError(t *testing.T) {
	// Live at check, failing at operation: the single write silently
	// degrades to the buffer.
	durable := &fakeDurable{live: true, failOps: true}
	s, buffer := newTestStore(durable)

	r, err := s.Create(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Create should absorb the durable failure, got %v", err)
	}
	if buffer.Len() != 1 {
		t.Errorf("buffer holds %d readings, want 1", buffer.Len())
	}
	if r.WaterLevel != 12.5 {
		t.Errorf("WaterLevel = %v, want 12.5", r.WaterLevel)
	}
}

func TestCreate_NoDurableConfigured(t *testing.T) {
	s, buffer := newTestStore(nil)

	if _, err := s.Create(context.Background(), validParams()); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if buffer.Len() != 1 {
		t.Errorf("buffer holds %d readings, want 1", buffer.Len())
	}
}

func TestList_OutageSequence(t *testing.T) {
	// Durable unreachable for the whole session: N creates then list(N)
	// returns exactly those N readings in reverse creation order.
	durable := &fakeDurable{live: false}
	s, _ := newTestStore(durable)
	ctx := context.Background()

	const n = 5
	for i := 1; i <= n; i++ {
		params := CreateParams{
			WaterLevel:            ptr(float64(i)),
			TemperatureCelsius:    ptr(25),
			TemperatureFahrenheit: ptr(77),
		}
		if _, err := s.Create(ctx, params); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	got := s.List(ctx, n)
	if len(got) != n {
		t.Fatalf("List returned %d, want %d", len(got), n)
	}
	for i, r := range got {
		if want := float64(n - i); r.WaterLevel != want {
			t.Errorf("got[%d].WaterLevel = %v, want %v", i, r.WaterLevel, want)
		}
	}
}

func TestList_DefaultLimit(t *testing.T) {
	durable := &fakeDurable{live: false}
	s, _ := newTestStore(durable)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if _, err := s.Create(ctx, validParams()); err != nil {
			t.Fatal(err)
		}
	}

	if got := s.List(ctx, 0); len(got) != DefaultListLimit {
		t.Errorf("List(0) returned %d, want %d", len(got), DefaultListLimit)
	}
}

func TestList_FallbackOnDurableError(t *testing.T) {
	durable := &fakeDurable{live: false}
	s, _ := newTestStore(durable)
	ctx := context.Background()

	if _, err := s.Create(ctx, validParams()); err != nil {
		t.Fatal(err)
	}

	// Durable comes up but every operation fails.
	durable.live = true
	durable.failOps = true

	got := s.List(ctx, 10)
	if len(got) != 1 {
		t.Errorf("List returned %d, want 1 from buffer", len(got))
	}
}

func TestList_NeverFails(t *testing.T) {
	s, _ := newTestStore(&fakeDurable{live: true, failOps: true})
	got := s.List(context.Background(), 10)
	if got == nil {
		t.Error("List = nil, want empty slice")
	}
	if len(got) != 0 {
		t.Errorf("List returned %d, want 0", len(got))
	}
}

func TestLatest_PrefersDurable(t *testing.T) {
	durable := &fakeDurable{live: true}
	s, buffer := newTestStore(durable)
	ctx := context.Background()

	// Buffer has data from an earlier outage; durable has its own.
	_, _ = buffer.Insert(ctx, &Reading{WaterLevel: 1})
	if _, err := s.Create(ctx, validParams()); err != nil {
		t.Fatal(err)
	}

	r := s.Latest(ctx)
	if r == nil {
		t.Fatal("Latest = nil")
	}
	if r.WaterLevel != 12.5 {
		t.Errorf("Latest came from buffer (%v), want durable reading 12.5", r.WaterLevel)
	}
}

func TestLatest_DurableEmptyFallsToBuffer(t *testing.T) {
	durable := &fakeDurable{live: true}
	s, buffer := newTestStore(durable)
	ctx := context.Background()

	_, _ = buffer.Insert(ctx, &Reading{WaterLevel: 7})

	r := s.Latest(ctx)
	if r == nil {
		t.Fatal("Latest = nil, want buffered reading")
	}
	if r.WaterLevel != 7 {
		t.Errorf("WaterLevel = %v, want 7", r.WaterLevel)
	}
}

func TestLatest_NoDataAnywhere(t *testing.T) {
	s, _ := newTestStore(&fakeDurable{live: true})
	if r := s.Latest(context.Background()); r != nil {
		t.Errorf("Latest = %v, want nil", r)
	}
}

func TestLatest_Idempotent(t *testing.T) {
	durable := &fakeDurable{live: false}
	s, _ := newTestStore(durable)
	ctx := context.Background()

	if _, err := s.Create(ctx, validParams()); err != nil {
		t.Fatal(err)
	}

	first := s.Latest(ctx)
	second := s.Latest(ctx)
	if first == nil || second == nil {
		t.Fatal("Latest = nil")
	}
	if *first != *second {
		t.Errorf("repeated Latest differs: %+v vs %+v", *first, *second)
	}
}

func TestDurableLive(t *testing.T) {
	durable := &fakeDurable{live: true}
	s, _ := newTestStore(durable)
	if !s.DurableLive() {
		t.Error("DurableLive = false, want true")
	}

	durable.live = false
	if s.DurableLive() {
		t.Error("DurableLive = true, want false")
	}

	noDurable, _ := newTestStore(nil)
	if noDurable.DurableLive() {
		t.Error("DurableLive with nil durable = true, want false")
	}
}
