package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed pgmigrations/*.sql
var pgMigrations embed.FS

const defaultPingInterval = 5 * time.Second

// PostgresStore implements Durable backed by PostgreSQL. Construction never
// dials the server: Run establishes contact, applies migrations on first
// success, and keeps the cached liveness flag current with periodic pings.
// The daemon therefore starts and serves from the buffer even when the
// database is down or was never reachable.
type PostgresStore struct {
	db           *sql.DB
	logger       *slog.Logger
	pingInterval time.Duration

	live     atomic.Bool
	migrated atomic.Bool
}

// NewPostgresStore prepares a connection pool for the given DSN. Fails only
// on an unparseable DSN, not on an unreachable server.
func NewPostgresStore(dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:           db,
		logger:       logger,
		pingInterval: defaultPingInterval,
	}, nil
}

// DB returns the underlying connection pool for migration commands.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Live reports the cached connection state. Never a round trip.
func (s *PostgresStore) Live() bool {
	return s.live.Load()
}

// Run maintains the liveness flag until ctx is cancelled. Each cycle pings
// the server; the first successful contact also applies migrations.
func (s *PostgresStore) Run(ctx context.Context) error {
	for {
		s.check(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.pingInterval):
		}
	}
}

func (s *PostgresStore) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.db.PingContext(pingCtx); err != nil {
		if s.live.Swap(false) {
			s.logger.Warn("durable store connection lost", "error", err)
		}
		return
	}

	if !s.migrated.Load() {
		if err := s.Migrate(ctx); err != nil {
			s.logger.Error("postgres migrations failed", "error", err)
			return
		}
		s.migrated.Store(true)
	}

	if !s.live.Swap(true) {
		s.logger.Info("durable store connection established")
	}
}

// Migrate applies the embedded migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(pgMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "pgmigrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// ready guards operations attempted before migrations have ever applied;
// without the table in place they would fail with misleading errors.
func (s *PostgresStore) ready() error {
	if !s.migrated.Load() {
		return ErrUnavailable
	}
	return nil
}

// Insert persists the reading and returns it with the database-assigned id.
func (s *PostgresStore) Insert(ctx context.Context, r *Reading) (*Reading, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO readings (water_level, temperature_celsius, temperature_fahrenheit, ist_timestamp)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		r.WaterLevel, r.TemperatureCelsius, r.TemperatureFahrenheit, r.Timestamp).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("inserting reading: %w", err)
	}

	stored := *r
	stored.ID = strconv.FormatInt(id, 10)
	return &stored, nil
}

// List returns up to limit readings newest-first. Creation order (id), not
// the client-stamped timestamp, is the sort key: the two can diverge under
// clock skew and the insertion order is authoritative.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Reading, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, water_level, temperature_celsius, temperature_fahrenheit, ist_timestamp
		FROM readings
		ORDER BY id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanReadings(rows)
}

// Latest returns the most recently created reading, or nil when the table is
// empty.
func (s *PostgresStore) Latest(ctx context.Context) (*Reading, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, water_level, temperature_celsius, temperature_fahrenheit, ist_timestamp
		FROM readings
		ORDER BY id DESC
		LIMIT 1`)

	r, err := scanReading(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest reading: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
