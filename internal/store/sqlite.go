package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Durable backed by a local SQLite file. Unlike the
// remote PostgreSQL backend the file is always reachable, so the store is
// live from the moment it opens.
type SQLiteStore struct {
	db   *sql.DB
	live atomic.Bool
}

// NewSQLiteStore opens the database, sets file permissions, and runs
// migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("setting file permissions: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	s.live.Store(true)
	return s, nil
}

// DB returns the underlying database connection for migration commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Live reports the cached connection state.
func (s *SQLiteStore) Live() bool {
	return s.live.Load()
}

// Run blocks until ctx is cancelled. A local file needs no connection
// maintenance.
func (s *SQLiteStore) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

// Insert persists the reading and returns it with the rowid-assigned id.
func (s *SQLiteStore) Insert(ctx context.Context, r *Reading) (*Reading, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO readings (water_level, temperature_celsius, temperature_fahrenheit, ist_timestamp)
		VALUES (?, ?, ?, ?)`,
		r.WaterLevel, r.TemperatureCelsius, r.TemperatureFahrenheit, r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("inserting reading: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading insert id: %w", err)
	}

	stored := *r
	stored.ID = strconv.FormatInt(id, 10)
	return &stored, nil
}

// List returns up to limit readings newest-first by creation order.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, water_level, temperature_celsius, temperature_fahrenheit, ist_timestamp
		FROM readings
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanReadings(rows)
}

// Latest returns the most recently created reading, or nil when empty.
func (s *SQLiteStore) Latest(ctx context.Context) (*Reading, error) {
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Shared helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(row scanner) (*Reading, error) {
	var r Reading
	var id int64
	if err := row.Scan(&id, &r.WaterLevel, &r.TemperatureCelsius, &r.TemperatureFahrenheit, &r.Timestamp); err != nil {
		return nil, err
	}
	r.ID = strconv.FormatInt(id, 10)
	return &r, nil
}

func scanReadings(rows *sql.Rows) ([]Reading, error) {
	result := []Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}
