// Package sqlstore is the relational sink for decoded readings. Every batch is
// written in one transaction as upserts keyed by (station_id, sequence_number),
// so replaying a batch after a crash leaves the table unchanged.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-pipeline/internal/domain"
)

//go:embed sql/schema.sql
var schemaSQL string

//go:embed sql/upsert-reading.sql
var upsertReadingSQL string

//go:embed sql/get-reading.sql
var getReadingSQL string

//go:embed sql/count-readings.sql
var countReadingsSQL string

// ErrNotFound is returned by Get when no row matches the key.
var ErrNotFound = errors.New("reading not found")

// Store writes readings to the weather_readings table. It implements pipeline.Sink.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger

	upsertSQL string
	getSQL    string
}

// Open connects to the database and verifies connectivity early.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if driver == DriverSQLite {
		// One physical connection: SQLite serializes writers anyway, and an
		// in-memory database only exists on the connection that created it.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return New(db, driver, logger), nil
}

// New wraps an already opened database.
func New(db *sql.DB, driver string, logger *slog.Logger) *Store {
	return &Store{
		db:        db,
		driver:    driver,
		logger:    logger,
		upsertSQL: rebind(driver, upsertReadingSQL),
		getSQL:    rebind(driver, getReadingSQL),
	}
}

// Migrate creates the readings table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create weather_readings: %w", err)
	}
	return nil
}

// Flush upserts all readings in a single transaction: either every row of the
// batch is visible afterwards or none is.
func (s *Store) Flush(ctx context.Context, readings []domain.Reading) (err error) {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback batch", "error", rbErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, s.upsertSQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range readings {
		if _, err = stmt.ExecContext(ctx,
			r.StationID,
			r.SequenceNumber,
			string(r.BatteryStatus),
			r.StatusTimestamp,
			r.Weather.Humidity,
			r.Weather.Temperature,
			r.Weather.WindSpeed,
		); err != nil {
			return fmt.Errorf("upsert reading station=%d s_no=%d: %w", r.StationID, r.SequenceNumber, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Get loads a single reading by its natural key.
func (s *Store) Get(ctx context.Context, key domain.ReadingKey) (domain.Reading, error) {
	var (
		r       domain.Reading
		battery string
	)
	err := s.db.QueryRowContext(ctx, s.getSQL, key.StationID, key.SequenceNumber).Scan(
		&r.StationID,
		&r.SequenceNumber,
		&battery,
		&r.StatusTimestamp,
		&r.Weather.Humidity,
		&r.Weather.Temperature,
		&r.Weather.WindSpeed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reading{}, ErrNotFound
	}
	if err != nil {
		return domain.Reading{}, fmt.Errorf("get reading: %w", err)
	}
	r.BatteryStatus = domain.BatteryStatus(battery)
	return r, nil
}

// Count returns the number of stored readings.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countReadingsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("count readings: %w", err)
	}
	return n, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL. The embedded
// queries contain no literal question marks.
func rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var sb strings.Builder
	sb.Grow(len(query) + 16)
	n := 0
	for _, ch := range query {
		if ch != '?' {
			sb.WriteRune(ch)
			continue
		}
		n++
		sb.WriteByte('$')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}
