package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"github.com/i474232898/solar-radiation-ingestion/internal/solar"
)

// DefaultTable is the destination table for loaded records.
const DefaultTable = "solar_radiation_data"

// wallClockLayout formats range bounds for comparison against the
// timezone-less time column.
const wallClockLayout = "2006-01-02 15:04:05"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ErrInvalidTable is returned for table names that are not plain identifiers.
var ErrInvalidTable = errors.New("invalid table name")

// LoadError reports the record whose INSERT failed. Records before Index
// were committed; records after it were not attempted.
type LoadError struct {
	Index int
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("insert record %d: %v", e.Index, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StoredRecord is a loaded row as read back from the table.
type StoredRecord struct {
	ID int64 `json:"id"`
	solar.Record
	ObservedAt time.Time `json:"-"`
}

// Postgres creates, fills and reads the radiation table.
type Postgres struct {
	db    *sql.DB
	table string

	createSQL string
	insertSQL string
	selectSQL string
}

// Connect opens a lib/pq connection and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgres binds the store to table on db. An empty table selects DefaultTable.
func NewPostgres(db *sql.DB, table string) (*Postgres, error) {
	if table == "" {
		table = DefaultTable
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	quoted := pq.QuoteIdentifier(table)

	return &Postgres{
		db:    db,
		table: table,
		createSQL: `CREATE TABLE IF NOT EXISTS ` + quoted + ` (
			id SERIAL PRIMARY KEY,
			latitude FLOAT NOT NULL,
			longitude FLOAT NOT NULL,
			time TIMESTAMP NOT NULL,
			shortwave_radiation FLOAT,
			direct_radiation FLOAT,
			diffuse_radiation FLOAT,
			direct_normal_irradiance FLOAT,
			global_tilted_irradiance FLOAT
		)`,
		insertSQL: `INSERT INTO ` + quoted + ` (
			latitude, longitude, time, shortwave_radiation, direct_radiation,
			diffuse_radiation, direct_normal_irradiance, global_tilted_irradiance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		selectSQL: `SELECT id, latitude, longitude, time, shortwave_radiation, direct_radiation,
			diffuse_radiation, direct_normal_irradiance, global_tilted_irradiance
		FROM ` + quoted + `
		WHERE time >= $1 AND time <= $2
		ORDER BY time, id
		LIMIT $3`,
	}, nil
}

// Table returns the unquoted destination table name.
func (p *Postgres) Table() string {
	return p.table
}

// Ping checks that the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// EnsureSchema creates the table if it does not exist. Running it again is a no-op.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, p.createSQL); err != nil {
		return fmt.Errorf("create table %s: %w", p.table, err)
	}
	return nil
}

// Load inserts records in order, one auto-committed statement each. It stops
// at the first failure and returns the number of rows inserted before it
// together with a *LoadError. Duplicate timestamps are inserted as new rows.
func (p *Postgres) Load(ctx context.Context, records []solar.Record) (int, error) {
	for i, rec := range records {
		if _, err := p.db.ExecContext(ctx, p.insertSQL, insertArgs(rec)...); err != nil {
			return i, &LoadError{Index: i, Err: err}
		}
	}
	return len(records), nil
}

// insertArgs returns rec's values in insert column order.
func insertArgs(rec solar.Record) []any {
	return []any{
		rec.Latitude,
		rec.Longitude,
		rec.Time,
		nullable(rec.ShortwaveRadiation),
		nullable(rec.DirectRadiation),
		nullable(rec.DiffuseRadiation),
		nullable(rec.DirectNormalIrradiance),
		nullable(rec.GlobalTiltedIrradiance),
	}
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// QueryRecords returns rows whose time lies in [from, to], compared as wall
// clock values, ordered by time and id.
func (p *Postgres) QueryRecords(ctx context.Context, from, to time.Time, limit int) ([]StoredRecord, error) {
	rows, err := p.db.QueryContext(ctx, p.selectSQL, from.Format(wallClockLayout), to.Format(wallClockLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.table, err)
	}
	defer rows.Close()

	var out []StoredRecord
	for rows.Next() {
		var rec StoredRecord
		var shortwave, direct, diffuse, dni, tilted sql.NullFloat64
		if err := rows.Scan(
			&rec.ID,
			&rec.Latitude,
			&rec.Longitude,
			&rec.ObservedAt,
			&shortwave,
			&direct,
			&diffuse,
			&dni,
			&tilted,
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.table, err)
		}
		rec.Time = rec.ObservedAt.Format(solar.TimeLayout)
		rec.ShortwaveRadiation = floatPtr(shortwave)
		rec.DirectRadiation = floatPtr(direct)
		rec.DiffuseRadiation = floatPtr(diffuse)
		rec.DirectNormalIrradiance = floatPtr(dni)
		rec.GlobalTiltedIrradiance = floatPtr(tilted)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
