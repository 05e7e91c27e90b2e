package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/fieldwatch/telemetry-hub/domain"
)

var tracer = otel.Tracer("telemetry-hub/storage")

// Database is the durable side of the system: the append-only reading
// history plus the sensor, group and tile registries. Readings are never
// updated or deleted.
type Database struct {
	db *sql.DB
}

func Connect(ctx context.Context, connString string) (*Database, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %s", err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %s", err.Error())
	}

	return &Database{db: db}, nil
}

// NewDatabase wraps an existing handle. Used by tests.
func NewDatabase(db *sql.DB) *Database {
	return &Database{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS sensors (
	sensor_id integer PRIMARY KEY,
	network_id integer NOT NULL,
	name text NOT NULL
);

CREATE TABLE IF NOT EXISTS readings (
	sensor_id integer NOT NULL,
	parameter text NOT NULL,
	value double precision NOT NULL,
	ts timestamptz NOT NULL
);

CREATE INDEX IF NOT EXISTS readings_key_ts_idx ON readings (sensor_id, parameter, ts);

CREATE TABLE IF NOT EXISTS groups (
	id serial PRIMARY KEY,
	name text NOT NULL,
	color text NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_sensors (
	group_id integer NOT NULL REFERENCES groups (id),
	sensor_id integer NOT NULL REFERENCES sensors (sensor_id),
	PRIMARY KEY (group_id, sensor_id)
);

CREATE TABLE IF NOT EXISTS tiles (
	id serial PRIMARY KEY,
	title text NOT NULL,
	parameter text NOT NULL,
	operation text NOT NULL,
	arg1_ref_type text NOT NULL,
	arg1_ref_id integer NOT NULL,
	arg1_reduction text NOT NULL,
	arg2_ref_type text,
	arg2_ref_id integer,
	arg2_reduction text,
	show_graphic boolean NOT NULL DEFAULT false
);
`

func (d *Database) Initialize(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %s", err.Error())
	}
	return nil
}

// Register inserts a sensor on first sighting. The conditional insert is
// what makes concurrent registration of the same sensor safe, also across
// process instances; an existing row, including a user-assigned name, is
// left untouched.
func (d *Database) Register(ctx context.Context, sensorID, networkID int) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO sensors (sensor_id, network_id, name) VALUES ($1, $2, $3) ON CONFLICT (sensor_id) DO NOTHING",
		sensorID, networkID, fmt.Sprintf("Sensor %d", sensorID),
	)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// Missing returns the subset of the given ids that is not in the registry.
func (d *Database) Missing(ctx context.Context, sensorIDs []int) ([]int, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT sensor_id FROM sensors WHERE sensor_id = ANY($1)",
		pq.Array(toInt64(sensorIDs)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	known := map[int]bool{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
		}
		known[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	missing := []int{}
	for _, id := range sensorIDs {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// Append inserts one reading. Pure insert; transport redeliveries land as
// duplicate rows and are tolerated.
func (d *Database) Append(ctx context.Context, r domain.Reading) error {
	_, err := d.db.ExecContext(ctx,
		"INSERT INTO readings (sensor_id, parameter, value, ts) VALUES ($1, $2, $3, $4)",
		r.SensorID, r.Parameter.String(), r.Value, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	return nil
}

// QueryRange reads history with exclusive bounds, ascending by timestamp.
// A zero to defaults to now. Bounds that are reversed or start in the
// future fail with ErrInvalidRange before any row is read.
func (d *Database) QueryRange(ctx context.Context, sensorIDs []int, parameter *domain.Parameter, from, to time.Time) ([]domain.Reading, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-range")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	now := time.Now()
	if to.IsZero() {
		to = now
	}
	if from.After(now) || to.Before(from) {
		err = fmt.Errorf("%w: from=%s to=%s", domain.ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
		return nil, err
	}

	query := "SELECT sensor_id, parameter, value, ts FROM readings WHERE sensor_id = ANY($1) AND ts > $2 AND ts < $3"
	args := []any{pq.Array(toInt64(sensorIDs)), from, to}
	if parameter != nil {
		query += " AND parameter = $4"
		args = append(args, parameter.String())
	}
	query += " ORDER BY ts ASC"

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
		return nil, err
	}
	defer rows.Close()

	var readings []domain.Reading
	readings, err = scanReadings(rows)
	return readings, err
}

// QuerySnapshot returns the latest reading per (sensor, parameter) key,
// for the given sensors or for all of them when none are given. Kept for
// the cache rebuild procedure; the serving path is the cache itself.
func (d *Database) QuerySnapshot(ctx context.Context, sensorIDs []int) ([]domain.Reading, error) {
	query := "SELECT DISTINCT ON (sensor_id, parameter) sensor_id, parameter, value, ts FROM readings"
	args := []any{}
	if len(sensorIDs) > 0 {
		query += " WHERE sensor_id = ANY($1)"
		args = append(args, pq.Array(toInt64(sensorIDs)))
	}
	query += " ORDER BY sensor_id, parameter, ts DESC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	return scanReadings(rows)
}

func scanReadings(rows *sql.Rows) ([]domain.Reading, error) {
	readings := []domain.Reading{}
	for rows.Next() {
		var r domain.Reading
		var parameter string
		if err := rows.Scan(&r.SensorID, &parameter, &r.Value, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
		}
		p, err := domain.ParseParameter(parameter)
		if err != nil {
			return nil, fmt.Errorf("%w: stored reading has unknown parameter %q", domain.ErrStoreUnavailable, parameter)
		}
		r.Parameter = p
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	return readings, nil
}

func toInt64(ids []int) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
