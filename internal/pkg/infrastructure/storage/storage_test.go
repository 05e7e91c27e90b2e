package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/matryer/is"

	"github.com/fieldwatch/telemetry-hub/domain"
)

func newDatabaseForTesting(t *testing.T) (*Database, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewDatabase(db), mock
}

func TestThatRegisterUsesAConditionalInsertWithADefaultName(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO sensors (sensor_id, network_id, name) VALUES ($1, $2, $3) ON CONFLICT (sensor_id) DO NOTHING",
	)).WithArgs(2, 49, "Sensor 2").WillReturnResult(sqlmock.NewResult(0, 1))

	is.NoErr(d.Register(context.Background(), 2, 49))
	is.NoErr(mock.ExpectationsWereMet())
}

func TestThatRegisterIsANoOpWhenTheSensorExists(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectExec("INSERT INTO sensors").
		WithArgs(2, 49, "Sensor 2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	is.NoErr(d.Register(context.Background(), 2, 49))
	is.NoErr(mock.ExpectationsWereMet())
}

func TestThatAppendIsAPureInsert(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	ts := time.Date(2023, 6, 12, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO readings (sensor_id, parameter, value, ts) VALUES ($1, $2, $3, $4)",
	)).WithArgs(2, "temperature", 21.5, ts).WillReturnResult(sqlmock.NewResult(0, 1))

	is.NoErr(d.Append(context.Background(), domain.Reading{
		SensorID:  2,
		Parameter: domain.Temperature,
		Value:     21.5,
		Timestamp: ts,
	}))
	is.NoErr(mock.ExpectationsWereMet())
}

func TestThatAppendWrapsDriverFailuresAsStoreUnavailable(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectExec("INSERT INTO readings").WillReturnError(errors.New("connection refused"))

	err := d.Append(context.Background(), domain.Reading{SensorID: 2, Parameter: domain.Temperature})
	is.True(errors.Is(err, domain.ErrStoreUnavailable))
}

func TestThatQueryRangeUsesExclusiveBoundsAscending(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	from := time.Date(2023, 6, 12, 9, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT sensor_id, parameter, value, ts FROM readings WHERE sensor_id = ANY($1) AND ts > $2 AND ts < $3 ORDER BY ts ASC",
	)).WithArgs(sqlmock.AnyArg(), from, to).WillReturnRows(
		sqlmock.NewRows([]string{"sensor_id", "parameter", "value", "ts"}).
			AddRow(2, "temperature", 20.1, from.Add(time.Minute)).
			AddRow(2, "temperature", 20.4, from.Add(2*time.Minute)),
	)

	readings, err := d.QueryRange(context.Background(), []int{2}, nil, from, to)
	is.NoErr(err)
	is.Equal(len(readings), 2)
	is.Equal(readings[0].Value, 20.1)
	is.True(readings[0].Timestamp.Before(readings[1].Timestamp))
	is.NoErr(mock.ExpectationsWereMet())
}

func TestThatQueryRangeFiltersOnParameterWhenGiven(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	from := time.Date(2023, 6, 12, 9, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)
	p := domain.Voltage

	mock.ExpectQuery(regexp.QuoteMeta("AND parameter = $4 ORDER BY ts ASC")).
		WithArgs(sqlmock.AnyArg(), from, to, "voltage").
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id", "parameter", "value", "ts"}))

	_, err := d.QueryRange(context.Background(), []int{2}, &p, from, to)
	is.NoErr(err)
	is.NoErr(mock.ExpectationsWereMet())
}

func TestThatAReversedRangeFailsWithInvalidRange(t *testing.T) {
	is := is.New(t)
	d, _ := newDatabaseForTesting(t)

	from := time.Date(2023, 6, 12, 9, 0, 0, 0, time.UTC)
	to := from.Add(-time.Minute)

	_, err := d.QueryRange(context.Background(), []int{2}, nil, from, to)
	is.True(errors.Is(err, domain.ErrInvalidRange))
}

func TestThatAFutureFromFailsWithInvalidRange(t *testing.T) {
	is := is.New(t)
	d, _ := newDatabaseForTesting(t)

	from := time.Now().Add(time.Hour)

	_, err := d.QueryRange(context.Background(), []int{2}, nil, from, time.Time{})
	is.True(errors.Is(err, domain.ErrInvalidRange))
}

func TestThatMissingReturnsOnlyUnregisteredSensors(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT sensor_id FROM sensors WHERE sensor_id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id"}).AddRow(1).AddRow(2))

	missing, err := d.Missing(context.Background(), []int{1, 2, 999})
	is.NoErr(err)
	is.Equal(missing, []int{999})
}

func TestThatQuerySnapshotSelectsTheLatestReadingPerKey(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	ts := time.Date(2023, 6, 12, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT DISTINCT ON (sensor_id, parameter) sensor_id, parameter, value, ts FROM readings ORDER BY sensor_id, parameter, ts DESC",
	)).WillReturnRows(
		sqlmock.NewRows([]string{"sensor_id", "parameter", "value", "ts"}).
			AddRow(2, "temperature", 21.5, ts).
			AddRow(2, "voltage", 3.1, ts),
	)

	readings, err := d.QuerySnapshot(context.Background(), nil)
	is.NoErr(err)
	is.Equal(len(readings), 2)
	is.NoErr(mock.ExpectationsWereMet())
}

func TestThatTileLoadsWithASecondOperand(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectQuery("SELECT id, title, parameter, operation").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "parameter", "operation",
			"arg1_ref_type", "arg1_ref_id", "arg1_reduction",
			"arg2_ref_type", "arg2_ref_id", "arg2_reduction",
			"show_graphic",
		}).AddRow(4, "Inside vs outside", "temperature", "difference",
			"sensor", 5, "value",
			"group", 7, "average",
			true))

	tile, err := d.Tile(context.Background(), 4)
	is.NoErr(err)
	is.Equal(tile.Operation, domain.Difference)
	is.Equal(tile.Arg1.RefID, 5)
	is.True(tile.Arg2 != nil)
	is.Equal(tile.Arg2.RefType, domain.RefGroup)
	is.Equal(tile.Arg2.Reduction, domain.ReduceAverage)
	is.NoErr(tile.Validate())
}

func TestThatAMissingTileFailsWithNotFound(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectQuery("SELECT id, title, parameter, operation").
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := d.Tile(context.Background(), 99)
	is.True(errors.Is(err, domain.ErrNotFound))
}

func TestThatAnEmptyButExistingGroupHasNoMembers(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectQuery("SELECT sensor_id FROM group_sensors").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id"}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	members, err := d.Members(context.Background(), 7)
	is.NoErr(err)
	is.Equal(len(members), 0)
}

func TestThatAnUnknownGroupFailsWithNotFound(t *testing.T) {
	is := is.New(t)
	d, mock := newDatabaseForTesting(t)

	mock.ExpectQuery("SELECT sensor_id FROM group_sensors").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"sensor_id"}))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := d.Members(context.Background(), 42)
	is.True(errors.Is(err, domain.ErrNotFound))
}
