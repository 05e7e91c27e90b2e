package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/fieldwatch/telemetry-hub/domain"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/cache"
)

type fakeDirectory struct {
	known map[int]bool
}

func (f *fakeDirectory) Missing(ctx context.Context, sensorIDs []int) ([]int, error) {
	missing := []int{}
	for _, id := range sensorIDs {
		if !f.known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeRangeSource struct {
	readings []domain.Reading
	queried  bool
}

func (f *fakeRangeSource) QueryRange(ctx context.Context, sensorIDs []int, parameter *domain.Parameter, from, to time.Time) ([]domain.Reading, error) {
	f.queried = true
	return f.readings, nil
}

func TestThatSnapshotSurfacesAbsentEntriesAsNoData(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	lvc := cache.NewMemoryCache()
	ts := time.Date(2023, 6, 12, 9, 30, 0, 0, time.UTC)
	is.NoErr(lvc.Set(ctx, 1, domain.Temperature, 20.5, ts))

	svc := New(lvc, &fakeRangeSource{}, &fakeDirectory{})

	snapshot, err := svc.GetSnapshot(ctx, []int{1, 2})
	is.NoErr(err)

	e := snapshot.Entry(1, domain.Temperature)
	is.True(e != nil)
	is.Equal(e.Value, 20.5)
	is.True(snapshot.Entry(1, domain.Voltage) == nil)
	is.True(snapshot.Entry(2, domain.Temperature) == nil)
}

func TestThatRangeIsDemultiplexedPerSensorAndParameter(t *testing.T) {
	is := is.New(t)

	base := time.Date(2023, 6, 12, 9, 0, 0, 0, time.UTC)
	src := &fakeRangeSource{readings: []domain.Reading{
		{SensorID: 1, Parameter: domain.Temperature, Value: 20, Timestamp: base},
		{SensorID: 1, Parameter: domain.Humidity, Value: 40, Timestamp: base.Add(time.Minute)},
		{SensorID: 2, Parameter: domain.Temperature, Value: 22, Timestamp: base.Add(2 * time.Minute)},
		{SensorID: 1, Parameter: domain.Temperature, Value: 21, Timestamp: base.Add(3 * time.Minute)},
	}}

	svc := New(cache.NewMemoryCache(), src, &fakeDirectory{known: map[int]bool{1: true, 2: true}})

	result, err := svc.GetRange(context.Background(), []int{1, 2}, base.Add(-time.Hour), base.Add(time.Hour))
	is.NoErr(err)

	is.Equal(len(result[1][domain.Temperature]), 2)
	is.Equal(len(result[1][domain.Humidity]), 1)
	is.Equal(len(result[2][domain.Temperature]), 1)
	is.Equal(*result[1][domain.Temperature][1].Value, 21.0)
}

func TestThatAnUnknownSensorFailsTheWholeRequest(t *testing.T) {
	is := is.New(t)

	src := &fakeRangeSource{}
	svc := New(cache.NewMemoryCache(), src, &fakeDirectory{known: map[int]bool{1: true, 2: true}})

	_, err := svc.GetRange(context.Background(), []int{1, 2, 999}, time.Time{}, time.Time{})
	is.True(errors.Is(err, domain.ErrUnknownSensor))
	is.True(!src.queried) // no partial payload was fetched
}

func floatp(v float64) *float64 { return &v }

func TestThatGapsProduceOneSyntheticNullSample(t *testing.T) {
	is := is.New(t)

	epoch := time.UnixMilli(0).UTC()
	series := domain.Series{
		{Value: floatp(1), Timestamp: epoch},
		{Value: floatp(2), Timestamp: epoch.Add(1 * time.Millisecond)},
		{Value: floatp(3), Timestamp: epoch.Add(2 * time.Millisecond)},
		{Value: floatp(4), Timestamp: epoch.Add(4000000 * time.Millisecond)},
	}

	out := ReconstructGaps(series, OfflineThreshold)

	is.Equal(len(out), 5)
	is.True(out[3].Value == nil)
	is.Equal(out[3].Timestamp, epoch.Add(3*time.Millisecond)) // prev+1ms
	is.Equal(*out[4].Value, 4.0)
}

func TestThatTheFirstSampleIsNeverGapChecked(t *testing.T) {
	is := is.New(t)

	epoch := time.UnixMilli(0).UTC()
	series := domain.Series{
		{Value: floatp(1), Timestamp: epoch.Add(100 * time.Hour)},
		{Value: floatp(2), Timestamp: epoch.Add(100*time.Hour + time.Minute)},
	}

	out := ReconstructGaps(series, OfflineThreshold)
	is.Equal(len(out), 2)
}

func TestThatShortSeriesPassThroughUnchanged(t *testing.T) {
	is := is.New(t)

	is.Equal(len(ReconstructGaps(nil, OfflineThreshold)), 0)

	single := domain.Series{{Value: floatp(1), Timestamp: time.Now()}}
	is.Equal(len(ReconstructGaps(single, OfflineThreshold)), 1)
}
