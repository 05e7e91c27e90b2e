package query

import (
	"context"
	"fmt"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/fieldwatch/telemetry-hub/domain"
)

var tracer = otel.Tracer("telemetry-hub/query")

type SnapshotSource interface {
	GetAll(ctx context.Context, sensorIDs []int, parameters []domain.Parameter) (domain.Snapshot, error)
}

type RangeSource interface {
	QueryRange(ctx context.Context, sensorIDs []int, parameter *domain.Parameter, from, to time.Time) ([]domain.Reading, error)
}

type SensorDirectory interface {
	Missing(ctx context.Context, sensorIDs []int) ([]int, error)
}

// Service answers the two read paths dashboards depend on: the current
// snapshot per sensor and parameter, and time-bounded history.
type Service struct {
	cache   SnapshotSource
	store   RangeSource
	sensors SensorDirectory
}

func New(cache SnapshotSource, store RangeSource, sensors SensorDirectory) *Service {
	return &Service{
		cache:   cache,
		store:   store,
		sensors: sensors,
	}
}

// GetSnapshot reads the latest known value per requested sensor and every
// parameter from the cache. Absent entries surface as nil, never zero.
func (s *Service) GetSnapshot(ctx context.Context, sensorIDs []int) (domain.Snapshot, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-snapshot")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var snapshot domain.Snapshot
	snapshot, err = s.cache.GetAll(ctx, sensorIDs, domain.Parameters())
	return snapshot, err
}

// GetRange reads history between two instants, demultiplexed per sensor and
// parameter. Every requested sensor must be registered; otherwise the whole
// request fails rather than answering partially. A zero to means "now".
func (s *Service) GetRange(ctx context.Context, sensorIDs []int, from, to time.Time) (map[int]map[domain.Parameter]domain.Series, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-range")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var missing []int
	missing, err = s.sensors.Missing(ctx, sensorIDs)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		err = fmt.Errorf("%w: %v", domain.ErrUnknownSensor, missing)
		return nil, err
	}

	var readings []domain.Reading
	readings, err = s.store.QueryRange(ctx, sensorIDs, nil, from, to)
	if err != nil {
		return nil, err
	}

	result := map[int]map[domain.Parameter]domain.Series{}
	for _, id := range sensorIDs {
		result[id] = map[domain.Parameter]domain.Series{}
	}
	for _, r := range readings {
		byParam, ok := result[r.SensorID]
		if !ok {
			continue
		}
		v := r.Value
		byParam[r.Parameter] = append(byParam[r.Parameter], domain.SeriesSample{
			Value:     &v,
			Timestamp: r.Timestamp,
		})
	}

	return result, nil
}
