package ingest

import (
	"context"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/fieldwatch/telemetry-hub/domain"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/application/frames"
	"github.com/fieldwatch/telemetry-hub/internal/pkg/infrastructure/metrics"
)

var tracer = otel.Tracer("telemetry-hub/ingest")

type SensorRegistry interface {
	Register(ctx context.Context, sensorID, networkID int) error
}

type LatestValueCache interface {
	Set(ctx context.Context, sensorID int, p domain.Parameter, value float64, ts time.Time) error
}

type TimeSeriesStore interface {
	Append(ctx context.Context, r domain.Reading) error
}

// Pipeline normalizes inbound frames and fans each reading out to the
// sensor registry, the latest-value cache and the time-series store, in
// that order. The cache is written before the durable append on purpose:
// dashboards see fresh values immediately, and a crash in between loses at
// most one history point that the next frame overwrites anyway.
type Pipeline struct {
	registry SensorRegistry
	cache    LatestValueCache
	store    TimeSeriesStore
	metrics  *metrics.Metrics
}

func New(registry SensorRegistry, cache LatestValueCache, store TimeSeriesStore, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		registry: registry,
		cache:    cache,
		store:    store,
		metrics:  m,
	}
}

// Ingest processes every entry of one raw frame. Entry failures are logged
// and counted but never abort the remaining entries; only a payload that is
// not a frame at all is reported back to the transport.
func (p *Pipeline) Ingest(ctx context.Context, payload []byte, receivedAt time.Time) error {
	var err error

	ctx, span := tracer.Start(ctx, "ingest-frame")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	log := logging.GetFromContext(ctx)

	var frame frames.Frame
	frame, err = frames.Decode(payload)
	if err != nil {
		p.metrics.EntryRejected("frame")
		return err
	}

	for _, raw := range frame.Entries {
		pr, entryErr := frames.ParseEntry(raw, receivedAt)
		if entryErr != nil {
			log.Warn().Err(entryErr).Msg("skipping frame entry")
			p.metrics.EntryRejected("parse")
			continue
		}

		reading := pr.Reading
		entryLog := log.With().Int("sensor_id", reading.SensorID).Str("parameter", reading.Parameter.String()).Logger()

		if entryErr := p.registry.Register(ctx, reading.SensorID, pr.NetworkID); entryErr != nil {
			entryLog.Error().Err(entryErr).Msg("failed to register sensor, dropping entry")
			p.metrics.EntryRejected("registry")
			continue
		}

		if entryErr := p.cache.Set(ctx, reading.SensorID, reading.Parameter, reading.Value, reading.Timestamp); entryErr != nil {
			entryLog.Error().Err(entryErr).Msg("failed to update latest value cache, dropping entry")
			p.metrics.EntryRejected("cache")
			continue
		}

		start := time.Now()
		if entryErr := p.store.Append(ctx, reading); entryErr != nil {
			// cache already holds this value; the next frame overwrites it
			entryLog.Error().Err(entryErr).Msg("failed to append reading, dropping entry")
			p.metrics.EntryRejected("store")
			continue
		}
		p.metrics.ObserveAppend(time.Since(start))
		p.metrics.ReadingIngested()
	}

	return nil
}
