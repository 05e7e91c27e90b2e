package ingest

import (
	"context"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"

	"github.com/fieldwatch/telemetry-hub/domain"
)

type LatestReadingSource interface {
	QuerySnapshot(ctx context.Context, sensorIDs []int) ([]domain.Reading, error)
}

// RebuildCache repopulates the latest-value cache from durable history by
// replaying the most recent reading per (sensor, parameter) key. The cache
// is a derived accelerator, never the source of truth, so a lost or wiped
// cache store is recovered with this and nothing else.
func RebuildCache(ctx context.Context, src LatestReadingSource, cache LatestValueCache) (int, error) {
	log := logging.GetFromContext(ctx)

	readings, err := src.QuerySnapshot(ctx, nil)
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, r := range readings {
		if err := cache.Set(ctx, r.SensorID, r.Parameter, r.Value, r.Timestamp); err != nil {
			log.Error().Err(err).Int("sensor_id", r.SensorID).Msg("failed to restore cache entry")
			continue
		}
		restored++
	}

	log.Info().Int("restored", restored).Msg("latest value cache rebuilt")

	return restored, nil
}
