package query

import (
	"time"

	"github.com/fieldwatch/telemetry-hub/domain"
)

// OfflineThreshold is the silence after which a sensor is considered to
// have been offline between two samples.
const OfflineThreshold = time.Hour

// ReconstructGaps walks an ascending series and inserts one synthetic null
// sample at prev+1ms wherever the gap between consecutive samples exceeds
// the threshold. Charts then break the plotted line across the outage
// instead of interpolating over it. The first sample has no predecessor
// and is never gap-checked. Applied at render time only; stored history is
// untouched.
func ReconstructGaps(series domain.Series, threshold time.Duration) domain.Series {
	if len(series) < 2 {
		return series
	}

	out := make(domain.Series, 0, len(series))
	out = append(out, series[0])

	for i := 1; i < len(series); i++ {
		prev := series[i-1]
		if series[i].Timestamp.Sub(prev.Timestamp) > threshold {
			out = append(out, domain.SeriesSample{
				Value:     nil,
				Timestamp: prev.Timestamp.Add(time.Millisecond),
			})
		}
		out = append(out, series[i])
	}

	return out
}
