package frames

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/fieldwatch/telemetry-hub/domain"
)

// Frame is one inbound transport message. Entries stay raw so that a
// malformed entry can be skipped without discarding its siblings.
type Frame struct {
	Entries []json.RawMessage `json:"entries"`
}

type entry struct {
	NAdr      *int     `json:"nAdr"`
	Parameter string   `json:"parameter"`
	Value     *float64 `json:"value"`
}

// ParsedReading is the normalized form of one frame entry: the reading
// itself plus the network identity the sensor was discovered under.
type ParsedReading struct {
	Reading   domain.Reading
	NetworkID int
}

// Decode unmarshals a raw frame payload. A payload that is not a frame at
// all fails with ErrParse.
func Decode(payload []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: malformed frame: %s", domain.ErrParse, err.Error())
	}
	return f, nil
}

// ParseEntry normalizes a single raw frame entry into a reading. The
// timestamp is the frame's receipt instant, never a field from the frame,
// since the source protocol does not guarantee synchronized clocks.
func ParseEntry(raw json.RawMessage, receivedAt time.Time) (ParsedReading, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return ParsedReading{}, fmt.Errorf("%w: malformed entry: %s", domain.ErrParse, err.Error())
	}

	if e.NAdr == nil {
		return ParsedReading{}, fmt.Errorf("%w: entry has no network address", domain.ErrParse)
	}

	sensorID := *e.NAdr - domain.NetworkAddressOffset
	if sensorID < 1 {
		return ParsedReading{}, fmt.Errorf("%w: network address %d is below the sensor address space", domain.ErrParse, *e.NAdr)
	}

	p, err := domain.ParseParameter(e.Parameter)
	if err != nil {
		return ParsedReading{}, err
	}

	if e.Value == nil || math.IsNaN(*e.Value) || math.IsInf(*e.Value, 0) {
		return ParsedReading{}, fmt.Errorf("%w: entry for sensor %d has no usable value", domain.ErrParse, sensorID)
	}

	return ParsedReading{
		Reading: domain.Reading{
			SensorID:  sensorID,
			Parameter: p,
			Value:     *e.Value,
			Timestamp: receivedAt,
		},
		NetworkID: *e.NAdr,
	}, nil
}
