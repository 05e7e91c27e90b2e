package domain

import "time"

// NetworkAddressOffset separates logical sensor numbering from the network
// addressing used by the field gateway.
const NetworkAddressOffset = 47

type Sensor struct {
	ID        int    `json:"id"`
	NetworkID int    `json:"networkId"`
	Name      string `json:"name"`
}

// Reading is a single normalized telemetry sample. Readings are immutable
// once written; duplicates from transport redelivery are tolerated.
type Reading struct {
	SensorID  int       `json:"sensorId"`
	Parameter Parameter `json:"parameter"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Entry is the most recent value known for one (sensor, parameter) pair.
// A nil *Entry means no value has ever been seen, which is distinct from a
// value of zero.
type Entry struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot holds the latest known entries per sensor and parameter.
type Snapshot map[int]map[Parameter]*Entry

// Entry returns the entry for the given key, or nil when no value is known.
func (s Snapshot) Entry(sensorID int, p Parameter) *Entry {
	if byParam, ok := s[sensorID]; ok {
		return byParam[p]
	}
	return nil
}

// SeriesSample is one point in a rendered time series. A nil Value marks a
// synthetic sample inserted to break a plotted line across an outage.
type SeriesSample struct {
	Value     *float64  `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Series []SeriesSample

type Group struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}
