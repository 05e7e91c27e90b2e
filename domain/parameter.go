package domain

import (
	"fmt"
)

// Parameter is the closed set of measured quantities a sensor can report.
type Parameter int

const (
	Temperature Parameter = iota
	Humidity
	RSSI
	Voltage
)

var parameterNames = map[Parameter]string{
	Temperature: "temperature",
	Humidity:    "humidity",
	RSSI:        "rssi",
	Voltage:     "voltage",
}

var parametersByName = map[string]Parameter{
	"temperature": Temperature,
	"humidity":    Humidity,
	"rssi":        RSSI,
	"voltage":     Voltage,
}

// Parameters lists all parameters in storage order.
func Parameters() []Parameter {
	return []Parameter{Temperature, Humidity, RSSI, Voltage}
}

// ParseParameter maps a parameter identifier to its enum value via an
// exact-match table. Unknown identifiers fail with ErrParse.
func ParseParameter(id string) (Parameter, error) {
	p, ok := parametersByName[id]
	if !ok {
		return 0, fmt.Errorf("%w: unknown parameter identifier %q", ErrParse, id)
	}
	return p, nil
}

func (p Parameter) String() string {
	if name, ok := parameterNames[p]; ok {
		return name
	}
	return fmt.Sprintf("parameter(%d)", int(p))
}

// Format renders a value with the parameter's fixed decimal places and
// unit suffix. Presentation only; numeric values carry the semantics.
func (p Parameter) Format(value float64) string {
	switch p {
	case Temperature:
		return fmt.Sprintf("%.2f°C", value)
	case Humidity:
		return fmt.Sprintf("%.1f%%", value)
	case RSSI:
		return fmt.Sprintf("%.0fdB", value)
	case Voltage:
		return fmt.Sprintf("%.2fV", value)
	}
	return fmt.Sprintf("%.2f", value)
}

func (p Parameter) MarshalText() ([]byte, error) {
	name, ok := parameterNames[p]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown parameter %d", int(p))
	}
	return []byte(name), nil
}

func (p *Parameter) UnmarshalText(text []byte) error {
	parsed, err := ParseParameter(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
