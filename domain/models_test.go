package domain

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/matryer/is"
)

func TestThatEveryParameterRoundTripsThroughItsIdentifier(t *testing.T) {
	is := is.New(t)

	for _, p := range Parameters() {
		parsed, err := ParseParameter(p.String())
		is.NoErr(err)
		is.Equal(parsed, p)
	}
}

func TestThatAnUnknownIdentifierFailsWithParseError(t *testing.T) {
	is := is.New(t)

	_, err := ParseParameter("co2")
	is.True(errors.Is(err, ErrParse))
}

func TestParameterFormatting(t *testing.T) {
	is := is.New(t)

	is.Equal(Temperature.Format(2.5), "2.50°C")
	is.Equal(Humidity.Format(44.25), "44.2%")
	is.Equal(RSSI.Format(-61.4), "-61dB")
	is.Equal(Voltage.Format(3.1), "3.10V")
}

func TestThatParametersWorkAsJSONMapKeys(t *testing.T) {
	is := is.New(t)

	raw, err := json.Marshal(map[Parameter]float64{Temperature: 21.5})
	is.NoErr(err)
	is.Equal(string(raw), `{"temperature":21.5}`)

	var decoded map[Parameter]float64
	is.NoErr(json.Unmarshal(raw, &decoded))
	is.Equal(decoded[Temperature], 21.5)
}

func TestThatADisplayTileMustNotHaveASecondOperand(t *testing.T) {
	is := is.New(t)

	tile := Tile{
		Operation: Display,
		Arg1:      Operand{RefType: RefSensor, RefID: 1},
		Arg2:      &Operand{RefType: RefSensor, RefID: 2},
	}
	is.True(tile.Validate() != nil)
}

func TestThatADifferenceTileRequiresASecondOperand(t *testing.T) {
	is := is.New(t)

	tile := Tile{
		Operation: Difference,
		Arg1:      Operand{RefType: RefSensor, RefID: 1},
	}
	is.True(tile.Validate() != nil)
}

func TestThatASensorOperandOnlySupportsTheValueReduction(t *testing.T) {
	is := is.New(t)

	tile := Tile{
		Operation: Display,
		Arg1:      Operand{RefType: RefSensor, RefID: 1, Reduction: ReduceAverage},
	}
	is.True(tile.Validate() != nil)

	tile.Arg1.Reduction = ReduceValue
	is.NoErr(tile.Validate())
}

func TestThatSnapshotDistinguishesAbsentFromZero(t *testing.T) {
	is := is.New(t)

	s := Snapshot{
		1: {Temperature: &Entry{Value: 0}},
	}

	is.True(s.Entry(1, Temperature) != nil) // an explicit zero is data
	is.True(s.Entry(1, Humidity) == nil)
	is.True(s.Entry(2, Temperature) == nil)
}
