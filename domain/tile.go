package domain

import "fmt"

// Operation selects how a tile combines its operands.
type Operation int

const (
	Display Operation = iota
	Difference
)

var operationNames = map[Operation]string{
	Display:    "display",
	Difference: "difference",
}

var operationsByName = map[string]Operation{
	"display":    Display,
	"difference": Difference,
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(%d)", int(o))
}

func (o Operation) MarshalText() ([]byte, error) {
	name, ok := operationNames[o]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown operation %d", int(o))
	}
	return []byte(name), nil
}

func (o *Operation) UnmarshalText(text []byte) error {
	op, err := ParseOperation(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

func ParseOperation(name string) (Operation, error) {
	op, ok := operationsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

// RefType selects whether an operand references a single sensor or a group.
type RefType int

const (
	RefSensor RefType = iota
	RefGroup
)

var refTypeNames = map[RefType]string{
	RefSensor: "sensor",
	RefGroup:  "group",
}

var refTypesByName = map[string]RefType{
	"sensor": RefSensor,
	"group":  RefGroup,
}

func (r RefType) String() string {
	if name, ok := refTypeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reftype(%d)", int(r))
}

func (r RefType) MarshalText() ([]byte, error) {
	name, ok := refTypeNames[r]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown ref type %d", int(r))
	}
	return []byte(name), nil
}

func (r *RefType) UnmarshalText(text []byte) error {
	rt, err := ParseRefType(string(text))
	if err != nil {
		return err
	}
	*r = rt
	return nil
}

func ParseRefType(name string) (RefType, error) {
	rt, ok := refTypesByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown operand reference type %q", name)
	}
	return rt, nil
}

// Reduction is the aggregate applied to a group operand's member values.
type Reduction int

const (
	ReduceValue Reduction = iota
	ReduceAverage
	ReduceMin
	ReduceMax
)

var reductionNames = map[Reduction]string{
	ReduceValue:   "value",
	ReduceAverage: "average",
	ReduceMin:     "min",
	ReduceMax:     "max",
}

var reductionsByName = map[string]Reduction{
	"value":   ReduceValue,
	"average": ReduceAverage,
	"min":     ReduceMin,
	"max":     ReduceMax,
}

func (r Reduction) String() string {
	if name, ok := reductionNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reduction(%d)", int(r))
}

func (r Reduction) MarshalText() ([]byte, error) {
	name, ok := reductionNames[r]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown reduction %d", int(r))
	}
	return []byte(name), nil
}

func (r *Reduction) UnmarshalText(text []byte) error {
	red, err := ParseReduction(string(text))
	if err != nil {
		return err
	}
	*r = red
	return nil
}

func ParseReduction(name string) (Reduction, error) {
	red, ok := reductionsByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown reduction %q", name)
	}
	return red, nil
}

// Operand is one input to a tile computation.
type Operand struct {
	RefType   RefType   `json:"refType"`
	RefID     int       `json:"refId"`
	Reduction Reduction `json:"reduction"`
}

// Tile is a persisted dashboard computation over one or two operands.
type Tile struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Parameter   Parameter `json:"parameter"`
	Operation   Operation `json:"operation"`
	Arg1        Operand   `json:"arg1"`
	Arg2        *Operand  `json:"arg2,omitempty"`
	ShowGraphic bool      `json:"showGraphic"`
}

// Validate checks the structural invariants of a tile configuration:
// difference tiles need a second operand, display tiles must not carry one,
// and a sensor operand only supports the identity reduction.
func (t Tile) Validate() error {
	switch t.Operation {
	case Display:
		if t.Arg2 != nil {
			return fmt.Errorf("display tile %d must not have a second operand", t.ID)
		}
	case Difference:
		if t.Arg2 == nil {
			return fmt.Errorf("difference tile %d requires a second operand", t.ID)
		}
	}
	if t.Arg1.RefType == RefSensor && t.Arg1.Reduction != ReduceValue {
		return fmt.Errorf("tile %d: sensor operands only support the value reduction", t.ID)
	}
	if t.Arg2 != nil && t.Arg2.RefType == RefSensor && t.Arg2.Reduction != ReduceValue {
		return fmt.Errorf("tile %d: sensor operands only support the value reduction", t.ID)
	}
	return nil
}
