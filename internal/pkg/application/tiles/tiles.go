package tiles

import (
	"context"
	"fmt"
	"math"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"

	"github.com/fieldwatch/telemetry-hub/domain"
)

var tracer = otel.Tracer("telemetry-hub/tiles")

// NotAvailable is the display sentinel for a tile whose operands have no
// usable data. Distinct from a numeric zero by definition.
const NotAvailable = "N/A"

type GroupDirectory interface {
	Members(ctx context.Context, groupID int) ([]int, error)
}

type SnapshotSource interface {
	GetSnapshot(ctx context.Context, sensorIDs []int) (domain.Snapshot, error)
}

type SensorDirectory interface {
	Missing(ctx context.Context, sensorIDs []int) ([]int, error)
}

// Result is one evaluated tile. NumericValue is nil when no value could be
// computed; DisplayValue then carries the not-available sentinel.
type Result struct {
	DisplayValue string   `json:"displayValue"`
	NumericValue *float64 `json:"numericValue"`
}

// Evaluator computes configured dashboard metrics from snapshot data.
type Evaluator struct {
	groups    GroupDirectory
	snapshots SnapshotSource
	sensors   SensorDirectory
}

func New(groups GroupDirectory, snapshots SnapshotSource, sensors SensorDirectory) *Evaluator {
	return &Evaluator{
		groups:    groups,
		snapshots: snapshots,
		sensors:   sensors,
	}
}

// Evaluate computes a tile against an already-fetched snapshot.
func (e *Evaluator) Evaluate(ctx context.Context, tile domain.Tile, snapshot domain.Snapshot) (Result, error) {
	if err := tile.Validate(); err != nil {
		return Result{}, err
	}

	v1, err := e.resolve(ctx, tile.Arg1, tile.Parameter, snapshot)
	if err != nil {
		return Result{}, err
	}

	value := v1
	if tile.Operation == domain.Difference {
		v2, err := e.resolve(ctx, *tile.Arg2, tile.Parameter, snapshot)
		if err != nil {
			return Result{}, err
		}
		// a missing operand never silently defaults to zero
		if v1 == nil || v2 == nil {
			value = nil
		} else {
			diff := *v1 - *v2
			value = &diff
		}
	}

	if value == nil || math.IsNaN(*value) {
		return Result{DisplayValue: NotAvailable}, nil
	}

	return Result{
		DisplayValue: tile.Parameter.Format(*value),
		NumericValue: value,
	}, nil
}

// EvaluateLive gathers the snapshot covering the tile's operands and then
// evaluates it. This is the path the HTTP layer uses.
func (e *Evaluator) EvaluateLive(ctx context.Context, tile domain.Tile) (Result, error) {
	var err error

	ctx, span := tracer.Start(ctx, "evaluate-tile")
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var sensorIDs []int
	sensorIDs, err = e.operandSensors(ctx, tile)
	if err != nil {
		return Result{}, err
	}

	// an operand referencing a sensor that was never registered fails the
	// whole evaluation; the not-available sentinel is reserved for known
	// sensors without data
	var missing []int
	missing, err = e.sensors.Missing(ctx, sensorIDs)
	if err != nil {
		return Result{}, err
	}
	if len(missing) > 0 {
		err = fmt.Errorf("%w: %v", domain.ErrUnknownSensor, missing)
		return Result{}, err
	}

	var snapshot domain.Snapshot
	snapshot, err = e.snapshots.GetSnapshot(ctx, sensorIDs)
	if err != nil {
		return Result{}, err
	}

	var result Result
	result, err = e.Evaluate(ctx, tile, snapshot)
	return result, err
}

func (e *Evaluator) operandSensors(ctx context.Context, tile domain.Tile) ([]int, error) {
	operands := []domain.Operand{tile.Arg1}
	if tile.Arg2 != nil {
		operands = append(operands, *tile.Arg2)
	}

	seen := map[int]bool{}
	ids := []int{}
	for _, op := range operands {
		switch op.RefType {
		case domain.RefSensor:
			if !seen[op.RefID] {
				seen[op.RefID] = true
				ids = append(ids, op.RefID)
			}
		case domain.RefGroup:
			members, err := e.groups.Members(ctx, op.RefID)
			if err != nil {
				return nil, err
			}
			for _, id := range members {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

// resolve reduces one operand to a numeric value, or nil when no data is
// present. Group reductions drop null and NaN member values first; a group
// with nothing left yields nil.
func (e *Evaluator) resolve(ctx context.Context, op domain.Operand, p domain.Parameter, snapshot domain.Snapshot) (*float64, error) {
	if op.RefType == domain.RefSensor {
		entry := snapshot.Entry(op.RefID, p)
		if entry == nil || math.IsNaN(entry.Value) {
			return nil, nil
		}
		v := entry.Value
		return &v, nil
	}

	members, err := e.groups.Members(ctx, op.RefID)
	if err != nil {
		return nil, err
	}

	present := []float64{}
	for _, id := range members {
		if entry := snapshot.Entry(id, p); entry != nil && !math.IsNaN(entry.Value) {
			present = append(present, entry.Value)
		}
	}
	if len(present) == 0 {
		return nil, nil
	}

	var v float64
	switch op.Reduction {
	case domain.ReduceAverage:
		sum := 0.0
		for _, x := range present {
			sum += x
		}
		v = sum / float64(len(present))
	case domain.ReduceMin:
		v = present[0]
		for _, x := range present[1:] {
			if x < v {
				v = x
			}
		}
	case domain.ReduceMax:
		v = present[0]
		for _, x := range present[1:] {
			if x > v {
				v = x
			}
		}
	default:
		return nil, fmt.Errorf("reduction %s is not valid for a group operand", op.Reduction)
	}

	return &v, nil
}
