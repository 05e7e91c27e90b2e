package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldwatch/telemetry-hub/domain"
)

// Members lists the sensor ids belonging to a group, in id order.
func (d *Database) Members(ctx context.Context, groupID int) ([]int, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT sensor_id FROM group_sensors WHERE group_id = $1 ORDER BY sensor_id",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	members := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	if len(members) == 0 {
		var exists bool
		err := d.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)", groupID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
		}
		if !exists {
			return nil, fmt.Errorf("%w: group %d", domain.ErrNotFound, groupID)
		}
	}

	return members, nil
}

// Tile loads one persisted tile definition.
func (d *Database) Tile(ctx context.Context, id int) (domain.Tile, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, title, parameter, operation,
			arg1_ref_type, arg1_ref_id, arg1_reduction,
			arg2_ref_type, arg2_ref_id, arg2_reduction,
			show_graphic
		FROM tiles WHERE id = $1`,
		id,
	)

	var t domain.Tile
	var parameter, operation, arg1RefType, arg1Reduction string
	var arg2RefType, arg2Reduction sql.NullString
	var arg2RefID sql.NullInt64

	err := row.Scan(&t.ID, &t.Title, &parameter, &operation,
		&arg1RefType, &t.Arg1.RefID, &arg1Reduction,
		&arg2RefType, &arg2RefID, &arg2Reduction,
		&t.ShowGraphic,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Tile{}, fmt.Errorf("%w: tile %d", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Tile{}, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	if t.Parameter, err = domain.ParseParameter(parameter); err != nil {
		return domain.Tile{}, fmt.Errorf("tile %d: %s", id, err.Error())
	}
	if t.Operation, err = domain.ParseOperation(operation); err != nil {
		return domain.Tile{}, fmt.Errorf("tile %d: %s", id, err.Error())
	}
	if t.Arg1.RefType, err = domain.ParseRefType(arg1RefType); err != nil {
		return domain.Tile{}, fmt.Errorf("tile %d: %s", id, err.Error())
	}
	if t.Arg1.Reduction, err = domain.ParseReduction(arg1Reduction); err != nil {
		return domain.Tile{}, fmt.Errorf("tile %d: %s", id, err.Error())
	}

	if arg2RefType.Valid {
		arg2 := domain.Operand{RefID: int(arg2RefID.Int64)}
		if arg2.RefType, err = domain.ParseRefType(arg2RefType.String); err != nil {
			return domain.Tile{}, fmt.Errorf("tile %d: %s", id, err.Error())
		}
		if arg2.Reduction, err = domain.ParseReduction(arg2Reduction.String); err != nil {
			return domain.Tile{}, fmt.Errorf("tile %d: %s", id, err.Error())
		}
		t.Arg2 = &arg2
	}

	return t, nil
}

// Groups lists all groups. Group CRUD lives outside the core; dashboards
// only need the read side.
func (d *Database) Groups(ctx context.Context) ([]domain.Group, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT id, name, color FROM groups ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}
	defer rows.Close()

	groups := []domain.Group{}
	for rows.Next() {
		var g domain.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Color); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, err.Error())
	}

	return groups, nil
}
