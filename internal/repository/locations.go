package repository

import (
	"context"
	"fmt"
	"time"

	"toolcrib-api/internal/model"
)

const (
	stationColumns = `id, station_id, name, location, manager, remarks, created_at`
	unitColumns    = `id, station_pk, station_code, unit_id, name, incharge, remarks`
	trayColumns    = `id, unit_pk, unit_code, tray_id, tray_name, max_capacity, remarks`
)

// GetStation returns a station by primary key.
func (c conn) GetStation(ctx context.Context, pk int64) (*model.Station, error) {
	var s model.Station
	found, err := c.get(ctx, &s, `SELECT `+stationColumns+` FROM stations WHERE id = ?`, pk)
	if err != nil {
		return nil, fmt.Errorf("failed to get station: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

func (c conn) ListStations(ctx context.Context) ([]model.Station, error) {
	var stations []model.Station
	if err := c.selectAll(ctx, &stations, `SELECT `+stationColumns+` FROM stations ORDER BY station_id`); err != nil {
		return nil, fmt.Errorf("failed to list stations: %w", err)
	}
	return stations, nil
}

// DeleteStation removes a station with its units, trays and assignments.
func (c conn) DeleteStation(ctx context.Context, pk int64) (bool, error) {
	res, err := c.q.ExecContext(ctx, c.q.Rebind(`DELETE FROM stations WHERE id = ?`), pk)
	if err != nil {
		return false, fmt.Errorf("failed to delete station: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertStation assigns the next SS code and stores the station.
func (c conn) InsertStation(ctx context.Context, s *model.Station) error {
	code, err := c.nextCode(ctx, "stations", "station_id", "SS")
	if err != nil {
		return err
	}
	s.StationID = code
	s.CreatedAt = utc(time.Now())

	id, err := c.insert(ctx, `
		INSERT INTO stations (station_id, name, location, manager, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.StationID, s.Name, s.Location, s.Manager, s.Remarks, s.CreatedAt)
	if err != nil {
		return codeInsertError("station", err)
	}
	s.ID = id
	return nil
}

func (c conn) GetUnit(ctx context.Context, pk int64) (*model.Unit, error) {
	var u model.Unit
	found, err := c.get(ctx, &u, `SELECT `+unitColumns+` FROM units WHERE id = ?`, pk)
	if err != nil {
		return nil, fmt.Errorf("failed to get unit: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

// ListUnits returns the units of a station, or all units when stationPK is 0.
func (c conn) ListUnits(ctx context.Context, stationPK int64) ([]model.Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units`
	var args []interface{}
	if stationPK > 0 {
		query += ` WHERE station_pk = ?`
		args = append(args, stationPK)
	}
	query += ` ORDER BY unit_id`

	var units []model.Unit
	if err := c.selectAll(ctx, &units, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	return units, nil
}

// InsertUnit assigns the next U code. StationCode must already be set.
func (c conn) InsertUnit(ctx context.Context, u *model.Unit) error {
	code, err := c.nextCode(ctx, "units", "unit_id", "U")
	if err != nil {
		return err
	}
	u.UnitID = code

	id, err := c.insert(ctx, `
		INSERT INTO units (station_pk, station_code, unit_id, name, incharge, remarks)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.StationPK, u.StationCode, u.UnitID, u.Name, u.Incharge, u.Remarks)
	if err != nil {
		return codeInsertError("unit", err)
	}
	u.ID = id
	return nil
}

func (c conn) trayWhere(ctx context.Context, where string, arg interface{}) (*model.Tray, error) {
	var t model.Tray
	found, err := c.get(ctx, &t, `SELECT `+trayColumns+` FROM trays WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to get tray: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

func (c conn) GetTray(ctx context.Context, pk int64) (*model.Tray, error) {
	return c.trayWhere(ctx, "id = ?", pk)
}

// GetTrayByCode resolves a tray by its T-code.
func (c conn) GetTrayByCode(ctx context.Context, trayID string) (*model.Tray, error) {
	return c.trayWhere(ctx, "tray_id = ?", trayID)
}

// ListTrays returns the trays of a unit, or all trays when unitPK is 0.
func (c conn) ListTrays(ctx context.Context, unitPK int64) ([]model.Tray, error) {
	query := `SELECT ` + trayColumns + ` FROM trays`
	var args []interface{}
	if unitPK > 0 {
		query += ` WHERE unit_pk = ?`
		args = append(args, unitPK)
	}
	query += ` ORDER BY tray_id`

	var trays []model.Tray
	if err := c.selectAll(ctx, &trays, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list trays: %w", err)
	}
	return trays, nil
}

// InsertTray assigns the next T code. UnitCode must already be set.
func (c conn) InsertTray(ctx context.Context, t *model.Tray) error {
	code, err := c.nextCode(ctx, "trays", "tray_id", "T")
	if err != nil {
		return err
	}
	t.TrayID = code

	id, err := c.insert(ctx, `
		INSERT INTO trays (unit_pk, unit_code, tray_id, tray_name, max_capacity, remarks)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.UnitPK, t.UnitCode, t.TrayID, t.Name, t.MaxCapacity, t.Remarks)
	if err != nil {
		return codeInsertError("tray", err)
	}
	t.ID = id
	return nil
}
