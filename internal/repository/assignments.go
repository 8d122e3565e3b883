package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toolcrib-api/internal/model"
)

const assignmentColumns = `id, tray_pk, inventory_id, tool_id, assigned_quantity, remarks, assigned_by, created_at, updated_at`

// GetAssignment returns the assignment for a (tray, inventory) pair.
func (c conn) GetAssignment(ctx context.Context, trayPK int64, inventoryID string) (*model.TrayAssignment, error) {
	var a model.TrayAssignment
	found, err := c.get(ctx, &a,
		`SELECT `+assignmentColumns+` FROM tray_assignments WHERE tray_pk = ? AND inventory_id = ?`+c.d.forUpdate(),
		trayPK, inventoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &a, nil
}

func (c conn) InsertAssignment(ctx context.Context, a *model.TrayAssignment) error {
	now := utc(time.Now())
	a.CreatedAt, a.UpdatedAt = now, now

	id, err := c.insert(ctx, `
		INSERT INTO tray_assignments (tray_pk, inventory_id, tool_id, assigned_quantity, remarks, assigned_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.TrayPK, a.InventoryID, a.ToolID, a.AssignedQuantity, a.Remarks, a.AssignedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert assignment: %w", err)
	}
	a.ID = id
	return nil
}

func (c conn) UpdateAssignment(ctx context.Context, a *model.TrayAssignment) error {
	a.UpdatedAt = utc(time.Now())
	_, err := c.q.ExecContext(ctx, c.q.Rebind(`
		UPDATE tray_assignments SET assigned_quantity = ?, remarks = ?, assigned_by = ?, updated_at = ?
		WHERE id = ?`),
		a.AssignedQuantity, a.Remarks, a.AssignedBy, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("failed to update assignment: %w", err)
	}
	return nil
}

// ListAssignments returns assignments joined with tray, unit, station and
// tool, filtered by location and tool substrings.
func (c conn) ListAssignments(ctx context.Context, f model.AssignmentFilter) ([]model.AssignmentView, error) {
	query := `
		SELECT a.id, a.tray_pk, a.inventory_id, a.tool_id, a.assigned_quantity, a.remarks, a.assigned_by,
			a.created_at, a.updated_at,
			tr.tray_id AS tray_code, tr.tray_name, u.unit_id AS unit_code, s.station_id AS station_code,
			t.tool_name
		FROM tray_assignments a
		JOIN trays tr ON tr.id = a.tray_pk
		JOIN units u ON u.id = tr.unit_pk
		JOIN stations s ON s.id = u.station_pk
		JOIN inventory i ON i.inventory_id = a.inventory_id
		JOIN tools t ON t.id = i.tool_pk`

	var conds []string
	var args []interface{}
	if f.StationPK > 0 {
		conds = append(conds, "s.id = ?")
		args = append(args, f.StationPK)
	}
	if f.UnitPK > 0 {
		conds = append(conds, "u.id = ?")
		args = append(args, f.UnitPK)
	}
	if f.TrayPK > 0 {
		conds = append(conds, "tr.id = ?")
		args = append(args, f.TrayPK)
	}
	if f.ToolID != "" {
		conds = append(conds, c.d.containsCond("t.tool_id"))
		args = append(args, containsArg(f.ToolID))
	}
	if f.ToolName != "" {
		conds = append(conds, c.d.containsCond("t.tool_name"))
		args = append(args, containsArg(f.ToolName))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY s.station_id, u.unit_id, tr.tray_id, a.inventory_id"

	var views []model.AssignmentView
	if err := c.selectAll(ctx, &views, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	return views, nil
}
