package repository

import (
	"context"
	"fmt"
	"time"

	"toolcrib-api/internal/model"
)

const inventorySelect = `
	SELECT i.inventory_id, i.tool_pk, i.location, i.total_quantity, i.in_stock, i.assigned_quantity,
		i.available_quantity, i.in_use, i.damaged, i.remarks, i.last_updated, t.tool_id, t.tool_name
	FROM inventory i
	JOIN tools t ON t.id = i.tool_pk`

func (c conn) inventoryWhere(ctx context.Context, where string, lock bool, args ...interface{}) (*model.InventoryRecord, error) {
	query := inventorySelect + " WHERE " + where
	if lock {
		query += c.d.forUpdate()
	}

	var inv model.InventoryRecord
	found, err := c.get(ctx, &inv, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &inv, nil
}

// GetInventoryByTool returns the ledger row of a tool.
func (c conn) GetInventoryByTool(ctx context.Context, toolID string) (*model.InventoryRecord, error) {
	return c.inventoryWhere(ctx, "t.tool_id = ?", false, toolID)
}

// GetInventory returns a ledger row by inventory_id.
func (c conn) GetInventory(ctx context.Context, inventoryID string) (*model.InventoryRecord, error) {
	return c.inventoryWhere(ctx, "i.inventory_id = ?", false, inventoryID)
}

// LockInventoryByTool reads a tool's ledger row for update.
func (c conn) LockInventoryByTool(ctx context.Context, toolID string) (*model.InventoryRecord, error) {
	return c.inventoryWhere(ctx, "t.tool_id = ?", true, toolID)
}

// LockInventory reads a ledger row for update.
func (c conn) LockInventory(ctx context.Context, inventoryID string) (*model.InventoryRecord, error) {
	return c.inventoryWhere(ctx, "i.inventory_id = ?", true, inventoryID)
}

// ListInventory returns every ledger row ordered by inventory_id.
func (c conn) ListInventory(ctx context.Context) ([]model.InventoryRecord, error) {
	var items []model.InventoryRecord
	if err := c.selectAll(ctx, &items, inventorySelect+" ORDER BY i.inventory_id"); err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	return items, nil
}

// CreateInventory creates the zeroed ledger row for a tool.
func (c conn) CreateInventory(ctx context.Context, tool *model.Tool) (*model.InventoryRecord, error) {
	code, err := c.nextCode(ctx, "inventory", "inventory_id", "INV")
	if err != nil {
		return nil, err
	}

	inv := &model.InventoryRecord{
		InventoryID: code,
		ToolPK:      tool.ID,
		Location:    "Warehouse",
		LastUpdated: utc(time.Now()),
		ToolID:      tool.ToolID,
		ToolName:    tool.Name,
	}
	_, err = c.q.ExecContext(ctx, c.q.Rebind(`
		INSERT INTO inventory (inventory_id, tool_pk, location, total_quantity, in_stock, assigned_quantity,
			available_quantity, in_use, damaged, remarks, last_updated)
		VALUES (?, ?, ?, 0, 0, 0, 0, 0, 0, '', ?)`),
		inv.InventoryID, inv.ToolPK, inv.Location, inv.LastUpdated)
	if err != nil {
		return nil, codeInsertError("inventory", err)
	}
	return inv, nil
}

// SaveCounters writes all six counters of a ledger row.
func (c conn) SaveCounters(ctx context.Context, inv *model.InventoryRecord) error {
	inv.LastUpdated = utc(time.Now())
	_, err := c.q.ExecContext(ctx, c.q.Rebind(`
		UPDATE inventory SET total_quantity = ?, in_stock = ?, assigned_quantity = ?, available_quantity = ?,
			in_use = ?, damaged = ?, last_updated = ?
		WHERE inventory_id = ?`),
		inv.Total, inv.InStock, inv.Assigned, inv.Available, inv.InUse, inv.Damaged, inv.LastUpdated, inv.InventoryID)
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return nil
}
