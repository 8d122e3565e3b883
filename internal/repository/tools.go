package repository

import (
	"context"
	"fmt"
	"time"

	"toolcrib-api/internal/model"
)

const toolColumns = `id, tool_id, tool_name, description, part_number, brand, tool_type, remarks, created_at, updated_at`

// GetTool finds a tool by tool_id.
func (c conn) GetTool(ctx context.Context, toolID string) (*model.Tool, error) {
	var t model.Tool
	found, err := c.get(ctx, &t, `SELECT `+toolColumns+` FROM tools WHERE tool_id = ?`, toolID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

// FindTool resolves by tool_id first, then by exact tool name.
func (c conn) FindTool(ctx context.Context, toolID, toolName string) (*model.Tool, error) {
	if toolID != "" {
		t, err := c.GetTool(ctx, toolID)
		if err != nil || t != nil {
			return t, err
		}
	}
	if toolName == "" {
		return nil, nil
	}

	var t model.Tool
	found, err := c.get(ctx, &t, `SELECT `+toolColumns+` FROM tools WHERE tool_name = ? ORDER BY id LIMIT 1`, toolName)
	if err != nil {
		return nil, fmt.Errorf("failed to find tool by name: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &t, nil
}

// ListTools returns all tools, newest first.
func (c conn) ListTools(ctx context.Context) ([]model.Tool, error) {
	var tools []model.Tool
	if err := c.selectAll(ctx, &tools, `SELECT `+toolColumns+` FROM tools ORDER BY created_at DESC, id DESC`); err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return tools, nil
}

// DeleteTool removes a tool; inventory, purchases and assignments cascade.
func (c conn) DeleteTool(ctx context.Context, toolID string) (bool, error) {
	res, err := c.q.ExecContext(ctx, c.q.Rebind(`DELETE FROM tools WHERE tool_id = ?`), toolID)
	if err != nil {
		return false, fmt.Errorf("failed to delete tool: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertTool creates the tool or updates its descriptive fields, keyed by
// tool_id. It reports whether a new row was created.
func (c conn) UpsertTool(ctx context.Context, t *model.Tool) (bool, error) {
	existing, err := c.GetTool(ctx, t.ToolID)
	if err != nil {
		return false, err
	}

	now := utc(time.Now())
	if existing == nil {
		t.CreatedAt, t.UpdatedAt = now, now
		id, err := c.insert(ctx, `
			INSERT INTO tools (tool_id, tool_name, description, part_number, brand, tool_type, remarks, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ToolID, t.Name, t.Description, t.PartNumber, t.Brand, t.ToolType, t.Remarks, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return false, fmt.Errorf("failed to insert tool: %w", err)
		}
		t.ID = id
		return true, nil
	}

	t.ID = existing.ID
	t.CreatedAt = existing.CreatedAt
	t.UpdatedAt = now
	_, err = c.q.ExecContext(ctx, c.q.Rebind(`
		UPDATE tools SET tool_name = ?, description = ?, part_number = ?, brand = ?, tool_type = ?, remarks = ?, updated_at = ?
		WHERE id = ?`),
		t.Name, t.Description, t.PartNumber, t.Brand, t.ToolType, t.Remarks, t.UpdatedAt, t.ID)
	if err != nil {
		return false, fmt.Errorf("failed to update tool: %w", err)
	}
	return false, nil
}

// InsertPurchase stores a purchase row.
func (c conn) InsertPurchase(ctx context.Context, p *model.ToolPurchase) error {
	p.CreatedAt = utc(time.Now())
	var calibration interface{}
	if p.Calibration != nil {
		calibration = utc(*p.Calibration)
	}

	id, err := c.insert(ctx, `
		INSERT INTO tool_purchases (tool_pk, supplier_name, invoice_number, quantity, unit_cost, purchase_cost, purchase_date, calibration, remarks, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ToolPK, p.SupplierName, p.InvoiceNumber, p.Quantity, p.UnitCost, p.PurchaseCost,
		utc(p.PurchaseDate), calibration, p.Remarks, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	p.ID = id
	return nil
}
