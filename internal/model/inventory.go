package model

import "time"

// Counters holds the quantity fields of an inventory row.
type Counters struct {
	Total     int64 `db:"total_quantity" json:"total_quantity"`
	InStock   int64 `db:"in_stock" json:"in_stock"`
	Assigned  int64 `db:"assigned_quantity" json:"assigned_quantity"`
	Available int64 `db:"available_quantity" json:"available_quantity"`
	InUse     int64 `db:"in_use" json:"in_use"`
	Damaged   int64 `db:"damaged" json:"damaged"`
}

// Delta is a signed change to each counter. Zero fields are left untouched.
type Delta struct {
	Total     int64 `json:"total_quantity,omitempty"`
	InStock   int64 `json:"in_stock,omitempty"`
	Assigned  int64 `json:"assigned_quantity,omitempty"`
	Available int64 `json:"available_quantity,omitempty"`
	InUse     int64 `json:"in_use,omitempty"`
	Damaged   int64 `json:"damaged,omitempty"`
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// InventoryRecord is the single ledger row kept per tool.
type InventoryRecord struct {
	InventoryID string `db:"inventory_id" json:"inventory_id"`
	ToolPK      int64  `db:"tool_pk" json:"-"`
	Location    string `db:"location" json:"location"`
	Counters
	Remarks     string    `db:"remarks" json:"remarks,omitempty"`
	LastUpdated time.Time `db:"last_updated" json:"last_updated"`

	// Joined from tools.
	ToolID   string `db:"tool_id" json:"tool_id"`
	ToolName string `db:"tool_name" json:"tool_name"`
}

// InventorySnapshot is the read-only view returned after a ledger change.
type InventorySnapshot struct {
	InventoryID string    `json:"inventory_id"`
	ToolID      string    `json:"tool_id"`
	ToolName    string    `json:"tool_name"`
	Counters
	LastUpdated time.Time `json:"last_updated"`
}

// Snapshot copies the record into an immutable view.
func (r *InventoryRecord) Snapshot() InventorySnapshot {
	return InventorySnapshot{
		InventoryID: r.InventoryID,
		ToolID:      r.ToolID,
		ToolName:    r.ToolName,
		Counters:    r.Counters,
		LastUpdated: r.LastUpdated,
	}
}
