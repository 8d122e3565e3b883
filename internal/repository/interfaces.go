package repository

import (
	"context"

	"toolcrib-api/internal/model"
)

// ToolRepository defines tool catalog access.
type ToolRepository interface {
	// GetTool finds a tool by its tool_id. Returns nil if absent.
	GetTool(ctx context.Context, toolID string) (*model.Tool, error)

	// FindTool resolves a tool by tool_id, falling back to an exact name match.
	FindTool(ctx context.Context, toolID, toolName string) (*model.Tool, error)

	ListTools(ctx context.Context) ([]model.Tool, error)

	// DeleteTool removes a tool and everything that cascades from it.
	DeleteTool(ctx context.Context, toolID string) (bool, error)
}

// InventoryRepository defines read access to ledger rows.
type InventoryRepository interface {
	GetInventoryByTool(ctx context.Context, toolID string) (*model.InventoryRecord, error)
	GetInventory(ctx context.Context, inventoryID string) (*model.InventoryRecord, error)
	ListInventory(ctx context.Context) ([]model.InventoryRecord, error)
}

// EventRepository defines read access to the event log.
type EventRepository interface {
	GetEvent(ctx context.Context, id int64) (*model.ToolEvent, error)

	// LatestEvent returns the most recently recorded event of any kind.
	LatestEvent(ctx context.Context) (*model.ToolEvent, error)

	// LatestLifecycleEvents returns, per tool, the newest issued/returned/damaged
	// event. An empty toolID means every tool.
	LatestLifecycleEvents(ctx context.Context, toolID string) ([]model.ToolEvent, error)

	ListEvents(ctx context.Context, filter model.EventFilter) ([]model.ToolEvent, int64, error)
}

// LocationRepository defines station/unit/tray access.
type LocationRepository interface {
	GetStation(ctx context.Context, pk int64) (*model.Station, error)
	ListStations(ctx context.Context) ([]model.Station, error)
	DeleteStation(ctx context.Context, pk int64) (bool, error)
	GetUnit(ctx context.Context, pk int64) (*model.Unit, error)
	ListUnits(ctx context.Context, stationPK int64) ([]model.Unit, error)
	GetTray(ctx context.Context, pk int64) (*model.Tray, error)
	GetTrayByCode(ctx context.Context, trayID string) (*model.Tray, error)
	ListTrays(ctx context.Context, unitPK int64) ([]model.Tray, error)
}

// AssignmentRepository defines read access to tray assignments.
type AssignmentRepository interface {
	ListAssignments(ctx context.Context, filter model.AssignmentFilter) ([]model.AssignmentView, error)
}

// Tx is the unit of work handed to WithinTx callbacks. Every method runs on
// the same database transaction.
type Tx interface {
	GetTool(ctx context.Context, toolID string) (*model.Tool, error)
	FindTool(ctx context.Context, toolID, toolName string) (*model.Tool, error)
	UpsertTool(ctx context.Context, t *model.Tool) (bool, error)
	InsertPurchase(ctx context.Context, p *model.ToolPurchase) error

	// LockInventoryByTool and LockInventory read a ledger row and hold it for
	// the rest of the transaction.
	LockInventoryByTool(ctx context.Context, toolID string) (*model.InventoryRecord, error)
	LockInventory(ctx context.Context, inventoryID string) (*model.InventoryRecord, error)
	CreateInventory(ctx context.Context, tool *model.Tool) (*model.InventoryRecord, error)
	SaveCounters(ctx context.Context, inv *model.InventoryRecord) error

	GetTray(ctx context.Context, pk int64) (*model.Tray, error)
	GetAssignment(ctx context.Context, trayPK int64, inventoryID string) (*model.TrayAssignment, error)
	InsertAssignment(ctx context.Context, a *model.TrayAssignment) error
	UpdateAssignment(ctx context.Context, a *model.TrayAssignment) error

	InsertStation(ctx context.Context, s *model.Station) error
	InsertUnit(ctx context.Context, u *model.Unit) error
	InsertTray(ctx context.Context, t *model.Tray) error

	LockFingerprint(ctx context.Context, key string) error

	// LatestMatchingEvent returns the newest event sharing the fingerprint.
	LatestMatchingEvent(ctx context.Context, fp model.Fingerprint) (*model.ToolEvent, error)
	InsertEvent(ctx context.Context, e *model.ToolEvent) error
}

// Store is the full persistence surface used by the services.
type Store interface {
	ToolRepository
	InventoryRepository
	EventRepository
	LocationRepository
	AssignmentRepository

	// WithinTx runs fn in a transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// GetStats returns statistics about the database.
	GetStats(ctx context.Context) (map[string]interface{}, error)

	Ping(ctx context.Context) error
	Close() error
}
