package model

import "time"

// Station is a service station, the top of the location hierarchy.
type Station struct {
	ID        int64     `db:"id" json:"id"`
	StationID string    `db:"station_id" json:"station_id"`
	Name      string    `db:"name" json:"name"`
	Location  string    `db:"location" json:"location,omitempty"`
	Manager   string    `db:"manager" json:"manager,omitempty"`
	Remarks   string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Unit belongs to a station.
type Unit struct {
	ID          int64  `db:"id" json:"id"`
	StationPK   int64  `db:"station_pk" json:"station_pk"`
	StationCode string `db:"station_code" json:"station_code"`
	UnitID      string `db:"unit_id" json:"unit_id"`
	Name        string `db:"name" json:"name"`
	Incharge    string `db:"incharge" json:"incharge,omitempty"`
	Remarks     string `db:"remarks" json:"remarks,omitempty"`
}

// Tray belongs to a unit and is the unit of checkout.
type Tray struct {
	ID          int64  `db:"id" json:"id"`
	UnitPK      int64  `db:"unit_pk" json:"unit_pk"`
	UnitCode    string `db:"unit_code" json:"unit_code"`
	TrayID      string `db:"tray_id" json:"tray_id"`
	Name        string `db:"tray_name" json:"tray_name"`
	MaxCapacity *int64 `db:"max_capacity" json:"max_capacity,omitempty"`
	Remarks     string `db:"remarks" json:"remarks,omitempty"`
}

// TrayAssignment links a tray to an inventory row. There is at most one
// assignment per (tray, inventory) pair.
type TrayAssignment struct {
	ID               int64     `db:"id" json:"id"`
	TrayPK           int64     `db:"tray_pk" json:"tray_pk"`
	InventoryID      string    `db:"inventory_id" json:"inventory_id"`
	ToolID           string    `db:"tool_id" json:"tool_id"`
	AssignedQuantity int64     `db:"assigned_quantity" json:"assigned_quantity"`
	Remarks          string    `db:"remarks" json:"remarks,omitempty"`
	AssignedBy       string    `db:"assigned_by" json:"assigned_by,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentView is an assignment joined with its location and tool.
type AssignmentView struct {
	TrayAssignment
	TrayCode    string `db:"tray_code" json:"tray_id"`
	TrayName    string `db:"tray_name" json:"tray_name"`
	UnitCode    string `db:"unit_code" json:"unit_id"`
	StationCode string `db:"station_code" json:"station_id"`
	ToolName    string `db:"tool_name" json:"tool_name"`
}

// AssignmentFilter narrows the global assignment listing. Empty fields match
// everything; ToolID and ToolName are substring matches.
type AssignmentFilter struct {
	StationPK int64
	UnitPK    int64
	TrayPK    int64
	ToolID    string
	ToolName  string
}
