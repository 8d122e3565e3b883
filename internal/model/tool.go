package model

import "time"

// Tool is a catalog entry. ToolID is the human-facing identifier printed on
// the tool and is immutable once inventory references it.
type Tool struct {
	ID          int64     `db:"id" json:"id"`
	ToolID      string    `db:"tool_id" json:"tool_id"`
	Name        string    `db:"tool_name" json:"tool_name"`
	Description string    `db:"description" json:"description,omitempty"`
	PartNumber  string    `db:"part_number" json:"part_number,omitempty"`
	Brand       string    `db:"brand" json:"brand,omitempty"`
	ToolType    string    `db:"tool_type" json:"tool_type,omitempty"`
	Remarks     string    `db:"remarks" json:"remarks,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// ToolPurchase records stock bought into the warehouse.
type ToolPurchase struct {
	ID            int64      `db:"id" json:"id"`
	ToolPK        int64      `db:"tool_pk" json:"-"`
	SupplierName  string     `db:"supplier_name" json:"supplier_name"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	Quantity      int64      `db:"quantity" json:"quantity"`
	UnitCost      float64    `db:"unit_cost" json:"unit_cost"`
	PurchaseCost  float64    `db:"purchase_cost" json:"purchase_cost"`
	PurchaseDate  time.Time  `db:"purchase_date" json:"purchase_date"`
	Calibration   *time.Time `db:"calibration" json:"calibration,omitempty"`
	Remarks       string     `db:"remarks" json:"remarks,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}
