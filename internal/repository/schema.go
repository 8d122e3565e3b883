package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

type index struct {
	name    string
	columns string
}

type table struct {
	name    string
	columns []string
	indexes []index
}

// schema lists tables in dependency order. Column types are rendered per
// dialect through the {pk} and {ts} markers.
var schema = []table{
	{
		name: "tools",
		columns: []string{
			"id {pk}",
			"tool_id VARCHAR(50) NOT NULL UNIQUE",
			"tool_name VARCHAR(200) NOT NULL",
			"description TEXT NOT NULL",
			"part_number VARCHAR(100) NOT NULL DEFAULT ''",
			"brand VARCHAR(100) NOT NULL DEFAULT ''",
			"tool_type VARCHAR(50) NOT NULL DEFAULT ''",
			"remarks TEXT NOT NULL",
			"created_at {ts} NOT NULL",
			"updated_at {ts} NOT NULL",
		},
		indexes: []index{{"idx_tools_name", "tool_name"}},
	},
	{
		name: "tool_purchases",
		columns: []string{
			"id {pk}",
			"tool_pk BIGINT NOT NULL",
			"supplier_name VARCHAR(200) NOT NULL",
			"invoice_number VARCHAR(100) NOT NULL",
			"quantity BIGINT NOT NULL",
			"unit_cost DOUBLE PRECISION NOT NULL",
			"purchase_cost DOUBLE PRECISION NOT NULL",
			"purchase_date {ts} NOT NULL",
			"calibration {ts} NULL",
			"remarks TEXT NOT NULL",
			"created_at {ts} NOT NULL",
			"FOREIGN KEY (tool_pk) REFERENCES tools(id) ON DELETE CASCADE",
		},
		indexes: []index{{"idx_tool_purchases_tool", "tool_pk"}},
	},
	{
		name: "inventory",
		columns: []string{
			"inventory_id VARCHAR(20) NOT NULL PRIMARY KEY",
			"tool_pk BIGINT NOT NULL UNIQUE",
			"location VARCHAR(100) NOT NULL DEFAULT 'Warehouse'",
			"total_quantity BIGINT NOT NULL DEFAULT 0",
			"in_stock BIGINT NOT NULL DEFAULT 0",
			"assigned_quantity BIGINT NOT NULL DEFAULT 0",
			"available_quantity BIGINT NOT NULL DEFAULT 0",
			"in_use BIGINT NOT NULL DEFAULT 0",
			"damaged BIGINT NOT NULL DEFAULT 0",
			"remarks TEXT NOT NULL",
			"last_updated {ts} NOT NULL",
			"FOREIGN KEY (tool_pk) REFERENCES tools(id) ON DELETE CASCADE",
		},
	},
	{
		name: "stations",
		columns: []string{
			"id {pk}",
			"station_id VARCHAR(20) NOT NULL UNIQUE",
			"name VARCHAR(150) NOT NULL",
			"location VARCHAR(255) NOT NULL DEFAULT ''",
			"manager VARCHAR(150) NOT NULL DEFAULT ''",
			"remarks TEXT NOT NULL",
			"created_at {ts} NOT NULL",
		},
	},
	{
		name: "units",
		columns: []string{
			"id {pk}",
			"station_pk BIGINT NOT NULL",
			"station_code VARCHAR(20) NOT NULL",
			"unit_id VARCHAR(20) NOT NULL UNIQUE",
			"name VARCHAR(100) NOT NULL",
			"incharge VARCHAR(150) NOT NULL DEFAULT ''",
			"remarks TEXT NOT NULL",
			"FOREIGN KEY (station_pk) REFERENCES stations(id) ON DELETE CASCADE",
		},
		indexes: []index{{"idx_units_station", "station_pk"}},
	},
	{
		name: "trays",
		columns: []string{
			"id {pk}",
			"unit_pk BIGINT NOT NULL",
			"unit_code VARCHAR(20) NOT NULL",
			"tray_id VARCHAR(20) NOT NULL UNIQUE",
			"tray_name VARCHAR(100) NOT NULL",
			"max_capacity BIGINT NULL",
			"remarks TEXT NOT NULL",
			"FOREIGN KEY (unit_pk) REFERENCES units(id) ON DELETE CASCADE",
		},
		indexes: []index{{"idx_trays_unit", "unit_pk"}},
	},
	{
		name: "tray_assignments",
		columns: []string{
			"id {pk}",
			"tray_pk BIGINT NOT NULL",
			"inventory_id VARCHAR(20) NOT NULL",
			"tool_id VARCHAR(50) NOT NULL",
			"assigned_quantity BIGINT NOT NULL",
			"remarks TEXT NOT NULL",
			"assigned_by VARCHAR(150) NOT NULL DEFAULT ''",
			"created_at {ts} NOT NULL",
			"updated_at {ts} NOT NULL",
			"UNIQUE (tray_pk, inventory_id)",
			"FOREIGN KEY (tray_pk) REFERENCES trays(id) ON DELETE CASCADE",
			"FOREIGN KEY (inventory_id) REFERENCES inventory(inventory_id) ON DELETE CASCADE",
		},
		indexes: []index{{"idx_tray_assignments_inventory", "inventory_id"}},
	},
	{
		name: "tool_events",
		columns: []string{
			"id {pk}",
			"occurred_at {ts} NOT NULL",
			"event VARCHAR(50) NOT NULL",
			"service_station VARCHAR(100) NOT NULL DEFAULT ''",
			"unit VARCHAR(100) NOT NULL DEFAULT ''",
			"unit_id VARCHAR(50) NOT NULL DEFAULT ''",
			"user_id VARCHAR(50) NOT NULL DEFAULT ''",
			"user_name VARCHAR(100) NOT NULL DEFAULT ''",
			"tray_id VARCHAR(50) NOT NULL DEFAULT ''",
			"tool_id VARCHAR(50) NOT NULL DEFAULT ''",
			"tool_name VARCHAR(200) NOT NULL DEFAULT ''",
			"device_id VARCHAR(100) NOT NULL DEFAULT ''",
			"client_ip VARCHAR(64) NOT NULL DEFAULT ''",
			"raw_data TEXT NOT NULL",
			"created_at {ts} NOT NULL",
		},
		indexes: []index{
			{"idx_tool_events_occurred", "occurred_at"},
			{"idx_tool_events_tool", "tool_id"},
			{"idx_tool_events_fingerprint", "client_ip, event, user_name, tool_name, unit_id, tray_id, occurred_at"},
		},
	},
}

// statements renders CREATE statements for the dialect. MySQL has no
// CREATE INDEX IF NOT EXISTS, so its indexes are declared inline.
func (d Dialect) statements() []string {
	marker := strings.NewReplacer("{pk}", d.primaryKey(), "{ts}", d.timeType())

	var stmts []string
	for _, t := range schema {
		cols := make([]string, 0, len(t.columns)+len(t.indexes))
		for _, c := range t.columns {
			cols = append(cols, marker.Replace(c))
		}
		if d == DialectMySQL {
			for _, idx := range t.indexes {
				cols = append(cols, fmt.Sprintf("INDEX %s (%s)", idx.name, idx.columns))
			}
		}
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(cols, ",\n\t")))

		if d != DialectMySQL {
			for _, idx := range t.indexes {
				stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s(%s)", idx.name, t.name, idx.columns))
			}
		}
	}
	return stmts
}

// migrate creates missing tables and indexes.
func migrate(ctx context.Context, db *sqlx.DB, d Dialect) error {
	for _, stmt := range d.statements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
