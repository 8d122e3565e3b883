package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toolcrib-api/internal/model"
)

const eventColumns = `id, occurred_at, event, service_station, unit, unit_id, user_id, user_name,
	tray_id, tool_id, tool_name, device_id, client_ip, raw_data, created_at`

func (c conn) oneEvent(ctx context.Context, query string, args ...interface{}) (*model.ToolEvent, error) {
	var e model.ToolEvent
	found, err := c.get(ctx, &e, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &e, nil
}

// GetEvent returns an event by id.
func (c conn) GetEvent(ctx context.Context, id int64) (*model.ToolEvent, error) {
	return c.oneEvent(ctx, `SELECT `+eventColumns+` FROM tool_events WHERE id = ?`, id)
}

// LatestEvent returns the most recently recorded event by arrival order.
func (c conn) LatestEvent(ctx context.Context) (*model.ToolEvent, error) {
	return c.oneEvent(ctx, `SELECT `+eventColumns+` FROM tool_events ORDER BY created_at DESC, id DESC LIMIT 1`)
}

// LatestMatchingEvent returns the newest event with the same fingerprint.
func (c conn) LatestMatchingEvent(ctx context.Context, fp model.Fingerprint) (*model.ToolEvent, error) {
	return c.oneEvent(ctx, `
		SELECT `+eventColumns+` FROM tool_events
		WHERE client_ip = ? AND event = ? AND user_name = ? AND tool_name = ? AND unit_id = ? AND tray_id = ?
		ORDER BY occurred_at DESC, created_at DESC, id DESC
		LIMIT 1`+c.d.forUpdate(),
		fp.ClientIP, string(fp.Event), fp.UserName, fp.ToolName, fp.UnitID, fp.TrayID)
}

// LockFingerprint serializes recorders working on the same fingerprint until
// the transaction ends. Postgres takes a transaction-scoped advisory lock;
// MySQL relies on the next-key lock of LatestMatchingEvent and SQLite on its
// single writer.
func (c conn) LockFingerprint(ctx context.Context, key string) error {
	if c.d != DialectPostgres {
		return nil
	}
	if _, err := c.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("failed to lock fingerprint: %w", err)
	}
	return nil
}

// InsertEvent appends an event to the log.
func (c conn) InsertEvent(ctx context.Context, e *model.ToolEvent) error {
	e.Timestamp = utc(e.Timestamp)
	e.CreatedAt = utc(time.Now())
	raw := string(e.RawData)
	if raw == "" {
		raw = "{}"
	}

	id, err := c.insert(ctx, `
		INSERT INTO tool_events (occurred_at, event, service_station, unit, unit_id, user_id, user_name,
			tray_id, tool_id, tool_name, device_id, client_ip, raw_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, string(e.Event), e.ServiceStation, e.Unit, e.UnitID, e.UserID, e.UserName,
		e.TrayID, e.ToolID, e.ToolName, e.DeviceID, e.ClientIP, raw, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	e.ID = id
	e.RawData = model.RawJSON(raw)
	return nil
}

// LatestLifecycleEvents returns the newest issued/returned/damaged event per
// tool_id.
func (c conn) LatestLifecycleEvents(ctx context.Context, toolID string) ([]model.ToolEvent, error) {
	kinds := []interface{}{
		string(model.EventToolIssued), string(model.EventToolReturned), string(model.EventToolDamaged),
	}
	where := "e.event IN (?, ?, ?) AND e.tool_id <> ''"
	args := kinds
	if toolID != "" {
		where += " AND e.tool_id = ?"
		args = append(args, toolID)
	}

	// Correlated subquery keeps one row per tool: nothing newer by
	// (occurred_at, id) exists for the same tool.
	query := `
		SELECT ` + prefixColumns("e", eventColumns) + `
		FROM tool_events e
		WHERE ` + where + `
		AND NOT EXISTS (
			SELECT 1 FROM tool_events n
			WHERE n.tool_id = e.tool_id AND n.event IN (?, ?, ?)
			AND (n.occurred_at > e.occurred_at OR (n.occurred_at = e.occurred_at AND n.id > e.id))
		)
		ORDER BY e.tool_id`
	args = append(args, kinds...)

	var events []model.ToolEvent
	if err := c.selectAll(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get latest lifecycle events: %w", err)
	}
	return events, nil
}

// ListEvents returns events newest first with the total matching count.
func (c conn) ListEvents(ctx context.Context, f model.EventFilter) ([]model.ToolEvent, int64, error) {
	var conds []string
	var args []interface{}

	if f.Event != "" {
		conds = append(conds, "event = ?")
		args = append(args, string(f.Event))
	}
	if f.ToolID != "" {
		conds = append(conds, "tool_id = ?")
		args = append(args, f.ToolID)
	}
	if f.TrayID != "" {
		conds = append(conds, "tray_id = ?")
		args = append(args, f.TrayID)
	}
	if f.UserName != "" {
		conds = append(conds, "user_name = ?")
		args = append(args, f.UserName)
	}
	if f.Since != nil {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, utc(*f.Since))
	}
	if f.Until != nil {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, utc(*f.Until))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int64
	if _, err := c.get(ctx, &total, "SELECT COUNT(*) FROM tool_events"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query := "SELECT " + eventColumns + " FROM tool_events" + where + " ORDER BY occurred_at DESC, created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	var events []model.ToolEvent
	if err := c.selectAll(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	return events, total, nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
