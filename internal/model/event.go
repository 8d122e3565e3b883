package model

import (
	"strconv"
	"strings"
	"time"
)

// EventKind is the lifecycle code stored with each tool event.
type EventKind string

const (
	EventTrayOpen      EventKind = "tray_open"
	EventTrayClose     EventKind = "tray_close"
	EventToolIssued    EventKind = "tool_Issued"
	EventToolReturned  EventKind = "tool_Returned"
	EventToolDamaged   EventKind = "tool_Damaged"
	EventAutoLogout    EventKind = "auto_logout"
	EventSystemOffline EventKind = "system_offline"
	EventSystemOnline  EventKind = "system_online"
)

var eventKindAliases = map[string]EventKind{
	"tray_open":      EventTrayOpen,
	"tray_close":     EventTrayClose,
	"tool_issued":    EventToolIssued,
	"issued":         EventToolIssued,
	"tool_returned":  EventToolReturned,
	"returned":       EventToolReturned,
	"tool_damaged":   EventToolDamaged,
	"damaged":        EventToolDamaged,
	"auto_logout":    EventAutoLogout,
	"system_offline": EventSystemOffline,
	"system_online":  EventSystemOnline,
}

// ParseEventKind accepts stored codes and their short or hyphenated forms,
// case-insensitively.
func ParseEventKind(s string) (EventKind, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	kind, ok := eventKindAliases[key]
	return kind, ok
}

// AffectsInventory reports whether reconciliation changes counters for this kind.
func (k EventKind) AffectsInventory() bool {
	switch k {
	case EventToolIssued, EventToolReturned, EventToolDamaged:
		return true
	}
	return false
}

// RawJSON is an original request payload kept verbatim.
type RawJSON string

// MarshalJSON emits the payload as embedded JSON rather than a string.
func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

// ToolEvent is an immutable lifecycle record.
type ToolEvent struct {
	ID             int64     `db:"id" json:"id"`
	Timestamp      time.Time `db:"occurred_at" json:"timestamp"`
	Event          EventKind `db:"event" json:"event"`
	ServiceStation string    `db:"service_station" json:"service_station,omitempty"`
	Unit           string    `db:"unit" json:"unit,omitempty"`
	UnitID         string    `db:"unit_id" json:"unit_id,omitempty"`
	UserID         string    `db:"user_id" json:"user_id,omitempty"`
	UserName       string    `db:"user_name" json:"user_name,omitempty"`
	TrayID         string    `db:"tray_id" json:"tray_id,omitempty"`
	ToolID         string    `db:"tool_id" json:"tool_id,omitempty"`
	ToolName       string    `db:"tool_name" json:"tool_name,omitempty"`
	DeviceID       string    `db:"device_id" json:"device_id,omitempty"`
	ClientIP       string    `db:"client_ip" json:"client_ip,omitempty"`
	RawData        RawJSON   `db:"raw_data" json:"raw_data"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Fingerprint returns the identity used for duplicate suppression.
func (e *ToolEvent) Fingerprint() Fingerprint {
	return Fingerprint{
		ClientIP: e.ClientIP,
		Event:    e.Event,
		UserName: e.UserName,
		ToolName: e.ToolName,
		UnitID:   e.UnitID,
		TrayID:   e.TrayID,
	}
}

// Fingerprint identifies repeated reports of the same physical action.
type Fingerprint struct {
	ClientIP string
	Event    EventKind
	UserName string
	ToolName string
	UnitID   string
	TrayID   string
}

// Key renders the fingerprint as a cache key. Each field is quoted so a
// separator inside a value cannot shift it into its neighbour.
func (f Fingerprint) Key() string {
	fields := []string{f.ClientIP, string(f.Event), f.UserName, f.ToolName, f.UnitID, f.TrayID}
	for i, v := range fields {
		fields[i] = strconv.Quote(v)
	}
	return strings.Join(fields, "|")
}

// EventDraft is an ingested event before timestamp resolution and dedup.
type EventDraft struct {
	Timestamp      string
	Event          string
	ServiceStation string
	Unit           string
	UnitID         string
	UserID         string
	UserName       string
	TrayID         string
	ToolID         string
	ToolName       string
	DeviceID       string
	ClientIP       string
	Raw            []byte
}

// EventFilter narrows event history queries.
type EventFilter struct {
	Event    EventKind
	ToolID   string
	TrayID   string
	UserName string
	Since    *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
}
