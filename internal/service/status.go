package service

import (
	"context"
	"fmt"
	"time"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
)

// ToolState is derived from the newest lifecycle event of a tool.
type ToolState string

const (
	StateAvailable ToolState = "AVAILABLE"
	StateIssued    ToolState = "ISSUED"
	StateDamaged   ToolState = "DAMAGED"
)

// ToolStatus pairs the derived state with the event it came from.
type ToolStatus struct {
	ToolID    string          `json:"tool_id"`
	ToolName  string          `json:"tool_name,omitempty"`
	State     ToolState       `json:"state"`
	LastEvent model.EventKind `json:"last_event,omitempty"`
	EventID   int64           `json:"event_id,omitempty"`
	Since     *time.Time      `json:"since,omitempty"`
	UserName  string          `json:"user_name,omitempty"`
	TrayID    string          `json:"tray_id,omitempty"`
}

// StateOf maps a lifecycle event kind to a tool state. Tools without
// lifecycle events are available.
func StateOf(kind model.EventKind) ToolState {
	switch kind {
	case model.EventToolIssued:
		return StateIssued
	case model.EventToolDamaged:
		return StateDamaged
	}
	return StateAvailable
}

// StatusService reads tool state from event history, never from counters.
type StatusService struct {
	store repository.Store
}

func NewStatusService(store repository.Store) *StatusService {
	return &StatusService{store: store}
}

// ToolStatus returns the state of one catalogued tool.
func (s *StatusService) ToolStatus(ctx context.Context, toolID string) (ToolStatus, error) {
	tool, err := s.store.GetTool(ctx, toolID)
	if err != nil {
		return ToolStatus{}, err
	}
	if tool == nil {
		return ToolStatus{}, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}

	events, err := s.store.LatestLifecycleEvents(ctx, toolID)
	if err != nil {
		return ToolStatus{}, err
	}

	st := ToolStatus{ToolID: tool.ToolID, ToolName: tool.Name, State: StateAvailable}
	if len(events) > 0 {
		st = statusFrom(events[0])
		st.ToolName = tool.Name
	}
	return st, nil
}

// Statuses returns the state of every tool that has lifecycle events.
func (s *StatusService) Statuses(ctx context.Context) ([]ToolStatus, error) {
	events, err := s.store.LatestLifecycleEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]ToolStatus, len(events))
	for i, e := range events {
		out[i] = statusFrom(e)
	}
	return out, nil
}

func statusFrom(e model.ToolEvent) ToolStatus {
	ts := e.Timestamp
	return ToolStatus{
		ToolID:    e.ToolID,
		ToolName:  e.ToolName,
		State:     StateOf(e.Event),
		LastEvent: e.Event,
		EventID:   e.ID,
		Since:     &ts,
		UserName:  e.UserName,
		TrayID:    e.TrayID,
	}
}

// MaxEventPage caps the page size of Events.
const MaxEventPage = 500

// Events returns recorded events newest first with the total match count.
func (s *StatusService) Events(ctx context.Context, f model.EventFilter) ([]model.ToolEvent, int64, error) {
	switch {
	case f.Limit <= 0:
		f.Limit = 100
	case f.Limit > MaxEventPage:
		f.Limit = MaxEventPage
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Since != nil && f.Until != nil && f.Until.Before(*f.Since) {
		return nil, 0, invalid("until", "must not be before since")
	}
	return s.store.ListEvents(ctx, f)
}
