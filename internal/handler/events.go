package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/apierror"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/response"
)

// EventHandler serves the recorded event history.
type EventHandler struct {
	status *service.StatusService
	loc    *time.Location
	log    *zap.Logger
}

// NewEventHandler creates the handler. loc resolves since/until values
// given without a zone.
func NewEventHandler(status *service.StatusService, loc *time.Location, log *zap.Logger) *EventHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EventHandler{status: status, loc: loc, log: logger.Named(log, "events")}
}

func (h *EventHandler) queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, ok := service.ParseTimestamp(raw, h.loc)
	if !ok {
		return nil, apierror.ValidationError("invalid query parameter",
			apierror.FieldError{Field: name, Message: "must be an ISO-8601 timestamp"})
	}
	return &t, nil
}

// List handles GET /api/v1/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.EventFilter{
		ToolID:   q.Get("tool_id"),
		TrayID:   q.Get("tray_id"),
		UserName: q.Get("user_name"),
	}
	if raw := q.Get("event"); raw != "" {
		kind, ok := model.ParseEventKind(raw)
		if !ok {
			response.Error(w, apierror.ValidationError("invalid query parameter",
				apierror.FieldError{Field: "event", Message: "unknown event kind"}))
			return
		}
		f.Event = kind
	}

	var err error
	if f.Since, err = h.queryTime(r, "since"); err != nil {
		response.Error(w, err)
		return
	}
	if f.Until, err = h.queryTime(r, "until"); err != nil {
		response.Error(w, err)
		return
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		response.Error(w, err)
		return
	}
	if f.Offset, err = queryInt(r, "offset"); err != nil {
		response.Error(w, err)
		return
	}

	events, total, err := h.status.Events(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if events == nil {
		events = []model.ToolEvent{}
	}

	limit := f.Limit
	switch {
	case limit <= 0:
		limit = 100
	case limit > service.MaxEventPage:
		limit = service.MaxEventPage
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	response.JSONWithMeta(w, http.StatusOK, events, limit, offset, total)
}
