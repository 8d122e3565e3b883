package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/apierror"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/response"
)

// AssignmentHandler serves tray assignments.
type AssignmentHandler struct {
	assignments *service.AssignmentService
	locations   *service.LocationService
	log         *zap.Logger
}

func NewAssignmentHandler(assignments *service.AssignmentService, locations *service.LocationService, log *zap.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		assignments: assignments,
		locations:   locations,
		log:         logger.Named(log, "assignments"),
	}
}

// assignRequest is either a single line or, when Lines is set, a bulk
// request for one tray.
type assignRequest struct {
	InventoryID string               `json:"inventory_id"`
	Quantity    int64                `json:"quantity"`
	Remarks     string               `json:"remarks"`
	AssignedBy  string               `json:"assigned_by"`
	Lines       []service.AssignLine `json:"lines"`
}

// BulkAssignResponse reports each line of a bulk assignment.
type BulkAssignResponse struct {
	Applied int                     `json:"applied"`
	Failed  int                     `json:"failed"`
	Results []service.AssignOutcome `json:"results"`
}

// ListForTray handles GET /api/v1/trays/{tray}/assignments. {tray} is a
// numeric id or a tray code.
func (h *AssignmentHandler) ListForTray(w http.ResponseWriter, r *http.Request) {
	tray, err := h.locations.ResolveTray(r.Context(), chi.URLParam(r, "tray"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	list, err := h.assignments.ListForTray(r.Context(), tray.ID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []model.AssignmentView{}
	}
	response.OK(w, list)
}

// Assign handles POST /api/v1/trays/{tray}/assignments. The body is a single
// line, {"lines": [...]}, or a bare array of lines.
func (h *AssignmentHandler) Assign(w http.ResponseWriter, r *http.Request) {
	tray, err := h.locations.ResolveTray(r.Context(), chi.URLParam(r, "tray"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		response.Error(w, apierror.BadRequest("failed to read request body"))
		return
	}

	var req assignRequest
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &req.Lines)
		if err == nil && len(req.Lines) == 0 {
			response.Error(w, apierror.ValidationError("no assignment lines"))
			return
		}
	} else {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON: "+err.Error()))
		return
	}

	if len(req.Lines) > 0 {
		outcomes := h.assignments.AssignMany(r.Context(), tray.ID, req.AssignedBy, req.Lines)
		resp := BulkAssignResponse{Results: outcomes}
		for _, o := range outcomes {
			if o.Err() != nil {
				resp.Failed++
			} else {
				resp.Applied++
			}
		}
		response.OK(w, resp)
		return
	}

	snap, err := h.assignments.Assign(r.Context(), service.AssignInput{
		TrayPK:      tray.ID,
		InventoryID: req.InventoryID,
		Quantity:    req.Quantity,
		Remarks:     req.Remarks,
		AssignedBy:  req.AssignedBy,
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if snap.Created {
		response.Created(w, snap)
		return
	}
	response.OK(w, snap)
}

// List handles GET /api/v1/assignments with optional station, unit, tray,
// tool_id and tool_name filters.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	var f model.AssignmentFilter
	for name, dst := range map[string]*int64{"station": &f.StationPK, "unit": &f.UnitPK, "tray": &f.TrayPK} {
		n, err := queryInt(r, name)
		if err != nil {
			response.Error(w, err)
			return
		}
		*dst = int64(n)
	}
	f.ToolID = r.URL.Query().Get("tool_id")
	f.ToolName = r.URL.Query().Get("tool_name")

	list, err := h.assignments.List(r.Context(), f)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []model.AssignmentView{}
	}
	response.OK(w, list)
}
