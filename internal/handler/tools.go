package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/apierror"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/response"
)

// ToolHandler serves the tool catalog, purchases and derived status.
type ToolHandler struct {
	catalog *service.CatalogService
	status  *service.StatusService
	log     *zap.Logger
}

func NewToolHandler(catalog *service.CatalogService, status *service.StatusService, log *zap.Logger) *ToolHandler {
	return &ToolHandler{catalog: catalog, status: status, log: logger.Named(log, "tools")}
}

// List handles GET /api/v1/tools
func (h *ToolHandler) List(w http.ResponseWriter, r *http.Request) {
	tools, err := h.catalog.ListTools(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if tools == nil {
		tools = []model.Tool{}
	}
	response.OK(w, tools)
}

// Create handles POST /api/v1/tools. Posting an existing tool_id updates it.
func (h *ToolHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.Tool
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}

	tool, created, err := h.catalog.CreateTool(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if created {
		response.Created(w, tool)
		return
	}
	response.OK(w, tool)
}

// Get handles GET /api/v1/tools/{tool_id}
func (h *ToolHandler) Get(w http.ResponseWriter, r *http.Request) {
	tool, err := h.catalog.GetTool(r.Context(), chi.URLParam(r, "tool_id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, tool)
}

// Delete handles DELETE /api/v1/tools/{tool_id}
func (h *ToolHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteTool(r.Context(), chi.URLParam(r, "tool_id")); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.NoContent(w)
}

// Status handles GET /api/v1/tools/{tool_id}/status
func (h *ToolHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.status.ToolStatus(r.Context(), chi.URLParam(r, "tool_id"))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, st)
}

// Statuses handles GET /api/v1/tools/status
func (h *ToolHandler) Statuses(w http.ResponseWriter, r *http.Request) {
	list, err := h.status.Statuses(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if list == nil {
		list = []service.ToolStatus{}
	}
	response.OK(w, list)
}

type purchaseRequest struct {
	SupplierName  string  `json:"supplier_name"`
	InvoiceNumber string  `json:"invoice_number"`
	Quantity      int64   `json:"quantity"`
	UnitCost      float64 `json:"unit_cost"`
	PurchaseDate  string  `json:"purchase_date"`
	Calibration   string  `json:"calibration"`
	Remarks       string  `json:"remarks"`
}

// parseDate accepts a calendar date or a full RFC3339 timestamp.
func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apierror.ValidationError("invalid date",
		apierror.FieldError{Field: field, Message: "must be YYYY-MM-DD or RFC3339"})
}

// Purchase handles POST /api/v1/tools/{tool_id}/purchases
func (h *ToolHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	purchased, err := parseDate("purchase_date", req.PurchaseDate)
	if err != nil {
		response.Error(w, err)
		return
	}
	calibration, err := parseDate("calibration", req.Calibration)
	if err != nil {
		response.Error(w, err)
		return
	}

	in := service.PurchaseInput{
		ToolID:        chi.URLParam(r, "tool_id"),
		SupplierName:  req.SupplierName,
		InvoiceNumber: req.InvoiceNumber,
		Quantity:      req.Quantity,
		UnitCost:      req.UnitCost,
		Calibration:   calibration,
		Remarks:       req.Remarks,
	}
	if purchased != nil {
		in.PurchaseDate = *purchased
	}

	res, err := h.catalog.Purchase(r.Context(), in)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, res)
}
