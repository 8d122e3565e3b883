package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/apierror"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/response"
)

// InventoryHandler handles inventory-related HTTP requests.
type InventoryHandler struct {
	catalog *service.CatalogService
	ledger  *service.Ledger
	log     *zap.Logger
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(catalog *service.CatalogService, ledger *service.Ledger, log *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		catalog: catalog,
		ledger:  ledger,
		log:     logger.Named(log, "inventory"),
	}
}

// List handles GET /api/v1/inventory
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.ListInventory(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if rows == nil {
		rows = []model.InventoryRecord{}
	}
	response.OK(w, rows)
}

// Get handles GET /api/v1/inventory/{tool_id}
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "tool_id")
	if toolID == "" {
		response.Error(w, apierror.BadRequest("tool_id is required"))
		return
	}

	inv, err := h.catalog.GetInventory(r.Context(), toolID)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, inv)
}

// Adjust handles POST /api/v1/inventory/{tool_id}/adjust. The body is a
// signed delta per counter.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	toolID := chi.URLParam(r, "tool_id")
	if toolID == "" {
		response.Error(w, apierror.BadRequest("tool_id is required"))
		return
	}

	var delta model.Delta
	if err := decodeJSON(r, &delta); err != nil {
		response.Error(w, err)
		return
	}
	if delta.IsZero() {
		response.Error(w, apierror.ValidationError("delta changes nothing"))
		return
	}

	snap, err := h.ledger.ApplyDelta(r.Context(), toolID, delta)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.OK(w, snap)
}
