package handler

import (
	"net/http"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/response"
)

// LocationHandler serves stations, units and trays.
type LocationHandler struct {
	locations *service.LocationService
	log       *zap.Logger
}

func NewLocationHandler(locations *service.LocationService, log *zap.Logger) *LocationHandler {
	return &LocationHandler{locations: locations, log: logger.Named(log, "locations")}
}

// ListStations handles GET /api/v1/stations
func (h *LocationHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.locations.ListStations(r.Context())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if stations == nil {
		stations = []model.Station{}
	}
	response.OK(w, stations)
}

// CreateStation handles POST /api/v1/stations
func (h *LocationHandler) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req model.Station
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	st, err := h.locations.CreateStation(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, st)
}

// DeleteStation handles DELETE /api/v1/stations/{id}
func (h *LocationHandler) DeleteStation(w http.ResponseWriter, r *http.Request) {
	pk, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	if err := h.locations.DeleteStation(r.Context(), pk); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.NoContent(w)
}

// ListUnits handles GET /api/v1/stations/{id}/units
func (h *LocationHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	pk, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	units, err := h.locations.ListUnits(r.Context(), pk)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if units == nil {
		units = []model.Unit{}
	}
	response.OK(w, units)
}

// CreateUnit handles POST /api/v1/stations/{id}/units
func (h *LocationHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	pk, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req model.Unit
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	unit, err := h.locations.CreateUnit(r.Context(), pk, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, unit)
}

// ListTrays handles GET /api/v1/units/{id}/trays
func (h *LocationHandler) ListTrays(w http.ResponseWriter, r *http.Request) {
	pk, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	trays, err := h.locations.ListTrays(r.Context(), pk)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	if trays == nil {
		trays = []model.Tray{}
	}
	response.OK(w, trays)
}

// CreateTray handles POST /api/v1/units/{id}/trays
func (h *LocationHandler) CreateTray(w http.ResponseWriter, r *http.Request) {
	pk, err := pathID(r, "id")
	if err != nil {
		response.Error(w, err)
		return
	}
	var req model.Tray
	if err := decodeJSON(r, &req); err != nil {
		response.Error(w, err)
		return
	}
	tray, err := h.locations.CreateTray(r.Context(), pk, req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	response.Created(w, tray)
}
