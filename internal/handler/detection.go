package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"toolcrib-api/internal/middleware"
	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
	"toolcrib-api/pkg/logger"
	"toolcrib-api/pkg/response"
)

// flexString accepts a JSON string, number or null. Devices are not
// consistent about quoting ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type detectionRequest struct {
	Timestamp      flexString `json:"timestamp"`
	Event          flexString `json:"event"`
	UserName       flexString `json:"user_name"`
	Username       flexString `json:"username"`
	User           flexString `json:"user"`
	UserID         flexString `json:"user_id"`
	ToolName       flexString `json:"tool_name"`
	ToolID         flexString `json:"tool_id"`
	UnitID         flexString `json:"unit_id"`
	TrayID         flexString `json:"tray_id"`
	ServiceStation flexString `json:"service_station"`
	Unit           flexString `json:"unit"`
	DeviceID       flexString `json:"device_id"`
}

func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

func (d detectionRequest) draft(raw []byte, clientIP string) model.EventDraft {
	return model.EventDraft{
		Timestamp:      string(d.Timestamp),
		Event:          string(d.Event),
		ServiceStation: string(d.ServiceStation),
		Unit:           string(d.Unit),
		UnitID:         string(d.UnitID),
		UserID:         string(d.UserID),
		UserName:       firstNonEmpty(d.UserName, d.Username, d.User),
		TrayID:         string(d.TrayID),
		ToolID:         string(d.ToolID),
		ToolName:       string(d.ToolName),
		DeviceID:       string(d.DeviceID),
		ClientIP:       clientIP,
		Raw:            raw,
	}
}

// DetectionResponse is the device-facing ingestion reply. It is not wrapped
// in the management envelope.
type DetectionResponse struct {
	Status          string                   `json:"status"`
	Message         string                   `json:"message"`
	SavedEventID    int64                    `json:"saved_event_id,omitempty"`
	InventoryUpdate *service.ReconcileResult `json:"inventory_update,omitempty"`
	ServerIP        string                   `json:"server_ip,omitempty"`
	ClientIP        string                   `json:"client_ip,omitempty"`
}

// DetectionHandler serves the device endpoints.
type DetectionHandler struct {
	ingestor   *service.Ingestor
	reconciler *service.Reconciler
	serverIP   string
	log        *zap.Logger
}

// NewDetectionHandler creates the ingestion handler. serverIP is echoed back
// to devices; an empty value is replaced with the first non-loopback IPv4.
func NewDetectionHandler(ingestor *service.Ingestor, reconciler *service.Reconciler, serverIP string, log *zap.Logger) *DetectionHandler {
	if serverIP == "" {
		serverIP = LocalIP()
	}
	return &DetectionHandler{
		ingestor:   ingestor,
		reconciler: reconciler,
		serverIP:   serverIP,
		log:        logger.Named(log, "detection"),
	}
}

func detectionError(w http.ResponseWriter, status int, message string) {
	response.Raw(w, status, DetectionResponse{Status: "error", Message: message})
}

// Receive handles POST /api/detections/
func (h *DetectionHandler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		detectionError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req detectionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		detectionError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	clientIP := middleware.ClientIP(r)
	res, err := h.ingestor.Ingest(r.Context(), req.draft(raw, clientIP))
	switch {
	case errors.Is(err, service.ErrValidation):
		detectionError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil && res.Record.Outcome == service.OutcomeStored:
		h.log.Error("reconciliation failed", zap.Int64("event_id", res.Record.EventID), zap.Error(err))
		response.Raw(w, http.StatusInternalServerError, DetectionResponse{
			Status:       "error",
			Message:      "event saved but inventory update failed",
			SavedEventID: res.Record.EventID,
			ServerIP:     h.serverIP,
			ClientIP:     clientIP,
		})
		return
	case err != nil:
		h.log.Error("ingestion failed", zap.String("client_ip", clientIP), zap.Error(err))
		detectionError(w, http.StatusInternalServerError, "failed to save event")
		return
	}

	if res.Record.Outcome == service.OutcomeIgnored {
		response.Raw(w, http.StatusOK, DetectionResponse{
			Status:  "ignored",
			Message: "Duplicate event within " + strconv.FormatFloat(h.ingestor.Window().Seconds(), 'f', -1, 64) + " seconds",
		})
		return
	}

	response.Raw(w, http.StatusOK, DetectionResponse{
		Status:          "success",
		Message:         "Event saved",
		SavedEventID:    res.Record.EventID,
		InventoryUpdate: res.Reconcile,
		ServerIP:        h.serverIP,
		ClientIP:        clientIP,
	})
}

// UpdateInventory handles POST /inventory/update/ by reconciling the most
// recent event.
func (h *DetectionHandler) UpdateInventory(w http.ResponseWriter, r *http.Request) {
	res, err := h.reconciler.ReconcileLatest(r.Context())
	if err != nil {
		h.log.Error("inventory update failed", zap.Error(err))
		response.Raw(w, http.StatusInternalServerError, service.ReconcileResult{Reason: "Inventory update failed"})
		return
	}
	response.Raw(w, http.StatusOK, res)
}

// LocalIP returns the first non-loopback IPv4 address of this host.
func LocalIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			if ip4 := ipnet.IP.To4(); ip4 != nil {
				return ip4.String()
			}
		}
	}
	return ""
}
