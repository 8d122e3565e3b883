package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/internal/service"
)

type testEnv struct {
	store     *repository.SQLStore
	catalog   *service.CatalogService
	locations *service.LocationService
	assign    *service.AssignmentService
	mux       http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	store, err := repository.NewSQLStore(context.Background(), repository.Options{
		Dialect: repository.DialectSQLite,
		DSN:     repository.SQLiteDSN(filepath.Join(t.TempDir(), "handler.db")),
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	catalog := service.NewCatalogService(store, log)
	locations := service.NewLocationService(store, log)
	assignments := service.NewAssignmentService(store, log)
	status := service.NewStatusService(store)
	ledger := service.NewLedger(store, log)
	recorder := service.NewRecorder(store, log)
	reconciler := service.NewReconciler(store, log)
	ingestor := service.NewIngestor(recorder, reconciler, nil, log)

	detect := NewDetectionHandler(ingestor, reconciler, "10.0.0.1", log)
	inv := NewInventoryHandler(catalog, ledger, log)
	tools := NewToolHandler(catalog, status, log)
	locs := NewLocationHandler(locations, log)
	asg := NewAssignmentHandler(assignments, locations, log)
	events := NewEventHandler(status, nil, log)
	h := New("toolcrib-api", "test", store, nil, nil)

	r := chi.NewRouter()
	r.Post("/api/detections/", detect.Receive)
	r.Post("/inventory/update/", detect.UpdateInventory)
	r.Get("/api/v1/health", h.Health)
	r.Get("/api/v1/ready", h.Ready)
	r.Get("/api/v1/inventory/{tool_id}", inv.Get)
	r.Post("/api/v1/inventory/{tool_id}/adjust", inv.Adjust)
	r.Post("/api/v1/tools", tools.Create)
	r.Get("/api/v1/tools/{tool_id}", tools.Get)
	r.Get("/api/v1/tools/{tool_id}/status", tools.Status)
	r.Post("/api/v1/tools/{tool_id}/purchases", tools.Purchase)
	r.Post("/api/v1/stations", locs.CreateStation)
	r.Delete("/api/v1/stations/{id}", locs.DeleteStation)
	r.Post("/api/v1/stations/{id}/units", locs.CreateUnit)
	r.Post("/api/v1/units/{id}/trays", locs.CreateTray)
	r.Get("/api/v1/trays/{tray}/assignments", asg.ListForTray)
	r.Post("/api/v1/trays/{tray}/assignments", asg.Assign)
	r.Get("/api/v1/assignments", asg.List)
	r.Get("/api/v1/events", events.List)

	return &testEnv{store: store, catalog: catalog, locations: locations, assign: assignments, mux: r}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "192.168.1.50:40000"
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

// seedAssigned creates a tool with stock and assigns qty of it to a new tray.
func (e *testEnv) seedAssigned(t *testing.T, toolID string, stock, qty int64) *model.Tray {
	t.Helper()
	ctx := context.Background()

	_, _, err := e.catalog.CreateTool(ctx, model.Tool{ToolID: toolID, Name: "Torque wrench"})
	require.NoError(t, err)
	res, err := e.catalog.Purchase(ctx, service.PurchaseInput{ToolID: toolID, SupplierName: "Snap-on", Quantity: stock})
	require.NoError(t, err)

	st, err := e.locations.CreateStation(ctx, model.Station{Name: "Hangar 2"})
	require.NoError(t, err)
	u, err := e.locations.CreateUnit(ctx, st.ID, model.Unit{Name: "Line B"})
	require.NoError(t, err)
	tray, err := e.locations.CreateTray(ctx, u.ID, model.Tray{Name: "Wrenches"})
	require.NoError(t, err)

	_, err = e.assign.Assign(ctx, service.AssignInput{TrayPK: tray.ID, InventoryID: res.Inventory.InventoryID, Quantity: qty})
	require.NoError(t, err)
	return tray
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Limit  int   `json:"limit"`
		Offset int   `json:"offset"`
		Total  int64 `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			Field string `json:"field"`
		} `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestDetection_StoredThenDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssigned(t, "TW-01", 5, 3)

	payload := map[string]interface{}{
		"timestamp": "2024-05-01T10:00:00Z",
		"event":     "tool_Issued",
		"username":  "alice",
		"tool_id":   "TW-01",
		"tool_name": "Torque wrench",
		"unit_id":   "U001",
		"tray_id":   "T001",
	}

	rec := env.do(t, http.MethodPost, "/api/detections/", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first DetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.Equal(t, "success", first.Status)
	assert.NotZero(t, first.SavedEventID)
	assert.Equal(t, "10.0.0.1", first.ServerIP)
	assert.Equal(t, "192.168.1.50", first.ClientIP)
	require.NotNil(t, first.InventoryUpdate)
	assert.True(t, first.InventoryUpdate.Success)
	require.NotNil(t, first.InventoryUpdate.Inventory)
	assert.Equal(t, int64(2), first.InventoryUpdate.Inventory.Available)
	assert.Equal(t, int64(1), first.InventoryUpdate.Inventory.InUse)

	payload["timestamp"] = "2024-05-01T10:00:03Z"
	rec = env.do(t, http.MethodPost, "/api/detections/", payload)
	require.Equal(t, http.StatusOK, rec.Code)

	var second DetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.Equal(t, "ignored", second.Status)
	assert.Zero(t, second.SavedEventID)

	e, err := env.store.GetEvent(context.Background(), first.SavedEventID)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, "alice", e.UserName)
}

func TestDetection_NumericFieldsAndUserAliases(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/detections/",
		`{"event":"tray_open","user":"bob","user_id":42,"tray_id":7,"timestamp":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DetectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.NotNil(t, resp.InventoryUpdate)
	assert.False(t, resp.InventoryUpdate.Success)
	assert.Equal(t, service.ReasonNotInventory, resp.InventoryUpdate.Reason)

	e, err := env.store.GetEvent(context.Background(), resp.SavedEventID)
	require.NoError(t, err)
	assert.Equal(t, "bob", e.UserName)
	assert.Equal(t, "42", e.UserID)
	assert.Equal(t, "7", e.TrayID)
}

func TestDetection_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"event":`},
		{"missing event", `{"tool_id":"X"}`},
		{"unknown event", `{"event":"tool_teleported"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/detections/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp DetectionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestUpdateInventory(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/inventory/update/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res service.ReconcileResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.False(t, res.Success)
	assert.Equal(t, service.ReasonNoEvents, res.Reason)
}

func TestTools_CreatePurchaseAndAdjust(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tools", map[string]string{"tool_id": "MM-1", "tool_name": "Multimeter"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/tools", map[string]string{"tool_id": "MM-1", "tool_name": "Fluke multimeter"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tools/MM-1/purchases", map[string]interface{}{
		"supplier_name": "Fluke",
		"quantity":      4,
		"unit_cost":     99.5,
		"purchase_date": "2024-03-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var purchase service.PurchaseResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &purchase))
	assert.Equal(t, int64(4), purchase.Inventory.InStock)
	assert.InDelta(t, 398.0, purchase.Purchase.PurchaseCost, 0.001)

	rec = env.do(t, http.MethodPost, "/api/v1/inventory/MM-1/adjust", map[string]int64{"in_stock": -5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/inventory/MM-1/adjust", map[string]int64{"in_stock": -1, "damaged": 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/inventory/MM-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inv model.InventoryRecord
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &inv))
	assert.Equal(t, int64(3), inv.InStock)
	assert.Equal(t, int64(1), inv.Damaged)
	assert.Equal(t, "Fluke multimeter", inv.ToolName)
}

func TestTools_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tools", map[string]string{"tool_name": "No id"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	assert.False(t, body.Success)
	require.NotNil(t, body.Error)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	require.Len(t, body.Error.Details, 1)
	assert.Equal(t, "tool_id", body.Error.Details[0].Field)

	rec = env.do(t, http.MethodGet, "/api/v1/tools/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tools/NOPE/purchases", map[string]interface{}{"supplier_name": "x", "quantity": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tools", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocationsAndAssignments(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.catalog.CreateTool(ctx, model.Tool{ToolID: "SD-1", Name: "Screwdriver set"})
	require.NoError(t, err)
	res, err := env.catalog.Purchase(ctx, service.PurchaseInput{ToolID: "SD-1", SupplierName: "Wera", Quantity: 10})
	require.NoError(t, err)
	invID := res.Inventory.InventoryID

	rec := env.do(t, http.MethodPost, "/api/v1/stations", map[string]string{"name": "Hangar 3"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st model.Station
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &st))

	rec = env.do(t, http.MethodPost, "/api/v1/stations/"+itoa(st.ID)+"/units", map[string]string{"name": "Line C"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var unit model.Unit
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &unit))
	assert.Equal(t, st.StationID, unit.StationCode)

	rec = env.do(t, http.MethodPost, "/api/v1/units/"+itoa(unit.ID)+"/trays", map[string]string{"tray_name": "Drivers"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tray model.Tray
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &tray))

	rec = env.do(t, http.MethodPost, "/api/v1/trays/"+tray.TrayID+"/assignments",
		map[string]interface{}{"inventory_id": invID, "quantity": 4, "assigned_by": "lead"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/trays/"+itoa(tray.ID)+"/assignments",
		[]map[string]interface{}{{"inventory_id": invID, "quantity": 6}, {"inventory_id": "INV-missing", "quantity": 1}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var bulk BulkAssignResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &bulk))
	assert.Equal(t, 1, bulk.Applied)
	assert.Equal(t, 1, bulk.Failed)
	require.Len(t, bulk.Results, 2)
	assert.NotEmpty(t, bulk.Results[1].Error)

	rec = env.do(t, http.MethodPost, "/api/v1/trays/"+tray.TrayID+"/assignments",
		map[string]interface{}{"inventory_id": invID, "quantity": 20})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/trays/"+tray.TrayID+"/assignments", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var views []model.AssignmentView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, int64(6), views[0].AssignedQuantity)
	assert.Equal(t, tray.TrayID, views[0].TrayCode)

	rec = env.do(t, http.MethodGet, "/api/v1/assignments?tool_name=driver", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &views))
	assert.Len(t, views, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/assignments?station=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/trays/T999/assignments", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/stations/"+itoa(st.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/v1/stations/"+itoa(st.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_ListAndStatus(t *testing.T) {
	env := newTestEnv(t)
	env.seedAssigned(t, "TW-02", 2, 2)

	for _, body := range []string{
		`{"timestamp":"2024-05-01T08:00:00Z","event":"tool_Issued","user_name":"carol","tool_id":"TW-02"}`,
		`{"timestamp":"2024-05-01T09:00:00Z","event":"tray_close","user_name":"carol"}`,
	} {
		rec := env.do(t, http.MethodPost, "/api/detections/", body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/v1/events?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeEnvelope(t, rec)
	require.NotNil(t, body.Meta)
	assert.Equal(t, int64(2), body.Meta.Total)
	assert.Equal(t, 1, body.Meta.Limit)
	var events []model.ToolEvent
	require.NoError(t, json.Unmarshal(body.Data, &events))
	require.Len(t, events, 1)

	rec = env.do(t, http.MethodGet, "/api/v1/events?event=issued", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, model.EventToolIssued, events[0].Event)

	rec = env.do(t, http.MethodGet, "/api/v1/events?event=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/v1/events?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tools/TW-02/status", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var st service.ToolStatus
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &st))
	assert.Equal(t, service.StateIssued, st.State)
	assert.Equal(t, "carol", st.UserName)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ready ReadyResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &ready))
	assert.True(t, ready.Ready)
	assert.Len(t, ready.Checks, 2)

	require.NoError(t, env.store.Close())
	rec = env.do(t, http.MethodGet, "/api/v1/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFlexString(t *testing.T) {
	var v struct {
		A flexString `json:"a"`
		B flexString `json:"b"`
		C flexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":12.5,"c":null}`), &v))
	assert.Equal(t, flexString("x"), v.A)
	assert.Equal(t, flexString("12.5"), v.B)
	assert.Equal(t, flexString(""), v.C)

	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
