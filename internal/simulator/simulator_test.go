package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/service"
)

type captureSink struct {
	mu     sync.Mutex
	drafts []model.EventDraft
	err    error
}

func (s *captureSink) Send(_ context.Context, d model.EventDraft) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append(s.drafts, d)
	if s.err != nil {
		return "", s.err
	}
	return string(service.OutcomeStored), nil
}

func TestGenerator_ProducesValidDrafts(t *testing.T) {
	pool := Pool{Tools: []ToolRef{{ToolID: "X-1", Name: "Rivet gun"}}}
	g := NewGenerator(pool, "10.1.1.1", 42)
	g.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	seen := map[model.EventKind]bool{}
	for i := 0; i < 500; i++ {
		d := g.Next()

		kind, ok := model.ParseEventKind(d.Event)
		require.True(t, ok, d.Event)
		seen[kind] = true

		assert.Equal(t, "10.1.1.1", d.ClientIP)
		assert.Equal(t, "2024-06-01T12:00:00Z", d.Timestamp)
		assert.Contains(t, DefaultPool().Trays, d.TrayID)

		if kind.AffectsInventory() {
			assert.Equal(t, "X-1", d.ToolID)
			assert.Equal(t, "Rivet gun", d.ToolName)
		} else {
			assert.Empty(t, d.ToolID)
		}

		var raw map[string]interface{}
		require.NoError(t, json.Unmarshal(d.Raw, &raw))
		assert.Equal(t, d.Event, raw["event"])
	}
	assert.True(t, seen[model.EventToolIssued])
	assert.True(t, seen[model.EventToolReturned])
	assert.True(t, seen[model.EventTrayOpen])
}

func TestGenerator_SameSeedSameSequence(t *testing.T) {
	a := NewGenerator(Pool{}, "", 7)
	b := NewGenerator(Pool{}, "", 7)
	for i := 0; i < 20; i++ {
		da, db := a.Next(), b.Next()
		assert.Equal(t, da.Event, db.Event)
		assert.Equal(t, da.ToolID, db.ToolID)
		assert.Equal(t, da.TrayID, db.TrayID)
	}
}

func TestSimulator_Tick(t *testing.T) {
	sink := &captureSink{}
	sim, err := New(sink, NewGenerator(Pool{}, "127.0.0.1", 1), "", zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, sim.Tick(context.Background()))
	require.Len(t, sink.drafts, 1)

	sink.err = errors.New("down")
	assert.Error(t, sim.Tick(context.Background()))
}

func TestSimulator_InvalidSchedule(t *testing.T) {
	_, err := New(&captureSink{}, NewGenerator(Pool{}, "", 1), "every so often", zap.NewNop())
	assert.Error(t, err)
}

func TestSimulator_StartStop(t *testing.T) {
	sim, err := New(&captureSink{}, NewGenerator(Pool{}, "", 1), "@every 1h", zap.NewNop())
	require.NoError(t, err)
	sim.Start()
	select {
	case <-sim.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
}

func TestHTTPSink(t *testing.T) {
	var (
		gotPath string
		gotFwd  string
		gotBody map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFwd = r.Header.Get("X-Forwarded-For")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		if gotBody["event"] == "tray_close" {
			_, _ = w.Write([]byte(`{"status":"ignored","message":"duplicate"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"success","message":"Event saved"}`))
	}))
	defer srv.Close()

	sink := NewHTTPSink(srv.URL + "/")
	outcome, err := sink.Send(context.Background(), model.EventDraft{
		Event:    "tool_Issued",
		ToolID:   "TW-001",
		ClientIP: "10.9.9.9",
	})
	require.NoError(t, err)
	assert.Equal(t, string(service.OutcomeStored), outcome)
	assert.Equal(t, "/api/detections/", gotPath)
	assert.Equal(t, "10.9.9.9", gotFwd)
	assert.Equal(t, "TW-001", gotBody["tool_id"])

	outcome, err = sink.Send(context.Background(), model.EventDraft{Event: "tray_close"})
	require.NoError(t, err)
	assert.Equal(t, "ignored", outcome)
}

func TestHTTPSink_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":"error","message":"event: is required"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPSink(srv.URL).Send(context.Background(), model.EventDraft{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event: is required")
}
