package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
)

func newTestStore(t *testing.T) *repository.SQLStore {
	t.Helper()

	dsn := repository.SQLiteDSN(filepath.Join(t.TempDir(), "toolcrib.db"))
	store, err := repository.NewSQLStore(context.Background(), repository.Options{
		Dialect: repository.DialectSQLite,
		DSN:     dsn,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedStock creates a tool and purchases qty units of it.
func seedStock(t *testing.T, store repository.Store, toolID, name string, qty int64) model.InventorySnapshot {
	t.Helper()
	ctx := context.Background()
	catalog := NewCatalogService(store, zap.NewNop())

	_, _, err := catalog.CreateTool(ctx, model.Tool{ToolID: toolID, Name: name})
	require.NoError(t, err)

	res, err := catalog.Purchase(ctx, PurchaseInput{
		ToolID:       toolID,
		SupplierName: "Snap-on",
		Quantity:     qty,
		UnitCost:     12.5,
	})
	require.NoError(t, err)
	return res.Inventory
}

// seedTray creates a station, unit and tray and returns the tray.
func seedTray(t *testing.T, store repository.Store) *model.Tray {
	t.Helper()
	ctx := context.Background()
	loc := NewLocationService(store, zap.NewNop())

	st, err := loc.CreateStation(ctx, model.Station{Name: "Hangar 1"})
	require.NoError(t, err)
	u, err := loc.CreateUnit(ctx, st.ID, model.Unit{Name: "Line A"})
	require.NoError(t, err)
	tray, err := loc.CreateTray(ctx, u.ID, model.Tray{Name: "Torque tray"})
	require.NoError(t, err)
	return tray
}

func counters(t *testing.T, store repository.Store, toolID string) model.Counters {
	t.Helper()
	inv, err := store.GetInventoryByTool(context.Background(), toolID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv.Counters
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingNotifier struct {
	mu         sync.Mutex
	recorded   []int64
	reconciled []string
	err        error
}

func (n *recordingNotifier) PublishEventRecorded(_ context.Context, e *model.ToolEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recorded = append(n.recorded, e.ID)
	return n.err
}

func (n *recordingNotifier) PublishInventoryReconciled(_ context.Context, _ *model.ToolEvent, action string, _ model.InventorySnapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reconciled = append(n.reconciled, action)
	return n.err
}
