package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
)

func TestCatalog_CreateToolUpserts(t *testing.T) {
	store := newTestStore(t)
	svc := NewCatalogService(store, zap.NewNop())
	ctx := context.Background()

	tool, created, err := svc.CreateTool(ctx, model.Tool{ToolID: "TW-01", Name: "Torque wrench", Brand: "Snap-on"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, tool.ID)

	updated, created, err := svc.CreateTool(ctx, model.Tool{ToolID: "TW-01", Name: "Torque wrench 3/8", Brand: "Snap-on"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, tool.ID, updated.ID)

	got, err := svc.GetTool(ctx, "TW-01")
	require.NoError(t, err)
	assert.Equal(t, "Torque wrench 3/8", got.Name)

	tools, err := svc.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 1)
}

func TestCatalog_CreateToolValidation(t *testing.T) {
	svc := NewCatalogService(newTestStore(t), zap.NewNop())

	_, _, err := svc.CreateTool(context.Background(), model.Tool{Name: "No id"})
	assert.ErrorIs(t, err, ErrValidation)

	_, _, err = svc.CreateTool(context.Background(), model.Tool{ToolID: "X"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCatalog_Purchase(t *testing.T) {
	store := newTestStore(t)
	svc := NewCatalogService(store, zap.NewNop())
	ctx := context.Background()

	first := seedStock(t, store, "TW-01", "Torque wrench", 3)
	second := seedStock(t, store, "SD-02", "Screwdriver", 1)
	assert.Equal(t, "INV001", first.InventoryID)
	assert.Equal(t, "INV002", second.InventoryID)

	res, err := svc.Purchase(ctx, PurchaseInput{ToolID: "TW-01", SupplierName: "Facom", Quantity: 2, UnitCost: 10})
	require.NoError(t, err)
	assert.Equal(t, "INV001", res.Inventory.InventoryID)
	assert.Equal(t, int64(5), res.Inventory.Total)
	assert.Equal(t, int64(5), res.Inventory.InStock)
	assert.InDelta(t, 20.0, res.Purchase.PurchaseCost, 0.001)

	_, err = svc.Purchase(ctx, PurchaseInput{ToolID: "TW-01", SupplierName: "Facom", Quantity: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Purchase(ctx, PurchaseInput{ToolID: "nope", SupplierName: "Facom", Quantity: 1})
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestCatalog_DeleteToolCascades(t *testing.T) {
	store := newTestStore(t)
	svc := NewCatalogService(store, zap.NewNop())
	assign := NewAssignmentService(store, zap.NewNop())
	ctx := context.Background()

	inv := seedStock(t, store, "TW-01", "Torque wrench", 3)
	tray := seedTray(t, store)
	_, err := assign.Assign(ctx, AssignInput{TrayPK: tray.ID, InventoryID: inv.InventoryID, Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTool(ctx, "TW-01"))

	_, err = svc.GetInventory(ctx, "TW-01")
	assert.ErrorIs(t, err, ErrInventoryNotFound)
	views, err := assign.List(ctx, model.AssignmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, views)

	assert.ErrorIs(t, svc.DeleteTool(ctx, "TW-01"), ErrToolNotFound)
}
