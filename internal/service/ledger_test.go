package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"toolcrib-api/internal/model"
)

func TestLedger_ApplyDelta(t *testing.T) {
	store := newTestStore(t)
	seedStock(t, store, "TW-01", "Torque wrench", 10)
	ledger := NewLedger(store, zap.NewNop())

	snap, err := ledger.ApplyDelta(context.Background(), "TW-01", model.Delta{InStock: -2, Damaged: 2})
	require.NoError(t, err)

	assert.Equal(t, int64(8), snap.InStock)
	assert.Equal(t, int64(2), snap.Damaged)
	assert.Equal(t, int64(10), snap.Total)
	assert.Equal(t, snap.Counters, counters(t, store, "TW-01"))
}

func TestLedger_ApplyDelta_RejectsNegativeWithoutPartialWrite(t *testing.T) {
	store := newTestStore(t)
	seedStock(t, store, "TW-01", "Torque wrench", 3)
	ledger := NewLedger(store, zap.NewNop())

	_, err := ledger.ApplyDelta(context.Background(), "TW-01", model.Delta{Total: 5, InStock: -4})
	assert.ErrorIs(t, err, ErrNegativeResult)

	c := counters(t, store, "TW-01")
	assert.Equal(t, int64(3), c.Total)
	assert.Equal(t, int64(3), c.InStock)
}

func TestLedger_ApplyDelta_UnknownTool(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedger(store, zap.NewNop())

	_, err := ledger.ApplyDelta(context.Background(), "missing", model.Delta{InStock: 1})
	assert.ErrorIs(t, err, ErrToolNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddDelta(t *testing.T) {
	base := model.Counters{Total: 5, InStock: 1, Assigned: 4, Available: 2, InUse: 1, Damaged: 1}

	next, err := addDelta(base, model.Delta{Available: -2, InUse: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(0), next.Available)
	assert.Equal(t, int64(3), next.InUse)

	_, err = addDelta(base, model.Delta{Damaged: -2})
	assert.ErrorIs(t, err, ErrNegativeResult)
}
