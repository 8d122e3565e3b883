package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/pkg/logger"
)

// Ledger owns every counter change on inventory rows.
type Ledger struct {
	store repository.Store
	log   *zap.Logger
}

// NewLedger creates a ledger on top of the store.
func NewLedger(store repository.Store, log *zap.Logger) *Ledger {
	return &Ledger{store: store, log: logger.Named(log, "ledger")}
}

// ApplyDelta atomically adds delta to the tool's counters. Either every field
// is applied or, when any result would be negative, none is.
func (l *Ledger) ApplyDelta(ctx context.Context, toolID string, delta model.Delta) (model.InventorySnapshot, error) {
	var snap model.InventorySnapshot
	err := l.store.WithinTx(ctx, func(tx repository.Tx) error {
		inv, err := tx.LockInventoryByTool(ctx, toolID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
		}
		if err := ApplyDeltaTx(ctx, tx, inv, delta); err != nil {
			return err
		}
		snap = inv.Snapshot()
		return nil
	})
	if err != nil {
		return model.InventorySnapshot{}, err
	}

	l.log.Info("ledger delta applied",
		zap.String("tool_id", toolID),
		zap.Any("delta", delta),
		zap.Int64("available", snap.Available),
		zap.Int64("in_use", snap.InUse))
	return snap, nil
}

// ApplyDeltaTx applies delta to a row already locked by tx and saves it.
// inv is updated in place.
func ApplyDeltaTx(ctx context.Context, tx repository.Tx, inv *model.InventoryRecord, delta model.Delta) error {
	next, err := addDelta(inv.Counters, delta)
	if err != nil {
		return err
	}
	if delta.IsZero() {
		return nil
	}
	inv.Counters = next
	return tx.SaveCounters(ctx, inv)
}

func addDelta(c model.Counters, d model.Delta) (model.Counters, error) {
	next := model.Counters{
		Total:     c.Total + d.Total,
		InStock:   c.InStock + d.InStock,
		Assigned:  c.Assigned + d.Assigned,
		Available: c.Available + d.Available,
		InUse:     c.InUse + d.InUse,
		Damaged:   c.Damaged + d.Damaged,
	}

	fields := []struct {
		name  string
		value int64
	}{
		{"total_quantity", next.Total},
		{"in_stock", next.InStock},
		{"assigned_quantity", next.Assigned},
		{"available_quantity", next.Available},
		{"in_use", next.InUse},
		{"damaged", next.Damaged},
	}
	for _, f := range fields {
		if f.value < 0 {
			return c, fmt.Errorf("%w: %s would be %d", ErrNegativeResult, f.name, f.value)
		}
	}
	return next, nil
}
