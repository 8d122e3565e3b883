package service

import (
	"context"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/pkg/logger"
)

// Reasons reported when reconciliation leaves the ledger untouched.
const (
	ReasonNoUpdatePossible = "No inventory update possible"
	ReasonNotInventory     = "Event does not affect inventory"
	ReasonToolNotFound     = "Tool not found in inventory"
	ReasonNoEvents         = "No events recorded"
)

// ReconcileResult reports what an event did to the ledger. A false Success
// is a normal outcome, not an error: the event stays recorded.
type ReconcileResult struct {
	Success   bool                     `json:"success"`
	Reason    string                   `json:"reason,omitempty"`
	Action    string                   `json:"action,omitempty"`
	EventID   int64                    `json:"event_id,omitempty"`
	Event     model.EventKind          `json:"event,omitempty"`
	ToolID    string                   `json:"tool_id,omitempty"`
	Inventory *model.InventorySnapshot `json:"inventory,omitempty"`
}

type rule struct {
	action string
	allow  func(model.Counters) bool
	delta  model.Delta
}

var rules = map[model.EventKind]rule{
	model.EventToolIssued: {
		action: "issued",
		allow:  func(c model.Counters) bool { return c.Available > 0 },
		delta:  model.Delta{Available: -1, InUse: 1},
	},
	model.EventToolReturned: {
		action: "returned",
		allow:  func(c model.Counters) bool { return c.InUse > 0 },
		delta:  model.Delta{InUse: -1, Available: 1},
	},
	model.EventToolDamaged: {
		action: "damaged",
		allow:  func(c model.Counters) bool { return c.Available > 0 },
		delta:  model.Delta{Available: -1, Damaged: 1},
	},
}

// Reconciler maps stored events onto ledger deltas.
type Reconciler struct {
	store repository.Store
	log   *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(store repository.Store, log *zap.Logger) *Reconciler {
	return &Reconciler{store: store, log: logger.Named(log, "reconciler")}
}

// Reconcile applies the event's effect to its tool's inventory row. The
// precondition check and the write happen under the row lock.
func (r *Reconciler) Reconcile(ctx context.Context, e *model.ToolEvent) (ReconcileResult, error) {
	result := ReconcileResult{EventID: e.ID, Event: e.Event, ToolID: e.ToolID}

	rl, ok := rules[e.Event]
	if !ok {
		result.Reason = ReasonNotInventory
		return result, nil
	}

	err := r.store.WithinTx(ctx, func(tx repository.Tx) error {
		tool, err := tx.FindTool(ctx, e.ToolID, e.ToolName)
		if err != nil {
			return err
		}
		if tool == nil {
			result.Reason = ReasonToolNotFound
			return nil
		}
		result.ToolID = tool.ToolID

		inv, err := tx.LockInventoryByTool(ctx, tool.ToolID)
		if err != nil {
			return err
		}
		if inv == nil {
			result.Reason = ReasonToolNotFound
			return nil
		}

		if !rl.allow(inv.Counters) {
			snap := inv.Snapshot()
			result.Reason = ReasonNoUpdatePossible
			result.Inventory = &snap
			return nil
		}
		if err := ApplyDeltaTx(ctx, tx, inv, rl.delta); err != nil {
			return err
		}

		snap := inv.Snapshot()
		result.Success = true
		result.Action = rl.action
		result.Inventory = &snap
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	if result.Success {
		r.log.Info("inventory reconciled",
			zap.Int64("event_id", e.ID),
			zap.String("tool_id", result.ToolID),
			zap.String("action", result.Action))
	} else {
		r.log.Info("event not reconciled",
			zap.Int64("event_id", e.ID),
			zap.String("event", string(e.Event)),
			zap.String("reason", result.Reason))
	}
	return result, nil
}

// ReconcileLatest reconciles the most recently recorded event. Calling it
// twice applies the same event twice; callers own that decision.
func (r *Reconciler) ReconcileLatest(ctx context.Context) (ReconcileResult, error) {
	e, err := r.store.LatestEvent(ctx)
	if err != nil {
		return ReconcileResult{}, err
	}
	if e == nil {
		return ReconcileResult{Reason: ReasonNoEvents}, nil
	}
	return r.Reconcile(ctx, e)
}
