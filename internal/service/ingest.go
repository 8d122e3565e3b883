package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/pkg/logger"
)

// Notifier publishes ledger notifications. events.Publisher and events.Nop
// implement it.
type Notifier interface {
	PublishEventRecorded(ctx context.Context, e *model.ToolEvent) error
	PublishInventoryReconciled(ctx context.Context, e *model.ToolEvent, action string, inv model.InventorySnapshot) error
}

// IngestResult combines the recorder outcome with the reconciliation of a
// stored event. Reconcile is nil for ignored drafts.
type IngestResult struct {
	Record    RecordResult
	Reconcile *ReconcileResult
}

// Ingestor is the single entry point for device and simulator events.
type Ingestor struct {
	recorder   *Recorder
	reconciler *Reconciler
	notifier   Notifier
	log        *zap.Logger
}

// NewIngestor wires the pipeline. A nil notifier disables notifications.
func NewIngestor(recorder *Recorder, reconciler *Reconciler, notifier Notifier, log *zap.Logger) *Ingestor {
	return &Ingestor{
		recorder:   recorder,
		reconciler: reconciler,
		notifier:   notifier,
		log:        logger.Named(log, "ingest"),
	}
}

// Ingest records the draft and, when it was stored, reconciles it. A
// reconciliation storage error is returned together with the stored result
// so callers can still report the saved event id.
func (i *Ingestor) Ingest(ctx context.Context, draft model.EventDraft) (IngestResult, error) {
	rec, err := i.recorder.Record(ctx, draft)
	if err != nil {
		return IngestResult{}, err
	}
	out := IngestResult{Record: rec}
	if rec.Outcome != OutcomeStored {
		return out, nil
	}
	i.notify(ctx, "recorded", func() error {
		return i.notifier.PublishEventRecorded(ctx, rec.Event)
	})

	res, err := i.reconciler.Reconcile(ctx, rec.Event)
	if err != nil {
		return out, err
	}
	out.Reconcile = &res

	if res.Success && res.Inventory != nil {
		i.notify(ctx, "reconciled", func() error {
			return i.notifier.PublishInventoryReconciled(ctx, rec.Event, res.Action, *res.Inventory)
		})
	}
	return out, nil
}

// notify never fails ingestion; the event is already committed.
func (i *Ingestor) notify(ctx context.Context, what string, publish func() error) {
	if i.notifier == nil {
		return
	}
	if err := publish(); err != nil {
		i.log.Warn("notification failed", zap.String("notification", what), zap.Error(err))
	}
}

// Window is the duplicate suppression window of the underlying recorder.
func (i *Ingestor) Window() time.Duration {
	return i.recorder.Window()
}
