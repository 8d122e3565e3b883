package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/pkg/logger"
)

// AssignInput sets the quantity of one inventory row held by a tray.
type AssignInput struct {
	TrayPK      int64
	InventoryID string
	Quantity    int64
	Remarks     string
	AssignedBy  string
}

// AssignmentSnapshot is the state after a successful Assign.
type AssignmentSnapshot struct {
	Assignment model.TrayAssignment    `json:"assignment"`
	Inventory  model.InventorySnapshot `json:"inventory"`
	Created    bool                    `json:"created"`
	Delta      int64                   `json:"delta"`
}

// AssignLine is one row of a bulk assignment.
type AssignLine struct {
	InventoryID string `json:"inventory_id"`
	Quantity    int64  `json:"quantity"`
	Remarks     string `json:"remarks,omitempty"`
}

// AssignOutcome reports a bulk line. Error is empty on success.
type AssignOutcome struct {
	InventoryID string              `json:"inventory_id"`
	Result      *AssignmentSnapshot `json:"result,omitempty"`
	Error       string              `json:"error,omitempty"`
	err         error
}

// Err returns the underlying error of a failed line.
func (o AssignOutcome) Err() error {
	return o.err
}

// AssignmentService moves stock between the warehouse and trays.
type AssignmentService struct {
	store repository.Store
	log   *zap.Logger
}

// NewAssignmentService creates an assignment service.
func NewAssignmentService(store repository.Store, log *zap.Logger) *AssignmentService {
	return &AssignmentService{store: store, log: logger.Named(log, "assignment")}
}

// Assign creates or re-sizes the (tray, inventory) assignment. Only the
// difference to the previous quantity moves between in_stock and
// assigned_quantity; available_quantity is recomputed as the assigned units
// that are neither issued nor damaged.
func (s *AssignmentService) Assign(ctx context.Context, in AssignInput) (AssignmentSnapshot, error) {
	in.InventoryID = strings.TrimSpace(in.InventoryID)
	if in.InventoryID == "" {
		return AssignmentSnapshot{}, invalid("inventory_id", "is required")
	}
	if in.Quantity < 0 {
		return AssignmentSnapshot{}, invalid("quantity", "must not be negative")
	}

	var out AssignmentSnapshot
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		tray, err := tx.GetTray(ctx, in.TrayPK)
		if err != nil {
			return err
		}
		if tray == nil {
			return fmt.Errorf("%w: %d", ErrTrayNotFound, in.TrayPK)
		}

		inv, err := tx.LockInventory(ctx, in.InventoryID)
		if err != nil {
			return err
		}
		if inv == nil {
			return fmt.Errorf("%w: %s", ErrInventoryNotFound, in.InventoryID)
		}

		existing, err := tx.GetAssignment(ctx, tray.ID, inv.InventoryID)
		if err != nil {
			return err
		}

		var old int64
		if existing != nil {
			old = existing.AssignedQuantity
		} else if in.Quantity == 0 {
			return invalid("quantity", "must be positive")
		}

		delta := in.Quantity - old
		if delta > inv.InStock {
			return fmt.Errorf("%w: requested %d, in stock %d", ErrInsufficientStock, delta, inv.InStock)
		}

		assigned := inv.Assigned + delta
		outstanding := inv.InUse + inv.Damaged
		if assigned < outstanding {
			return fmt.Errorf("%w: assigned would be %d, issued and damaged %d",
				ErrAssignmentBelowOutstanding, assigned, outstanding)
		}

		d := model.Delta{
			InStock:   -delta,
			Assigned:  delta,
			Available: assigned - outstanding - inv.Available,
		}
		if err := ApplyDeltaTx(ctx, tx, inv, d); err != nil {
			return err
		}

		a := existing
		if a == nil {
			a = &model.TrayAssignment{
				TrayPK:      tray.ID,
				InventoryID: inv.InventoryID,
				ToolID:      inv.ToolID,
			}
		}
		a.AssignedQuantity = in.Quantity
		a.Remarks = in.Remarks
		a.AssignedBy = in.AssignedBy

		if existing == nil {
			err = tx.InsertAssignment(ctx, a)
		} else {
			err = tx.UpdateAssignment(ctx, a)
		}
		if err != nil {
			return err
		}

		out = AssignmentSnapshot{
			Assignment: *a,
			Inventory:  inv.Snapshot(),
			Created:    existing == nil,
			Delta:      delta,
		}
		return nil
	})
	if err != nil {
		return AssignmentSnapshot{}, err
	}

	s.log.Info("tray assignment saved",
		zap.Int64("tray_pk", in.TrayPK),
		zap.String("inventory_id", in.InventoryID),
		zap.Int64("quantity", in.Quantity),
		zap.Int64("delta", out.Delta),
		zap.Bool("created", out.Created))
	return out, nil
}

// AssignMany applies each line in its own transaction and keeps going after
// failures, so one short line does not block the rest of the tray.
func (s *AssignmentService) AssignMany(ctx context.Context, trayPK int64, assignedBy string, lines []AssignLine) []AssignOutcome {
	outcomes := make([]AssignOutcome, 0, len(lines))
	for _, line := range lines {
		snap, err := s.Assign(ctx, AssignInput{
			TrayPK:      trayPK,
			InventoryID: line.InventoryID,
			Quantity:    line.Quantity,
			Remarks:     line.Remarks,
			AssignedBy:  assignedBy,
		})

		o := AssignOutcome{InventoryID: line.InventoryID, err: err}
		if err != nil {
			o.Error = err.Error()
			s.log.Warn("bulk assignment line failed",
				zap.Int64("tray_pk", trayPK),
				zap.String("inventory_id", line.InventoryID),
				zap.Error(err))
		} else {
			o.Result = &snap
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// ListForTray returns the assignments held by one tray.
func (s *AssignmentService) ListForTray(ctx context.Context, trayPK int64) ([]model.AssignmentView, error) {
	tray, err := s.store.GetTray(ctx, trayPK)
	if err != nil {
		return nil, err
	}
	if tray == nil {
		return nil, fmt.Errorf("%w: %d", ErrTrayNotFound, trayPK)
	}
	return s.store.ListAssignments(ctx, model.AssignmentFilter{TrayPK: trayPK})
}

// List returns assignments across all trays.
func (s *AssignmentService) List(ctx context.Context, f model.AssignmentFilter) ([]model.AssignmentView, error) {
	return s.store.ListAssignments(ctx, f)
}
