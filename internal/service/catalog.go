package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"toolcrib-api/internal/model"
	"toolcrib-api/internal/repository"
	"toolcrib-api/pkg/logger"
)

// PurchaseInput records stock bought for a tool.
type PurchaseInput struct {
	ToolID        string
	SupplierName  string
	InvoiceNumber string
	Quantity      int64
	UnitCost      float64
	PurchaseDate  time.Time
	Calibration   *time.Time
	Remarks       string
}

// PurchaseResult is the stored purchase with the resulting inventory.
type PurchaseResult struct {
	Purchase  model.ToolPurchase      `json:"purchase"`
	Inventory model.InventorySnapshot `json:"inventory"`
}

// CatalogService manages tools and stock intake.
type CatalogService struct {
	store repository.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewCatalogService creates a catalog service.
func NewCatalogService(store repository.Store, log *zap.Logger) *CatalogService {
	return &CatalogService{store: store, log: logger.Named(log, "catalog"), now: time.Now}
}

// CreateTool inserts the tool or updates it when tool_id already exists.
func (s *CatalogService) CreateTool(ctx context.Context, t model.Tool) (*model.Tool, bool, error) {
	t.ToolID = strings.TrimSpace(t.ToolID)
	t.Name = strings.TrimSpace(t.Name)
	if t.ToolID == "" {
		return nil, false, invalid("tool_id", "is required")
	}
	if t.Name == "" {
		return nil, false, invalid("tool_name", "is required")
	}

	var created bool
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		created, err = tx.UpsertTool(ctx, &t)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	s.log.Info("tool saved", zap.String("tool_id", t.ToolID), zap.Bool("created", created))
	return &t, created, nil
}

// GetTool returns a tool or ErrToolNotFound.
func (s *CatalogService) GetTool(ctx context.Context, toolID string) (*model.Tool, error) {
	t, err := s.store.GetTool(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}
	return t, nil
}

func (s *CatalogService) ListTools(ctx context.Context) ([]model.Tool, error) {
	return s.store.ListTools(ctx)
}

// DeleteTool removes the tool with its inventory, purchases and assignments.
// Recorded events keep their copies of tool_id and tool_name.
func (s *CatalogService) DeleteTool(ctx context.Context, toolID string) error {
	ok, err := s.store.DeleteTool(ctx, toolID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrToolNotFound, toolID)
	}
	s.log.Info("tool deleted", zap.String("tool_id", toolID))
	return nil
}

// Purchase stores the purchase, creates the inventory row on first intake
// and adds the quantity to total_quantity and in_stock.
func (s *CatalogService) Purchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	if in.Quantity <= 0 {
		return PurchaseResult{}, invalid("quantity", "must be positive")
	}
	if in.UnitCost < 0 {
		return PurchaseResult{}, invalid("unit_cost", "must not be negative")
	}
	if strings.TrimSpace(in.SupplierName) == "" {
		return PurchaseResult{}, invalid("supplier_name", "is required")
	}
	if in.PurchaseDate.IsZero() {
		in.PurchaseDate = s.now()
	}

	var out PurchaseResult
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		tool, err := tx.GetTool(ctx, in.ToolID)
		if err != nil {
			return err
		}
		if tool == nil {
			return fmt.Errorf("%w: %s", ErrToolNotFound, in.ToolID)
		}

		p := model.ToolPurchase{
			ToolPK:        tool.ID,
			SupplierName:  strings.TrimSpace(in.SupplierName),
			InvoiceNumber: strings.TrimSpace(in.InvoiceNumber),
			Quantity:      in.Quantity,
			UnitCost:      in.UnitCost,
			PurchaseCost:  float64(in.Quantity) * in.UnitCost,
			PurchaseDate:  in.PurchaseDate,
			Calibration:   in.Calibration,
			Remarks:       in.Remarks,
		}
		if err := tx.InsertPurchase(ctx, &p); err != nil {
			return err
		}

		inv, err := tx.LockInventoryByTool(ctx, tool.ToolID)
		if err != nil {
			return err
		}
		if inv == nil {
			if inv, err = tx.CreateInventory(ctx, tool); err != nil {
				return err
			}
		}
		if err := ApplyDeltaTx(ctx, tx, inv, model.Delta{Total: in.Quantity, InStock: in.Quantity}); err != nil {
			return err
		}

		out = PurchaseResult{Purchase: p, Inventory: inv.Snapshot()}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	s.log.Info("purchase recorded",
		zap.String("tool_id", in.ToolID),
		zap.Int64("quantity", in.Quantity),
		zap.String("inventory_id", out.Inventory.InventoryID))
	return out, nil
}

// GetInventory returns the ledger row of a tool.
func (s *CatalogService) GetInventory(ctx context.Context, toolID string) (*model.InventoryRecord, error) {
	inv, err := s.store.GetInventoryByTool(ctx, toolID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrInventoryNotFound, toolID)
	}
	return inv, nil
}

func (s *CatalogService) ListInventory(ctx context.Context) ([]model.InventoryRecord, error) {
	return s.store.ListInventory(ctx)
}
