// Package product adds the stock operations that sit on top of the generic
// product entity.
package product

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/product/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
)

// Movement kinds.
const (
	KindIn     = "IN"
	KindOut    = "OUT"
	KindAdjust = "ADJUST"
)

const lowStockLimit = 500

// Adjustment moves the stock of one product. For ADJUST, Quantity is the
// new absolute stock; otherwise it is the amount received or removed.
type Adjustment struct {
	ProductID int64  `json:"-"`
	Kind      string `json:"kind"`
	Quantity  int64  `json:"quantity"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
	UserID    int64  `json:"-"`
}

// Result is the product after the adjustment and the movement recorded
// for it.
type Result struct {
	Product  store.Record `json:"product"`
	Movement store.Record `json:"movement"`
}

// StockObserver is told about every committed adjustment.
type StockObserver interface {
	ObserveStockAdjustment(kind string)
}

type Reports interface {
	LowStock(ctx context.Context, limit int) ([]repo.LowStockItem, error)
}

type Service struct {
	engine   *store.Engine
	reports  Reports
	log      *zap.SugaredLogger
	observer StockObserver
}

func NewService(engine *store.Engine, reports Reports, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{engine: engine, reports: reports, log: log}
}

func (s *Service) WithObserver(o StockObserver) *Service {
	s.observer = o
	return s
}

func (a *Adjustment) normalize() error {
	a.Kind = strings.ToUpper(strings.TrimSpace(a.Kind))
	switch a.Kind {
	case KindIn, KindOut:
		if a.Quantity <= 0 {
			return store.Invalid("adjust_stock", registry.Products, "quantity must be positive")
		}
	case KindAdjust:
		if a.Quantity < 0 {
			return store.Invalid("adjust_stock", registry.Products, "stock cannot be negative")
		}
	default:
		return store.Invalid("adjust_stock", registry.Products, "kind must be IN, OUT or ADJUST")
	}
	if a.ProductID <= 0 {
		return store.Invalid("adjust_stock", registry.Products, "invalid product id")
	}
	return nil
}

// AdjustStock applies a to the product and appends an inventory movement
// in one transaction. The product row stays locked until commit so
// concurrent adjustments serialize.
func (s *Service) AdjustStock(ctx context.Context, a Adjustment) (*Result, error) {
	if err := a.normalize(); err != nil {
		return nil, err
	}
	var out Result
	err := s.engine.InTx(ctx, func(tx *store.Engine) error {
		p, err := tx.GetForUpdate(ctx, registry.Products, a.ProductID)
		if err != nil {
			return err
		}
		before, err := toInt64(p["stock"])
		if err != nil {
			return fmt.Errorf("product %d stock: %w", a.ProductID, err)
		}
		after := before
		switch a.Kind {
		case KindIn:
			after = before + a.Quantity
		case KindOut:
			if a.Quantity > before {
				return store.Invalid("adjust_stock", registry.Products,
					"insufficient stock: available %d, requested %d", before, a.Quantity)
			}
			after = before - a.Quantity
		case KindAdjust:
			after = a.Quantity
		}

		if out.Product, err = tx.Update(ctx, registry.Products, p, map[string]any{"stock": after}); err != nil {
			return err
		}
		movement := map[string]any{
			"product_id":   a.ProductID,
			"kind":         a.Kind,
			"quantity":     a.Quantity,
			"stock_before": before,
			"stock_after":  after,
			"user_id":      a.UserID,
		}
		if a.Reason != "" {
			movement["reason"] = a.Reason
		}
		if a.Reference != "" {
			movement["reference"] = a.Reference
		}
		out.Movement, err = tx.Create(ctx, registry.InventoryMovements, movement)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("stock adjusted", "product_id", a.ProductID, "kind", a.Kind,
		"quantity", a.Quantity, "user_id", a.UserID)
	if s.observer != nil {
		s.observer.ObserveStockAdjustment(a.Kind)
	}
	return &out, nil
}

// LowStock lists active products at or below their minimum stock.
func (s *Service) LowStock(ctx context.Context) ([]repo.LowStockItem, error) {
	items, err := s.reports.LowStock(ctx, lowStockLimit)
	if err != nil {
		return nil, &store.Error{Kind: store.KindPersistence, Op: "low_stock", Entity: registry.Products,
			Msg: "store failure", Err: err}
	}
	return items, nil
}

// ByBarcode returns the product carrying barcode.
func (s *Service) ByBarcode(ctx context.Context, barcode string) (store.Record, error) {
	return s.engine.MustGetByField(ctx, registry.Products, "barcode", strings.TrimSpace(barcode))
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
