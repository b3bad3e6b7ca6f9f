// Package supplier adds the supplier reports and the guarded deactivation
// on top of the generic supplier entity.
package supplier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/supplier/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

const (
	topSuppliers = 5
	topProducts  = 10
	dateLayout   = "2006-01-02"
)

type Reports interface {
	Totals(ctx context.Context) (repo.Totals, error)
	TopByOrders(ctx context.Context, limit int) ([]repo.TopSupplier, error)
	OrdersByStatus(ctx context.Context, supplierID int64, p repo.Period) ([]repo.StatusTotal, error)
	TopProducts(ctx context.Context, supplierID int64, p repo.Period, limit int) ([]repo.ProductTotal, error)
}

// Authorizer decides who may deactivate suppliers.
type Authorizer interface {
	IsAdmin(u *entity.User) bool
}

// Stats is the supplier overview.
type Stats struct {
	repo.Totals
	Top []repo.TopSupplier `json:"top_suppliers"`
}

// Summary is the purchase history of one supplier over a period.
type Summary struct {
	Supplier    store.Record        `json:"supplier"`
	From        string              `json:"from,omitempty"`
	To          string              `json:"to,omitempty"`
	Orders      int64               `json:"orders"`
	Amount      decimal.Decimal     `json:"amount"`
	Average     decimal.Decimal     `json:"average_per_order"`
	ByStatus    map[string]int64    `json:"orders_by_status"`
	TopProducts []repo.ProductTotal `json:"top_products"`
}

// Deactivation reports one deactivated supplier.
type Deactivation struct {
	ID          any   `json:"id"`
	Name        any   `json:"name"`
	Orders      int64 `json:"orders"`
	Deactivated bool  `json:"deactivated"`
}

type Service struct {
	engine  *store.Engine
	reports Reports
	authz   Authorizer
	log     *zap.SugaredLogger
}

func NewService(engine *store.Engine, reports Reports, authz Authorizer, log *zap.SugaredLogger) *Service {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{engine: engine, reports: reports, authz: authz, log: log}
}

func (s *Service) report(op string, err error) error {
	return store.Classify(op, registry.Suppliers, err)
}

// Stats counts suppliers by state and ranks the five with most purchase
// orders.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	totals, err := s.reports.Totals(ctx)
	if err != nil {
		return nil, s.report("stats", err)
	}
	top, err := s.reports.TopByOrders(ctx, topSuppliers)
	if err != nil {
		return nil, s.report("stats", err)
	}
	return &Stats{Totals: totals, Top: top}, nil
}

// PurchaseSummary totals the purchase orders placed with supplier id.
// from and to are optional YYYY-MM-DD dates; both ends are inclusive.
func (s *Service) PurchaseSummary(ctx context.Context, id int64, from, to string) (*Summary, error) {
	const op = "purchase_summary"
	var p repo.Period
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			return nil, store.Invalid(op, registry.Suppliers, "from must be a YYYY-MM-DD date")
		}
		p.From = &t
	}
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			return nil, store.Invalid(op, registry.Suppliers, "to must be a YYYY-MM-DD date")
		}
		end := t.AddDate(0, 0, 1)
		p.To = &end
	}
	if p.From != nil && p.To != nil && !p.From.Before(*p.To) {
		return nil, store.Invalid(op, registry.Suppliers, "from must not be after to")
	}

	rec, err := s.engine.MustGet(ctx, registry.Suppliers, id)
	if err != nil {
		return nil, err
	}
	statuses, err := s.reports.OrdersByStatus(ctx, id, p)
	if err != nil {
		return nil, s.report(op, err)
	}
	products, err := s.reports.TopProducts(ctx, id, p, topProducts)
	if err != nil {
		return nil, s.report(op, err)
	}

	out := &Summary{
		Supplier:    rec,
		From:        from,
		To:          to,
		Amount:      decimal.Zero,
		Average:     decimal.Zero,
		ByStatus:    make(map[string]int64, len(statuses)),
		TopProducts: products,
	}
	for _, st := range statuses {
		out.Orders += st.Orders
		out.Amount = out.Amount.Add(st.Amount)
		out.ByStatus[st.Status] = st.Orders
	}
	if out.Orders > 0 {
		out.Average = out.Amount.Div(decimal.NewFromInt(out.Orders)).Round(2)
	}
	return out, nil
}

// Deactivate soft-deletes the given suppliers in one transaction.
// Administrators only. A supplier with purchase orders is refused unless
// force is set, and then nothing is deactivated.
func (s *Service) Deactivate(ctx context.Context, actor *entity.User, ids []int64, force bool) ([]Deactivation, error) {
	const op = "delete"
	if !s.authz.IsAdmin(actor) {
		return nil, user.ErrForbidden
	}
	if len(ids) == 0 {
		return nil, store.Invalid(op, registry.Suppliers, "no ids given")
	}
	out := make([]Deactivation, 0, len(ids))
	err := s.engine.InTx(ctx, func(tx *store.Engine) error {
		for _, id := range ids {
			rec, err := tx.GetForUpdate(ctx, registry.Suppliers, id)
			if err != nil {
				return err
			}
			orders, err := tx.Count(ctx, registry.PurchaseOrders, map[string]any{"supplier_id": id})
			if err != nil {
				return err
			}
			if orders > 0 && !force {
				return store.Invalid(op, registry.Suppliers,
					"supplier %d has %d purchase orders; pass force=true to deactivate it anyway", id, orders)
			}
			ok, err := tx.Delete(ctx, registry.Suppliers, rec, "active")
			if err != nil {
				return err
			}
			out = append(out, Deactivation{ID: rec["id"], Name: rec["name"], Orders: orders, Deactivated: ok})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("suppliers deactivated", "ids", ids, "forced", force, "by", actor.Username)
	return out, nil
}
