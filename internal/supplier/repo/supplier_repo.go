package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Totals counts suppliers by state.
type Totals struct {
	Total    int64 `db:"total" json:"total"`
	Active   int64 `db:"active" json:"active"`
	Inactive int64 `db:"inactive" json:"inactive"`
}

// TopSupplier is one row of the purchase order ranking.
type TopSupplier struct {
	ID     int64  `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Orders int64  `db:"orders" json:"orders"`
}

// StatusTotal aggregates the purchase orders of one status.
type StatusTotal struct {
	Status string          `db:"status" json:"status"`
	Orders int64           `db:"orders" json:"orders"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

// ProductTotal is how much of one product was bought from a supplier.
type ProductTotal struct {
	ProductID int64           `db:"product_id" json:"product_id"`
	Name      string          `db:"name" json:"name"`
	Quantity  int64           `db:"quantity" json:"quantity"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
}

// Period bounds ordered_at. From is inclusive, To exclusive; nil leaves
// that side open.
type Period struct {
	From *time.Time
	To   *time.Time
}

func (p Period) args() (any, any) {
	var from, to any
	if p.From != nil {
		from = *p.From
	}
	if p.To != nil {
		to = *p.To
	}
	return from, to
}

// SupplierRepo holds the supplier reports the generic engine cannot express.
type SupplierRepo struct {
	db *sqlx.DB
}

func NewSupplierRepo(db *sqlx.DB) *SupplierRepo { return &SupplierRepo{db: db} }

func (r *SupplierRepo) Totals(ctx context.Context) (Totals, error) {
	const q = `SELECT count(*) AS total,
		count(*) FILTER (WHERE active) AS active,
		count(*) FILTER (WHERE NOT active) AS inactive
		FROM suppliers`
	var t Totals
	err := r.db.GetContext(ctx, &t, q)
	return t, err
}

// TopByOrders ranks suppliers by how many purchase orders they received.
// Suppliers without orders are left out.
func (r *SupplierRepo) TopByOrders(ctx context.Context, limit int) ([]TopSupplier, error) {
	const q = `SELECT s.id, s.name, count(po.id) AS orders
		FROM suppliers s JOIN purchase_orders po ON po.supplier_id = s.id
		GROUP BY s.id, s.name
		ORDER BY count(po.id) DESC, s.name LIMIT $1`
	out := []TopSupplier{}
	if err := r.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// OrdersByStatus groups the supplier's purchase orders in p by status.
func (r *SupplierRepo) OrdersByStatus(ctx context.Context, supplierID int64, p Period) ([]StatusTotal, error) {
	const q = `SELECT status, count(*) AS orders, COALESCE(sum(total), 0) AS amount
		FROM purchase_orders
		WHERE supplier_id = $1
			AND ($2::timestamptz IS NULL OR ordered_at >= $2)
			AND ($3::timestamptz IS NULL OR ordered_at < $3)
		GROUP BY status ORDER BY status`
	from, to := p.args()
	out := []StatusTotal{}
	if err := r.db.SelectContext(ctx, &out, q, supplierID, from, to); err != nil {
		return nil, err
	}
	return out, nil
}

// TopProducts lists the products bought most from the supplier in p, by
// quantity.
func (r *SupplierRepo) TopProducts(ctx context.Context, supplierID int64, p Period, limit int) ([]ProductTotal, error) {
	const q = `SELECT pr.id AS product_id, pr.name, sum(l.quantity) AS quantity, sum(l.subtotal) AS amount
		FROM purchase_order_lines l
		JOIN purchase_orders po ON po.id = l.purchase_order_id
		JOIN products pr ON pr.id = l.product_id
		WHERE po.supplier_id = $1
			AND ($2::timestamptz IS NULL OR po.ordered_at >= $2)
			AND ($3::timestamptz IS NULL OR po.ordered_at < $3)
		GROUP BY pr.id, pr.name
		ORDER BY sum(l.quantity) DESC, pr.name LIMIT $4`
	from, to := p.args()
	out := []ProductTotal{}
	if err := r.db.SelectContext(ctx, &out, q, supplierID, from, to, limit); err != nil {
		return nil, err
	}
	return out, nil
}
