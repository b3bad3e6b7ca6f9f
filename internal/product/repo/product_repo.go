package repo

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// LowStockItem is one row of the replenishment report.
type LowStockItem struct {
	ID        int64   `db:"id" json:"id"`
	Barcode   *string `db:"barcode" json:"barcode,omitempty"`
	Name      string  `db:"name" json:"name"`
	Stock     int64   `db:"stock" json:"stock"`
	MinStock  int64   `db:"min_stock" json:"min_stock"`
	Shortfall int64   `db:"shortfall" json:"shortfall"`
}

// ProductRepo holds product queries the generic engine cannot express.
type ProductRepo struct {
	db *sqlx.DB
}

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// LowStock lists active products at or below their minimum stock, the
// largest shortfall first.
func (r *ProductRepo) LowStock(ctx context.Context, limit int) ([]LowStockItem, error) {
	const q = `SELECT id, barcode, name, stock, min_stock, min_stock - stock AS shortfall
		FROM products WHERE active AND stock <= min_stock
		ORDER BY min_stock - stock DESC, name LIMIT $1`
	items := []LowStockItem{}
	if err := r.db.SelectContext(ctx, &items, q, limit); err != nil {
		return nil, err
	}
	return items, nil
}
