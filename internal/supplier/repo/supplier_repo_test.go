package repo

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*SupplierRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewSupplierRepo(sqlx.NewDb(db, "postgres")), mock
}

func TestTotals(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`count(*) FILTER (WHERE active) AS active`)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "active", "inactive"}).AddRow(int64(7), int64(5), int64(2)))

	got, err := r.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Totals{Total: 7, Active: 5, Inactive: 2}, got)
}

func TestTopByOrders(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN purchase_orders po ON po.supplier_id = s.id`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "orders"}).
			AddRow(int64(2), "Andes Foods", int64(12)).
			AddRow(int64(1), "Lima Dairy", int64(4)))

	top, err := r.TopByOrders(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "Andes Foods", top[0].Name)
	assert.Equal(t, int64(12), top[0].Orders)
}

func TestOrdersByStatus_OpenPeriod(t *testing.T) {
	r, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM purchase_orders`)).
		WithArgs(int64(3), nil, nil).
		WillReturnRows(sqlmock.NewRows([]string{"status", "orders", "amount"}).
			AddRow("PENDING", int64(1), []byte("80.00")).
			AddRow("RECEIVED", int64(2), []byte("250.50")))

	rows, err := r.OrdersByStatus(context.Background(), 3, Period{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "250.5", rows[1].Amount.String())
}

func TestTopProducts_BoundedPeriod(t *testing.T) {
	r, mock := newRepo(t)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`JOIN products pr ON pr.id = l.product_id`)).
		WithArgs(int64(3), from, to, 10).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "name", "quantity", "amount"}).
			AddRow(int64(7), "Rice 1kg", int64(40), []byte("400.00")))

	rows, err := r.TopProducts(context.Background(), 3, Period{From: &from, To: &to}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(40), rows[0].Quantity)
	assert.Equal(t, "400", rows[0].Amount.String())
}
