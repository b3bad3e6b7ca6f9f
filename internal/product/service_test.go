package product

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/product/repo"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

type fakeReports struct {
	items []repo.LowStockItem
	err   error
}

func (f fakeReports) LowStock(context.Context, int) ([]repo.LowStockItem, error) { return f.items, f.err }

type kinds []string

func (k *kinds) ObserveStockAdjustment(kind string) { *k = append(*k, kind) }

func fields(entity string) []string {
	d, err := registry.Default().Lookup(entity)
	if err != nil {
		panic(err)
	}
	return d.Fields
}

func productRow(id, stock int64) *sqlmock.Rows {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(fields(registry.Products)).AddRow(
		id, []byte("7501"), "Rice 1kg", nil, int64(1), int64(1),
		[]byte("10.00"), []byte("12.00"), stock, int64(5), nil,
		nil, nil, nil, nil, now, now, true)
}

func movementRow(kind string, qty, before, after int64) *sqlmock.Rows {
	return sqlmock.NewRows(fields(registry.InventoryMovements)).AddRow(
		int64(1), int64(7), kind, qty, before, after, "sale", int64(3), nil, time.Now())
}

func newService(t *testing.T) (*Service, sqlmock.Sqlmock, *kinds) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	obs := &kinds{}
	engine := store.New(sqlx.NewDb(db, "postgres"), registry.Default(), nil)
	svc := NewService(engine, fakeReports{}, nil).WithObserver(obs)
	return svc, mock, obs
}

func TestAdjustStock_Out(t *testing.T) {
	svc, mock, obs := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "products" WHERE "id" = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(productRow(7, 10))
	mock.ExpectQuery(`UPDATE "products" SET "stock" = \$1, "updated_at" = \$2 WHERE "id" = \$3 RETURNING`).
		WithArgs(int64(6), sqlmock.AnyArg(), int64(7)).
		WillReturnRows(productRow(7, 6))
	mock.ExpectQuery(`INSERT INTO "inventory_movements" \("product_id", "kind", "quantity", "stock_before", "stock_after", "reason", "user_id"\)`).
		WithArgs(int64(7), KindOut, int64(4), int64(10), int64(6), "sale", int64(3)).
		WillReturnRows(movementRow(KindOut, 4, 10, 6))
	mock.ExpectCommit()

	res, err := svc.AdjustStock(context.Background(), Adjustment{
		ProductID: 7, Kind: "out", Quantity: 4, Reason: "sale", UserID: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), res.Product["stock"])
	assert.Equal(t, int64(10), res.Movement["stock_before"])
	assert.Equal(t, kinds{KindOut}, *obs)
}

func TestAdjustStock_InsufficientRollsBack(t *testing.T) {
	svc, mock, obs := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "products" WHERE "id" = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(productRow(7, 3))
	mock.ExpectRollback()

	_, err := svc.AdjustStock(context.Background(), Adjustment{ProductID: 7, Kind: KindOut, Quantity: 5, UserID: 3})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Contains(t, err.Error(), "insufficient stock")
	assert.Empty(t, *obs)
}

func TestAdjustStock_SetsAbsoluteValue(t *testing.T) {
	svc, mock, _ := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(7)).WillReturnRows(productRow(7, 3))
	mock.ExpectQuery(`UPDATE "products" SET "stock" = \$1`).
		WithArgs(int64(20), sqlmock.AnyArg(), int64(7)).
		WillReturnRows(productRow(7, 20))
	mock.ExpectQuery(`INSERT INTO "inventory_movements"`).
		WithArgs(int64(7), KindAdjust, int64(20), int64(3), int64(20), int64(3)).
		WillReturnRows(movementRow(KindAdjust, 20, 3, 20))
	mock.ExpectCommit()

	_, err := svc.AdjustStock(context.Background(), Adjustment{ProductID: 7, Kind: KindAdjust, Quantity: 20, UserID: 3})
	require.NoError(t, err)
}

func TestAdjustStock_MissingProduct(t *testing.T) {
	svc, mock, _ := newService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(fields(registry.Products)))
	mock.ExpectRollback()

	_, err := svc.AdjustStock(context.Background(), Adjustment{ProductID: 9, Kind: KindIn, Quantity: 1, UserID: 3})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustStock_RejectsBadInput(t *testing.T) {
	svc, _, _ := newService(t)
	cases := []Adjustment{
		{ProductID: 7, Kind: "MOVE", Quantity: 1},
		{ProductID: 7, Kind: KindIn, Quantity: 0},
		{ProductID: 7, Kind: KindAdjust, Quantity: -1},
		{ProductID: 0, Kind: KindIn, Quantity: 1},
	}
	for _, a := range cases {
		_, err := svc.AdjustStock(context.Background(), a)
		assert.ErrorIs(t, err, store.ErrValidation, "%+v", a)
	}
}

func TestLowStock_WrapsFailure(t *testing.T) {
	svc := NewService(nil, fakeReports{err: errors.New("boom")}, nil)
	_, err := svc.LowStock(context.Background())
	assert.ErrorIs(t, err, store.ErrPersistence)

	svc = NewService(nil, fakeReports{items: []repo.LowStockItem{{ID: 1, Name: "Salt", Stock: 1, MinStock: 5, Shortfall: 4}}}, nil)
	items, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestHandler_AdjustStock(t *testing.T) {
	svc, mock, _ := newService(t)
	h := NewHandler(svc, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/products/{id}/stock", h.AdjustStock)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs(int64(7)).WillReturnRows(productRow(7, 1))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPatch, "/api/products/7/stock", strings.NewReader(`{"kind":"OUT","quantity":2}`))
	req = req.WithContext(user.WithUser(req.Context(), &entity.User{ID: 3}, nil))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "insufficient stock")
}

func TestHandler_ByBarcode(t *testing.T) {
	svc, mock, _ := newService(t)
	h := NewHandler(svc, zap.NewNop().Sugar())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products/barcode/{code}", h.ByBarcode)

	mock.ExpectQuery(`FROM "products" WHERE "barcode" = \$1 LIMIT 1`).
		WithArgs("7501").
		WillReturnRows(productRow(7, 10))
	mock.ExpectQuery(`FROM "products" WHERE "barcode" = \$1 LIMIT 1`).
		WithArgs("0000").
		WillReturnRows(sqlmock.NewRows(fields(registry.Products)))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/barcode/7501", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Rice 1kg"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/barcode/0000", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
