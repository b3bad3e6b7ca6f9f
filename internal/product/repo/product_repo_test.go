package repo

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE active AND stock <= min_stock`)).
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "barcode", "name", "stock", "min_stock", "shortfall"}).
			AddRow(int64(2), nil, "Salt", int64(0), int64(5), int64(5)).
			AddRow(int64(1), "7501", "Rice", int64(4), int64(5), int64(1)))

	items, err := NewProductRepo(sqlx.NewDb(db, "postgres")).LowStock(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Salt", items[0].Name)
	assert.Nil(t, items[0].Barcode)
	assert.Equal(t, "7501", *items[1].Barcode)
	assert.NoError(t, mock.ExpectationsWereMet())
}
