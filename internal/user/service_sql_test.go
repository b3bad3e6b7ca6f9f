package user

import (
	"context"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-backoffice/internal/user/repo"
)

func newSQLService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	repo := userrepo.NewUserRepo(sqlx.NewDb(db, "postgres"))
	return NewService(repo, &plainHasher{}, nil, nil, nil, Config{AdminRoleID: 1}), mock
}

func TestCreateUser_UnknownRoleIsConflict(t *testing.T) {
	svc, mock := newSQLService(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username=$1`)).
		WithArgs("nina").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pq.Error{Code: "23503", Message: `insert or update on table "users" violates foreign key constraint "users_role_id_fkey"`})

	root := &entity.User{ID: 1, Username: "root", RoleID: 1}
	_, err := svc.CreateUser(context.Background(), root, NewUser{
		Username: "nina", Password: "secret1", FullName: "Nina", RoleID: 99,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrConflict)

	status, msg := StatusFor(err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, msg, "does not exist")
	assert.NotContains(t, msg, "pq:")
}

func TestCreateUser_StoreFailureStaysInternal(t *testing.T) {
	svc, mock := newSQLService(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE username=$1`)).
		WithArgs("nina").
		WillReturnError(&pq.Error{Code: "08006", Message: "connection failure"})

	root := &entity.User{ID: 1, Username: "root", RoleID: 1}
	_, err := svc.CreateUser(context.Background(), root, NewUser{
		Username: "nina", Password: "secret1", FullName: "Nina", RoleID: 2,
	})
	assert.ErrorIs(t, err, store.ErrPersistence)
	status, msg := StatusFor(err)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal error", msg)
}
