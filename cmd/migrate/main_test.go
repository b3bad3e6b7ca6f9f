package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/credential"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

type memAdmins struct {
	users []*entity.User
}

func (m *memAdmins) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memAdmins) Create(_ context.Context, u *entity.User) (int64, error) {
	u.ID = int64(len(m.users) + 1)
	m.users = append(m.users, u)
	return u.ID, nil
}

func TestBootstrapAdmin(t *testing.T) {
	repo := &memAdmins{}
	hasher := credential.BcryptHasher{Cost: bcrypt.MinCost}
	ctx := context.Background()

	require.NoError(t, bootstrapAdmin(ctx, repo, hasher, 1, "admin", "admin123"))
	require.Len(t, repo.users, 1)
	assert.Equal(t, int64(1), repo.users[0].RoleID)
	assert.True(t, hasher.Verify(repo.users[0].PasswordHash, "admin123"))

	// idempotent
	require.NoError(t, bootstrapAdmin(ctx, repo, hasher, 1, "admin", "other999"))
	assert.Len(t, repo.users, 1)

	assert.Error(t, bootstrapAdmin(ctx, repo, hasher, 1, "second", "weak"))
}
