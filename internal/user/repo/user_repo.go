package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

// ErrDuplicate is returned by Create when the username or email is taken.
var ErrDuplicate = errors.New("duplicate user")

const userColumns = `id, username, password_hash, full_name, email, role_id,
	failed_attempts, locked, active, created_at, last_access_at, avatar_url`

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// fail classifies driver errors as *store.Error. sql.ErrNoRows passes
// through untouched so IsNotFound keeps working.
func fail(op string, err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return store.Classify(op, registry.Users, err)
}

// Create inserts a new user row. Returns the new ID.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (int64, error) {
	const q = `INSERT INTO users (username, password_hash, full_name, email, role_id, active, locked, failed_attempts)
		VALUES (:username, :password_hash, :full_name, :email, :role_id, :active, false, 0) RETURNING id, created_at`
	rows, err := r.db.NamedQueryContext(ctx, q, u)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return 0, ErrDuplicate
		}
		return 0, fail("create", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&u.ID, &u.CreatedAt); err != nil {
			return 0, fail("create", err)
		}
		return u.ID, nil
	}
	if err := rows.Err(); err != nil {
		return 0, fail("create", err)
	}
	return 0, fail("create", errors.New("no id returned"))
}

// GetByUsername returns the user or sql.ErrNoRows.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username=$1`, username); err != nil {
		return nil, fail("get", err)
	}
	return &u, nil
}

// GetByID returns the user or sql.ErrNoRows.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	var u entity.User
	if err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id=$1`, id); err != nil {
		return nil, fail("get", err)
	}
	return &u, nil
}

// EmailTaken reports whether another user already uses email.
func (r *UserRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM users WHERE email=$1 AND id<>$2)`, email, excludeID)
	return taken, fail("get", err)
}

// UpdateProfile applies the non-nil fields of ch and returns the updated
// row, or sql.ErrNoRows when id does not exist. An empty email clears it.
func (r *UserRepo) UpdateProfile(ctx context.Context, id int64, ch entity.ProfileChanges) (*entity.User, error) {
	var sets []string
	args := []any{id}
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if ch.FullName != nil {
		set("full_name", *ch.FullName)
	}
	if ch.Email != nil {
		set("email", nullable(*ch.Email))
	}
	if ch.AvatarURL != nil {
		set("avatar_url", nullable(*ch.AvatarURL))
	}
	if ch.RoleID != nil {
		set("role_id", *ch.RoleID)
	}
	if ch.Active != nil {
		set("active", *ch.Active)
	}
	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}
	q := `UPDATE users SET ` + strings.Join(sets, ", ") + ` WHERE id=$1 RETURNING ` + userColumns
	var u entity.User
	if err := r.db.GetContext(ctx, &u, q, args...); err != nil {
		return nil, fail("update", err)
	}
	return &u, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// RecordFailedLogin increments the failure counter and sets the lock in the
// same statement once the counter reaches threshold. Returns the new
// counter and lock state.
func (r *UserRepo) RecordFailedLogin(ctx context.Context, id int64, threshold int) (int, bool, error) {
	const q = `UPDATE users SET failed_attempts = failed_attempts + 1,
		locked = locked OR failed_attempts + 1 >= $2
		WHERE id=$1 RETURNING failed_attempts, locked`
	var row struct {
		Attempts int  `db:"failed_attempts"`
		Locked   bool `db:"locked"`
	}
	if err := r.db.GetContext(ctx, &row, q, id, threshold); err != nil {
		return 0, false, fail("update", err)
	}
	return row.Attempts, row.Locked, nil
}

// ResetLoginSuccess clears the failure counter and stamps the last access.
// It does nothing (and returns false) when the user got locked meanwhile.
func (r *UserRepo) ResetLoginSuccess(ctx context.Context, id int64, at time.Time) (bool, error) {
	const q = `UPDATE users SET failed_attempts=0, last_access_at=$2 WHERE id=$1 AND NOT locked`
	res, err := r.db.ExecContext(ctx, q, id, at)
	if err != nil {
		return false, fail("update", err)
	}
	n, err := res.RowsAffected()
	return n > 0, fail("update", err)
}

// Unlock clears the lock and the failure counter.
func (r *UserRepo) Unlock(ctx context.Context, id int64) (bool, error) {
	return r.execOne(ctx, `UPDATE users SET locked=false, failed_attempts=0 WHERE id=$1`, id)
}

// UpdatePassword stores a new hash. With clearLock the account is unlocked
// and the failure counter reset as well.
func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, hash string, clearLock bool) (bool, error) {
	if clearLock {
		return r.execOne(ctx, `UPDATE users SET password_hash=$2, locked=false, failed_attempts=0 WHERE id=$1`, id, hash)
	}
	return r.execOne(ctx, `UPDATE users SET password_hash=$2 WHERE id=$1`, id, hash)
}

// SetActive deactivates or reactivates a user. Users are never hard-deleted.
func (r *UserRepo) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	return r.execOne(ctx, `UPDATE users SET active=$2 WHERE id=$1`, id, active)
}

func (r *UserRepo) execOne(ctx context.Context, q string, args ...any) (bool, error) {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fail("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fail("update", err)
	}
	return n > 0, nil
}

// IsNotFound reports the sentinel returned by the Get methods.
func IsNotFound(err error) bool { return errors.Is(err, sql.ErrNoRows) }
