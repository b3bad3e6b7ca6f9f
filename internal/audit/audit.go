// Package audit records account access events in the access_audit table
// and in the structured log.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/utilities"
)

const (
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionPasswordReset  = "PASSWORD_RESET"
	ActionUnlock         = "UNLOCK"
	ActionUserCreate     = "USER_CREATE"
	ActionDeactivate     = "DEACTIVATE"
	ActionReactivate     = "REACTIVATE"
	ActionProfileUpdate  = "PROFILE_UPDATE"
)

// Entry is one access_audit row. UserID is nil when the subject is unknown
// (for example a login attempt with a username that does not exist).
type Entry struct {
	ID        string    `db:"id"`
	UserID    *int64    `db:"user_id"`
	Action    string    `db:"action"`
	Success   bool      `db:"success"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

// Sink receives audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Recorder persists entries with sqlx and mirrors them to the log. With a
// nil db it only logs.
type Recorder struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
	now func() time.Time
}

func NewRecorder(db *sqlx.DB, log *zap.SugaredLogger) *Recorder {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Recorder{db: db, log: log, now: time.Now}
}

func (r *Recorder) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = utilities.NewKSUID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	r.log.Infow("audit",
		"audit_id", e.ID,
		"user_id", e.UserID,
		"action", e.Action,
		"success", e.Success,
		"detail", e.Detail,
	)
	if r.db == nil {
		return nil
	}
	const q = `INSERT INTO access_audit (id, user_id, action, success, detail, created_at)
		VALUES (:id, :user_id, :action, :success, :detail, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, e); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// UserID is a helper for building entries from a known id.
func UserID(id int64) *int64 { return &id }
