package user

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/audit"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/credential"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/token"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-backoffice/internal/user/repo"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrLocked          = errors.New("user locked")
	ErrInactive        = errors.New("user inactive")
	ErrUnauthenticated = errors.New("not authenticated")
	ErrForbidden       = errors.New("insufficient permissions")
	ErrWrongPassword   = errors.New("current password is incorrect")
	ErrWeakPassword    = errors.New("weak password")
	ErrUsernameTaken   = errors.New("username already exists")
	ErrEmailTaken      = errors.New("email already registered")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSelfAction      = errors.New("operation not allowed on own account")
)

// Repository is the persistence the login flow needs. *repo.UserRepo
// satisfies it; Get methods return sql.ErrNoRows when nothing matches.
type Repository interface {
	Create(ctx context.Context, u *entity.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	RecordFailedLogin(ctx context.Context, id int64, threshold int) (int, bool, error)
	ResetLoginSuccess(ctx context.Context, id int64, at time.Time) (bool, error)
	Unlock(ctx context.Context, id int64) (bool, error)
	UpdatePassword(ctx context.Context, id int64, hash string, clearLock bool) (bool, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
	UpdateProfile(ctx context.Context, id int64, ch entity.ProfileChanges) (*entity.User, error)
}

// Tokens issues and verifies access tokens.
type Tokens interface {
	Issue(subject string, userID, roleID int64, ttl time.Duration) (string, time.Time, error)
	Verify(raw string) (*token.Claims, error)
}

// LoginObserver is told the outcome of every login attempt.
type LoginObserver interface {
	ObserveLogin(outcome string)
}

type Config struct {
	MaxAttempts int
	AdminRoleID int64
	BcryptCost  int
}

// ConfigFromEnv reads LOGIN_MAX_ATTEMPTS (3), ADMIN_ROLE_ID (1) and
// BCRYPT_COST (12).
func ConfigFromEnv() Config {
	cfg := Config{MaxAttempts: 3, AdminRoleID: 1, BcryptCost: 12}
	if v, err := strconv.Atoi(os.Getenv("LOGIN_MAX_ATTEMPTS")); err == nil && v > 0 {
		cfg.MaxAttempts = v
	}
	if v, err := strconv.ParseInt(os.Getenv("ADMIN_ROLE_ID"), 10, 64); err == nil && v > 0 {
		cfg.AdminRoleID = v
	}
	if v, err := strconv.Atoi(os.Getenv("BCRYPT_COST")); err == nil && v > 0 {
		cfg.BcryptCost = v
	}
	return cfg
}

// Login outcomes reported to the observer.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeRejected      = "rejected"
	OutcomeLocked        = "locked"
	OutcomeInactive      = "inactive"
)

// Reason distinguishes rejected logins internally.
type Reason int

const (
	ReasonInvalidCredentials Reason = iota + 1
	ReasonLocked
	ReasonInactive
)

// RejectedError is the REJECTED/LOCKED result of a login. Attempts and
// Threshold are set when the rejection came from a password failure.
type RejectedError struct {
	Reason    Reason
	Attempts  int
	Threshold int
}

func (e *RejectedError) Error() string {
	switch e.Reason {
	case ReasonLocked:
		if e.Attempts > 0 {
			return fmt.Sprintf("account locked after %d failed attempts", e.Attempts)
		}
		return "account is locked, contact an administrator"
	case ReasonInactive:
		return "account is inactive"
	default:
		if e.Attempts > 0 {
			return fmt.Sprintf("invalid username or password, attempt %d of %d", e.Attempts, e.Threshold)
		}
		return "invalid username or password"
	}
}

func (e *RejectedError) Unwrap() error {
	switch e.Reason {
	case ReasonLocked:
		return ErrLocked
	case ReasonInactive:
		return ErrInactive
	default:
		return ErrBadCredentials
	}
}

// Session is the AUTHENTICATED result of a login.
type Session struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        entity.Profile `json:"user"`
}

// Service runs the login state machine and the account administration
// around it.
type Service struct {
	repo     Repository
	hasher   credential.Hasher
	tokens   Tokens
	audit    audit.Sink
	observer LoginObserver
	log      *zap.SugaredLogger
	now      func() time.Time

	MaxAttempts int
	AdminRoleID int64
}

func NewService(r Repository, hasher credential.Hasher, tokens Tokens, sink audit.Sink, log *zap.SugaredLogger, cfg Config) *Service {
	if hasher == nil {
		hasher = credential.BcryptHasher{Cost: cfg.BcryptCost}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AdminRoleID == 0 {
		cfg.AdminRoleID = 1
	}
	return &Service{
		repo: r, hasher: hasher, tokens: tokens, audit: sink, log: log, now: time.Now,
		MaxAttempts: cfg.MaxAttempts, AdminRoleID: cfg.AdminRoleID,
	}
}

// WithObserver attaches a login outcome observer.
func (s *Service) WithObserver(o LoginObserver) *Service {
	s.observer = o
	return s
}

// compile-time check that the sqlx repo satisfies Repository
var _ Repository = (*userrepo.UserRepo)(nil)

func (s *Service) record(ctx context.Context, userID *int64, action string, ok bool, detail string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, audit.Entry{UserID: userID, Action: action, Success: ok, Detail: detail}); err != nil {
		s.log.Warnw("audit append failed", "action", action, "err", err)
	}
}

func (s *Service) observe(outcome string) {
	if s.observer != nil {
		s.observer.ObserveLogin(outcome)
	}
}

func (s *Service) reject(ctx context.Context, u *entity.User, e *RejectedError, outcome string) error {
	var id *int64
	if u != nil {
		id = audit.UserID(u.ID)
	}
	s.record(ctx, id, audit.ActionLogin, false, e.Error())
	s.observe(outcome)
	s.log.Debugw("login rejected", "reason", e.Reason, "attempts", e.Attempts)
	return e
}

// Login authenticates username/password. Rejections are *RejectedError
// (matching ErrBadCredentials, ErrLocked or ErrInactive); other errors are
// infrastructure failures.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, s.reject(ctx, nil, &RejectedError{Reason: ReasonInvalidCredentials}, OutcomeRejected)
	}

	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if userrepo.IsNotFound(err) {
			// same answer as a wrong password: do not reveal which usernames exist
			return nil, s.reject(ctx, nil, &RejectedError{Reason: ReasonInvalidCredentials}, OutcomeRejected)
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	// a locked account is refused before the password is looked at
	if u.Locked {
		return nil, s.reject(ctx, u, &RejectedError{Reason: ReasonLocked}, OutcomeLocked)
	}

	if !s.hasher.Verify(u.PasswordHash, password) {
		attempts, locked, err := s.repo.RecordFailedLogin(ctx, u.ID, s.MaxAttempts)
		if err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		if locked {
			return nil, s.reject(ctx, u, &RejectedError{Reason: ReasonLocked, Attempts: attempts, Threshold: s.MaxAttempts}, OutcomeLocked)
		}
		return nil, s.reject(ctx, u, &RejectedError{Reason: ReasonInvalidCredentials, Attempts: attempts, Threshold: s.MaxAttempts}, OutcomeRejected)
	}

	if !u.Active {
		return nil, s.reject(ctx, u, &RejectedError{Reason: ReasonInactive}, OutcomeInactive)
	}

	at := s.now().UTC()
	ok, err := s.repo.ResetLoginSuccess(ctx, u.ID, at)
	if err != nil {
		return nil, fmt.Errorf("reset login counters: %w", err)
	}
	if !ok {
		// locked by a concurrent failure between the read and now
		return nil, s.reject(ctx, u, &RejectedError{Reason: ReasonLocked}, OutcomeLocked)
	}
	u.FailedAttempts = 0
	u.LastAccessAt = &at

	raw, exp, err := s.tokens.Issue(u.Username, u.ID, u.RoleID, 0)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.record(ctx, audit.UserID(u.ID), audit.ActionLogin, true, "")
	s.observe(OutcomeAuthenticated)

	if s.hasher.NeedsRehash(u.PasswordHash) {
		if h, hErr := s.hasher.Hash(password); hErr == nil {
			if _, err := s.repo.UpdatePassword(ctx, u.ID, h, false); err != nil {
				s.log.Warnw("password rehash failed", "user_id", u.ID, "err", err)
			}
		}
	}

	return &Session{AccessToken: raw, TokenType: "bearer", ExpiresAt: exp, User: u.Profile()}, nil
}

// Logout records the event. The token stays valid until it expires.
func (s *Service) Logout(ctx context.Context, u *entity.User) {
	s.record(ctx, audit.UserID(u.ID), audit.ActionLogout, true, "")
}

// Authenticate verifies a bearer token and loads its user, refusing
// unknown, inactive and locked accounts.
func (s *Service) Authenticate(ctx context.Context, raw string) (*entity.User, *token.Claims, error) {
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, nil, ErrUnauthenticated
	}
	u, err := s.Me(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	return u, claims, nil
}

// Me resolves the user behind verified claims.
func (s *Service) Me(ctx context.Context, c *token.Claims) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, c.UserID)
	if err != nil {
		if userrepo.IsNotFound(err) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.Username != c.Subject {
		return nil, ErrUnauthenticated
	}
	if !u.Active {
		return nil, ErrInactive
	}
	if u.Locked {
		return nil, ErrLocked
	}
	return u, nil
}

// IsAdmin reports whether u holds the administrator role.
func (s *Service) IsAdmin(u *entity.User) bool {
	return u != nil && u.RoleID == s.AdminRoleID
}

func (s *Service) requireAdmin(actor *entity.User) error {
	if !s.IsAdmin(actor) {
		return ErrForbidden
	}
	return nil
}

func weak(pw string) error {
	if ok, msg := credential.ValidateStrength(pw); !ok {
		return fmt.Errorf("%w: %s", ErrWeakPassword, msg)
	}
	return nil
}

// ChangePassword replaces the password of u after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, u *entity.User, current, next string) error {
	if !s.hasher.Verify(u.PasswordHash, current) {
		s.record(ctx, audit.UserID(u.ID), audit.ActionPasswordChange, false, "wrong current password")
		return ErrWrongPassword
	}
	if err := weak(next); err != nil {
		return err
	}
	h, err := s.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, credential.ErrPasswordTooLong) {
			return fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		return err
	}
	if _, err := s.repo.UpdatePassword(ctx, u.ID, h, false); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	u.PasswordHash = h
	s.record(ctx, audit.UserID(u.ID), audit.ActionPasswordChange, true, "")
	return nil
}

// ResetPassword gives the target a temporary password, unlocks it and
// returns the password. Administrators only.
func (s *Service) ResetPassword(ctx context.Context, actor *entity.User, id int64) (string, error) {
	if err := s.requireAdmin(actor); err != nil {
		return "", err
	}
	tmp, err := credential.GenerateTemporary(credential.DefaultTemporaryLength)
	if err != nil {
		return "", err
	}
	h, err := s.hasher.Hash(tmp)
	if err != nil {
		return "", err
	}
	ok, err := s.repo.UpdatePassword(ctx, id, h, true)
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	if !ok {
		return "", ErrUserNotFound
	}
	s.record(ctx, audit.UserID(id), audit.ActionPasswordReset, true, "by "+actor.Username)
	return tmp, nil
}

// Unlock clears the lock and failure counter. Administrators only.
func (s *Service) Unlock(ctx context.Context, actor *entity.User, id int64) (*entity.User, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	ok, err := s.repo.Unlock(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("unlock: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	s.record(ctx, audit.UserID(id), audit.ActionUnlock, true, "by "+actor.Username)
	return s.get(ctx, id)
}

// SetActive deactivates or reactivates an account. Administrators only;
// nobody can deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor *entity.User, id int64, active bool) (*entity.User, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	if !active && actor.ID == id {
		return nil, ErrSelfAction
	}
	ok, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	action := audit.ActionDeactivate
	if active {
		action = audit.ActionReactivate
	}
	s.record(ctx, audit.UserID(id), action, true, "by "+actor.Username)
	return s.get(ctx, id)
}

// NewUser is the input of CreateUser.
type NewUser struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	FullName string  `json:"full_name"`
	Email    *string `json:"email"`
	RoleID   int64   `json:"role_id"`
}

// CreateUser adds an account. Administrators only.
func (s *Service) CreateUser(ctx context.Context, actor *entity.User, in NewUser) (*entity.User, error) {
	if err := s.requireAdmin(actor); err != nil {
		return nil, err
	}
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	if in.Username == "" || in.FullName == "" || in.RoleID <= 0 {
		return nil, fmt.Errorf("%w: username, full_name and role_id are required", ErrInvalidInput)
	}
	if err := weak(in.Password); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !userrepo.IsNotFound(err) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if in.Email != nil && *in.Email != "" {
		taken, err := s.repo.EmailTaken(ctx, *in.Email, 0)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}
	h, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, credential.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
		}
		return nil, err
	}
	u := &entity.User{
		Username:     in.Username,
		PasswordHash: h,
		FullName:     in.FullName,
		Email:        in.Email,
		RoleID:       in.RoleID,
		Active:       true,
	}
	if _, err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.record(ctx, audit.UserID(u.ID), audit.ActionUserCreate, true, "by "+actor.Username)
	return u, nil
}

// UpdateProfile applies ch to user id. Users may edit their own profile;
// only administrators may edit others or change role_id and active, which
// are silently dropped for everyone else.
func (s *Service) UpdateProfile(ctx context.Context, actor *entity.User, id int64, ch entity.ProfileChanges) (*entity.User, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	admin := s.IsAdmin(actor)
	if actor.ID != id && !admin {
		return nil, ErrForbidden
	}
	if !admin {
		ch.RoleID, ch.Active = nil, nil
	}
	if ch.Active != nil && !*ch.Active && actor.ID == id {
		return nil, ErrSelfAction
	}
	if ch.RoleID != nil && *ch.RoleID <= 0 {
		return nil, fmt.Errorf("%w: invalid role_id", ErrInvalidInput)
	}
	if ch.FullName != nil {
		name := strings.TrimSpace(*ch.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", ErrInvalidInput)
		}
		ch.FullName = &name
	}
	if ch.Email != nil {
		email := strings.TrimSpace(*ch.Email)
		ch.Email = &email
		if email != "" {
			taken, err := s.repo.EmailTaken(ctx, email, id)
			if err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if taken {
				return nil, ErrEmailTaken
			}
		}
	}
	u, err := s.repo.UpdateProfile(ctx, id, ch)
	if err != nil {
		if userrepo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		if store.IsDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.record(ctx, audit.UserID(id), audit.ActionProfileUpdate, true, "by "+actor.Username)
	return u, nil
}

func (s *Service) get(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if userrepo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
