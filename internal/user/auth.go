package user

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/token"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

type ctxKey int

const (
	userKey ctxKey = iota
	claimsKey
)

// WithUser returns a context carrying the authenticated user and claims.
func WithUser(ctx context.Context, u *entity.User, c *token.Claims) context.Context {
	ctx = context.WithValue(ctx, userKey, u)
	return context.WithValue(ctx, claimsKey, c)
}

// CurrentUser returns the user placed in ctx by RequireAuth.
func CurrentUser(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(userKey).(*entity.User)
	return u, ok && u != nil
}

// CurrentClaims returns the verified token claims placed in ctx by
// RequireAuth.
func CurrentClaims(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*token.Claims)
	return c, ok && c != nil
}

// RequireAuth rejects requests without a valid bearer token for an active,
// unlocked user.
func RequireAuth(svc *Service, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := token.FromHeader(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
				return
			}
			u, c, err := svc.Authenticate(r.Context(), raw)
			if err != nil {
				logger.Debugw("authentication failed", "path", r.URL.Path, "err", err)
				status, msg := StatusFor(err)
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				writeJSON(w, status, map[string]string{"error": msg})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u, c)))
		})
	}
}

// StatusFor maps user package and store errors to an HTTP status and a
// client message. Unknown errors become 500 with a generic message.
func StatusFor(err error) (int, string) {
	var (
		rej *RejectedError
		se  *store.Error
	)
	switch {
	case errors.As(err, &se):
		switch se.Kind {
		case store.KindValidation:
			return http.StatusBadRequest, se.Error()
		case store.KindConflict:
			return http.StatusConflict, se.Error()
		case store.KindNotFound:
			return http.StatusNotFound, se.Error()
		default:
			return http.StatusInternalServerError, "internal error"
		}
	case errors.As(err, &rej):
		if rej.Reason == ReasonInvalidCredentials {
			return http.StatusUnauthorized, rej.Error()
		}
		return http.StatusForbidden, rej.Error()
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "could not validate credentials"
	case errors.Is(err, ErrLocked):
		return http.StatusForbidden, "account is locked"
	case errors.Is(err, ErrInactive):
		return http.StatusForbidden, "account is inactive"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrEmailTaken):
		return http.StatusConflict, err.Error()
	case errors.Is(err, ErrWrongPassword), errors.Is(err, ErrWeakPassword),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrSelfAction):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin(svc *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, _ := CurrentUser(r.Context())
			if !svc.IsAdmin(u) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": ErrForbidden.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
