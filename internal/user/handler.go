package user

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

// Handler exposes the auth and account administration endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(w, "login failed", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// LogoutResponse tells the client until when the discarded token would
// still be accepted.
type LogoutResponse struct {
	Message      string     `json:"message"`
	TokenExpires *time.Time `json:"token_expires_at,omitempty"`
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	h.svc.Logout(r.Context(), u)
	resp := LogoutResponse{Message: "logged out"}
	if c, ok := CurrentClaims(r.Context()); ok && c.ExpiresAt != nil {
		resp.TokenExpires = &c.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, u.Profile())
}

// PasswordChangeRequest password change payload.
type PasswordChangeRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, _ := CurrentUser(r.Context())
	if err := h.svc.ChangePassword(r.Context(), u, req.Current, req.New); err != nil {
		h.fail(w, "password change failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req NewUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	actor, _ := CurrentUser(r.Context())
	u, err := h.svc.CreateUser(r.Context(), actor, req)
	if err != nil {
		h.fail(w, "create user failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, u.Profile())
}

// UpdateMe handles PATCH /api/auth/me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	h.updateProfile(w, r, actor, actor.ID)
}

// UpdateProfile handles PATCH /api/users/{id}.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	actor, _ := CurrentUser(r.Context())
	h.updateProfile(w, r, actor, id)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request, actor *entity.User, id int64) {
	var ch entity.ProfileChanges
	if err := json.NewDecoder(r.Body).Decode(&ch); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), actor, id, ch)
	if err != nil {
		h.fail(w, "profile update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, u.Profile())
}

func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(actor *entity.User, id int64) (any, error) {
		u, err := h.svc.Unlock(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		return u.Profile(), nil
	})
}

// ResetPasswordResponse carries the temporary password. It is shown once.
type ResetPasswordResponse struct {
	TemporaryPassword string `json:"temporary_password"`
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	h.withTarget(w, r, func(actor *entity.User, id int64) (any, error) {
		tmp, err := h.svc.ResetPassword(r.Context(), actor, id)
		if err != nil {
			return nil, err
		}
		return ResetPasswordResponse{TemporaryPassword: tmp}, nil
	})
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	h.withTarget(w, r, func(actor *entity.User, id int64) (any, error) {
		u, err := h.svc.SetActive(r.Context(), actor, id, active)
		if err != nil {
			return nil, err
		}
		return u.Profile(), nil
	})
}

func (h *Handler) withTarget(w http.ResponseWriter, r *http.Request, fn func(actor *entity.User, id int64) (any, error)) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	actor, _ := CurrentUser(r.Context())
	out, err := fn(actor, id)
	if err != nil {
		h.fail(w, "user operation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status, text := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warnw(msg, "err", err)
	} else {
		h.logger.Debugw(msg, "err", err)
	}
	writeJSON(w, status, map[string]string{"error": text})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
