package setting

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/resource"
)

// Handler contains dependencies for handling setting endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, st)
}

// SetRequest is the body of PUT /api/settings/by-key/{key}.
type SetRequest struct {
	Value       string  `json:"value"`
	Description *string `json:"description"`
}

func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	var req SetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resource.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	st, created, err := h.svc.Set(r.Context(), r.PathValue("key"), req.Value, req.Description)
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	resource.WriteJSON(w, status, st)
}
