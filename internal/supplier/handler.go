package supplier

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/resource"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// BulkDeactivateRequest is the body of POST /api/suppliers/bulk-delete.
type BulkDeactivateRequest struct {
	IDs   []int64 `json:"ids"`
	Force bool    `json:"force"`
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request, op string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		resource.WriteError(w, h.logger, store.Invalid(op, registry.Suppliers, "invalid id"))
		return 0, false
	}
	return id, true
}

// Stats handles GET /api/suppliers/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, st)
}

// PurchaseSummary handles GET /api/suppliers/{id}/purchase-summary?from=&to=.
func (h *Handler) PurchaseSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "purchase_summary")
	if !ok {
		return
	}
	q := r.URL.Query()
	sum, err := h.svc.PurchaseSummary(r.Context(), id, q.Get("from"), q.Get("to"))
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, sum)
}

// Delete handles DELETE /api/suppliers/{id}?force=true.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r, "delete")
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	actor, _ := user.CurrentUser(r.Context())
	res, err := h.svc.Deactivate(r.Context(), actor, []int64{id}, force)
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, res[0])
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resource.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if len(req.IDs) > resource.MaxLimit {
		resource.WriteError(w, h.logger, store.Invalid("bulk_delete", registry.Suppliers, "at most %d ids per request", resource.MaxLimit))
		return
	}
	actor, _ := user.CurrentUser(r.Context())
	res, err := h.svc.Deactivate(r.Context(), actor, req.IDs, req.Force)
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, map[string]any{"deleted": len(res), "suppliers": res})
}
