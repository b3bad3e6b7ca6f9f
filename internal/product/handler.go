package product

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

// AdjustStock handles PATCH /api/products/{id}/stock.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		resource.WriteError(w, h.logger, store.Invalid("adjust_stock", registry.Products, "invalid id"))
		return
	}
	var a Adjustment
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		resource.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	u, _ := user.CurrentUser(r.Context())
	a.ProductID, a.UserID = id, u.ID
	res, err := h.svc.AdjustStock(r.Context(), a)
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.LowStock(r.Context())
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) ByBarcode(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ByBarcode(r.Context(), r.PathValue("code"))
	if err != nil {
		resource.WriteError(w, h.logger, err)
		return
	}
	resource.WriteJSON(w, http.StatusOK, rec)
}
