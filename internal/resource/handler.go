// Package resource exposes every registered entity over HTTP through the
// generic query and mutation engines.
package resource

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/registry"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user/entity"
)

// Authorizer decides whether a user may manage admin-only entities.
type Authorizer interface {
	IsAdmin(u *entity.User) bool
}

// Handler serves the generic /api/{entity} routes. Requests must carry an
// authenticated user (see user.RequireAuth).
type Handler struct {
	engine *store.Engine
	authz  Authorizer
	logger *zap.SugaredLogger
}

func NewHandler(engine *store.Engine, authz Authorizer, logger *zap.SugaredLogger) *Handler {
	return &Handler{engine: engine, authz: authz, logger: logger}
}

// BulkDeleteRequest is the body of POST /api/{entity}/bulk-delete.
type BulkDeleteRequest struct {
	IDs  []any `json:"ids"`
	Hard bool  `json:"hard"`
}

// descriptor resolves the {entity} path segment and enforces the admin
// and read-only rules. It writes the error response itself.
func (h *Handler) descriptor(w http.ResponseWriter, r *http.Request, write bool) (registry.Descriptor, bool) {
	name := r.PathValue("entity")
	d, err := h.engine.Registry().Lookup(name)
	if err != nil {
		WriteJSON(w, http.StatusNotFound, map[string]string{"error": "unknown entity " + strconv.Quote(name)})
		return d, false
	}
	if d.AdminOnly {
		u, _ := user.CurrentUser(r.Context())
		if !h.authz.IsAdmin(u) {
			WriteError(w, h.logger, user.ErrForbidden)
			return d, false
		}
	}
	if write && d.ReadOnly {
		WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": d.Name + " is read-only"})
		return d, false
	}
	return d, true
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, false)
	if !ok {
		return
	}
	recs, err := h.engine.List(r.Context(), d.Name, ListParams(d, r.URL.Query()))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	for i := range recs {
		recs[i] = Output(d, recs[i])
	}
	WriteJSON(w, http.StatusOK, recs)
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, false)
	if !ok {
		return
	}
	n, err := h.engine.Count(r.Context(), d.Name, Filters(d, r.URL.Query()))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"count": n})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, false)
	if !ok {
		return
	}
	rec, err := h.engine.MustGet(r.Context(), d.Name, ParseID(r.PathValue("id")))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, Output(d, rec))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, true)
	if !ok {
		return
	}
	var in map[string]any
	if !decode(w, r, &in) {
		return
	}
	fields, err := Input(d, in)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	rec, err := h.engine.Create(r.Context(), d.Name, fields)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, Output(d, rec))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, true)
	if !ok {
		return
	}
	var in map[string]any
	if !decode(w, r, &in) {
		return
	}
	fields, err := Input(d, in)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	rec, err := h.engine.MustGet(r.Context(), d.Name, ParseID(r.PathValue("id")))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	out, err := h.engine.Update(r.Context(), d.Name, rec, fields)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, Output(d, out))
}

// Delete soft-deletes when the entity supports it; ?hard=true removes the
// row unless the entity is soft-only.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, true)
	if !ok {
		return
	}
	hard, _ := strconv.ParseBool(r.URL.Query().Get("hard"))
	soft, ok := h.softField(w, d, hard)
	if !ok {
		return
	}
	rec, err := h.engine.MustGet(r.Context(), d.Name, ParseID(r.PathValue("id")))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	deleted, err := h.engine.Delete(r.Context(), d.Name, rec, soft)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) softField(w http.ResponseWriter, d registry.Descriptor, hard bool) (string, bool) {
	if !hard {
		return d.SoftDeleteField, true
	}
	if d.SoftOnly {
		WriteError(w, h.logger, store.Invalid("delete", d.Name, "hard delete is not allowed"))
		return "", false
	}
	return "", true
}

func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, true)
	if !ok {
		return
	}
	rec, err := h.engine.MustGet(r.Context(), d.Name, ParseID(r.PathValue("id")))
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	out, err := h.engine.Restore(r.Context(), d.Name, rec, d.SoftDeleteField)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, Output(d, out))
}

func (h *Handler) BulkCreate(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, true)
	if !ok {
		return
	}
	var items []map[string]any
	if !decode(w, r, &items) {
		return
	}
	if len(items) > MaxLimit {
		WriteError(w, h.logger, store.Invalid("bulk_create", d.Name, "at most %d items per request", MaxLimit))
		return
	}
	for i := range items {
		fields, err := Input(d, items[i])
		if err != nil {
			WriteError(w, h.logger, err)
			return
		}
		items[i] = fields
	}
	recs, err := h.engine.BulkCreate(r.Context(), d.Name, items)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	for i := range recs {
		recs[i] = Output(d, recs[i])
	}
	WriteJSON(w, http.StatusCreated, recs)
}

func (h *Handler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	d, ok := h.descriptor(w, r, true)
	if !ok {
		return
	}
	var req BulkDeleteRequest
	if !decode(w, r, &req) {
		return
	}
	soft, ok := h.softField(w, d, req.Hard)
	if !ok {
		return
	}
	ids := make([]any, len(req.IDs))
	for i, id := range req.IDs {
		if n, isNum := id.(json.Number); isNum {
			ids[i] = ParseID(n.String())
			continue
		}
		ids[i] = id
	}
	n, err := h.engine.BulkDelete(r.Context(), d.Name, ids, "", soft)
	if err != nil {
		WriteError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

// decode reads a JSON body keeping numbers exact (json.Number), so prices
// reach the store without float rounding.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return false
	}
	return true
}

// Mount registers the generic routes under prefix, each wrapped by auth.
// More specific routes registered elsewhere (for example /api/users) take
// precedence over these patterns.
func (h *Handler) Mount(mux *http.ServeMux, prefix string, auth func(http.Handler) http.Handler) {
	route := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, auth(fn))
	}
	route("GET "+prefix+"/{entity}", h.List)
	route("GET "+prefix+"/{entity}/count", h.Count)
	route("GET "+prefix+"/{entity}/{id}", h.Get)
	route("POST "+prefix+"/{entity}", h.Create)
	route("PATCH "+prefix+"/{entity}/{id}", h.Update)
	route("DELETE "+prefix+"/{entity}/{id}", h.Delete)
	route("POST "+prefix+"/{entity}/{id}/restore", h.Restore)
	route("POST "+prefix+"/{entity}/bulk", h.BulkCreate)
	route("POST "+prefix+"/{entity}/bulk-delete", h.BulkDelete)
}
