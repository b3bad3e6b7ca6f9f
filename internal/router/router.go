package router

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/product"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/resource"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/setting"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/store"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/supplier"
	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
	"github.com/ovaphlow/pitchfork/service-backoffice/pkg/utilities"
)

// RequestObserver receives one call per served request.
type RequestObserver interface {
	ObserveHTTPRequest(method, route string, status int, d time.Duration)
}

// Deps are the services the routes dispatch to.
type Deps struct {
	Engine    *store.Engine
	Users     *user.Service
	Products  *product.Service
	Settings  *setting.Service
	Suppliers *supplier.Service
	Observer  RequestObserver
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

type requestIDKey struct{}

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a KSUID, and
// echoes it on the response.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if id == "" || len(id) > 64 {
				id = utilities.NewKSUID()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// LoggingMiddleware logs requests at debug level and reports them to obs
// (which may be nil). It must wrap the mux so the matched pattern is known
// when the request completes.
func LoggingMiddleware(logger *zap.SugaredLogger, obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			if obs != nil {
				obs.ObserveHTTPRequest(r.Method, r.Pattern, status, dur)
			}
			logger.Debugw("http request",
				"request_id", RequestID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"route", r.Pattern,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "no-store")
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			}
			// HSTS only makes sense over TLS
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RegisterRoutes mounts every endpoint on an http.ServeMux. Specific
// routes are registered next to the generic /api/{entity} ones; the mux
// picks the most specific pattern.
func RegisterRoutes(logger *zap.SugaredLogger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	auth := user.RequireAuth(deps.Users, logger)
	admin := func(h http.HandlerFunc) http.Handler {
		return auth(user.RequireAdmin(deps.Users)(h))
	}
	authed := func(h http.HandlerFunc) http.Handler { return auth(h) }

	// auth and accounts
	users := user.NewHandler(deps.Users, logger)
	mux.HandleFunc("POST /api/auth/login", users.Login)
	mux.Handle("POST /api/auth/logout", authed(users.Logout))
	mux.Handle("GET /api/auth/me", authed(users.Me))
	mux.Handle("PATCH /api/auth/me", authed(users.UpdateMe))
	mux.Handle("POST /api/auth/password", authed(users.ChangePassword))
	mux.Handle("POST /api/users", admin(users.Create))
	mux.Handle("PATCH /api/users/{id}", authed(users.UpdateProfile))
	mux.Handle("POST /api/users/{id}/unlock", admin(users.Unlock))
	mux.Handle("POST /api/users/{id}/reset-password", admin(users.ResetPassword))
	mux.Handle("POST /api/users/{id}/deactivate", admin(users.Deactivate))
	mux.Handle("POST /api/users/{id}/reactivate", admin(users.Reactivate))

	// products
	products := product.NewHandler(deps.Products, logger)
	mux.Handle("PATCH /api/products/{id}/stock", authed(products.AdjustStock))
	mux.Handle("GET /api/products/low-stock", authed(products.LowStock))
	mux.Handle("GET /api/products/barcode/{code}", authed(products.ByBarcode))

	// supplier reports and guarded deactivation
	suppliers := supplier.NewHandler(deps.Suppliers, logger)
	mux.Handle("GET /api/suppliers/stats", authed(suppliers.Stats))
	mux.Handle("GET /api/suppliers/{id}/purchase-summary", authed(suppliers.PurchaseSummary))
	mux.Handle("DELETE /api/suppliers/{id}", authed(suppliers.Delete))
	mux.Handle("POST /api/suppliers/bulk-delete", authed(suppliers.BulkDelete))

	// settings by key
	settings := setting.NewHandler(deps.Settings, logger)
	mux.Handle("GET /api/settings/by-key/{key}", authed(settings.Get))
	mux.Handle("PUT /api/settings/by-key/{key}", admin(settings.Set))

	resource.NewHandler(deps.Engine, deps.Users, logger).Mount(mux, "/api", auth)

	return RequestIDMiddleware()(LoggingMiddleware(logger, deps.Observer)(SecurityHeadersMiddleware()(mux)))
}
