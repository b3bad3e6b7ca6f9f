package resource

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-backoffice/internal/user"
)

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status maps engine and auth errors to an HTTP status and the message
// shown to the client. Persistence details never reach the client.
func Status(err error) (int, string) {
	return user.StatusFor(err)
}

// WriteError logs err and writes the mapped status. Server errors log at
// warn, client errors at debug.
func WriteError(w http.ResponseWriter, logger *zap.SugaredLogger, err error) {
	status, msg := Status(err)
	if status >= http.StatusInternalServerError {
		logger.Warnw("request failed", "status", status, "err", err)
	} else {
		logger.Debugw("request rejected", "status", status, "err", err)
	}
	WriteJSON(w, status, map[string]string{"error": msg})
}
