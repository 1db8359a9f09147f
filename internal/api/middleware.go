package api

import (
	"log/slog"
	"net/http"
	"strings"
)

// attemptContext stores the client-chosen attempt id, if any, in the request context
func attemptContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(attemptHeader))
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		if len(id) > maxAttemptIDLength {
			slog.Warn("rejected oversized attempt id", "length", len(id), "remote_addr", r.RemoteAddr)
			respondError(w, http.StatusBadRequest, "invalid_attempt_id", "attempt id is too long")
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAttemptID(r.Context(), id)))
	})
}
