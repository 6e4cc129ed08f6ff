package middleware

import (
	"context"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const maxRequestIDLength = 128

// RequestID puts a request ID into the context under chi's RequestIDKey and
// echoes it as X-Request-Id. A usable inbound X-Request-Id is kept; anything
// else is replaced by a UUIDv7 so generated IDs sort by time in the logs.
func RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := inboundRequestID(r.Header)
			if !ok {
				id = newRequestID()
			}
			w.Header().Set(chimiddleware.RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), chimiddleware.RequestIDKey, id)))
		})
	}
}

// inboundRequestID returns the trimmed client-supplied ID when it is short
// enough and made only of printable ASCII, so it is safe to log and echo.
func inboundRequestID(h http.Header) (string, bool) {
	id := strings.TrimSpace(h.Get(chimiddleware.RequestIDHeader))
	if id == "" || len(id) > maxRequestIDLength {
		return "", false
	}
	if strings.IndexFunc(id, func(c rune) bool { return c < ' ' || c > '~' }) >= 0 {
		return "", false
	}
	return id, true
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
