package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/janisto/welcome-api/internal/config"
)

// correlationHeaders are always allowed on cross-origin requests so clients
// can propagate request and trace identifiers.
var correlationHeaders = []string{"X-Request-Id", "traceparent"}

// CORS returns a middleware applying the configured cross-origin policy.
//
// An empty AllowedOrigins list grants no origin: cross-origin responses carry
// no Access-Control-Allow-Origin and preflights are answered without grant
// headers. go-chi/cors treats an empty list as "*", so that case is pinned
// with an origin func that always refuses. Same-origin requests are unaffected.
func CORS(policy config.CORS) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins: policy.AllowedOrigins,
		AllowedMethods: policy.AllowedMethods,
		AllowedHeaders: append(append([]string{}, policy.AllowedHeaders...), correlationHeaders...),
		ExposedHeaders: []string{"Link", "X-Request-Id"},
		MaxAge:         int(policy.MaxAge / time.Second),
	}
	if !policy.Configured() {
		opts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}
	return cors.Handler(opts)
}
