package logging

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger stores a request-scoped logger in the context. It carries the
// request ID and, when projectID is set and a valid traceparent header is
// present, the Cloud Trace correlation fields.
func RequestLogger(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := loggerWithTrace(
				FromContext(ctx),
				r.Header.Get(traceparentHeader),
				projectID,
				chimiddleware.GetReqID(ctx),
			)
			next.ServeHTTP(w, r.WithContext(WithLogger(ctx, logger)))
		})
	}
}

// AccessLogger writes one entry per request with a Cloud Logging httpRequest
// payload. 5xx responses log at error, 4xx at warn, the rest at info.
func AccessLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ce := FromContext(r.Context()).Check(levelForStatus(status), "request completed")
			if ce == nil {
				return
			}
			ce.Write(zap.Object("httpRequest", httpRequest{
				method:    r.Method,
				url:       r.URL.RequestURI(),
				protocol:  r.Proto,
				status:    status,
				size:      ww.BytesWritten(),
				userAgent: r.UserAgent(),
				remoteIP:  r.RemoteAddr,
				latency:   time.Since(start),
			}))
		})
	}
}

func levelForStatus(status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// httpRequest encodes as the LogEntry.httpRequest object Cloud Logging
// renders in its request view.
type httpRequest struct {
	method    string
	url       string
	protocol  string
	status    int
	size      int
	userAgent string
	remoteIP  string
	latency   time.Duration
}

func (h httpRequest) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("requestMethod", h.method)
	enc.AddString("requestUrl", h.url)
	enc.AddString("protocol", h.protocol)
	enc.AddInt("status", h.status)
	enc.AddString("responseSize", strconv.Itoa(h.size))
	if h.userAgent != "" {
		enc.AddString("userAgent", h.userAgent)
	}
	enc.AddString("remoteIp", h.remoteIP)
	enc.AddString("latency", strconv.FormatFloat(h.latency.Seconds(), 'f', 9, 64)+"s")
	return nil
}
