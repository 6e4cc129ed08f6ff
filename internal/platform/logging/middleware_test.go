package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// withRequestID mimics the request ID middleware by storing id under chi's key.
func withRequestID(id string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func serveAccess(t *testing.T, status int, body string) observer.LoggedEntry {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)

	access := AccessLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
		}
		_, _ = w.Write([]byte(body))
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=fi", nil)
	req.Header.Set("User-Agent", "kettle/1.0")
	req = req.WithContext(WithLogger(req.Context(), zap.New(core)))
	access.ServeHTTP(httptest.NewRecorder(), req)

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(entries))
	}
	return entries[0]
}

func TestAccessLoggerWritesHTTPRequest(t *testing.T) {
	entry := serveAccess(t, http.StatusOK, "greeting")

	if entry.Message != "request completed" {
		t.Fatalf("unexpected log message: %s", entry.Message)
	}
	f, ok := fieldMap(entry)["httpRequest"]
	if !ok {
		t.Fatalf("expected httpRequest field, got %+v", entry.Context)
	}
	req, ok := f.Interface.(httpRequest)
	if !ok {
		t.Fatalf("unexpected httpRequest type %T", f.Interface)
	}
	if req.method != http.MethodGet || req.url != "/?lang=fi" {
		t.Errorf("unexpected method/url: %s %s", req.method, req.url)
	}
	if req.status != http.StatusOK || req.size != len("greeting") {
		t.Errorf("unexpected status/size: %d %d", req.status, req.size)
	}
	if req.userAgent != "kettle/1.0" {
		t.Errorf("unexpected user agent %q", req.userAgent)
	}
}

func TestAccessLoggerLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		want   zapcore.Level
	}{
		{0, zapcore.InfoLevel},
		{http.StatusOK, zapcore.InfoLevel},
		{http.StatusNotFound, zapcore.WarnLevel},
		{http.StatusMethodNotAllowed, zapcore.WarnLevel},
		{http.StatusInternalServerError, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		entry := serveAccess(t, tt.status, "")
		if entry.Level != tt.want {
			t.Errorf("status %d: expected %s, got %s", tt.status, tt.want, entry.Level)
		}
	}
}

func TestHTTPRequestEncoding(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	req := httpRequest{
		method:   http.MethodGet,
		url:      "/",
		protocol: "HTTP/1.1",
		status:   http.StatusOK,
		size:     24,
		remoteIP: "192.0.2.1:1234",
		latency:  1500000,
	}
	if err := req.MarshalLogObject(enc); err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if enc.Fields["latency"] != "0.001500000s" {
		t.Errorf("unexpected latency %v", enc.Fields["latency"])
	}
	if enc.Fields["responseSize"] != "24" {
		t.Errorf("unexpected responseSize %v", enc.Fields["responseSize"])
	}
	if _, ok := enc.Fields["userAgent"]; ok {
		t.Error("expected empty user agent to be omitted")
	}
}

func TestRequestLoggerAddsCorrelationFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	handler := withRequestID("req-1", RequestLogger("test-project")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LogInfo(r.Context(), "inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", testTraceparent)
	req = req.WithContext(WithLogger(req.Context(), base))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entries := recorded.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := fieldMap(entries[0])
	if f := fields["requestId"]; f.String != "req-1" {
		t.Errorf("expected requestId req-1, got %+v", f)
	}
	if f := fields["logging.googleapis.com/trace"]; !strings.HasSuffix(f.String, "/traces/3d23d071b5bfd6579171efce907685cb") {
		t.Errorf("unexpected trace field %+v", f)
	}
}

func TestRequestLoggerWithoutProjectSkipsTrace(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	handler := withRequestID("req-2", RequestLogger("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LogInfo(r.Context(), "inside")
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("traceparent", testTraceparent)
	req = req.WithContext(WithLogger(req.Context(), zap.New(core)))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	fields := fieldMap(recorded.All()[0])
	if _, ok := fields["logging.googleapis.com/trace"]; ok {
		t.Error("did not expect trace fields without a project")
	}
	if f := fields["requestId"]; f.String != "req-2" {
		t.Errorf("expected requestId req-2, got %+v", f)
	}
}
