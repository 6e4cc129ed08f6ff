package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVaryMiddlewareSetsHeader(t *testing.T) {
	h := Vary()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Custom", "value")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("test body"))
	}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if vary := resp.Header().Get("Vary"); vary != "Accept" {
		t.Fatalf("expected Vary: Accept, got %q", vary)
	}
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", resp.Code)
	}
	if resp.Header().Get("X-Custom") != "value" || resp.Body.String() != "test body" {
		t.Fatalf("expected downstream response to be preserved")
	}
}
