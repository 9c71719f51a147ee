package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                             "/",
		"/metrics":                     "/metrics",
		"/healthz":                     "/healthz",
		"/v1/auth/login":               "/v1/auth/login",
		"/v1/auth/refresh":             "/v1/auth/refresh",
		"/v1/auth/scope?tenant=manila": "/v1/auth/scope",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

func TestStatusWriterCapturesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, code: 200}

	sw.WriteHeader(http.StatusTeapot)

	if sw.code != http.StatusTeapot {
		t.Fatalf("expected captured code %d, got %d", http.StatusTeapot, sw.code)
	}
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected recorder code %d, got %d", http.StatusTeapot, rec.Code)
	}
}
