package app

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	cfg := defaultConfig()
	a, err := New(cfg, NewLogger("error"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestRouterHealthEndpoints(t *testing.T) {
	h := newTestApp(t).Router()

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rec.Code)
		}
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	h := newTestApp(t).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "banter_") {
		t.Fatalf("metrics output missing banter counters")
	}
}

func TestRouterFullSessionFlow(t *testing.T) {
	h := newTestApp(t).Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_token", nil))
	if rec.Code != http.StatusOK || rec.Body.String() == "" {
		t.Fatalf("get_token status=%d body=%q", rec.Code, rec.Body.String())
	}
	token := rec.Body.String()

	form := url.Values{"token": {token}, "content": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/post_msg", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("post_msg status=%d", rec.Code)
	}

	form = url.Values{"token": {token}}
	req = httptest.NewRequest(http.MethodPost, "/del_token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("del_token status=%d", rec.Code)
	}
}
