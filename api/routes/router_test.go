package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beateur/ninowash-backend/pkg/config"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "router-test-secret", Issuer: "ninowash", ExpirationMinutes: 30},
	}
}

func newTestRouter() http.Handler {
	return NewRouter(testConfig(), nil, stubPinger{}, stubPinger{}, nil, nil, nil, nil, nil, nil, nil)
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/live, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-NinoWash-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/ready, got %d", rec.Code)
	}
}

func TestRouterUnknownRouteIs404(t *testing.T) {
	router := newTestRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouterProtectedRoutesRequireToken(t *testing.T) {
	router := newTestRouter()

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/bookings/"},
		{http.MethodGet, "/api/v1/subscriptions/current"},
		{http.MethodPost, "/api/v1/staff/bookings/8e3c7a6e-0000-4000-8000-000000000000/advance"},
	}
	for _, tc := range paths {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestRouterMetricsDisabledWithoutRegistry(t *testing.T) {
	router := newTestRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when metrics registry is absent, got %d", rec.Code)
	}
}
