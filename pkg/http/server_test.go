package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type pingHandler struct{}

func (pingHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ping", func(c echo.Context) error { return SuccessResponse(c, "pong") })
	e.GET("/boom", func(c echo.Context) error { panic("boom") })
	e.GET("/teapot", func(c echo.Context) error {
		return AppErrorResponse(c, UnprocessableError("ERR_TEAPOT", "short and stout"))
	})
}

func newTestServer(opts ...ServerOption) *Server {
	opts = append([]ServerOption{WithRegistry(prometheus.NewRegistry())}, opts...)
	return NewServer(nil, []Handler{pingHandler{}}, opts...)
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServerEnvelopeAndStatus(t *testing.T) {
	s := newTestServer()

	rec := serve(s, http.MethodGet, "/ping")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":"pong"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}

	rec = serve(s, http.MethodGet, "/teapot")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_TEAPOT") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestServerRecoversPanics(t *testing.T) {
	rec := serve(newTestServer(), http.MethodGet, "/boom")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestServerHealthAndMetrics(t *testing.T) {
	s := newTestServer(
		WithHealthCheck("store", func(context.Context) error { return nil }),
	)
	serve(s, http.MethodGet, "/ping")

	if rec := serve(s, http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
	rec := serve(s, http.MethodGet, "/metrics")
	if !strings.Contains(rec.Body.String(), `http_requests_total{method="GET",route="/ping",status="200"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", rec.Body.String())
	}

	down := newTestServer(
		WithHealthCheck("store", func(context.Context) error { return errors.New("down") }),
	)
	if rec := serve(down, http.MethodGet, "/healthz"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d, want 503", rec.Code)
	}
}
