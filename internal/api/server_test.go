package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"snow-alert/internal/checker"
	"snow-alert/internal/notify"
	"snow-alert/internal/weather"
)

type stubProvider struct {
	forecast *weather.Forecast
}

func (s *stubProvider) Forecast(ctx context.Context) (*weather.Forecast, error) {
	return s.forecast, nil
}

type stubSender struct{}

func (stubSender) Send(msg notify.Message) error { return nil }

func newTestServer() (*Server, *checker.Checker) {
	chk := checker.New(checker.Config{
		Provider:        &stubProvider{forecast: &weather.Forecast{Provider: "openweather"}},
		Sender:          stubSender{},
		Log:             zap.NewNop().Sugar(),
		ThresholdMM:     5,
		Recipients:      []string{"me@example.com"},
		WindowStartHour: 18,
		WindowSpan:      15 * time.Hour,
	})
	srv := NewServer(ServerConfig{Port: 0, Checker: chk, Log: zap.NewNop().Sugar()})
	return srv, chk
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer()

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status = %v", body["status"])
	}
}

func TestStatusBeforeFirstCheck(t *testing.T) {
	srv, _ := newTestServer()

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before first check", w.Code)
	}
}

func TestCheckThenStatus(t *testing.T) {
	srv, _ := newTestServer()

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/check", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("check status = %d", w.Code)
	}

	var res checker.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Notified {
		t.Error("empty forecast should not notify")
	}

	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d after a check", w.Code)
	}
}

func TestForecastEndpoint(t *testing.T) {
	srv, chk := newTestServer()

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/forecast", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("forecast = %d before any fetch", w.Code)
	}

	chk.RunOnce(context.Background())

	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/forecast", nil))
	if w.Code != http.StatusOK {
		t.Errorf("forecast = %d after a fetch", w.Code)
	}
}
