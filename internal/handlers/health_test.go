package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/services"
)

type stubSystemService struct {
	report services.HealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.HealthReport, error) {
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

type healthBody struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	Environment string   `json:"environment"`
	Uptime      string   `json:"uptime"`
	Details     []string `json:"details"`
	Checks      map[string]struct {
		Status    string `json:"status"`
		LatencyMS int64  `json:"latencyMs"`
	} `json:"checks"`
}

func callHealth(t *testing.T, handler http.HandlerFunc) (int, healthBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	var body healthBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode health body: %v", err)
	}
	return rr.Code, body
}

func TestHealthzReportsBuildAndUptime(t *testing.T) {
	opened := time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2025.03.1", Environment: "prod", StartedAt: opened}),
		WithHealthClock(func() time.Time { return opened.Add(90 * time.Second) }),
	)

	status, body := callHealth(t, h.Healthz)
	if status != http.StatusOK || body.Status != string(domain.HealthStatusOK) {
		t.Fatalf("unexpected liveness %d %+v", status, body)
	}
	if body.Version != "2025.03.1" || body.Environment != "prod" || body.Uptime != "1m30s" {
		t.Fatalf("unexpected build fields %+v", body)
	}
}

func TestReadyz(t *testing.T) {
	now := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		svc     services.SystemService
		status  int
		state   string
		details []string
	}{
		{
			name: "all dependencies healthy",
			svc: &stubSystemService{report: services.HealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.HealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
				},
			}},
			status: http.StatusOK,
			state:  "ok",
		},
		{
			name: "degraded dependency",
			svc: &stubSystemService{report: services.HealthReport{
				Status: domain.HealthStatusDegraded,
				Checks: map[string]domain.HealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
					"redis":     {Status: domain.HealthStatusDegraded, Detail: "dial tcp: connection refused"},
				},
			}},
			status:  http.StatusServiceUnavailable,
			state:   "degraded",
			details: []string{"redis: dial tcp: connection refused"},
		},
		{
			name:    "report unavailable",
			svc:     &stubSystemService{err: errors.New("oven offline")},
			status:  http.StatusServiceUnavailable,
			state:   string(domain.HealthStatusError),
			details: []string{"oven offline"},
		},
		{
			name:   "no system service falls back to liveness",
			status: http.StatusOK,
			state:  "ok",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var opts []HealthOption
			if tc.svc != nil {
				opts = append(opts, WithHealthSystemService(tc.svc))
			}
			h := NewHealthHandlers(append(opts, WithHealthClock(func() time.Time { return now }))...)

			status, body := callHealth(t, h.Readyz)
			if status != tc.status || body.Status != tc.state {
				t.Fatalf("expected %d/%s, got %d/%s", tc.status, tc.state, status, body.Status)
			}
			if len(body.Details) != len(tc.details) {
				t.Fatalf("expected details %v, got %v", tc.details, body.Details)
			}
			for i := range tc.details {
				if body.Details[i] != tc.details[i] {
					t.Fatalf("expected details %v, got %v", tc.details, body.Details)
				}
			}
		})
	}
}

func TestReadyzReportsCheckLatency(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.HealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.HealthCheck{"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond}},
	}}))

	_, body := callHealth(t, h.Readyz)
	if check := body.Checks["firestore"]; check.Status != "ok" || check.LatencyMS != 12 {
		t.Fatalf("unexpected firestore check %+v", check)
	}
}
