package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

type stubHealthRepository struct {
	report domain.HealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.HealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceStampsBuildAndUptime(t *testing.T) {
	opened := time.Date(2025, 3, 14, 5, 0, 0, 0, time.UTC)
	now := opened.Add(5 * time.Minute)
	repo := &stubHealthRepository{report: domain.HealthReport{
		Status: domain.HealthStatusDegraded,
		Checks: map[string]domain.HealthCheck{"redis": {Status: domain.HealthStatusDegraded}},
	}}

	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build:            BuildInfo{Version: "2025.03.1", Environment: "prod", StartedAt: opened},
	})
	require.NoError(t, err)

	report, err := svc.HealthReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, "2025.03.1", report.Version)
	require.Equal(t, "prod", report.Environment)
	require.Equal(t, 5*time.Minute, report.Uptime)
	require.True(t, report.GeneratedAt.Equal(now))
	require.Equal(t, domain.HealthStatusDegraded, report.Status)
}

func TestSystemServiceCachesReports(t *testing.T) {
	now := time.Date(2025, 3, 14, 6, 0, 0, 0, time.UTC)
	repo := &stubHealthRepository{report: domain.HealthReport{Status: domain.HealthStatusOK}}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		ReportCacheTTL:   10 * time.Second,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.HealthReport(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, repo.calls)

	now = now.Add(11 * time.Second)
	_, err = svc.HealthReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestSystemServiceDoesNotCacheFailures(t *testing.T) {
	repo := &stubHealthRepository{err: errors.New("firestore unreachable")}
	svc, err := NewSystemService(SystemServiceDeps{HealthRepository: repo, ReportCacheTTL: time.Minute})
	require.NoError(t, err)

	_, err = svc.HealthReport(context.Background())
	require.Error(t, err)
	_, err = svc.HealthReport(context.Background())
	require.Error(t, err)
	require.Equal(t, 2, repo.calls)
}

func TestNewSystemServiceRequiresRepository(t *testing.T) {
	_, err := NewSystemService(SystemServiceDeps{})
	require.Error(t, err)
}
