package services

import (
	"context"
	"errors"
	"maps"
	"sync"
	"time"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/repositories"
)

// BuildInfo is the version metadata reported by the health endpoints.
type BuildInfo struct {
	Version     string
	Environment string
	StartedAt   time.Time
}

type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
	// ReportCacheTTL reuses a collected report for this long so that frequent readiness checks
	// do not hit every dependency. Zero collects on each call.
	ReportCacheTTL time.Duration
}

type systemService struct {
	health   repositories.HealthRepository
	clock    func() time.Time
	build    BuildInfo
	cacheTTL time.Duration

	mu       sync.Mutex
	cached   domain.HealthReport
	cachedAt time.Time
}

var _ SystemService = (*systemService)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	svc := &systemService{
		health:   deps.HealthRepository,
		clock:    deps.Clock,
		build:    deps.Build,
		cacheTTL: max(deps.ReportCacheTTL, 0),
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.clock()
	}
	return svc, nil
}

// HealthReport collects dependency checks and stamps them with build metadata and uptime.
// Collection errors are not cached.
func (s *systemService) HealthReport(ctx context.Context) (HealthReport, error) {
	now := s.clock().UTC()
	report, err := s.collect(ctx, now)
	if err != nil {
		return HealthReport{}, err
	}

	report.Version = s.build.Version
	report.Environment = s.build.Environment
	report.Uptime = now.Sub(s.build.StartedAt)
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	if report.Status == "" {
		report.Status = domain.HealthStatusOK
	}
	return report, nil
}

func (s *systemService) collect(ctx context.Context, now time.Time) (domain.HealthReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cacheTTL > 0 && !s.cachedAt.IsZero() && now.Sub(s.cachedAt) < s.cacheTTL {
		return cloneReport(s.cached), nil
	}

	report, err := s.health.Collect(ctx)
	if err != nil {
		return domain.HealthReport{}, err
	}
	if report.Checks == nil {
		report.Checks = map[string]domain.HealthCheck{}
	}
	if s.cacheTTL > 0 {
		s.cached, s.cachedAt = cloneReport(report), now
	}
	return report, nil
}

func cloneReport(r domain.HealthReport) domain.HealthReport {
	r.Checks = maps.Clone(r.Checks)
	return r
}
