package domain

import "time"

// HealthStatus summarises the state of a dependency or of the whole service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "ok"
	HealthStatusDegraded HealthStatus = "degraded"
	HealthStatusError    HealthStatus = "error"
)

// HealthCheck is the outcome of probing one dependency.
type HealthCheck struct {
	Status    HealthStatus
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates every dependency check. Status is the worst individual status.
type HealthReport struct {
	Status      HealthStatus
	Checks      map[string]HealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
