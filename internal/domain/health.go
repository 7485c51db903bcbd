package domain

import "time"

type (
	DependencyCheckStatus string

	HealthResponseStatus string

	ReadinessResponseStatus string
)

const (
	DependencyCheckStatusHealthy   DependencyCheckStatus = "healthy"
	DependencyCheckStatusUnhealthy DependencyCheckStatus = "unhealthy"
)

const (
	HealthResponseStatusHealthy   HealthResponseStatus = "healthy"
	HealthResponseStatusDegraded  HealthResponseStatus = "degraded"
	HealthResponseStatusUnhealthy HealthResponseStatus = "unhealthy"
)

const (
	ReadinessResponseStatusReady    ReadinessResponseStatus = "ready"
	ReadinessResponseStatusNotReady ReadinessResponseStatus = "not_ready"
)

type (
	// DependencyStatus represents the health status of a dependency.
	DependencyStatus struct {
		Status       DependencyCheckStatus `json:"status"`
		ResponseTime float32               `json:"response_time_ms"`
		LastChecked  time.Time             `json:"last_checked"`
		Error        string                `json:"error,omitempty"`
	}

	// HealthResult contains the health of the queue backend and of every other dependency.
	HealthResult struct {
		OverallStatus HealthResponseStatus        `json:"status"`
		Queue         DependencyStatus            `json:"queue"`
		Dependencies  map[string]DependencyStatus `json:"dependencies,omitempty"`
		Uptime        float32                     `json:"uptime_seconds"`
	}

	// ReadinessResult tells whether the queue backend accepts traffic.
	ReadinessResult struct {
		OverallStatus ReadinessResponseStatus `json:"status"`
		Queue         DependencyStatus        `json:"queue"`
	}
)
