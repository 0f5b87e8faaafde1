// SPDX-License-Identifier: MPL-2.0

// Package health probes the toolchains of an environment and aggregates the
// results. Probes never abort a check run: every component is probed and
// reported, and the environment's overall status is the worst component
// status with the minimum component score.
package health

import (
	"errors"
	"fmt"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

// Component statuses, ordered from best to worst.
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Component scores. A healthy component scores 1.0; version drift costs it
// the degraded score; a failed probe scores 0.
const (
	scoreHealthy   = 1.0
	scoreDegraded  = 0.7
	scoreUnhealthy = 0.0
)

// ErrInvalidHealthStatus is the sentinel error wrapped by InvalidStatusError.
var ErrInvalidHealthStatus = errors.New("invalid health status")

type (
	// Status classifies a component or environment health state.
	Status string

	// InvalidStatusError is returned when a Status value is not one of the
	// defined statuses. It wraps ErrInvalidHealthStatus.
	InvalidStatusError struct {
		Value Status
	}

	// Record is the probe outcome for one component.
	Record struct {
		// Plugin names the probed component.
		Plugin plugin.Name
		// Status classifies the outcome.
		Status Status
		// Score is the component score in [0, 1].
		Score float64
		// DeclaredVersion is the version the environment declares.
		DeclaredVersion string
		// ObservedVersion is what the runtime reported, empty when the
		// probe failed.
		ObservedVersion string
		// Detail explains degraded and unhealthy outcomes.
		Detail string
	}

	// Report aggregates the records of one check run.
	Report struct {
		// Environment names the checked environment.
		Environment string
		// Records holds one entry per component, in probe order.
		Records []Record
		// Status is the worst component status.
		Status Status
		// Score is the minimum component score, 1.0 for an empty report.
		Score float64
		// Recommendations lists suggested follow-up actions.
		Recommendations []string
	}
)

// Error implements the error interface.
func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid health status %q (valid: %s, %s, %s)",
		e.Value, StatusHealthy, StatusDegraded, StatusUnhealthy)
}

// Unwrap returns ErrInvalidHealthStatus so callers can use errors.Is for programmatic detection.
func (e *InvalidStatusError) Unwrap() error { return ErrInvalidHealthStatus }

// String returns the string representation of the Status.
func (s Status) String() string { return string(s) }

// Validate returns nil if the Status is one of the defined statuses,
// or a validation error if it is not.
func (s Status) Validate() error {
	switch s {
	case StatusHealthy, StatusDegraded, StatusUnhealthy:
		return nil
	default:
		return &InvalidStatusError{Value: s}
	}
}

// worse reports whether s is worse than other.
func (s Status) worse(other Status) bool {
	return statusRank(s) > statusRank(other)
}

func statusRank(s Status) int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Aggregate computes the report-level status and score from its records:
// worst status, minimum score. An empty record set is healthy by definition.
func (r *Report) Aggregate() {
	r.Status = StatusHealthy
	r.Score = scoreHealthy
	for _, rec := range r.Records {
		if rec.Status.worse(r.Status) {
			r.Status = rec.Status
		}
		if rec.Score < r.Score {
			r.Score = rec.Score
		}
	}
}
