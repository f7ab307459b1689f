// Package monitoring provides pure functions for service readiness and
// inspection statistics. This package contains NO I/O.
package monitoring

import (
	"math"

	"github.com/VIDIPKUMAR/DefectDetectAI/internal/core/domain"
)

// =============================================================================
// Readiness Aggregation (Pure Functions)
// =============================================================================

// Check is the outcome of probing one dependency.
type Check struct {
	Name     string
	OK       bool
	Optional bool // optional failures degrade the report but never fail readiness
	Detail   string
}

// Readiness is the aggregated readiness decision exposed on /ready.
type Readiness struct {
	Ready  bool
	Checks map[string]string
}

// AggregateReadiness folds dependency checks into a single readiness
// decision. A failed required check makes the service not ready; failed
// optional checks (the cache, for example) are reported but tolerated.
func AggregateReadiness(checks []Check) Readiness {
	r := Readiness{Ready: true, Checks: make(map[string]string, len(checks))}

	for _, c := range checks {
		switch {
		case c.OK:
			r.Checks[c.Name] = "ok"
		case c.Optional:
			r.Checks[c.Name] = "degraded"
		default:
			r.Checks[c.Name] = "failed"
			r.Ready = false
		}
	}
	return r
}

// =============================================================================
// Statistics (Pure Functions)
// =============================================================================

// ComputeStats aggregates inspection summaries into line statistics.
func ComputeStats(summaries []domain.InspectionSummary) domain.Stats {
	stats := domain.Stats{TotalProcessed: int64(len(summaries))}
	if len(summaries) == 0 {
		return stats
	}

	var totalMS float64
	for _, s := range summaries {
		if s.Verdict == domain.VerdictRejected {
			stats.Rejected++
		} else {
			stats.Accepted++
		}
		totalMS += s.ProcessingMS
	}

	stats.DefectRate = round2(float64(stats.Rejected) / float64(stats.TotalProcessed) * 100)
	stats.AvgProcessingMS = round2(totalMS / float64(stats.TotalProcessed))
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
