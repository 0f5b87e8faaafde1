// SPDX-License-Identifier: MPL-2.0

package health

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"pgregory.net/rapid"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
)

// probeProvider returns canned probe results per version.
type probeProvider struct {
	result plugin.ProbeResult
	err    error
}

func (p *probeProvider) Install(context.Context, string) error { return nil }
func (p *probeProvider) Update(context.Context, string) error  { return nil }

func (p *probeProvider) InstallDependencies(context.Context, string, string) error { return nil }

func (p *probeProvider) ActivationEnv(string) (map[string]string, error) { return nil, nil }
func (p *probeProvider) Deactivate(context.Context, string) error        { return nil }

func (p *probeProvider) Probe(context.Context, string) (plugin.ProbeResult, error) {
	return p.result, p.err
}

func quietMonitor(t *testing.T, r *plugin.Registry) *Monitor {
	t.Helper()
	return NewMonitor(r, MonitorOptions{
		Logger: log.NewWithOptions(io.Discard, log.Options{}),
	})
}

func env(langs map[string]string) *envstate.Environment {
	return &envstate.Environment{Name: "test", Languages: langs}
}

func registerProbe(t *testing.T, r *plugin.Registry, name plugin.Name, p plugin.Provider) {
	t.Helper()
	if err := r.Register(&plugin.Descriptor{Name: name, Provider: p}); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func TestCheck_AllHealthy(t *testing.T) {
	t.Parallel()

	r := plugin.NewRegistry()
	registerProbe(t, r, "node", &probeProvider{result: plugin.ProbeResult{Healthy: true, ObservedVersion: "20.10.0"}})
	registerProbe(t, r, "python", &probeProvider{result: plugin.ProbeResult{Healthy: true, ObservedVersion: "3.11.0"}})

	report := quietMonitor(t, r).Check(context.Background(),
		env(map[string]string{"node": "20.10.0", "python": "3.11.0"}))

	if report.Status != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.Status)
	}
	if report.Score != 1.0 {
		t.Errorf("expected score 1.0, got %v", report.Score)
	}
	if len(report.Recommendations) != 0 {
		t.Errorf("expected no recommendations, got %v", report.Recommendations)
	}
}

func TestCheck_VersionDriftDegrades(t *testing.T) {
	t.Parallel()

	r := plugin.NewRegistry()
	registerProbe(t, r, "node", &probeProvider{result: plugin.ProbeResult{Healthy: true, ObservedVersion: "18.19.0"}})

	report := quietMonitor(t, r).Check(context.Background(), env(map[string]string{"node": "20.10.0"}))

	if report.Status != StatusDegraded {
		t.Errorf("expected degraded, got %s", report.Status)
	}
	if report.Score >= 1.0 {
		t.Errorf("expected reduced score, got %v", report.Score)
	}
	if len(report.Recommendations) != 1 {
		t.Fatalf("expected a drift recommendation, got %v", report.Recommendations)
	}
}

func TestCheck_RangeSatisfiedIsNotDrift(t *testing.T) {
	t.Parallel()

	r := plugin.NewRegistry()
	registerProbe(t, r, "node", &probeProvider{result: plugin.ProbeResult{Healthy: true, ObservedVersion: "20.11.1"}})

	report := quietMonitor(t, r).Check(context.Background(), env(map[string]string{"node": "^20.0.0"}))

	if report.Status != StatusHealthy {
		t.Errorf("observed version inside declared range must be healthy, got %s", report.Status)
	}
}

func TestCheck_ProbeFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	r := plugin.NewRegistry()
	registerProbe(t, r, "node", &probeProvider{err: errors.New("probe exploded")})
	registerProbe(t, r, "python", &probeProvider{result: plugin.ProbeResult{Healthy: true, ObservedVersion: "3.11.0"}})

	report := quietMonitor(t, r).Check(context.Background(),
		env(map[string]string{"node": "20.10.0", "python": "3.11.0"}))

	if len(report.Records) != 2 {
		t.Fatalf("every component must be reported, got %d records", len(report.Records))
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", report.Status)
	}
	// The healthy component is still reported healthy.
	for _, rec := range report.Records {
		if rec.Plugin == "python" && rec.Status != StatusHealthy {
			t.Errorf("expected python healthy, got %s", rec.Status)
		}
	}
}

func TestCheck_UnknownPluginIsUnhealthy(t *testing.T) {
	t.Parallel()

	report := quietMonitor(t, plugin.NewRegistry()).Check(context.Background(),
		env(map[string]string{"zig": "0.11.0"}))

	if report.Status != StatusUnhealthy {
		t.Errorf("expected unhealthy for unknown plugin, got %s", report.Status)
	}
}

func TestCheck_EmptyEnvironmentIsHealthy(t *testing.T) {
	t.Parallel()

	report := quietMonitor(t, plugin.NewRegistry()).Check(context.Background(), env(nil))
	if report.Status != StatusHealthy || report.Score != 1.0 {
		t.Errorf("empty environment must be healthy, got %s/%v", report.Status, report.Score)
	}
}

func TestAggregate_WorstStatusMinimumScore(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		statuses := []Status{StatusHealthy, StatusDegraded, StatusUnhealthy}
		n := rapid.IntRange(0, 10).Draw(t, "n")

		report := &Report{}
		minScore := 1.0
		worst := StatusHealthy
		for i := 0; i < n; i++ {
			status := statuses[rapid.IntRange(0, 2).Draw(t, "status")]
			score := rapid.Float64Range(0, 1).Draw(t, "score")
			report.Records = append(report.Records, Record{Status: status, Score: score})
			if score < minScore {
				minScore = score
			}
			if status.worse(worst) {
				worst = status
			}
		}

		report.Aggregate()
		if report.Score != minScore {
			t.Fatalf("score %v != min %v", report.Score, minScore)
		}
		if report.Status != worst {
			t.Fatalf("status %s != worst %s", report.Status, worst)
		}
	})
}
