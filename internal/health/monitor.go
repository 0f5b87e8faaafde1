// SPDX-License-Identifier: MPL-2.0

package health

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/semver"
)

// defaultProbeTimeout bounds a single component probe.
const defaultProbeTimeout = 30 * time.Second

// Monitor runs health checks against environments. Probes for distinct
// components run concurrently under a bounded pool; a probe failure is a
// finding, never an abort.
type Monitor struct {
	registry     *plugin.Registry
	concurrency  int
	probeTimeout time.Duration
	logger       *log.Logger
}

// MonitorOptions tunes monitor behavior. Zero fields fall back to defaults.
type MonitorOptions struct {
	// Concurrency bounds concurrent probes.
	Concurrency int
	// ProbeTimeout bounds a single probe.
	ProbeTimeout time.Duration
	// Logger receives per-probe progress; nil gets a default stderr logger.
	Logger *log.Logger
}

// NewMonitor creates a monitor over the given registry.
func NewMonitor(registry *plugin.Registry, opts MonitorOptions) *Monitor {
	m := &Monitor{
		registry:     registry,
		concurrency:  opts.Concurrency,
		probeTimeout: opts.ProbeTimeout,
		logger:       opts.Logger,
	}
	if m.concurrency <= 0 {
		m.concurrency = 4
	}
	if m.probeTimeout <= 0 {
		m.probeTimeout = defaultProbeTimeout
	}
	if m.logger == nil {
		m.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "health"})
	}
	return m
}

// Check probes every language component of the environment and returns an
// aggregated report. The report is always complete: unknown plugins and
// failed probes become unhealthy records rather than errors.
func (m *Monitor) Check(ctx context.Context, env *envstate.Environment) *Report {
	report := &Report{Environment: string(env.Name)}

	// Sort for deterministic record order across runs.
	names := make([]string, 0, len(env.Languages))
	for lang := range env.Languages {
		names = append(names, lang)
	}
	slices.Sort(names)

	records := make([]Record, len(names))
	sem := make(chan struct{}, m.concurrency)
	var wg sync.WaitGroup

	for i, lang := range names {
		wg.Add(1)
		go func(i int, lang string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = m.probe(ctx, plugin.Name(lang), env.Languages[lang])
		}(i, lang)
	}
	wg.Wait()

	report.Records = records
	report.Aggregate()
	report.Recommendations = recommend(records)
	return report
}

// probe runs one component probe and classifies the outcome.
func (m *Monitor) probe(ctx context.Context, name plugin.Name, declared string) Record {
	rec := Record{Plugin: name, DeclaredVersion: declared}

	d, err := m.registry.Lookup(name)
	if err != nil {
		rec.Status = StatusUnhealthy
		rec.Score = scoreUnhealthy
		rec.Detail = err.Error()
		return rec
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	res, err := d.Provider.Probe(probeCtx, declared)
	if err != nil {
		m.logger.Warn("probe failed to run", "plugin", name, "error", err)
		rec.Status = StatusUnhealthy
		rec.Score = scoreUnhealthy
		rec.Detail = err.Error()
		return rec
	}
	if !res.Healthy {
		rec.Status = StatusUnhealthy
		rec.Score = scoreUnhealthy
		rec.Detail = res.Detail
		return rec
	}

	rec.ObservedVersion = res.ObservedVersion
	if drifted(declared, res.ObservedVersion) {
		rec.Status = StatusDegraded
		rec.Score = scoreDegraded
		rec.Detail = fmt.Sprintf("declared %s but observed %s", declared, res.ObservedVersion)
		return rec
	}

	rec.Status = StatusHealthy
	rec.Score = scoreHealthy
	return rec
}

// drifted reports whether the observed version falls outside the declared
// version or range. Unparseable values are treated as matching: drift is a
// recommendation signal, not a failure.
func drifted(declared, observed string) bool {
	if declared == "" || observed == "" {
		return false
	}
	constraint, err := semver.ParseConstraint(declared)
	if err != nil {
		return false
	}
	version, err := semver.ParseVersion(observed)
	if err != nil {
		return false
	}
	return !constraint.Matches(version)
}

// recommend derives follow-up suggestions from the probe records.
func recommend(records []Record) []string {
	var recs []string
	for _, rec := range records {
		switch rec.Status {
		case StatusDegraded:
			recs = append(recs, fmt.Sprintf(
				"%s: %s; run 'devenv setup' to reinstall the declared version", rec.Plugin, rec.Detail))
		case StatusUnhealthy:
			recs = append(recs, fmt.Sprintf(
				"%s is not responding (%s); check that its version manager is installed", rec.Plugin, rec.Detail))
		}
	}
	return recs
}
