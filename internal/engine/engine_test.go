// SPDX-License-Identifier: MPL-2.0

package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/config"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/runner"
)

// testProvider is a fully controllable in-memory provider.
type testProvider struct {
	installErr  error
	probe       plugin.ProbeResult
	env         map[string]string
	installs    int
	deactivates int
}

func (p *testProvider) Install(context.Context, string) error {
	p.installs++
	return p.installErr
}
func (p *testProvider) Update(context.Context, string) error                      { return nil }
func (p *testProvider) InstallDependencies(context.Context, string, string) error { return nil }

func (p *testProvider) Deactivate(context.Context, string) error {
	p.deactivates++
	return nil
}

func (p *testProvider) Probe(context.Context, string) (plugin.ProbeResult, error) {
	return p.probe, nil
}

func (p *testProvider) ActivationEnv(string) (map[string]string, error) {
	if p.env == nil {
		return map[string]string{}, nil
	}
	return p.env, nil
}

func healthyProvider(envVars map[string]string) *testProvider {
	return &testProvider{
		probe: plugin.ProbeResult{Healthy: true, ObservedVersion: "20.10.0"},
		env:   envVars,
	}
}

func newTestEngine(t *testing.T, providers map[plugin.Name]*testProvider) *Engine {
	t.Helper()

	dataDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.EnvironmentsDir = filepath.Join(dataDir, "environments")
	cfg.CacheDir = filepath.Join(dataDir, "cache")
	cfg.Install.RetryBackoff = time.Millisecond

	registry := plugin.NewRegistry()
	for name, p := range providers {
		if err := registry.Register(&plugin.Descriptor{Name: name, Provider: p}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	eng, err := New(cfg, EngineOptions{
		Registry: registry,
		Logger:   log.NewWithOptions(io.Discard, log.Options{}),
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return eng
}

func nodeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	manifest := `{"name": "app", "engines": {"node": "20.10.0"}}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}
	return dir
}

func TestSetup_CreatesReadyEnvironment(t *testing.T) {
	t.Parallel()

	node := healthyProvider(map[string]string{"NVM_DIR": "/home/dev/.nvm"})
	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": node})

	res, err := eng.Setup(context.Background(), nodeProject(t), "web")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if res.Environment.Status != envstate.StatusReady {
		t.Errorf("expected ready, got %s", res.Environment.Status)
	}
	if res.Environment.Languages["node"] != "20.10.0" {
		t.Errorf("expected node 20.10.0, got %q", res.Environment.Languages["node"])
	}
	if res.Environment.Activation["NVM_DIR"] == "" {
		t.Error("expected activation env recorded")
	}
	if node.installs == 0 {
		t.Error("expected provider install")
	}
}

func TestSetup_NameCollision(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": healthyProvider(nil)})
	root := nodeProject(t)
	ctx := context.Background()

	if _, err := eng.Setup(ctx, root, "web"); err != nil {
		t.Fatalf("first setup: %v", err)
	}
	_, err := eng.Setup(ctx, root, "web")
	if err == nil {
		t.Fatal("expected name collision")
	}
	if KindOf(err) != KindEnvNameTaken {
		t.Errorf("expected KindEnvNameTaken, got %s", KindOf(err))
	}
}

func TestSetup_PartialFailureIsDegraded(t *testing.T) {
	t.Parallel()

	broken := &testProvider{installErr: errors.New("mirror down")}
	eng := newTestEngine(t, map[plugin.Name]*testProvider{
		"node":   healthyProvider(nil),
		"python": broken,
	})

	dir := nodeProject(t)
	if err := os.WriteFile(filepath.Join(dir, ".python-version"), []byte("3.11.0\n"), 0o644); err != nil {
		t.Fatalf("write .python-version: %v", err)
	}

	res, err := eng.Setup(context.Background(), dir, "mixed")
	if err != nil {
		t.Fatalf("setup with partial failure should not error: %v", err)
	}
	if res.Environment.Status != envstate.StatusDegraded {
		t.Errorf("expected degraded, got %s", res.Environment.Status)
	}
	if res.Report.Succeeded() != 1 {
		t.Errorf("expected 1 success, got %d", res.Report.Succeeded())
	}
}

func TestSetup_DegradedRepairCycle(t *testing.T) {
	t.Parallel()

	broken := &testProvider{installErr: errors.New("mirror down")}
	broken.probe = plugin.ProbeResult{Healthy: true, ObservedVersion: "3.11.0"}
	eng := newTestEngine(t, map[plugin.Name]*testProvider{
		"node":   healthyProvider(nil),
		"python": broken,
	})
	ctx := context.Background()

	dir := nodeProject(t)
	if err := os.WriteFile(filepath.Join(dir, ".python-version"), []byte("3.11.0\n"), 0o644); err != nil {
		t.Fatalf("write .python-version: %v", err)
	}

	res, err := eng.Setup(ctx, dir, "mixed")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if res.Environment.Status != envstate.StatusDegraded {
		t.Fatalf("expected degraded, got %s", res.Environment.Status)
	}

	// Degraded environments cannot be activated directly.
	_, err = eng.Switch(ctx, "mixed")
	if err == nil {
		t.Fatal("expected switch to a degraded environment to be rejected")
	}
	if KindOf(err) != KindActivationFailed {
		t.Errorf("expected KindActivationFailed, got %s", KindOf(err))
	}

	// A setup re-run repairs the environment in place.
	broken.installErr = nil
	res, err = eng.Setup(ctx, dir, "mixed")
	if err != nil {
		t.Fatalf("repair setup: %v", err)
	}
	if res.Environment.Status != envstate.StatusReady {
		t.Fatalf("expected ready after repair, got %s", res.Environment.Status)
	}
	if _, err := eng.Switch(ctx, "mixed"); err != nil {
		t.Fatalf("switch after repair: %v", err)
	}
}

func TestSetup_TotalFailureIsFailedAndRebuildable(t *testing.T) {
	t.Parallel()

	broken := &testProvider{installErr: errors.New("mirror down")}
	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": broken})
	root := nodeProject(t)
	ctx := context.Background()

	res, err := eng.Setup(ctx, root, "web")
	if err == nil {
		t.Fatal("expected install failure")
	}
	if KindOf(err) != KindInstallFailed {
		t.Errorf("expected KindInstallFailed, got %s", KindOf(err))
	}
	if res == nil || res.Environment.Status != envstate.StatusFailed {
		t.Fatalf("expected failed environment in result, got %+v", res)
	}

	// A failed name is rebuildable in place.
	broken.installErr = nil
	res, err = eng.Setup(ctx, root, "web")
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if res.Environment.Status != envstate.StatusReady {
		t.Errorf("expected ready after rebuild, got %s", res.Environment.Status)
	}
}

func TestSetup_UnknownLanguageClassified(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, map[plugin.Name]*testProvider{})
	_, err := eng.Setup(context.Background(), nodeProject(t), "web")
	if err == nil {
		t.Fatal("expected plugin resolution failure")
	}
	if KindOf(err) != KindPluginNotFound {
		t.Errorf("expected KindPluginNotFound, got %s", KindOf(err))
	}
}

func TestSwitch_HealthGateAndRollback(t *testing.T) {
	t.Parallel()

	node := healthyProvider(nil)
	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": node})
	ctx := context.Background()
	root := nodeProject(t)

	if _, err := eng.Setup(ctx, root, "good"); err != nil {
		t.Fatalf("setup good: %v", err)
	}
	if _, err := eng.Setup(ctx, root, "bad"); err != nil {
		t.Fatalf("setup bad: %v", err)
	}

	if _, err := eng.Switch(ctx, "good"); err != nil {
		t.Fatalf("switch good: %v", err)
	}

	// Break the runtime, then try to switch: the gate must reject and leave
	// the previous environment active.
	node.probe = plugin.ProbeResult{Healthy: false, Detail: "binary missing"}
	_, err := eng.Switch(ctx, "bad")
	if err == nil {
		t.Fatal("expected activation failure")
	}
	if KindOf(err) != KindActivationFailed {
		t.Errorf("expected KindActivationFailed, got %s", KindOf(err))
	}

	node.probe = plugin.ProbeResult{Healthy: true, ObservedVersion: "20.10.0"}
	status, err := eng.Status(ctx, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Environment.Name != "good" || !status.Active {
		t.Errorf("expected good still active, got %+v", status.Environment.Name)
	}
}

func TestSwitch_RunsDeactivationHooks(t *testing.T) {
	t.Parallel()

	node := healthyProvider(nil)
	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": node})
	ctx := context.Background()
	root := nodeProject(t)

	if _, err := eng.Setup(ctx, root, "first"); err != nil {
		t.Fatalf("setup first: %v", err)
	}
	if _, err := eng.Setup(ctx, root, "second"); err != nil {
		t.Fatalf("setup second: %v", err)
	}

	if _, err := eng.Switch(ctx, "first"); err != nil {
		t.Fatalf("switch first: %v", err)
	}
	if node.deactivates != 0 {
		t.Fatalf("no environment was outgoing yet, got %d deactivations", node.deactivates)
	}

	// Switching away from "first" tears its plugins down.
	if _, err := eng.Switch(ctx, "second"); err != nil {
		t.Fatalf("switch second: %v", err)
	}
	if node.deactivates != 1 {
		t.Errorf("expected 1 deactivation after switching away, got %d", node.deactivates)
	}

	if err := eng.Deactivate(ctx); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if node.deactivates != 2 {
		t.Errorf("expected 2 deactivations after explicit deactivate, got %d", node.deactivates)
	}
}

func TestStatus_ReportsHealth(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": healthyProvider(nil)})
	ctx := context.Background()

	if _, err := eng.Setup(ctx, nodeProject(t), "web"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	status, err := eng.Status(ctx, "web")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Active {
		t.Error("environment should not be active before switch")
	}
	if status.Health == nil || len(status.Health.Records) != 1 {
		t.Fatalf("expected 1 health record, got %+v", status.Health)
	}
}

func TestRemove_ActiveEnvironmentDeactivatesFirst(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": healthyProvider(nil)})
	ctx := context.Background()

	if _, err := eng.Setup(ctx, nodeProject(t), "web"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := eng.Switch(ctx, "web"); err != nil {
		t.Fatalf("switch: %v", err)
	}

	if err := eng.Remove(ctx, "web"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	envs, err := eng.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(envs) != 0 {
		t.Errorf("expected no environments, got %d", len(envs))
	}
	if _, err := eng.Status(ctx, ""); KindOf(err) != KindEnvNotFound {
		t.Errorf("expected no active environment, got %v", err)
	}
}

func TestShareImportRoundTrip(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, map[plugin.Name]*testProvider{"node": healthyProvider(nil)})
	ctx := context.Background()

	if _, err := eng.Setup(ctx, nodeProject(t), "web"); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var buf bytes.Buffer
	if err := eng.Share(ctx, "web", &buf); err != nil {
		t.Fatalf("share: %v", err)
	}

	imported, err := eng.Import(ctx, &buf, "web-imported")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.Status != envstate.StatusCreating {
		t.Errorf("imported environment must start in creating, got %s", imported.Status)
	}
	if imported.Languages["node"] != "20.10.0" {
		t.Errorf("languages must survive share/import, got %v", imported.Languages)
	}
}

func TestKindOf_UnclassifiedIsInternal(t *testing.T) {
	t.Parallel()

	if got := KindOf(errors.New("mystery")); got != KindInternal {
		t.Errorf("expected KindInternal, got %s", got)
	}
}

func TestNewRunner_FollowsInstallConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	if _, ok := newRunner(cfg).(*runner.ExecRunner); !ok {
		t.Errorf("default config must select the exec runner, got %T", newRunner(cfg))
	}

	cfg.Install.Runner = config.RunnerVirtual
	if _, ok := newRunner(cfg).(*runner.VirtualRunner); !ok {
		t.Errorf("virtual config must select the virtual runner, got %T", newRunner(cfg))
	}
}
