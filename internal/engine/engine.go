// SPDX-License-Identifier: MPL-2.0

// Package engine is the orchestration façade: it wires detection, the plugin
// registry, the install scheduler, environment state, and health monitoring
// behind the operations the CLI exposes.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/config"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/detect"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/envstate"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/health"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/installer"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/plugin"
	"github.com/BibhabenduMukherjee/dev-env-manager/internal/runner"
)

type (
	// Engine coordinates all subsystems behind the user-facing operations.
	Engine struct {
		cfg      *config.Config
		detector *detect.Detector
		registry *plugin.Registry
		store    *envstate.Store
		machine  *envstate.Machine
		monitor  *health.Monitor
		cache    *installer.Cache
		logger   *log.Logger
	}

	// EngineOptions overrides subsystem wiring, mostly for tests. Zero
	// fields get production defaults.
	//
	//nolint:revive // EngineOptions is more descriptive than Options for external callers
	EngineOptions struct {
		// Registry replaces the built-in plugin registry.
		Registry *plugin.Registry
		// Runner replaces the process runner built-in plugins use.
		Runner runner.Runner
		// Logger receives engine progress; nil gets a default stderr logger.
		Logger *log.Logger
	}

	// SetupResult reports what Setup did.
	SetupResult struct {
		// Environment is the created (or rebuilt) environment.
		Environment *envstate.Environment
		// Profile is the detection profile the environment was built from.
		Profile *detect.Profile
		// Report is the install report.
		Report *installer.Report
	}

	// EnvStatus pairs an environment with its latest health report.
	//
	//nolint:revive // EnvStatus is more descriptive than Status for external callers
	EnvStatus struct {
		Environment *envstate.Environment
		Health      *health.Report
		Active      bool
	}
)

// New creates an engine from configuration.
func New(cfg *config.Config, opts EngineOptions) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: config.AppName})
	}

	registry := opts.Registry
	if registry == nil {
		registry = plugin.NewRegistry()
		run := opts.Runner
		if run == nil {
			run = newRunner(cfg)
		}
		if err := plugin.RegisterBuiltins(registry, run); err != nil {
			return nil, classify(err)
		}
	}

	store, err := envstate.NewStore(cfg.EnvironmentsDir)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Err: err}
	}

	return &Engine{
		cfg:      cfg,
		detector: detect.NewDetector(),
		registry: registry,
		store:    store,
		machine:  envstate.NewMachine(store),
		monitor: health.NewMonitor(registry, health.MonitorOptions{
			Concurrency: cfg.Install.Concurrency,
			Logger:      logger.WithPrefix("health"),
		}),
		cache:  installer.NewCache(cfg.CacheDir),
		logger: logger,
	}, nil
}

// newRunner builds the process runner provider scripts execute through:
// the system shell by default, or the built-in portable interpreter when
// the configuration asks for it.
func newRunner(cfg *config.Config) runner.Runner {
	if cfg.Install.Runner == config.RunnerVirtual {
		return runner.NewVirtualRunner()
	}
	return runner.NewExecRunner()
}

// Registry exposes the plugin registry for custom plugin registration.
func (e *Engine) Registry() *plugin.Registry { return e.registry }

// Detect scans a project directory and returns its detection profile.
func (e *Engine) Detect(_ context.Context, root string) (*detect.Profile, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, classify(err)
	}
	profile, err := e.detector.Detect(abs)
	if err != nil {
		return nil, classify(err)
	}
	e.logger.Debug("detection complete",
		"root", abs,
		"languages", len(profile.Languages),
		"frameworks", len(profile.Frameworks))
	return profile, nil
}

// Setup detects the project at root and builds a named environment for it:
// resolve plugins, install toolchains in dependency order, install project
// dependencies, and record the activation environment. Partial install
// failure leaves a Degraded environment that must be repaired by a setup
// re-run before it can be activated; total failure leaves a Failed one. The
// environment name must be unused unless the name already belongs to a
// Failed or Degraded environment, which is rebuilt in place.
func (e *Engine) Setup(ctx context.Context, root string, name envstate.EnvName) (*SetupResult, error) {
	profile, err := e.Detect(ctx, root)
	if err != nil {
		return nil, err
	}

	env, err := e.prepareEnvironment(profile, name)
	if err != nil {
		return nil, err
	}

	plan, err := installer.BuildPlan(profile, e.registry)
	if err != nil {
		_ = env.ChangeStatus(envstate.StatusFailed)
		_ = e.store.Save(env)
		return nil, classify(err)
	}

	sched := installer.NewScheduler(installer.Options{
		Concurrency:   e.cfg.Install.Concurrency,
		RetryAttempts: e.cfg.Install.RetryAttempts,
		RetryBackoff:  e.cfg.Install.RetryBackoff,
		TaskTimeout:   e.cfg.Install.TaskTimeout,
		Cache:         e.cache,
		Logger:        e.logger.WithPrefix("installer"),
	})
	report, err := sched.Run(ctx, plan, e.registry)
	if err != nil {
		_ = env.ChangeStatus(envstate.StatusFailed)
		_ = e.store.Save(env)
		return nil, classify(err)
	}

	e.finishSetup(ctx, env, profile, report)
	if err := e.store.Save(env); err != nil {
		return nil, classify(err)
	}

	result := &SetupResult{Environment: env, Profile: profile, Report: report}
	if env.Status == envstate.StatusFailed {
		return result, &Error{Kind: KindInstallFailed, Err: report.Err()}
	}
	return result, nil
}

// prepareEnvironment creates the descriptor for a new environment, or
// resets a Failed or Degraded one for rebuild.
func (e *Engine) prepareEnvironment(profile *detect.Profile, name envstate.EnvName) (*envstate.Environment, error) {
	now := time.Now().UTC()

	if e.store.Exists(name) {
		existing, err := e.store.Load(name)
		if err != nil {
			return nil, classify(err)
		}
		if existing.Status != envstate.StatusFailed && existing.Status != envstate.StatusDegraded {
			return nil, classify(&envstate.NameTakenError{Name: name})
		}
		if err := existing.ChangeStatus(envstate.StatusCreating); err != nil {
			return nil, classify(err)
		}
		existing.ProjectRoot = profile.Root
		existing.Languages = profile.Languages
		existing.Frameworks = profile.Frameworks
		existing.Activation = nil
		if err := e.store.Save(existing); err != nil {
			return nil, classify(err)
		}
		return existing, nil
	}

	env := &envstate.Environment{
		Name:        name,
		ProjectRoot: profile.Root,
		Status:      envstate.StatusCreating,
		Languages:   profile.Languages,
		Frameworks:  profile.Frameworks,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.Create(env); err != nil {
		return nil, classify(err)
	}
	return env, nil
}

// finishSetup installs project dependencies for the successful toolchains,
// collects activation env, and settles the environment's final status.
func (e *Engine) finishSetup(ctx context.Context, env *envstate.Environment, profile *detect.Profile, report *installer.Report) {
	activation := make(map[string]string)
	succeeded := 0
	depsFailed := false

	for _, task := range report.Tasks {
		if task.State() != installer.StateSucceeded {
			continue
		}
		succeeded++

		d, err := e.registry.Lookup(task.Plugin)
		if err != nil {
			continue
		}

		// Only detected languages get project dependency installs and
		// activation entries; pulled-in requirements are infrastructure.
		if _, detected := profile.Languages[string(task.Plugin)]; !detected {
			continue
		}

		if err := d.Provider.InstallDependencies(ctx, profile.Root, task.Version); err != nil {
			e.logger.Warn("project dependency install failed", "plugin", task.Plugin, "error", err)
			depsFailed = true
		}

		if task.Version == "" {
			continue
		}
		envVars, err := d.Provider.ActivationEnv(task.Version)
		if err != nil {
			e.logger.Warn("activation env unavailable", "plugin", task.Plugin, "error", err)
			continue
		}
		mergeActivation(activation, envVars)
	}

	env.Activation = activation

	switch {
	case len(report.Tasks) > 0 && succeeded == 0:
		_ = env.ChangeStatus(envstate.StatusFailed)
	case len(report.Failed()) > 0 || depsFailed:
		_ = env.ChangeStatus(envstate.StatusDegraded)
	default:
		_ = env.ChangeStatus(envstate.StatusReady)
	}
}

// mergeActivation merges src into dst. PATH-like entries from multiple
// plugins are joined rather than overwritten.
func mergeActivation(dst, src map[string]string) {
	for k, v := range src {
		if k == "PATH" {
			if existing, ok := dst[k]; ok {
				dst[k] = v + string(os.PathListSeparator) + existing
				continue
			}
		}
		dst[k] = v
	}
}

// Switch makes the named environment active. Activation verifies the
// environment's toolchains respond before the active pointer moves; a
// failing environment leaves the previous one active. After the swap
// commits, the outgoing environment's plugins get their deactivation hooks.
func (e *Engine) Switch(ctx context.Context, name envstate.EnvName) (*envstate.SwitchResult, error) {
	hooks := envstate.Hooks{
		Activate: func(ctx context.Context, env *envstate.Environment) error {
			report := e.monitor.Check(ctx, env)
			if report.Status == health.StatusUnhealthy {
				return fmt.Errorf("environment %q failed health verification (score %.2f)", env.Name, report.Score)
			}
			return nil
		},
		Deactivate: e.deactivatePlugins,
	}
	res, err := e.machine.Switch(ctx, name, hooks)
	if err != nil {
		return nil, classify(err)
	}
	e.logger.Info("switched environment", "from", res.Previous, "to", name)
	return res, nil
}

// deactivatePlugins runs the provider deactivation hook for every language
// the outgoing environment declares. Failures are logged, not propagated:
// the swap has already committed by the time this runs.
func (e *Engine) deactivatePlugins(ctx context.Context, env *envstate.Environment) error {
	for lang, version := range env.Languages {
		d, err := e.registry.Lookup(plugin.Name(lang))
		if err != nil {
			continue
		}
		if err := d.Provider.Deactivate(ctx, version); err != nil {
			e.logger.Warn("plugin deactivation failed", "plugin", lang, "error", err)
		}
	}
	return nil
}

// Deactivate clears the active environment.
func (e *Engine) Deactivate(ctx context.Context) error {
	return classify(e.machine.Deactivate(ctx, envstate.Hooks{Deactivate: e.deactivatePlugins}))
}

// Status loads an environment and runs a health check against it. An empty
// name means the active environment.
func (e *Engine) Status(ctx context.Context, name envstate.EnvName) (*EnvStatus, error) {
	var (
		env *envstate.Environment
		err error
	)
	if name == "" {
		env, err = e.machine.Active()
		if err != nil {
			return nil, classify(err)
		}
		if env == nil {
			return nil, classify(&envstate.NotFoundError{Name: "(active)"})
		}
	} else {
		env, err = e.store.Load(name)
		if err != nil {
			return nil, classify(err)
		}
	}

	activeName, err := e.machine.ActiveName()
	if err != nil {
		return nil, classify(err)
	}

	return &EnvStatus{
		Environment: env,
		Health:      e.monitor.Check(ctx, env),
		Active:      env.Name == activeName,
	}, nil
}

// List returns every environment descriptor in name order.
func (e *Engine) List(_ context.Context) ([]*envstate.Environment, error) {
	names, err := e.store.List()
	if err != nil {
		return nil, classify(err)
	}
	envs := make([]*envstate.Environment, 0, len(names))
	for _, name := range names {
		env, err := e.store.Load(name)
		if err != nil {
			return nil, classify(err)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// Remove deletes an environment. The active environment is deactivated
// first so no dangling active pointer survives.
func (e *Engine) Remove(ctx context.Context, name envstate.EnvName) error {
	activeName, err := e.machine.ActiveName()
	if err != nil {
		return classify(err)
	}
	if activeName == name {
		if err := e.machine.Deactivate(ctx, envstate.Hooks{Deactivate: e.deactivatePlugins}); err != nil {
			return classify(err)
		}
	}
	return classify(e.store.Delete(name))
}

// Share exports an environment descriptor to w for use on another machine.
func (e *Engine) Share(_ context.Context, name envstate.EnvName, w io.Writer) error {
	return classify(e.store.Export(name, w))
}

// Import creates an environment from an exported descriptor. The new
// environment starts in Creating; run Setup against its project root (or
// Rebuild) to install its toolchains here.
func (e *Engine) Import(_ context.Context, r io.Reader, name envstate.EnvName) (*envstate.Environment, error) {
	env, err := e.store.Import(r, name)
	if err != nil {
		return nil, classify(err)
	}
	e.logger.Info("imported environment", "name", env.Name)
	return env, nil
}
