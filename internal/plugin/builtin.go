// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BibhabenduMukherjee/dev-env-manager/internal/runner"
)

// defaultScriptTimeout bounds a single provider script invocation.
const defaultScriptTimeout = 10 * time.Minute

// Exit codes a shell reports when the underlying version manager is missing
// or not executable. These failures are permanent; retrying cannot help.
const (
	exitCommandNotInvokable = 126
	exitCommandNotFound     = 127
)

// scriptProvider implements Provider by driving an external version manager
// (nvm, pyenv, rustup) through shell scripts. Each built-in plugin is a
// scriptProvider with manager-specific script templates.
type scriptProvider struct {
	name    string
	run     runner.Runner
	home    string
	timeout time.Duration

	installScript    func(version string) string
	updateScript     func(version string) string
	probeScript      func(version string) string
	depsScript       func(projectRoot, version string) string
	deactivateScript func(version string) string
	activation       func(home, version string) map[string]string
}

// Install implements Provider.
func (p *scriptProvider) Install(ctx context.Context, version string) error {
	return p.exec(ctx, "install", p.installScript(version))
}

// Update implements Provider.
func (p *scriptProvider) Update(ctx context.Context, version string) error {
	return p.exec(ctx, "update", p.updateScript(version))
}

// InstallDependencies implements Provider.
func (p *scriptProvider) InstallDependencies(ctx context.Context, projectRoot, version string) error {
	if p.depsScript == nil {
		return nil
	}
	return p.exec(ctx, "install dependencies", p.depsScript(projectRoot, version))
}

// Probe implements Provider. Probe failures are reported in the result, not
// as errors; an error means the probe itself could not run.
func (p *scriptProvider) Probe(ctx context.Context, version string) (ProbeResult, error) {
	res, err := p.run.Run(ctx, runner.Spec{
		Script:  p.probeScript(version),
		Env:     p.activation(p.home, version),
		Timeout: p.timeout,
	})
	if err != nil {
		return ProbeResult{}, fmt.Errorf("%s probe: %w", p.name, err)
	}
	if res.ExitCode != 0 {
		return ProbeResult{
			Healthy: false,
			Detail:  fmt.Sprintf("probe exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr)),
		}, nil
	}
	return ProbeResult{
		Healthy:         true,
		ObservedVersion: normalizeVersionOutput(res.Stdout),
	}, nil
}

// ActivationEnv implements Provider.
func (p *scriptProvider) ActivationEnv(version string) (map[string]string, error) {
	if version == "" {
		return nil, fmt.Errorf("%s: activation requires a concrete version", p.name)
	}
	return p.activation(p.home, version), nil
}

// Deactivate implements Provider. Managers whose activation is purely
// env-var based declare no deactivation script and this is a no-op.
func (p *scriptProvider) Deactivate(ctx context.Context, version string) error {
	if p.deactivateScript == nil {
		return nil
	}
	return p.exec(ctx, "deactivate", p.deactivateScript(version))
}

// exec runs a script and classifies the failure mode. A missing manager
// (exit 126/127) is permanent; timeouts and other non-zero exits are marked
// transient so the installer retries them.
func (p *scriptProvider) exec(ctx context.Context, op, script string) error {
	res, err := p.run.Run(ctx, runner.Spec{
		Script:  script,
		Env:     p.activation(p.home, ""),
		Timeout: p.timeout,
	})
	if err != nil {
		wrapped := fmt.Errorf("%s %s: %w", p.name, op, err)
		if runner.IsTimeout(err) {
			return MarkTransient(wrapped)
		}
		return wrapped
	}
	if res.ExitCode == 0 {
		return nil
	}

	failure := fmt.Errorf("%s %s exited %d: %s",
		p.name, op, res.ExitCode, strings.TrimSpace(res.Stderr))
	if res.ExitCode == exitCommandNotFound || res.ExitCode == exitCommandNotInvokable {
		return failure
	}
	return MarkTransient(failure)
}

// normalizeVersionOutput strips tool prefixes from version command output
// ("v20.10.0", "Python 3.11.0", "go version go1.22.1 ...").
func normalizeVersionOutput(out string) string {
	line := strings.TrimSpace(out)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	for _, field := range strings.Fields(line) {
		candidate := strings.TrimPrefix(field, "go")
		candidate = strings.TrimPrefix(candidate, "v")
		if len(candidate) > 0 && candidate[0] >= '0' && candidate[0] <= '9' {
			return candidate
		}
	}
	return line
}

func defaultHome(manager string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "." + manager
	}
	return filepath.Join(home, "."+manager)
}

// NewNodeProvider returns a Provider backed by nvm.
func NewNodeProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "node",
		run:     run,
		home:    defaultHome("nvm"),
		timeout: defaultScriptTimeout,
	}
	nvm := func(cmd string) string {
		return fmt.Sprintf(`. "$NVM_DIR/nvm.sh" && %s`, cmd)
	}
	p.installScript = func(version string) string {
		return nvm(fmt.Sprintf("nvm install %s", version))
	}
	p.updateScript = func(version string) string {
		// Migrate global packages from whatever version is active now.
		return nvm(fmt.Sprintf("nvm install %s --reinstall-packages-from=current", version))
	}
	p.probeScript = func(string) string {
		return "node --version"
	}
	p.depsScript = func(projectRoot, _ string) string {
		return fmt.Sprintf("cd %q && npm install", projectRoot)
	}
	p.deactivateScript = func(string) string {
		return nvm("nvm deactivate")
	}
	p.activation = func(home, version string) map[string]string {
		env := map[string]string{"NVM_DIR": home}
		if version != "" {
			binDir := filepath.Join(home, "versions", "node", "v"+version, "bin")
			env["PATH"] = prependPath(binDir)
		}
		return env
	}
	return p
}

// NewPythonProvider returns a Provider backed by pyenv.
func NewPythonProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "python",
		run:     run,
		home:    defaultHome("pyenv"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(version string) string {
		// -s skips versions that are already installed.
		return fmt.Sprintf("pyenv install -s %s", version)
	}
	p.updateScript = func(version string) string {
		return fmt.Sprintf("pyenv install -s %s", version)
	}
	p.probeScript = func(string) string {
		return "python --version"
	}
	p.depsScript = func(projectRoot, _ string) string {
		return fmt.Sprintf("cd %q && if [ -f requirements.txt ]; then pip install -r requirements.txt; fi", projectRoot)
	}
	p.activation = func(home, version string) map[string]string {
		env := map[string]string{"PYENV_ROOT": home}
		if version != "" {
			env["PYENV_VERSION"] = version
			env["PATH"] = prependPath(filepath.Join(home, "versions", version, "bin"))
		}
		return env
	}
	return p
}

// NewRustProvider returns a Provider backed by rustup.
func NewRustProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "rust",
		run:     run,
		home:    defaultHome("rustup"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(version string) string {
		return fmt.Sprintf("rustup toolchain install %s", version)
	}
	p.updateScript = func(version string) string {
		return fmt.Sprintf("rustup update %s", version)
	}
	p.probeScript = func(version string) string {
		return fmt.Sprintf("rustup run %s rustc --version", version)
	}
	p.depsScript = func(projectRoot, version string) string {
		return fmt.Sprintf("cd %q && rustup run %s cargo fetch", projectRoot, version)
	}
	p.activation = func(home, version string) map[string]string {
		env := map[string]string{"RUSTUP_HOME": home}
		if version != "" {
			env["RUSTUP_TOOLCHAIN"] = version
		}
		return env
	}
	return p
}

// NewGoProvider returns a Provider backed by goenv.
func NewGoProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "golang",
		run:     run,
		home:    defaultHome("goenv"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(version string) string {
		return fmt.Sprintf("goenv install -s %s", version)
	}
	p.updateScript = func(version string) string {
		return fmt.Sprintf("goenv install -s %s", version)
	}
	p.probeScript = func(string) string {
		return "go version"
	}
	p.depsScript = func(projectRoot, _ string) string {
		return fmt.Sprintf("cd %q && go mod download", projectRoot)
	}
	p.activation = func(home, version string) map[string]string {
		env := map[string]string{"GOENV_ROOT": home}
		if version != "" {
			env["GOENV_VERSION"] = version
			env["PATH"] = prependPath(filepath.Join(home, "versions", version, "bin"))
		}
		return env
	}
	return p
}

// NewRubyProvider returns a Provider backed by rbenv.
func NewRubyProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "ruby",
		run:     run,
		home:    defaultHome("rbenv"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(version string) string {
		return fmt.Sprintf("rbenv install -s %s", version)
	}
	p.updateScript = func(version string) string {
		return fmt.Sprintf("rbenv install -s %s", version)
	}
	p.probeScript = func(string) string {
		return "ruby --version"
	}
	p.depsScript = func(projectRoot, _ string) string {
		return fmt.Sprintf("cd %q && if [ -f Gemfile ]; then bundle install; fi", projectRoot)
	}
	p.activation = func(home, version string) map[string]string {
		env := map[string]string{"RBENV_ROOT": home}
		if version != "" {
			env["RBENV_VERSION"] = version
			env["PATH"] = prependPath(filepath.Join(home, "versions", version, "bin"))
		}
		return env
	}
	return p
}

// NewNvmProvider returns a Provider that bootstraps nvm itself.
func NewNvmProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "nvm",
		run:     run,
		home:    defaultHome("nvm"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(string) string {
		return `[ -s "$NVM_DIR/nvm.sh" ] || git clone --depth 1 https://github.com/nvm-sh/nvm.git "$NVM_DIR"`
	}
	p.updateScript = func(string) string {
		return `git -C "$NVM_DIR" pull --ff-only`
	}
	p.probeScript = func(string) string {
		return `. "$NVM_DIR/nvm.sh" && nvm --version`
	}
	p.activation = func(home, _ string) map[string]string {
		return map[string]string{"NVM_DIR": home}
	}
	return p
}

// NewPyenvProvider returns a Provider that bootstraps pyenv itself.
func NewPyenvProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "pyenv",
		run:     run,
		home:    defaultHome("pyenv"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(string) string {
		return `command -v pyenv >/dev/null 2>&1 || git clone --depth 1 https://github.com/pyenv/pyenv.git "$PYENV_ROOT"`
	}
	p.updateScript = func(string) string {
		return `git -C "$PYENV_ROOT" pull --ff-only`
	}
	p.probeScript = func(string) string {
		return "pyenv --version"
	}
	p.activation = func(home, _ string) map[string]string {
		return map[string]string{
			"PYENV_ROOT": home,
			"PATH":       prependPath(filepath.Join(home, "bin")),
		}
	}
	return p
}

// NewRustupProvider returns a Provider that bootstraps rustup itself.
func NewRustupProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "rustup",
		run:     run,
		home:    defaultHome("rustup"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(string) string {
		return `command -v rustup >/dev/null 2>&1 || (curl --proto '=https' --tlsv1.2 -sSf https://sh.rustup.rs | sh -s -- -y --no-modify-path)`
	}
	p.updateScript = func(string) string {
		return "rustup self update"
	}
	p.probeScript = func(string) string {
		return "rustup --version"
	}
	p.activation = func(home, _ string) map[string]string {
		return map[string]string{"RUSTUP_HOME": home}
	}
	return p
}

// NewGoenvProvider returns a Provider that bootstraps goenv itself.
func NewGoenvProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "goenv",
		run:     run,
		home:    defaultHome("goenv"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(string) string {
		return `command -v goenv >/dev/null 2>&1 || git clone --depth 1 https://github.com/go-nv/goenv.git "$GOENV_ROOT"`
	}
	p.updateScript = func(string) string {
		return `git -C "$GOENV_ROOT" pull --ff-only`
	}
	p.probeScript = func(string) string {
		return "goenv --version"
	}
	p.activation = func(home, _ string) map[string]string {
		return map[string]string{
			"GOENV_ROOT": home,
			"PATH":       prependPath(filepath.Join(home, "bin")),
		}
	}
	return p
}

// NewRbenvProvider returns a Provider that bootstraps rbenv itself.
func NewRbenvProvider(run runner.Runner) Provider {
	p := &scriptProvider{
		name:    "rbenv",
		run:     run,
		home:    defaultHome("rbenv"),
		timeout: defaultScriptTimeout,
	}
	p.installScript = func(string) string {
		return `command -v rbenv >/dev/null 2>&1 || git clone --depth 1 https://github.com/rbenv/rbenv.git "$RBENV_ROOT"`
	}
	p.updateScript = func(string) string {
		return `git -C "$RBENV_ROOT" pull --ff-only`
	}
	p.probeScript = func(string) string {
		return "rbenv --version"
	}
	p.activation = func(home, _ string) map[string]string {
		return map[string]string{
			"RBENV_ROOT": home,
			"PATH":       prependPath(filepath.Join(home, "bin")),
		}
	}
	return p
}

// prependPath renders a PATH value that puts dir ahead of the inherited PATH.
func prependPath(dir string) string {
	return dir + string(os.PathListSeparator) + os.Getenv("PATH")
}

// RegisterBuiltins registers the built-in plugins against run: the version
// managers first, then the language plugins that require them, so the
// installer orders manager bootstrap before language installs.
func RegisterBuiltins(r *Registry, run runner.Runner) error {
	descriptors := []*Descriptor{
		{Name: "nvm", Provider: NewNvmProvider(run)},
		{Name: "pyenv", Provider: NewPyenvProvider(run)},
		{Name: "rustup", Provider: NewRustupProvider(run)},
		{Name: "goenv", Provider: NewGoenvProvider(run)},
		{Name: "rbenv", Provider: NewRbenvProvider(run)},
		{Name: "node", Supports: ">=14.0.0", Requires: []Name{"nvm"}, Provider: NewNodeProvider(run)},
		{Name: "python", Supports: ">=3.8.0", Requires: []Name{"pyenv"}, Provider: NewPythonProvider(run)},
		{Name: "rust", Supports: ">=1.60.0", Requires: []Name{"rustup"}, Provider: NewRustProvider(run)},
		{Name: "golang", Supports: ">=1.18.0", Requires: []Name{"goenv"}, Provider: NewGoProvider(run)},
		{Name: "ruby", Supports: ">=3.0.0", Requires: []Name{"rbenv"}, Provider: NewRubyProvider(run)},
	}
	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}
