// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir for %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestDetect_NodeAndPythonVersions(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"package.json":    `{"name": "app", "engines": {"node": "20.10.0"}}`,
		".python-version": "3.11.0\n",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := profile.Languages["node"]; got != "20.10.0" {
		t.Errorf("expected node 20.10.0, got %q", got)
	}
	if got := profile.Languages["python"]; got != "3.11.0" {
		t.Errorf("expected python 3.11.0, got %q", got)
	}
}

func TestDetect_Idempotent(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"package.json":      `{"engines": {"node": ">=18"}}`,
		"package-lock.json": "{}",
		"go.mod":            "module example\n\ngo 1.22\n",
		".tool-versions":    "ruby 3.3.0\n",
	})

	detector := NewDetector()
	first, err := detector.Detect(dir)
	if err != nil {
		t.Fatalf("first detect: %v", err)
	}
	second, err := detector.Detect(dir)
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("detection not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestDetect_WorkflowHintsAreDeterministic(t *testing.T) {
	t.Parallel()

	// Several version keys in one workflow exercise the map-backed collector;
	// repeated runs must emit the detections in the same order.
	dir := writeFiles(t, map[string]string{
		".github/workflows/ci.yml": `
name: ci
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/setup-node@v4
        with:
          node-version: "18.19.0"
      - uses: actions/setup-go@v5
        with:
          go-version: "1.22.0"
      - uses: actions/setup-python@v5
        with:
          python-version: "3.12.1"
      - uses: ruby/setup-ruby@v1
        with:
          ruby-version: "3.3.0"
`,
	})

	detector := NewDetector()
	first, err := detector.Detect(dir)
	if err != nil {
		t.Fatalf("first detect: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := detector.Detect(dir)
		if err != nil {
			t.Fatalf("detect %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("detection order varies across runs:\nfirst: %+v\nagain: %+v",
				first.Detections, again.Detections)
		}
	}
}

func TestDetect_EmptyDirectory(t *testing.T) {
	t.Parallel()

	profile, err := NewDetector().Detect(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !profile.Empty() {
		t.Errorf("expected empty profile, got %+v", profile)
	}
}

func TestDetect_MissingRoot(t *testing.T) {
	t.Parallel()

	if _, err := NewDetector().Detect("/nonexistent/project"); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDetect_VersionFileBeatsManifest(t *testing.T) {
	t.Parallel()

	// .nvmrc (version file) outranks the package.json engines range.
	dir := writeFiles(t, map[string]string{
		"package.json": `{"engines": {"node": ">=18"}}`,
		".nvmrc":       "v20.11.1\n",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := profile.Languages["node"]; got != "20.11.1" {
		t.Errorf("expected node 20.11.1 from .nvmrc, got %q", got)
	}
}

func TestDetect_EqualRankConflictIsAmbiguous(t *testing.T) {
	t.Parallel()

	// .python-version and .tool-versions are both version files; a
	// disagreement between them cannot be resolved silently.
	dir := writeFiles(t, map[string]string{
		".python-version": "3.11.0\n",
		".tool-versions":  "python 3.12.1\n",
	})

	_, err := NewDetector().Detect(dir)
	if err == nil {
		t.Fatal("expected ambiguity error")
	}
	if !errors.Is(err, ErrDetectionAmbiguous) {
		t.Fatalf("expected ErrDetectionAmbiguous, got %v", err)
	}
	var ambErr *AmbiguousDetectionError
	if !errors.As(err, &ambErr) {
		t.Fatalf("expected *AmbiguousDetectionError, got %T", err)
	}
	if ambErr.Language != "python" {
		t.Errorf("expected python conflict, got %s", ambErr.Language)
	}
	if len(ambErr.Conflicts) != 2 {
		t.Errorf("expected 2 conflicting detections, got %d", len(ambErr.Conflicts))
	}
}

func TestDetect_AgreeingSourcesAreNotAmbiguous(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		".python-version": "3.11.0\n",
		".tool-versions":  "python 3.11.0\n",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := profile.Languages["python"]; got != "3.11.0" {
		t.Errorf("expected python 3.11.0, got %q", got)
	}
}

func TestDetect_FrameworkImpliesLanguage(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"next.config.js": "module.exports = {}\n",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := profile.Frameworks["nextjs"]; !ok {
		t.Error("expected nextjs framework")
	}
	if _, ok := profile.Languages["node"]; !ok {
		t.Error("expected implied node language")
	}
}

func TestDetect_GoDirective(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"go.mod": "module example.com/app\n\ngo 1.23.4\n\nrequire gopkg.in/yaml.v3 v3.0.1\n",
		"go.sum": "",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := profile.Languages["golang"]; got != "1.23.4" {
		t.Errorf("expected golang 1.23.4, got %q", got)
	}
}

func TestDetect_WorkflowHintLosesToVersionFile(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		".nvmrc": "20.0.0\n",
		".github/workflows/ci.yml": `
name: ci
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/setup-node@v4
        with:
          node-version: "18.19.0"
      - uses: actions/setup-go@v5
        with:
          go-version: "1.22.0"
`,
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := profile.Languages["node"]; got != "20.0.0" {
		t.Errorf("expected node 20.0.0 from .nvmrc, got %q", got)
	}
	// Go appears only in CI, so the hint stands alone.
	if got := profile.Languages["golang"]; got != "1.22.0" {
		t.Errorf("expected golang 1.22.0 from workflow, got %q", got)
	}
}

func TestDetect_ToolVersionsMultipleEntries(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		".tool-versions": "# pinned runtimes\nnodejs 20.10.0\ngolang 1.22.1\nterraform 1.7.0\n",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := profile.Languages["node"]; got != "20.10.0" {
		t.Errorf("expected node 20.10.0, got %q", got)
	}
	if got := profile.Languages["golang"]; got != "1.22.1" {
		t.Errorf("expected golang 1.22.1, got %q", got)
	}
	// Unknown tools are ignored rather than guessed at.
	if _, ok := profile.Languages["terraform"]; ok {
		t.Error("terraform should not be detected as a language")
	}
}

func TestDetect_LockfilesDetectTools(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"package.json": `{"name": "app"}`,
		"yarn.lock":    "",
	})

	profile, err := NewDetector().Detect(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := profile.Tools["yarn"]; !ok {
		t.Error("expected yarn tool detection")
	}
	if _, ok := profile.Languages["node"]; !ok {
		t.Error("expected node language from package.json")
	}
	// No engines declared, so no version.
	if got := profile.Languages["node"]; got != "" {
		t.Errorf("expected empty node version, got %q", got)
	}
}
