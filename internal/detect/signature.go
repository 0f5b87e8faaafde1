// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Specificity ranks, highest first. When multiple signatures match the same
// language, the highest rank decides; equal ranks with conflicting versions
// surface as AmbiguousDetectionError rather than being resolved by scan order.
const (
	RankFramework   Rank = 40
	RankVersionFile Rank = 30
	RankManifest    Rank = 20
	RankLockfile    Rank = 15
	RankCIHint      Rank = 10
)

// Rank orders signature specificity.
type Rank int

// MinConfidence is the threshold below which a match is discarded. A
// directory where nothing clears it yields an empty profile, not an error.
const MinConfidence = 0.5

type (
	// signature maps a file pattern to a detection. extract may be nil for
	// signatures that carry no version information.
	signature struct {
		// file is the filename (or glob under root) that triggers the match.
		file string
		// name is the detected language, framework, or tool.
		name string
		// kind classifies the detection.
		kind Kind
		// rank is the specificity rank.
		rank Rank
		// confidence in [0, 1].
		confidence float64
		// implies names a language this detection implies (frameworks imply
		// their host language).
		implies string
		// extract pulls a declared version out of the matched file.
		extract func(path string) string
	}
)

// signatures is the built-in signature table. Order only affects the order
// of Profile.Detections, never conflict resolution.
var signatures = []signature{
	// Node.js
	{file: "package.json", name: "node", kind: KindLanguage, rank: RankManifest, confidence: 0.9, extract: extractNodeEngine},
	{file: ".nvmrc", name: "node", kind: KindLanguage, rank: RankVersionFile, confidence: 0.95, extract: extractTrimmedFile},
	{file: "package-lock.json", name: "npm", kind: KindTool, rank: RankLockfile, confidence: 0.8},
	{file: "yarn.lock", name: "yarn", kind: KindTool, rank: RankLockfile, confidence: 0.8},
	{file: "pnpm-lock.yaml", name: "pnpm", kind: KindTool, rank: RankLockfile, confidence: 0.8},
	{file: "next.config.js", name: "nextjs", kind: KindFramework, rank: RankFramework, confidence: 0.9, implies: "node"},
	{file: "next.config.mjs", name: "nextjs", kind: KindFramework, rank: RankFramework, confidence: 0.9, implies: "node"},
	{file: "next.config.ts", name: "nextjs", kind: KindFramework, rank: RankFramework, confidence: 0.9, implies: "node"},

	// Go
	{file: "go.mod", name: "golang", kind: KindLanguage, rank: RankVersionFile, confidence: 0.95, extract: extractGoDirective},
	{file: "go.sum", name: "golang", kind: KindLanguage, rank: RankLockfile, confidence: 0.7},

	// Python
	{file: ".python-version", name: "python", kind: KindLanguage, rank: RankVersionFile, confidence: 0.95, extract: extractTrimmedFile},
	{file: "pyproject.toml", name: "python", kind: KindLanguage, rank: RankManifest, confidence: 0.85},
	{file: "requirements.txt", name: "python", kind: KindLanguage, rank: RankManifest, confidence: 0.7},
	{file: "Pipfile", name: "python", kind: KindLanguage, rank: RankManifest, confidence: 0.8},
	{file: "manage.py", name: "django", kind: KindFramework, rank: RankFramework, confidence: 0.85, implies: "python"},

	// Rust
	{file: "Cargo.toml", name: "rust", kind: KindLanguage, rank: RankManifest, confidence: 0.9},
	{file: "Cargo.lock", name: "rust", kind: KindLanguage, rank: RankLockfile, confidence: 0.7},

	// Ruby
	{file: ".ruby-version", name: "ruby", kind: KindLanguage, rank: RankVersionFile, confidence: 0.95, extract: extractTrimmedFile},
	{file: "Gemfile", name: "ruby", kind: KindLanguage, rank: RankManifest, confidence: 0.85},
	{file: "config/application.rb", name: "rails", kind: KindFramework, rank: RankFramework, confidence: 0.85, implies: "ruby"},

	// JVM
	{file: "pom.xml", name: "java", kind: KindLanguage, rank: RankManifest, confidence: 0.85},
	{file: "build.gradle", name: "java", kind: KindLanguage, rank: RankManifest, confidence: 0.8},
	{file: "build.gradle.kts", name: "java", kind: KindLanguage, rank: RankManifest, confidence: 0.8},

	// PHP
	{file: "composer.json", name: "php", kind: KindLanguage, rank: RankManifest, confidence: 0.85},
}

// extractTrimmedFile reads a single-value version file (.nvmrc, .python-version).
func extractTrimmedFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	version := strings.TrimSpace(string(data))
	// Some version files prefix with "v" or carry a single comment line.
	if idx := strings.IndexByte(version, '\n'); idx >= 0 {
		version = strings.TrimSpace(version[:idx])
	}
	return strings.TrimPrefix(version, "v")
}

// extractNodeEngine pulls engines.node out of package.json.
func extractNodeEngine(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var manifest struct {
		Engines struct {
			Node string `json:"node"`
		} `json:"engines"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ""
	}
	return strings.TrimSpace(manifest.Engines.Node)
}

// extractGoDirective pulls the go directive out of go.mod.
func extractGoDirective(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if after, ok := strings.CutPrefix(line, "go "); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

// toolVersionsLanguages maps .tool-versions entries to plugin language names.
var toolVersionsLanguages = map[string]string{
	"nodejs": "node",
	"node":   "node",
	"python": "python",
	"golang": "golang",
	"go":     "golang",
	"ruby":   "ruby",
	"rust":   "rust",
}

// parseToolVersions reads asdf-style .tool-versions entries ("name version").
func parseToolVersions(path string) []Detection {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var detections []Detection
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		lang, ok := toolVersionsLanguages[fields[0]]
		if !ok {
			continue
		}
		detections = append(detections, Detection{
			Name:       lang,
			Kind:       KindLanguage,
			Version:    fields[1],
			Confidence: 0.95,
			Rank:       RankVersionFile,
			Source:     filepath.Base(path),
		})
	}
	return detections
}

// workflowVersionKeys maps CI workflow setup-action inputs to languages.
var workflowVersionKeys = map[string]string{
	"go-version":     "golang",
	"node-version":   "node",
	"python-version": "python",
	"ruby-version":   "ruby",
}

// parseWorkflowVersions scans a GitHub Actions workflow for language version
// hints (e.g., "with: {go-version: ...}"). CI hints rank lowest; they confirm
// a language but lose to any project-local declaration.
func parseWorkflowVersions(path, relSource string) []Detection {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}

	found := make(map[string]string)
	collectWorkflowVersions(doc, found)

	// Map iteration order is random; emit in sorted order so repeated runs
	// over an unchanged tree produce identical profiles.
	langs := make([]string, 0, len(found))
	for lang := range found {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	var detections []Detection
	for _, lang := range langs {
		detections = append(detections, Detection{
			Name:       lang,
			Kind:       KindLanguage,
			Version:    found[lang],
			Confidence: 0.6,
			Rank:       RankCIHint,
			Source:     relSource,
		})
	}
	return detections
}

// collectWorkflowVersions walks the decoded YAML tree for known version keys.
func collectWorkflowVersions(node any, found map[string]string) {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			if lang, ok := workflowVersionKeys[key]; ok {
				if s, ok := val.(string); ok && s != "" {
					found[lang] = s
				}
				continue
			}
			collectWorkflowVersions(val, found)
		}
	case []any:
		for _, item := range v {
			collectWorkflowVersions(item, found)
		}
	}
}
