// SPDX-License-Identifier: MPL-2.0

// Package detect scans a project directory for language, framework, and
// tooling signatures and resolves them into a reproducible Profile. Matches
// come from a fixed signature table (manifests, lockfiles, version files)
// plus asdf .tool-versions entries and GitHub Actions workflow hints.
package detect

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Detector scans project directories against the built-in signature table.
// The zero value is not usable; construct with NewDetector.
type Detector struct {
	signatures []signature
}

// NewDetector returns a detector backed by the built-in signature table.
func NewDetector() *Detector {
	return &Detector{signatures: signatures}
}

// Detect scans rootPath and resolves all signature matches into a Profile.
// Detection is read-only and deterministic: scanning an unchanged directory
// twice yields identical profiles. A directory with no recognizable
// signatures yields an empty profile, not an error. An error is returned
// only when the root cannot be read or when equally specific signatures
// declare conflicting versions for the same language.
func (d *Detector) Detect(rootPath string) (*Profile, error) {
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to scan project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root is not a directory: %s", rootPath)
	}

	var matches []Detection

	for _, sig := range d.signatures {
		path := filepath.Join(rootPath, filepath.FromSlash(sig.file))
		if !fileExists(path) {
			continue
		}
		det := Detection{
			Name:       sig.name,
			Kind:       sig.kind,
			Confidence: sig.confidence,
			Rank:       sig.rank,
			Source:     sig.file,
		}
		if sig.extract != nil {
			det.Version = sig.extract(path)
		}
		matches = append(matches, det)

		if sig.implies != "" {
			matches = append(matches, Detection{
				Name:       sig.implies,
				Kind:       KindLanguage,
				Confidence: sig.confidence,
				Rank:       RankLockfile,
				Source:     sig.file,
			})
		}
	}

	matches = append(matches, parseToolVersions(filepath.Join(rootPath, ".tool-versions"))...)
	matches = append(matches, scanWorkflows(rootPath)...)

	return resolve(rootPath, matches)
}

// scanWorkflows collects CI version hints from .github/workflows.
func scanWorkflows(rootPath string) []Detection {
	dir := filepath.Join(rootPath, ".github", "workflows")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	// Sort for deterministic detection order across runs.
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".yml" && ext != ".yaml" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var detections []Detection
	for _, name := range names {
		rel := filepath.ToSlash(filepath.Join(".github", "workflows", name))
		detections = append(detections, parseWorkflowVersions(filepath.Join(dir, name), rel)...)
	}
	return detections
}

// resolve merges raw matches into a Profile, applying the confidence
// threshold and the rank-based conflict rules.
func resolve(rootPath string, matches []Detection) (*Profile, error) {
	profile := &Profile{
		Root:       rootPath,
		Languages:  make(map[string]string),
		Frameworks: make(map[string]string),
		Tools:      make(map[string]string),
	}

	// byName groups matches per detected name so version conflicts can be
	// judged across all of a name's evidence at once.
	byName := make(map[string][]Detection)
	var order []string
	for _, m := range matches {
		if m.Confidence < MinConfidence {
			continue
		}
		key := string(m.Kind) + "/" + m.Name
		if _, seen := byName[key]; !seen {
			order = append(order, key)
		}
		byName[key] = append(byName[key], m)
		profile.Detections = append(profile.Detections, m)
	}

	for _, key := range order {
		group := byName[key]
		winner, err := pickVersion(group)
		if err != nil {
			return nil, err
		}
		switch group[0].Kind {
		case KindLanguage:
			profile.Languages[group[0].Name] = winner
		case KindFramework:
			profile.Frameworks[group[0].Name] = winner
		case KindTool:
			profile.Tools[group[0].Name] = winner
		}
	}

	return profile, nil
}

// pickVersion chooses the version for a group of matches sharing a name.
// The highest-rank detection that carries a version wins; detections of
// equal rank declaring different versions are a hard conflict.
func pickVersion(group []Detection) (string, error) {
	var (
		best     Detection
		haveBest bool
	)
	var conflicts []Detection

	for _, m := range group {
		if m.Version == "" {
			continue
		}
		switch {
		case !haveBest || m.Rank > best.Rank:
			best = m
			haveBest = true
			conflicts = conflicts[:0]
		case m.Rank == best.Rank && m.Version != best.Version:
			conflicts = append(conflicts, m)
		}
	}

	if len(conflicts) > 0 {
		all := append([]Detection{best}, conflicts...)
		return "", &AmbiguousDetectionError{Language: best.Name, Conflicts: all}
	}
	if !haveBest {
		return "", nil
	}
	return best.Version, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
