// SPDX-License-Identifier: MPL-2.0

package detect

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDetectionAmbiguous is the sentinel error wrapped by AmbiguousDetectionError.
var ErrDetectionAmbiguous = errors.New("ambiguous detection")

// Kind classifies what a signature detects.
const (
	KindLanguage  Kind = "language"
	KindFramework Kind = "framework"
	KindTool      Kind = "tool"
)

type (
	// Kind classifies a detection as a language, framework, or tool.
	Kind string

	// Detection is a single signature match: what was recognized, with what
	// confidence, and from which file.
	Detection struct {
		// Name is the detected language, framework, or tool.
		Name string
		// Kind classifies the detection.
		Kind Kind
		// Version is the declared version or range; empty when the signature
		// carries no version information.
		Version string
		// Confidence is the signature's confidence in [0, 1].
		Confidence float64
		// Rank is the signature's specificity rank; higher ranks override
		// lower ones for the same language.
		Rank Rank
		// Source is the file that matched, relative to the project root.
		Source string
	}

	// Profile is the detection result for a project directory. It is
	// produced once per Detect call and never mutated in place; rerunning
	// detection on an unchanged directory yields an identical profile.
	Profile struct {
		// Root is the scanned project directory.
		Root string
		// Languages maps language name to declared version or range
		// (empty string when no version was declared).
		Languages map[string]string
		// Frameworks maps framework name to declared version or range.
		Frameworks map[string]string
		// Tools maps tool name to declared version or range.
		Tools map[string]string
		// Detections preserves every signature match above the confidence
		// threshold, in deterministic order, for diagnostics.
		Detections []Detection
	}

	// AmbiguousDetectionError is returned when signatures of equal
	// specificity declare conflicting versions for the same language.
	// It wraps ErrDetectionAmbiguous for errors.Is() compatibility.
	AmbiguousDetectionError struct {
		Language  string
		Conflicts []Detection
	}
)

// Error implements the error interface.
func (e *AmbiguousDetectionError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, d := range e.Conflicts {
		parts[i] = fmt.Sprintf("%s (%s)", d.Version, d.Source)
	}
	return fmt.Sprintf("ambiguous detection for %s: conflicting versions %s", e.Language, strings.Join(parts, " vs "))
}

// Unwrap returns ErrDetectionAmbiguous for errors.Is() compatibility.
func (e *AmbiguousDetectionError) Unwrap() error { return ErrDetectionAmbiguous }

// Empty reports whether no language, framework, or tool cleared the
// confidence threshold.
func (p *Profile) Empty() bool {
	return len(p.Languages) == 0 && len(p.Frameworks) == 0 && len(p.Tools) == 0
}
