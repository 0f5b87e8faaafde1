// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"errors"
	"fmt"
)

// ErrTransient marks provider failures that are worth retrying (network
// hiccups, registry timeouts). Failures not marked transient are permanent:
// the installer stops retrying and tries the fallback provider instead.
var ErrTransient = errors.New("transient failure")

type transientError struct {
	err error
}

func (e *transientError) Error() string { return fmt.Sprintf("transient: %v", e.err) }

func (e *transientError) Unwrap() []error { return []error{e.err, ErrTransient} }

// MarkTransient wraps err so IsTransient reports true. A nil err returns nil.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err (or anything it wraps) is marked transient.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
