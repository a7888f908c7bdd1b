// SPDX-License-Identifier: MIT

// Package pipeline holds the shared job error taxonomy and retry policy used
// by every processing stage.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing asset or source file. Terminal, never retried.
	ErrNotFound = errors.New("not found")

	// ErrLockHeld signals that another worker holds the per-asset lock.
	// Not a failure: the job short-circuits with a skipped result.
	ErrLockHeld = errors.New("processing lock held")
)

// ToolError wraps a failure of an external tool invocation (prober, encoder,
// OCR engine, classifier, speech model). Retried with bounded attempts.
type ToolError struct {
	Tool string // tool name, e.g. "ffprobe"
	Err  error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError wraps err as a retryable tool failure.
func NewToolError(tool string, err error) *ToolError {
	return &ToolError{Tool: tool, Err: err}
}

// IntegrityError marks generated output that failed completeness verification.
// The caller purges the output locally; for retry accounting it is treated
// like a tool failure.
type IntegrityError struct {
	Path   string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %s", e.Path, e.Reason)
}

// IsRetryable reports whether an error may be retried inside the job.
// NotFound and lock contention are never retried; everything else is
// considered transient up to the stage's retry budget.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrLockHeld) {
		return false
	}
	return true
}
