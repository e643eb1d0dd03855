package model

import (
	"strings"
)

// ValidationFailure records a problem that was tolerated during a run
type ValidationFailure struct {
	// Source names the thing that failed, e.g. a token description
	Source  string
	Message string
	Err     error
}

// Error implements the error interface
func (f *ValidationFailure) Error() string {
	if f.Err == nil {
		return f.Message
	}
	return f.Message + ": " + f.Err.Error()
}

// Unwrap returns the underlying cause
func (f *ValidationFailure) Unwrap() error {
	return f.Err
}

// String is the line logged for the failure
func (f *ValidationFailure) String() string {
	return f.Error()
}

// ValidationResult accumulates failures in the order they happened
type ValidationResult struct {
	failures []*ValidationFailure
}

// AddFailure records a failure
func (r *ValidationResult) AddFailure(f *ValidationFailure) {
	r.failures = append(r.failures, f)
}

// HasFailures returns true if anything was recorded
func (r *ValidationResult) HasFailures() bool {
	return len(r.failures) > 0
}

// Failures returns the recorded failures
func (r *ValidationResult) Failures() []*ValidationFailure {
	return append([]*ValidationFailure(nil), r.failures...)
}

// String lists the failures one per line
func (r *ValidationResult) String() string {
	if !r.HasFailures() {
		return "No issues found"
	}
	var sb strings.Builder
	sb.WriteString("Failures:\n")
	for _, f := range r.failures {
		sb.WriteString("  - ")
		sb.WriteString(f.Error())
		sb.WriteString("\n")
	}
	return sb.String()
}
