package facts

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass classifies a resolution failure. Every class is contained to
// the fact or resolver that caused it; nothing in this package aborts a
// collection run.
type ErrorClass string

const (
	// ErrorClassCircular indicates a fact transitively requested itself
	// during its own resolution.
	ErrorClassCircular ErrorClass = "circular_resolution"

	// ErrorClassConfig indicates a registration-time configuration error:
	// a malformed fact name pattern, a duplicate simple/aggregate resolution
	// name, or an invalid chunk requirement reference.
	ErrorClassConfig ErrorClass = "invalid_configuration"

	// ErrorClassChunkCycle indicates a dependency cycle among the chunks of
	// a single aggregate resolution.
	ErrorClassChunkCycle ErrorClass = "chunk_cycle"

	// ErrorClassMergeConflict indicates incompatible values merged inside an
	// aggregate resolution.
	ErrorClassMergeConflict ErrorClass = "merge_conflict"

	// ErrorClassProducer indicates a producer failed or panicked. The
	// failure is caught at the resolver boundary.
	ErrorClassProducer ErrorClass = "producer_failure"
)

// ResolutionError represents a classified resolution failure with context.
type ResolutionError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Fact is the fact name the failure is contained to, if applicable.
	Fact string `json:"fact,omitempty"`

	// Chunk is the aggregate chunk involved, if applicable.
	Chunk string `json:"chunk,omitempty"`

	// Resolver is the resolver involved, if applicable.
	Resolver string `json:"resolver,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Class, e.Message)
	if e.Fact != "" {
		fmt.Fprintf(&sb, " (fact=%s)", e.Fact)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %s", e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// WithFact adds fact context to an error.
func (e *ResolutionError) WithFact(name string) *ResolutionError {
	e.Fact = name
	return e
}

// WithChunk adds chunk context to an error.
func (e *ResolutionError) WithChunk(name string) *ResolutionError {
	e.Chunk = name
	return e
}

// WithResolver adds resolver context to an error.
func (e *ResolutionError) WithResolver(name string) *ResolutionError {
	e.Resolver = name
	return e
}

// NewCircularError creates a circular-resolution error reporting the full
// in-progress chain, not just the repeated fact.
func NewCircularError(fact string, chain []string) *ResolutionError {
	msg := fmt.Sprintf("circular resolution of fact %q", fact)
	if len(chain) > 0 {
		msg = fmt.Sprintf("%s: %s -> %s", msg, strings.Join(chain, " -> "), fact)
	}
	return &ResolutionError{
		Class:   ErrorClassCircular,
		Message: msg,
		Fact:    fact,
	}
}

// NewConfigError creates an invalid-configuration error.
func NewConfigError(message string, err error) *ResolutionError {
	return &ResolutionError{
		Class:   ErrorClassConfig,
		Message: message,
		Err:     err,
	}
}

// NewChunkCycleError creates a chunk-dependency-cycle error naming the cycle.
func NewChunkCycleError(fact string, cycle []string) *ResolutionError {
	return &ResolutionError{
		Class:   ErrorClassChunkCycle,
		Message: fmt.Sprintf("chunk dependency cycle: %s", strings.Join(cycle, " -> ")),
		Fact:    fact,
	}
}

// NewMergeConflictError creates a merge-conflict error.
func NewMergeConflictError(fact, message string) *ResolutionError {
	return &ResolutionError{
		Class:   ErrorClassMergeConflict,
		Message: message,
		Fact:    fact,
	}
}

// NewProducerError creates a producer-failure error.
func NewProducerError(fact string, err error) *ResolutionError {
	return &ResolutionError{
		Class:   ErrorClassProducer,
		Message: "producer failed",
		Fact:    fact,
		Err:     err,
	}
}

// classOf extracts the error class for metrics labeling.
func classOf(err error) ErrorClass {
	var e *ResolutionError
	if errors.As(err, &e) {
		return e.Class
	}
	return ErrorClassProducer
}

// IsCircular returns true if the error is a circular-resolution error.
func IsCircular(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e) && e.Class == ErrorClassCircular
}

// IsConfig returns true if the error is an invalid-configuration error.
func IsConfig(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e) && e.Class == ErrorClassConfig
}

// IsChunkCycle returns true if the error is a chunk-dependency-cycle error.
func IsChunkCycle(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e) && e.Class == ErrorClassChunkCycle
}

// IsMergeConflict returns true if the error is a merge-conflict error.
func IsMergeConflict(err error) bool {
	var e *ResolutionError
	return errors.As(err, &e) && e.Class == ErrorClassMergeConflict
}
