package facts

import "github.com/mattthias/cfacter/pkg/value"

// Status tracks a fact through its resolution lifecycle. Once a fact is
// resolved or absent the status is terminal for the remainder of the run.
type Status string

const (
	// StatusUnresolved means no resolution has been attempted yet.
	StatusUnresolved Status = "unresolved"

	// StatusResolving means resolution is in progress on the current
	// depth-first traversal.
	StatusResolving Status = "resolving"

	// StatusResolved means resolution produced a value.
	StatusResolved Status = "resolved"

	// StatusAbsent means resolution ran and yielded no value, or failed.
	// Distinct from unresolved: absent facts are never retried in a run.
	StatusAbsent Status = "absent"
)

// Fact is a named piece of host information together with its resolution
// state. Facts are created on first request or when seeded directly.
type Fact struct {
	// Name is the fact name.
	Name string

	// Value holds the resolved value; nil unless Status is StatusResolved.
	Value value.Value

	// Status is the resolution state.
	Status Status
}

// Resolved reports whether the fact holds a value.
func (f *Fact) Resolved() bool {
	return f.Status == StatusResolved
}
