package facts

import (
	"testing"

	"github.com/mattthias/cfacter/pkg/value"
)

// newTestCollection builds a collection isolated from the real process
// environment so override tests control their own variables.
func newTestCollection(opts ...Option) *Collection {
	return NewCollection(append([]Option{WithEnvironment(nil)}, opts...)...)
}

// constProducer yields a fixed value.
func constProducer(v value.Value) Producer {
	return func(*Collection, string) (value.Value, error) { return v, nil }
}

// mustResolver fails the test on construction errors.
func mustResolver(t *testing.T, name string, names []string, patterns ...string) *Resolver {
	t.Helper()
	r, err := NewResolver(name, names, patterns...)
	if err != nil {
		t.Fatalf("NewResolver(%s) failed: %v", name, err)
	}
	return r
}

// mustAdd fails the test on registration errors.
func mustAdd(t *testing.T, r *Resolver, spec ResolutionSpec) {
	t.Helper()
	if err := r.Add(spec); err != nil {
		t.Fatalf("Add(%s) failed: %v", spec.Fact, err)
	}
}
