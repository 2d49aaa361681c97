package facts

import (
	"fmt"
	"testing"

	"github.com/mattthias/cfacter/pkg/value"
)

// arrayChunk yields a fixed single-element array.
func arrayChunk(elem string) ChunkProducer {
	return func(*Collection, map[string]value.Value) (value.Value, error) {
		return value.NewArray(value.String(elem)), nil
	}
}

// mapChunk yields a fixed single-key map.
func mapChunk(key string, v value.Value) ChunkProducer {
	return func(*Collection, map[string]value.Value) (value.Value, error) {
		return value.NewMap().Put(key, v), nil
	}
}

func resolveAggregate(t *testing.T, spec AggregateSpec) (value.Value, bool) {
	t.Helper()
	spec.Fact = "agg"
	r := mustResolver(t, "agg", []string{"agg"})
	if err := r.AddAggregate(spec); err != nil {
		t.Fatalf("AddAggregate failed: %v", err)
	}
	c := newTestCollection()
	c.AddResolver(r)
	return c.Get("agg")
}

func TestAggregate_DependencyOrderedArrayConcat(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			// Declared b-first: the requires edge must still order a first.
			{Name: "b", Requires: []string{"a"}, Produce: arrayChunk("y")},
			{Name: "a", Produce: arrayChunk("x")},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	want := value.NewArray(value.String("x"), value.String("y"))
	if !v.Equal(want) {
		t.Errorf("Expected %s, got %s", want, v)
	}
}

func TestAggregate_ChunkReceivesRequiredOutputs(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "base", Produce: func(*Collection, map[string]value.Value) (value.Value, error) {
				return value.NewMap().Put("total", value.Integer(8)), nil
			}},
			{Name: "derived", Requires: []string{"base"}, Produce: func(_ *Collection, deps map[string]value.Value) (value.Value, error) {
				base, ok := deps["base"].(*value.Map)
				if !ok {
					return nil, fmt.Errorf("missing base output")
				}
				total, _ := base.Get("total")
				return value.NewMap().Put("double", value.Integer(2*int64(total.(value.Integer)))), nil
			}},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	m := v.(*value.Map)
	d, _ := m.Get("double")
	if !d.Equal(value.Integer(16)) {
		t.Errorf("Expected derived chunk to see base output, got %s", v)
	}
}

func TestAggregate_CycleLeavesFactAbsent(t *testing.T) {
	if _, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "a", Requires: []string{"b"}, Produce: arrayChunk("x")},
			{Name: "b", Requires: []string{"a"}, Produce: arrayChunk("y")},
		},
	}); ok {
		t.Error("Expected chunk cycle to leave the fact absent")
	}
}

func TestAggregate_UnknownRequirementRejectedAtRegistration(t *testing.T) {
	r := mustResolver(t, "agg", []string{"agg"})
	err := r.AddAggregate(AggregateSpec{
		Fact: "agg",
		Chunks: []ChunkSpec{
			{Name: "a", Requires: []string{"ghost"}, Produce: arrayChunk("x")},
		},
	})
	if err == nil {
		t.Fatal("Expected error for unknown chunk requirement")
	}
	if !IsConfig(err) {
		t.Errorf("Expected invalid-configuration error, got: %v", err)
	}
}

func TestAggregate_MapMergeLaterWins(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "first", Produce: mapChunk("k", value.String("a"))},
			{Name: "second", Requires: []string{"first"}, Produce: mapChunk("k", value.String("b"))},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	got, _ := v.(*value.Map).Get("k")
	if !got.Equal(value.String("b")) {
		t.Errorf("Expected later value to win, got %s", got)
	}
}

func TestAggregate_MapMergeRecursive(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "first", Produce: mapChunk("nested", value.NewMap().Put("a", value.Integer(1)))},
			{Name: "second", Requires: []string{"first"}, Produce: mapChunk("nested", value.NewMap().Put("b", value.Integer(2)))},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	nested, _ := v.(*value.Map).Get("nested")
	want := value.NewMap().Put("a", value.Integer(1)).Put("b", value.Integer(2))
	if !nested.Equal(want) {
		t.Errorf("Expected recursive merge %s, got %s", want, nested)
	}
}

func TestAggregate_MergeConflictLeavesFactAbsent(t *testing.T) {
	if _, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "first", Produce: mapChunk("k", value.String("a"))},
			{Name: "second", Requires: []string{"first"}, Produce: mapChunk("k", value.Integer(1))},
		},
	}); ok {
		t.Error("Expected string/integer overlap to be a merge conflict")
	}
}

func TestAggregate_TopLevelKindMismatchIsConflict(t *testing.T) {
	if _, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "arr", Produce: arrayChunk("x")},
			{Name: "map", Requires: []string{"arr"}, Produce: mapChunk("k", value.Integer(1))},
		},
	}); ok {
		t.Error("Expected array/map pairing to be a merge conflict")
	}
}

func TestAggregate_CustomCombiner(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "a", Produce: arrayChunk("x")},
			{Name: "b", Requires: []string{"a"}, Produce: arrayChunk("y")},
		},
		Combine: func(ordered []value.Value) (value.Value, error) {
			return value.Integer(int64(len(ordered))), nil
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	if !v.Equal(value.Integer(2)) {
		t.Errorf("Expected combiner output 2, got %s", v)
	}
}

func TestAggregate_CustomScalarMerge(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "first", Produce: mapChunk("n", value.Integer(2))},
			{Name: "second", Requires: []string{"first"}, Produce: mapChunk("n", value.Integer(3))},
		},
		MergeScalars: func(old, cur value.Value) (value.Value, error) {
			return value.Integer(int64(old.(value.Integer)) + int64(cur.(value.Integer))), nil
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	got, _ := v.(*value.Map).Get("n")
	if !got.Equal(value.Integer(5)) {
		t.Errorf("Expected summed scalar 5, got %s", got)
	}
}

func TestAggregate_StableOrderAmongIndependentChunks(t *testing.T) {
	// Independent chunks keep declaration order in the merge.
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "one", Produce: arrayChunk("1")},
			{Name: "two", Produce: arrayChunk("2")},
			{Name: "three", Produce: arrayChunk("3")},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	want := value.NewArray(value.String("1"), value.String("2"), value.String("3"))
	if !v.Equal(want) {
		t.Errorf("Expected %s, got %s", want, v)
	}
}

func TestAggregate_ChunkProducerMayQueryCollection(t *testing.T) {
	kernel := mustResolver(t, "kernel", []string{"kernel"})
	mustAdd(t, kernel, ResolutionSpec{Fact: "kernel", Produce: constProducer(value.String("Linux"))})

	r := mustResolver(t, "agg", []string{"agg"})
	if err := r.AddAggregate(AggregateSpec{
		Fact: "agg",
		Chunks: []ChunkSpec{
			{Name: "k", Produce: func(c *Collection, _ map[string]value.Value) (value.Value, error) {
				v, _ := c.Get("kernel")
				return value.NewMap().Put("kernel", v), nil
			}},
		},
	}); err != nil {
		t.Fatalf("AddAggregate failed: %v", err)
	}

	c := newTestCollection()
	c.AddResolver(kernel)
	c.AddResolver(r)

	v, ok := c.Get("agg")
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	got, _ := v.(*value.Map).Get("kernel")
	if !got.Equal(value.String("Linux")) {
		t.Errorf("Expected nested lookup to succeed, got %s", v)
	}
}

func TestAggregate_NilChunkOutputSkippedInMerge(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "present", Produce: mapChunk("k", value.String("a"))},
			{Name: "empty", Produce: func(*Collection, map[string]value.Value) (value.Value, error) {
				return nil, nil
			}},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve despite an empty chunk")
	}
	got, _ := v.(*value.Map).Get("k")
	if !got.Equal(value.String("a")) {
		t.Errorf("Expected surviving chunk value, got %s", v)
	}
}

func TestAggregate_AllChunksEmptyLeavesFactAbsent(t *testing.T) {
	nothing := func(*Collection, map[string]value.Value) (value.Value, error) {
		return nil, nil
	}
	if _, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "a", Produce: nothing},
			{Name: "b", Produce: nothing},
		},
	}); ok {
		t.Error("Expected aggregate with no chunk values to leave the fact absent")
	}
}

func TestAggregate_EmptyRequirementOmittedFromDeps(t *testing.T) {
	v, ok := resolveAggregate(t, AggregateSpec{
		Chunks: []ChunkSpec{
			{Name: "empty", Produce: func(*Collection, map[string]value.Value) (value.Value, error) {
				return nil, nil
			}},
			{Name: "derived", Requires: []string{"empty"}, Produce: func(_ *Collection, deps map[string]value.Value) (value.Value, error) {
				if _, present := deps["empty"]; present {
					return value.NewMap().Put("saw_empty", value.Boolean(true)), nil
				}
				return value.NewMap().Put("saw_empty", value.Boolean(false)), nil
			}},
		},
	})
	if !ok {
		t.Fatal("Expected aggregate to resolve")
	}
	got, _ := v.(*value.Map).Get("saw_empty")
	if !got.Equal(value.Boolean(false)) {
		t.Error("Expected empty requirement to be omitted from the deps map")
	}
}

func TestAggregate_EmptyChunkSetRejected(t *testing.T) {
	r := mustResolver(t, "agg", []string{"agg"})
	if err := r.AddAggregate(AggregateSpec{Fact: "agg"}); err == nil {
		t.Fatal("Expected error for aggregate without chunks")
	}
}
