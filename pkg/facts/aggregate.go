package facts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattthias/cfacter/pkg/value"
)

// ChunkProducer yields one chunk of an aggregate value, or nil for "no
// value". It receives the collection and the outputs of the chunks this
// chunk requires, keyed by chunk name; requirements that yielded no value
// are omitted from the map.
type ChunkProducer func(coll *Collection, deps map[string]value.Value) (value.Value, error)

// ChunkSpec declares a named, dependency-aware sub-producer inside an
// aggregate resolution.
type ChunkSpec struct {
	// Name identifies the chunk within the aggregate.
	Name string

	// Requires names the chunks whose outputs this chunk depends on. Every
	// entry must name a chunk of the same aggregate.
	Requires []string

	// Produce yields the chunk's value.
	Produce ChunkProducer
}

// AggregateSpec declares a resolution whose value is assembled from
// dependency-ordered chunks merged together.
type AggregateSpec struct {
	// Fact is the fact name this aggregate claims.
	Fact string

	// Name optionally identifies the resolution; same replacement semantics
	// as ResolutionSpec.Name.
	Name string

	// Weight ranks the aggregate against competing resolutions.
	Weight int

	// Confines must all be met for the aggregate to be eligible.
	Confines []Confine

	// Chunks are the sub-producers, in declaration order. Ties among
	// independent chunks in the topological order preserve this order.
	Chunks []ChunkSpec

	// Combine, if set, fully overrides the default merge and receives the
	// chunk outputs in topological order.
	Combine func(ordered []value.Value) (value.Value, error)

	// MergeScalars, if set, governs overlapping same-kind scalar values
	// during the default merge instead of "later wins".
	MergeScalars func(old, cur value.Value) (value.Value, error)
}

// chunk is a registered aggregate chunk.
type chunk struct {
	name     string
	requires []string
	produce  ChunkProducer
}

// aggregate is the runtime form of an AggregateSpec.
type aggregate struct {
	fact         string
	chunks       []*chunk
	byName       map[string]*chunk
	combine      func([]value.Value) (value.Value, error)
	mergeScalars func(old, cur value.Value) (value.Value, error)
}

// newAggregate validates the chunk set and its requirement references.
// Unknown requirements and duplicate chunk names are configuration errors
// caught here, at registration time.
func newAggregate(spec AggregateSpec) (*aggregate, error) {
	if len(spec.Chunks) == 0 {
		return nil, NewConfigError(
			fmt.Sprintf("aggregate resolution for fact %q has no chunks", spec.Fact), nil).
			WithFact(spec.Fact)
	}

	a := &aggregate{
		fact:         spec.Fact,
		byName:       make(map[string]*chunk, len(spec.Chunks)),
		combine:      spec.Combine,
		mergeScalars: spec.MergeScalars,
	}

	for _, cs := range spec.Chunks {
		if cs.Name == "" {
			return nil, NewConfigError("aggregate chunk has empty name", nil).
				WithFact(spec.Fact)
		}
		if _, exists := a.byName[cs.Name]; exists {
			return nil, NewConfigError(
				fmt.Sprintf("duplicate aggregate chunk name %q", cs.Name), nil).
				WithFact(spec.Fact).WithChunk(cs.Name)
		}
		if cs.Produce == nil {
			return nil, NewConfigError(
				fmt.Sprintf("aggregate chunk %q has no producer", cs.Name), nil).
				WithFact(spec.Fact).WithChunk(cs.Name)
		}
		ch := &chunk{
			name:     cs.Name,
			requires: append([]string(nil), cs.Requires...),
			produce:  cs.Produce,
		}
		a.chunks = append(a.chunks, ch)
		a.byName[cs.Name] = ch
	}

	for _, ch := range a.chunks {
		for _, req := range ch.requires {
			if _, exists := a.byName[req]; !exists {
				return nil, NewConfigError(
					fmt.Sprintf("chunk %q requires unknown chunk %q", ch.name, req), nil).
					WithFact(spec.Fact).WithChunk(ch.name)
			}
		}
	}

	return a, nil
}

// run produces the aggregate value: order the chunks, invoke each producer
// with the outputs of its requirements, and merge the results in
// topological order.
func (a *aggregate) run(coll *Collection) (value.Value, error) {
	order, err := a.topoOrder()
	if err != nil {
		return nil, err
	}

	outputs := make(map[string]value.Value, len(order))
	ordered := make([]value.Value, 0, len(order))

	for _, ch := range order {
		deps := make(map[string]value.Value, len(ch.requires))
		for _, req := range ch.requires {
			if v := outputs[req]; v != nil {
				deps[req] = v
			}
		}

		out, err := ch.produce(coll, deps)
		if err != nil {
			return nil, NewProducerError(a.fact, err).WithChunk(ch.name)
		}
		// A nil output means the chunk has no value. It is skipped during
		// the merge rather than coerced to None, so an empty chunk never
		// conflicts with a sibling's composite value.
		outputs[ch.name] = out
		if out != nil {
			ordered = append(ordered, out)
		}
	}

	if a.combine != nil {
		v, err := a.combine(ordered)
		if err != nil {
			return nil, NewProducerError(a.fact, err)
		}
		return v, nil
	}

	if len(ordered) == 0 {
		// Every chunk declined; the fact is absent.
		return nil, nil
	}
	merged := ordered[0]
	for _, next := range ordered[1:] {
		merged, err = a.merge(merged, next)
		if err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// topoOrder computes a stable topological order over the chunks: DFS cycle
// detection first so the full cycle can be reported, then Kahn's algorithm
// with declaration order breaking ties among independent chunks.
func (a *aggregate) topoOrder() ([]*chunk, error) {
	if err := a.detectCycles(); err != nil {
		return nil, err
	}

	// dependents[x] lists chunks that require x; inDegree counts unmet
	// requirements per chunk.
	dependents := make(map[string][]string, len(a.chunks))
	inDegree := make(map[string]int, len(a.chunks))
	for _, ch := range a.chunks {
		inDegree[ch.name] = len(ch.requires)
		for _, req := range ch.requires {
			dependents[req] = append(dependents[req], ch.name)
		}
	}

	order := make([]*chunk, 0, len(a.chunks))
	ready := make([]*chunk, 0, len(a.chunks))
	for _, ch := range a.chunks {
		if inDegree[ch.name] == 0 {
			ready = append(ready, ch)
		}
	}

	for len(ready) > 0 {
		ch := ready[0]
		ready = ready[1:]
		order = append(order, ch)

		released := make(map[string]bool)
		for _, dep := range dependents[ch.name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				released[dep] = true
			}
		}
		// Append newly ready chunks in declaration order for stability.
		for _, candidate := range a.chunks {
			if released[candidate.name] {
				ready = append(ready, candidate)
			}
		}
	}

	// Unreachable if cycle detection worked.
	if len(order) != len(a.chunks) {
		return nil, NewChunkCycleError(a.fact, []string{"unprocessed chunks remain"})
	}
	return order, nil
}

// detectCycles uses depth-first search with an in-progress set to find a
// requirement cycle, reporting the full cycle path.
func (a *aggregate) detectCycles() error {
	visited := make(map[string]bool)
	inProgress := make(map[string]bool)

	var visit func(ch *chunk, path []string) error
	visit = func(ch *chunk, path []string) error {
		visited[ch.name] = true
		inProgress[ch.name] = true
		path = append(path, ch.name)

		for _, req := range ch.requires {
			next := a.byName[req]
			if inProgress[req] {
				// Found a cycle; trim the path to where it begins.
				start := 0
				for i, name := range path {
					if name == req {
						start = i
						break
					}
				}
				return NewChunkCycleError(a.fact, append(path[start:], req))
			}
			if !visited[req] {
				if err := visit(next, path); err != nil {
					return err
				}
			}
		}

		inProgress[ch.name] = false
		return nil
	}

	for _, ch := range a.chunks {
		if !visited[ch.name] {
			if err := visit(ch, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// merge combines two chunk outputs with the type-directed default rules:
// arrays concatenate, maps merge recursively key-wise, same-kind scalars
// prefer the later value (or the custom scalar merge), and any other
// pairing is a merge conflict.
func (a *aggregate) merge(old, cur value.Value) (value.Value, error) {
	switch o := old.(type) {
	case *value.Array:
		c, ok := cur.(*value.Array)
		if !ok {
			return nil, a.conflict(old, cur, "")
		}
		out := value.NewArray(o.Elements()...)
		for _, e := range c.Elements() {
			out.Append(e)
		}
		return out, nil

	case *value.Map:
		c, ok := cur.(*value.Map)
		if !ok {
			return nil, a.conflict(old, cur, "")
		}
		out := value.NewMap()
		for _, k := range o.Keys() {
			v, _ := o.Get(k)
			out.Put(k, v)
		}
		for _, k := range c.Keys() {
			cv, _ := c.Get(k)
			ov, exists := out.Get(k)
			if !exists {
				out.Put(k, cv)
				continue
			}
			mv, err := a.merge(ov, cv)
			if err != nil {
				var re *ResolutionError
				if errors.As(err, &re) && re.Class == ErrorClassMergeConflict {
					return nil, NewMergeConflictError(a.fact,
						fmt.Sprintf("key %q: %s", k, re.Message))
				}
				return nil, err
			}
			out.Put(k, mv)
		}
		return out, nil

	default:
		if old.Kind() != cur.Kind() {
			return nil, a.conflict(old, cur, "")
		}
		if a.mergeScalars != nil {
			v, err := a.mergeScalars(old, cur)
			if err != nil {
				return nil, NewMergeConflictError(a.fact, err.Error())
			}
			return v, nil
		}
		// Later value wins.
		return cur, nil
	}
}

// conflict builds a merge-conflict error naming the mismatched kinds.
func (a *aggregate) conflict(old, cur value.Value, context string) *ResolutionError {
	msg := fmt.Sprintf("cannot merge %s with %s", old.Kind(), cur.Kind())
	if context != "" {
		msg = strings.Join([]string{context, msg}, ": ")
	}
	return NewMergeConflictError(a.fact, msg)
}
