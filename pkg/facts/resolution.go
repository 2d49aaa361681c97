package facts

import "github.com/mattthias/cfacter/pkg/value"

// Producer yields a fact value, or nil for "no value". It receives the
// collection so it can query other facts, and the requested fact name so a
// single producer can serve dynamic (pattern-matched) facts. Producers must
// tolerate absent facts from the collection.
type Producer func(coll *Collection, name string) (value.Value, error)

// ResolutionSpec declares one candidate producer for a fact.
type ResolutionSpec struct {
	// Fact is the fact name this resolution claims. Leave empty for a
	// dynamic resolution, which claims any requested name matching the
	// owning resolver's patterns.
	Fact string

	// Name optionally identifies the resolution. Registering a second
	// resolution with the same fact and name replaces the first in place
	// instead of adding a competing candidate.
	Name string

	// Weight ranks this resolution against competitors for the same fact.
	// Higher wins; the default 0 is the built-in weight. Ties are broken by
	// registration order, first registered winning, so an external
	// resolution must exceed the built-in weight to override it.
	Weight int

	// Confines must all be met for the resolution to be eligible. A
	// resolution with no confines is always eligible.
	Confines []Confine

	// Produce yields the value. A nil value leaves the fact absent.
	Produce Producer
}

// resolution is a registered candidate, either simple or aggregate. The
// closed simple/aggregate distinction is a tag (agg == nil means simple)
// dispatched by the selection algorithm.
type resolution struct {
	fact     string
	name     string
	weight   int
	confines []Confine
	produce  Producer
	agg      *aggregate
	seq      int
}

// dynamic reports whether this resolution claims pattern-matched names.
func (r *resolution) dynamic() bool {
	return r.fact == ""
}

// claims reports whether this resolution is a candidate for the requested
// name, given the owning resolver's pattern match result.
func (r *resolution) claims(name string, patternMatched bool) bool {
	if r.dynamic() {
		return patternMatched
	}
	return r.fact == name
}

// eligible reports whether all confines are met.
func (r *resolution) eligible(coll *Collection) bool {
	for _, c := range r.confines {
		if !c.Met(coll) {
			return false
		}
	}
	return true
}

// run invokes the winning resolution's producer.
func (r *resolution) run(coll *Collection, name string) (value.Value, error) {
	if r.agg != nil {
		return r.agg.run(coll)
	}
	if r.produce == nil {
		return nil, nil
	}
	return r.produce(coll, name)
}
