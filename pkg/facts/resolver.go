package facts

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/mattthias/cfacter/pkg/value"
)

// Resolver groups one or more named facts, and optionally regex name
// patterns for dynamic facts, under a single resolution unit. A resolver is
// registered once, lives for the run, and must keep a single stable
// identity: the resolving flag below is the reentrancy guard for the
// resolver's own facts, complementing the collection-wide cycle guard.
// Resolvers are used through the pointer returned by NewResolver and are
// never copied.
type Resolver struct {
	name     string
	names    []string
	nameSet  map[string]bool
	patterns []*regexp.Regexp

	resolutions []*resolution
	nextSeq     int

	resolving bool
}

// NewResolver constructs a resolver responsible for the given explicit fact
// names and, optionally, regex patterns for facts whose exact name is not
// known ahead of time. A malformed pattern is an invalid-configuration
// error and leaves the resolver unusable; the caller decides whether to
// skip registration or abort.
func NewResolver(name string, names []string, patterns ...string) (*Resolver, error) {
	r := &Resolver{
		name:    name,
		names:   append([]string(nil), names...),
		nameSet: make(map[string]bool, len(names)),
	}
	for _, n := range names {
		r.nameSet[n] = true
	}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, NewConfigError(
				fmt.Sprintf("invalid fact name pattern %q", p), err).WithResolver(name)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Name returns the resolver's name.
func (r *Resolver) Name() string { return r.name }

// Names returns the explicit fact names the resolver is responsible for.
func (r *Resolver) Names() []string { return r.names }

// HasPatterns reports whether the resolver declares dynamic fact patterns.
func (r *Resolver) HasPatterns() bool { return len(r.patterns) > 0 }

// IsMatch reports whether the resolver is responsible for the given fact
// name, by exact name or by pattern. Fact names are case-sensitive.
func (r *Resolver) IsMatch(name string) bool {
	if r.nameSet[name] {
		return true
	}
	return r.matchesPattern(name)
}

// matchesPattern reports whether name matches any declared pattern.
func (r *Resolver) matchesPattern(name string) bool {
	for _, re := range r.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Add registers a simple resolution. A non-empty spec.Name replaces an
// earlier resolution with the same fact and name in place. Registering a
// simple resolution for a fact already claimed by an aggregate is a
// configuration error.
func (r *Resolver) Add(spec ResolutionSpec) error {
	if err := r.checkSpec(spec.Fact, false); err != nil {
		return err
	}
	res := &resolution{
		fact:     spec.Fact,
		name:     spec.Name,
		weight:   spec.Weight,
		confines: append([]Confine(nil), spec.Confines...),
		produce:  spec.Produce,
	}
	r.register(res)
	return nil
}

// AddAggregate registers an aggregate resolution. The chunk set and its
// requirement references are validated here; registering an aggregate for a
// fact already claimed by a simple resolution is a configuration error.
func (r *Resolver) AddAggregate(spec AggregateSpec) error {
	if err := r.checkSpec(spec.Fact, true); err != nil {
		return err
	}
	agg, err := newAggregate(spec)
	if err != nil {
		return err
	}
	res := &resolution{
		fact:     spec.Fact,
		name:     spec.Name,
		weight:   spec.Weight,
		confines: append([]Confine(nil), spec.Confines...),
		agg:      agg,
	}
	r.register(res)
	return nil
}

// checkSpec rejects unclaimable facts and simple/aggregate collisions.
func (r *Resolver) checkSpec(fact string, aggregate bool) error {
	if fact == "" && !r.HasPatterns() {
		return NewConfigError(
			"dynamic resolution requires the resolver to declare patterns", nil).
			WithResolver(r.name)
	}
	if fact == "" && aggregate {
		return NewConfigError(
			"aggregate resolutions cannot be dynamic", nil).WithResolver(r.name)
	}
	for _, existing := range r.resolutions {
		if existing.fact != fact || fact == "" {
			continue
		}
		if (existing.agg != nil) != aggregate {
			return NewConfigError(
				fmt.Sprintf("fact %q already has a %s resolution; cannot also register a %s one",
					fact, kindName(existing.agg != nil), kindName(aggregate)), nil).
				WithFact(fact).WithResolver(r.name)
		}
	}
	return nil
}

// register appends the resolution, or replaces an identically named one in
// place, keeping its original registration slot for tie-breaking.
func (r *Resolver) register(res *resolution) {
	if res.name != "" {
		for i, existing := range r.resolutions {
			if existing.fact == res.fact && existing.name == res.name {
				res.seq = existing.seq
				r.resolutions[i] = res
				return
			}
		}
	}
	res.seq = r.nextSeq
	r.nextSeq++
	r.resolutions = append(r.resolutions, res)
}

// Resolve runs the weighted-selection protocol for the requested name and
// returns the winning resolution's value, or nil if the fact is absent. The
// resolving flag fails same-resolver reentrancy fast, even where a graph
// walk over fact names would not catch it, and is cleared on every exit
// path so the resolver can be consulted again for a different fact later in
// the run. Producer panics are caught here: a failing producer leaves its
// fact absent, never aborts the run.
func (r *Resolver) Resolve(coll *Collection, name string) (v value.Value, err error) {
	if r.resolving {
		return nil, NewCircularError(name, nil).WithResolver(r.name)
	}
	r.resolving = true
	defer func() {
		r.resolving = false
		if rec := recover(); rec != nil {
			v = nil
			err = NewProducerError(name, fmt.Errorf("producer panic: %v", rec)).
				WithResolver(r.name)
		}
	}()

	winner := r.selectResolution(coll, name)
	if winner == nil {
		return nil, nil
	}

	coll.recordResolutionExecuted(r.name)
	v, err = winner.run(coll, name)
	if err != nil {
		var re *ResolutionError
		if !errors.As(err, &re) {
			err = NewProducerError(name, err).WithResolver(r.name)
		}
		return nil, err
	}
	return v, nil
}

// selectResolution picks the winning resolution for the requested name:
// filter candidates by confines, take the highest weight, and break ties by
// registration order. Ties are reported through the diagnostics sink.
func (r *Resolver) selectResolution(coll *Collection, name string) *resolution {
	patternMatched := r.matchesPattern(name)

	var winner *resolution
	tied := false
	for _, res := range r.resolutions {
		if !res.claims(name, patternMatched) {
			continue
		}
		if !res.eligible(coll) {
			continue
		}
		switch {
		case winner == nil:
			winner = res
		case res.weight > winner.weight:
			winner = res
			tied = false
		case res.weight == winner.weight:
			// First registered wins; remember the tie for diagnostics.
			tied = true
		}
	}

	if tied && winner != nil {
		coll.reportTie(r.name, name, winner.weight)
	}
	return winner
}

// kindName names a resolution kind for configuration errors.
func kindName(aggregate bool) string {
	if aggregate {
		return "aggregate"
	}
	return "simple"
}
