package facts

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mattthias/cfacter/pkg/telemetry"
	"github.com/mattthias/cfacter/pkg/value"
)

// EnvPrefix is the fixed prefix of environment variables that override fact
// resolution. The variable name is the prefix plus the fact name, matched
// case-insensitively; its value is returned verbatim as a string fact.
const EnvPrefix = "CFACTER_"

// Collection is the fact registry and orchestrator. It maps fact names to
// resolvers and cached facts, drives lazy depth-first resolution, detects
// cycles across resolvers, and applies environment overrides.
//
// A collection is constructed once per run, populated by registering all
// known resolvers, and queried from a single goroutine: the in-progress set
// and the resolver reentrancy flags are deliberately not safe for
// concurrent mutation. Resolution is reentrant, not parallel: a producer
// may call Get for other facts before returning.
type Collection struct {
	log     zerolog.Logger
	metrics *telemetry.Metrics

	// env maps lowercased overridden fact names to their literal values.
	env map[string]string

	// blocklist names facts that are forced absent without resolution.
	blocklist map[string]bool

	facts map[string]*Fact

	resolvers        []*Resolver
	byName           map[string][]*Resolver
	patternResolvers []*Resolver

	// inProgress is the stack of fact names on the current depth-first
	// traversal; inProgressSet shadows it for O(1) cycle checks. Keeping
	// the stack lets cycle diagnostics report the full chain.
	inProgress    []string
	inProgressSet map[string]bool
}

// Option configures a Collection.
type Option func(*Collection)

// WithLogger sets the diagnostics sink. Contained failures are reported
// here as structured events; nothing is thrown across this boundary.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Collection) { c.log = log }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Collection) { c.metrics = m }
}

// WithEnvironment supplies the environment ("KEY=value" entries) scanned
// for override variables instead of the process environment.
func WithEnvironment(environ []string) Option {
	return func(c *Collection) { c.env = parseOverrides(environ) }
}

// WithBlocklist names facts that must never resolve; requests for them
// yield absent without invoking any resolver.
func WithBlocklist(names []string) Option {
	return func(c *Collection) {
		for _, n := range names {
			c.blocklist[n] = true
		}
	}
}

// NewCollection creates an empty collection. By default it reads override
// variables from the process environment and discards diagnostics.
func NewCollection(opts ...Option) *Collection {
	c := &Collection{
		log:           zerolog.Nop(),
		blocklist:     make(map[string]bool),
		facts:         make(map[string]*Fact),
		byName:        make(map[string][]*Resolver),
		inProgressSet: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.env == nil {
		c.env = parseOverrides(os.Environ())
	}
	return c
}

// parseOverrides extracts override variables from an environment listing.
func parseOverrides(environ []string) map[string]string {
	out := make(map[string]string)
	for _, entry := range environ {
		key, val, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		upper := strings.ToUpper(key)
		if !strings.HasPrefix(upper, EnvPrefix) {
			continue
		}
		name := strings.ToLower(key[len(EnvPrefix):])
		if name != "" {
			out[name] = val
		}
	}
	return out
}

// AddResolver registers a resolver. Resolvers are registered once, before
// any resolution begins; registration order decides which resolver is
// consulted first when several claim the same fact name.
func (c *Collection) AddResolver(r *Resolver) error {
	if r == nil {
		return NewConfigError("nil resolver", nil)
	}
	c.resolvers = append(c.resolvers, r)
	for _, name := range r.Names() {
		c.byName[name] = append(c.byName[name], r)
	}
	if r.HasPatterns() {
		c.patternResolvers = append(c.patternResolvers, r)
	}
	c.log.Debug().
		Str("resolver", r.Name()).
		Strs("names", r.Names()).
		Bool("patterns", r.HasPatterns()).
		Msg("registered resolver")
	return nil
}

// Add directly seeds a fact, bypassing resolver lookup. Last write for a
// given name wins. Used for externally supplied values.
func (c *Collection) Add(name string, v value.Value) {
	if v == nil {
		v = value.None{}
	}
	c.facts[name] = &Fact{Name: name, Value: v, Status: StatusResolved}
}

// Get returns the value for a fact, resolving it on demand. The boolean is
// false when the fact is absent. Resolution failures are contained: they
// are reported through the diagnostics sink, the fact is cached absent, and
// sibling facts remain resolvable.
func (c *Collection) Get(name string) (value.Value, bool) {
	// Environment overrides take absolute precedence, before cache and
	// resolver lookup alike.
	if raw, ok := c.env[strings.ToLower(name)]; ok {
		if f, cached := c.facts[name]; cached && f.Status == StatusResolved {
			c.metrics.RecordCacheHit()
			return f.Value, true
		}
		v := value.String(raw)
		c.facts[name] = &Fact{Name: name, Value: v, Status: StatusResolved}
		c.metrics.RecordOverride()
		c.log.Debug().Str("fact", name).Msg("environment override applied")
		return v, true
	}

	if c.blocklist[name] {
		c.markAbsent(name)
		return nil, false
	}

	if f, ok := c.facts[name]; ok {
		switch f.Status {
		case StatusResolved:
			c.metrics.RecordCacheHit()
			return f.Value, true
		case StatusAbsent:
			return nil, false
		}
	}

	// Cycle guard: a fact already on the in-progress stack is requesting
	// itself transitively. Report the full chain and leave it absent; the
	// guard is scoped to the traversal, so unrelated facts still resolve.
	if c.inProgressSet[name] {
		err := NewCircularError(name, append([]string(nil), c.inProgress...))
		c.report(err)
		c.markAbsent(name)
		return nil, false
	}

	matching := c.matchingResolvers(name)
	if len(matching) == 0 {
		c.markAbsent(name)
		return nil, false
	}

	c.push(name)
	defer c.pop(name)

	c.facts[name] = &Fact{Name: name, Status: StatusResolving}

	for _, r := range matching {
		v, err := r.Resolve(c, name)
		if err != nil {
			c.report(err)
			continue
		}
		if v != nil {
			c.facts[name] = &Fact{Name: name, Value: v, Status: StatusResolved}
			c.metrics.RecordFactResolved()
			return v, true
		}
	}

	c.markAbsent(name)
	return nil, false
}

// matchingResolvers returns the resolvers responsible for name: exact-name
// registrations first, then pattern resolvers when no exact match exists.
func (c *Collection) matchingResolvers(name string) []*Resolver {
	if rs, ok := c.byName[name]; ok && len(rs) > 0 {
		return rs
	}
	var out []*Resolver
	for _, r := range c.patternResolvers {
		if r.IsMatch(name) {
			out = append(out, r)
		}
	}
	return out
}

// markAbsent records the terminal absent state for a fact.
func (c *Collection) markAbsent(name string) {
	f, ok := c.facts[name]
	if ok && f.Status == StatusAbsent {
		return
	}
	if !ok {
		f = &Fact{Name: name}
		c.facts[name] = f
	}
	f.Value = nil
	f.Status = StatusAbsent
	c.metrics.RecordFactAbsent()
}

// push adds a fact to the in-progress traversal.
func (c *Collection) push(name string) {
	c.inProgress = append(c.inProgress, name)
	c.inProgressSet[name] = true
}

// pop removes a fact from the in-progress traversal.
func (c *Collection) pop(name string) {
	if n := len(c.inProgress); n > 0 && c.inProgress[n-1] == name {
		c.inProgress = c.inProgress[:n-1]
	}
	delete(c.inProgressSet, name)
}

// report sends a contained failure to the diagnostics sink and metrics.
func (c *Collection) report(err error) {
	class := classOf(err)
	c.metrics.RecordError(string(class))

	evt := c.log.Warn().Str("class", string(class))
	var re *ResolutionError
	if errors.As(err, &re) {
		if re.Fact != "" {
			evt = evt.Str("fact", re.Fact)
		}
		if re.Chunk != "" {
			evt = evt.Str("chunk", re.Chunk)
		}
		if re.Resolver != "" {
			evt = evt.Str("resolver", re.Resolver)
		}
	}
	evt.Msg(err.Error())
}

// reportTie logs a resolver selection tie for diagnostics.
func (c *Collection) reportTie(resolver, fact string, weight int) {
	c.log.Debug().
		Str("resolver", resolver).
		Str("fact", fact).
		Int("weight", weight).
		Msg("resolution weight tie; first registered wins")
}

// recordResolutionExecuted counts a producer invocation.
func (c *Collection) recordResolutionExecuted(resolver string) {
	c.metrics.RecordResolutionExecuted(resolver)
}

// Size returns the number of facts that have resolved to a value.
func (c *Collection) Size() int {
	n := 0
	for _, f := range c.facts {
		if f.Resolved() {
			n++
		}
	}
	return n
}

// Names returns the sorted names of resolved facts.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.facts))
	for name, f := range c.facts {
		if f.Resolved() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Each calls fn for every resolved fact in sorted name order.
func (c *Collection) Each(fn func(name string, v value.Value)) {
	for _, name := range c.Names() {
		fn(name, c.facts[name].Value)
	}
}

// ResolveAll resolves every fact the collection knows how to name: seeded
// facts, environment overrides, and every explicit name declared by a
// registered resolver. Dynamic facts appear only when a producer adds them
// or a caller requests them by name.
func (c *Collection) ResolveAll() {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}

	for n := range c.env {
		add(n)
	}
	for n := range c.facts {
		add(n)
	}
	for _, r := range c.resolvers {
		for _, n := range r.Names() {
			add(n)
		}
	}

	sort.Strings(names)
	for _, n := range names {
		c.Get(n)
	}
}

// ToMap renders the resolved facts as an ordered map value, sorted by name.
func (c *Collection) ToMap() *value.Map {
	out := value.NewMap()
	for _, name := range c.Names() {
		out.Put(name, c.facts[name].Value)
	}
	return out
}
