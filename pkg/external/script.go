package external

import (
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// collectionKey is the thread-local slot carrying the collection during
// producer calls. Outside a producer call the slot is empty and lookup()
// fails.
const collectionKey = "cfacter.collection"

// script is a parsed custom-fact script: the declarations its top level
// registered, ready to be turned into a resolver.
type script struct {
	name       string
	source     string
	names      []string
	nameSet    map[string]bool
	patterns   []string
	simple     []facts.ResolutionSpec
	aggregates []facts.AggregateSpec
}

// chunkDecl is the value returned by the chunk() builtin, consumed by
// aggregate().
type chunkDecl struct {
	name     string
	requires []string
	fn       starlark.Callable
}

func (c *chunkDecl) String() string        { return fmt.Sprintf("chunk(%q)", c.name) }
func (c *chunkDecl) Type() string          { return "chunk" }
func (c *chunkDecl) Freeze()               {}
func (c *chunkDecl) Truth() starlark.Bool  { return starlark.True }
func (c *chunkDecl) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: chunk") }

// execScript runs a custom-fact script's top level, collecting the
// declarations made through the fact/resolution/aggregate builtins.
func execScript(name, filename, source string, print func(string)) (*script, error) {
	s := &script{
		name:    name,
		source:  filename,
		nameSet: make(map[string]bool),
	}

	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			if print != nil {
				print(msg)
			}
		},
	}

	predeclared := starlark.StringDict{
		"struct":     starlarkstruct.Default,
		"fact":       starlark.NewBuiltin("fact", s.builtinFact),
		"resolution": starlark.NewBuiltin("resolution", s.builtinResolution),
		"chunk":      starlark.NewBuiltin("chunk", builtinChunk),
		"aggregate":  starlark.NewBuiltin("aggregate", s.builtinAggregate),
		"lookup":     starlark.NewBuiltin("lookup", builtinLookup),
	}

	if _, err := starlark.ExecFile(thread, filename, source, predeclared); err != nil {
		return nil, err
	}
	return s, nil
}

// resolver materializes the collected declarations into a resolver.
func (s *script) resolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver(s.name, s.names, s.patterns...)
	if err != nil {
		return nil, err
	}
	for _, spec := range s.simple {
		if err := r.Add(spec); err != nil {
			return nil, err
		}
	}
	for _, spec := range s.aggregates {
		if err := r.AddAggregate(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// claim records a fact name the script's resolver is responsible for.
func (s *script) claim(fact string) {
	if fact == "" || s.nameSet[fact] {
		return
	}
	s.nameSet[fact] = true
	s.names = append(s.names, fact)
}

// builtinFact implements fact(name, value, weight=0): a constant resolution.
func (s *script) builtinFact(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var val starlark.Value
	var weight int
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name, "value", &val, "weight?", &weight); err != nil {
		return nil, err
	}

	v, err := fromStarlark(val)
	if err != nil {
		return nil, fmt.Errorf("fact %q: %w", name, err)
	}

	s.claim(name)
	s.simple = append(s.simple, facts.ResolutionSpec{
		Fact:   name,
		Weight: weight,
		Produce: func(*facts.Collection, string) (value.Value, error) {
			return v, nil
		},
	})
	return starlark.None, nil
}

// builtinResolution implements resolution(fact?, pattern?, fn, name="",
// weight=0, confine={}). Exactly one of fact and pattern must be given; a
// pattern declares a dynamic resolution and fn receives the requested name.
func (s *script) builtinResolution(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fact, pattern, resName string
	var fn starlark.Callable
	var weight int
	var confine *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"fn", &fn, "fact?", &fact, "pattern?", &pattern,
		"name?", &resName, "weight?", &weight, "confine?", &confine); err != nil {
		return nil, err
	}
	if (fact == "") == (pattern == "") {
		return nil, fmt.Errorf("resolution requires exactly one of fact= or pattern=")
	}

	confines, err := confinesFromDict(confine)
	if err != nil {
		return nil, err
	}

	if pattern != "" {
		s.patterns = append(s.patterns, pattern)
	}
	s.claim(fact)
	s.simple = append(s.simple, facts.ResolutionSpec{
		Fact:     fact,
		Name:     resName,
		Weight:   weight,
		Confines: confines,
		Produce: func(coll *facts.Collection, requested string) (value.Value, error) {
			return callProducer(s.name, coll, fn, starlark.Tuple{starlark.String(requested)})
		},
	})
	return starlark.None, nil
}

// builtinChunk implements chunk(name, fn, requires=[]).
func builtinChunk(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var fn starlark.Callable
	var requires *starlark.List
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name, "fn", &fn, "requires?", &requires); err != nil {
		return nil, err
	}

	decl := &chunkDecl{name: name, fn: fn}
	if requires != nil {
		for i := 0; i < requires.Len(); i++ {
			dep, ok := requires.Index(i).(starlark.String)
			if !ok {
				return nil, fmt.Errorf("chunk %q: requires entries must be strings", name)
			}
			decl.requires = append(decl.requires, string(dep))
		}
	}
	return decl, nil
}

// builtinAggregate implements aggregate(fact, chunks, name="", weight=0,
// confine={}).
func (s *script) builtinAggregate(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fact, resName string
	var chunks *starlark.List
	var weight int
	var confine *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"fact", &fact, "chunks", &chunks,
		"name?", &resName, "weight?", &weight, "confine?", &confine); err != nil {
		return nil, err
	}

	confines, err := confinesFromDict(confine)
	if err != nil {
		return nil, err
	}

	var chunkSpecs []facts.ChunkSpec
	for i := 0; i < chunks.Len(); i++ {
		decl, ok := chunks.Index(i).(*chunkDecl)
		if !ok {
			return nil, fmt.Errorf("aggregate %q: chunks entries must be chunk() values, got %s",
				fact, chunks.Index(i).Type())
		}
		fn := decl.fn
		chunkSpecs = append(chunkSpecs, facts.ChunkSpec{
			Name:     decl.name,
			Requires: decl.requires,
			Produce: func(coll *facts.Collection, deps map[string]value.Value) (value.Value, error) {
				depDict := starlark.NewDict(len(deps))
				for depName, depVal := range deps {
					sv, err := toStarlark(depVal)
					if err != nil {
						return nil, err
					}
					if err := depDict.SetKey(starlark.String(depName), sv); err != nil {
						return nil, err
					}
				}
				return callProducer(s.name, coll, fn, starlark.Tuple{depDict})
			},
		})
	}

	s.claim(fact)
	s.aggregates = append(s.aggregates, facts.AggregateSpec{
		Fact:     fact,
		Name:     resName,
		Weight:   weight,
		Confines: confines,
		Chunks:   chunkSpecs,
	})
	return starlark.None, nil
}

// builtinLookup implements lookup(name): resolve another fact through the
// collection. Only valid inside a producer function, where the calling
// thread carries the collection.
func builtinLookup(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}

	coll, ok := thread.Local(collectionKey).(*facts.Collection)
	if !ok || coll == nil {
		return nil, fmt.Errorf("lookup is only available inside producer functions")
	}

	v, ok := coll.Get(name)
	if !ok {
		return starlark.None, nil
	}
	return toStarlark(v)
}

// callProducer invokes a script callable on a fresh thread carrying the
// collection, and converts the result. A None result means the producer
// yields no value.
func callProducer(name string, coll *facts.Collection, fn starlark.Callable, args starlark.Tuple) (value.Value, error) {
	thread := &starlark.Thread{Name: name}
	thread.SetLocal(collectionKey, coll)

	out, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, err
	}
	if out == starlark.None {
		return nil, nil
	}
	return fromStarlark(out)
}

// confinesFromDict translates a confine dict into confine predicates. A list
// value means set membership, anything else exact equality.
func confinesFromDict(d *starlark.Dict) ([]facts.Confine, error) {
	if d == nil {
		return nil, nil
	}

	var confines []facts.Confine
	for _, item := range d.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("confine keys must be fact names, got %s", item[0].Type())
		}
		fact := string(key)

		if list, ok := item[1].(*starlark.List); ok {
			var allowed []value.Value
			for i := 0; i < list.Len(); i++ {
				v, err := fromStarlark(list.Index(i))
				if err != nil {
					return nil, fmt.Errorf("confine %q: %w", fact, err)
				}
				allowed = append(allowed, v)
			}
			confines = append(confines, facts.ConfineIn(fact, allowed...))
			continue
		}

		want, err := fromStarlark(item[1])
		if err != nil {
			return nil, fmt.Errorf("confine %q: %w", fact, err)
		}
		confines = append(confines, facts.ConfineEquals(fact, want))
	}
	return confines, nil
}
