package facts

import (
	"fmt"
	"regexp"

	"github.com/mattthias/cfacter/pkg/value"
)

// Confine is a predicate over another fact's current value, used to gate a
// resolution's applicability. Confines are stateless once constructed;
// evaluating one queries the collection, which may trigger nested
// resolution of the referenced fact.
type Confine struct {
	fact string
	pred func(v value.Value) bool
	desc string
}

// FactName returns the name of the fact the confine references.
func (c Confine) FactName() string { return c.fact }

// String describes the confine for diagnostics.
func (c Confine) String() string { return c.desc }

// Met evaluates the predicate against the value currently returned by the
// collection for the referenced fact. A fact that cannot be resolved means
// the confine is not met; it is never an error.
func (c Confine) Met(coll *Collection) bool {
	v, ok := coll.Get(c.fact)
	if !ok {
		return false
	}
	return c.pred(v)
}

// ConfineEquals confines to an exact value.
func ConfineEquals(fact string, want value.Value) Confine {
	return Confine{
		fact: fact,
		pred: func(v value.Value) bool { return v.Equal(want) },
		desc: fmt.Sprintf("%s == %s", fact, want),
	}
}

// ConfineIn confines to membership in a set of allowed values.
func ConfineIn(fact string, allowed ...value.Value) Confine {
	set := make([]value.Value, len(allowed))
	copy(set, allowed)
	return Confine{
		fact: fact,
		pred: func(v value.Value) bool {
			for _, a := range set {
				if v.Equal(a) {
					return true
				}
			}
			return false
		},
		desc: fmt.Sprintf("%s in set of %d values", fact, len(allowed)),
	}
}

// ConfineMatches confines to string values matching a regular expression.
// A malformed pattern is an invalid-configuration error.
func ConfineMatches(fact string, pattern string) (Confine, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Confine{}, NewConfigError(
			fmt.Sprintf("invalid confine pattern %q for fact %q", pattern, fact), err)
	}
	return Confine{
		fact: fact,
		pred: func(v value.Value) bool {
			s, ok := v.(value.String)
			if !ok {
				return false
			}
			return re.MatchString(string(s))
		},
		desc: fmt.Sprintf("%s matches %q", fact, pattern),
	}, nil
}

// ConfineRange confines numeric values (integer or double) to the inclusive
// range [min, max].
func ConfineRange(fact string, min, max float64) Confine {
	return Confine{
		fact: fact,
		pred: func(v value.Value) bool {
			var n float64
			switch num := v.(type) {
			case value.Integer:
				n = float64(num)
			case value.Double:
				n = float64(num)
			default:
				return false
			}
			return n >= min && n <= max
		},
		desc: fmt.Sprintf("%s in [%g, %g]", fact, min, max),
	}
}

// ConfineFunc confines with an arbitrary predicate over the fact's value.
func ConfineFunc(fact string, fn func(v value.Value) bool) Confine {
	return Confine{
		fact: fact,
		pred: fn,
		desc: fmt.Sprintf("%s satisfies predicate", fact),
	}
}
