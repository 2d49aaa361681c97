// Package external loads custom facts written as Starlark scripts. Each
// script becomes one resolver: its top level calls fact(), resolution(), and
// aggregate() to declare what the resolver produces, and producer functions
// may call lookup() to read other facts through the collection, joining the
// same lazy resolution and cycle detection as built-in facts.
package external
