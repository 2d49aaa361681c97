// Package facts implements the fact resolution engine: a lazy, cycle-safe
// dependency scheduler over named host facts.
//
// A Collection maps fact names to the Resolvers that can produce them. A
// resolver owns one or more Resolutions, competing candidates for a fact
// gated by Confines over other facts' values and ranked by weight. A
// resolution is either simple (one producer) or an aggregate whose value is
// assembled from dependency-ordered chunks merged together.
//
// Resolution is lazy and depth-first: nothing is computed until Get is
// called, and a producer may itself call Get for other facts. Two guards
// make this reentrancy safe: the collection tracks the in-progress set of
// fact names and rejects circular requests with the full offending chain,
// and each resolver carries a resolving flag that fails same-resolver
// reentrancy fast.
//
// All failures (circular resolution, chunk cycles, merge conflicts,
// producer errors) are contained to the offending fact, reported through
// the zerolog diagnostics sink, and leave the fact absent. A collection run
// is never aborted by a failing fact.
//
// The engine is single-threaded by contract: a Collection and its
// resolvers must only be used from one goroutine.
package facts
