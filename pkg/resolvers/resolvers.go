package resolvers

import "github.com/mattthias/cfacter/pkg/facts"

// RegisterAll constructs every built-in resolver and registers it with the
// collection. A resolver that fails to construct is skipped, since built-in
// construction failures must not abort the run, and the first error is
// returned so the caller can report it.
func RegisterAll(c *facts.Collection) error {
	constructors := []func() (*facts.Resolver, error){
		NewKernelResolver,
		NewSystemResolver,
		NewMemoryResolver,
		NewNetworkingResolver,
		NewProcessorsResolver,
		NewUptimeResolver,
		NewIdentityResolver,
	}

	var firstErr error
	for _, construct := range constructors {
		r, err := construct()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := c.AddResolver(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
