package resolvers

import (
	"strings"

	"golang.org/x/sys/unix"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// NewKernelResolver resolves kernel identification facts from uname:
// kernel, kernelrelease, kernelversion, kernelmajversion, architecture.
func NewKernelResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("kernel", []string{
		"kernel", "kernelrelease", "kernelversion", "kernelmajversion", "architecture",
	})
	if err != nil {
		return nil, err
	}

	specs := []facts.ResolutionSpec{
		{Fact: "kernel", Produce: func(*facts.Collection, string) (value.Value, error) {
			u, err := uname()
			if err != nil {
				return nil, err
			}
			return value.String(u.sysname), nil
		}},
		{Fact: "kernelrelease", Produce: func(*facts.Collection, string) (value.Value, error) {
			u, err := uname()
			if err != nil {
				return nil, err
			}
			return value.String(u.release), nil
		}},
		// Sibling kernel facts are derived from uname directly rather than
		// through the collection: the resolver is mid-resolve here, and a
		// nested Get for a fact it owns would trip its own reentrancy guard.
		{Fact: "kernelversion", Produce: func(*facts.Collection, string) (value.Value, error) {
			u, err := uname()
			if err != nil {
				return nil, err
			}
			version, _ := parseKernelVersions(u.release)
			return value.String(version), nil
		}},
		{Fact: "kernelmajversion", Produce: func(*facts.Collection, string) (value.Value, error) {
			u, err := uname()
			if err != nil {
				return nil, err
			}
			_, major := parseKernelVersions(u.release)
			return value.String(major), nil
		}},
		{Fact: "architecture", Produce: func(*facts.Collection, string) (value.Value, error) {
			u, err := uname()
			if err != nil {
				return nil, err
			}
			return value.String(u.machine), nil
		}},
	}
	for _, spec := range specs {
		if err := r.Add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// unameInfo holds the uname fields the resolvers care about.
type unameInfo struct {
	sysname string
	release string
	version string
	machine string
}

// uname wraps the raw syscall.
func uname() (unameInfo, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return unameInfo{}, err
	}
	return unameInfo{
		sysname: unix.ByteSliceToString(uts.Sysname[:]),
		release: unix.ByteSliceToString(uts.Release[:]),
		version: unix.ByteSliceToString(uts.Version[:]),
		machine: unix.ByteSliceToString(uts.Machine[:]),
	}, nil
}

// parseKernelVersions extracts the dotted version and the two-component
// major version from a kernel release string such as "6.8.0-39-generic":
// version "6.8.0", major version "6.8".
func parseKernelVersions(release string) (version, major string) {
	version = release
	if i := strings.IndexByte(release, '-'); i >= 0 {
		version = release[:i]
	}
	parts := strings.Split(version, ".")
	if len(parts) >= 2 {
		major = parts[0] + "." + parts[1]
	} else {
		major = version
	}
	return version, major
}
