package resolvers

import (
	"os"
	"strings"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// osReleasePath is the standard os-release location; overridable in tests.
var osReleasePath = "/etc/os-release"

// NewSystemResolver resolves operating system identification facts from
// /etc/os-release: operatingsystem, operatingsystemrelease, osfamily, and
// the structured os map. All resolutions are confined to kernel=Linux.
func NewSystemResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("system", []string{
		"operatingsystem", "operatingsystemrelease", "osfamily", "os",
	})
	if err != nil {
		return nil, err
	}

	linuxOnly := []facts.Confine{
		facts.ConfineEquals("kernel", value.String("Linux")),
	}

	specs := []facts.ResolutionSpec{
		{Fact: "operatingsystem", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			rel, err := readOSRelease()
			if err != nil {
				return nil, err
			}
			if name := rel["NAME"]; name != "" {
				return value.String(name), nil
			}
			return nil, nil
		}},
		{Fact: "operatingsystemrelease", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			rel, err := readOSRelease()
			if err != nil {
				return nil, err
			}
			if v := rel["VERSION_ID"]; v != "" {
				return value.String(v), nil
			}
			return nil, nil
		}},
		{Fact: "osfamily", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			rel, err := readOSRelease()
			if err != nil {
				return nil, err
			}
			return value.String(osFamily(rel)), nil
		}},
		{Fact: "os", Confines: linuxOnly, Produce: func(c *facts.Collection, _ string) (value.Value, error) {
			rel, err := readOSRelease()
			if err != nil {
				return nil, err
			}

			full := rel["VERSION_ID"]
			major, minor := splitRelease(full)

			release := value.NewMap().
				Put("full", value.String(full)).
				Put("major", value.String(major))
			if minor != "" {
				release.Put("minor", value.String(minor))
			}

			m := value.NewMap().
				Put("name", value.String(rel["NAME"])).
				Put("family", value.String(osFamily(rel))).
				Put("release", release)
			if arch, ok := c.Get("architecture"); ok {
				m.Put("architecture", arch)
			}
			return m, nil
		}},
	}
	for _, spec := range specs {
		if err := r.Add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// readOSRelease loads and parses the os-release file.
func readOSRelease() (map[string]string, error) {
	data, err := os.ReadFile(osReleasePath)
	if err != nil {
		return nil, err
	}
	return parseOSRelease(string(data)), nil
}

// parseOSRelease parses os-release KEY=value lines, stripping quotes.
func parseOSRelease(data string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = strings.Trim(val, `"'`)
	}
	return out
}

// osFamily derives the distribution family from ID_LIKE, falling back to
// the distribution's own ID.
func osFamily(rel map[string]string) string {
	like := rel["ID_LIKE"]
	if like == "" {
		return rel["ID"]
	}
	// ID_LIKE may list several ancestors; the first is the closest.
	return strings.Fields(like)[0]
}

// splitRelease splits a version like "24.04" into major "24", minor "04".
func splitRelease(full string) (major, minor string) {
	major, minor, ok := strings.Cut(full, ".")
	if !ok {
		return full, ""
	}
	return major, minor
}
