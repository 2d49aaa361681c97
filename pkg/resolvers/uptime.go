package resolvers

import (
	"golang.org/x/sys/unix"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// NewUptimeResolver resolves uptime facts (system_uptime, uptime_seconds)
// and load_averages from sysinfo. Confined to kernel=Linux.
func NewUptimeResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("uptime", []string{
		"system_uptime", "uptime_seconds", "load_averages",
	})
	if err != nil {
		return nil, err
	}

	linuxOnly := []facts.Confine{
		facts.ConfineEquals("kernel", value.String("Linux")),
	}

	specs := []facts.ResolutionSpec{
		{Fact: "uptime_seconds", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			var info unix.Sysinfo_t
			if err := unix.Sysinfo(&info); err != nil {
				return nil, err
			}
			return value.Integer(int64(info.Uptime)), nil
		}},
		// Reads sysinfo again instead of Get("uptime_seconds"): that fact
		// belongs to this resolver, and a nested Get for it mid-resolve
		// would trip the reentrancy guard.
		{Fact: "system_uptime", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			var info unix.Sysinfo_t
			if err := unix.Sysinfo(&info); err != nil {
				return nil, err
			}
			return uptimeMap(int64(info.Uptime)), nil
		}},
		{Fact: "load_averages", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			var info unix.Sysinfo_t
			if err := unix.Sysinfo(&info); err != nil {
				return nil, err
			}
			// Loads are fixed-point, scaled by 2^16.
			const scale = 1 << 16
			return value.NewMap().
				Put("1m", value.Double(float64(info.Loads[0])/scale)).
				Put("5m", value.Double(float64(info.Loads[1])/scale)).
				Put("15m", value.Double(float64(info.Loads[2])/scale)), nil
		}},
	}
	for _, spec := range specs {
		if err := r.Add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// uptimeMap renders seconds of uptime in the units automation expects.
func uptimeMap(seconds int64) *value.Map {
	return value.NewMap().
		Put("seconds", value.Integer(seconds)).
		Put("hours", value.Integer(seconds/3600)).
		Put("days", value.Integer(seconds/86400))
}
