package resolvers

import (
	"os"
	"strings"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// cpuInfoPath is the standard cpuinfo location; overridable in tests.
var cpuInfoPath = "/proc/cpuinfo"

// NewProcessorsResolver resolves processorcount and the structured
// processors map from /proc/cpuinfo. Confined to kernel=Linux.
func NewProcessorsResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("processors", []string{"processorcount", "processors"})
	if err != nil {
		return nil, err
	}

	linuxOnly := []facts.Confine{
		facts.ConfineEquals("kernel", value.String("Linux")),
	}

	specs := []facts.ResolutionSpec{
		{Fact: "processorcount", Confines: linuxOnly, Produce: func(*facts.Collection, string) (value.Value, error) {
			count, _, err := readCPUInfo()
			if err != nil {
				return nil, err
			}
			return value.Integer(int64(count)), nil
		}},
		{Fact: "processors", Confines: linuxOnly, Produce: func(c *facts.Collection, _ string) (value.Value, error) {
			count, models, err := readCPUInfo()
			if err != nil {
				return nil, err
			}

			modelList := value.NewArray()
			for _, m := range models {
				modelList.Append(value.String(m))
			}

			m := value.NewMap().
				Put("count", value.Integer(int64(count))).
				Put("models", modelList)
			if arch, ok := c.Get("architecture"); ok {
				m.Put("isa", arch)
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

// readCPUInfo loads and parses /proc/cpuinfo.
func readCPUInfo() (count int, models []string, err error) {
	data, err := os.ReadFile(cpuInfoPath)
	if err != nil {
		return 0, nil, err
	}
	count, models = parseCPUInfo(string(data))
	return count, models, nil
}

// parseCPUInfo counts logical processors and collects their model names.
func parseCPUInfo(data string) (count int, models []string) {
	for _, line := range strings.Split(data, "\n") {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "processor":
			count++
		case "model name":
			models = append(models, strings.TrimSpace(val))
		}
	}
	return count, models
}
