package resolvers

import (
	"os"
	"strconv"
	"strings"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// memInfoPath is the standard meminfo location; overridable in tests.
var memInfoPath = "/proc/meminfo"

// NewMemoryResolver resolves the memory fact as an aggregate of two
// chunks, system and swap, both parsed from /proc/meminfo and merged into
// one map. Confined to kernel=Linux.
func NewMemoryResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("memory", []string{"memory"})
	if err != nil {
		return nil, err
	}

	err = r.AddAggregate(facts.AggregateSpec{
		Fact: "memory",
		Confines: []facts.Confine{
			facts.ConfineEquals("kernel", value.String("Linux")),
		},
		Chunks: []facts.ChunkSpec{
			{
				Name: "system",
				Produce: func(*facts.Collection, map[string]value.Value) (value.Value, error) {
					info, err := readMemInfo()
					if err != nil {
						return nil, err
					}
					total := info["MemTotal"]
					available := info["MemAvailable"]
					return value.NewMap().Put("system", sizeMap(total, available)), nil
				},
			},
			{
				Name: "swap",
				Produce: func(*facts.Collection, map[string]value.Value) (value.Value, error) {
					info, err := readMemInfo()
					if err != nil {
						return nil, err
					}
					total := info["SwapTotal"]
					free := info["SwapFree"]
					return value.NewMap().Put("swap", sizeMap(total, free)), nil
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// sizeMap builds the per-pool map of byte counts from kB figures.
func sizeMap(totalKB, availableKB int64) *value.Map {
	total := totalKB * 1024
	available := availableKB * 1024
	m := value.NewMap().
		Put("total_bytes", value.Integer(total)).
		Put("available_bytes", value.Integer(available)).
		Put("used_bytes", value.Integer(total-available))
	if total > 0 {
		capacity := float64(total-available) / float64(total) * 100
		m.Put("capacity", value.Double(capacity))
	}
	return m
}

// readMemInfo loads and parses /proc/meminfo.
func readMemInfo() (map[string]int64, error) {
	data, err := os.ReadFile(memInfoPath)
	if err != nil {
		return nil, err
	}
	return parseMemInfo(string(data)), nil
}

// parseMemInfo parses meminfo "Key: value kB" lines into kB counts.
func parseMemInfo(data string) map[string]int64 {
	out := make(map[string]int64)
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		key := strings.TrimSuffix(fields[0], ":")
		val, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		out[key] = val
	}
	return out
}
