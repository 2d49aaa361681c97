package resolvers

import (
	"net"
	"os"
	"strings"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// resolvConfPath is the standard resolver config; overridable in tests.
var resolvConfPath = "/etc/resolv.conf"

// NewNetworkingResolver resolves hostname, domain, fqdn, the structured
// networking map, and dynamic per-interface facts (ipaddress_<iface>,
// netmask_<iface>, macaddress_<iface>, mtu_<iface>) matched by pattern
// rather than by exact name.
func NewNetworkingResolver() (*facts.Resolver, error) {
	r, err := facts.NewResolver("networking",
		[]string{"hostname", "domain", "fqdn", "networking"},
		`^ipaddress_\w+$`, `^netmask_\w+$`, `^macaddress_\w+$`, `^mtu_\w+$`,
	)
	if err != nil {
		return nil, err
	}

	// hostname, domain and fqdn belong to this resolver, so the fqdn and
	// networking producers derive them through the shared helpers below
	// instead of Collection.Get: a nested Get for a sibling fact would trip
	// the resolver's own reentrancy guard mid-resolve.
	specs := []facts.ResolutionSpec{
		{Fact: "hostname", Produce: func(*facts.Collection, string) (value.Value, error) {
			short, err := shortHostname()
			if err != nil {
				return nil, err
			}
			return value.String(short), nil
		}},
		{Fact: "domain", Produce: func(*facts.Collection, string) (value.Value, error) {
			if domain := hostDomain(); domain != "" {
				return value.String(domain), nil
			}
			return nil, nil
		}},
		{Fact: "fqdn", Produce: func(*facts.Collection, string) (value.Value, error) {
			short, err := shortHostname()
			if err != nil {
				return nil, err
			}
			if domain := hostDomain(); domain != "" {
				return value.String(short + "." + domain), nil
			}
			return value.String(short), nil
		}},
		{Fact: "networking", Produce: func(c *facts.Collection, _ string) (value.Value, error) {
			return networkingFact(c)
		}},
		// Dynamic: serves any requested name matching the patterns above.
		{Produce: func(_ *facts.Collection, name string) (value.Value, error) {
			return interfaceFact(name)
		}},
	}
	for _, spec := range specs {
		if err := r.Add(spec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// networkingFact builds the structured interfaces map and seeds the
// per-interface dynamic facts so a full collection run lists them.
func networkingFact(c *facts.Collection) (value.Value, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	interfaces := value.NewMap()
	for _, iface := range ifaces {
		entry := value.NewMap()

		if mac := iface.HardwareAddr.String(); mac != "" {
			entry.Put("mac", value.String(mac))
			c.Add("macaddress_"+iface.Name, value.String(mac))
		}
		entry.Put("mtu", value.Integer(int64(iface.MTU)))
		c.Add("mtu_"+iface.Name, value.Integer(int64(iface.MTU)))

		bindings := value.NewArray()
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				ip, ipnet, err := net.ParseCIDR(addr.String())
				if err != nil {
					continue
				}
				bindings.Append(value.String(ip.String()))
				if ip.To4() != nil {
					if _, seeded := entry.Get("ip"); !seeded {
						entry.Put("ip", value.String(ip.String()))
						c.Add("ipaddress_"+iface.Name, value.String(ip.String()))
						mask := net.IP(ipnet.Mask).String()
						entry.Put("netmask", value.String(mask))
						c.Add("netmask_"+iface.Name, value.String(mask))
					}
				}
			}
		}
		entry.Put("bindings", bindings)

		interfaces.Put(iface.Name, entry)
	}

	m := value.NewMap().Put("interfaces", interfaces)
	if short, err := shortHostname(); err == nil {
		m.Put("hostname", value.String(short))
		if domain := hostDomain(); domain != "" {
			m.Put("fqdn", value.String(short+"."+domain))
		} else {
			m.Put("fqdn", value.String(short))
		}
	}
	return m, nil
}

// shortHostname returns the host's first name label. A configured FQDN
// hostname contributes only the part before the first dot.
func shortHostname() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		return "", err
	}
	short, _, _ := strings.Cut(host, ".")
	return short, nil
}

// hostDomain derives the DNS domain from the configured hostname, falling
// back to resolv.conf. Empty when neither names one.
func hostDomain() string {
	if host, err := os.Hostname(); err == nil {
		if _, domain, ok := strings.Cut(host, "."); ok && domain != "" {
			return domain
		}
	}
	return domainFromResolvConf()
}

// interfaceFact answers a dynamic per-interface request such as
// ipaddress_eth0 by querying the named interface directly.
func interfaceFact(name string) (value.Value, error) {
	kind, ifaceName, ok := strings.Cut(name, "_")
	if !ok {
		return nil, nil
	}

	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		// Unknown interface: the fact is absent, not an error.
		return nil, nil
	}

	switch kind {
	case "macaddress":
		if mac := iface.HardwareAddr.String(); mac != "" {
			return value.String(mac), nil
		}
	case "mtu":
		return value.Integer(int64(iface.MTU)), nil
	case "ipaddress", "netmask":
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, err
		}
		for _, addr := range addrs {
			ip, ipnet, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			if ip.To4() == nil {
				continue
			}
			if kind == "netmask" {
				return value.String(net.IP(ipnet.Mask).String()), nil
			}
			return value.String(ip.String()), nil
		}
	}
	return nil, nil
}

// domainFromResolvConf reads the domain or search directive.
func domainFromResolvConf() string {
	data, err := os.ReadFile(resolvConfPath)
	if err != nil {
		return ""
	}
	return parseResolvConfDomain(string(data))
}

// parseResolvConfDomain extracts the first domain/search entry.
func parseResolvConfDomain(data string) string {
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if fields[0] == "domain" || fields[0] == "search" {
			return fields[1]
		}
	}
	return ""
}
