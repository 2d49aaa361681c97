package resolvers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattthias/cfacter/pkg/facts"
	"github.com/mattthias/cfacter/pkg/value"
)

// newTestCollection builds a collection isolated from the process
// environment so CFACTER_ variables on the test host cannot interfere.
func newTestCollection() *facts.Collection {
	return facts.NewCollection(facts.WithEnvironment(nil))
}

// overridePath points one of the resolver source-file variables at a temp
// file with the given content for the duration of the test.
func overridePath(t *testing.T, target *string, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}
	old := *target
	*target = path
	t.Cleanup(func() { *target = old })
}

// register adds a freshly constructed resolver to the collection.
func register(t *testing.T, c *facts.Collection, construct func() (*facts.Resolver, error)) {
	t.Helper()
	r, err := construct()
	if err != nil {
		t.Fatalf("Failed to construct resolver: %v", err)
	}
	if err := c.AddResolver(r); err != nil {
		t.Fatalf("Failed to register resolver: %v", err)
	}
}

func TestParseKernelVersions(t *testing.T) {
	tests := []struct {
		release     string
		wantVersion string
		wantMajor   string
	}{
		{"6.8.0-39-generic", "6.8.0", "6.8"},
		{"5.15.0", "5.15.0", "5.15"},
		{"4.4", "4.4", "4.4"},
		{"6", "6", "6"},
	}

	for _, tt := range tests {
		t.Run(tt.release, func(t *testing.T) {
			version, major := parseKernelVersions(tt.release)
			if version != tt.wantVersion {
				t.Errorf("version = %q, want %q", version, tt.wantVersion)
			}
			if major != tt.wantMajor {
				t.Errorf("major = %q, want %q", major, tt.wantMajor)
			}
		})
	}
}

func TestParseOSRelease(t *testing.T) {
	data := `NAME="Ubuntu"
VERSION="24.04.1 LTS (Noble Numbat)"
ID=ubuntu
ID_LIKE=debian
VERSION_ID="24.04"

# comment
PRETTY_NAME="Ubuntu 24.04.1 LTS"
`
	rel := parseOSRelease(data)

	if rel["NAME"] != "Ubuntu" {
		t.Errorf("NAME = %q, want Ubuntu", rel["NAME"])
	}
	if rel["ID"] != "ubuntu" {
		t.Errorf("ID = %q, want ubuntu", rel["ID"])
	}
	if rel["VERSION_ID"] != "24.04" {
		t.Errorf("VERSION_ID = %q, want 24.04", rel["VERSION_ID"])
	}
}

func TestOSFamily(t *testing.T) {
	tests := []struct {
		name string
		rel  map[string]string
		want string
	}{
		{"id_like single", map[string]string{"ID": "ubuntu", "ID_LIKE": "debian"}, "debian"},
		{"id_like list", map[string]string{"ID": "centos", "ID_LIKE": "rhel fedora"}, "rhel"},
		{"no id_like", map[string]string{"ID": "debian"}, "debian"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := osFamily(tt.rel); got != tt.want {
				t.Errorf("osFamily() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSplitRelease(t *testing.T) {
	major, minor := splitRelease("24.04")
	if major != "24" || minor != "04" {
		t.Errorf("splitRelease(24.04) = %q, %q", major, minor)
	}
	major, minor = splitRelease("12")
	if major != "12" || minor != "" {
		t.Errorf("splitRelease(12) = %q, %q", major, minor)
	}
}

func TestParseMemInfo(t *testing.T) {
	data := `MemTotal:       16384256 kB
MemFree:         8192128 kB
MemAvailable:   12288192 kB
SwapTotal:       2097148 kB
SwapFree:        2097148 kB
`
	info := parseMemInfo(data)

	if info["MemTotal"] != 16384256 {
		t.Errorf("MemTotal = %d, want 16384256", info["MemTotal"])
	}
	if info["MemAvailable"] != 12288192 {
		t.Errorf("MemAvailable = %d, want 12288192", info["MemAvailable"])
	}
	if info["SwapFree"] != 2097148 {
		t.Errorf("SwapFree = %d, want 2097148", info["SwapFree"])
	}
}

func TestSizeMap(t *testing.T) {
	m := sizeMap(1000, 250)

	total, _ := m.Get("total_bytes")
	if !total.Equal(value.Integer(1024000)) {
		t.Errorf("total_bytes = %s, want 1024000", total)
	}
	used, _ := m.Get("used_bytes")
	if !used.Equal(value.Integer(768000)) {
		t.Errorf("used_bytes = %s, want 768000", used)
	}
	capacity, _ := m.Get("capacity")
	if !capacity.Equal(value.Double(75)) {
		t.Errorf("capacity = %s, want 75", capacity)
	}
}

func TestSizeMapZeroTotal(t *testing.T) {
	m := sizeMap(0, 0)
	if _, ok := m.Get("capacity"); ok {
		t.Error("Expected no capacity entry for zero total")
	}
}

func TestParseCPUInfo(t *testing.T) {
	data := `processor	: 0
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU @ 2.20GHz
processor	: 1
vendor_id	: GenuineIntel
model name	: Intel(R) Xeon(R) CPU @ 2.20GHz
`
	count, models := parseCPUInfo(data)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if len(models) != 2 || models[0] != "Intel(R) Xeon(R) CPU @ 2.20GHz" {
		t.Errorf("Unexpected models: %v", models)
	}
}

func TestParseResolvConfDomain(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"domain directive", "nameserver 1.1.1.1\ndomain corp.example.com\n", "corp.example.com"},
		{"search directive", "search internal.example.com example.com\n", "internal.example.com"},
		{"neither", "nameserver 8.8.8.8\n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseResolvConfDomain(tt.data); got != tt.want {
				t.Errorf("parseResolvConfDomain() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKernelResolverDerivedFactsFirst(t *testing.T) {
	c := newTestCollection()
	register(t, c, NewKernelResolver)

	// Request the derived facts before their uname source. Deriving them
	// through the collection would hit the resolver's reentrancy guard and
	// poison kernelrelease as absent.
	major, ok := c.Get("kernelmajversion")
	if !ok {
		t.Fatal("Expected kernelmajversion to resolve")
	}
	version, ok := c.Get("kernelversion")
	if !ok {
		t.Fatal("Expected kernelversion to resolve")
	}
	release, ok := c.Get("kernelrelease")
	if !ok {
		t.Fatal("Expected kernelrelease to resolve")
	}

	rel := string(release.(value.String))
	if !strings.HasPrefix(rel, string(major.(value.String))) {
		t.Errorf("kernelmajversion %s is not a prefix of kernelrelease %s", major, release)
	}
	if !strings.HasPrefix(rel, string(version.(value.String))) {
		t.Errorf("kernelversion %s is not a prefix of kernelrelease %s", version, release)
	}
	if kernel, ok := c.Get("kernel"); !ok || kernel.Equal(value.String("")) {
		t.Errorf("Expected non-empty kernel, got %v", kernel)
	}
}

func TestNetworkingResolverFqdnBeforeHostname(t *testing.T) {
	c := newTestCollection()
	register(t, c, NewNetworkingResolver)

	fqdn, ok := c.Get("fqdn")
	if !ok {
		t.Fatal("Expected fqdn to resolve")
	}
	host, ok := c.Get("hostname")
	if !ok {
		t.Fatal("Expected hostname to resolve after fqdn")
	}
	short := string(host.(value.String))
	if short == "" {
		t.Fatal("Expected non-empty hostname")
	}
	if !strings.HasPrefix(string(fqdn.(value.String)), short) {
		t.Errorf("fqdn %s does not start with hostname %s", fqdn, host)
	}
}

func TestSystemResolverFromOSRelease(t *testing.T) {
	overridePath(t, &osReleasePath, `NAME="Ubuntu"
ID=ubuntu
ID_LIKE=debian
VERSION_ID="24.04"
`)
	c := newTestCollection()
	c.Add("kernel", value.String("Linux"))
	register(t, c, NewSystemResolver)

	if v, ok := c.Get("operatingsystem"); !ok || !v.Equal(value.String("Ubuntu")) {
		t.Errorf("operatingsystem = %v, want Ubuntu", v)
	}
	if v, ok := c.Get("osfamily"); !ok || !v.Equal(value.String("debian")) {
		t.Errorf("osfamily = %v, want debian", v)
	}
	if v, ok := c.Get("operatingsystemrelease"); !ok || !v.Equal(value.String("24.04")) {
		t.Errorf("operatingsystemrelease = %v, want 24.04", v)
	}

	osFact, ok := c.Get("os")
	if !ok {
		t.Fatal("Expected os to resolve")
	}
	release, _ := osFact.(*value.Map).Get("release")
	major, _ := release.(*value.Map).Get("major")
	if !major.Equal(value.String("24")) {
		t.Errorf("os.release.major = %s, want 24", major)
	}
}

func TestSystemResolverConfinedToLinux(t *testing.T) {
	overridePath(t, &osReleasePath, "NAME=Ubuntu\nID=ubuntu\n")
	c := newTestCollection()
	c.Add("kernel", value.String("Darwin"))
	register(t, c, NewSystemResolver)

	if _, ok := c.Get("operatingsystem"); ok {
		t.Error("Expected operatingsystem to be absent off Linux")
	}
}

func TestMemoryResolverAggregate(t *testing.T) {
	overridePath(t, &memInfoPath, `MemTotal:       1000 kB
MemAvailable:    250 kB
SwapTotal:       500 kB
SwapFree:        500 kB
`)
	c := newTestCollection()
	c.Add("kernel", value.String("Linux"))
	register(t, c, NewMemoryResolver)

	v, ok := c.Get("memory")
	if !ok {
		t.Fatal("Expected memory to resolve")
	}
	m := v.(*value.Map)

	system, _ := m.Get("system")
	total, _ := system.(*value.Map).Get("total_bytes")
	if !total.Equal(value.Integer(1024000)) {
		t.Errorf("system.total_bytes = %s, want 1024000", total)
	}

	swap, _ := m.Get("swap")
	used, _ := swap.(*value.Map).Get("used_bytes")
	if !used.Equal(value.Integer(0)) {
		t.Errorf("swap.used_bytes = %s, want 0", used)
	}
}

func TestProcessorsResolverFromCPUInfo(t *testing.T) {
	overridePath(t, &cpuInfoPath, `processor	: 0
model name	: Test CPU
processor	: 1
model name	: Test CPU
`)
	c := newTestCollection()
	c.Add("kernel", value.String("Linux"))
	register(t, c, NewProcessorsResolver)

	if v, ok := c.Get("processorcount"); !ok || !v.Equal(value.Integer(2)) {
		t.Errorf("processorcount = %v, want 2", v)
	}
	v, ok := c.Get("processors")
	if !ok {
		t.Fatal("Expected processors to resolve")
	}
	count, _ := v.(*value.Map).Get("count")
	if !count.Equal(value.Integer(2)) {
		t.Errorf("processors.count = %s, want 2", count)
	}
}

func TestUptimeResolverSystemUptimeFirst(t *testing.T) {
	c := newTestCollection()
	c.Add("kernel", value.String("Linux"))
	register(t, c, NewUptimeResolver)

	v, ok := c.Get("system_uptime")
	if !ok {
		t.Fatal("Expected system_uptime to resolve")
	}
	secs, _ := v.(*value.Map).Get("seconds")
	if int64(secs.(value.Integer)) < 0 {
		t.Errorf("system_uptime.seconds = %s, want >= 0", secs)
	}
	if _, ok := c.Get("uptime_seconds"); !ok {
		t.Error("Expected uptime_seconds to resolve after system_uptime")
	}
}

func TestIdentityResolver(t *testing.T) {
	c := newTestCollection()
	register(t, c, NewIdentityResolver)

	v, ok := c.Get("identity")
	if !ok {
		t.Fatal("Expected identity to resolve")
	}
	if _, ok := v.(*value.Map).Get("uid"); !ok {
		t.Errorf("Expected identity map to carry uid, got %s", v)
	}
}

func TestRegisterAllResolveAll(t *testing.T) {
	c := newTestCollection()
	if err := RegisterAll(c); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}

	// ResolveAll visits names in sorted order, so derived facts like
	// kernelmajversion and fqdn are requested before the facts they are
	// computed from. All of them must still resolve.
	c.ResolveAll()

	for _, name := range []string{
		"fqdn", "hostname",
		"kernel", "kernelmajversion", "kernelrelease", "kernelversion",
		"system_uptime", "uptime_seconds",
	} {
		if _, ok := c.Get(name); !ok {
			t.Errorf("Expected %s to resolve in a full run", name)
		}
	}
}

func TestUptimeMap(t *testing.T) {
	m := uptimeMap(200000)
	secs, _ := m.Get("seconds")
	hours, _ := m.Get("hours")
	days, _ := m.Get("days")

	if !secs.Equal(value.Integer(200000)) {
		t.Errorf("seconds = %s", secs)
	}
	if !hours.Equal(value.Integer(55)) {
		t.Errorf("hours = %s, want 55", hours)
	}
	if !days.Equal(value.Integer(2)) {
		t.Errorf("days = %s, want 2", days)
	}
}
