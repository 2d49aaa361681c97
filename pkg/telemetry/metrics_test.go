package telemetry

import (
	"strings"
	"testing"
)

func TestMetricsSummary(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: true, Namespace: "cfacter"})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	m.RecordResolutionExecuted("kernel")
	m.RecordResolutionExecuted("kernel")
	m.RecordFactResolved()
	m.RecordFactAbsent()
	m.RecordCacheHit()
	m.RecordOverride()
	m.RecordError("circular_resolution")

	summary, err := m.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}

	expected := []string{
		`cfacter_resolutions_executed_total{resolver="kernel"} 2`,
		`cfacter_facts_resolved_total 1`,
		`cfacter_facts_absent_total 1`,
		`cfacter_cache_hits_total 1`,
		`cfacter_environment_overrides_total 1`,
		`cfacter_errors_by_class_total{class="circular_resolution"} 1`,
	}
	for _, want := range expected {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// Record methods must be no-ops, not panics.
	m.RecordResolutionExecuted("kernel")
	m.RecordFactResolved()

	summary, err := m.Summary()
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary != "" {
		t.Errorf("Expected empty summary, got %q", summary)
	}
	if m.Registry() != nil {
		t.Error("Expected nil registry when disabled")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordFactResolved()
	m.RecordError("producer_failure")
	if m.Registry() != nil {
		t.Error("Expected nil registry on nil instance")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  string
	}{
		{"trace", "trace"},
		{"debug", "debug"},
		{"warn", "warn"},
		{"bogus", "info"},
		{"", "info"},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.level).String(); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %s, want %s", tt.level, got, tt.want)
		}
	}
}
