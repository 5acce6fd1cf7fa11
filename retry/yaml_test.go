package retry

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestPolicyYAMLRoundTrip(t *testing.T) {
	p := Default()

	data, err := yaml.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}

	var got Policy
	if err := yaml.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if got.MaxRetries != p.MaxRetries || got.InitialDelay != p.InitialDelay ||
		got.MaxDelay != p.MaxDelay || got.BackoffMultiplier != p.BackoffMultiplier ||
		got.UseJitter != p.UseJitter {
		t.Errorf("round trip = %+v, want %+v", got, p)
	}
}

func TestPolicyYAMLHumanReadableDurations(t *testing.T) {
	data, err := yaml.Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !contains(string(data), "1s") || !contains(string(data), "30s") {
		t.Errorf("Marshal() = %s, want human-readable durations like 1s/30s", data)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestPolicyYAMLRejectsMalformedDuration(t *testing.T) {
	_, err := yaml.Marshal(Default())
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	bad := []byte("max_retries: 3\ninitial_delay: not-a-duration\nmax_delay: 30s\nbackoff_multiplier: 2\nuse_jitter: true\n")
	var p Policy
	if err := yaml.Unmarshal(bad, &p); err == nil {
		t.Fatal("Unmarshal() error = nil, want error for malformed duration")
	}
}
