package retry

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// policyYAML is Policy's on-disk shape: durations as parseable strings
// ("1s", "30s") rather than yaml.v3's default int64-nanoseconds
// representation, matching how nugget-thane-ai-agent keeps its own
// loop-timing config human-readable in YAML and parses it into
// time.Duration afterward.
type policyYAML struct {
	MaxRetries        int     `yaml:"max_retries"`
	InitialDelay      string  `yaml:"initial_delay"`
	MaxDelay          string  `yaml:"max_delay"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	UseJitter         bool    `yaml:"use_jitter"`
}

// MarshalYAML implements yaml.Marshaler.
func (p Policy) MarshalYAML() (interface{}, error) {
	return policyYAML{
		MaxRetries:        p.MaxRetries,
		InitialDelay:      p.InitialDelay.String(),
		MaxDelay:          p.MaxDelay.String(),
		BackoffMultiplier: p.BackoffMultiplier,
		UseJitter:         p.UseJitter,
	}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var raw policyYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	initial, err := time.ParseDuration(raw.InitialDelay)
	if err != nil {
		return fmt.Errorf("retry: initial_delay %q: %w", raw.InitialDelay, err)
	}
	maxDelay, err := time.ParseDuration(raw.MaxDelay)
	if err != nil {
		return fmt.Errorf("retry: max_delay %q: %w", raw.MaxDelay, err)
	}
	p.MaxRetries = raw.MaxRetries
	p.InitialDelay = initial
	p.MaxDelay = maxDelay
	p.BackoffMultiplier = raw.BackoffMultiplier
	p.UseJitter = raw.UseJitter
	return nil
}
