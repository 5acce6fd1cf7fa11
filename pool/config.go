package pool

import "github.com/mailcore/mailproto/retry"

// ServerConfig is the static configuration of a pooled server endpoint:
// address (for logging/metrics; dialing itself is the ServiceFactory's
// job), the concurrent-connection bound, and the retry policy for
// WithRetryingConnection. It has no YAML methods of its own: it round-trips
// through its plain struct tags, and its RetryPolicy field through
// retry.Policy's MarshalYAML/UnmarshalYAML, so an embedding
// application can persist pool tuning the way eSlider-mail-archive
// persists its account store.
type ServerConfig struct {
	Address        string       `yaml:"address"`
	MaxConnections int          `yaml:"max_connections"`
	RetryPolicy    retry.Policy `yaml:"retry_policy"`
}

// DefaultServerConfig returns a ServerConfig with a small bound and the
// retry package's default backoff preset.
func DefaultServerConfig(address string) ServerConfig {
	return ServerConfig{
		Address:        address,
		MaxConnections: 4,
		RetryPolicy:    retry.Default(),
	}
}
