package smtp

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/mailcore/mailproto/protolog"
)

// Option is a functional option for configuring a Session.
type Option func(*Options)

// Options holds all session configuration.
type Options struct {
	// TLSConfig is the TLS configuration for TLS connections and STARTTLS.
	TLSConfig *tls.Config

	// Logger is the structured logger.
	Logger *slog.Logger

	// ReadTimeout is the timeout for reading a single response.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for writing a command.
	WriteTimeout time.Duration

	// LocalName is the domain sent with EHLO/HELO.
	LocalName string

	// ProtoLog, if set, receives a redacted C:/S: trace of the session.
	ProtoLog *protolog.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() *Options {
	return &Options{
		Logger:       slog.Default(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 1 * time.Minute,
		LocalName:    "localhost",
	}
}

// WithTLSConfig sets the TLS configuration.
func WithTLSConfig(config *tls.Config) Option {
	return func(o *Options) {
		o.TLSConfig = config
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithReadTimeout sets the read timeout.
func WithReadTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ReadTimeout = d
	}
}

// WithWriteTimeout sets the write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.WriteTimeout = d
	}
}

// WithLocalName sets the domain sent with EHLO/HELO.
func WithLocalName(name string) Option {
	return func(o *Options) {
		o.LocalName = name
	}
}

// WithProtoLog enables a redacted wire-level trace of the session.
func WithProtoLog(logger *protolog.Logger) Option {
	return func(o *Options) {
		o.ProtoLog = logger
	}
}
