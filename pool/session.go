// Package pool implements a generic, fair connection pool for
// client-side mail sessions (IMAP, POP3, SMTP): bounded concurrent
// connections, a FIFO waiter queue for callers beyond the bound,
// staleness discard on reuse, and scoped acquisition with an optional
// retry policy.
package pool

import "context"

// Session is the minimal surface a pooled connection must expose.
// pop3.Session, smtp.Session, and client.Client each implement it.
type Session interface {
	// Connected reports whether the underlying transport is still usable.
	Connected() bool
	// Authenticated reports whether the session has completed login.
	Authenticated() bool
	// Close releases the underlying transport.
	Close() error
}

// ServiceFactory dials and returns a new, unauthenticated Session.
type ServiceFactory[S Session] func(ctx context.Context) (S, error)

// Authenticator logs a freshly dialed Session in with the pool's
// configured Credentials.
type Authenticator[S Session] interface {
	Authenticate(ctx context.Context, session S, creds Credentials) error
}

// AuthenticatorFunc adapts a plain function to Authenticator.
type AuthenticatorFunc[S Session] func(ctx context.Context, session S, creds Credentials) error

// Authenticate calls f(ctx, session, creds).
func (f AuthenticatorFunc[S]) Authenticate(ctx context.Context, session S, creds Credentials) error {
	return f(ctx, session, creds)
}

// Credentials are the login credentials a pool's Authenticator uses to
// bring a freshly dialed Session into the authenticated state.
type Credentials struct {
	Username    string
	Password    string
	AccessToken string
}
