package pool

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailcore/mailproto/pool/poolmetrics"
	"github.com/mailcore/mailproto/protoerr"
	"github.com/mailcore/mailproto/retry"
)

// entry tags a pooled Session with a uuid.UUID identity for logging and
// metrics correlation, the way eSlider-mail-archive tags its long-lived
// sync records.
type entry[S Session] struct {
	id      uuid.UUID
	session S
}

// Option configures a Pool at construction time.
type Option[S Session] func(*Pool[S])

// WithLogger sets the pool's structured logger.
func WithLogger[S Session](logger *slog.Logger) Option[S] {
	return func(p *Pool[S]) { p.logger = logger }
}

// WithMetrics attaches a Prometheus collector for acquire/release/wait
// instrumentation.
func WithMetrics[S Session](m *poolmetrics.Collector) Option[S] {
	return func(p *Pool[S]) { p.metrics = m }
}

// WithClassifier overrides the ErrorClassifier WithRetryingConnection
// consults; the default is retry.DefaultClassifier.
func WithClassifier[S Session](c retry.ErrorClassifier) Option[S] {
	return func(p *Pool[S]) { p.classifier = c }
}

// Pool is a fair, bounded pool of authenticated Sessions.
type Pool[S Session] struct {
	factory    ServiceFactory[S]
	auth       Authenticator[S]
	config     ServerConfig
	creds      Credentials
	logger     *slog.Logger
	metrics    *poolmetrics.Collector
	classifier retry.ErrorClassifier

	mu        sync.Mutex
	available []entry[S]
	inUse     int
	waiters   *list.List // of chan struct{}
	closed    bool
}

// New creates a Pool. factory dials a fresh, unauthenticated Session;
// authenticator (may be nil for unauthenticated use) logs it in with
// creds before it is handed to a caller.
func New[S Session](factory ServiceFactory[S], authenticator Authenticator[S], config ServerConfig, creds Credentials, opts ...Option[S]) *Pool[S] {
	p := &Pool[S]{
		factory:    factory,
		auth:       authenticator,
		config:     config,
		creds:      creds,
		logger:     slog.Default(),
		classifier: retry.DefaultClassifier,
		waiters:    list.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a healthy, authenticated connection per spec.md §4.8:
// reuse an idle one (discarding stale ones), else create one if under
// the bound, else park fairly in a FIFO queue until a slot frees up.
func (p *Pool[S]) Acquire(ctx context.Context) (S, error) {
	start := time.Now()
	var zero S

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.recordFailed("pool-closed")
			return zero, protoerr.New(protoerr.PoolClosed, "pool: closed")
		}

		if n := len(p.available); n > 0 {
			e := p.available[n-1]
			p.available = p.available[:n-1]
			p.updateGaugesLocked()
			p.mu.Unlock()

			if !e.session.Connected() || !e.session.Authenticated() {
				e.session.Close()
				if p.metrics != nil {
					p.metrics.StaleDiscarded()
				}
				p.logger.Debug("pool: discarded stale connection", "id", e.id)
				continue
			}

			p.mu.Lock()
			p.inUse++
			p.updateGaugesLocked()
			p.mu.Unlock()
			p.recordSucceeded(start)
			return e.session, nil
		}

		if p.inUse+len(p.available) < p.config.MaxConnections {
			p.inUse++
			p.updateGaugesLocked()
			p.mu.Unlock()

			session, err := p.createAndAuthenticate(ctx)
			if err != nil {
				p.mu.Lock()
				p.inUse--
				p.updateGaugesLocked()
				p.notifyOneWaiterLocked()
				p.mu.Unlock()
				p.recordFailed("create-failed")
				return zero, err
			}
			p.recordSucceeded(start)
			return session, nil
		}

		wake := make(chan struct{}, 1)
		elem := p.waiters.PushBack(wake)
		p.mu.Unlock()

		select {
		case <-wake:
			// a slot or an idle connection freed up; loop back and try again
		case <-ctx.Done():
			p.mu.Lock()
			p.waiters.Remove(elem)
			p.mu.Unlock()
			return zero, ctx.Err()
		}
	}
}

// TryAcquire is a non-blocking Acquire: it never parks in the waiter
// queue, returning a PoolExhausted error immediately instead when no idle
// connection is available and the pool is already at MaxConnections.
func (p *Pool[S]) TryAcquire(ctx context.Context) (S, error) {
	var zero S
	start := time.Now()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.recordFailed("pool-closed")
			return zero, protoerr.New(protoerr.PoolClosed, "pool: closed")
		}

		if n := len(p.available); n > 0 {
			e := p.available[n-1]
			p.available = p.available[:n-1]
			p.updateGaugesLocked()
			p.mu.Unlock()

			if !e.session.Connected() || !e.session.Authenticated() {
				e.session.Close()
				if p.metrics != nil {
					p.metrics.StaleDiscarded()
				}
				continue
			}

			p.mu.Lock()
			p.inUse++
			p.updateGaugesLocked()
			p.mu.Unlock()
			p.recordSucceeded(start)
			return e.session, nil
		}

		if p.inUse+len(p.available) < p.config.MaxConnections {
			p.inUse++
			p.updateGaugesLocked()
			p.mu.Unlock()

			session, err := p.createAndAuthenticate(ctx)
			if err != nil {
				p.mu.Lock()
				p.inUse--
				p.updateGaugesLocked()
				p.notifyOneWaiterLocked()
				p.mu.Unlock()
				p.recordFailed("create-failed")
				return zero, err
			}
			p.recordSucceeded(start)
			return session, nil
		}

		p.mu.Unlock()
		p.recordFailed("exhausted")
		return zero, protoerr.New(protoerr.PoolExhausted, "pool: at max_connections, no idle connection available")
	}
}

// Release returns session to the idle pool, waking the oldest waiter (if
// any) so fairness is preserved — the waiter re-enters Acquire's loop
// rather than receiving the connection directly, so a losing race simply
// re-queues instead of leaking a wakeup.
func (p *Pool[S]) Release(session S) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		session.Close()
		return
	}
	p.inUse--
	p.available = append(p.available, entry[S]{id: uuid.New(), session: session})
	p.notifyOneWaiterLocked()
	p.updateGaugesLocked()
	p.mu.Unlock()
	if p.metrics != nil {
		p.metrics.Released()
	}
}

// Discard closes session without returning it to the idle pool — used
// when the caller's ErrorClassifier reports RequiresReconnection, per
// spec.md §4.9: the connection is presumed broken and must be recreated,
// not reused.
func (p *Pool[S]) Discard(session S) {
	session.Close()
	p.mu.Lock()
	p.inUse--
	p.notifyOneWaiterLocked()
	p.updateGaugesLocked()
	p.mu.Unlock()
}

// Close drains idle connections and fails every parked waiter with a
// protoerr.PoolClosed error (surfaced when each waiter's Acquire call re-checks
// p.closed). In-flight checked-out connections are unaffected; their
// owners should Release or Discard them normally.
func (p *Pool[S]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	avail := p.available
	p.available = nil

	var wakers []chan struct{}
	for e := p.waiters.Front(); e != nil; e = e.Next() {
		wakers = append(wakers, e.Value.(chan struct{}))
	}
	p.waiters.Init()
	p.mu.Unlock()

	for _, e := range avail {
		e.session.Close()
	}
	for _, ch := range wakers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

// WithConnection is scoped acquisition: acquire, run fn, release even on
// error or panic.
func (p *Pool[S]) WithConnection(ctx context.Context, fn func(S) error) error {
	session, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(session)
	return fn(session)
}

// WithRetryingConnection wraps WithConnection in the pool's configured
// RetryPolicy, consulting the classifier to decide whether a failure is
// worth retrying and whether the connection that produced it should be
// discarded rather than returned to the idle pool.
func (p *Pool[S]) WithRetryingConnection(ctx context.Context, fn func(S) error) error {
	return retry.Do(ctx, p.config.RetryPolicy, p.classifier, func() error {
		session, err := p.Acquire(ctx)
		if err != nil {
			return err
		}

		runErr := fn(session)
		if runErr != nil && p.classifier.Classify(runErr) == retry.RequiresReconnection {
			p.Discard(session)
		} else {
			p.Release(session)
		}
		if runErr != nil && p.metrics != nil {
			p.metrics.RetryAttempt(p.classifier.Classify(runErr).String())
		}
		return runErr
	})
}

func (p *Pool[S]) createAndAuthenticate(ctx context.Context) (S, error) {
	var zero S
	session, err := p.factory(ctx)
	if err != nil {
		return zero, protoerr.Wrap(protoerr.TransportWrite, err, "pool: creating connection")
	}
	if p.auth != nil {
		if err := p.auth.Authenticate(ctx, session, p.creds); err != nil {
			session.Close()
			return zero, protoerr.Wrap(protoerr.AuthenticationFailed, err, "pool: authenticating connection")
		}
	}
	return session, nil
}

// notifyOneWaiterLocked wakes the oldest parked waiter, if any. Must be
// called with p.mu held.
func (p *Pool[S]) notifyOneWaiterLocked() {
	front := p.waiters.Front()
	if front == nil {
		return
	}
	p.waiters.Remove(front)
	ch := front.Value.(chan struct{})
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (p *Pool[S]) updateGaugesLocked() {
	if p.metrics == nil {
		return
	}
	p.metrics.SetInUse(p.inUse)
	p.metrics.SetAvailable(len(p.available))
}

func (p *Pool[S]) recordSucceeded(start time.Time) {
	if p.metrics != nil {
		p.metrics.AcquireSucceeded(time.Since(start))
	}
}

func (p *Pool[S]) recordFailed(reason string) {
	if p.metrics != nil {
		p.metrics.AcquireFailed(reason)
	}
}

// Len returns the number of idle connections currently held.
func (p *Pool[S]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.available)
}

// InUse returns the number of connections currently checked out.
func (p *Pool[S]) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
