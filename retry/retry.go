// Package retry implements the pool's backoff-with-jitter retry policy:
// fixed presets, a pluggable error classifier, and a Do loop that bounds
// the number of attempts on transient failure.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Classified is implemented by errors that know their own retry
// classification, so DefaultClassifier can dispatch on the error's type
// rather than on string matching or an import of the originating package.
type Classified interface {
	Classification() Classification
}

// DefaultClassifier treats a context deadline/cancellation as Transient,
// delegates to any error in the chain implementing Classified, and falls
// back to Permanent for anything it doesn't recognize (the safe default:
// don't retry an error this layer can't reason about).
var DefaultClassifier ErrorClassifier = ErrorClassifierFunc(defaultClassify)

func defaultClassify(err error) Classification {
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	var c Classified
	if errors.As(err, &c) {
		return c.Classification()
	}
	return Permanent
}

// Classification is what an ErrorClassifier says about a failure.
type Classification int

const (
	// Transient errors are worth retrying against the same connection.
	Transient Classification = iota
	// Permanent errors should not be retried.
	Permanent
	// RequiresReconnection means the connection itself is unusable; the
	// caller should discard it and retry against a fresh one.
	RequiresReconnection
)

func (c Classification) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	case RequiresReconnection:
		return "requires-reconnection"
	default:
		return "unknown"
	}
}

// ErrorClassifier decides how a retry loop should treat an error.
type ErrorClassifier interface {
	Classify(err error) Classification
}

// ErrorClassifierFunc adapts a plain function to ErrorClassifier.
type ErrorClassifierFunc func(err error) Classification

// Classify calls f(err).
func (f ErrorClassifierFunc) Classify(err error) Classification { return f(err) }

// RandSource abstracts randomness so jitter is deterministically
// testable; nil uses math/rand/v2's global source.
type RandSource interface {
	Float64() float64
}

type defaultRand struct{}

func (defaultRand) Float64() float64 { return rand.Float64() }

// Policy is a retry/backoff configuration: max_retries, initial_delay,
// max_delay, backoff_multiplier, use_jitter. See MarshalYAML/UnmarshalYAML
// in yaml.go for its on-disk representation.
type Policy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	UseJitter         bool

	// RandSource is not marshaled; nil uses the global source.
	RandSource RandSource
}

// None returns the zero-retry preset.
func None() Policy {
	return Policy{MaxRetries: 0}
}

// Default returns the 3-retry, 1s->30s doubling preset.
func Default() Policy {
	return Policy{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		UseJitter:         true,
	}
}

// Aggressive returns the 5-retry, 0.5s->30s doubling preset.
func Aggressive() Policy {
	return Policy{
		MaxRetries:        5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
		UseJitter:         true,
	}
}

// Linear returns a preset with a fixed delay between every attempt (no
// growth, no jitter).
func Linear(maxRetries int, delay time.Duration) Policy {
	return Policy{
		MaxRetries:        maxRetries,
		InitialDelay:      delay,
		MaxDelay:          delay,
		BackoffMultiplier: 1,
		UseJitter:         false,
	}
}

// Delay returns the backoff duration before attempt k (0-indexed):
// min(initial * multiplier^k, max), plus a uniform jitter in [0, base/4]
// when UseJitter is set.
func (p Policy) Delay(k int) time.Duration {
	base := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(k))
	if max := float64(p.MaxDelay); max > 0 && base > max {
		base = max
	}
	if !p.UseJitter || base <= 0 {
		return time.Duration(base)
	}
	r := p.RandSource
	if r == nil {
		r = defaultRand{}
	}
	jitter := r.Float64() * base / 4
	return time.Duration(base + jitter)
}

// ErrRetriesExhausted wraps the last error after every retry attempt failed.
type ErrRetriesExhausted struct {
	Attempts int
	Last     error
}

func (e *ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("retry: exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ErrRetriesExhausted) Unwrap() error { return e.Last }

// Do invokes fn, retrying on Transient/RequiresReconnection errors per the
// policy until classifier reports Permanent, attempts are exhausted, or
// ctx is canceled. It invokes fn at most MaxRetries+1 times on transient
// failure, exactly once on permanent failure.
func Do(ctx context.Context, p Policy, classifier ErrorClassifier, fn func() error) error {
	var last error
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		last = err

		class := classifier.Classify(err)
		if class == Permanent || attempt >= p.MaxRetries {
			if attempt >= p.MaxRetries && class != Permanent {
				return &ErrRetriesExhausted{Attempts: attempt + 1, Last: last}
			}
			return last
		}

		delay := p.Delay(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), last)
		case <-timer.C:
		}
	}
}
