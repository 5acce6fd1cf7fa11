package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

func TestDefaultPresetValues(t *testing.T) {
	p := Default()
	if p.MaxRetries != 3 || p.InitialDelay != time.Second || p.MaxDelay != 30*time.Second {
		t.Errorf("Default() = %+v", p)
	}
}

func TestAggressivePresetValues(t *testing.T) {
	p := Aggressive()
	if p.MaxRetries != 5 || p.InitialDelay != 500*time.Millisecond {
		t.Errorf("Aggressive() = %+v", p)
	}
}

func TestNonePresetNeverRetries(t *testing.T) {
	p := None()
	if p.MaxRetries != 0 {
		t.Errorf("None().MaxRetries = %d, want 0", p.MaxRetries)
	}
}

func TestDelayBackoffDoubling(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 2, UseJitter: false}
	if d := p.Delay(0); d != time.Second {
		t.Errorf("Delay(0) = %v, want 1s", d)
	}
	if d := p.Delay(1); d != 2*time.Second {
		t.Errorf("Delay(1) = %v, want 2s", d)
	}
	if d := p.Delay(2); d != 4*time.Second {
		t.Errorf("Delay(2) = %v, want 4s", d)
	}
}

func TestDelayClampsToMax(t *testing.T) {
	p := Policy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, BackoffMultiplier: 2, UseJitter: false}
	if d := p.Delay(10); d != 5*time.Second {
		t.Errorf("Delay(10) = %v, want clamped to 5s", d)
	}
}

func TestDelayJitterAddsUpToQuarterBase(t *testing.T) {
	p := Policy{InitialDelay: 4 * time.Second, MaxDelay: 30 * time.Second, BackoffMultiplier: 1, UseJitter: true, RandSource: fixedRand{v: 1.0}}
	d := p.Delay(0)
	want := 4*time.Second + 4*time.Second/4
	if d != want {
		t.Errorf("Delay(0) with jitter=1.0 = %v, want %v", d, want)
	}
}

type classifierFunc func(error) Classification

func (f classifierFunc) Classify(err error) Classification { return f(err) }

func TestDoSucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Default(), classifierFunc(func(error) Classification { return Transient }), func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestDoRetriesTransientUpToMaxRetriesPlusOne(t *testing.T) {
	calls := 0
	wantErr := errors.New("boom")
	p := Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffMultiplier: 1}
	err := Do(context.Background(), p, classifierFunc(func(error) Classification { return Transient }), func() error {
		calls++
		return wantErr
	})
	if err == nil {
		t.Fatal("Do() error = nil, want exhausted error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (max_retries=2 -> k+1=3 attempts)", calls)
	}
}

func TestDoStopsImmediatelyOnPermanent(t *testing.T) {
	calls := 0
	wantErr := errors.New("fatal")
	p := Policy{MaxRetries: 5, InitialDelay: time.Millisecond}
	err := Do(context.Background(), p, classifierFunc(func(error) Classification { return Permanent }), func() error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Do() error = %v, want %v", err, wantErr)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (permanent error is attempted once, never retried)", calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	p := Policy{MaxRetries: 5, InitialDelay: time.Hour}
	err := Do(ctx, p, classifierFunc(func(error) Classification { return Transient }), func() error {
		calls++
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Do() error = nil, want context cancellation error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
