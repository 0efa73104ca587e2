package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(calls *int) func(context.Context, time.Duration) error {
	return func(context.Context, time.Duration) error {
		*calls++
		return nil
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var sleeps, calls int
	p := New(3, time.Second, WithSleep(noSleep(&sleeps)))
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 3 || sleeps != 2 {
		t.Fatalf("calls=%d sleeps=%d", calls, sleeps)
	}
}

func TestDoExhaustionWrapsLastError(t *testing.T) {
	var sleeps, calls int
	boom := errors.New("boom")
	p := New(3, time.Second, WithSleep(noSleep(&sleeps)))
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if calls != 3 || sleeps != 2 {
		t.Fatalf("calls=%d sleeps=%d", calls, sleeps)
	}
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	var sleeps, calls int
	bad := errors.New("bad input")
	p := New(5, time.Second,
		WithSleep(noSleep(&sleeps)),
		WithRetryable(func(err error) bool { return !errors.Is(err, bad) }),
	)
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return bad
	})
	if err != bad {
		t.Fatalf("expected bare error, got %v", err)
	}
	if calls != 1 || sleeps != 0 {
		t.Fatalf("calls=%d sleeps=%d", calls, sleeps)
	}
}

func TestDoPermanent(t *testing.T) {
	var calls int
	gone := errors.New("gone")
	_, err := DoValue(context.Background(), New(3, 0), func(context.Context) (int, error) {
		calls++
		return 0, Permanent(gone)
	})
	if err != gone || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}

func TestDoCancelledDuringSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int
	err := Do(ctx, New(3, time.Hour), func(context.Context) error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
