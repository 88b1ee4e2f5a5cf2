package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
)

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt     int
		expected    time.Duration
		description string
	}{
		{0, 0, "No attempt"},
		{1, 100 * time.Millisecond, "First attempt"},
		{2, 200 * time.Millisecond, "Second attempt"},
		{4, 800 * time.Millisecond, "Fourth attempt"},
		{5, 1 * time.Second, "Fifth attempt (capped at max)"},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			if delay := backoff.NextDelay(test.attempt); delay != test.expected {
				t.Errorf("Expected delay %v, got %v", test.expected, delay)
			}
		})
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 20; i++ {
		delay := backoff.NextDelay(2)
		if delay < 140*time.Millisecond || delay > 260*time.Millisecond {
			t.Fatalf("Delay %v outside jitter bounds", delay)
		}
	}
}

func TestLinearBackoff(t *testing.T) {
	backoff := &LinearBackoff{
		BaseDelay: 10 * time.Second,
		Increment: 10 * time.Second,
		MaxDelay:  25 * time.Second,
	}

	if got := backoff.Uncapped(3); got != 30*time.Second {
		t.Errorf("Uncapped(3) = %v, want 30s", got)
	}
	if got := backoff.NextDelay(2); got != 20*time.Second {
		t.Errorf("NextDelay(2) = %v, want 20s", got)
	}
	if got := backoff.NextDelay(3); got != 25*time.Second {
		t.Errorf("NextDelay(3) = %v, want capped 25s", got)
	}
}

func TestDoRetriesTransientErrors(t *testing.T) {
	rec := &recordingSleeper{}
	calls := 0

	err := Do(func() error {
		calls++
		if calls < 3 {
			return errs.FromStatus(503, "http://img")
		}
		return nil
	}, &Config{
		MaxAttempts: 5,
		Backoff:     &ExponentialBackoff{BaseDelay: time.Second, MaxDelay: time.Minute, Multiplier: 2},
		Sleep:       rec.sleep,
		Logger:      logger.NewNopLogger(),
	})

	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if len(rec.delays) != 2 || rec.delays[0] != time.Second || rec.delays[1] != 2*time.Second {
		t.Errorf("Unexpected delays %v", rec.delays)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(func() error {
		calls++
		return errs.FromStatus(404, "http://img")
	}, &Config{
		MaxAttempts: 5,
		Backoff:     DefaultExponentialBackoff(),
		Sleep:       (&recordingSleeper{}).sleep,
	})

	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Expected not found error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single call, got %d", calls)
	}
}

func TestDoMaxAttempts(t *testing.T) {
	calls := 0
	_, err := DoWithResult(func() (int, error) {
		calls++
		return 0, errors.New("flaky")
	}, &Config{
		MaxAttempts: 2,
		Backoff:     DefaultExponentialBackoff(),
		Sleep:       (&recordingSleeper{}).sleep,
	})

	if err == nil || calls != 2 {
		t.Fatalf("Expected failure after 2 calls, got err=%v calls=%d", err, calls)
	}
}

func TestPolicySucceedsAfterTwoFailures(t *testing.T) {
	rec := &recordingSleeper{}
	policy := DefaultPolicy()
	policy.Sleep = rec.sleep

	parses, checks := 0, 0
	res := policy.Run(context.Background(),
		func(ctx context.Context, n int) error {
			parses++
			if parses <= 2 {
				return errs.StructureMismatch("missing metadata line")
			}
			return nil
		},
		func(ctx context.Context) (bool, error) {
			checks++
			return true, nil
		},
	)

	if res.Outcome != Succeeded || res.Attempts != 3 {
		t.Fatalf("Unexpected result %+v", res)
	}
	if parses != 3 {
		t.Errorf("Expected 3 parses, got %d", parses)
	}
	if checks != 0 {
		t.Errorf("Deletion check ran %d times inside the grace period", checks)
	}
	want := []time.Duration{10 * time.Second, 20 * time.Second}
	if len(rec.delays) != 2 || rec.delays[0] != want[0] || rec.delays[1] != want[1] {
		t.Errorf("Expected delays %v, got %v", want, rec.delays)
	}
}

func TestPolicySkipsDeletedPage(t *testing.T) {
	rec := &recordingSleeper{}
	policy := DefaultPolicy()
	policy.Sleep = rec.sleep

	checks := 0
	res := policy.Run(context.Background(),
		func(ctx context.Context, n int) error {
			return errs.StructureMismatch("missing title")
		},
		func(ctx context.Context) (bool, error) {
			checks++
			return true, nil
		},
	)

	if res.Outcome != Skipped {
		t.Fatalf("Expected skipped, got %v", res.Outcome)
	}
	if res.Attempts != 3 || checks != 1 {
		t.Errorf("Expected deletion check on 3rd failure, attempts=%d checks=%d", res.Attempts, checks)
	}
}

func TestPolicyKeepsRetryingLivePage(t *testing.T) {
	rec := &recordingSleeper{}
	policy := DefaultPolicy()
	policy.MaxDelay = 35 * time.Second
	policy.Sleep = rec.sleep

	calls := 0
	res := policy.Run(context.Background(),
		func(ctx context.Context, n int) error {
			calls++
			if calls < 6 {
				return errs.StructureMismatch("missing title")
			}
			return nil
		},
		func(ctx context.Context) (bool, error) { return false, nil },
	)

	if res.Outcome != Succeeded {
		t.Fatalf("Expected success, got %v", res.Outcome)
	}
	last := rec.delays[len(rec.delays)-1]
	if last != 35*time.Second {
		t.Errorf("Expected delay capped at 35s, got %v", last)
	}
}

func TestPolicyMaxAttempts(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxAttempts = 2
	policy.Sleep = (&recordingSleeper{}).sleep

	res := policy.Run(context.Background(),
		func(ctx context.Context, n int) error { return errs.StructureMismatch("x") },
		nil,
	)

	if res.Outcome != Failed || res.Attempts != 2 {
		t.Fatalf("Unexpected result %+v", res)
	}
}

func TestPolicyFatalOnOtherErrors(t *testing.T) {
	policy := DefaultPolicy()
	policy.Sleep = (&recordingSleeper{}).sleep
	boom := errors.New("browser crashed")

	res := policy.Run(context.Background(),
		func(ctx context.Context, n int) error { return boom },
		nil,
	)

	if res.Outcome != Fatal || !errors.Is(res.Err, boom) {
		t.Fatalf("Unexpected result %+v", res)
	}
}

func TestPolicyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := DefaultPolicy()
	policy.Sleep = Wait

	res := policy.Run(ctx,
		func(ctx context.Context, n int) error {
			cancel()
			return errs.StructureMismatch("x")
		},
		nil,
	)

	if res.Outcome != Fatal || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("Unexpected result %+v", res)
	}
}

func TestOutcomeString(t *testing.T) {
	if Skipped.String() != "skipped" || Outcome(9).String() != "outcome(9)" {
		t.Error("Unexpected outcome strings")
	}
}
