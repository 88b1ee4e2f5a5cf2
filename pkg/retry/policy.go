package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "cyarchive/pkg/errors"
	"cyarchive/pkg/logger"
)

// Outcome classifies how a retried post attempt ended
type Outcome int

const (
	// Succeeded means the attempt eventually returned nil
	Succeeded Outcome = iota
	// Skipped means the page was confirmed deleted; callers mark it complete
	Skipped
	// Failed means MaxAttempts ran out; callers leave it for the next run
	Failed
	// Fatal means a non-retryable error or cancellation stopped the loop
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is what Policy.Run reports back
type Result struct {
	Outcome  Outcome
	Attempts int
	Err      error
}

// Policy retries structure mismatches with a linearly growing delay. Once the
// delay would exceed GraceThreshold, every further failure first asks whether
// the page is a deletion page.
type Policy struct {
	Initial        time.Duration
	Increment      time.Duration
	MaxDelay       time.Duration
	GraceThreshold time.Duration
	// MaxAttempts of 0 retries until success or deletion
	MaxAttempts int

	// RetryIf defaults to structure mismatches only
	RetryIf func(error) bool
	Sleep   Sleeper
	Logger  logger.Logger
}

// DefaultPolicy returns 10s, 20s, 30s... capped at five minutes, deletion
// checks starting once the delay passes 20s
func DefaultPolicy() Policy {
	return Policy{
		Initial:        10 * time.Second,
		Increment:      10 * time.Second,
		MaxDelay:       5 * time.Minute,
		GraceThreshold: 20 * time.Second,
	}
}

// IsStructureMismatch is the default Policy retry predicate
func IsStructureMismatch(err error) bool {
	return errors.Is(err, errs.ErrStructureMismatch)
}

// Attempt performs one try; a nil error ends the loop
type Attempt func(ctx context.Context, n int) error

// DeletionCheck reports whether the target has been removed
type DeletionCheck func(ctx context.Context) (bool, error)

// Run drives attempt until it succeeds, the deletion check fires, attempts
// run out, or a non-retryable error occurs
func (p Policy) Run(ctx context.Context, attempt Attempt, deleted DeletionCheck) Result {
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = IsStructureMismatch
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Wait
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	backoff := &LinearBackoff{BaseDelay: p.Initial, Increment: p.Increment, MaxDelay: p.MaxDelay}

	for n := 1; ; n++ {
		err := attempt(ctx, n)
		if err == nil {
			return Result{Outcome: Succeeded, Attempts: n}
		}
		if ctx.Err() != nil {
			return Result{Outcome: Fatal, Attempts: n, Err: ctx.Err()}
		}
		if !retryIf(err) {
			return Result{Outcome: Fatal, Attempts: n, Err: err}
		}
		if p.MaxAttempts > 0 && n >= p.MaxAttempts {
			return Result{Outcome: Failed, Attempts: n, Err: err}
		}

		if backoff.Uncapped(n) > p.GraceThreshold && deleted != nil {
			gone, checkErr := deleted(ctx)
			if checkErr != nil {
				log.WithError(checkErr).Warn("Deletion check failed")
			} else if gone {
				return Result{Outcome: Skipped, Attempts: n, Err: err}
			}
		}

		delay := backoff.NextDelay(n)
		log.WithFields(map[string]interface{}{
			"attempt": n,
			"delay":   delay,
		}).WithError(err).Warn("Retrying after backoff")

		if err := sleep(ctx, delay); err != nil {
			return Result{Outcome: Fatal, Attempts: n, Err: err}
		}
	}
}
