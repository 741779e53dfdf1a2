package httputil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkgferry/pkg/observability"
)

const (
	// DefaultDelay is the fixed wait between attempts.
	DefaultDelay = 10 * time.Second
	// DefaultMaxAttempts bounds attempts when the policy sets none.
	DefaultMaxAttempts = 30
)

// ErrRetriesExhausted is returned when an operation still fails after the
// policy's attempt or time budget is spent. The last failure is wrapped.
var ErrRetriesExhausted = errors.New("retries exhausted")

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that [Fetcher.Do] returns it without retrying.
// A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with [Permanent].
func IsPermanent(err error) bool {
	return errors.As(err, new(*PermanentError))
}

// Policy controls how a [Fetcher] retries.
type Policy struct {
	// Delay is the fixed wait between attempts. Zero means DefaultDelay.
	Delay time.Duration
	// MaxAttempts is the total number of attempts, including the first.
	// Zero means DefaultMaxAttempts. Ignored when Forever is set.
	MaxAttempts int
	// Forever retries without an attempt ceiling.
	Forever bool
	// Deadline bounds the total time spent on one operation. Zero means
	// no bound beyond MaxAttempts.
	Deadline time.Duration
}

// WithDefaults returns a copy of p with zero fields filled in.
func (p Policy) WithDefaults() Policy {
	if p.Delay <= 0 {
		p.Delay = DefaultDelay
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	return p
}

// Fetcher runs network operations under a retry [Policy].
// A Fetcher is safe for concurrent use.
type Fetcher struct {
	policy Policy
	logger *log.Logger
}

// NewFetcher creates a Fetcher. A nil logger uses log.Default().
func NewFetcher(p Policy, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{policy: p.WithDefaults(), logger: logger}
}

// Policy returns the effective policy, defaults applied.
func (f *Fetcher) Policy() Policy { return f.policy }

// Do calls fn until it succeeds, fails permanently, the context is done,
// or the policy budget is spent. op names the operation in logs and hooks.
func (f *Fetcher) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	hooks := observability.Fetch()
	start := time.Now()

	var deadline time.Time
	if f.policy.Deadline > 0 {
		deadline = start.Add(f.policy.Deadline)
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			hooks.OnSuccess(ctx, op, attempt, time.Since(start))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if IsPermanent(err) {
			return err
		}

		if f.spent(attempt, deadline) {
			hooks.OnGiveUp(ctx, op, attempt, err)
			f.logger.Error("fetch failed, giving up", "op", op, "attempts", attempt, "err", err)
			return fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, op, attempt, err)
		}

		f.logger.Warn("fetch failed, retrying", "op", op, "attempt", attempt, "err", err)
		hooks.OnRetry(ctx, op, attempt, err)

		timer := time.NewTimer(f.policy.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (f *Fetcher) spent(attempt int, deadline time.Time) bool {
	if !deadline.IsZero() && !time.Now().Add(f.policy.Delay).Before(deadline) {
		return true
	}
	return !f.policy.Forever && attempt >= f.policy.MaxAttempts
}

// Fetch is [Fetcher.Do] for operations that produce a value.
func Fetch[T any](ctx context.Context, f *Fetcher, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := f.Do(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
