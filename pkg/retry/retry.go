// Package retry runs idempotent operations under an explicit policy.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/agentstation/orgsync/pkg/clock"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff is the delay before the second attempt. It doubles per attempt.
	Backoff time.Duration
	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
	// Jitter adds up to this much random delay per retry.
	Jitter time.Duration
	// Retryable decides whether an error is retried. Defaults to errors.IsTransient.
	Retryable func(error) bool
	// Clock drives sleeping. Defaults to the real clock.
	Clock clock.Clock
}

// Reads is the default policy for idempotent reads.
func Reads() Policy {
	return Policy{
		MaxAttempts: constants.DefaultReadAttempts,
		Backoff:     constants.RetryBackoff,
		MaxBackoff:  constants.MaxRetryBackoff,
	}
}

// Mutations is the default policy for upserts and deletes: a single attempt.
func Mutations() Policy {
	return Policy{
		MaxAttempts: constants.DefaultMutationAttempts,
		Backoff:     constants.RetryBackoff,
		MaxBackoff:  constants.MaxRetryBackoff,
	}
}

// Once is a policy that never retries.
func Once() Policy { return Policy{MaxAttempts: 1} }

// Delay returns the backoff before the given retry (1-based):
// Backoff * 2^(retry-1), capped at MaxBackoff.
func (p Policy) Delay(retry int) time.Duration {
	if retry <= 0 || p.Backoff <= 0 {
		return 0
	}
	d := time.Duration(float64(p.Backoff) * math.Pow(2, float64(retry-1)))
	if p.MaxBackoff > 0 && (d > p.MaxBackoff || d <= 0) {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		d += time.Duration(rand.Int64N(int64(p.Jitter) + 1)) //nolint:gosec
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.MaxAttempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = errors.IsTransient
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			if err != nil {
				return err
			}
			return cerr
		}

		err = fn(ctx)
		if err == nil || !retryable(err) || attempt == attempts {
			return err
		}

		delay := p.Delay(attempt)
		logging.FromContext(ctx).Debug().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("Retrying after transient error")

		if serr := clk.Sleep(ctx, delay); serr != nil {
			return err
		}
	}
	return err
}
