// Package retry provides the single retry policy used by every pipeline
// stage that calls out to an external capability or tool.
package retry

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds an operation with a fixed attempt budget and a delay between
// attempts. When MaxDelay exceeds Delay the sleep is drawn uniformly from
// [Delay, MaxDelay]; otherwise Delay is used as-is. A nil Permanent treats
// every error as retryable.
type Policy struct {
	Attempts  int
	Delay     time.Duration
	MaxDelay  time.Duration
	Permanent func(error) bool
}

// Do runs op until it succeeds, the attempt budget is spent, Permanent
// reports true, or ctx is done. The last attempt's error is returned
// unwrapped so callers can keep matching sentinels with errors.Is.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var bo backoff.BackOff
	if p.MaxDelay > p.Delay {
		bo = &bandBackOff{min: p.Delay, max: p.MaxDelay}
	} else {
		bo = backoff.NewConstantBackOff(p.Delay)
	}
	bo = backoff.WithMaxRetries(bo, uint64(attempts-1))
	bo = backoff.WithContext(bo, ctx)

	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		err := op(ctx)
		if err == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

// bandBackOff sleeps a uniformly random duration inside [min, max]. Download
// strategies use this to mimic human-paced request spacing.
type bandBackOff struct {
	min time.Duration
	max time.Duration
}

func (b *bandBackOff) NextBackOff() time.Duration {
	return b.min + time.Duration(rand.Int64N(int64(b.max-b.min)+1))
}

func (b *bandBackOff) Reset() {}
