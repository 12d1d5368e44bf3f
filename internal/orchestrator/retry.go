package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rainlanguage/orderbook-trades/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	DEFAULT_MAX_ATTEMPTS       = 5
	DEFAULT_INITIAL_BACKOFF_MS = 500
	DEFAULT_MAX_BACKOFF_MS     = 30000
)

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DEFAULT_MAX_ATTEMPTS
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DEFAULT_INITIAL_BACKOFF_MS * time.Millisecond
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = max(p.InitialBackoff, DEFAULT_MAX_BACKOFF_MS*time.Millisecond)
	}
	return p
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	// the attempt ceiling bounds retries, not wall time
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// retryWithData calls fn until it succeeds, returns an error isTransient
// rejects, the attempt ceiling is reached or ctx is done. The last error is
// returned unwrapped so the caller can classify it.
func retryWithData[T any](ctx context.Context, policy RetryPolicy, operation string, isTransient func(error) bool, fn func() (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		attempt++
		result, err := fn()
		if err != nil && !isTransient(err) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}
	notify := func(err error, wait time.Duration) {
		metrics.FetchRetries.WithLabelValues(operation).Inc()
		log.Warn().Err(err).Str("operation", operation).Int("attempt", attempt).Int("max_attempts", policy.MaxAttempts).Dur("backoff", wait).Msg("Transient failure, retrying")
	}
	return backoff.RetryNotifyWithData(op, policy.newBackOff(ctx), notify)
}
