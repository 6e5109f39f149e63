package aiprovider

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-scan-capture/internal/errors"
	"go-scan-capture/internal/logger"
)

// RetryPolicy governs retries on rate-limited calls. Only rate limit errors
// are retried; every other failure is returned immediately so the router can
// decide whether to fall back.
type RetryPolicy struct {
	// MaxRetries is the number of additional attempts after the first call.
	MaxRetries int
	// BaseDelay scales the exponential backoff: attempt n sleeps
	// 2^(n+1) * base before retrying, where base is the provider's entry in
	// BaseDelays, or BaseDelay when the provider has none.
	BaseDelay time.Duration
	// BaseDelays overrides the backoff base per provider.
	BaseDelays map[Name]time.Duration
}

// DefaultRetryPolicy retries three times. The OpenAI-compatible endpoint gets
// a one second base (waits of 4s, 8s, 16s); Gemini quota errors recover more
// slowly, so its base is two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		BaseDelays: map[Name]time.Duration{
			ProviderOpenAI: time.Second,
			ProviderGemini: 2 * time.Second,
		},
	}
}

func (p RetryPolicy) baseFor(provider Name) time.Duration {
	if d, ok := p.BaseDelays[provider]; ok {
		return d
	}
	return p.BaseDelay
}

// Do runs fn, retrying on rate limit errors with exponential backoff. The
// backoff sleep aborts early when ctx is cancelled. When the retries are
// exhausted the last rate limit error is returned unchanged.
func (p RetryPolicy) Do(ctx context.Context, provider Name, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt+1)) * p.baseFor(provider)
			logger.Logger.WithFields(logrus.Fields{
				"provider": provider,
				"attempt":  attempt,
				"delay":    delay,
			}).Warn("rate limited, backing off")
			if err := sleepCtx(ctx, delay); err != nil {
				return err
			}
		}
		lastErr = fn()
		if lastErr == nil || !apperrors.IsType(lastErr, apperrors.ErrorTypeRateLimit) {
			return lastErr
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
