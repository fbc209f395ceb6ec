package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/wadjakorntonsri/go-tracking-links/pkg/core/domain"
)

// retryPolicy retries transient storage failures with exponential backoff.
type retryPolicy struct {
	attempts  int
	baseDelay time.Duration
}

func (p retryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) || attempt >= p.attempts {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(p.backoff(attempt)):
		}
	}
}

// backoff is base * 2^(attempt-1) with ±25% jitter, capped at 16x base.
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.baseDelay <= 0 {
		return 0
	}
	d := p.baseDelay << (attempt - 1)
	if quarter := int64(d / 4); quarter > 0 {
		d += time.Duration(rand.Int64N(2*quarter+1) - quarter)
	}
	if ceiling := p.baseDelay * 16; d > ceiling {
		d = ceiling
	}
	return d
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, domain.ErrLinkNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
