package services

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wadjakorntonsri/go-tracking-links/pkg/ports"
)

const (
	DefaultTrackingTimeout = 2 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryDelay      = 25 * time.Millisecond
)

// Option configures the services in this package. Options a service has no
// use for are ignored.
type Option func(*options)

type options struct {
	now          func() time.Time
	logger       logrus.FieldLogger
	cache        ports.LinkCache
	codeLength   int
	trackTimeout time.Duration
	retry        retryPolicy
}

func newOptions(opts []Option) options {
	o := options{
		now:          time.Now,
		logger:       logrus.StandardLogger(),
		codeLength:   DefaultCodeLength,
		trackTimeout: DefaultTrackingTimeout,
		retry:        retryPolicy{attempts: defaultRetryAttempts, baseDelay: defaultRetryDelay},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCache puts a link cache in front of code lookups on the redirect path.
func WithCache(cache ports.LinkCache) Option {
	return func(o *options) { o.cache = cache }
}

func WithCodeLength(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.codeLength = n
		}
	}
}

// WithTrackingTimeout bounds how long a redirect waits on recording its click.
func WithTrackingTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.trackTimeout = d
		}
	}
}

// WithRetry sets how many times a counter increment is attempted.
func WithRetry(attempts int, baseDelay time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.retry = retryPolicy{attempts: attempts, baseDelay: baseDelay}
		}
	}
}
