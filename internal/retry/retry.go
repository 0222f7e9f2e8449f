// Package retry provides a small retry-with-backoff executor for fallible
// operations, used by the network client.
package retry

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxAttempts is the total number of tries, including the first.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the delay before the first retry; it doubles on
	// each subsequent attempt.
	DefaultBaseDelay = 1 * time.Second
)

// Strategy retries an operation with exponential backoff. The zero value is
// not usable; construct one with New.
type Strategy struct {
	maxAttempts int
	baseDelay   time.Duration
	retryable   func(error) bool
}

// Option configures a Strategy.
type Option func(*Strategy)

// WithMaxAttempts overrides the total number of attempts.
func WithMaxAttempts(n int) Option {
	return func(s *Strategy) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBaseDelay overrides the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Strategy) {
		if d > 0 {
			s.baseDelay = d
		}
	}
}

// WithRetryable installs a predicate deciding whether a failure is worth
// retrying. When the predicate returns false the failure is returned
// immediately. The default retries every failure.
func WithRetryable(fn func(error) bool) Option {
	return func(s *Strategy) {
		if fn != nil {
			s.retryable = fn
		}
	}
}

// New builds a Strategy with the default attempts and backoff, adjusted by
// the given options.
func New(opts ...Option) *Strategy {
	s := &Strategy{
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		retryable:   func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do runs fn until it succeeds, the failure is non-retryable, the attempts
// are exhausted or ctx is done. The last failure is returned unchanged so the
// caller's error type survives the retries. The op name is only used for
// logging.
func (s *Strategy) Do(ctx context.Context, op string, fn func() error) error {
	delay := s.baseDelay

	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !s.retryable(err) {
			log.Warnf("%s failed with non-retryable error: %v", op, err)
			return err
		}
		if attempt == s.maxAttempts {
			break
		}

		log.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", op, attempt, s.maxAttempts, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}

	log.Errorf("%s failed after %d attempts: %v", op, s.maxAttempts, err)
	return err
}
