// Package retry provides utilities for retrying operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Decision is the outcome of classifying an operation error.
type Decision int

const (
	// Abort stops retrying and surfaces the error immediately.
	Abort Decision = iota
	// Retry backs off and runs the operation again.
	Retry
)

// Classifier decides whether an error is worth retrying.
type Classifier func(error) Decision

// Config holds retry configuration.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Classify    Classifier
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// Do executes the operation, retrying with exponential backoff on errors the
// classifier marks retryable. The delay before retry n is BaseDelay * 2^(n-1),
// capped at MaxDelay. Errors wrapped with Fatal() abort immediately regardless
// of the classifier. Context cancellation is respected throughout.
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    2 * time.Minute,
		Classify:    func(error) Decision { return Retry },
	}

	for _, opt := range opts {
		opt(cfg)
	}

	delay := cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		lastErr = err

		if IsFatal(err) {
			return fmt.Errorf("fatal error (not retrying): %w", err)
		}
		if cfg.Classify(err) != Retry {
			return err
		}

		if attempt < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled after %d attempts: %w", attempt, ctx.Err())
			case <-time.After(delay):
				delay *= 2
				if delay > cfg.MaxDelay {
					delay = cfg.MaxDelay
				}
			}
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// WithMaxAttempts sets the total number of attempts (first try included).
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		c.MaxAttempts = n
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Config) {
		c.BaseDelay = d
	}
}

// WithMaxDelay sets the upper bound on the backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithClassifier installs an error classifier. Without one, every non-fatal
// error is retried.
func WithClassifier(fn Classifier) Option {
	return func(c *Config) {
		c.Classify = fn
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
// Operations that encounter fatal errors will not be retried.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
