package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_Success(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	ctx := context.Background()
	err := Do(ctx, operation)

	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got: %d", attempts)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	ctx := context.Background()
	err := Do(ctx, operation, WithBaseDelay(10*time.Millisecond))

	if err != nil {
		t.Errorf("Expected no error after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("persistent error")
	}

	ctx := context.Background()
	err := Do(ctx, operation,
		WithMaxAttempts(3),
		WithBaseDelay(10*time.Millisecond))

	if err == nil {
		t.Error("Expected error after exhausting attempts, got nil")
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got: %d", attempts)
	}
}

func TestDo_ClassifierAbort(t *testing.T) {
	t.Parallel()
	attempts := 0
	denied := errors.New("permission denied")
	operation := func() error {
		attempts++
		return denied
	}

	classify := func(err error) Decision {
		if errors.Is(err, denied) {
			return Abort
		}
		return Retry
	}

	ctx := context.Background()
	err := Do(ctx, operation,
		WithBaseDelay(10*time.Millisecond),
		WithClassifier(classify))

	if !errors.Is(err, denied) {
		t.Errorf("Expected the original error back, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (classifier aborted), got: %d", attempts)
	}
}

func TestDo_FatalError(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return Fatal(errors.New("fatal error"))
	}

	ctx := context.Background()
	err := Do(ctx, operation, WithBaseDelay(10*time.Millisecond))

	if err == nil {
		t.Error("Expected fatal error, got nil")
	}
	if !IsFatal(err) {
		t.Errorf("Expected fatal error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt (no retries for fatal error), got: %d", attempts)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, operation, WithBaseDelay(10*time.Millisecond))

	if err == nil {
		t.Error("Expected error due to context cancellation, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt before context check, got: %d", attempts)
	}
}

func TestDo_BackoffTiming(t *testing.T) {
	t.Parallel()
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	operation := func() error {
		attempts++
		now := time.Now()
		if attempts > 1 {
			delays = append(delays, now.Sub(lastTime))
		}
		lastTime = now
		return errors.New("error")
	}

	ctx := context.Background()
	_ = Do(ctx, operation,
		WithMaxAttempts(3),
		WithBaseDelay(50*time.Millisecond))

	// Three attempts means two sleeps: base, then base doubled.
	if len(delays) != 2 {
		t.Fatalf("Expected 2 delays, got: %d", len(delays))
	}

	tolerance := 20 * time.Millisecond
	expectedDelays := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
	}

	for i, delay := range delays {
		expected := expectedDelays[i]
		if delay < expected-tolerance || delay > expected+tolerance {
			t.Errorf("Delay %d: expected ~%v, got %v", i+1, expected, delay)
		}
	}
}

func TestDo_MaxDelayCap(t *testing.T) {
	t.Parallel()
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	operation := func() error {
		attempts++
		now := time.Now()
		if attempts > 1 {
			delays = append(delays, now.Sub(lastTime))
		}
		lastTime = now
		if attempts < 5 {
			return errors.New("error")
		}
		return nil
	}

	ctx := context.Background()
	_ = Do(ctx, operation,
		WithMaxAttempts(5),
		WithBaseDelay(10*time.Millisecond),
		WithMaxDelay(20*time.Millisecond))

	maxDelay := 20 * time.Millisecond
	tolerance := 10 * time.Millisecond
	for i, delay := range delays {
		if delay > maxDelay+tolerance {
			t.Errorf("Delay %d exceeded max: %v > %v", i+1, delay, maxDelay)
		}
	}
}

func TestFatal(t *testing.T) {
	t.Parallel()
	t.Run("Nil error", func(t *testing.T) {
		t.Parallel()
		err := Fatal(nil)
		if err != nil {
			t.Errorf("Expected nil, got: %v", err)
		}
	})

	t.Run("Non-nil error", func(t *testing.T) {
		t.Parallel()
		originalErr := errors.New("test error")
		err := Fatal(originalErr)

		if err == nil {
			t.Error("Expected non-nil error")
		}
		if !IsFatal(err) {
			t.Error("Expected error to be fatal")
		}
		if err.Error() != originalErr.Error() {
			t.Errorf("Expected error message %q, got %q", originalErr.Error(), err.Error())
		}
	})
}

func TestIsFatal(t *testing.T) {
	t.Parallel()
	t.Run("Non-fatal error", func(t *testing.T) {
		t.Parallel()
		err := errors.New("regular error")
		if IsFatal(err) {
			t.Error("Expected non-fatal error")
		}
	})

	t.Run("Wrapped fatal error", func(t *testing.T) {
		t.Parallel()
		sentinel := errors.New("sentinel error")
		fatalErr := Fatal(sentinel)
		doubleWrapped := fmt.Errorf("context: %w", fatalErr)

		if !errors.Is(doubleWrapped, sentinel) {
			t.Error("errors.Is should find sentinel through double-wrapped FatalError")
		}
		if !IsFatal(doubleWrapped) {
			t.Error("IsFatal should detect FatalError through fmt.Errorf wrapping")
		}
	})
}
