// Package backoff computes capped exponential retry delays and offers a
// bounded in-process retry loop for transient failures.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"
)

// Policy doubles the delay after every failure, starting at Base and never
// exceeding Max. A Max below Base is treated as Base.
type Policy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultPolicy is used for record retries when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{Base: 30 * time.Second, Max: time.Hour}
}

// Delay returns the wait before attempt number n+1 after n consecutive
// failures (n >= 1). The sequence is non-decreasing and capped at Max.
func (p Policy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if p.Base <= 0 {
		return 0
	}

	ceiling := max(p.Max, p.Base)

	d := p.Base
	for i := 1; i < failures; i++ {
		if d >= ceiling/2 {
			return ceiling
		}
		d *= 2
	}
	return min(d, ceiling)
}

// IsRetryable reports whether err looks transient: timeouts, resets,
// refused connections, EAGAIN-style I/O errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.ETIMEDOUT, syscall.ECONNRESET, syscall.ECONNABORTED,
			syscall.ECONNREFUSED, syscall.ENETDOWN, syscall.ENETUNREACH, syscall.EHOSTUNREACH,
			syscall.EIO, syscall.EBUSY:
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timeout", "timed out", "connection reset", "connection refused",
		"broken pipe", "no route to host", "temporary failure",
		"resource temporarily unavailable", "i/o error",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Retry runs op up to attempts times, sleeping p.Delay(n) between tries.
// Non-retryable errors and context cancellation stop the loop early.
func Retry(ctx context.Context, p Policy, attempts int, op func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for n := 1; n <= attempts; n++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !IsRetryable(err) || n == attempts {
			break
		}

		t := time.NewTimer(p.Delay(n))
		select {
		case <-ctx.Done():
			t.Stop()
			return errors.Join(err, ctx.Err())
		case <-t.C:
		}
	}

	if IsRetryable(err) {
		return fmt.Errorf("gave up after %d attempts: %w", attempts, err)
	}
	return err
}
