package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"adcraft/internal/logging"
)

// TimeoutError reports that a provider call exceeded its deadline. The
// underlying call may still complete after the driver stops waiting;
// its result is discarded.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider call %q timed out after %s", e.Op, e.Timeout)
}

// Invoke wraps a provider call with a timeout race. On deadline, the
// caller gets a *TimeoutError; a response that arrives later is thrown
// away by the abandoned goroutine-free call path (the context cancels
// the transport).
func Invoke(ctx context.Context, client TextClient, op, systemPrompt, userPrompt string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logging.Get(logging.CategoryProvider)
	start := time.Now()

	text, err := client.CompleteWithSystem(callCtx, systemPrompt, userPrompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			log.Warn("Call %s timed out after %s", op, timeout)
			return "", &TimeoutError{Op: op, Timeout: timeout}
		}
		return "", fmt.Errorf("provider call %q failed: %w", op, err)
	}

	log.Debug("Call %s completed in %s (%d bytes)", op, time.Since(start).Round(time.Millisecond), len(text))
	return text, nil
}
