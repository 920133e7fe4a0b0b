// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package retry re-runs whole operations with exponential backoff.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidAttempts is returned when attempts is not positive.
var ErrInvalidAttempts = errors.New("attempts must be greater than zero")

// DefaultMaxDelay caps the wait between attempts.
const DefaultMaxDelay = 30 * time.Second

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. WithBackoff returns it unwrapped.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithBackoff calls op until it succeeds, returns a Permanent error, or
// attempts calls have been made. The wait before attempt n is
// baseDelay * 2^(n-2), capped at DefaultMaxDelay. The error from the last
// attempt is returned.
func WithBackoff(ctx context.Context, attempts int, baseDelay time.Duration, op func(ctx context.Context, attempt int) error) error {
	if attempts <= 0 {
		return ErrInvalidAttempts
	}
	logger := slog.Default().With("component", "retry")

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx, attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("operation failed, will retry", "attempt", attempt, "attempts", attempts, "delay", delay, "err", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, DefaultMaxDelay)
	}

	return lastErr
}
