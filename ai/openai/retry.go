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


package openai

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/sqlrecall/ai"
)

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryPolicy runs an operation up to maxRetries+1 times with exponential
// backoff. All state lives in the policy value and the call frame, so
// concurrent callers never share backoff.
type retryPolicy struct {
	maxRetries int
	interval   time.Duration
	sleep      sleepFunc
	logger     *slog.Logger
}

// backoff returns the wait before retry number n (1-based):
// interval * 2^(n-1).
func (p retryPolicy) backoff(n int) time.Duration {
	delay := p.interval
	for i := 1; i < n; i++ {
		delay *= 2
	}
	return delay
}

// do calls op until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is done. It returns the number of attempts made
// and the last error.
func (p retryPolicy) do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	maxAttempts := p.maxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				p.logger.Debug("embedding request succeeded after retry", "attempt", attempt)
			}
			return attempt, nil
		}

		if !isRetryable(lastErr) || ctx.Err() != nil {
			return attempt, lastErr
		}

		if attempt == maxAttempts {
			break
		}

		wait := p.backoff(attempt)
		p.logger.Warn("embedding request failed, retrying",
			"attempt", attempt, "maxAttempts", maxAttempts, "wait", wait, "err", lastErr)

		if err := sleep(ctx, wait); err != nil {
			return attempt, err
		}
	}

	return maxAttempts, lastErr
}

// isRetryable reports whether err is worth another attempt. Transient
// network failures and malformed responses are; permanent HTTP statuses
// are not.
func isRetryable(err error) bool {
	return errors.Is(err, ai.ErrTransientNetwork) || errors.Is(err, ai.ErrMalformedResponse)
}
