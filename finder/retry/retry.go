// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry retries calls to upstream APIs that fail with transient, capacity related errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

var (
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")
	ErrRetriesExhausted   = errors.New("retries exhausted")
)

type Policy struct {
	// MaxAttempts counts the first call, so 4 means one call and three retries.
	MaxAttempts int
	BaseDelay   time.Duration
	// IsRetryable decides whether an error is worth another attempt. Defaults to IsTransient.
	IsRetryable func(error) bool
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		IsRetryable: IsTransient,
	}
}

var transientMarkers = []string{"503", "overloaded", "429", "rate limit", "unavailable", "resource_exhausted"}

// IsTransient reports whether err looks like an overload or rate limit response from the upstream.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

type exhaustedError struct {
	attempts int
	err      error
}

func (e *exhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %s", ErrRetriesExhausted, e.attempts, e.err)
}

func (e *exhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.err}
}

// Do calls op until it succeeds, fails with an error the policy doesn't consider retryable, or the policy runs out
// of attempts. The wait before retry i (counting from zero) is BaseDelay * 2^i.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts <= 0 {
		return zero, ErrInvalidMaxAttempts
	}
	retryable := policy.IsRetryable
	if retryable == nil {
		retryable = IsTransient
	}

	delay := policy.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		result, err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.Printf("Succeeded after %d attempts", attempt)
			}
			return result, nil
		}
		if !retryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}
		log.Printf("Transient error on attempt %d/%d, retrying in %s: %v", attempt, policy.MaxAttempts, delay, err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return zero, &exhaustedError{attempts: policy.MaxAttempts, err: lastErr}
}
