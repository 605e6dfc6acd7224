// Copyright 2026 Google LLC

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     https://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry re-runs sysfs operations that fail with a transient error.
package retry

import (
	"errors"
	"math"
	"time"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

var (
	// ErrNoAttempts is returned when a policy allows zero attempts.
	ErrNoAttempts = errors.New("retry policy allows no attempts")

	// sleep is swapped by unit tests.
	sleep = time.Sleep
)

// IsRetriable decides if an error returned by the retried function is transient.
type IsRetriable func(error) bool

// Policy configures the retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of times the function is run.
	MaxAttempts int
	// BackoffFactor multiplies the interval after each attempt. Use 1 for a
	// constant interval.
	BackoffFactor float64
	// Jitter is the interval before the first retry.
	Jitter time.Duration
	// ShouldRetry reports if an error is transient. If nil no error is retried,
	// a write that failed for a non-transient reason must not be repeated.
	ShouldRetry IsRetriable
}

// backoff computes the interval before the retry following attempt, that is
// jitter*(backoffFactor^attempt).
func backoff(attempt int, policy Policy) time.Duration {
	factor := policy.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	return time.Duration(float64(policy.Jitter) * math.Pow(factor, float64(attempt)))
}

func isRetriable(policy Policy, err error) bool {
	return policy.ShouldRetry != nil && policy.ShouldRetry(err)
}

// Run executes f until it succeeds, returns a non retriable error or the attempts
// are exhausted. The last error is returned unchanged so callers can still inspect
// it with errors.Is and errors.As.
func Run(policy Policy, f func() error) error {
	if policy.MaxAttempts <= 0 {
		return ErrNoAttempts
	}

	var err error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		if err = f(); err == nil {
			return nil
		}

		if !isRetriable(policy, err) {
			return err
		}

		if attempt+1 >= policy.MaxAttempts {
			logger.Debugf("Exhausted all (%d) attempts, last error: %v", policy.MaxAttempts, err)
			break
		}

		logger.Debugf("Attempt %d failed with transient error: %v", attempt, err)
		sleep(backoff(attempt, policy))
	}
	return err
}
