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

package retry

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var errTransient = errors.New("device busy")

func fakeSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	sleep = func(d time.Duration) { slept = append(slept, d) }
	t.Cleanup(func() { sleep = time.Sleep })
	return &slept
}

func transient(err error) bool { return errors.Is(err, errTransient) }

func TestRun(t *testing.T) {
	fakeSleep(t)
	ctr := 0

	fn := func() error {
		ctr++
		if ctr == 2 {
			return nil
		}
		return errTransient
	}

	policy := Policy{MaxAttempts: 5, BackoffFactor: 2, Jitter: time.Millisecond, ShouldRetry: transient}

	if err := Run(policy, fn); err != nil {
		t.Errorf("Run(%+v, fn) failed unexpectedly, err: %+v", policy, err)
	}

	if want := 2; ctr != want {
		t.Errorf("Run(%+v, fn) ran %d times, should've returned after %d", policy, ctr, want)
	}
}

func TestRunExhausted(t *testing.T) {
	slept := fakeSleep(t)
	ctr := 0

	fn := func() error {
		ctr++
		return errTransient
	}

	policy := Policy{MaxAttempts: 4, BackoffFactor: 3, Jitter: 10 * time.Millisecond, ShouldRetry: transient}

	if err := Run(policy, fn); !errors.Is(err, errTransient) {
		t.Errorf("Run(%+v, fn) = %v, want %v", policy, err, errTransient)
	}
	if ctr != policy.MaxAttempts {
		t.Errorf("Run(%+v, fn) ran %d times, want %d", policy, ctr, policy.MaxAttempts)
	}

	want := []time.Duration{10 * time.Millisecond, 30 * time.Millisecond, 90 * time.Millisecond}
	if diff := cmp.Diff(want, *slept); diff != "" {
		t.Errorf("Run(%+v, fn) backoff returned unexpected diff (-want +got):\n%s", policy, diff)
	}
}

func TestRunNotRetriable(t *testing.T) {
	fakeSleep(t)
	ctr := 0
	permanent := errors.New("permission denied")

	fn := func() error {
		ctr++
		return permanent
	}

	tests := []struct {
		name   string
		policy Policy
	}{
		{"nil_should_retry", Policy{MaxAttempts: 3}},
		{"should_retry_false", Policy{MaxAttempts: 3, ShouldRetry: transient}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctr = 0
			if err := Run(tc.policy, fn); err != permanent {
				t.Errorf("Run(%+v, fn) = %v, want %v", tc.policy, err, permanent)
			}
			if ctr != 1 {
				t.Errorf("Run(%+v, fn) ran %d times, want 1", tc.policy, ctr)
			}
		})
	}
}

func TestRunNoAttempts(t *testing.T) {
	if err := Run(Policy{}, func() error { return nil }); !errors.Is(err, ErrNoAttempts) {
		t.Errorf("Run(Policy{}, fn) = %v, want %v", err, ErrNoAttempts)
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		policy  Policy
		want    time.Duration
	}{
		{0, Policy{BackoffFactor: 2, Jitter: time.Second}, time.Second},
		{2, Policy{BackoffFactor: 2, Jitter: time.Second}, 4 * time.Second},
		{3, Policy{BackoffFactor: 1, Jitter: time.Second}, time.Second},
		{3, Policy{Jitter: time.Second}, time.Second},
	}

	for _, tc := range tests {
		if got := backoff(tc.attempt, tc.policy); got != tc.want {
			t.Errorf("backoff(%d, %+v) = %v, want %v", tc.attempt, tc.policy, got, tc.want)
		}
	}
}
