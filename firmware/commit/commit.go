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

// Package commit validates candidate values, writes them to sysfs and verifies the
// firmware took them.
//
// Every attribute goes through Staged, Validating, Writing and Verifying and ends
// Committed, Rejected or WriteFailed. sysfs has no multi attribute transaction:
// attributes in a batch are committed independently, in order, and a failure is
// never rolled back nor stops the rest of the batch. Once Writing starts the
// attribute runs to Verifying or WriteFailed, there is no cancellation.
package commit

import (
	"errors"
	"fmt"
	"time"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/store"
	"github.com/GoogleCloudPlatform/firmware-attributes/retry"
	"github.com/GoogleCloudPlatform/firmware-attributes/utils"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

// State is a step of the commit of one attribute.
type State int

const (
	// StateStaged is the initial state of a candidate.
	StateStaged State = iota
	// StateValidating checks the candidate against the attribute constraints.
	StateValidating
	// StateWriting writes the candidate to sysfs.
	StateWriting
	// StateVerifying re-reads the attribute and compares.
	StateVerifying
	// StateCommitted is terminal, the firmware holds the candidate.
	StateCommitted
	// StateRejected is terminal, nothing was written.
	StateRejected
	// StateWriteFailed is terminal, the write failed or did not stick.
	StateWriteFailed
)

var stateNames = map[State]string{
	StateStaged:      "staged",
	StateValidating:  "validating",
	StateWriting:     "writing",
	StateVerifying:   "verifying",
	StateCommitted:   "committed",
	StateRejected:    "rejected",
	StateWriteFailed: "write failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultRetryPolicy retries transient write errors a couple of times.
var DefaultRetryPolicy = retry.Policy{
	MaxAttempts:   3,
	BackoffFactor: 2,
	Jitter:        100 * time.Millisecond,
}

// Outcome is the result of a successful commit.
type Outcome struct {
	// RequiresReboot reports the firmware applies the attribute at next boot.
	RequiresReboot bool
	// RequiresReauthentication is set after writing a password attribute.
	RequiresReauthentication bool
}

// Result is the per attribute result of a batch.
type Result struct {
	Name    string
	State   State
	Outcome Outcome
	// Err is an *Error for Rejected and WriteFailed results, nil if Committed.
	Err error
}

// Engine commits edits to the attributes of a store.
type Engine struct {
	store  *store.Store
	policy retry.Policy
	// write is swapped by unit tests to inject OS level failures.
	write func(dir, property, value string, secret bool) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy overrides DefaultRetryPolicy. The policy's ShouldRetry is always
// replaced, only transient errors are ever retried.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// New returns an Engine committing to s.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  s,
		policy: DefaultRetryPolicy,
		write:  writeProperty,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.policy.ShouldRetry = isTransient
	return e
}

func writeProperty(dir, property, value string, secret bool) error {
	if secret {
		return utils.WriteSecretProperty(dir, property, value)
	}
	return utils.WriteProperty(dir, property, value)
}

// Commit validates, writes and verifies candidate for the named attribute. A
// failure is returned as an *Error.
func (e *Engine) Commit(name, candidate string) (Outcome, error) {
	r := e.commit(name, candidate)
	return r.Outcome, r.Err
}

// CommitAll commits edits in the given order and returns one result per edit, in
// the same order.
func (e *Engine) CommitAll(edits []store.Edit) []Result {
	res := make([]Result, 0, len(edits))
	for _, edit := range edits {
		res = append(res, e.commit(edit.Name, edit.Value))
	}
	return res
}

// CommitPending commits the values staged in the store, in discovery order.
func (e *Engine) CommitPending() []Result {
	return e.CommitAll(e.store.Pending())
}

func (e *Engine) commit(name, candidate string) Result {
	res := Result{Name: name, State: StateStaged}

	fail := func(state State, err *Error) Result {
		res.State = state
		res.Err = err
		logger.Warningf("%v", err)
		return res
	}

	attr, ok := e.store.Get(name)
	if !ok {
		return fail(StateRejected, &Error{Attribute: name, Kind: KindNotFound, Err: store.ErrNotFound})
	}

	res.State = StateValidating
	if err := attribute.Validate(attr.Type, candidate); err != nil {
		return fail(StateRejected, &Error{Attribute: name, Kind: KindRejected, Err: err})
	}

	res.State = StateWriting
	err := retry.Run(e.policy, func() error {
		return e.write(attr.Path, attribute.PropertyCurrentValue, candidate, attr.IsSecret())
	})
	if err != nil {
		return fail(StateWriteFailed, &Error{Attribute: name, Kind: classifyWriteError(err), Err: err})
	}

	res.State = StateVerifying
	if err := e.store.Refresh(name); err != nil {
		if !errors.Is(err, store.ErrPendingValueInvalidated) {
			return fail(StateWriteFailed, &Error{Attribute: name, Kind: KindIO, Err: err})
		}
		logger.Infof("Commit of %q invalidated its staged value: %v", name, err)
	}

	fresh, _ := e.store.Get(name)
	if !verified(&fresh, candidate) {
		return fail(StateWriteFailed, &Error{Attribute: name, Kind: KindVerificationMismatch, Want: shown(&attr, candidate), Got: shown(&attr, fresh.CurrentValue)})
	}

	changed := attr.IsSecret() || attr.CurrentValue != candidate
	if changed && e.store.PendingReboot() {
		if err := e.store.MarkRebootRequired(name); err != nil {
			return fail(StateWriteFailed, &Error{Attribute: name, Kind: KindIO, Err: err})
		}
		fresh, _ = e.store.Get(name)
	}
	if fresh.PendingValue != nil && *fresh.PendingValue == candidate {
		e.store.Unstage(name)
	}

	res.State = StateCommitted
	res.Outcome = Outcome{
		RequiresReboot:           fresh.RequiresReboot,
		RequiresReauthentication: attr.IsSecret(),
	}
	logger.Infof("Committed %q, requires reboot: %t", name, res.Outcome.RequiresReboot)
	return res
}

// verified compares the read back value with the written one. Firmware does not
// read passwords back, an empty read back counts as verified for them.
func verified(fresh *attribute.Attribute, candidate string) bool {
	if fresh.CurrentValue == candidate {
		return true
	}
	return fresh.IsSecret() && fresh.CurrentValue == ""
}

func shown(a *attribute.Attribute, value string) string {
	if a.IsSecret() {
		return "<hidden>"
	}
	return value
}
