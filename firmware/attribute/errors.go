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

package attribute

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when the type file is missing or holds a token
	// this package does not model.
	ErrUnknownType = errors.New("unknown attribute type")
	// ErrMalformedConstraint is returned when a constraint file required by the
	// type is missing or its content can't be used.
	ErrMalformedConstraint = errors.New("malformed constraint")
	// ErrMissingCurrentValue is returned when current_value can't be found.
	ErrMissingCurrentValue = errors.New("missing current value")
)

var (
	// ErrNotInEnumeration rejects a candidate that is not one of the possible values.
	ErrNotInEnumeration = errors.New("value is not one of the possible values")
	// ErrNotANumber rejects an integer candidate that is not a base-10 integer.
	ErrNotANumber = errors.New("value is not a number")
	// ErrOutOfRange rejects an integer candidate outside [minimum, maximum].
	ErrOutOfRange = errors.New("value is out of range")
	// ErrNotOnIncrementBoundary rejects an integer candidate that is not reachable
	// from the minimum in scalar increments.
	ErrNotOnIncrementBoundary = errors.New("value is not on an increment boundary")
	// ErrLengthOutOfBounds rejects a string or password candidate by length.
	ErrLengthOutOfBounds = errors.New("value length is out of bounds")
)

// ParseError reports why an attribute directory could not be parsed.
type ParseError struct {
	// Attribute is the attribute (directory) name.
	Attribute string
	// File is the property file at fault, empty if not specific to one.
	File string
	// Err wraps one of ErrUnknownType, ErrMalformedConstraint or
	// ErrMissingCurrentValue.
	Err error
}

func (e *ParseError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("attribute %q: %v", e.Attribute, e.Err)
	}
	return fmt.Sprintf("attribute %q, file %q: %v", e.Attribute, e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports why a candidate value was rejected.
type ValidationError struct {
	// Candidate is the rejected value, empty for secrets.
	Candidate string
	// Constraint describes the constraint that failed, i.e. "minimum 0, maximum 100".
	Constraint string
	// Err is one of the ErrNotInEnumeration, ErrNotANumber, ErrOutOfRange,
	// ErrNotOnIncrementBoundary or ErrLengthOutOfBounds sentinels.
	Err error
}

func (e *ValidationError) Error() string {
	if e.Candidate == "" {
		return fmt.Sprintf("%v (%s)", e.Err, e.Constraint)
	}
	return fmt.Sprintf("%q: %v (%s)", e.Candidate, e.Err, e.Constraint)
}

func (e *ValidationError) Unwrap() error { return e.Err }
