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
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Validate checks candidate against the constraints of t. It is a pure function of
// its arguments and never looks at the attribute's current value, so the same
// check serves staging and the final pre-write check. Rejections are returned as
// *ValidationError.
func Validate(t Type, candidate string) error {
	switch t := t.(type) {
	case Enumeration:
		return validateEnumeration(t, candidate)
	case Integer:
		return validateInteger(t, candidate)
	case String:
		return validateLength(t.MinLength, t.MaxLength, candidate, candidate)
	case Password:
		return validateLength(t.MinLength, t.MaxLength, candidate, "")
	default:
		return fmt.Errorf("%w: %T", ErrUnknownType, t)
	}
}

func validateEnumeration(t Enumeration, candidate string) error {
	// Exact, case sensitive match.
	if slices.Contains(t.PossibleValues, candidate) {
		return nil
	}
	return &ValidationError{
		Candidate:  candidate,
		Constraint: "possible values " + strings.Join(t.PossibleValues, PossibleValuesDelimiter),
		Err:        ErrNotInEnumeration,
	}
}

func validateInteger(t Integer, candidate string) error {
	// Only the canonical form the kernel reads back is accepted: no sign on
	// positive values, no leading zeros, no "-0".
	value, err := strconv.ParseInt(candidate, 10, 64)
	if err != nil || strconv.FormatInt(value, 10) != candidate {
		return &ValidationError{Candidate: candidate, Constraint: "base-10 integer", Err: ErrNotANumber}
	}

	if value < t.Minimum || value > t.Maximum {
		return &ValidationError{
			Candidate:  candidate,
			Constraint: fmt.Sprintf("minimum %d, maximum %d", t.Minimum, t.Maximum),
			Err:        ErrOutOfRange,
		}
	}

	if t.ScalarIncrement <= 0 {
		return nil
	}

	// value-minimum fits in an uint64 once value is known to be in range, the
	// wrapping subtraction yields it even when it overflows int64.
	offset := uint64(value) - uint64(t.Minimum)
	if offset%uint64(t.ScalarIncrement) != 0 {
		return &ValidationError{
			Candidate:  candidate,
			Constraint: fmt.Sprintf("minimum %d, scalar increment %d", t.Minimum, t.ScalarIncrement),
			Err:        ErrNotOnIncrementBoundary,
		}
	}
	return nil
}

// validateLength checks the length in characters of candidate. shown is the
// candidate as it may appear in the error, empty for secrets.
func validateLength(minLength, maxLength uint32, candidate, shown string) error {
	n := utf8.RuneCountInString(candidate)
	if uint64(n) >= uint64(minLength) && uint64(n) <= uint64(maxLength) {
		return nil
	}

	constraint := fmt.Sprintf("length %d, min length %d, max length %d", n, minLength, maxLength)
	if maxLength == UnboundedLength {
		constraint = fmt.Sprintf("length %d, min length %d", n, minLength)
	}
	return &ValidationError{Candidate: shown, Constraint: constraint, Err: ErrLengthOutOfBounds}
}
