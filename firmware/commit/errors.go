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

package commit

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Kind classifies a commit failure.
type Kind int

const (
	// KindNotFound means the store has no attribute with that name.
	KindNotFound Kind = iota + 1
	// KindRejected means the candidate failed validation, nothing was written.
	KindRejected
	// KindPermissionDenied means the process may not write the attribute.
	KindPermissionDenied
	// KindIO is any other failure writing or re-reading the attribute.
	KindIO
	// KindLocked means the firmware refused the write until the BIOS password is
	// supplied. Authenticate and retry.
	KindLocked
	// KindVerificationMismatch means the firmware holds a different value than
	// the one written after the write.
	KindVerificationMismatch
)

var kindNames = map[Kind]string{
	KindNotFound:             "not found",
	KindRejected:             "rejected",
	KindPermissionDenied:     "permission denied",
	KindIO:                   "i/o error",
	KindLocked:               "locked, re-authentication required",
	KindVerificationMismatch: "verification mismatch",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinels matching an *Error of the corresponding Kind with errors.Is.
var (
	ErrNotFound             = errors.New("attribute not found")
	ErrRejected             = errors.New("candidate rejected")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrIO                   = errors.New("i/o error")
	ErrLocked               = errors.New("locked, re-authentication required")
	ErrVerificationMismatch = errors.New("verification mismatch")
)

var kindSentinels = map[Kind]error{
	KindNotFound:             ErrNotFound,
	KindRejected:             ErrRejected,
	KindPermissionDenied:     ErrPermissionDenied,
	KindIO:                   ErrIO,
	KindLocked:               ErrLocked,
	KindVerificationMismatch: ErrVerificationMismatch,
}

// Error is a failed commit of one attribute.
type Error struct {
	Attribute string
	Kind      Kind
	// Want and Got are the written and read back values of a
	// KindVerificationMismatch.
	Want string
	Got  string
	// Err is the underlying cause, an *attribute.ValidationError for KindRejected.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindVerificationMismatch:
		return fmt.Sprintf("commit %q: %s, wrote %q, firmware reports %q", e.Attribute, e.Kind, e.Want, e.Got)
	case e.Err != nil:
		return fmt.Sprintf("commit %q: %s: %v", e.Attribute, e.Kind, e.Err)
	default:
		return fmt.Sprintf("commit %q: %s", e.Attribute, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLocked) and friends match on Kind.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// classifyWriteError maps an OS level write failure to a Kind. Firmware drivers
// refuse writes behind a BIOS password with EPERM, a locked attribute may also
// turn read-only.
func classifyWriteError(err error) Kind {
	switch {
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EROFS):
		return KindLocked
	case errors.Is(err, unix.EACCES):
		return KindPermissionDenied
	default:
		return KindIO
	}
}

// isTransient reports write errors worth retrying, nothing reached the firmware.
func isTransient(err error) bool {
	return errors.Is(err, unix.EBUSY) || errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR)
}
