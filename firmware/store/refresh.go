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

package store

import (
	"fmt"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

// Refresh re-reads the named attribute's directory and updates its current value
// and reboot flag in place. The type and constraints found at discovery never
// change. The staged value survives unless the firmware moved the current value to
// one the constraints reject; then it is cleared and a *RefreshError wrapping
// ErrPendingValueInvalidated is returned, the attribute itself is refreshed in both
// cases.
func (s *Store) Refresh(name string) error {
	e, ok := s.index[name]
	if !ok {
		return &RefreshError{Attribute: name, Err: ErrNotFound}
	}

	parsed, err := attribute.Parse(e.attr.Path)
	if err != nil {
		return &RefreshError{Attribute: name, Err: err}
	}

	previous := e.attr.CurrentValue

	if parsed.Type.String() != e.attr.Type.String() {
		logger.Warningf("Firmware reports %s for attribute %q discovered as %s, keeping the discovered constraints",
			parsed.Type, name, e.attr.Type)
	}
	e.attr.CurrentValue = parsed.CurrentValue
	e.attr.RequiresReboot = parsed.RequiresReboot || e.rebootInferred

	if e.attr.PendingValue == nil {
		return nil
	}

	if err := pendingStillValid(&e.attr, previous); err != nil {
		logger.Infof("Dropping pending value of attribute %q: %v", name, err)
		e.attr.PendingValue = nil
		return &RefreshError{Attribute: name, Err: fmt.Errorf("%w: %w", ErrPendingValueInvalidated, err)}
	}
	return nil
}

// pendingStillValid checks a's staged value after a refresh. previous is the
// current value before the refresh.
func pendingStillValid(a *attribute.Attribute, previous string) error {
	// Password current values are not readable back, nothing to compare.
	if a.IsSecret() || a.CurrentValue == previous {
		return nil
	}
	if err := attribute.Validate(a.Type, a.CurrentValue); err != nil {
		return fmt.Errorf("current value changed to one outside its constraints: %w", err)
	}
	return nil
}
