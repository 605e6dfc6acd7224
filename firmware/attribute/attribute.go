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

// Package attribute models a firmware attribute exposed by the Linux
// firmware-attributes sysfs class, parses it from its sysfs directory and validates
// candidate values against its declared constraints.
package attribute

import (
	"fmt"
	"math"
	"slices"
)

// UnboundedLength is the MaxLength of a String or Password attribute whose vendor
// does not publish a max_length.
const UnboundedLength = math.MaxUint32

// Kind identifies the variant of a Type.
type Kind int

const (
	// KindEnumeration is an attribute restricted to a list of values.
	KindEnumeration Kind = iota + 1
	// KindInteger is a bounded integer attribute with a scalar step.
	KindInteger
	// KindString is a free form string attribute with length bounds.
	KindString
	// KindPassword is a length bounded secret, writing it requires
	// re-authentication on next access.
	KindPassword
)

// kindTokens maps a Kind to the token found in the sysfs type file.
var kindTokens = map[Kind]string{
	KindEnumeration: "enumeration",
	KindInteger:     "integer",
	KindString:      "string",
	KindPassword:    "password",
}

// String returns the sysfs type token of k.
func (k Kind) String() string {
	if s, ok := kindTokens[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kindFromToken maps a sysfs type token to its Kind.
func kindFromToken(token string) (Kind, bool) {
	for k, s := range kindTokens {
		if s == token {
			return k, true
		}
	}
	return 0, false
}

// Type is the declared type of an attribute together with its constraints. The
// set of implementations is closed: Enumeration, Integer, String and Password.
type Type interface {
	// Kind returns the variant of the type.
	Kind() Kind
	// String describes the constraints of the type for display.
	String() string

	clone() Type
}

// Enumeration constrains a value to one of PossibleValues. The order is the one
// declared by the vendor.
type Enumeration struct {
	PossibleValues []string
}

// Kind implements Type.
func (Enumeration) Kind() Kind { return KindEnumeration }

func (e Enumeration) String() string {
	return fmt.Sprintf("enumeration %v", e.PossibleValues)
}

func (e Enumeration) clone() Type {
	return Enumeration{PossibleValues: slices.Clone(e.PossibleValues)}
}

// Integer constrains a value to [Minimum, Maximum] in steps of ScalarIncrement
// starting at Minimum.
type Integer struct {
	Minimum         int64
	Maximum         int64
	ScalarIncrement int64
}

// Kind implements Type.
func (Integer) Kind() Kind { return KindInteger }

func (i Integer) String() string {
	return fmt.Sprintf("integer [%d, %d] step %d", i.Minimum, i.Maximum, i.ScalarIncrement)
}

func (i Integer) clone() Type { return i }

// String constrains the length, in characters, of a value.
type String struct {
	MinLength uint32
	MaxLength uint32
}

// Kind implements Type.
func (String) Kind() Kind { return KindString }

func (s String) String() string {
	return "string " + lengthRange(s.MinLength, s.MaxLength)
}

func (s String) clone() Type { return s }

// Password constrains the length, in characters, of a secret value.
type Password struct {
	MinLength uint32
	MaxLength uint32
}

// Kind implements Type.
func (Password) Kind() Kind { return KindPassword }

func (p Password) String() string {
	return "password " + lengthRange(p.MinLength, p.MaxLength)
}

func (p Password) clone() Type { return p }

func lengthRange(lo, hi uint32) string {
	if hi == UnboundedLength {
		return fmt.Sprintf("length [%d, unbounded]", lo)
	}
	return fmt.Sprintf("length [%d, %d]", lo, hi)
}

// Attribute is one firmware configurable setting.
type Attribute struct {
	// Name is the sysfs directory name, unique and stable for the process lifetime.
	Name string
	// DisplayName is the vendor supplied label or Name if there is none.
	DisplayName string
	// DisplayNameLanguageCode is the language of DisplayName, empty if unknown.
	DisplayNameLanguageCode string
	// Type is the declared type and constraints, immutable after discovery.
	Type Type
	// CurrentValue is the raw value last read from sysfs.
	CurrentValue string
	// DefaultValue is the vendor default, nil if not published.
	DefaultValue *string
	// PendingValue is a validated candidate staged by the user, nil if none.
	PendingValue *string
	// RequiresReboot reports the firmware needs a restart to apply this attribute.
	RequiresReboot bool
	// Path is the attribute sysfs directory.
	Path string
}

// Clone returns a deep copy of a.
func (a *Attribute) Clone() Attribute {
	c := *a
	if a.Type != nil {
		c.Type = a.Type.clone()
	}
	c.DefaultValue = cloneString(a.DefaultValue)
	c.PendingValue = cloneString(a.PendingValue)
	return c
}

// IsSecret reports whether values of a must not be displayed or logged.
func (a *Attribute) IsSecret() bool {
	return a.Type != nil && a.Type.Kind() == KindPassword
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
