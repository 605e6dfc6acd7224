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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/firmware-attributes/utils"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

const (
	// PossibleValuesDelimiter separates entries of possible_values.
	PossibleValuesDelimiter = ";"

	defaultScalarIncrement = 1
)

// Property files of an attribute directory.
const (
	PropertyType                    = "type"
	PropertyCurrentValue            = "current_value"
	PropertyDefaultValue            = "default_value"
	PropertyDisplayName             = "display_name"
	PropertyDisplayNameLanguageCode = "display_name_language_code"
	PropertyPossibleValues          = "possible_values"
	PropertyMinValue                = "min_value"
	PropertyMaxValue                = "max_value"
	PropertyScalarIncrement         = "scalar_increment"
	PropertyMinLength               = "min_length"
	PropertyMaxLength               = "max_length"
	PropertyRequiresReboot          = "requires_reboot_to_apply"
)

// parser reads the property files of a single attribute directory.
type parser struct {
	dir  string
	name string
}

func (p *parser) fail(file string, err error) *ParseError {
	return &ParseError{Attribute: p.name, File: file, Err: err}
}

func (p *parser) optional(file string) (string, bool, error) {
	value, found, err := utils.TryReadProperty(p.dir, file)
	if err != nil {
		return "", false, p.fail(file, fmt.Errorf("%w: %w", ErrMalformedConstraint, err))
	}
	return value, found, nil
}

func (p *parser) integer(file string, required bool, def int64) (int64, error) {
	value, found, err := p.optional(file)
	if err != nil {
		return 0, err
	}
	if !found {
		if required {
			return 0, p.fail(file, fmt.Errorf("%w: required file is missing", ErrMalformedConstraint))
		}
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, p.fail(file, fmt.Errorf("%w: %q is not a base-10 integer", ErrMalformedConstraint, value))
	}
	return n, nil
}

func (p *parser) length(file string, def uint32) (uint32, error) {
	value, found, err := p.optional(file)
	if err != nil || !found {
		return def, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, p.fail(file, fmt.Errorf("%w: %q is not a valid length", ErrMalformedConstraint, value))
	}
	return uint32(n), nil
}

func (p *parser) enumeration() (Type, error) {
	value, found, err := p.optional(PropertyPossibleValues)
	if err != nil {
		return nil, err
	}
	values := SplitPossibleValues(value)
	if !found || len(values) == 0 {
		return nil, p.fail(PropertyPossibleValues, fmt.Errorf("%w: no possible values declared", ErrMalformedConstraint))
	}
	return Enumeration{PossibleValues: values}, nil
}

func (p *parser) integerType() (Type, error) {
	minimum, err := p.integer(PropertyMinValue, true, 0)
	if err != nil {
		return nil, err
	}
	maximum, err := p.integer(PropertyMaxValue, true, 0)
	if err != nil {
		return nil, err
	}
	if minimum > maximum {
		return nil, p.fail(PropertyMaxValue, fmt.Errorf("%w: maximum %d is below minimum %d", ErrMalformedConstraint, maximum, minimum))
	}
	step, err := p.integer(PropertyScalarIncrement, false, defaultScalarIncrement)
	if err != nil {
		return nil, err
	}
	if step <= 0 {
		return nil, p.fail(PropertyScalarIncrement, fmt.Errorf("%w: scalar increment %d is not positive", ErrMalformedConstraint, step))
	}
	return Integer{Minimum: minimum, Maximum: maximum, ScalarIncrement: step}, nil
}

func (p *parser) lengths() (uint32, uint32, error) {
	minLength, err := p.length(PropertyMinLength, 0)
	if err != nil {
		return 0, 0, err
	}
	maxLength, err := p.length(PropertyMaxLength, UnboundedLength)
	if err != nil {
		return 0, 0, err
	}
	if minLength > maxLength {
		return 0, 0, p.fail(PropertyMaxLength, fmt.Errorf("%w: max length %d is below min length %d", ErrMalformedConstraint, maxLength, minLength))
	}
	return minLength, maxLength, nil
}

func (p *parser) declaredType() (Type, error) {
	token, found, err := utils.TryReadProperty(p.dir, PropertyType)
	if err != nil {
		return nil, p.fail(PropertyType, fmt.Errorf("%w: %w", ErrUnknownType, err))
	}
	if !found {
		return nil, p.fail(PropertyType, fmt.Errorf("%w: type file is missing", ErrUnknownType))
	}

	kind, ok := kindFromToken(strings.ToLower(strings.TrimSpace(token)))
	if !ok {
		return nil, p.fail(PropertyType, fmt.Errorf("%w: %q", ErrUnknownType, token))
	}

	switch kind {
	case KindEnumeration:
		return p.enumeration()
	case KindInteger:
		return p.integerType()
	case KindString:
		minLength, maxLength, err := p.lengths()
		if err != nil {
			return nil, err
		}
		return String{MinLength: minLength, MaxLength: maxLength}, nil
	default:
		minLength, maxLength, err := p.lengths()
		if err != nil {
			return nil, err
		}
		return Password{MinLength: minLength, MaxLength: maxLength}, nil
	}
}

// SplitPossibleValues splits a possible_values list keeping the declared order.
// Empty entries, as left by a trailing delimiter, are dropped.
func SplitPossibleValues(s string) []string {
	var res []string
	for _, v := range strings.Split(s, PossibleValuesDelimiter) {
		if v != "" {
			res = append(res, v)
		}
	}
	return res
}

// Parse reads the attribute directory dir and returns the typed attribute. It only
// reads from the filesystem. Failures are returned as *ParseError.
func Parse(dir string) (*Attribute, error) {
	p := &parser{dir: dir, name: filepath.Base(dir)}

	t, err := p.declaredType()
	if err != nil {
		return nil, err
	}

	current, found, err := utils.TryReadProperty(dir, PropertyCurrentValue)
	if err != nil {
		return nil, p.fail(PropertyCurrentValue, fmt.Errorf("%w: %w", ErrMissingCurrentValue, err))
	}
	if !found {
		return nil, p.fail(PropertyCurrentValue, ErrMissingCurrentValue)
	}

	attr := &Attribute{
		Name:         p.name,
		DisplayName:  p.name,
		Type:         t,
		CurrentValue: current,
		Path:         dir,
	}

	displayName, found, err := p.optional(PropertyDisplayName)
	if err != nil {
		return nil, err
	}
	if found && displayName != "" {
		attr.DisplayName = displayName
	}

	if attr.DisplayNameLanguageCode, _, err = p.optional(PropertyDisplayNameLanguageCode); err != nil {
		return nil, err
	}

	defaultValue, found, err := p.optional(PropertyDefaultValue)
	if err != nil {
		return nil, err
	}
	if found {
		attr.DefaultValue = &defaultValue
	}

	reboot, found, err := p.optional(PropertyRequiresReboot)
	if err != nil {
		return nil, err
	}
	if found {
		attr.RequiresReboot = ParseFlag(p.name, PropertyRequiresReboot, reboot)
	}

	return attr, nil
}

// ParseFlag reads a sysfs boolean, "1" or "0" in practice. Unparsable content
// is logged and reads as false.
func ParseFlag(name, file, value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		logger.Warningf("Attribute %q has unparsable %s %q, assuming false", name, file, value)
		return false
	}
	return b
}
