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

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/store"
	"gopkg.in/yaml.v3"
)

// device is the yaml representation of a firmware-attributes device used by dump
// and apply.
type device struct {
	Root          string          `yaml:"root"`
	PendingReboot bool            `yaml:"pending_reboot"`
	Attributes    []dumpAttribute `yaml:"attributes"`
}

type dumpAttribute struct {
	Name            string   `yaml:"name"`
	DisplayName     string   `yaml:"display_name,omitempty"`
	Type            string   `yaml:"type"`
	PossibleValues  []string `yaml:"possible_values,omitempty"`
	MinValue        *int64   `yaml:"min_value,omitempty"`
	MaxValue        *int64   `yaml:"max_value,omitempty"`
	ScalarIncrement *int64   `yaml:"scalar_increment,omitempty"`
	MinLength       *uint32  `yaml:"min_length,omitempty"`
	MaxLength       *uint32  `yaml:"max_length,omitempty"`
	CurrentValue    string   `yaml:"current_value"`
	DefaultValue    *string  `yaml:"default_value,omitempty"`
	RequiresReboot  bool     `yaml:"requires_reboot,omitempty"`
}

func lengths(d *dumpAttribute, lo, hi uint32) {
	d.MinLength = &lo
	if hi != attribute.UnboundedLength {
		d.MaxLength = &hi
	}
}

func newDumpAttribute(a *attribute.Attribute) dumpAttribute {
	d := dumpAttribute{
		Name:           a.Name,
		Type:           a.Type.Kind().String(),
		CurrentValue:   displayValue(a, a.CurrentValue),
		DefaultValue:   a.DefaultValue,
		RequiresReboot: a.RequiresReboot,
	}
	if a.DisplayName != a.Name {
		d.DisplayName = a.DisplayName
	}

	switch t := a.Type.(type) {
	case attribute.Enumeration:
		d.PossibleValues = t.PossibleValues
	case attribute.Integer:
		d.MinValue, d.MaxValue, d.ScalarIncrement = &t.Minimum, &t.Maximum, &t.ScalarIncrement
	case attribute.String:
		lengths(&d, t.MinLength, t.MaxLength)
	case attribute.Password:
		lengths(&d, t.MinLength, t.MaxLength)
		d.DefaultValue = nil
	}
	return d
}

func dump(context.Context, []string) (string, int) {
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}

	dev := device{Root: s.Root(), PendingReboot: s.PendingReboot()}
	for _, a := range s.All() {
		dev.Attributes = append(dev.Attributes, newDumpAttribute(&a))
	}

	out, err := yaml.Marshal(dev)
	if err != nil {
		return fmt.Sprintf("unable to marshal attributes: %v", err), exitFailure
	}
	return string(out), exitOK
}

// changedEdits returns the edits setting the current values of dev that differ
// from s. Password attributes are never part of a dump and are ignored.
func changedEdits(s *store.Store, dev *device) ([]store.Edit, error) {
	var res []store.Edit
	for _, d := range dev.Attributes {
		a, ok := s.Get(d.Name)
		if !ok {
			return nil, fmt.Errorf("%s: %w", d.Name, store.ErrNotFound)
		}
		if a.IsSecret() || a.CurrentValue == d.CurrentValue {
			continue
		}
		res = append(res, store.Edit{Name: d.Name, Value: d.CurrentValue})
	}
	return res, nil
}

func apply(_ context.Context, args []string) (string, int) {
	if len(args) != 1 {
		return "apply takes exactly one dump file", exitUsage
	}

	b, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Sprintf("unable to read %q: %v", args[0], err), exitFailure
	}
	var dev device
	if err := yaml.Unmarshal(b, &dev); err != nil {
		return fmt.Sprintf("unable to parse %q: %v", args[0], err), exitFailure
	}

	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}
	edits, err := changedEdits(s, &dev)
	if err != nil {
		return err.Error(), exitFailure
	}
	if len(edits) == 0 {
		return "nothing to apply", exitOK
	}
	return commitEdits(s, edits)
}
