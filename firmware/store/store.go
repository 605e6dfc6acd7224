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

// Package store discovers the firmware attributes of a firmware-attributes device
// and owns the in-memory collection for the lifetime of the process.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/firmware-attributes/utils"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

const (
	// DefaultClassDir is the kernel's firmware-attributes class directory.
	DefaultClassDir = "/sys/class/firmware-attributes"

	// AttributesDir is the device subdirectory holding one directory per attribute.
	AttributesDir = "attributes"
	// AuthenticationDir is the device subdirectory holding the authentication entries.
	AuthenticationDir = "authentication"

	// PropertyPendingReboot is the device wide flag, in AttributesDir, set by the
	// firmware once a change needs a restart to be applied.
	PropertyPendingReboot = "pending_reboot"
)

var (
	// ErrNotFound is returned for an attribute name the store doesn't know.
	ErrNotFound = errors.New("attribute not found")
	// ErrPendingValueInvalidated is returned by Refresh when the staged value had to
	// be dropped because the firmware state shifted.
	ErrPendingValueInvalidated = errors.New("pending value invalidated")
)

// DiscoveryError reports a firmware attributes root that can't be scanned.
type DiscoveryError struct {
	Root string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("unable to discover firmware attributes in %q: %v", e.Root, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// RefreshError reports an anomaly while re-reading an attribute.
type RefreshError struct {
	Attribute string
	// Err wraps ErrNotFound, ErrPendingValueInvalidated or an *attribute.ParseError.
	Err error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refreshing attribute %q: %v", e.Attribute, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Edit is a candidate value for a named attribute.
type Edit struct {
	Name  string
	Value string
}

// Skip records an attribute directory that could not be parsed at discovery.
type Skip struct {
	Name string
	Err  error
}

type entry struct {
	attr attribute.Attribute
	// rebootInferred is set once a write changed the attribute while the device
	// reported a pending reboot. It survives refreshes.
	rebootInferred bool
}

// Store owns the discovered attributes. Accessors return copies, entries are only
// changed through Store methods and are updated in place so identity by name
// survives a refresh. A Store is not safe for concurrent use.
type Store struct {
	root          string
	attributesDir string
	entries       []*entry
	index         map[string]*entry
	skipped       []Skip
}

// AttributesPath returns the directory holding the attribute directories for
// root. root is either a firmware-attributes device (with an attributes
// subdirectory) or directly the directory of attribute directories.
func AttributesPath(root string) string {
	if dir := filepath.Join(root, AttributesDir); utils.IsDir(dir) {
		return dir
	}
	return root
}

// IsDeviceRoot reports whether path is a firmware-attributes device directory,
// i.e. /sys/class/firmware-attributes/thinklmi.
func IsDeviceRoot(path string) bool {
	return utils.IsDir(filepath.Join(path, AttributesDir)) && utils.IsDir(filepath.Join(path, AuthenticationDir))
}

// Autodetect returns the firmware-attributes devices under classDir. If classDir
// is itself a device it is the only one returned.
func Autodetect(classDir string) []string {
	if IsDeviceRoot(classDir) {
		return []string{classDir}
	}

	names, err := utils.SubDirectories(classDir)
	if err != nil {
		logger.Debugf("No firmware-attributes devices found: %v", err)
		return nil
	}

	var res []string
	for _, n := range names {
		if p := filepath.Join(classDir, n); IsDeviceRoot(p) {
			res = append(res, p)
		}
	}
	return res
}

// Discover scans root and parses every attribute directory. An attribute that
// fails to parse is logged, recorded in Skipped and does not stop discovery. Only
// an inaccessible root fails, with a *DiscoveryError.
func Discover(root string) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &DiscoveryError{Root: root, Err: errors.New("not a directory")}
	}

	dir := AttributesPath(root)
	names, err := utils.SubDirectories(dir)
	if err != nil {
		return nil, &DiscoveryError{Root: root, Err: err}
	}

	s := &Store{
		root:          root,
		attributesDir: dir,
		index:         make(map[string]*entry, len(names)),
	}

	for _, name := range names {
		attr, err := attribute.Parse(filepath.Join(dir, name))
		if err != nil {
			logger.Warningf("Skipping firmware attribute %q: %v", name, err)
			s.skipped = append(s.skipped, Skip{Name: name, Err: err})
			continue
		}
		e := &entry{attr: *attr}
		s.entries = append(s.entries, e)
		s.index[name] = e
	}

	logger.Infof("Discovered %d firmware attributes in %q, skipped %d", len(s.entries), dir, len(s.skipped))
	return s, nil
}

// Root returns the root the store was discovered from.
func (s *Store) Root() string { return s.root }

// Len returns the number of attributes.
func (s *Store) Len() int { return len(s.entries) }

// Skipped returns the attributes discovery could not parse.
func (s *Store) Skipped() []Skip { return append([]Skip(nil), s.skipped...) }

// Get returns a copy of the named attribute.
func (s *Store) Get(name string) (attribute.Attribute, bool) {
	e, ok := s.index[name]
	if !ok {
		return attribute.Attribute{}, false
	}
	return e.attr.Clone(), true
}

// All returns copies of all attributes in discovery order.
func (s *Store) All() []attribute.Attribute {
	res := make([]attribute.Attribute, 0, len(s.entries))
	for _, e := range s.entries {
		res = append(res, e.attr.Clone())
	}
	return res
}

func (s *Store) lookup(name string) (*entry, error) {
	e, ok := s.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return e, nil
}

// Validate checks candidate against the named attribute's constraints without
// touching any state.
func (s *Store) Validate(name, candidate string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	return attribute.Validate(e.attr.Type, candidate)
}

// Stage validates candidate and, if accepted, records it as the pending value of
// the named attribute.
func (s *Store) Stage(name, candidate string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	if err := attribute.Validate(e.attr.Type, candidate); err != nil {
		return err
	}
	e.attr.PendingValue = &candidate
	return nil
}

// Unstage drops the pending value of the named attribute, if any.
func (s *Store) Unstage(name string) {
	if e, ok := s.index[name]; ok {
		e.attr.PendingValue = nil
	}
}

// Pending returns the staged edits in discovery order.
func (s *Store) Pending() []Edit {
	var res []Edit
	for _, e := range s.entries {
		if e.attr.PendingValue != nil {
			res = append(res, Edit{Name: e.attr.Name, Value: *e.attr.PendingValue})
		}
	}
	return res
}

// PendingReboot reports whether the device flags a reboot as required to apply
// the changes written so far.
func (s *Store) PendingReboot() bool {
	v, found, err := utils.TryReadProperty(s.attributesDir, PropertyPendingReboot)
	if err != nil {
		logger.Warningf("Unable to read %s: %v", PropertyPendingReboot, err)
		return false
	}
	return found && attribute.ParseFlag(AttributesDir, PropertyPendingReboot, v)
}

// MarkRebootRequired flags the named attribute as requiring a reboot to apply.
// The flag sticks across refreshes.
func (s *Store) MarkRebootRequired(name string) error {
	e, err := s.lookup(name)
	if err != nil {
		return err
	}
	e.rebootInferred = true
	e.attr.RequiresReboot = true
	return nil
}
