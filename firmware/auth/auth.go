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

// Package auth reads the authentication entries of a firmware-attributes device
// and supplies the BIOS password to the kernel. Credentials are never stored.
package auth

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/store"
	"github.com/GoogleCloudPlatform/firmware-attributes/utils"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

const (
	// RoleBIOSAdmin is the role allowed to change firmware attributes.
	RoleBIOSAdmin = "bios-admin"
	// MechanismPassword is the only authentication mechanism supported.
	MechanismPassword = "password"

	propertyIsEnabled         = "is_enabled"
	propertyRole              = "role"
	propertyMechanism         = "mechanism"
	propertyMinPasswordLength = "min_password_length"
	propertyMaxPasswordLength = "max_password_length"
	propertyCurrentPassword   = "current_password"
)

var (
	// ErrNoAuthentication is returned by Find when no enabled entry matches.
	ErrNoAuthentication = errors.New("no enabled password authentication")
	// ErrUnsupportedMechanism is returned by Login for non password entries.
	ErrUnsupportedMechanism = errors.New("unsupported authentication mechanism")
)

// Authentication is one authentication entry, i.e. the Admin password.
type Authentication struct {
	// Name is the entry directory name.
	Name      string
	Path      string
	Enabled   bool
	Role      string
	Mechanism string
	// Password holds the length constraints of the password.
	Password attribute.Password
}

// Parse reads the authentication entry in dir.
func Parse(dir string) (*Authentication, error) {
	a := &Authentication{
		Name:     filepath.Base(dir),
		Path:     dir,
		Password: attribute.Password{MaxLength: attribute.UnboundedLength},
	}

	enabled, err := utils.ReadProperty(dir, propertyIsEnabled)
	if err != nil {
		return nil, err
	}
	a.Enabled = attribute.ParseFlag(a.Name, propertyIsEnabled, enabled)

	if a.Role, err = utils.ReadProperty(dir, propertyRole); err != nil {
		return nil, err
	}
	if a.Mechanism, err = utils.ReadProperty(dir, propertyMechanism); err != nil {
		return nil, err
	}

	lengths := []struct {
		file string
		dst  *uint32
	}{
		{propertyMinPasswordLength, &a.Password.MinLength},
		{propertyMaxPasswordLength, &a.Password.MaxLength},
	}
	for _, l := range lengths {
		v, found, err := utils.TryReadProperty(dir, l.file)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("authentication %q has invalid %s %q: %w", a.Name, l.file, v, err)
		}
		*l.dst = uint32(n)
	}
	return a, nil
}

// Discover returns the authentication entries of the device root. Entries that
// can't be parsed are logged and skipped. A device without an authentication
// directory has no entries.
func Discover(root string) ([]Authentication, error) {
	dir := filepath.Join(root, store.AuthenticationDir)
	if !utils.IsDir(dir) {
		return nil, nil
	}

	names, err := utils.SubDirectories(dir)
	if err != nil {
		return nil, err
	}

	var res []Authentication
	for _, n := range names {
		a, err := Parse(filepath.Join(dir, n))
		if err != nil {
			logger.Warningf("Skipping authentication %q: %v", n, err)
			continue
		}
		res = append(res, *a)
	}
	return res, nil
}

// Find returns the first enabled password entry with role.
func Find(auths []Authentication, role string) (Authentication, error) {
	for _, a := range auths {
		if a.Enabled && a.Role == role && a.Mechanism == MechanismPassword {
			return a, nil
		}
	}
	return Authentication{}, fmt.Errorf("%w for role %q", ErrNoAuthentication, role)
}

// Login supplies password to the kernel. It is checked against the entry's
// length constraints before being written.
func (a Authentication) Login(password string) error {
	if a.Mechanism != MechanismPassword {
		return fmt.Errorf("%w: %q", ErrUnsupportedMechanism, a.Mechanism)
	}
	if err := attribute.Validate(a.Password, password); err != nil {
		return fmt.Errorf("password for %q rejected: %w", a.Name, err)
	}
	logger.Infof("Authenticating as %q (%s)", a.Name, a.Role)
	return utils.WriteSecretProperty(a.Path, propertyCurrentPassword, password)
}

// Logout clears the password previously supplied with Login.
func (a Authentication) Logout() error {
	logger.Infof("Clearing authentication %q", a.Name)
	return utils.WriteSecretProperty(a.Path, propertyCurrentPassword, "")
}
