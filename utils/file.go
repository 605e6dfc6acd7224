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

// sysfs property file utils for firmware attribute and authentication directories.

package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
)

const (
	// sysfsLineEnd is appended by the kernel to every value it exposes.
	sysfsLineEnd = "\n"

	// hiddenValue replaces secrets in log lines.
	hiddenValue = "<hidden>"
)

var (
	// ErrPropertyNotFound is returned when a required property file does not exist.
	ErrPropertyNotFound = errors.New("property not found")

	// secretProperties are property files whose content must never be logged.
	secretProperties = []string{"current_password", "new_password"}
)

func printable(property, value string) string {
	if ContainsString(property, secretProperties) {
		return hiddenValue
	}
	return value
}

// ReadProperty reads a required property file from dir, stripping the trailing
// newline(s) sysfs appends. A missing file is reported as ErrPropertyNotFound.
func ReadProperty(dir, property string) (string, error) {
	value, found, err := TryReadProperty(dir, property)
	if err != nil {
		return "", err
	}
	if !found {
		logger.Debugf("Required property %q not found in %q", property, dir)
		return "", fmt.Errorf("%w: %s", ErrPropertyNotFound, filepath.Join(dir, property))
	}
	return value, nil
}

// TryReadProperty reads an optional property file from dir. found is false if the
// file does not exist.
func TryReadProperty(dir, property string) (value string, found bool, err error) {
	path := filepath.Join(dir, property)
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debugf("Optional property %q not found in %q", property, dir)
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("unable to read %q: %w", path, err)
	}

	value = strings.TrimRight(string(b), sysfsLineEnd)
	logger.Debugf("Read property %q = %q", path, printable(property, value))
	return value, true, nil
}

// WriteProperty writes value to an existing property file of dir with a single
// write call, the way shell redirection does. The file is never created, sysfs
// attributes cannot be.
func WriteProperty(dir, property, value string) error {
	return writeProperty(dir, property, value, printable(property, value))
}

// WriteSecretProperty works as WriteProperty but never logs the value.
func WriteSecretProperty(dir, property, value string) error {
	return writeProperty(dir, property, value, hiddenValue)
}

func writeProperty(dir, property, value, logValue string) error {
	path := filepath.Join(dir, property)
	logger.Infof("Writing property %q value %s", path, logValue)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("unable to open %q for writing: %w", path, err)
	}

	if _, err := f.WriteString(value); err != nil {
		f.Close()
		return fmt.Errorf("unable to write %q: %w", path, err)
	}

	// Drivers may validate the buffer on release, so errors from Close matter.
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to close %q: %w", path, err)
	}
	return nil
}

// IsDir reports whether path exists and is a directory, following symlinks.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// SubDirectories returns the names of the immediate subdirectories of dir in
// directory order. Symlinks to directories are included, sysfs class entries are
// symlinks.
func SubDirectories(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to list %q: %w", dir, err)
	}

	var res []string
	for _, e := range entries {
		if e.IsDir() || (e.Type()&fs.ModeSymlink != 0 && IsDir(filepath.Join(dir, e.Name()))) {
			res = append(res, e.Name())
		}
	}
	return res, nil
}
