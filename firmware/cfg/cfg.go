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

// Package cfg is responsible for loading and accessing the firmware attributes tool
// configuration.
package cfg

import (
	"fmt"
	"time"

	"github.com/go-ini/ini"
)

var (
	// instance is the single instance of configuration sections, once loaded this package
	// should always return it.
	instance *Sections

	// dataSources is a pointer to a data source loading/defining function, unit tests will
	// want to change this pointer to whatever makes sense to its implementation.
	dataSources = defaultDataSources

	// configFile returns the user config file path, swapped by unit tests.
	configFile = defaultConfigFile
)

const (
	unixConfigPath = `/etc/default/firmware_attributes.cfg`

	defaultConfig = `
[Firmware]
root =
class_dir = /sys/class/firmware-attributes

[Commit]
write_attempts = 3
retry_interval_ms = 100

[Authentication]
role = bios-admin
prompt = true

[Logging]
debug = false
`
)

// Sections encapsulates all the configuration sections.
type Sections struct {
	// Firmware defines where the firmware attributes device is looked up.
	Firmware *Firmware `ini:"Firmware,omitempty"`

	// Commit defines how writes to attributes are retried.
	Commit *Commit `ini:"Commit,omitempty"`

	// Authentication defines which authentication entry unlocks the attributes and
	// whether the user is prompted for it.
	Authentication *Authentication `ini:"Authentication,omitempty"`

	// Logging defines the logging verbosity.
	Logging *Logging `ini:"Logging,omitempty"`
}

// Firmware contains the configurations of the firmware attributes device. An empty
// Root means the device is autodetected under ClassDir.
type Firmware struct {
	Root     string `ini:"root,omitempty"`
	ClassDir string `ini:"class_dir,omitempty"`
}

// Commit contains the configurations of the commit engine.
type Commit struct {
	WriteAttempts   int `ini:"write_attempts,omitempty"`
	RetryIntervalMs int `ini:"retry_interval_ms,omitempty"`
}

// RetryInterval returns the interval before the first write retry.
func (c *Commit) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMs) * time.Millisecond
}

// Authentication contains the configurations of the BIOS authentication.
type Authentication struct {
	Role   string `ini:"role,omitempty"`
	Prompt bool   `ini:"prompt,omitempty"`
}

// Logging contains the logging configurations.
type Logging struct {
	Debug bool `ini:"debug,omitempty"`
}

func defaultConfigFile() string {
	return unixConfigPath
}

// defaultDataSources lists the configuration sources, later sources override
// earlier ones.
func defaultDataSources(extraDefaults []byte) []interface{} {
	res := []interface{}{[]byte(defaultConfig)}
	config := configFile()

	if len(extraDefaults) > 0 {
		res = append(res, extraDefaults)
	}

	return append(res, []interface{}{
		config + ".distro",
		config + ".template",
		config,
	}...)
}

// Load loads default configuration and the configuration from default config files.
func Load(extraDefaults []byte) error {
	opts := ini.LoadOptions{
		Loose:       true,
		Insensitive: true,
	}

	sources := dataSources(extraDefaults)
	cfg, err := ini.LoadSources(opts, sources[0], sources[1:]...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %+v", err)
	}

	sections := new(Sections)
	if err := cfg.MapTo(sections); err != nil {
		return fmt.Errorf("failed to map configuration to object: %+v", err)
	}

	if err := sections.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	instance = sections
	return nil
}

func (s *Sections) validate() error {
	if c := s.Commit; c != nil {
		if c.WriteAttempts < 1 {
			return fmt.Errorf("[Commit] write_attempts = %d, must be at least 1", c.WriteAttempts)
		}
		if c.RetryIntervalMs < 0 {
			return fmt.Errorf("[Commit] retry_interval_ms = %d, must not be negative", c.RetryIntervalMs)
		}
	}
	return nil
}

// Get returns the configuration's instance previously loaded with Load().
func Get() *Sections {
	if instance == nil {
		panic("cfg package was not initialized, Load() " +
			"should be called in the early initialization code path")
	}
	return instance
}
