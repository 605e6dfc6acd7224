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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/auth"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/cfg"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/commit"
	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/store"
	"github.com/GoogleCloudPlatform/firmware-attributes/retry"
	"github.com/GoogleCloudPlatform/guest-logging-go/logger"
	"golang.org/x/term"
)

const hiddenValue = "<hidden>"

var (
	errNoDevice = errors.New("no firmware-attributes device found")

	// readPassword is swapped by unit tests.
	readPassword = promptPassword
)

// openStore discovers the attributes of the -root flag, the configured root or
// the only device found under the configured class directory.
func openStore() (*store.Store, error) {
	root := *rootDir
	if root == "" {
		root = cfg.Get().Firmware.Root
	}
	if root == "" {
		classDir := cfg.Get().Firmware.ClassDir
		devices := store.Autodetect(classDir)
		switch len(devices) {
		case 0:
			return nil, fmt.Errorf("%w in %q", errNoDevice, classDir)
		case 1:
			root = devices[0]
		default:
			return nil, fmt.Errorf("found %d firmware-attributes devices (%s), select one with -root",
				len(devices), strings.Join(devices, ", "))
		}
	}
	return store.Discover(root)
}

// deviceRoot returns the device directory of s, the parent of its attributes.
func deviceRoot(s *store.Store) string {
	if filepath.Base(s.Root()) == store.AttributesDir {
		return filepath.Dir(s.Root())
	}
	return s.Root()
}

func displayValue(a *attribute.Attribute, value string) string {
	if a.IsSecret() {
		return hiddenValue
	}
	return value
}

// parseEdits parses NAME=VALUE arguments. The value may be empty or contain '='.
func parseEdits(args []string) ([]store.Edit, error) {
	if len(args) == 0 {
		return nil, errors.New("no NAME=VALUE given")
	}
	var res []store.Edit
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid edit %q, want NAME=VALUE", arg)
		}
		res = append(res, store.Edit{Name: name, Value: value})
	}
	return res, nil
}

func list(context.Context, []string) (string, int) {
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tCURRENT VALUE\tDISPLAY NAME")
	for _, a := range s.All() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Name, a.Type.Kind(), displayValue(&a, a.CurrentValue), a.DisplayName)
	}
	w.Flush()

	for _, skip := range s.Skipped() {
		fmt.Fprintf(&b, "skipped %s: %v\n", skip.Name, skip.Err)
	}
	return b.String(), exitOK
}

func show(_ context.Context, args []string) (string, int) {
	if len(args) == 0 {
		return "show called with no attribute name", exitUsage
	}
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}

	var b strings.Builder
	code := exitOK
	for _, name := range args {
		a, ok := s.Get(name)
		if !ok {
			fmt.Fprintf(&b, "%s: %v\n", name, store.ErrNotFound)
			code = exitFailure
			continue
		}

		w := tabwriter.NewWriter(&b, 0, 8, 1, ' ', 0)
		fmt.Fprintf(w, "Name:\t%s\n", a.Name)
		fmt.Fprintf(w, "Display name:\t%s\n", a.DisplayName)
		if a.DisplayNameLanguageCode != "" {
			fmt.Fprintf(w, "Language:\t%s\n", a.DisplayNameLanguageCode)
		}
		fmt.Fprintf(w, "Type:\t%s\n", a.Type)
		fmt.Fprintf(w, "Current value:\t%s\n", displayValue(&a, a.CurrentValue))
		if a.DefaultValue != nil {
			fmt.Fprintf(w, "Default value:\t%s\n", displayValue(&a, *a.DefaultValue))
		}
		fmt.Fprintf(w, "Requires reboot:\t%t\n", a.RequiresReboot)
		fmt.Fprintf(w, "Path:\t%s\n", a.Path)
		w.Flush()
		b.WriteString("\n")
	}
	return b.String(), code
}

func validate(_ context.Context, args []string) (string, int) {
	edits, err := parseEdits(args)
	if err != nil {
		return err.Error(), exitUsage
	}
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}

	var b strings.Builder
	code := exitOK
	for _, e := range edits {
		if err := s.Validate(e.Name, e.Value); err != nil {
			fmt.Fprintf(&b, "%s: %v\n", e.Name, err)
			code = exitFailure
			continue
		}
		fmt.Fprintf(&b, "%s: ok\n", e.Name)
	}
	return b.String(), code
}

func set(_ context.Context, args []string) (string, int) {
	edits, err := parseEdits(args)
	if err != nil {
		return err.Error(), exitUsage
	}
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}
	return commitEdits(s, edits)
}

func reset(_ context.Context, args []string) (string, int) {
	if len(args) == 0 {
		return "reset called with no attribute name", exitUsage
	}
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}

	var edits []store.Edit
	for _, name := range args {
		a, ok := s.Get(name)
		if !ok {
			return fmt.Sprintf("%s: %v", name, store.ErrNotFound), exitFailure
		}
		if a.DefaultValue == nil {
			return fmt.Sprintf("%s: no default value published by the firmware", name), exitFailure
		}
		edits = append(edits, store.Edit{Name: name, Value: *a.DefaultValue})
	}
	return commitEdits(s, edits)
}

func listAuth(context.Context, []string) (string, int) {
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}
	auths, err := auth.Discover(deviceRoot(s))
	if err != nil {
		return err.Error(), exitFailure
	}
	if len(auths) == 0 {
		return "no authentication entries", exitOK
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tROLE\tMECHANISM\tENABLED\tPASSWORD")
	for _, a := range auths {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", a.Name, a.Role, a.Mechanism, a.Enabled, a.Password)
	}
	w.Flush()
	return b.String(), exitOK
}

func rebootStatus(context.Context, []string) (string, int) {
	s, err := openStore()
	if err != nil {
		return err.Error(), exitFailure
	}

	var b strings.Builder
	fmt.Fprintf(&b, "pending reboot: %t\n", s.PendingReboot())
	for _, a := range s.All() {
		if a.RequiresReboot {
			fmt.Fprintf(&b, "  %s requires a reboot to apply\n", a.Name)
		}
	}
	return b.String(), exitOK
}

func retryPolicy() retry.Policy {
	c := cfg.Get().Commit
	return retry.Policy{
		MaxAttempts:   c.WriteAttempts,
		BackoffFactor: commit.DefaultRetryPolicy.BackoffFactor,
		Jitter:        c.RetryInterval(),
	}
}

// commitEdits commits edits in the given order. Attributes found locked are
// committed once more, still in the given order, after authenticating if prompting
// is allowed. Results are reported in the given order.
func commitEdits(s *store.Store, edits []store.Edit) (string, int) {
	var b strings.Builder
	code := exitOK

	// A staged value marks an edit not written yet, a commit unstages it.
	for _, e := range edits {
		if err := s.Stage(e.Name, e.Value); err != nil {
			logger.Debugf("Not staging %q: %v", e.Name, err)
		}
	}

	engine := commit.New(s, commit.WithRetryPolicy(retryPolicy()))
	results := engine.CommitAll(edits)

	if anyLocked(results) && cfg.Get().Authentication.Prompt && !*noPrompt {
		a, err := unlock(s)
		if err != nil {
			fmt.Fprintf(&b, "unable to authenticate: %v\n", err)
		} else {
			retryLocked(s, edits, results, engine.CommitAll)
			if err := a.Logout(); err != nil {
				logger.Warningf("Failed to clear authentication %q: %v", a.Name, err)
			}
		}
	}

	reboot := false
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "%s: %s: %v\n", r.Name, r.State, r.Err)
			code = exitFailure
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", r.Name, r.State)
		if r.Outcome.RequiresReauthentication {
			fmt.Fprintf(&b, "%s: password changed, use the new one to authenticate\n", r.Name)
		}
		reboot = reboot || r.Outcome.RequiresReboot
	}
	if reboot {
		b.WriteString("A reboot is required to apply the changes.\n")
	}
	return b.String(), code
}

func anyLocked(results []commit.Result) bool {
	for _, r := range results {
		if errors.Is(r.Err, commit.ErrLocked) {
			return true
		}
	}
	return false
}

// retryLocked commits again the edits whose result is Locked and whose value is
// still staged, in their order in edits, and replaces their results in place.
// results[i] is the result of edits[i].
func retryLocked(s *store.Store, edits []store.Edit, results []commit.Result, commitAll func([]store.Edit) []commit.Result) {
	var retried []store.Edit
	var positions []int
	for i, r := range results {
		if !errors.Is(r.Err, commit.ErrLocked) {
			continue
		}
		a, ok := s.Get(edits[i].Name)
		if !ok || a.PendingValue == nil || *a.PendingValue != edits[i].Value {
			continue
		}
		retried = append(retried, edits[i])
		positions = append(positions, i)
	}
	if len(retried) == 0 {
		return
	}

	for j, r := range commitAll(retried) {
		results[positions[j]] = r
	}
}

// unlock authenticates with the configured role, prompting for the password.
func unlock(s *store.Store) (auth.Authentication, error) {
	auths, err := auth.Discover(deviceRoot(s))
	if err != nil {
		return auth.Authentication{}, err
	}
	a, err := auth.Find(auths, cfg.Get().Authentication.Role)
	if err != nil {
		return auth.Authentication{}, err
	}

	password, err := readPassword(fmt.Sprintf("%s password: ", a.Name))
	if err != nil {
		return auth.Authentication{}, fmt.Errorf("unable to read password: %w", err)
	}
	if err := a.Login(password); err != nil {
		return auth.Authentication{}, err
	}
	return a, nil
}

func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
