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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoogleCloudPlatform/firmware-attributes/firmware/attribute"
	"github.com/GoogleCloudPlatform/firmware-attributes/utils"
	"github.com/google/go-cmp/cmp"
)

// fakeDevice creates a thinklmi like device tree and returns its root.
func fakeDevice(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "thinklmi")
	utils.MakeFakeSysfs(t, root, map[string]string{
		"attributes/WakeOnLAN/type":            "enumeration",
		"attributes/WakeOnLAN/current_value":   "Disabled",
		"attributes/WakeOnLAN/possible_values": "Disabled;Primary;Automatic",
		"attributes/WakeOnLAN/display_name":    "Wake on LAN",

		"attributes/FanLevel/type":             "integer",
		"attributes/FanLevel/current_value":    "30",
		"attributes/FanLevel/min_value":        "0",
		"attributes/FanLevel/max_value":        "100",
		"attributes/FanLevel/scalar_increment": "10",

		"attributes/AssetTag/type":          "string",
		"attributes/AssetTag/current_value": "rack-12",
		"attributes/AssetTag/min_length":    "4",
		"attributes/AssetTag/max_length":    "8",

		"attributes/Broken/type":          "integer",
		"attributes/Broken/current_value": "1",

		"attributes/pending_reboot": "0",

		"authentication/Admin/is_enabled": "1",
	})
	return root
}

func names(attrs []attribute.Attribute) []string {
	var res []string
	for _, a := range attrs {
		res = append(res, a.Name)
	}
	return res
}

func writeValue(t *testing.T, root, name, value string) {
	t.Helper()
	path := filepath.Join(root, AttributesDir, name, attribute.PropertyCurrentValue)
	if err := os.WriteFile(path, []byte(value+"\n"), 0644); err != nil {
		t.Fatalf("os.WriteFile(%s) failed unexpectedly with error: %v", path, err)
	}
}

func TestDiscover(t *testing.T) {
	root := fakeDevice(t)

	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}

	want := []string{"AssetTag", "FanLevel", "WakeOnLAN"}
	if diff := cmp.Diff(want, names(s.All())); diff != "" {
		t.Errorf("Discover(%s).All() returned unexpected diff (-want +got):\n%s", root, diff)
	}
	if s.Len() != len(want) {
		t.Errorf("Discover(%s).Len() = %d, want %d", root, s.Len(), len(want))
	}

	skipped := s.Skipped()
	if len(skipped) != 1 || skipped[0].Name != "Broken" || !errors.Is(skipped[0].Err, attribute.ErrMalformedConstraint) {
		t.Errorf("Discover(%s).Skipped() = %+v, want Broken with ErrMalformedConstraint", root, skipped)
	}

	got, ok := s.Get("WakeOnLAN")
	if !ok {
		t.Fatalf("Get(WakeOnLAN) found nothing, want attribute")
	}
	if got.DisplayName != "Wake on LAN" || got.CurrentValue != "Disabled" {
		t.Errorf("Get(WakeOnLAN) = %+v, want display name %q and current value %q", got, "Wake on LAN", "Disabled")
	}
}

func TestDiscoverAttributesDirectory(t *testing.T) {
	root := filepath.Join(fakeDevice(t), AttributesDir)

	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}
	if s.Len() != 3 {
		t.Errorf("Discover(%s).Len() = %d, want 3", root, s.Len())
	}
}

func TestDiscoverError(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatalf("os.WriteFile(%s) failed unexpectedly with error: %v", file, err)
	}

	for _, root := range []string{missing, file} {
		_, err := Discover(root)
		var derr *DiscoveryError
		if !errors.As(err, &derr) || derr.Root != root {
			t.Errorf("Discover(%s) = %v, want *DiscoveryError for %s", root, err, root)
		}
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s, err := Discover(fakeDevice(t))
	if err != nil {
		t.Fatalf("Discover() failed unexpectedly with error: %v", err)
	}

	a, _ := s.Get("WakeOnLAN")
	a.CurrentValue = "Primary"
	a.Type.(attribute.Enumeration).PossibleValues[0] = "changed"

	b, _ := s.Get("WakeOnLAN")
	if b.CurrentValue != "Disabled" || b.Type.(attribute.Enumeration).PossibleValues[0] != "Disabled" {
		t.Errorf("Get(WakeOnLAN) returned shared state, got %+v after mutating a copy", b)
	}

	if _, ok := s.Get("Missing"); ok {
		t.Errorf("Get(Missing) found an attribute, want none")
	}
}

func TestValidate(t *testing.T) {
	s, err := Discover(fakeDevice(t))
	if err != nil {
		t.Fatalf("Discover() failed unexpectedly with error: %v", err)
	}

	tests := []struct {
		name      string
		candidate string
		want      error
	}{
		{"FanLevel", "30", nil},
		{"FanLevel", "35", attribute.ErrNotOnIncrementBoundary},
		{"WakeOnLAN", "primary", attribute.ErrNotInEnumeration},
		{"AssetTag", "abc", attribute.ErrLengthOutOfBounds},
		{"Missing", "x", ErrNotFound},
	}

	for _, tc := range tests {
		if err := s.Validate(tc.name, tc.candidate); !errors.Is(err, tc.want) {
			t.Errorf("Validate(%s, %q) = %v, want %v", tc.name, tc.candidate, err, tc.want)
		}
	}
}

func TestStage(t *testing.T) {
	s, err := Discover(fakeDevice(t))
	if err != nil {
		t.Fatalf("Discover() failed unexpectedly with error: %v", err)
	}

	if err := s.Stage("FanLevel", "35"); !errors.Is(err, attribute.ErrNotOnIncrementBoundary) {
		t.Errorf("Stage(FanLevel, 35) = %v, want %v", err, attribute.ErrNotOnIncrementBoundary)
	}
	if err := s.Stage("WakeOnLAN", "Primary"); err != nil {
		t.Errorf("Stage(WakeOnLAN, Primary) failed unexpectedly with error: %v", err)
	}
	if err := s.Stage("FanLevel", "50"); err != nil {
		t.Errorf("Stage(FanLevel, 50) failed unexpectedly with error: %v", err)
	}

	want := []Edit{{Name: "FanLevel", Value: "50"}, {Name: "WakeOnLAN", Value: "Primary"}}
	if diff := cmp.Diff(want, s.Pending()); diff != "" {
		t.Errorf("Pending() returned unexpected diff (-want +got):\n%s", diff)
	}

	s.Unstage("FanLevel")
	s.Unstage("Missing")
	want = []Edit{{Name: "WakeOnLAN", Value: "Primary"}}
	if diff := cmp.Diff(want, s.Pending()); diff != "" {
		t.Errorf("Pending() after Unstage returned unexpected diff (-want +got):\n%s", diff)
	}
}

func TestRefresh(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}
	if err := s.Stage("FanLevel", "50"); err != nil {
		t.Fatalf("Stage(FanLevel, 50) failed unexpectedly with error: %v", err)
	}

	writeValue(t, root, "FanLevel", "70")
	if err := s.Refresh("FanLevel"); err != nil {
		t.Fatalf("Refresh(FanLevel) failed unexpectedly with error: %v", err)
	}

	got, _ := s.Get("FanLevel")
	if got.CurrentValue != "70" {
		t.Errorf("Refresh(FanLevel) current value = %q, want %q", got.CurrentValue, "70")
	}
	if got.PendingValue == nil || *got.PendingValue != "50" {
		t.Errorf("Refresh(FanLevel) pending value = %v, want %q kept", got.PendingValue, "50")
	}
}

func TestRefreshStalePendingValue(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}
	if err := s.Stage("FanLevel", "50"); err != nil {
		t.Fatalf("Stage(FanLevel, 50) failed unexpectedly with error: %v", err)
	}

	// External change to a value the declared constraints reject.
	writeValue(t, root, "FanLevel", "55")

	err = s.Refresh("FanLevel")
	var rerr *RefreshError
	if !errors.As(err, &rerr) || !errors.Is(err, ErrPendingValueInvalidated) {
		t.Fatalf("Refresh(FanLevel) = %v, want *RefreshError wrapping %v", err, ErrPendingValueInvalidated)
	}
	if rerr.Attribute != "FanLevel" {
		t.Errorf("Refresh(FanLevel) error names %q, want FanLevel", rerr.Attribute)
	}

	got, _ := s.Get("FanLevel")
	if got.PendingValue != nil {
		t.Errorf("Refresh(FanLevel) kept pending value %q, want cleared", *got.PendingValue)
	}
	if got.CurrentValue != "55" {
		t.Errorf("Refresh(FanLevel) current value = %q, want %q", got.CurrentValue, "55")
	}
}

func TestRefreshKeepsConstraints(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}
	if err := s.Stage("WakeOnLAN", "Automatic"); err != nil {
		t.Fatalf("Stage(WakeOnLAN, Automatic) failed unexpectedly with error: %v", err)
	}

	utils.MakeFakeSysfs(t, root, map[string]string{
		"attributes/WakeOnLAN/possible_values": "Disabled;Primary",
		"attributes/FanLevel/max_value":        "50",
		"attributes/FanLevel/default_value":    "20",
	})

	for _, name := range []string{"WakeOnLAN", "FanLevel"} {
		if err := s.Refresh(name); err != nil {
			t.Errorf("Refresh(%s) failed unexpectedly with error: %v", name, err)
		}
	}

	wantTypes := map[string]attribute.Type{
		"WakeOnLAN": attribute.Enumeration{PossibleValues: []string{"Disabled", "Primary", "Automatic"}},
		"FanLevel":  attribute.Integer{Minimum: 0, Maximum: 100, ScalarIncrement: 10},
	}
	for name, want := range wantTypes {
		got, _ := s.Get(name)
		if diff := cmp.Diff(want, got.Type); diff != "" {
			t.Errorf("Get(%s).Type after Refresh returned unexpected diff (-want +got):\n%s", name, diff)
		}
		if got.DefaultValue != nil {
			t.Errorf("Get(%s).DefaultValue = %q after Refresh, want the discovered nil", name, *got.DefaultValue)
		}
	}

	want := []Edit{{Name: "WakeOnLAN", Value: "Automatic"}}
	if diff := cmp.Diff(want, s.Pending()); diff != "" {
		t.Errorf("Pending() after Refresh returned unexpected diff (-want +got):\n%s", diff)
	}
}

func TestRefreshKeepsType(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}

	utils.MakeFakeSysfs(t, root, map[string]string{
		"attributes/AssetTag/type":          "password",
		"attributes/AssetTag/current_value": "rack-13",
	})
	if err := s.Refresh("AssetTag"); err != nil {
		t.Fatalf("Refresh(AssetTag) failed unexpectedly with error: %v", err)
	}

	got, _ := s.Get("AssetTag")
	if got.Type.Kind() != attribute.KindString || got.CurrentValue != "rack-13" {
		t.Errorf("Refresh(AssetTag) = %+v, want string type kept and current value %q", got, "rack-13")
	}
}

func TestRefreshError(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}

	if err := s.Refresh("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Refresh(Missing) = %v, want %v", err, ErrNotFound)
	}

	if err := os.Remove(filepath.Join(root, AttributesDir, "AssetTag", attribute.PropertyCurrentValue)); err != nil {
		t.Fatalf("os.Remove failed unexpectedly with error: %v", err)
	}
	if err := s.Refresh("AssetTag"); !errors.Is(err, attribute.ErrMissingCurrentValue) {
		t.Errorf("Refresh(AssetTag) = %v, want %v", err, attribute.ErrMissingCurrentValue)
	}
	if _, ok := s.Get("AssetTag"); !ok {
		t.Errorf("Get(AssetTag) found nothing after failed refresh, want attribute kept")
	}
}

func TestPendingReboot(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}

	if s.PendingReboot() {
		t.Errorf("PendingReboot() = true, want false")
	}
	utils.MakeFakeSysfs(t, root, map[string]string{"attributes/pending_reboot": "1"})
	if !s.PendingReboot() {
		t.Errorf("PendingReboot() = false after firmware set it, want true")
	}
}

func TestMarkRebootRequired(t *testing.T) {
	root := fakeDevice(t)
	s, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover(%s) failed unexpectedly with error: %v", root, err)
	}

	if err := s.MarkRebootRequired("FanLevel"); err != nil {
		t.Fatalf("MarkRebootRequired(FanLevel) failed unexpectedly with error: %v", err)
	}
	if err := s.Refresh("FanLevel"); err != nil {
		t.Fatalf("Refresh(FanLevel) failed unexpectedly with error: %v", err)
	}
	if got, _ := s.Get("FanLevel"); !got.RequiresReboot {
		t.Errorf("Get(FanLevel).RequiresReboot = false after refresh, want sticky true")
	}

	if err := s.MarkRebootRequired("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRebootRequired(Missing) = %v, want %v", err, ErrNotFound)
	}
}

func TestAutodetect(t *testing.T) {
	classDir := t.TempDir()
	utils.MakeFakeSysfs(t, classDir, map[string]string{
		"thinklmi/attributes/":        "",
		"thinklmi/authentication/":    "",
		"dell-wmi-sysman/attributes/": "",
		"other/":                      "",
	})

	want := []string{filepath.Join(classDir, "thinklmi")}
	if diff := cmp.Diff(want, Autodetect(classDir)); diff != "" {
		t.Errorf("Autodetect(%s) returned unexpected diff (-want +got):\n%s", classDir, diff)
	}

	device := filepath.Join(classDir, "thinklmi")
	if diff := cmp.Diff([]string{device}, Autodetect(device)); diff != "" {
		t.Errorf("Autodetect(%s) returned unexpected diff (-want +got):\n%s", device, diff)
	}

	if got := Autodetect(filepath.Join(classDir, "missing")); got != nil {
		t.Errorf("Autodetect(missing) = %v, want nil", got)
	}
}
