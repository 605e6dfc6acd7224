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

package utils

import (
	"os"
	"path/filepath"
	"testing"
)

// MakeFakeSysfs writes files, keyed by slash separated path relative to root, under
// root. Values are written with the trailing newline the kernel appends. A key ending
// in "/" creates an empty directory.
func MakeFakeSysfs(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if rel[len(rel)-1] == '/' {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("os.MkdirAll(%s) failed unexpectedly with error: %v", path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("os.MkdirAll(%s) failed unexpectedly with error: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content+sysfsLineEnd), 0644); err != nil {
			t.Fatalf("os.WriteFile(%s) failed unexpectedly with error: %v", path, err)
		}
	}
}
