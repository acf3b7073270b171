// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tz

import "testing"

// TestResolve_AllZones verifies every display name resolves to both
// identifiers and a loadable location.
func TestResolve_AllZones(t *testing.T) {
	for _, name := range Names() {
		p, err := Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if p.IANA == "" || p.Windows == "" {
			t.Errorf("Resolve(%q) = %+v, want both identifiers", name, p)
		}
		if _, err := Location(name); err != nil {
			t.Errorf("Location(%q): %v", name, err)
		}
	}
}

// TestResolve_Unknown verifies the translator fails closed.
func TestResolve_Unknown(t *testing.T) {
	if _, err := Resolve("Atlantic"); err == nil {
		t.Error("expected error for unknown zone")
	}
	if _, err := Location(""); err == nil {
		t.Error("expected error for empty zone")
	}
}

// TestFromWindows verifies the reverse lookup round-trips.
func TestFromWindows(t *testing.T) {
	for _, name := range Names() {
		p, _ := Resolve(name)
		iana, ok := FromWindows(p.Windows)
		if !ok || iana != p.IANA {
			t.Errorf("FromWindows(%q) = %q, %v, want %q", p.Windows, iana, ok, p.IANA)
		}
	}

	if _, ok := FromWindows("GMT Standard Time"); ok {
		t.Error("expected miss for zone outside the enumeration")
	}
}
