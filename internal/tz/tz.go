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

// Package tz translates between the closed set of display zone names used
// on the intake form, the IANA identifiers used for date arithmetic, and
// the Windows identifiers the Graph calendar API requires.
//
// The enumeration is small, closed, and must stay exactly aligned with the
// identifiers Graph accepts, so it is maintained as explicit literal maps
// rather than derived programmatically. An unrecognised display name is a
// configuration error, not a runtime case to recover from.
package tz

import (
	"fmt"
	"time"
)

// Pair holds the two identifiers behind one display zone name.
type Pair struct {
	IANA    string // civil-time arithmetic (time.LoadLocation)
	Windows string // Graph API dateTimeTimeZone.timeZone
}

var zones = map[string]Pair{
	"Eastern":  {IANA: "America/New_York", Windows: "Eastern Standard Time"},
	"Central":  {IANA: "America/Chicago", Windows: "Central Standard Time"},
	"Mountain": {IANA: "America/Denver", Windows: "Mountain Standard Time"},
	"Pacific":  {IANA: "America/Los_Angeles", Windows: "Pacific Standard Time"},
	"Alaska":   {IANA: "America/Anchorage", Windows: "Alaskan Standard Time"},
	"Hawaii":   {IANA: "Pacific/Honolulu", Windows: "Hawaiian Standard Time"},
}

// windowsToIANA is the reverse lookup used when mapping calendar
// timestamps back to civil zones during delta sync.
var windowsToIANA = map[string]string{
	"Eastern Standard Time":  "America/New_York",
	"Central Standard Time":  "America/Chicago",
	"Mountain Standard Time": "America/Denver",
	"Pacific Standard Time":  "America/Los_Angeles",
	"Alaskan Standard Time":  "America/Anchorage",
	"Hawaiian Standard Time": "Pacific/Honolulu",
}

// Names returns the display names in form order.
func Names() []string {
	return []string{"Eastern", "Central", "Mountain", "Pacific", "Alaska", "Hawaii"}
}

// Resolve maps a display zone name to its identifier pair.
func Resolve(display string) (Pair, error) {
	p, ok := zones[display]
	if !ok {
		return Pair{}, fmt.Errorf("unknown time zone %q", display)
	}
	return p, nil
}

// Location loads the IANA location for a display zone name.
func Location(display string) (*time.Location, error) {
	p, err := Resolve(display)
	if err != nil {
		return nil, err
	}
	loc, err := time.LoadLocation(p.IANA)
	if err != nil {
		return nil, fmt.Errorf("load location %s: %w", p.IANA, err)
	}
	return loc, nil
}

// FromWindows maps a Windows zone identifier back to its IANA identifier.
func FromWindows(windows string) (string, bool) {
	iana, ok := windowsToIANA[windows]
	return iana, ok
}
