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

package graph

import (
	"time"

	"github.com/lutine/mastercal/internal/tz"
)

// MaxReminderMinutes caps the reminder lead time at 365 days.
const MaxReminderMinutes = 525600

// PayloadInput is the normalised field set the payload builder consumes.
//
// Start and End are local wall-clock instants in the event's zone. For
// all-day events only the date part is meaningful and End is the
// *inclusive* last day — the builder alone converts it to the calendar's
// exclusive convention.
type PayloadInput struct {
	Subject         string
	BodyHTML        string
	Zone            tz.Pair
	Start           time.Time
	End             time.Time
	AllDay          bool
	LocationStr     string // physical venue, or a non-Teams join link
	OnlineMeeting   bool   // virtual on the natively supported provider
	ReminderMinutes int
}

// BuildEventPayload turns a normalised event record into the create/update
// representation for the calendar API. Pure: same input, same payload, no
// side effects.
//
// Events are always marked showAs=free so all-day and multi-day items sit
// at the top of calendar views without blocking anyone's availability.
func BuildEventPayload(in PayloadInput) Event {
	minutes := in.ReminderMinutes
	if minutes < 0 {
		minutes = 0
	}
	if minutes > MaxReminderMinutes {
		minutes = MaxReminderMinutes
	}
	reminderOn := true
	allDay := in.AllDay

	ev := Event{
		Subject: in.Subject,
		Body:    &Body{ContentType: "HTML", Content: in.BodyHTML},
		// Explicit either way so a PATCH can flip an all-day event to
		// timed; omitempty would swallow the false.
		IsAllDay:                   &allDay,
		ShowAs:                     "free",
		IsReminderOn:               &reminderOn,
		ReminderMinutesBeforeStart: &minutes,
	}

	if in.AllDay {
		// Date-only; the calendar end date is exclusive (+1 day). The
		// zone is still attached per API requirement even though clock
		// time is irrelevant.
		ev.Start = &DateTimeTimeZone{
			DateTime: in.Start.Format("2006-01-02"),
			TimeZone: in.Zone.Windows,
		}
		ev.End = &DateTimeTimeZone{
			DateTime: in.End.AddDate(0, 0, 1).Format("2006-01-02"),
			TimeZone: in.Zone.Windows,
		}
	} else {
		// Full local wall-clock timestamps. No UTC conversion here —
		// Graph resolves wall time via the attached zone identifier.
		ev.Start = &DateTimeTimeZone{
			DateTime: in.Start.Format(wallClockLayout),
			TimeZone: in.Zone.Windows,
		}
		ev.End = &DateTimeTimeZone{
			DateTime: in.End.Format(wallClockLayout),
			TimeZone: in.Zone.Windows,
		}
	}

	if in.LocationStr != "" {
		ev.Location = &Location{DisplayName: in.LocationStr}
	}

	if in.OnlineMeeting {
		ev.IsOnlineMeeting = true
		ev.OnlineMeetingProvider = "teamsForBusiness"
	}

	return ev
}
