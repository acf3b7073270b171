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

// Package graph is the Microsoft Graph calendar client: event CRUD against
// a shared mailbox, the pure event payload builder, and the delta query
// plumbing used by incremental sync.
package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/lutine/mastercal/internal/tz"
)

// DateTimeTimeZone mirrors the Graph dateTimeTimeZone resource: a local
// wall-clock string plus a zone identifier.
type DateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Body mirrors the Graph itemBody resource.
type Body struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Location mirrors the Graph location resource. Only the display name is
// used on this side.
type Location struct {
	DisplayName string `json:"displayName"`
}

// OnlineMeeting carries the join link Graph attaches to Teams meetings.
type OnlineMeeting struct {
	JoinURL string `json:"joinUrl"`
}

// Event is the calendar-side event representation, shared by create
// payloads, GET responses, and delta pages.
type Event struct {
	ID                         string            `json:"id,omitempty"`
	Subject                    string            `json:"subject,omitempty"`
	Body                       *Body             `json:"body,omitempty"`
	IsAllDay                   *bool             `json:"isAllDay,omitempty"`
	Start                      *DateTimeTimeZone `json:"start,omitempty"`
	End                        *DateTimeTimeZone `json:"end,omitempty"`
	Location                   *Location         `json:"location,omitempty"`
	OnlineMeeting              *OnlineMeeting    `json:"onlineMeeting,omitempty"`
	IsOnlineMeeting            bool              `json:"isOnlineMeeting,omitempty"`
	OnlineMeetingProvider      string            `json:"onlineMeetingProvider,omitempty"`
	ShowAs                     string            `json:"showAs,omitempty"`
	IsReminderOn               *bool             `json:"isReminderOn,omitempty"`
	ReminderMinutesBeforeStart *int              `json:"reminderMinutesBeforeStart,omitempty"`

	Removed *struct {
		Reason string `json:"reason"`
	} `json:"@removed,omitempty"`
}

// DeltaPage is one page of a calendarView/delta response. A page carries
// either a next link (more pages in this pass) or a terminal delta link
// (end of pass — persist it as the new cursor).
type DeltaPage struct {
	Value     []Event `json:"value"`
	NextLink  string  `json:"@odata.nextLink"`
	DeltaLink string  `json:"@odata.deltaLink"`
}

const wallClockLayout = "2006-01-02T15:04:05"

// ParseTime converts a Graph dateTimeTimeZone into a UTC instant.
//
// Graph returns local wall-clock strings with a separate zone name, which
// may be a Windows identifier, an IANA identifier, or "UTC". Strings that
// already carry an offset or Z suffix are trusted as-is. A genuinely
// zone-less timestamp is treated as already UTC — a documented fallback,
// not an inference.
func ParseTime(dt *DateTimeTimeZone) (time.Time, error) {
	if dt == nil || dt.DateTime == "" {
		return time.Time{}, fmt.Errorf("empty dateTime")
	}

	raw := strings.Replace(dt.DateTime, "Z", "+00:00", 1)
	if t, err := time.Parse("2006-01-02T15:04:05.999999999-07:00", raw); err == nil {
		return t.UTC(), nil
	}

	loc := time.UTC
	switch zone := strings.TrimSpace(dt.TimeZone); {
	case zone == "" || strings.EqualFold(zone, "UTC"):
		// fallback: already UTC
	default:
		name := zone
		if iana, ok := tz.FromWindows(zone); ok {
			name = iana
		}
		if l, err := time.LoadLocation(name); err == nil {
			loc = l
		}
	}

	t, err := time.ParseInLocation(wallClockLayout+".999999999", dt.DateTime, loc)
	if err != nil {
		t, err = time.ParseInLocation(wallClockLayout, dt.DateTime, loc)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse dateTime %q: %w", dt.DateTime, err)
	}
	return t.UTC(), nil
}
