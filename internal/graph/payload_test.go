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
	"testing"
	"time"

	"github.com/lutine/mastercal/internal/tz"
)

func eastern(t *testing.T) tz.Pair {
	t.Helper()
	p, err := tz.Resolve("Eastern")
	if err != nil {
		t.Fatal(err)
	}
	return p
}

// TestBuildEventPayload_AllDayMultiDay: an all-day event spanning June
// 10–12 inclusive must emit start 2025-06-10 and exclusive end 2025-06-13,
// marked free.
func TestBuildEventPayload_AllDayMultiDay(t *testing.T) {
	ev := BuildEventPayload(PayloadInput{
		Subject:         "Board Retreat",
		BodyHTML:        "<p>agenda</p>",
		Zone:            eastern(t),
		Start:           time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		End:             time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
		AllDay:          true,
		ReminderMinutes: 30,
	})

	if ev.Start.DateTime != "2025-06-10" {
		t.Errorf("start = %q, want 2025-06-10", ev.Start.DateTime)
	}
	if ev.End.DateTime != "2025-06-13" {
		t.Errorf("end = %q, want 2025-06-13 (exclusive)", ev.End.DateTime)
	}
	if ev.Start.TimeZone != "Eastern Standard Time" {
		t.Errorf("zone = %q, want Eastern Standard Time", ev.Start.TimeZone)
	}
	if ev.IsAllDay == nil || !*ev.IsAllDay {
		t.Error("isAllDay not set")
	}
	if ev.ShowAs != "free" {
		t.Errorf("showAs = %q, want free", ev.ShowAs)
	}
}

// TestBuildEventPayload_Timed verifies wall-clock timestamps with no UTC
// conversion at this layer.
func TestBuildEventPayload_Timed(t *testing.T) {
	start := time.Date(2025, 9, 4, 9, 0, 0, 0, time.UTC)
	end := time.Date(2025, 9, 4, 10, 30, 0, 0, time.UTC)

	ev := BuildEventPayload(PayloadInput{
		Subject:         "Kickoff",
		Zone:            eastern(t),
		Start:           start,
		End:             end,
		ReminderMinutes: 15,
	})

	if ev.Start.DateTime != "2025-09-04T09:00:00" {
		t.Errorf("start = %q, want 2025-09-04T09:00:00", ev.Start.DateTime)
	}
	if ev.End.DateTime != "2025-09-04T10:30:00" {
		t.Errorf("end = %q, want 2025-09-04T10:30:00", ev.End.DateTime)
	}
	if ev.IsAllDay != nil && *ev.IsAllDay {
		t.Error("timed event marked all-day")
	}
	if ev.ReminderMinutesBeforeStart == nil || *ev.ReminderMinutesBeforeStart != 15 {
		t.Errorf("reminder minutes = %v, want 15", ev.ReminderMinutesBeforeStart)
	}
}

// TestBuildEventPayload_ReminderClamp verifies the [0, 525600] clamp.
func TestBuildEventPayload_ReminderClamp(t *testing.T) {
	zone := eastern(t)
	now := time.Now()

	ev := BuildEventPayload(PayloadInput{Zone: zone, Start: now, End: now, ReminderMinutes: -5})
	if *ev.ReminderMinutesBeforeStart != 0 {
		t.Errorf("negative reminder clamped to %d, want 0", *ev.ReminderMinutesBeforeStart)
	}

	ev = BuildEventPayload(PayloadInput{Zone: zone, Start: now, End: now, ReminderMinutes: 999999})
	if *ev.ReminderMinutesBeforeStart != MaxReminderMinutes {
		t.Errorf("oversized reminder clamped to %d, want %d", *ev.ReminderMinutesBeforeStart, MaxReminderMinutes)
	}
}

// TestBuildEventPayload_OnlineMeeting: Teams gets the native provider
// flags; other providers carry their link via the location string.
func TestBuildEventPayload_OnlineMeeting(t *testing.T) {
	zone := eastern(t)
	now := time.Now()

	teams := BuildEventPayload(PayloadInput{Zone: zone, Start: now, End: now, OnlineMeeting: true})
	if !teams.IsOnlineMeeting || teams.OnlineMeetingProvider != "teamsForBusiness" {
		t.Errorf("teams payload = %+v, want native online meeting", teams)
	}

	zoom := BuildEventPayload(PayloadInput{
		Zone: zone, Start: now, End: now,
		LocationStr: "https://zoom.us/j/123",
	})
	if zoom.IsOnlineMeeting {
		t.Error("non-Teams event must not set isOnlineMeeting")
	}
	if zoom.Location == nil || zoom.Location.DisplayName != "https://zoom.us/j/123" {
		t.Errorf("zoom link not carried in location: %+v", zoom.Location)
	}
}

// TestBuildEventPayload_Pure: same input, same payload.
func TestBuildEventPayload_Pure(t *testing.T) {
	in := PayloadInput{
		Subject: "Repeatable",
		Zone:    eastern(t),
		Start:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		AllDay:  true,
	}

	a := BuildEventPayload(in)
	b := BuildEventPayload(in)
	if a.Start.DateTime != b.Start.DateTime || a.End.DateTime != b.End.DateTime {
		t.Errorf("builder not deterministic: %+v vs %+v", a, b)
	}
}

// TestParseTime covers the three accepted shapes: explicit offset, wall
// clock plus zone name, and the zone-less UTC fallback.
func TestParseTime(t *testing.T) {
	got, err := ParseTime(&DateTimeTimeZone{DateTime: "2025-09-01T09:00:00.0000000", TimeZone: "Eastern Standard Time"})
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 9, 1, 13, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("windows zone: got %v, want %v", got, want)
	}

	got, err = ParseTime(&DateTimeTimeZone{DateTime: "2025-09-01T09:00:00Z"})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Z suffix: got %v", got)
	}

	// Zone-less timestamps are treated as already UTC.
	got, err = ParseTime(&DateTimeTimeZone{DateTime: "2025-09-01T09:00:00"})
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("naive fallback: got %v", got)
	}

	if _, err := ParseTime(nil); err == nil {
		t.Error("expected error for nil dateTime")
	}
}
