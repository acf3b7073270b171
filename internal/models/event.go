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

// Package models defines the data structures shared across the intake service.
package models

import "time"

// EventType distinguishes physical from virtual events.
type EventType string

const (
	EventInPerson EventType = "in_person"
	EventVirtual  EventType = "virtual"
)

// VirtualProvider identifies the meeting platform for virtual events.
// Only Teams is natively supported by the calendar platform; Zoom and
// other providers carry their link in the location field instead.
type VirtualProvider string

const (
	ProviderTeams VirtualProvider = "teams"
	ProviderZoom  VirtualProvider = "zoom"
	ProviderOther VirtualProvider = "other"
)

// Event is the unit of scheduling. The local row is the system of record;
// the external calendar is a mirror that may lag or fail independently.
//
// StartAt/EndAt are UTC instants. For all-day events EndAt holds the
// midnight of the *inclusive* last day in the event's zone — the exclusive
// +1 day the calendar API wants is applied only by the payload builder and
// inverted only by the delta mapping.
type Event struct {
	ID        string
	Subject   string
	Client    string // free text, may be empty
	StartAt   time.Time
	EndAt     time.Time
	Timezone  string // display zone name ("Eastern", ...), closed enumeration
	AllDay    bool
	EventType EventType

	// Exactly one of Location or (VirtualProvider, VirtualLink) is
	// meaningful, keyed by EventType. VirtualLink may be empty until a
	// link is supplied.
	Location        string
	VirtualProvider VirtualProvider
	VirtualLink     string

	ManagerName  string
	ManagerEmail string

	ReminderMinutes       int
	AccreditationRequired bool

	// CalendarEventID is empty until the first successful calendar
	// create. An empty id blocks calendar-targeted operations but never
	// blocks local editing.
	CalendarEventID string

	// LastBody caches the body HTML last sent to the calendar, so the
	// metadata block manager can patch idempotently even when the
	// calendar GET fails.
	LastBody string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CalendarLinked reports whether the event has a calendar-side mirror.
func (e *Event) CalendarLinked() bool {
	return e.CalendarEventID != ""
}

// CalendarFieldsPatch is the calendar-owned subset applied by delta sync.
// Nil pointers mean "leave the local value alone" — app-owned fields
// (manager, client, accreditation, reminder) are never present here.
type CalendarFieldsPatch struct {
	Subject     *string
	AllDay      *bool
	StartAt     *time.Time
	EndAt       *time.Time
	Location    *string
	VirtualLink *string
}

// Empty reports whether the patch carries no changes.
func (p *CalendarFieldsPatch) Empty() bool {
	return p.Subject == nil && p.AllDay == nil && p.StartAt == nil &&
		p.EndAt == nil && p.Location == nil && p.VirtualLink == nil
}
