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

package recon

import (
	"fmt"

	"github.com/lutine/mastercal/internal/graph"
	"github.com/lutine/mastercal/internal/models"
	"github.com/lutine/mastercal/internal/tz"
)

// The three partial-update shapes the engine sends. Keeping them as
// distinct types makes each reconciliation step's exact field scope
// visible at the call site instead of being assembled ad hoc.

// CoreFieldsPatch carries the calendar-owned core fields PATCHed on
// update: subject, timing, all-day flag, location, reminder. Never the
// body — body rewrites travel in a BodyPatch so metadata-block updates
// cannot clobber manual edits elsewhere in the event.
type CoreFieldsPatch struct {
	ev graph.Event
}

// Payload returns the wire representation.
func (p CoreFieldsPatch) Payload() graph.Event { return p.ev }

// BodyPatch rewrites only the body field.
type BodyPatch struct {
	HTML string
}

// LocalRowPatch is the full local field set, including fields the
// calendar does not track.
type LocalRowPatch struct {
	Event *models.Event
}

// payloadInput assembles the builder input from an event record. The
// stored UTC instants are rendered as wall clock in the event's zone;
// the all-day exclusive-end conversion stays inside the builder.
func payloadInput(e *models.Event, bodyHTML string) (graph.PayloadInput, error) {
	zone, err := tz.Resolve(e.Timezone)
	if err != nil {
		return graph.PayloadInput{}, err
	}
	loc, err := tz.Location(e.Timezone)
	if err != nil {
		return graph.PayloadInput{}, err
	}

	return graph.PayloadInput{
		Subject:         e.Subject,
		BodyHTML:        bodyHTML,
		Zone:            zone,
		Start:           e.StartAt.In(loc),
		End:             e.EndAt.In(loc),
		AllDay:          e.AllDay,
		LocationStr:     locationString(e),
		OnlineMeeting:   e.EventType == models.EventVirtual && e.VirtualProvider == models.ProviderTeams,
		ReminderMinutes: e.ReminderMinutes,
	}, nil
}

// locationString picks the calendar location: the physical venue for
// in-person events, the join link for virtual events on providers the
// calendar does not natively support.
func locationString(e *models.Event) string {
	switch e.EventType {
	case models.EventInPerson:
		return e.Location
	case models.EventVirtual:
		if e.VirtualProvider == models.ProviderZoom && e.VirtualLink != "" {
			return e.VirtualLink
		}
	}
	return ""
}

// buildCorePatch derives the calendar-owned field subset from the event.
func buildCorePatch(e *models.Event) (CoreFieldsPatch, error) {
	in, err := payloadInput(e, "")
	if err != nil {
		return CoreFieldsPatch{}, fmt.Errorf("build core patch: %w", err)
	}
	ev := graph.BuildEventPayload(in)
	ev.Body = nil // body travels separately
	return CoreFieldsPatch{ev: ev}, nil
}
