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

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/lutine/mastercal/internal/models"
)

type seedRecorder struct {
	reminders map[string]time.Time
	nags      map[string]time.Time
	deleted   []string
}

func newSeedRecorder() *seedRecorder {
	return &seedRecorder{
		reminders: map[string]time.Time{},
		nags:      map[string]time.Time{},
	}
}

func (r *seedRecorder) UpsertCustomEmail(_ context.Context, eventID string, notifyAt time.Time, _ models.NotificationPayload) error {
	r.reminders[eventID] = notifyAt
	return nil
}

func (r *seedRecorder) HasMissingLink(_ context.Context, eventID string) (bool, error) {
	_, ok := r.nags[eventID]
	return ok, nil
}

func (r *seedRecorder) SeedMissingLink(_ context.Context, eventID string, notifyAt time.Time) error {
	r.nags[eventID] = notifyAt
	return nil
}

func (r *seedRecorder) DeleteMissingLink(_ context.Context, eventID string) error {
	delete(r.nags, eventID)
	r.deleted = append(r.deleted, eventID)
	return nil
}

func testScheduler(rec *seedRecorder) *Scheduler {
	s := NewScheduler(rec)
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	}
	return s
}

func virtualEvent(link string) *models.Event {
	return &models.Event{
		ID:           "ev-1",
		Subject:      "Town Hall",
		EventType:    models.EventVirtual,
		VirtualLink:  link,
		ManagerEmail: "dana@example.com",
	}
}

func TestApplySeedsMissingLinkNagOnce(t *testing.T) {
	rec := newSeedRecorder()
	s := testScheduler(rec)

	if err := s.Apply(context.Background(), virtualEvent(""), nil); err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 6, 8, 9, 0, 0, 0, time.UTC)
	if got := rec.nags["ev-1"]; !got.Equal(want) {
		t.Errorf("nag due %v, want %v", got, want)
	}

	// A second pass with a nag outstanding must not reschedule it.
	rec.nags["ev-1"] = want.Add(-time.Hour)
	if err := s.Apply(context.Background(), virtualEvent(""), nil); err != nil {
		t.Fatal(err)
	}
	if !rec.nags["ev-1"].Equal(want.Add(-time.Hour)) {
		t.Error("outstanding nag was rescheduled")
	}
}

func TestApplyClearsNagWhenLinkArrives(t *testing.T) {
	rec := newSeedRecorder()
	rec.nags["ev-1"] = time.Now()
	s := testScheduler(rec)

	if err := s.Apply(context.Background(), virtualEvent("https://zoom.example/j/1"), nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := rec.nags["ev-1"]; ok {
		t.Error("nag survived link arrival")
	}
}

func TestApplyIgnoresInPersonEvents(t *testing.T) {
	rec := newSeedRecorder()
	s := testScheduler(rec)

	e := &models.Event{ID: "ev-2", EventType: models.EventInPerson}
	if err := s.Apply(context.Background(), e, nil); err != nil {
		t.Fatal(err)
	}
	if len(rec.nags) != 0 {
		t.Error("in-person event seeded a link nag")
	}
}

func TestApplyUpsertsReminder(t *testing.T) {
	rec := newSeedRecorder()
	s := testScheduler(rec)

	at := time.Date(2025, 6, 9, 15, 0, 0, 0, time.UTC)
	if err := s.Apply(context.Background(), virtualEvent("https://x.example"), &at); err != nil {
		t.Fatal(err)
	}
	if !rec.reminders["ev-1"].Equal(at) {
		t.Errorf("reminder at %v", rec.reminders["ev-1"])
	}

	// Moving the reminder replaces the row rather than stacking another.
	later := at.Add(24 * time.Hour)
	if err := s.Apply(context.Background(), virtualEvent("https://x.example"), &later); err != nil {
		t.Fatal(err)
	}
	if !rec.reminders["ev-1"].Equal(later) {
		t.Error("reminder not rescheduled")
	}
	if len(rec.reminders) != 1 {
		t.Errorf("%d reminder rows, want one", len(rec.reminders))
	}
}
