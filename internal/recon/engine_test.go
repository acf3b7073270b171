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
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lutine/mastercal/internal/body"
	"github.com/lutine/mastercal/internal/graph"
	"github.com/lutine/mastercal/internal/models"
)

type fakeCalendar struct {
	createResp *graph.Event
	createErr  error
	patchErr   error
	bodyErr    error
	getResp    *graph.Event
	getErr     error
	deleteErr  error

	createdPayload *graph.Event
	patchedID      string
	patchedPayload any
	patchedBody    string
	deletedID      string
}

func (c *fakeCalendar) CreateEvent(_ context.Context, payload graph.Event) (*graph.Event, error) {
	c.createdPayload = &payload
	return c.createResp, c.createErr
}

func (c *fakeCalendar) PatchEvent(_ context.Context, eventID string, payload any) error {
	c.patchedID = eventID
	c.patchedPayload = payload
	return c.patchErr
}

func (c *fakeCalendar) PatchEventBody(_ context.Context, eventID, bodyHTML string) error {
	c.patchedID = eventID
	c.patchedBody = bodyHTML
	return c.bodyErr
}

func (c *fakeCalendar) GetEvent(_ context.Context, _ string) (*graph.Event, error) {
	return c.getResp, c.getErr
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	c.deletedID = eventID
	return c.deleteErr
}

type fakeStore struct {
	events map[string]*models.Event

	insertErr error
	updateErr error
	deleteErr error

	inserted  *models.Event
	updated   *models.Event
	deletedID string
	lastBody  string
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string]*models.Event{}}
}

func (s *fakeStore) InsertEvent(_ context.Context, e *models.Event) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	cp := *e
	s.inserted = &cp
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateEvent(_ context.Context, e *models.Event) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	cp := *e
	s.updated = &cp
	s.events[e.ID] = &cp
	return nil
}

func (s *fakeStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	return s.events[id], nil
}

func (s *fakeStore) DeleteEvent(_ context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedID = id
	delete(s.events, id)
	return nil
}

func (s *fakeStore) SetCalendarEventID(_ context.Context, eventID, calendarEventID string) error {
	if e, ok := s.events[eventID]; ok {
		e.CalendarEventID = calendarEventID
	}
	return nil
}

func (s *fakeStore) SetLastBody(_ context.Context, eventID, bodyHTML string) error {
	s.lastBody = bodyHTML
	return nil
}

type fakeSeeder struct {
	applied *models.Event
	err     error
}

func (s *fakeSeeder) Apply(_ context.Context, event *models.Event, _ *time.Time) error {
	s.applied = event
	return s.err
}

func sampleEvent() *models.Event {
	start := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	return &models.Event{
		ID:           "11111111-1111-1111-1111-111111111111",
		Subject:      "Quarterly Review",
		Client:       "Acme Corp",
		StartAt:      start,
		EndAt:        start.Add(time.Hour),
		Timezone:     "Eastern",
		EventType:    models.EventInPerson,
		Location:     "Board Room",
		ManagerName:  "Dana Reeve",
		ManagerEmail: "dana@example.com",
	}
}

func TestCreateTwoPhase(t *testing.T) {
	cal := &fakeCalendar{createResp: &graph.Event{ID: "AAMk-real-id"}}
	store := newFakeStore()
	seeder := &fakeSeeder{}
	eng := NewEngine(cal, store, seeder)

	rep := eng.Create(context.Background(), Input{Event: sampleEvent()})
	if !rep.Succeeded() {
		t.Fatalf("create failed: %v", rep.StoreErr)
	}
	if rep.CalendarErr != nil || rep.BodyErr != nil {
		t.Fatalf("unexpected warnings: cal=%v body=%v", rep.CalendarErr, rep.BodyErr)
	}

	// Phase one: the posted body carries the placeholder, never the id.
	if cal.createdPayload == nil || cal.createdPayload.Body == nil {
		t.Fatal("no body in create payload")
	}
	if !strings.Contains(cal.createdPayload.Body.Content, body.PlaceholderID) {
		t.Error("create body missing placeholder back-reference")
	}
	if strings.Contains(cal.createdPayload.Body.Content, "AAMk-real-id") {
		t.Error("create body has the real id before it could exist")
	}

	// Phase two: the body patch swaps in the resolved id.
	if cal.patchedID != "AAMk-real-id" {
		t.Errorf("body patch went to %q", cal.patchedID)
	}
	if got := body.ExtractBackReference(cal.patchedBody); got != "AAMk-real-id" {
		t.Errorf("patched back-reference = %q", got)
	}

	if store.inserted == nil {
		t.Fatal("local row not written")
	}
	if store.inserted.CalendarEventID != "AAMk-real-id" {
		t.Errorf("stored calendar id = %q", store.inserted.CalendarEventID)
	}
	if seeder.applied == nil {
		t.Error("notification seeds not applied")
	}
}

func TestCreateCalendarFailureStillWritesLocal(t *testing.T) {
	cal := &fakeCalendar{createErr: errors.New("503 from graph")}
	store := newFakeStore()
	eng := NewEngine(cal, store, &fakeSeeder{})

	rep := eng.Create(context.Background(), Input{Event: sampleEvent()})
	if !rep.Succeeded() {
		t.Fatalf("local write should survive calendar failure: %v", rep.StoreErr)
	}
	if rep.CalendarErr == nil {
		t.Error("calendar error not reported")
	}
	if store.inserted == nil {
		t.Fatal("local row not written")
	}
	if store.inserted.CalendarEventID != "" {
		t.Errorf("orphan row should have empty calendar id, got %q", store.inserted.CalendarEventID)
	}
}

func TestCreateBodyPatchFailureTolerated(t *testing.T) {
	cal := &fakeCalendar{
		createResp: &graph.Event{ID: "AAMk-x"},
		bodyErr:    errors.New("timeout"),
	}
	store := newFakeStore()
	eng := NewEngine(cal, store, &fakeSeeder{})

	rep := eng.Create(context.Background(), Input{Event: sampleEvent()})
	if !rep.Succeeded() {
		t.Fatalf("create failed: %v", rep.StoreErr)
	}
	if rep.BodyErr == nil {
		t.Error("body patch failure not reported")
	}
	if store.inserted.CalendarEventID != "AAMk-x" {
		t.Error("calendar link lost despite successful create")
	}
	// Cached body keeps the placeholder so a later edit can repair it.
	if !strings.Contains(store.inserted.LastBody, body.PlaceholderID) {
		t.Error("cached body should keep the placeholder after a failed patch")
	}
}

func TestCreateRejectsEndNotAfterStart(t *testing.T) {
	cal := &fakeCalendar{}
	e := sampleEvent()
	e.EndAt = e.StartAt
	eng := NewEngine(cal, newFakeStore(), &fakeSeeder{})

	rep := eng.Create(context.Background(), Input{Event: e})
	if !errors.Is(rep.StoreErr, ErrEndNotAfterStart) {
		t.Fatalf("want ErrEndNotAfterStart, got %v", rep.StoreErr)
	}
	if cal.createdPayload != nil {
		t.Error("calendar called despite failed validation")
	}
}

func TestCreateVirtualWithoutLinkNeedsConfirmation(t *testing.T) {
	e := sampleEvent()
	e.EventType = models.EventVirtual
	e.VirtualProvider = models.ProviderTeams
	e.Location = ""
	eng := NewEngine(nil, newFakeStore(), &fakeSeeder{})

	rep := eng.Create(context.Background(), Input{Event: e})
	if !errors.Is(rep.StoreErr, ErrConfirmMissingLink) {
		t.Fatalf("want ErrConfirmMissingLink, got %v", rep.StoreErr)
	}

	rep = eng.Create(context.Background(), Input{Event: e, ConfirmMissingLink: true})
	if !rep.Succeeded() {
		t.Fatalf("confirmed create failed: %v", rep.StoreErr)
	}
}

func TestCreateWithoutCalendarConfigured(t *testing.T) {
	store := newFakeStore()
	eng := NewEngine(nil, store, &fakeSeeder{})

	rep := eng.Create(context.Background(), Input{Event: sampleEvent()})
	if !rep.Succeeded() {
		t.Fatalf("local-only create failed: %v", rep.StoreErr)
	}
	if !errors.Is(rep.CalendarErr, ErrCalendarDisabled) {
		t.Errorf("want ErrCalendarDisabled, got %v", rep.CalendarErr)
	}
	if store.inserted == nil {
		t.Fatal("local row not written")
	}
}

func TestUpdateSubOperationsIndependent(t *testing.T) {
	e := sampleEvent()
	e.CalendarEventID = "AAMk-y"
	e.LastBody = body.EnsureManagerBlock("<p>hello</p>", e.ManagerName, "AAMk-y")

	cal := &fakeCalendar{
		patchErr: errors.New("core patch rejected"),
		getResp:  &graph.Event{ID: "AAMk-y", Body: &graph.Body{ContentType: "html", Content: "<p>edited remotely</p>"}},
	}
	store := newFakeStore()
	store.events[e.ID] = e
	seeder := &fakeSeeder{}
	eng := NewEngine(cal, store, seeder)

	rep := eng.Update(context.Background(), Input{Event: e})
	if !rep.Succeeded() {
		t.Fatalf("local update should survive calendar failure: %v", rep.StoreErr)
	}
	if rep.CalendarErr == nil {
		t.Error("core patch failure not reported")
	}
	// The body sub-op still ran and worked from the remote body.
	if rep.BodyErr != nil {
		t.Fatalf("body sub-op failed: %v", rep.BodyErr)
	}
	if !strings.Contains(cal.patchedBody, "edited remotely") {
		t.Error("remote manual content lost in body rewrite")
	}
	if got := body.ExtractBackReference(cal.patchedBody); got != "AAMk-y" {
		t.Errorf("back-reference after rewrite = %q", got)
	}
	if store.updated == nil {
		t.Fatal("local row not rewritten")
	}
	if seeder.applied == nil {
		t.Error("seeds not reconciled after successful local write")
	}
}

func TestUpdateCorePatchExcludesBody(t *testing.T) {
	e := sampleEvent()
	e.CalendarEventID = "AAMk-z"
	cal := &fakeCalendar{getResp: &graph.Event{ID: "AAMk-z"}}
	eng := NewEngine(cal, newFakeStore(), &fakeSeeder{})

	rep := eng.Update(context.Background(), Input{Event: e})
	if rep.CalendarErr != nil {
		t.Fatalf("core patch failed: %v", rep.CalendarErr)
	}
	ev, ok := cal.patchedPayload.(graph.Event)
	if !ok {
		t.Fatalf("core patch payload has type %T", cal.patchedPayload)
	}
	if ev.Body != nil {
		t.Error("core patch must not carry a body")
	}
	if ev.Subject != "Quarterly Review" {
		t.Errorf("core patch subject = %q", ev.Subject)
	}
}

func TestUpdateBodyFetchFailureFallsBackToCache(t *testing.T) {
	e := sampleEvent()
	e.CalendarEventID = "AAMk-q"
	e.LastBody = "<p>cached content</p>"
	cal := &fakeCalendar{getErr: errors.New("transient 500")}
	eng := NewEngine(cal, newFakeStore(), &fakeSeeder{})

	rep := eng.Update(context.Background(), Input{Event: e})
	if rep.BodyErr != nil {
		t.Fatalf("body sub-op should fall back to cache: %v", rep.BodyErr)
	}
	if !strings.Contains(cal.patchedBody, "cached content") {
		t.Error("cached body not used as rewrite base")
	}
}

func TestUpdateLateCreatesMissingMirror(t *testing.T) {
	e := sampleEvent() // no CalendarEventID
	cal := &fakeCalendar{createResp: &graph.Event{ID: "AAMk-late"}}
	store := newFakeStore()
	store.events[e.ID] = e
	eng := NewEngine(cal, store, &fakeSeeder{})

	rep := eng.Update(context.Background(), Input{Event: e})
	if !rep.Succeeded() {
		t.Fatalf("update failed: %v", rep.StoreErr)
	}
	if rep.CalendarErr != nil || rep.BodyErr != nil {
		t.Fatalf("late create reported errors: cal=%v body=%v", rep.CalendarErr, rep.BodyErr)
	}
	if cal.createdPayload == nil {
		t.Fatal("calendar create not attempted for unlinked event")
	}
	// The new link is persisted immediately, then carried in the row.
	if store.events[e.ID].CalendarEventID != "AAMk-late" {
		t.Error("late calendar link not persisted")
	}
	if got := body.ExtractBackReference(cal.patchedBody); got != "AAMk-late" {
		t.Errorf("back-reference after late create = %q", got)
	}
}

func TestUpdateUnlinkedWithoutCalendarConfigured(t *testing.T) {
	e := sampleEvent()
	store := newFakeStore()
	eng := NewEngine(nil, store, &fakeSeeder{})

	rep := eng.Update(context.Background(), Input{Event: e})
	if !rep.Succeeded() {
		t.Fatalf("update failed: %v", rep.StoreErr)
	}
	if !errors.Is(rep.CalendarErr, ErrCalendarDisabled) {
		t.Errorf("want ErrCalendarDisabled, got %v", rep.CalendarErr)
	}
}

func TestDeleteCalendarFailureIsWarning(t *testing.T) {
	e := sampleEvent()
	e.CalendarEventID = "AAMk-d"
	cal := &fakeCalendar{deleteErr: errors.New("429 throttled")}
	store := newFakeStore()
	store.events[e.ID] = e
	eng := NewEngine(cal, store, &fakeSeeder{})

	rep := eng.Delete(context.Background(), e.ID)
	if !rep.Succeeded() {
		t.Fatalf("local delete blocked by calendar failure: %v", rep.StoreErr)
	}
	if rep.CalendarErr == nil {
		t.Error("calendar failure not surfaced as warning")
	}
	if store.deletedID != e.ID {
		t.Error("local row not deleted")
	}
}

func TestDeleteUnknownEvent(t *testing.T) {
	eng := NewEngine(nil, newFakeStore(), &fakeSeeder{})
	rep := eng.Delete(context.Background(), "missing-id")
	if rep.Succeeded() {
		t.Fatal("delete of unknown event should fail")
	}
}

func TestNormalizeClampsAndClearsCrossKindFields(t *testing.T) {
	e := sampleEvent()
	e.EventType = models.EventVirtual
	e.VirtualProvider = models.ProviderZoom
	e.VirtualLink = "https://zoom.example/j/1"
	e.Location = "should be cleared"
	e.ReminderMinutes = 9_999_999
	normalize(e)

	if e.Location != "" {
		t.Error("virtual event kept a physical location")
	}
	if e.ReminderMinutes != graph.MaxReminderMinutes {
		t.Errorf("reminder not clamped: %d", e.ReminderMinutes)
	}

	p := sampleEvent()
	p.VirtualLink = "https://stale.example"
	p.VirtualProvider = models.ProviderTeams
	normalize(p)
	if p.VirtualLink != "" || p.VirtualProvider != "" {
		t.Error("in-person event kept virtual fields")
	}
}
