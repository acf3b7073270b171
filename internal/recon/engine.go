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

// Package recon orchestrates create, update, and delete against the
// external calendar and the local store together. Calendar-facing effects
// always run first, but the local store is the system of record: its
// write is never skipped because the calendar failed, and overall
// success is judged on the local write alone.
package recon

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lutine/mastercal/internal/body"
	"github.com/lutine/mastercal/internal/graph"
	"github.com/lutine/mastercal/internal/models"
)

var (
	// ErrConfirmMissingLink halts a virtual-event submission that has no
	// join link until the caller resubmits with the confirmation flag.
	ErrConfirmMissingLink = errors.New("virtual link is blank; resubmit with confirmation to create without one")

	// ErrEndNotAfterStart rejects timed events whose end does not
	// strictly follow the start. Raised before any external call.
	ErrEndNotAfterStart = errors.New("end date/time must be after the start date/time")

	// ErrCalendarDisabled marks calendar sub-operations skipped because
	// Graph credentials are not configured. Local editing still works.
	ErrCalendarDisabled = errors.New("calendar credentials not configured")

	// ErrNoCalendarLink marks calendar sub-operations skipped because
	// the event was never successfully created in the calendar.
	ErrNoCalendarLink = errors.New("event has no calendar id")
)

// Calendar is the slice of the Graph client the engine drives.
type Calendar interface {
	CreateEvent(ctx context.Context, payload graph.Event) (*graph.Event, error)
	PatchEvent(ctx context.Context, eventID string, payload any) error
	PatchEventBody(ctx context.Context, eventID, bodyHTML string) error
	GetEvent(ctx context.Context, eventID string) (*graph.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Store is the slice of the local store the engine writes.
type Store interface {
	InsertEvent(ctx context.Context, e *models.Event) error
	UpdateEvent(ctx context.Context, e *models.Event) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	SetCalendarEventID(ctx context.Context, eventID, calendarEventID string) error
	SetLastBody(ctx context.Context, eventID, bodyHTML string) error
}

// Seeder reconciles notification rows after a successful local write.
type Seeder interface {
	Apply(ctx context.Context, event *models.Event, reminderAt *time.Time) error
}

// Input is one intake submission: the event plus the per-request state
// that used to live in ambient form globals.
type Input struct {
	Event *models.Event
	// Notes is free text included once in the calendar body.
	Notes string
	// ReminderAt requests a date-certain reminder mail.
	ReminderAt *time.Time
	// ConfirmMissingLink acknowledges creating a virtual event with no
	// join link.
	ConfirmMissingLink bool
}

// Report carries the independent outcome of each sub-operation. The
// sub-operations never block each other; each failure is attributed
// separately so the caller can report exactly what went wrong.
type Report struct {
	EventID     string
	CalendarErr error // calendar create/patch/delete
	BodyErr     error // metadata-block body rewrite
	StoreErr    error // local row write — the authoritative effect
	NotifyErr   error // notification seed reconciliation
}

// Succeeded reports overall success: the authoritative local-store
// effect, independent of calendar mirror success.
func (r *Report) Succeeded() bool { return r.StoreErr == nil }

// Warnings lists the tolerated failures for user display.
func (r *Report) Warnings() []string {
	var w []string
	if r.CalendarErr != nil {
		w = append(w, "calendar: "+r.CalendarErr.Error())
	}
	if r.BodyErr != nil {
		w = append(w, "calendar body: "+r.BodyErr.Error())
	}
	if r.NotifyErr != nil {
		w = append(w, "notifications: "+r.NotifyErr.Error())
	}
	return w
}

// Engine reconciles events across the calendar and the local store.
type Engine struct {
	calendar Calendar // nil when Graph credentials are missing
	store    Store
	seeder   Seeder
}

// NewEngine creates a reconciliation engine. calendar may be nil; all
// calendar sub-operations then report ErrCalendarDisabled and only local
// effects run.
func NewEngine(calendar Calendar, store Store, seeder Seeder) *Engine {
	return &Engine{calendar: calendar, store: store, seeder: seeder}
}

// Validate applies the intake invariants. Called before any external
// call; a validation error aborts the whole operation.
func (eng *Engine) Validate(in Input) error {
	e := in.Event
	if strings.TrimSpace(e.Subject) == "" {
		return errors.New("event title is required")
	}
	if e.EventType == models.EventInPerson && strings.TrimSpace(e.Location) == "" {
		return errors.New("location is required for in-person events")
	}
	if strings.TrimSpace(e.ManagerName) == "" || strings.TrimSpace(e.ManagerEmail) == "" {
		return errors.New("meeting manager name and email are required")
	}
	if !e.AllDay && !e.EndAt.After(e.StartAt) {
		return ErrEndNotAfterStart
	}
	if e.EventType == models.EventVirtual && e.VirtualLink == "" && !in.ConfirmMissingLink {
		return ErrConfirmMissingLink
	}
	return nil
}

// Create runs the two-phase creation protocol.
//
// Phase one posts the event with a placeholder back-reference in the
// body (the calendar id does not exist yet). Phase two patches the body
// with the resolved id; its failure is tolerated independently — the
// back-reference can be repaired by any later edit. The local row is
// written regardless of calendar outcome, with an empty calendar id on
// failure.
func (eng *Engine) Create(ctx context.Context, in Input) *Report {
	e := in.Event
	rep := &Report{}

	if err := eng.Validate(in); err != nil {
		rep.StoreErr = err
		return rep
	}
	normalize(e)
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	rep.EventID = e.ID

	bodyHTML := composeBody(e, in.Notes)
	e.LastBody = bodyHTML

	if eng.calendar == nil {
		rep.CalendarErr = ErrCalendarDisabled
	} else {
		in2, err := payloadInput(e, bodyHTML)
		if err != nil {
			rep.StoreErr = err
			return rep
		}
		created, err := eng.calendar.CreateEvent(ctx, graph.BuildEventPayload(in2))
		if err != nil {
			rep.CalendarErr = err
			slog.Error("calendar create failed, keeping local record", "error", err)
		} else {
			e.CalendarEventID = created.ID

			// Phase two: replace the placeholder back-reference with
			// the id we only just learned.
			resolved := body.EnsureManagerBlock(bodyHTML, e.ManagerName, created.ID)
			if err := eng.calendar.PatchEventBody(ctx, created.ID, resolved); err != nil {
				rep.BodyErr = err
				slog.Warn("back-reference patch failed, body keeps placeholder", "error", err)
			} else {
				e.LastBody = resolved
			}
		}
	}

	if err := eng.store.InsertEvent(ctx, e); err != nil {
		rep.StoreErr = fmt.Errorf("insert event: %w", err)
		return rep
	}

	rep.NotifyErr = eng.seeder.Apply(ctx, e, in.ReminderAt)
	return rep
}

// Update runs three independent sub-operations: PATCH the calendar-owned
// core fields, refresh the metadata blocks in the body, and rewrite the
// local row. Failure of one never prevents the others from attempting.
func (eng *Engine) Update(ctx context.Context, in Input) *Report {
	e := in.Event
	rep := &Report{EventID: e.ID}

	if err := eng.Validate(in); err != nil {
		rep.StoreErr = err
		return rep
	}
	normalize(e)

	if eng.calendar != nil && !e.CalendarLinked() {
		// The mirror was never created (or creation failed on intake);
		// an edit is the natural moment to retry it.
		rep.CalendarErr, rep.BodyErr = eng.lateCreate(ctx, e)
	} else {
		rep.CalendarErr = eng.patchCoreFields(ctx, e)
		rep.BodyErr = eng.refreshBodyBlocks(ctx, e)
	}

	if err := eng.store.UpdateEvent(ctx, e); err != nil {
		rep.StoreErr = fmt.Errorf("update event: %w", err)
	}

	if rep.StoreErr == nil {
		rep.NotifyErr = eng.seeder.Apply(ctx, e, in.ReminderAt)
	}
	return rep
}

// lateCreate runs the two-phase creation protocol for an event whose
// calendar mirror is missing. The resolved id is persisted immediately,
// before the local full-row write, so it survives even if that write
// later fails.
func (eng *Engine) lateCreate(ctx context.Context, e *models.Event) (calErr, bodyErr error) {
	bodyHTML := e.LastBody
	if bodyHTML == "" {
		bodyHTML = composeBody(e, "")
	} else {
		bodyHTML = body.EnsureClientBlock(bodyHTML, e.Client, e.AccreditationRequired)
		bodyHTML = body.EnsureManagerBlock(bodyHTML, e.ManagerName, body.PlaceholderID)
	}

	in, err := payloadInput(e, bodyHTML)
	if err != nil {
		return err, nil
	}
	created, err := eng.calendar.CreateEvent(ctx, graph.BuildEventPayload(in))
	if err != nil {
		return err, nil
	}

	e.CalendarEventID = created.ID
	if err := eng.store.SetCalendarEventID(ctx, e.ID, created.ID); err != nil {
		slog.Warn("persist late calendar link failed", "event_id", e.ID, "error", err)
	}

	resolved := body.EnsureManagerBlock(bodyHTML, e.ManagerName, created.ID)
	if err := eng.calendar.PatchEventBody(ctx, created.ID, resolved); err != nil {
		e.LastBody = bodyHTML
		return nil, err
	}
	e.LastBody = resolved
	return nil, nil
}

// patchCoreFields sends a CoreFieldsPatch to the calendar.
func (eng *Engine) patchCoreFields(ctx context.Context, e *models.Event) error {
	if eng.calendar == nil {
		return ErrCalendarDisabled
	}
	if !e.CalendarLinked() {
		return ErrNoCalendarLink
	}
	patch, err := buildCorePatch(e)
	if err != nil {
		return err
	}
	return eng.calendar.PatchEvent(ctx, e.CalendarEventID, patch.Payload())
}

// refreshBodyBlocks re-ensures the metadata blocks inside the calendar
// body without disturbing manual content, then writes back a BodyPatch.
// Any error here is non-fatal to the overall edit; the previously stored
// body stays in place.
func (eng *Engine) refreshBodyBlocks(ctx context.Context, e *models.Event) error {
	if eng.calendar == nil {
		return ErrCalendarDisabled
	}
	if !e.CalendarLinked() {
		return ErrNoCalendarLink
	}

	current := e.LastBody
	remote, err := eng.calendar.GetEvent(ctx, e.CalendarEventID)
	if err != nil {
		slog.Warn("calendar body fetch failed, patching from cached body", "error", err)
	} else if remote.Body != nil {
		current = remote.Body.Content
	}

	next := body.EnsureClientBlock(current, e.Client, e.AccreditationRequired)
	next = body.EnsureManagerBlock(next, e.ManagerName, e.CalendarEventID)

	patch := BodyPatch{HTML: next}
	if err := eng.calendar.PatchEventBody(ctx, e.CalendarEventID, patch.HTML); err != nil {
		return err
	}
	e.LastBody = next
	if err := eng.store.SetLastBody(ctx, e.ID, next); err != nil {
		slog.Warn("caching sent body failed", "event_id", e.ID, "error", err)
	}
	return nil
}

// Delete removes the event. The calendar delete runs first but any
// failure there is downgraded to a warning — local cleanup is never
// blocked by a calendar-side hiccup. Dependent notifications cascade
// with the local row.
func (eng *Engine) Delete(ctx context.Context, eventID string) *Report {
	rep := &Report{EventID: eventID}

	e, err := eng.store.GetEvent(ctx, eventID)
	if err != nil {
		rep.StoreErr = fmt.Errorf("load event: %w", err)
		return rep
	}
	if e == nil {
		rep.StoreErr = fmt.Errorf("event %s not found", eventID)
		return rep
	}

	if e.CalendarLinked() && eng.calendar != nil {
		if err := eng.calendar.DeleteEvent(ctx, e.CalendarEventID); err != nil {
			rep.CalendarErr = err
			slog.Warn("calendar delete issue, continuing with local cleanup", "error", err)
		}
	}

	if err := eng.store.DeleteEvent(ctx, eventID); err != nil {
		rep.StoreErr = fmt.Errorf("delete event: %w", err)
	}
	return rep
}

// normalize fixes up derivable fields before any external call: the
// all-day end may not precede the start, the reminder is clamped, and
// the kind-keyed exclusivity of location vs provider/link is enforced.
func normalize(e *models.Event) {
	if e.AllDay && e.EndAt.Before(e.StartAt) {
		e.EndAt = e.StartAt
	}
	if e.ReminderMinutes < 0 {
		e.ReminderMinutes = 0
	}
	if e.ReminderMinutes > graph.MaxReminderMinutes {
		e.ReminderMinutes = graph.MaxReminderMinutes
	}
	switch e.EventType {
	case models.EventInPerson:
		e.VirtualProvider = ""
		e.VirtualLink = ""
	case models.EventVirtual:
		e.Location = ""
		if e.VirtualProvider == "" {
			e.VirtualProvider = models.ProviderOther
		}
	}
}

// composeBody renders the initial calendar body: free content first,
// then the managed client/accreditation block, then the manager block
// with the creation placeholder id.
func composeBody(e *models.Event, notes string) string {
	var lines []string
	if e.EventType == models.EventVirtual {
		label := providerLabel(e.VirtualProvider)
		if e.VirtualLink != "" {
			link := html.EscapeString(e.VirtualLink)
			lines = append(lines, fmt.Sprintf(`<p><b>Virtual:</b> %s – <a href="%s">%s</a></p>`, label, link, link))
		} else {
			lines = append(lines, fmt.Sprintf("<p><b>Virtual:</b> %s – (link to be provided)</p>", label))
		}
	}
	if e.EventType == models.EventInPerson && e.Location != "" {
		lines = append(lines, fmt.Sprintf("<p><b>Location:</b> %s</p>", html.EscapeString(e.Location)))
	}
	if notes != "" {
		lines = append(lines, fmt.Sprintf("<p>%s</p>", notes))
	}

	base := strings.Join(lines, "\n")
	base = body.EnsureClientBlock(base, e.Client, e.AccreditationRequired)
	return body.EnsureManagerBlock(base, e.ManagerName, body.PlaceholderID)
}

func providerLabel(p models.VirtualProvider) string {
	switch p {
	case models.ProviderTeams:
		return "Teams"
	case models.ProviderZoom:
		return "Zoom"
	default:
		return "Virtual"
	}
}
