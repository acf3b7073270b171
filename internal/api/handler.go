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

// Package api exposes the intake service over HTTP/JSON. The handlers
// are a thin shell: validation and orchestration live in the
// reconciliation engine, the handlers translate requests and map the
// engine's reports onto status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lutine/mastercal/internal/deltasync"
	"github.com/lutine/mastercal/internal/export"
	"github.com/lutine/mastercal/internal/mailer"
	"github.com/lutine/mastercal/internal/models"
	"github.com/lutine/mastercal/internal/queue"
	"github.com/lutine/mastercal/internal/recon"
	"github.com/lutine/mastercal/internal/store"
	"github.com/lutine/mastercal/internal/tz"
)

// Store is the read/lookup surface the handlers use directly; writes go
// through the engine. Implemented by store.Store.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, from, to time.Time, client string) ([]models.Event, error)
	ListClients(ctx context.Context) ([]string, error)
	ListManagers(ctx context.Context) ([]store.Manager, error)
	EnsureClient(ctx context.Context, name string) error
	EnsureManager(ctx context.Context, name, email string) error
	Ping(ctx context.Context) error
}

// Engine is the reconciliation surface the handlers drive.
type Engine interface {
	Create(ctx context.Context, in recon.Input) *recon.Report
	Update(ctx context.Context, in recon.Input) *recon.Report
	Delete(ctx context.Context, eventID string) *recon.Report
}

// Syncer is the delta-sync surface. Implemented by deltasync.Syncer.
type Syncer interface {
	Run(ctx context.Context) error
	RefreshOne(ctx context.Context, calendarEventID string) error
}

// Publisher hands immediate notices to the mail queue.
type Publisher interface {
	PublishMailTask(ctx context.Context, task queue.MailTask) error
}

// Handler serves the intake API.
type Handler struct {
	engine    Engine
	syncer    Syncer // nil when calendar integration is disabled
	store     Store
	publisher Publisher // nil when mail is disabled
	composer  *mailer.Composer
}

// NewHandler creates the API handler.
func NewHandler(engine Engine, syncer Syncer, st Store, publisher Publisher, composer *mailer.Composer) *Handler {
	return &Handler{
		engine:    engine,
		syncer:    syncer,
		store:     st,
		publisher: publisher,
		composer:  composer,
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", h.createEvent)
	mux.HandleFunc("GET /events", h.listEvents)
	mux.HandleFunc("PUT /events/{id}", h.updateEvent)
	mux.HandleFunc("DELETE /events/{id}", h.deleteEvent)
	mux.HandleFunc("POST /events/{id}/refresh", h.refreshEvent)
	mux.HandleFunc("GET /lookups/clients", h.listClients)
	mux.HandleFunc("GET /lookups/managers", h.listManagers)
	mux.HandleFunc("POST /sync", h.runSync)
	mux.HandleFunc("GET /export", h.exportSchedule)
	mux.HandleFunc("GET /health", h.health)
	return mux
}

// eventRequest is the JSON intake shape for create and update.
type eventRequest struct {
	Subject  string `json:"subject"`
	Client   string `json:"client"`
	StartAt  string `json:"start_at"` // RFC 3339, or YYYY-MM-DD for all-day
	EndAt    string `json:"end_at"`
	Timezone string `json:"timezone"`
	AllDay   bool   `json:"all_day"`

	EventType       string `json:"event_type"`
	Location        string `json:"location"`
	VirtualProvider string `json:"virtual_provider"`
	VirtualLink     string `json:"virtual_link"`

	ManagerName  string `json:"manager_name"`
	ManagerEmail string `json:"manager_email"`

	ReminderMinutes       int  `json:"reminder_minutes"`
	AccreditationRequired bool `json:"accreditation_required"`

	Notes              string `json:"notes,omitempty"`
	ReminderAt         string `json:"reminder_at,omitempty"`
	ConfirmMissingLink bool   `json:"confirm_missing_link,omitempty"`
}

// eventResponse is the outbound event shape.
type eventResponse struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Client   string `json:"client,omitempty"`
	StartAt  string `json:"start_at"`
	EndAt    string `json:"end_at"`
	Timezone string `json:"timezone"`
	AllDay   bool   `json:"all_day"`

	EventType       string `json:"event_type"`
	Location        string `json:"location,omitempty"`
	VirtualProvider string `json:"virtual_provider,omitempty"`
	VirtualLink     string `json:"virtual_link,omitempty"`

	ManagerName  string `json:"manager_name"`
	ManagerEmail string `json:"manager_email"`

	ReminderMinutes       int  `json:"reminder_minutes"`
	AccreditationRequired bool `json:"accreditation_required"`

	CalendarLinked bool     `json:"calendar_linked"`
	Warnings       []string `json:"warnings,omitempty"`
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	in, errMsg := h.decodeInput(r, "")
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	rep := h.engine.Create(r.Context(), *in)
	if !rep.Succeeded() {
		writeReportError(w, rep)
		return
	}

	h.persistLookups(r.Context(), in.Event)
	h.sendImmediateNotices(r.Context(), in.Event, true)

	writeJSON(w, http.StatusCreated, toResponse(in.Event, rep))
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	existing, err := h.store.GetEvent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load event failed")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	in, errMsg := h.decodeInput(r, id)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	// Server-owned fields carry over from the stored row.
	in.Event.CalendarEventID = existing.CalendarEventID
	in.Event.LastBody = existing.LastBody
	in.Event.CreatedAt = existing.CreatedAt

	rep := h.engine.Update(r.Context(), *in)
	if !rep.Succeeded() {
		writeReportError(w, rep)
		return
	}

	h.persistLookups(r.Context(), in.Event)
	if in.Event.ManagerEmail != existing.ManagerEmail {
		h.sendImmediateNotices(r.Context(), in.Event, false)
	}

	writeJSON(w, http.StatusOK, toResponse(in.Event, rep))
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	rep := h.engine.Delete(r.Context(), r.PathValue("id"))
	if !rep.Succeeded() {
		writeError(w, http.StatusNotFound, rep.StoreErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"deleted":  true,
		"warnings": rep.Warnings(),
	})
}

func (h *Handler) refreshEvent(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar integration is not configured")
		return
	}
	e, err := h.store.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load event failed")
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if !e.CalendarLinked() {
		writeError(w, http.StatusConflict, "event has no calendar link to refresh from")
		return
	}
	if err := h.syncer.RefreshOne(r.Context(), e.CalendarEventID); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	refreshed, err := h.store.GetEvent(r.Context(), e.ID)
	if err != nil || refreshed == nil {
		writeError(w, http.StatusInternalServerError, "reload event failed")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(refreshed, &recon.Report{EventID: refreshed.ID}))
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	from, to, errMsg := parseRange(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}

	events, err := h.store.ListEvents(r.Context(), from, to, r.URL.Query().Get("client"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list events failed")
		return
	}

	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, *toResponse(&events[i], nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list clients failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (h *Handler) listManagers(w http.ResponseWriter, r *http.Request) {
	managers, err := h.store.ListManagers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list managers failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"managers": managers})
}

func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	if h.syncer == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar integration is not configured")
		return
	}
	if err := h.syncer.Run(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": true})
}

func (h *Handler) exportSchedule(w http.ResponseWriter, r *http.Request) {
	from, to, errMsg := parseRange(r)
	if errMsg != "" {
		writeError(w, http.StatusBadRequest, errMsg)
		return
	}
	events, err := h.store.ListEvents(r.Context(), from, to, r.URL.Query().Get("client"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list events failed")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, export.Schedule("Master Schedule", events))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := h.store.Ping(r.Context()); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

// decodeInput parses and validates the request body into engine input.
// Returns a user-facing message on failure.
func (h *Handler) decodeInput(r *http.Request, id string) (*recon.Input, string) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "invalid JSON body"
	}

	if _, err := tz.Resolve(req.Timezone); err != nil {
		return nil, err.Error()
	}
	loc, err := tz.Location(req.Timezone)
	if err != nil {
		return nil, err.Error()
	}

	start, err := parseEventTime(req.StartAt, req.AllDay, loc)
	if err != nil {
		return nil, fmt.Sprintf("start_at: %v", err)
	}
	end, err := parseEventTime(req.EndAt, req.AllDay, loc)
	if err != nil {
		return nil, fmt.Sprintf("end_at: %v", err)
	}

	eventType := models.EventType(req.EventType)
	if eventType != models.EventInPerson && eventType != models.EventVirtual {
		return nil, "event_type must be in_person or virtual"
	}

	e := &models.Event{
		ID:                    id,
		Subject:               strings.TrimSpace(req.Subject),
		Client:                strings.TrimSpace(req.Client),
		StartAt:               start,
		EndAt:                 end,
		Timezone:              req.Timezone,
		AllDay:                req.AllDay,
		EventType:             eventType,
		Location:              strings.TrimSpace(req.Location),
		VirtualProvider:       models.VirtualProvider(req.VirtualProvider),
		VirtualLink:           strings.TrimSpace(req.VirtualLink),
		ManagerName:           strings.TrimSpace(req.ManagerName),
		ManagerEmail:          strings.TrimSpace(req.ManagerEmail),
		ReminderMinutes:       req.ReminderMinutes,
		AccreditationRequired: req.AccreditationRequired,
	}

	in := &recon.Input{
		Event:              e,
		Notes:              req.Notes,
		ConfirmMissingLink: req.ConfirmMissingLink,
	}
	if req.ReminderAt != "" {
		at, err := time.Parse(time.RFC3339, req.ReminderAt)
		if err != nil {
			return nil, "reminder_at must be RFC 3339"
		}
		utc := at.UTC()
		in.ReminderAt = &utc
	}
	return in, ""
}

// parseEventTime accepts RFC 3339 instants for timed events and bare
// dates for all-day events; bare dates are anchored at local midnight.
func parseEventTime(s string, allDay bool, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("required")
	}
	if allDay {
		if d, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
			return d.UTC(), nil
		}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 (or YYYY-MM-DD for all-day)")
	}
	return t.UTC(), nil
}

// parseRange reads the optional from/to query bounds, defaulting to a
// year back and two years forward.
func parseRange(r *http.Request) (from, to time.Time, errMsg string) {
	now := time.Now().UTC()
	from = now.AddDate(-1, 0, 0)
	to = now.AddDate(2, 0, 0)

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, "from must be YYYY-MM-DD"
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, "to must be YYYY-MM-DD"
		}
		to = t
	}
	return from, to, ""
}

// persistLookups records client and manager values so they appear in
// future dropdowns. Best effort.
func (h *Handler) persistLookups(ctx context.Context, e *models.Event) {
	if e.Client != "" {
		if err := h.store.EnsureClient(ctx, e.Client); err != nil {
			slog.Warn("persist client lookup failed", "error", err)
		}
	}
	if e.ManagerName != "" && e.ManagerEmail != "" {
		if err := h.store.EnsureManager(ctx, e.ManagerName, e.ManagerEmail); err != nil {
			slog.Warn("persist manager lookup failed", "error", err)
		}
	}
}

// sendImmediateNotices queues the manager-assignment notice and, on
// creation of accreditation-flagged events, the accreditation request.
// Best effort: a queue failure never fails the request.
func (h *Handler) sendImmediateNotices(ctx context.Context, e *models.Event, created bool) {
	if h.publisher == nil || h.composer == nil {
		return
	}
	if task := h.composer.ManagerAssignment(e); task != nil {
		if err := h.publisher.PublishMailTask(ctx, *task); err != nil {
			slog.Warn("queue manager assignment notice failed", "error", err)
		}
	}
	if created && e.AccreditationRequired {
		if task := h.composer.AccreditationRequest(e); task != nil {
			if err := h.publisher.PublishMailTask(ctx, *task); err != nil {
				slog.Warn("queue accreditation request failed", "error", err)
			}
		}
	}
}

// writeReportError maps an engine failure onto a status code. The
// confirmation sentinel gets 409 with a machine-readable flag so the
// client can re-present the form.
func writeReportError(w http.ResponseWriter, rep *recon.Report) {
	if errors.Is(rep.StoreErr, recon.ErrConfirmMissingLink) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                rep.StoreErr.Error(),
			"confirm_missing_link": true,
		})
		return
	}
	code := http.StatusBadRequest
	if !isValidationError(rep.StoreErr) {
		code = http.StatusInternalServerError
	}
	writeError(w, code, rep.StoreErr.Error())
}

func isValidationError(err error) bool {
	return errors.Is(err, recon.ErrEndNotAfterStart) ||
		strings.Contains(err.Error(), "required")
}

func toResponse(e *models.Event, rep *recon.Report) *eventResponse {
	resp := &eventResponse{
		ID:                    e.ID,
		Subject:               e.Subject,
		Client:                e.Client,
		StartAt:               e.StartAt.UTC().Format(time.RFC3339),
		EndAt:                 e.EndAt.UTC().Format(time.RFC3339),
		Timezone:              e.Timezone,
		AllDay:                e.AllDay,
		EventType:             string(e.EventType),
		Location:              e.Location,
		VirtualProvider:       string(e.VirtualProvider),
		VirtualLink:           e.VirtualLink,
		ManagerName:           e.ManagerName,
		ManagerEmail:          e.ManagerEmail,
		ReminderMinutes:       e.ReminderMinutes,
		AccreditationRequired: e.AccreditationRequired,
		CalendarLinked:        e.CalendarLinked(),
	}
	if rep != nil {
		resp.Warnings = rep.Warnings()
	}
	return resp
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Ensure the concrete syncer satisfies the interface.
var _ Syncer = (*deltasync.Syncer)(nil)
