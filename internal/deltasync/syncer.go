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

// Package deltasync pulls calendar-side edits back into the local store
// using the Graph calendarView delta query. Each pass resumes from the
// persisted cursor, or bootstraps over a bounded window on first run and
// after cursor expiry. Only calendar-owned fields flow back; app-owned
// metadata is never touched by sync.
package deltasync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lutine/mastercal/internal/graph"
	"github.com/lutine/mastercal/internal/models"
)

const (
	// DefaultScope keys the cursor row for the single shared calendar.
	DefaultScope = "shared-calendar"

	// Bootstrap window bounds relative to the pass start.
	DefaultLookback  = 180 * 24 * time.Hour
	DefaultLookahead = 365 * 24 * time.Hour
)

// Calendar is the slice of the Graph client the syncer drives.
type Calendar interface {
	InitialDeltaURL(start, end time.Time) string
	FetchDeltaPage(ctx context.Context, pageURL string) (*graph.DeltaPage, error)
	GetEvent(ctx context.Context, eventID string) (*graph.Event, error)
}

// Store is the subset of the local store the syncer reads and writes.
type Store interface {
	GetCursor(ctx context.Context, scope string) (*models.SyncCursor, error)
	SaveCursor(ctx context.Context, scope, cursor string) error
	ClearCursor(ctx context.Context, scope string) error
	GetEventByCalendarID(ctx context.Context, calendarEventID string) (*models.Event, error)
	ApplyCalendarFields(ctx context.Context, eventID string, patch *models.CalendarFieldsPatch) error
}

// Syncer performs incremental calendar-to-store synchronisation.
type Syncer struct {
	calendar Calendar
	store    Store
	scope    string

	lookback  time.Duration
	lookahead time.Duration

	now func() time.Time
}

// Config holds the syncer configuration. Zero durations fall back to the
// defaults.
type Config struct {
	Calendar  Calendar
	Store     Store
	Scope     string
	Lookback  time.Duration
	Lookahead time.Duration
}

// NewSyncer creates a delta syncer.
func NewSyncer(cfg Config) *Syncer {
	s := &Syncer{
		calendar:  cfg.Calendar,
		store:     cfg.Store,
		scope:     cfg.Scope,
		lookback:  cfg.Lookback,
		lookahead: cfg.Lookahead,
		now:       time.Now,
	}
	if s.scope == "" {
		s.scope = DefaultScope
	}
	if s.lookback == 0 {
		s.lookback = DefaultLookback
	}
	if s.lookahead == 0 {
		s.lookahead = DefaultLookahead
	}
	return s
}

// Run performs one sync pass: resume from the persisted cursor if one
// exists, otherwise bootstrap over the configured window. The new cursor
// is persisted once, at the end of a completed pass — a failed pass
// leaves the old cursor in place and the next run retries the same span.
func (s *Syncer) Run(ctx context.Context) error {
	cursor, err := s.store.GetCursor(ctx, s.scope)
	if err != nil {
		return fmt.Errorf("load sync cursor: %w", err)
	}

	if cursor == nil {
		return s.runPass(ctx, s.bootstrapURL(), true)
	}

	err = s.runPass(ctx, cursor.Cursor, false)
	if graph.IsGone(err) {
		// The calendar no longer honours this cursor. Drop it and walk a
		// fresh window; edits inside the window are re-applied (the
		// mapping is idempotent), edits outside it are lost.
		slog.Warn("delta cursor expired, re-bootstrapping", "scope", s.scope)
		if cerr := s.store.ClearCursor(ctx, s.scope); cerr != nil {
			return fmt.Errorf("clear expired cursor: %w", cerr)
		}
		return s.runPass(ctx, s.bootstrapURL(), true)
	}
	return err
}

func (s *Syncer) bootstrapURL() string {
	now := s.now().UTC()
	return s.calendar.InitialDeltaURL(now.Add(-s.lookback), now.Add(s.lookahead))
}

// runPass walks every page from startURL to the terminal delta link,
// merging each changed event. Per-event failures are logged and skipped
// so one bad event cannot wedge the pass.
func (s *Syncer) runPass(ctx context.Context, startURL string, bootstrap bool) error {
	merged := 0
	seen := 0

	for pageURL := startURL; pageURL != ""; {
		page, err := s.calendar.FetchDeltaPage(ctx, pageURL)
		if err != nil {
			if graph.IsGone(err) && bootstrap {
				return fmt.Errorf("bootstrap delta walk returned 410: %w", err)
			}
			return err
		}

		for _, remote := range page.Value {
			seen++
			if remote.Removed != nil {
				// Calendar-side deletions are deliberately not mirrored:
				// the local row is the system of record and survives until
				// an operator deletes it here.
				continue
			}
			ok, err := s.mergeOne(ctx, &remote)
			if err != nil {
				slog.Error("delta merge failed",
					"calendar_event_id", remote.ID,
					"error", err,
				)
				continue
			}
			if ok {
				merged++
			}
		}

		if page.DeltaLink != "" {
			if err := s.store.SaveCursor(ctx, s.scope, page.DeltaLink); err != nil {
				return fmt.Errorf("persist sync cursor: %w", err)
			}
			pageURL = ""
		} else {
			pageURL = page.NextLink
		}
	}

	slog.Info("delta sync pass complete",
		"scope", s.scope,
		"bootstrap", bootstrap,
		"events_seen", seen,
		"events_merged", merged,
	)
	return nil
}

// RefreshOne pulls a single event's current calendar state and merges it,
// outside any delta pass. Used by the manual refresh action.
func (s *Syncer) RefreshOne(ctx context.Context, calendarEventID string) error {
	remote, err := s.calendar.GetEvent(ctx, calendarEventID)
	if err != nil {
		return fmt.Errorf("refresh event: %w", err)
	}
	if _, err := s.mergeOne(ctx, remote); err != nil {
		return fmt.Errorf("refresh event: %w", err)
	}
	return nil
}

// mergeOne maps a remote event onto its local row, if one exists. Events
// with no local counterpart are calendar-only and are ignored. Returns
// true when a change was written.
func (s *Syncer) mergeOne(ctx context.Context, remote *graph.Event) (bool, error) {
	local, err := s.store.GetEventByCalendarID(ctx, remote.ID)
	if err != nil {
		return false, fmt.Errorf("lookup by calendar id: %w", err)
	}
	if local == nil {
		return false, nil
	}

	patch, err := MapEvent(remote, local)
	if err != nil {
		return false, err
	}
	if patch.Empty() {
		return false, nil
	}
	if err := s.store.ApplyCalendarFields(ctx, local.ID, patch); err != nil {
		return false, fmt.Errorf("apply calendar fields: %w", err)
	}
	return true, nil
}

// MapEvent derives the calendar-owned patch for a local row from the
// remote representation. Only fields that differ are set; app-owned
// fields (manager, client, accreditation, reminder) never appear here.
//
// For all-day events the remote end is the exclusive next-day midnight;
// the stored end is the inclusive last day, so a day is subtracted here —
// the exact inverse of the payload builder's conversion.
func MapEvent(remote *graph.Event, local *models.Event) (*models.CalendarFieldsPatch, error) {
	patch := &models.CalendarFieldsPatch{}

	if remote.Subject != "" && remote.Subject != local.Subject {
		patch.Subject = &remote.Subject
	}

	allDay := local.AllDay
	if remote.IsAllDay != nil {
		allDay = *remote.IsAllDay
		if allDay != local.AllDay {
			patch.AllDay = remote.IsAllDay
		}
	}

	if remote.Start != nil {
		start, err := graph.ParseTime(remote.Start)
		if err != nil {
			return nil, fmt.Errorf("map start: %w", err)
		}
		if !start.Equal(local.StartAt) {
			patch.StartAt = &start
		}
	}

	if remote.End != nil {
		end, err := graph.ParseTime(remote.End)
		if err != nil {
			return nil, fmt.Errorf("map end: %w", err)
		}
		if allDay {
			end = end.AddDate(0, 0, -1)
		}
		if !end.Equal(local.EndAt) {
			patch.EndAt = &end
		}
	}

	if remote.Location != nil {
		mapLocation(remote.Location.DisplayName, local, patch)
	}

	if remote.OnlineMeeting != nil && remote.OnlineMeeting.JoinURL != "" &&
		remote.OnlineMeeting.JoinURL != local.VirtualLink {
		patch.VirtualLink = &remote.OnlineMeeting.JoinURL
	}

	return patch, nil
}

// mapLocation routes the remote location display name by event kind:
// in-person events own a venue, while virtual events on providers without
// native calendar support carry their join link in the location field, so
// the string flows back into VirtualLink there.
func mapLocation(display string, local *models.Event, patch *models.CalendarFieldsPatch) {
	switch local.EventType {
	case models.EventInPerson:
		if display != local.Location {
			patch.Location = &display
		}
	case models.EventVirtual:
		if local.VirtualProvider == models.ProviderTeams {
			return // Teams link comes from onlineMeeting, not location
		}
		if isLink(display) && display != local.VirtualLink {
			patch.VirtualLink = &display
		}
	}
}

func isLink(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
