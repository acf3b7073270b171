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

package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lutine/mastercal/internal/models"
)

const eventColumns = `
	id, subject, client, start_at, end_at, timezone, is_all_day,
	event_type, location, virtual_provider, virtual_link,
	manager_name, manager_email, reminder_minutes,
	accreditation_required, calendar_event_id, last_body,
	created_at, updated_at`

// InsertEvent writes a new event row. The row is written even when the
// calendar create failed — CalendarEventID is simply empty then.
func (s *Store) InsertEvent(ctx context.Context, e *models.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO events (
			id, subject, client, start_at, end_at, timezone, is_all_day,
			event_type, location, virtual_provider, virtual_link,
			manager_name, manager_email, reminder_minutes,
			accreditation_required, calendar_event_id, last_body
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, e.ID, e.Subject, e.Client, e.StartAt, e.EndAt, e.Timezone, e.AllDay,
		e.EventType, e.Location, e.VirtualProvider, e.VirtualLink,
		e.ManagerName, e.ManagerEmail, e.ReminderMinutes,
		e.AccreditationRequired, e.CalendarEventID, e.LastBody)
	return err
}

// UpdateEvent rewrites the full local field set, including fields the
// calendar does not track.
func (s *Store) UpdateEvent(ctx context.Context, e *models.Event) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE events SET
			subject = $2, client = $3, start_at = $4, end_at = $5,
			timezone = $6, is_all_day = $7, event_type = $8, location = $9,
			virtual_provider = $10, virtual_link = $11, manager_name = $12,
			manager_email = $13, reminder_minutes = $14,
			accreditation_required = $15, last_body = $16,
			updated_at = NOW()
		WHERE id = $1
	`, e.ID, e.Subject, e.Client, e.StartAt, e.EndAt, e.Timezone, e.AllDay,
		e.EventType, e.Location, e.VirtualProvider, e.VirtualLink,
		e.ManagerName, e.ManagerEmail, e.ReminderMinutes,
		e.AccreditationRequired, e.LastBody)
	return err
}

// SetLastBody caches the body HTML last sent to the calendar.
func (s *Store) SetLastBody(ctx context.Context, eventID, bodyHTML string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE events SET last_body = $2, updated_at = NOW() WHERE id = $1
	`, eventID, bodyHTML)
	return err
}

// ApplyCalendarFields overwrites only the calendar-owned columns of one
// row and stamps updated_at. App-owned columns are never present in the
// patch, so a sync pass can never clobber them.
func (s *Store) ApplyCalendarFields(ctx context.Context, eventID string, p *models.CalendarFieldsPatch) error {
	if p == nil || p.Empty() {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE events SET
			subject      = COALESCE($2, subject),
			is_all_day   = COALESCE($3, is_all_day),
			start_at     = COALESCE($4, start_at),
			end_at       = COALESCE($5, end_at),
			location     = COALESCE($6, location),
			virtual_link = COALESCE($7, virtual_link),
			updated_at   = NOW()
		WHERE id = $1
	`, eventID, p.Subject, p.AllDay, p.StartAt, p.EndAt, p.Location, p.VirtualLink)
	return err
}

// GetEvent fetches one row by id. Returns nil when absent.
func (s *Store) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	return scanEvent(row)
}

// GetEventByCalendarID resolves a local row from the external calendar id.
// Returns nil when no local row matches — calendar-only events are not
// ingested; the local store decides what the app manages.
func (s *Store) GetEventByCalendarID(ctx context.Context, calendarEventID string) (*models.Event, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM events WHERE calendar_event_id = $1 LIMIT 1
	`, calendarEventID)
	return scanEvent(row)
}

// SetCalendarEventID records the external id captured from a successful
// calendar create.
func (s *Store) SetCalendarEventID(ctx context.Context, eventID, calendarEventID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE events SET calendar_event_id = $2, updated_at = NOW() WHERE id = $1
	`, eventID, calendarEventID)
	return err
}

// ListEvents returns events starting within [from, to), optionally
// filtered by client, ordered by start.
func (s *Store) ListEvents(ctx context.Context, from, to time.Time, client string) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE start_at >= $1 AND start_at < $2`
	args := []any{from, to}
	if client != "" {
		query += ` AND client = $3`
		args = append(args, client)
	}
	query += ` ORDER BY start_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// DeleteEvent removes the row; dependent notifications cascade.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	return err
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(
		&e.ID, &e.Subject, &e.Client, &e.StartAt, &e.EndAt, &e.Timezone,
		&e.AllDay, &e.EventType, &e.Location, &e.VirtualProvider,
		&e.VirtualLink, &e.ManagerName, &e.ManagerEmail, &e.ReminderMinutes,
		&e.AccreditationRequired, &e.CalendarEventID, &e.LastBody,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(
			&e.ID, &e.Subject, &e.Client, &e.StartAt, &e.EndAt, &e.Timezone,
			&e.AllDay, &e.EventType, &e.Location, &e.VirtualProvider,
			&e.VirtualLink, &e.ManagerName, &e.ManagerEmail, &e.ReminderMinutes,
			&e.AccreditationRequired, &e.CalendarEventID, &e.LastBody,
			&e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
