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

// Package store is the Postgres-backed system of record: events,
// notifications, the client/manager lookup tables, and the per-scope
// delta sync cursor.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lutine/mastercal/internal/models"
)

// Store provides CRUD operations over the intake schema.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store backed by the given Postgres pool. It ensures the
// schema exists on creation.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	slog.Info("store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id                     UUID PRIMARY KEY,
			subject                TEXT NOT NULL,
			client                 TEXT DEFAULT '',
			start_at               TIMESTAMPTZ NOT NULL,
			end_at                 TIMESTAMPTZ NOT NULL,
			timezone               TEXT NOT NULL,
			is_all_day             BOOLEAN NOT NULL DEFAULT FALSE,
			event_type             TEXT NOT NULL,
			location               TEXT DEFAULT '',
			virtual_provider       TEXT DEFAULT '',
			virtual_link           TEXT DEFAULT '',
			manager_name           TEXT DEFAULT '',
			manager_email          TEXT DEFAULT '',
			reminder_minutes       INT NOT NULL DEFAULT 0,
			accreditation_required BOOLEAN NOT NULL DEFAULT FALSE,
			calendar_event_id      TEXT DEFAULT '',
			last_body              TEXT DEFAULT '',
			created_at             TIMESTAMPTZ DEFAULT NOW(),
			updated_at             TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_events_start ON events(start_at);
		CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events(calendar_event_id);

		CREATE TABLE IF NOT EXISTS notifications (
			id        BIGSERIAL PRIMARY KEY,
			event_id  UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			kind      TEXT NOT NULL,
			notify_at TIMESTAMPTZ NOT NULL,
			channel   TEXT NOT NULL DEFAULT 'email',
			payload   JSONB NOT NULL DEFAULT '{}'::jsonb,
			sent_at   TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_notifications_due ON notifications(notify_at) WHERE sent_at IS NULL;

		CREATE TABLE IF NOT EXISTS clients (
			name TEXT PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS meeting_managers (
			name  TEXT PRIMARY KEY,
			email TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS sync_state (
			scope       TEXT PRIMARY KEY,
			cursor      TEXT NOT NULL DEFAULT '',
			last_synced TIMESTAMPTZ
		);
	`)
	return err
}

// GetCursor returns the persisted delta cursor for a scope, or nil when
// the scope has never completed a pass (bootstrap case).
func (s *Store) GetCursor(ctx context.Context, scope string) (*models.SyncCursor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT scope, cursor, COALESCE(last_synced, 'epoch'::timestamptz)
		FROM sync_state WHERE scope = $1
	`, scope)

	var c models.SyncCursor
	err := row.Scan(&c.Scope, &c.Cursor, &c.LastSynced)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Cursor == "" {
		return nil, nil
	}
	return &c, nil
}

// SaveCursor overwrites the cursor for a scope, last-writer-wins. Called
// once per completed sync pass.
func (s *Store) SaveCursor(ctx context.Context, scope, cursor string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (scope, cursor, last_synced)
		VALUES ($1, $2, NOW())
		ON CONFLICT (scope) DO UPDATE SET
			cursor      = EXCLUDED.cursor,
			last_synced = NOW()
	`, scope, cursor)
	return err
}

// ClearCursor drops the cursor for a scope, forcing the next pass to
// re-bootstrap. Used when the calendar reports the cursor expired.
func (s *Store) ClearCursor(ctx context.Context, scope string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_state WHERE scope = $1`, scope)
	return err
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
