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
	"encoding/json"
	"fmt"
	"time"

	"github.com/lutine/mastercal/internal/models"
)

// UpsertCustomEmail keeps at most one custom_email notification per event,
// replacing the due time and payload on repeat.
func (s *Store) UpsertCustomEmail(ctx context.Context, eventID string, notifyAt time.Time, payload models.NotificationPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET notify_at = $2, payload = $3, sent_at = NULL
		WHERE event_id = $1 AND kind = $4
	`, eventID, notifyAt, data, models.NotifyCustomEmail)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, kind, notify_at, channel, payload)
		VALUES ($1, $2, $3, 'email', $4)
	`, eventID, models.NotifyCustomEmail, notifyAt, data)
	return err
}

// HasMissingLink reports whether the event already has an outstanding
// missing-link nag.
func (s *Store) HasMissingLink(ctx context.Context, eventID string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE event_id = $1 AND kind = $2
	`, eventID, models.NotifyMissingLink).Scan(&n)
	return n > 0, err
}

// SeedMissingLink records a missing-link nag due at the given instant.
func (s *Store) SeedMissingLink(ctx context.Context, eventID string, notifyAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, kind, notify_at, channel)
		VALUES ($1, $2, $3, 'email')
	`, eventID, models.NotifyMissingLink, notifyAt)
	return err
}

// DeleteMissingLink removes any outstanding missing-link nags for an
// event once a link is supplied.
func (s *Store) DeleteMissingLink(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM notifications WHERE event_id = $1 AND kind = $2
	`, eventID, models.NotifyMissingLink)
	return err
}

// ListDueNotifications returns unsent notifications due at or before now,
// oldest first.
func (s *Store) ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event_id, kind, notify_at, channel, payload, sent_at
		FROM notifications
		WHERE sent_at IS NULL AND notify_at <= $1
		ORDER BY notify_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var payload []byte
		if err := rows.Scan(&n.ID, &n.EventID, &n.Kind, &n.NotifyAt, &n.Channel, &payload, &n.SentAt); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &n.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal notification %d payload: %w", n.ID, err)
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationSent stamps a notification as handed to the delivery
// queue.
func (s *Store) MarkNotificationSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications SET sent_at = NOW() WHERE id = $1
	`, id)
	return err
}
