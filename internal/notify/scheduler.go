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

// Package notify derives follow-up reminder records from event state
// transitions and hands due ones to the mail queue. It only writes
// notification rows — delivery is an external worker's job.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/lutine/mastercal/internal/models"
)

// MissingLinkLeadTime is how far out the "add your virtual link" nag is
// scheduled.
const MissingLinkLeadTime = 7 * 24 * time.Hour

// SeedStore is the subset of the store the scheduler writes through.
// Implemented by store.Store.
type SeedStore interface {
	UpsertCustomEmail(ctx context.Context, eventID string, notifyAt time.Time, payload models.NotificationPayload) error
	HasMissingLink(ctx context.Context, eventID string) (bool, error)
	SeedMissingLink(ctx context.Context, eventID string, notifyAt time.Time) error
	DeleteMissingLink(ctx context.Context, eventID string) error
}

// Scheduler writes notification seeds on event create/update.
type Scheduler struct {
	store SeedStore
	now   func() time.Time
}

// NewScheduler creates a seed scheduler.
func NewScheduler(store SeedStore) *Scheduler {
	return &Scheduler{store: store, now: time.Now}
}

// Apply reconciles an event's notification rows after a create or update.
//
//   - reminderAt non-nil: upsert the event's single custom_email row,
//     replacing due time and payload (never a duplicate insert).
//   - virtual with no link and no outstanding nag: seed a missing_link
//     notification due MissingLinkLeadTime out.
//   - link supplied: delete any outstanding missing_link rows.
func (s *Scheduler) Apply(ctx context.Context, event *models.Event, reminderAt *time.Time) error {
	if reminderAt != nil {
		payload := models.NotificationPayload{
			To:      event.ManagerEmail,
			Subject: fmt.Sprintf("Reminder: %s", event.Subject),
			Body:    reminderBody(event),
		}
		if err := s.store.UpsertCustomEmail(ctx, event.ID, reminderAt.UTC(), payload); err != nil {
			return fmt.Errorf("upsert reminder: %w", err)
		}
	}

	if event.EventType != models.EventVirtual {
		return nil
	}

	if event.VirtualLink != "" {
		if err := s.store.DeleteMissingLink(ctx, event.ID); err != nil {
			return fmt.Errorf("clear missing-link nag: %w", err)
		}
		return nil
	}

	has, err := s.store.HasMissingLink(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("check missing-link nag: %w", err)
	}
	if has {
		return nil
	}
	if err := s.store.SeedMissingLink(ctx, event.ID, s.now().UTC().Add(MissingLinkLeadTime)); err != nil {
		return fmt.Errorf("seed missing-link nag: %w", err)
	}
	return nil
}

func reminderBody(event *models.Event) string {
	if event.Client != "" {
		return fmt.Sprintf("<p>Reminder for <b>%s</b> (%s).</p>", event.Subject, event.Client)
	}
	return fmt.Sprintf("<p>Reminder for <b>%s</b>.</p>", event.Subject)
}
