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
	"fmt"
	"log/slog"
	"time"

	"github.com/lutine/mastercal/internal/models"
	"github.com/lutine/mastercal/internal/queue"
)

// DispatchStore is the subset of the store the dispatcher reads.
type DispatchStore interface {
	ListDueNotifications(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	MarkNotificationSent(ctx context.Context, id int64) error
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// Publisher hands a composed mail task to the delivery queue.
// Implemented by queue.Publisher.
type Publisher interface {
	PublishMailTask(ctx context.Context, task queue.MailTask) error
}

// Guard prevents the same notification from being published twice when
// dispatch runs overlap. Implemented by dedup.Filter.
type Guard interface {
	IsNew(ctx context.Context, key string) (bool, error)
}

// Dispatcher moves due notification rows onto the mail queue.
type Dispatcher struct {
	store     DispatchStore
	publisher Publisher
	guard     Guard
	batch     int
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store DispatchStore, publisher Publisher, guard Guard) *Dispatcher {
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		guard:     guard,
		batch:     100,
	}
}

// Run performs one dispatch pass: each due unsent notification is
// composed into a mail task, published, and marked sent. Failures on one
// row never block the rest of the batch.
func (d *Dispatcher) Run(ctx context.Context) error {
	due, err := d.store.ListDueNotifications(ctx, time.Now().UTC(), d.batch)
	if err != nil {
		return fmt.Errorf("list due notifications: %w", err)
	}

	dispatched := 0
	for _, n := range due {
		if d.guard != nil {
			isNew, err := d.guard.IsNew(ctx, fmt.Sprintf("notification:%d", n.ID))
			if err != nil {
				slog.Warn("dispatch guard check failed, proceeding", "error", err)
			} else if !isNew {
				continue
			}
		}

		task, err := d.composeTask(ctx, n)
		if err != nil {
			slog.Error("compose notification mail failed",
				"notification_id", n.ID,
				"kind", n.Kind,
				"error", err,
			)
			continue
		}
		if task == nil {
			// Nothing to send (e.g. owning event lost its recipient) —
			// retire the row so it stops coming up.
			_ = d.store.MarkNotificationSent(ctx, n.ID)
			continue
		}

		if err := d.publisher.PublishMailTask(ctx, *task); err != nil {
			slog.Error("publish notification mail failed",
				"notification_id", n.ID,
				"error", err,
			)
			continue
		}

		if err := d.store.MarkNotificationSent(ctx, n.ID); err != nil {
			slog.Error("mark notification sent failed",
				"notification_id", n.ID,
				"error", err,
			)
			continue
		}
		dispatched++
	}

	if dispatched > 0 {
		slog.Info("notification dispatch pass complete", "dispatched", dispatched, "due", len(due))
	}
	return nil
}

// composeTask builds the outbound mail for a notification row. Returns
// nil when there is nothing sendable.
func (d *Dispatcher) composeTask(ctx context.Context, n models.Notification) (*queue.MailTask, error) {
	switch n.Kind {
	case models.NotifyCustomEmail:
		if n.Payload.To == "" {
			return nil, nil
		}
		return &queue.MailTask{
			To:       []string{n.Payload.To},
			Subject:  n.Payload.Subject,
			HTMLBody: n.Payload.Body,
		}, nil

	case models.NotifyMissingLink:
		event, err := d.store.GetEvent(ctx, n.EventID)
		if err != nil {
			return nil, fmt.Errorf("load owning event: %w", err)
		}
		if event == nil || event.ManagerEmail == "" {
			return nil, nil
		}
		if event.VirtualLink != "" {
			// Link arrived between seeding and dispatch — nothing to nag
			// about.
			return nil, nil
		}
		return &queue.MailTask{
			To:      []string{event.ManagerEmail},
			Subject: fmt.Sprintf("Missing virtual link: %s", event.Subject),
			HTMLBody: fmt.Sprintf(
				"<p>The virtual event <b>%s</b> still has no meeting link. Please add one.</p>",
				event.Subject,
			),
		}, nil

	default:
		return nil, fmt.Errorf("unknown notification kind %q", n.Kind)
	}
}
