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
	"github.com/lutine/mastercal/internal/queue"
)

type dispatchRecorder struct {
	due    []models.Notification
	events map[string]*models.Event
	sent   []int64
}

func (r *dispatchRecorder) ListDueNotifications(_ context.Context, _ time.Time, _ int) ([]models.Notification, error) {
	return r.due, nil
}

func (r *dispatchRecorder) MarkNotificationSent(_ context.Context, id int64) error {
	r.sent = append(r.sent, id)
	return nil
}

func (r *dispatchRecorder) GetEvent(_ context.Context, id string) (*models.Event, error) {
	return r.events[id], nil
}

type taskRecorder struct {
	tasks []queue.MailTask
}

func (p *taskRecorder) PublishMailTask(_ context.Context, task queue.MailTask) error {
	p.tasks = append(p.tasks, task)
	return nil
}

type allowOnce struct {
	seen map[string]bool
}

func (g *allowOnce) IsNew(_ context.Context, key string) (bool, error) {
	if g.seen == nil {
		g.seen = map[string]bool{}
	}
	if g.seen[key] {
		return false, nil
	}
	g.seen[key] = true
	return true, nil
}

func TestDispatchCustomEmail(t *testing.T) {
	store := &dispatchRecorder{
		due: []models.Notification{{
			ID:      1,
			EventID: "ev-1",
			Kind:    models.NotifyCustomEmail,
			Payload: models.NotificationPayload{
				To:      "dana@example.com",
				Subject: "Reminder: Town Hall",
				Body:    "<p>reminder</p>",
			},
		}},
	}
	pub := &taskRecorder{}
	d := NewDispatcher(store, pub, &allowOnce{})

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.tasks) != 1 {
		t.Fatalf("published %d tasks", len(pub.tasks))
	}
	if pub.tasks[0].To[0] != "dana@example.com" {
		t.Errorf("recipient = %v", pub.tasks[0].To)
	}
	if len(store.sent) != 1 || store.sent[0] != 1 {
		t.Errorf("marked sent: %v", store.sent)
	}
}

func TestDispatchMissingLinkResolvedQuietly(t *testing.T) {
	store := &dispatchRecorder{
		due: []models.Notification{{
			ID:      2,
			EventID: "ev-1",
			Kind:    models.NotifyMissingLink,
		}},
		events: map[string]*models.Event{
			"ev-1": {
				ID:           "ev-1",
				Subject:      "Town Hall",
				EventType:    models.EventVirtual,
				VirtualLink:  "https://zoom.example/j/1", // link arrived late
				ManagerEmail: "dana@example.com",
			},
		},
	}
	pub := &taskRecorder{}
	d := NewDispatcher(store, pub, nil)

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.tasks) != 0 {
		t.Error("nag sent despite the link being present")
	}
	// The row is retired so it stops coming up as due.
	if len(store.sent) != 1 || store.sent[0] != 2 {
		t.Errorf("resolved row not retired: %v", store.sent)
	}
}

func TestDispatchMissingLinkNags(t *testing.T) {
	store := &dispatchRecorder{
		due: []models.Notification{{
			ID:      3,
			EventID: "ev-1",
			Kind:    models.NotifyMissingLink,
		}},
		events: map[string]*models.Event{
			"ev-1": {
				ID:           "ev-1",
				Subject:      "Town Hall",
				EventType:    models.EventVirtual,
				ManagerEmail: "dana@example.com",
			},
		},
	}
	pub := &taskRecorder{}
	d := NewDispatcher(store, pub, nil)

	if err := d.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.tasks) != 1 {
		t.Fatalf("published %d tasks", len(pub.tasks))
	}
	if pub.tasks[0].To[0] != "dana@example.com" {
		t.Errorf("nag recipient = %v", pub.tasks[0].To)
	}
}

func TestDispatchGuardSkipsDuplicates(t *testing.T) {
	n := models.Notification{
		ID:      4,
		EventID: "ev-1",
		Kind:    models.NotifyCustomEmail,
		Payload: models.NotificationPayload{To: "dana@example.com", Subject: "x"},
	}
	guard := &allowOnce{}
	pub := &taskRecorder{}

	// Simulate overlapping passes that both see the row as due.
	storeA := &dispatchRecorder{due: []models.Notification{n}}
	storeB := &dispatchRecorder{due: []models.Notification{n}}
	if err := NewDispatcher(storeA, pub, guard).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := NewDispatcher(storeB, pub, guard).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(pub.tasks) != 1 {
		t.Errorf("published %d tasks across overlapping passes, want 1", len(pub.tasks))
	}
}
