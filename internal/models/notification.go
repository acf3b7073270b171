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

package models

import "time"

// NotificationKind classifies scheduled side-effects.
type NotificationKind string

const (
	// NotifyCustomEmail is a date-certain reminder mail. At most one per
	// event — updates replace the due time and payload.
	NotifyCustomEmail NotificationKind = "custom_email"

	// NotifyMissingLink nags about a virtual event created without a
	// join link. Removed once a link is supplied.
	NotifyMissingLink NotificationKind = "missing_link"
)

// NotificationPayload is the opaque mail payload for custom_email rows.
type NotificationPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Notification is a scheduled side-effect owned by an event. Rows are
// deleted with their event (FK cascade). Delivery is handled by an
// external worker; this service only writes rows and hands due ones to
// the mail queue.
type Notification struct {
	ID       int64
	EventID  string
	Kind     NotificationKind
	NotifyAt time.Time
	Channel  string
	Payload  NotificationPayload
	SentAt   *time.Time
}

// SyncCursor is the process-wide bookmark for incremental pull, one per
// named scope. Absence means "perform an initial bounded-window pull".
type SyncCursor struct {
	Scope      string
	Cursor     string
	LastSynced time.Time
}
