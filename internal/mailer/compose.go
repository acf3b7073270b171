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

package mailer

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lutine/mastercal/internal/models"
	"github.com/lutine/mastercal/internal/queue"
	"github.com/lutine/mastercal/internal/tz"
)

// Composer builds the standard notices. The accreditation recipients are
// fixed per deployment, not per event.
type Composer struct {
	AccreditationTo []string
	AccreditationCc []string
}

// ManagerAssignment builds the notice sent to the meeting manager when an
// event is created or reassigned to them.
func (c *Composer) ManagerAssignment(e *models.Event) *queue.MailTask {
	if e.ManagerEmail == "" {
		return nil
	}
	return &queue.MailTask{
		To:      []string{e.ManagerEmail},
		Subject: fmt.Sprintf("You are the meeting manager: %s", e.Subject),
		HTMLBody: fmt.Sprintf(
			"<p>Hi %s,</p><p>You have been assigned as meeting manager for the following event.</p>%s",
			html.EscapeString(e.ManagerName),
			EventInfoHTML(e),
		),
	}
}

// AccreditationRequest builds the request sent to the accreditation desk
// when an event is flagged as requiring accreditation.
func (c *Composer) AccreditationRequest(e *models.Event) *queue.MailTask {
	if len(c.AccreditationTo) == 0 {
		return nil
	}
	return &queue.MailTask{
		To:      c.AccreditationTo,
		Cc:      c.AccreditationCc,
		Subject: fmt.Sprintf("Accreditation required: %s", e.Subject),
		HTMLBody: fmt.Sprintf(
			"<p>Accreditation has been requested for the following event.</p>%s<p>Meeting manager: %s (%s)</p>",
			EventInfoHTML(e),
			html.EscapeString(e.ManagerName),
			html.EscapeString(e.ManagerEmail),
		),
	}
}

// EventInfoHTML renders the shared event-details fragment. Times are
// shown in the event's own zone; all-day events render dates only, with
// the stored inclusive end shown as-is.
func EventInfoHTML(e *models.Event) string {
	loc, err := tz.Location(e.Timezone)
	if err != nil {
		loc = time.UTC
	}

	var when string
	if e.AllDay {
		start := e.StartAt.In(loc).Format("Mon, Jan 2 2006")
		end := e.EndAt.In(loc).Format("Mon, Jan 2 2006")
		if start == end {
			when = start + " (all day)"
		} else {
			when = fmt.Sprintf("%s to %s (all day)", start, end)
		}
	} else {
		when = fmt.Sprintf("%s to %s (%s)",
			e.StartAt.In(loc).Format("Mon, Jan 2 2006 3:04 PM"),
			e.EndAt.In(loc).Format("3:04 PM"),
			e.Timezone,
		)
	}

	rows := []string{
		infoRow("Event", e.Subject),
		infoRow("When", when),
	}
	if e.Client != "" {
		rows = append(rows, infoRow("Client", e.Client))
	}
	switch e.EventType {
	case models.EventInPerson:
		rows = append(rows, infoRow("Location", e.Location))
	case models.EventVirtual:
		link := e.VirtualLink
		if link == "" {
			link = "(link to be provided)"
		}
		rows = append(rows, infoRow("Virtual", link))
	}

	return "<table>" + strings.Join(rows, "") + "</table>"
}

func infoRow(label, value string) string {
	return fmt.Sprintf("<tr><td><b>%s:</b></td><td>%s</td></tr>",
		html.EscapeString(label), html.EscapeString(value))
}
