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

// Package export renders the event list as a printable HTML schedule,
// grouped by month in chronological order.
package export

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/lutine/mastercal/internal/models"
	"github.com/lutine/mastercal/internal/tz"
)

// Schedule renders events as a standalone HTML document. Events are
// sorted by start and grouped under month headings; each entry shows the
// date (or range), the subject, the client, and the venue or link.
func Schedule(title string, events []models.Event) string {
	sorted := make([]models.Event, len(events))
	copy(sorted, events)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartAt.Before(sorted[j].StartAt)
	})

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	b.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(title)))
	b.WriteString("<style>body{font-family:sans-serif}h2{border-bottom:1px solid #999}td{padding:2px 12px 2px 0}</style>\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(fmt.Sprintf("<h1>%s</h1>\n", html.EscapeString(title)))

	currentMonth := ""
	open := false
	for _, e := range sorted {
		loc := eventLocation(&e)
		month := e.StartAt.In(loc).Format("January 2006")
		if month != currentMonth {
			if open {
				b.WriteString("</table>\n")
			}
			b.WriteString(fmt.Sprintf("<h2>%s</h2>\n<table>\n", month))
			currentMonth = month
			open = true
		}
		b.WriteString(entryRow(&e, loc))
	}
	if open {
		b.WriteString("</table>\n")
	}
	if len(sorted) == 0 {
		b.WriteString("<p>No events scheduled.</p>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func entryRow(e *models.Event, loc *time.Location) string {
	var when string
	start := e.StartAt.In(loc)
	end := e.EndAt.In(loc)
	if e.AllDay {
		if start.Format("2006-01-02") == end.Format("2006-01-02") {
			when = start.Format("Jan 2")
		} else {
			when = fmt.Sprintf("%s – %s", start.Format("Jan 2"), end.Format("Jan 2"))
		}
	} else {
		when = fmt.Sprintf("%s %s–%s", start.Format("Jan 2"), start.Format("3:04 PM"), end.Format("3:04 PM"))
	}

	where := ""
	switch e.EventType {
	case models.EventInPerson:
		where = e.Location
	case models.EventVirtual:
		if e.VirtualLink != "" {
			where = e.VirtualLink
		} else {
			where = "virtual (link pending)"
		}
	}

	return fmt.Sprintf("<tr><td>%s</td><td><b>%s</b></td><td>%s</td><td>%s</td></tr>\n",
		html.EscapeString(when),
		html.EscapeString(e.Subject),
		html.EscapeString(e.Client),
		html.EscapeString(where),
	)
}

func eventLocation(e *models.Event) *time.Location {
	loc, err := tz.Location(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
