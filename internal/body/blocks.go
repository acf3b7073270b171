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

// Package body maintains the system-managed metadata blocks embedded in a
// calendar event's HTML body: a manager-identity block carrying the
// event's own calendar id as a recoverable back-reference, and a
// client/accreditation block. The body is jointly owned — staff edit it by
// hand in the calendar — so both operations are idempotent find-replace:
// strip every prior variant, then append exactly one fresh block.
//
// Matching is string-pattern based by necessity (the calendar rewrites
// markup freely). The strategy is confined to this package so it can be
// hardened or swapped for a sentinel scheme without touching callers.
package body

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// PlaceholderID is embedded at creation time, before the calendar has
// assigned an id. ExtractBackReference treats it as absent so the
// follow-up patch with the real id can replace it.
const PlaceholderID = "pending"

const (
	managerLabel = "Meeting Manager:"
	clientLabel  = "Client:"
	tokenLabel   = "[Outlook Event ID:"
)

// backRefRe captures the bracketed back-reference token.
var backRefRe = regexp.MustCompile(`\[Outlook Event ID:\s*([^\]]+)\]`)

// candidateRes match one element per wrapper tag the block may have been
// rewritten into. Non-greedy and case-insensitive; a match only counts as
// a block if it also carries the expected labels.
var candidateRes = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<table\b[^>]*>.*?</table>`),
	regexp.MustCompile(`(?is)<p\b[^>]*>.*?</p>`),
	regexp.MustCompile(`(?is)<div\b[^>]*>.*?</div>`),
	regexp.MustCompile(`(?is)<span\b[^>]*>.*?</span>`),
}

// ExtractBackReference recovers the event's own calendar id from a
// previously embedded token. Returns "" when no token is present or when
// the token is the creation placeholder.
func ExtractBackReference(bodyHTML string) string {
	m := backRefRe.FindStringSubmatch(bodyHTML)
	if m == nil {
		return ""
	}
	id := strings.TrimSpace(m[1])
	if id == "" || id == PlaceholderID {
		return ""
	}
	return id
}

// RenderManagerBlock renders the manager-identity block. The rust-brown
// color marks it as system-managed so staff leave it alone.
func RenderManagerBlock(managerName, eventID string) string {
	return fmt.Sprintf(
		`<p style="color:#b34700"><b>%s</b> %s <span style="font-size:smaller">[Outlook Event ID: %s]</span></p>`,
		managerLabel, html.EscapeString(managerName), html.EscapeString(eventID),
	)
}

// RenderClientBlock renders the client/accreditation block. Either part
// may be absent; an entirely empty block renders as "".
func RenderClientBlock(client string, accreditationRequired bool) string {
	var parts []string
	if client != "" {
		parts = append(parts, fmt.Sprintf("<b>%s</b> %s", clientLabel, html.EscapeString(client)))
	}
	if accreditationRequired {
		parts = append(parts, "<b>Accreditation Required:</b> Yes")
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(`<p style="color:#b34700">%s</p>`, strings.Join(parts, "<br/>"))
}

// StripManagerBlocks removes every element that looks like a manager
// block — any supported wrapper tag containing both the label and a
// bracketed token — repeating until a fixed point so previously
// duplicated blocks cannot survive.
func StripManagerBlocks(bodyHTML string) string {
	return stripBlocks(bodyHTML, func(candidate string) bool {
		return strings.Contains(candidate, managerLabel) && strings.Contains(candidate, tokenLabel)
	})
}

// StripClientBlocks removes every element carrying the bold client or
// accreditation label, to a fixed point.
func StripClientBlocks(bodyHTML string) string {
	return stripBlocks(bodyHTML, func(candidate string) bool {
		return strings.Contains(candidate, "<b>"+clientLabel+"</b>") ||
			strings.Contains(candidate, "<b>Accreditation Required:</b>")
	})
}

func stripBlocks(bodyHTML string, isBlock func(string) bool) string {
	for {
		changed := false
		for _, re := range candidateRes {
			out := re.ReplaceAllStringFunc(bodyHTML, func(m string) string {
				if isBlock(m) {
					changed = true
					return ""
				}
				return m
			})
			bodyHTML = out
		}
		if !changed {
			return bodyHTML
		}
	}
}

// EnsureManagerBlock rewrites bodyHTML to contain exactly one manager
// block for the given name and event id, preserving any other content.
//
// A back-reference token already embedded in the body overrides the id
// argument: identity must survive repeated calls even when the caller's
// context is stale. Invoking this N times with the same inputs converges
// to one block, never N.
func EnsureManagerBlock(bodyHTML, managerName, eventID string) string {
	if existing := ExtractBackReference(bodyHTML); existing != "" {
		eventID = existing
	}
	stripped := stripTrailingSpace(StripManagerBlocks(bodyHTML))
	return appendBlock(stripped, RenderManagerBlock(managerName, eventID))
}

// EnsureClientBlock rewrites bodyHTML to contain exactly one
// client/accreditation block, placed before any manager block so manager
// info always appears last.
func EnsureClientBlock(bodyHTML, client string, accreditationRequired bool) string {
	stripped := stripTrailingSpace(StripClientBlocks(bodyHTML))
	block := RenderClientBlock(client, accreditationRequired)
	if block == "" {
		return stripped
	}

	if loc := findManagerBlock(stripped); loc != nil {
		return stripped[:loc[0]] + block + "\n" + stripped[loc[0]:]
	}
	return appendBlock(stripped, block)
}

// findManagerBlock locates the first manager block, if any.
func findManagerBlock(bodyHTML string) []int {
	for _, re := range candidateRes {
		for _, loc := range re.FindAllStringIndex(bodyHTML, -1) {
			candidate := bodyHTML[loc[0]:loc[1]]
			if strings.Contains(candidate, managerLabel) && strings.Contains(candidate, tokenLabel) {
				return loc
			}
		}
	}
	return nil
}

func appendBlock(bodyHTML, block string) string {
	if bodyHTML == "" {
		return block
	}
	return bodyHTML + "\n" + block
}

func stripTrailingSpace(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}
