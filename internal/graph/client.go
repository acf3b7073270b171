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

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the Graph calendar of a single shared mailbox. The
// http.Client is expected to carry OAuth2 client-credentials transport
// (golang.org/x/oauth2/clientcredentials), so every request presents a
// valid bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	mailbox    string // shared mailbox UPN owning the calendar
	timeout    time.Duration
}

// NewClient creates a calendar client for the given shared mailbox.
func NewClient(httpClient *http.Client, baseURL, mailbox string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		mailbox:    mailbox,
		timeout:    20 * time.Second,
	}
}

// CreateEvent posts a new event to the shared calendar and returns the
// created representation (including the opaque event id).
func (c *Client) CreateEvent(ctx context.Context, payload Event) (*Event, error) {
	u := fmt.Sprintf("%s/users/%s/calendar/events", c.baseURL, c.mailbox)

	var created Event
	if err := c.do(ctx, http.MethodPost, u, payload, &created); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("create event: response carried no id")
	}
	return &created, nil
}

// PatchEvent applies a partial update. The payload carries only the fields
// being changed — Graph leaves everything else untouched.
func (c *Client) PatchEvent(ctx context.Context, eventID string, payload any) error {
	u := fmt.Sprintf("%s/users/%s/events/%s", c.baseURL, c.mailbox, url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodPatch, u, payload, nil); err != nil {
		return fmt.Errorf("patch event: %w", err)
	}
	return nil
}

// PatchEventBody rewrites only the event body, leaving every other field
// untouched.
func (c *Client) PatchEventBody(ctx context.Context, eventID, bodyHTML string) error {
	patch := struct {
		Body Body `json:"body"`
	}{Body: Body{ContentType: "HTML", Content: bodyHTML}}

	u := fmt.Sprintf("%s/users/%s/events/%s", c.baseURL, c.mailbox, url.PathEscape(eventID))
	if err := c.do(ctx, http.MethodPatch, u, patch, nil); err != nil {
		return fmt.Errorf("patch event body: %w", err)
	}
	return nil
}

// GetEvent retrieves the full event representation, including the current
// body.
func (c *Client) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	u := fmt.Sprintf("%s/users/%s/events/%s", c.baseURL, c.mailbox, url.PathEscape(eventID))

	var ev Event
	if err := c.do(ctx, http.MethodGet, u, nil, &ev); err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

// DeleteEvent removes an event. Idempotent: 404 means the event is already
// gone and is treated identically to a successful delete.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	u := fmt.Sprintf("%s/users/%s/events/%s", c.baseURL, c.mailbox, url.PathEscape(eventID))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete event: HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// InitialDeltaURL builds the first-run delta query over a bounded window.
// Subsequent runs use the persisted delta link directly, with no window
// parameters.
func (c *Client) InitialDeltaURL(start, end time.Time) string {
	params := url.Values{}
	params.Set("startDateTime", start.UTC().Format(time.RFC3339))
	params.Set("endDateTime", end.UTC().Format(time.RFC3339))
	return fmt.Sprintf("%s/users/%s/calendarView/delta?%s", c.baseURL, c.mailbox, params.Encode())
}

// FetchDeltaPage fetches one page from the delta endpoint. The caller
// walks NextLink within a pass and persists DeltaLink at the end.
func (c *Client) FetchDeltaPage(ctx context.Context, pageURL string) (*DeltaPage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build delta request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", "odata.maxpagesize=100")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch delta page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		return nil, &GoneError{}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("delta query error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("delta query returned HTTP %d", resp.StatusCode)
	}

	var page DeltaPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode delta response: %w", err)
	}
	return &page, nil
}

// do performs one JSON request/response cycle with a bounded timeout.
func (c *Client) do(ctx context.Context, method, u string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// GoneError marks a 410 Gone delta response: the persisted cursor has
// expired and the scope must re-bootstrap from a fresh window.
type GoneError struct{}

func (e *GoneError) Error() string { return "delta cursor expired (410 Gone)" }

// IsGone reports whether err is an expired-cursor error.
func IsGone(err error) bool {
	_, ok := err.(*GoneError)
	return ok
}
