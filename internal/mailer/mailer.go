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

// Package mailer sends outbound HTML mail over SMTP and composes the
// standard notices the intake service emits: meeting-manager assignment,
// accreditation requests, and the event-details fragment they embed.
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/lutine/mastercal/internal/config"
	"github.com/lutine/mastercal/internal/queue"
)

// Sender delivers mail tasks over SMTP.
type Sender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSender creates an SMTP sender from config. Returns nil when SMTP is
// not configured; callers treat a nil sender as mail-disabled.
func NewSender(cfg config.SMTPConfig) *Sender {
	if !cfg.Enabled() {
		return nil
	}
	return &Sender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// Send delivers one mail task. Each call dials a fresh SMTP session;
// volume is low enough that connection reuse buys nothing.
func (s *Sender) Send(task queue.MailTask) error {
	if len(task.To) == 0 {
		return fmt.Errorf("mail task has no recipients")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", task.To...)
	if len(task.Cc) > 0 {
		m.SetHeader("Cc", task.Cc...)
	}
	m.SetHeader("Subject", task.Subject)
	m.SetBody("text/html", task.HTMLBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
