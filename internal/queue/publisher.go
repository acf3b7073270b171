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

// Package queue publishes outbound mail tasks to Redis. The delivery
// worker that actually sends the mail consumes them from the list; this
// service never blocks an intake action on SMTP.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MailTask is one outbound HTML mail for the delivery worker.
type MailTask struct {
	To       []string `json:"to"`
	Cc       []string `json:"cc,omitempty"`
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"html_body"`
}

// Envelope wraps a mail task for Redis transport. The delivery worker
// decodes the same shape on the consuming side.
type Envelope struct {
	ID         string   `json:"id"`
	Task       string   `json:"task"`
	Payload    MailTask `json:"payload"`
	EnqueuedAt string   `json:"enqueued_at"`
}

// TaskMailSend is the task name for outbound mail envelopes.
const TaskMailSend = "mail.send"

// Publisher sends mail tasks to a Redis list.
type Publisher struct {
	rdb       *redis.Client
	queueName string
}

// NewPublisher creates a publisher targeting the specified queue.
func NewPublisher(rdb *redis.Client, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// PublishMailTask serialises a mail task and pushes it onto the queue.
func (p *Publisher) PublishMailTask(ctx context.Context, task MailTask) error {
	if len(task.To) == 0 {
		return fmt.Errorf("mail task has no recipients")
	}

	env := Envelope{
		ID:         uuid.New().String(),
		Task:       TaskMailSend,
		Payload:    task,
		EnqueuedAt: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal mail task: %w", err)
	}

	if err := p.rdb.LPush(ctx, p.queueName, string(data)).Err(); err != nil {
		return fmt.Errorf("redis LPUSH: %w", err)
	}

	slog.Info("published mail task",
		"task_id", env.ID,
		"subject", task.Subject,
		"queue", p.queueName,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}
