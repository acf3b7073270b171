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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lutine/mastercal/internal/queue"
)

// Worker consumes mail envelopes from the Redis queue and delivers them
// over SMTP. A failed send is logged and dropped rather than requeued —
// the notification rows upstream are the durable record, and requeueing a
// permanently broken mail would loop forever.
type Worker struct {
	rdb       *redis.Client
	queueName string
	sender    *Sender

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a delivery worker.
func NewWorker(rdb *redis.Client, queueName string, sender *Sender) *Worker {
	return &Worker{
		rdb:       rdb,
		queueName: queueName,
		sender:    sender,
	}
}

// Start launches the consume loop in the background.
func (w *Worker) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		for {
			if loopCtx.Err() != nil {
				return
			}
			w.consumeOne(loopCtx)
		}
	}()

	slog.Info("mail delivery worker started", "queue", w.queueName)
}

// Stop shuts down the consume loop.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// consumeOne blocks for up to five seconds waiting for an envelope, then
// delivers it. The bounded block keeps shutdown responsive.
func (w *Worker) consumeOne(ctx context.Context) {
	res, err := w.rdb.BRPop(ctx, 5*time.Second, w.queueName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		slog.Error("mail queue pop failed", "error", err)
		time.Sleep(time.Second)
		return
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return
	}

	var env queue.Envelope
	if err := json.Unmarshal([]byte(res[1]), &env); err != nil {
		slog.Error("discarding malformed mail envelope", "error", err)
		return
	}
	if env.Task != queue.TaskMailSend {
		slog.Warn("discarding envelope with unknown task", "task", env.Task)
		return
	}

	if err := w.sender.Send(env.Payload); err != nil {
		slog.Error("mail delivery failed",
			"task_id", env.ID,
			"subject", env.Payload.Subject,
			"error", err,
		)
		return
	}

	slog.Info("mail delivered",
		"task_id", env.ID,
		"subject", env.Payload.Subject,
		"recipients", len(env.Payload.To),
	)
}
