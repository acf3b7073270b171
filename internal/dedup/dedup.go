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

// Package dedup guards against double-dispatching the same notification
// using a Redis SETNX key with TTL. Dispatch passes can overlap when a
// scheduled run outlives its interval; the guard makes the hand-off to
// the mail queue at-most-once within the TTL window.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL is how long a dispatched key is remembered. Rows are
	// also marked sent in Postgres, so the guard only needs to cover
	// the overlap window between runs.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces guard keys in Redis.
	keyPrefix = "mastercal:dispatched:"
)

// Filter tracks which keys have already been handled.
type Filter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFilter creates a dispatch guard backed by Redis.
func NewFilter(rdb *redis.Client) *Filter {
	return &Filter{
		rdb: rdb,
		ttl: DefaultTTL,
	}
}

// IsNew returns true if the key has NOT been seen before. If true, the
// key is marked as seen atomically (SETNX).
func (f *Filter) IsNew(ctx context.Context, key string) (bool, error) {
	set, err := f.rdb.SetNX(ctx, fmt.Sprintf("%s%s", keyPrefix, key), 1, f.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup SETNX: %w", err)
	}
	return set, nil
}
