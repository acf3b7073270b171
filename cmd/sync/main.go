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

// MasterCal — One-Shot Delta Sync Command
//
// Standalone CLI tool that runs a single calendar delta sync pass against
// the shared mailbox. Intended for operators after an outage, or with
// --rebootstrap to force a fresh windowed walk.
//
// Usage:
//
//	go run ./cmd/sync/ [--rebootstrap]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/lutine/mastercal/internal/config"
	"github.com/lutine/mastercal/internal/deltasync"
	"github.com/lutine/mastercal/internal/graph"
	"github.com/lutine/mastercal/internal/store"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rebootstrap := flag.Bool("rebootstrap", false, "Discard the persisted cursor and walk a fresh window")
	flag.Parse()

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.Graph.Enabled() {
		slog.Error("calendar credentials not configured, nothing to sync")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Connect to PostgreSQL ---
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create Postgres pool", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	st, err := store.New(ctx, pgPool)
	if err != nil {
		slog.Error("failed to initialise store", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to PostgreSQL")

	// --- Graph Calendar Client ---
	creds := &clientcredentials.Config{
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Graph.TenantID),
		Scopes:       []string{"https://graph.microsoft.com/.default"},
	}
	calendar := graph.NewClient(creds.Client(ctx), graphBaseURL, cfg.Graph.SharedMailboxUPN)

	syncer := deltasync.NewSyncer(deltasync.Config{
		Calendar:  calendar,
		Store:     st,
		Lookback:  cfg.SyncLookback,
		Lookahead: cfg.SyncLookahead,
	})

	if *rebootstrap {
		slog.Info("discarding persisted cursor")
		if err := st.ClearCursor(ctx, deltasync.DefaultScope); err != nil {
			slog.Error("clear cursor failed", "error", err)
			os.Exit(1)
		}
	}

	if err := syncer.Run(ctx); err != nil {
		slog.Error("delta sync failed", "error", err)
		os.Exit(1)
	}

	slog.Info("delta sync complete", "mailbox", cfg.Graph.SharedMailboxUPN)
}
