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

// MasterCal — Calendar Intake Service
//
// Entry point for the intake service. It:
//  1. Loads configuration from config.yaml
//  2. Connects to PostgreSQL and Redis
//  3. Builds the OAuth2 Graph client for the shared calendar (if configured)
//  4. Runs scheduled delta sync and notification dispatch
//  5. Serves the intake HTTP API
//  6. Handles graceful shutdown on SIGTERM/SIGINT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/lutine/mastercal/internal/api"
	"github.com/lutine/mastercal/internal/config"
	"github.com/lutine/mastercal/internal/dedup"
	"github.com/lutine/mastercal/internal/deltasync"
	"github.com/lutine/mastercal/internal/graph"
	"github.com/lutine/mastercal/internal/mailer"
	"github.com/lutine/mastercal/internal/notify"
	"github.com/lutine/mastercal/internal/queue"
	"github.com/lutine/mastercal/internal/recon"
	"github.com/lutine/mastercal/internal/store"
)

const graphBaseURL = "https://graph.microsoft.com/v1.0"

func main() {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("starting MasterCal intake service")

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"calendar_enabled", cfg.Graph.Enabled(),
		"smtp_enabled", cfg.SMTP.Enabled(),
		"sync_interval", cfg.SyncInterval,
	)

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

	// --- Connect to Redis ---
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(opt)

	publisher := queue.NewPublisher(rdb, cfg.MailQueue)
	if err := publisher.Ping(ctx); err != nil {
		slog.Error("failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to Redis")

	guard := dedup.NewFilter(rdb)

	// --- Graph Calendar Client ---
	// Missing credentials disable calendar features; local intake keeps
	// working and every calendar sub-operation reports its skip.
	var calendar *graph.Client
	if cfg.Graph.Enabled() {
		creds := &clientcredentials.Config{
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", cfg.Graph.TenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		}
		calendar = graph.NewClient(creds.Client(ctx), graphBaseURL, cfg.Graph.SharedMailboxUPN)
		slog.Info("calendar client ready", "mailbox", cfg.Graph.SharedMailboxUPN)
	} else {
		slog.Warn("calendar credentials missing, running in local-only mode")
	}

	// --- Engine, Syncer, Dispatcher ---
	seeder := notify.NewScheduler(st)

	var engine *recon.Engine
	if calendar != nil {
		engine = recon.NewEngine(calendar, st, seeder)
	} else {
		engine = recon.NewEngine(nil, st, seeder)
	}

	var syncer *deltasync.Syncer
	if calendar != nil {
		syncer = deltasync.NewSyncer(deltasync.Config{
			Calendar:  calendar,
			Store:     st,
			Lookback:  cfg.SyncLookback,
			Lookahead: cfg.SyncLookahead,
		})
	}

	dispatcher := notify.NewDispatcher(st, publisher, guard)

	// --- Mail Delivery Worker ---
	sender := mailer.NewSender(cfg.SMTP)
	var worker *mailer.Worker
	if sender != nil {
		worker = mailer.NewWorker(rdb, cfg.MailQueue, sender)
		worker.Start(ctx)
	} else {
		slog.Warn("SMTP not configured, queued mail will accumulate unsent")
	}

	composer := &mailer.Composer{
		AccreditationTo: splitAddresses(cfg.SMTP.AccreditationTo),
		AccreditationCc: splitAddresses(cfg.SMTP.AccreditationCc),
	}

	// --- Scheduled Jobs ---
	sched := cron.New()
	if syncer != nil {
		_, err = sched.AddFunc(fmt.Sprintf("@every %s", cfg.SyncInterval), func() {
			if err := syncer.Run(ctx); err != nil {
				slog.Error("scheduled delta sync failed", "error", err)
			}
		})
		if err != nil {
			slog.Error("failed to schedule delta sync", "error", err)
			os.Exit(1)
		}
	}
	_, err = sched.AddFunc(fmt.Sprintf("@every %s", cfg.DispatchInterval), func() {
		if err := dispatcher.Run(ctx); err != nil {
			slog.Error("scheduled notification dispatch failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("failed to schedule notification dispatch", "error", err)
		os.Exit(1)
	}
	sched.Start()

	// --- HTTP API ---
	var apiSyncer api.Syncer
	if syncer != nil {
		apiSyncer = syncer
	}
	handler := api.NewHandler(engine, apiSyncer, st, publisher, composer)

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh

		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		cronCtx := sched.Stop()
		<-cronCtx.Done()
		if worker != nil {
			worker.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}

		rdb.Close()
		pgPool.Close()
	}()

	slog.Info("intake service listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("intake service stopped")
}

// splitAddresses parses a comma-separated address list from config.
func splitAddresses(raw string) []string {
	var out []string
	for _, a := range strings.Split(raw, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
