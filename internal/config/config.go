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

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// GraphConfig holds the app-registration credentials for the shared
// calendar. All four fields are required for calendar features; when any
// is missing the service runs in local-only mode.
type GraphConfig struct {
	TenantID         string `yaml:"tenant_id"`
	ClientID         string `yaml:"client_id"`
	ClientSecret     string `yaml:"client_secret"`
	SharedMailboxUPN string `yaml:"shared_mailbox_upn"`
}

// Enabled reports whether calendar integration can be used.
func (g GraphConfig) Enabled() bool {
	return g.TenantID != "" && g.ClientID != "" && g.ClientSecret != "" && g.SharedMailboxUPN != ""
}

// SMTPConfig holds the outbound mail settings for the delivery worker.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`

	// Fixed recipients for accreditation requests.
	AccreditationTo string `yaml:"accreditation_to"`
	AccreditationCc string `yaml:"accreditation_cc"`
}

// Enabled reports whether mail can actually be sent.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.From != ""
}

// Config holds all configuration for the intake service.
type Config struct {
	Graph GraphConfig
	SMTP  SMTPConfig

	// Database
	DatabaseURL string

	// Redis
	RedisURL  string
	MailQueue string

	// Delta sync
	SyncInterval  time.Duration
	SyncLookback  time.Duration
	SyncLookahead time.Duration

	// Notification dispatch
	DispatchInterval time.Duration

	// Server
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Graph    GraphConfig `yaml:"graph"`
	SMTP     SMTPConfig  `yaml:"smtp"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Mail string `yaml:"mail"`
		} `yaml:"queues"`
	} `yaml:"redis"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Graph:            raw.Graph,
		SMTP:             raw.SMTP,
		DatabaseURL:      firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/mastercal")),
		RedisURL:         firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		MailQueue:        firstNonEmpty(raw.Redis.Queues.Mail, envOrDefault("MAIL_QUEUE", "mail")),
		SyncInterval:     envOrDefaultDuration("SYNC_INTERVAL", 5*time.Minute),
		SyncLookback:     envOrDefaultDuration("SYNC_LOOKBACK", 180*24*time.Hour),
		SyncLookahead:    envOrDefaultDuration("SYNC_LOOKAHEAD", 365*24*time.Hour),
		DispatchInterval: envOrDefaultDuration("DISPATCH_INTERVAL", time.Minute),
		Port:             envOrDefaultInt("PORT", 8080),
	}

	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("no database configured — check config.yaml and environment variables")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
