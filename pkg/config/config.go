// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and validates the semesterd configuration file.
//
// Configuration lives in a YAML file (semesterd.yaml by default). The
// Discord bot token is intentionally NOT part of the file: it is read
// from the DISCORD_TOKEN environment variable so the file can be
// committed and shared without leaking credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrTokenMissing is returned by Token when DISCORD_TOKEN is unset.
var ErrTokenMissing = errors.New("DISCORD_TOKEN environment variable is not set")

// ReactionChannels names the two channels that host reaction-role
// menus. Matching is by substring containment, following the guild's
// convention of decorating channel names with emoji prefixes.
type ReactionChannels struct {
	// Staff hosts the per-cohort staff class-assignment menu.
	Staff string `yaml:"staff" validate:"required"`

	// Student hosts the per-cohort student class-selection menu.
	Student string `yaml:"student" validate:"required"`
}

// Config is the full daemon configuration.
type Config struct {
	// GuildID is the Discord guild the daemon manages.
	GuildID string `yaml:"guild_id" validate:"required"`

	// AdminChannelPrefix restricts operator commands to channels whose
	// name starts with this prefix.
	AdminChannelPrefix string `yaml:"admin_channel_prefix" validate:"required"`

	// StaffRole is the guild-wide staff role required to run operator
	// commands.
	StaffRole string `yaml:"staff_role" validate:"required"`

	// UnassignedRole is the marker role removed when a member picks a
	// class via a reaction menu and restored when they withdraw.
	UnassignedRole string `yaml:"unassigned_role"`

	// OBRole is the alumni role granted by the retire workflow.
	OBRole string `yaml:"ob_role"`

	// AuditChannel is a substring of the channel that receives
	// grant/revoke audit notifications. Empty disables auditing.
	AuditChannel string `yaml:"audit_channel"`

	// ReactionChannels hosts the cohort reaction-role menus.
	ReactionChannels ReactionChannels `yaml:"reaction_channels"`

	// StorePath is the reaction-role registry snapshot file.
	StorePath string `yaml:"store_path"`

	// ConfirmTimeout bounds how long a destructive-operation
	// confirmation waits before expiring.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFile, when set, duplicates logs to a JSON file.
	LogFile string `yaml:"log_file"`

	// AdminAddr is the listen address for the health/metrics endpoint.
	// Empty disables the endpoint.
	AdminAddr string `yaml:"admin_addr"`

	// Tracing enables the OpenTelemetry stdout exporter.
	Tracing bool `yaml:"tracing"`
}

// defaults mirror the original deployment's settings where the value
// is structural rather than site-specific.
func (c *Config) applyDefaults() {
	if c.OBRole == "" {
		c.OBRole = "OB"
	}
	if c.StorePath == "" {
		c.StorePath = "reaction_roles.json"
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = 60 * time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Load reads, defaults, and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config %s: %w", path, err)
	}
	return &cfg, nil
}

// Token returns the Discord bot token from the environment.
func Token() (string, error) {
	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return "", ErrTokenMissing
	}
	return token, nil
}
