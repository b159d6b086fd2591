// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package lifecycle runs the multi-stage cohort and event workflows:
// creation (roles, categories, channels, reaction menus in dependency
// order), retirement (alumni role grants plus channel renames), and
// confirmation-gated deletion.
//
// Workflows are resumable by construction rather than transactional:
// each creation stage re-checks the live directory, so after a partial
// failure the operator fixes the cause and re-runs the failed stage's
// command without tripping over the objects that already exist.
package lifecycle

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/kinokolab/semesterd/pkg/telemetry"
	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
	"github.com/kinokolab/semesterd/services/provision"
	"github.com/kinokolab/semesterd/services/reactionroles"
)

// Defaults for discovery bounds.
const (
	// defaultClassProbe is how many class indexes deletion discovery
	// probes per cohort. Guild classes have never exceeded single
	// digits.
	defaultClassProbe = 9

	// defaultScanLimit is how many recent messages are scanned per
	// reaction channel when discovering a cohort's menu messages.
	defaultScanLimit = 100
)

// Presenter shows a pending confirmation to the requester. The
// workflow blocks on the gate after presenting; a nil Presenter
// auto-expires every gated operation.
type Presenter func(ctx context.Context, p *confirm.Pending) error

// Config carries the guild conventions the workflows depend on.
type Config struct {
	// StaffRole is the guild-wide staff role, mentioned in staff menus.
	StaffRole string

	// OBRole is the alumni role granted on retirement.
	OBRole string

	// UnassignedRole is the marker role mentioned in student menus.
	UnassignedRole string

	// StaffMenuChannel and StudentMenuChannel are name substrings of
	// the channels that host reaction-role menus.
	StaffMenuChannel   string
	StudentMenuChannel string

	// Present shows deletion plans to the requester.
	Present Presenter

	// ClassProbe and ScanLimit override the discovery defaults when
	// positive.
	ClassProbe int
	ScanLimit  int
}

// Orchestrator drives the cohort and event workflows.
type Orchestrator struct {
	dir      directory.Directory
	res      *naming.Resolver
	engine   *provision.Engine
	registry *reactionroles.Registry
	gate     *confirm.Gate
	cfg      Config
	log      *slog.Logger
	tracer   trace.Tracer
}

// New wires an orchestrator from its collaborators.
func New(
	dir directory.Directory,
	res *naming.Resolver,
	engine *provision.Engine,
	registry *reactionroles.Registry,
	gate *confirm.Gate,
	cfg Config,
	log *slog.Logger,
) *Orchestrator {
	if cfg.ClassProbe <= 0 {
		cfg.ClassProbe = defaultClassProbe
	}
	if cfg.ScanLimit <= 0 {
		cfg.ScanLimit = defaultScanLimit
	}
	return &Orchestrator{
		dir:      dir,
		res:      res,
		engine:   engine,
		registry: registry,
		gate:     gate,
		cfg:      cfg,
		log:      log,
		tracer:   telemetry.Tracer("lifecycle"),
	}
}

// stage runs fn inside a span named after the workflow step.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := o.tracer.Start(ctx, name)
	defer span.End()
	return fn(ctx)
}

// present shows a pending confirmation, tolerating a missing presenter.
func (o *Orchestrator) present(ctx context.Context, p *confirm.Pending) {
	if o.cfg.Present == nil {
		return
	}
	if err := o.cfg.Present(ctx, p); err != nil {
		o.log.Warn("presenting confirmation failed", "id", p.ID, "error", err)
	}
}
