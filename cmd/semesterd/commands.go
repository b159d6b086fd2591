// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kinokolab/semesterd/pkg/config"
	"github.com/kinokolab/semesterd/pkg/logging"
	"github.com/kinokolab/semesterd/pkg/telemetry"
	"github.com/kinokolab/semesterd/services/admin"
	"github.com/kinokolab/semesterd/services/bot"
	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/lifecycle"
	"github.com/kinokolab/semesterd/services/naming"
	"github.com/kinokolab/semesterd/services/provision"
	"github.com/kinokolab/semesterd/services/reactionroles"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "semesterd",
	Short: "Discord guild lifecycle daemon for semester cohorts",
	Long: "semesterd manages the roles, categories, channels, and reaction-role\n" +
		"menus of a school community Discord guild across semester cohorts.",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the semesterd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("semesterd", version)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot and admin endpoint until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "semesterd.yaml", "path to the configuration file")
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func serve() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log, closeLog, err := logging.New(logging.Config{
		Level:   level,
		LogFile: cfg.LogFile,
		Service: "semesterd",
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintln(os.Stderr, "closing log file:", err)
		}
	}()

	shutdownTracing, err := telemetry.Setup(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}

	token, err := config.Token()
	if err != nil {
		return err
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring, innermost first: directory, resolver, engine, registry,
	// gate, orchestrator, then the two servers.
	dir := directory.NewDiscord(session, cfg.GuildID)
	res := naming.NewResolver(dir, log)
	engine := provision.NewEngine(dir, res, log)
	store := reactionroles.NewStore(cfg.StorePath)
	registry := reactionroles.New(dir, res, store, reactionroles.Config{
		UnassignedRole: cfg.UnassignedRole,
		AuditChannel:   cfg.AuditChannel,
	}, log)
	gate := confirm.NewGate(cfg.ConfirmTimeout, log)

	b := bot.New(session, nil, registry, gate, bot.Config{
		GuildID:            cfg.GuildID,
		AdminChannelPrefix: cfg.AdminChannelPrefix,
		StaffRole:          cfg.StaffRole,
	}, log)

	orch := lifecycle.New(dir, res, engine, registry, gate, lifecycle.Config{
		StaffRole:          cfg.StaffRole,
		OBRole:             cfg.OBRole,
		UnassignedRole:     cfg.UnassignedRole,
		StaffMenuChannel:   cfg.ReactionChannels.Staff,
		StudentMenuChannel: cfg.ReactionChannels.Student,
		Present:            b.Present,
	}, log)
	b.SetOrchestrator(orch)

	// Rebuild the registry before serving so stale bindings are
	// dropped while nothing is listening yet.
	dropped, err := registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading reaction-role registry: %w", err)
	}
	if dropped > 0 {
		log.Warn("stale reaction-role bindings dropped", "count", dropped)
	}

	adminSrv := admin.New(cfg.AdminAddr, registry, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	g.Go(func() error { return adminSrv.Run(ctx) })

	err = g.Wait()
	if terr := shutdownTracing(context.Background()); terr != nil {
		log.Warn("tracing shutdown failed", "error", terr)
	}
	return err
}
