// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bot is the Discord gateway surface: it registers the slash
// commands, authorizes and dispatches invocations to the lifecycle
// orchestrator, and feeds reaction events to the registry.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/lifecycle"
	"github.com/kinokolab/semesterd/services/naming"
	"github.com/kinokolab/semesterd/services/reactionroles"
)

// Config carries the bot's guild conventions.
type Config struct {
	GuildID string

	// AdminChannelPrefix names the channels management commands may
	// run in.
	AdminChannelPrefix string

	// StaffRole is the role a caller must hold to run management
	// commands.
	StaffRole string
}

// Bot owns the gateway session and routes events to the domain
// services.
type Bot struct {
	session  *discordgo.Session
	orch     *lifecycle.Orchestrator
	registry *reactionroles.Registry
	gate     *confirm.Gate
	cfg      Config
	log      *slog.Logger

	// replyChannels maps a requester's user id to the channel their
	// pending confirmation prompt belongs in.
	replyChannels sync.Map

	// base context for handlers spawned by gateway events.
	ctx context.Context
}

// New builds a bot over an already-authenticated session. The
// orchestrator is attached afterwards with SetOrchestrator because its
// confirmation presenter is a method of the bot.
func New(
	session *discordgo.Session,
	orch *lifecycle.Orchestrator,
	registry *reactionroles.Registry,
	gate *confirm.Gate,
	cfg Config,
	log *slog.Logger,
) *Bot {
	return &Bot{
		session:  session,
		orch:     orch,
		registry: registry,
		gate:     gate,
		cfg:      cfg,
		log:      log,
	}
}

// SetOrchestrator attaches the lifecycle orchestrator. Must be called
// before Run.
func (b *Bot) SetOrchestrator(orch *lifecycle.Orchestrator) {
	b.orch = orch
}

// Run opens the gateway connection, registers the slash commands, and
// serves events until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildMembers

	b.session.AddHandler(b.onInteraction)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening gateway session: %w", err)
	}
	defer b.session.Close()

	b.registry.SetBotUserID(b.session.State.User.ID)

	if _, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID, b.cfg.GuildID, commandDefinitions(),
	); err != nil {
		return fmt.Errorf("registering slash commands: %w", err)
	}
	b.log.Info("bot ready",
		"user", b.session.State.User.Username,
		"guild", b.cfg.GuildID,
		"commands", len(commandDefinitions()))

	<-ctx.Done()
	b.log.Info("bot shutting down")
	return nil
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		b.handleComponent(i)
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(i)
	}
}

// dispatchCommand authorizes the invocation, defers the response, and
// runs the handler on its own goroutine; workflows can outlive
// Discord's 3-second initial response window by a wide margin.
func (b *Bot) dispatchCommand(i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name

	inv, err := b.invocationOf(i)
	if err != nil {
		b.log.Warn("resolving invocation context failed", "command", name, "error", err)
		b.respondEphemeral(i, "❌ コマンドの実行コンテキストを取得できませんでした。")
		return
	}
	// Event-role commands run in the event's role-assignment channel
	// rather than the admin channel; the staff-role and administrator
	// predicates still apply.
	prefix := b.cfg.AdminChannelPrefix
	if name == "add_role" || name == "remove_role" {
		prefix = naming.EventRoleChannelPrefix
	}
	if !authorized(inv, prefix, b.cfg.StaffRole) {
		b.respondEphemeral(i, "❌ このコマンドは管理チャンネルで職員のみ実行できます。")
		return
	}

	if err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.log.Error("deferring interaction failed", "command", name, "error", err)
		return
	}

	go func() {
		b.log.Info("command invoked", "command", name, "user", i.Member.User.ID)
		content := b.handleCommand(b.ctx, i, inv.channelName)
		if _, err := b.session.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content: content,
		}); err != nil {
			b.log.Error("followup failed", "command", name, "error", err)
		}
	}()
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	ev := reactionEvent(r.MessageReaction)
	go func() {
		if err := b.registry.HandleReactionAdd(b.ctx, ev); err != nil {
			b.log.Error("reaction add failed", "message_id", ev.MessageID, "error", err)
		}
	}()
}

func (b *Bot) onReactionRemove(s *discordgo.Session, r *discordgo.MessageReactionRemove) {
	ev := reactionEvent(r.MessageReaction)
	go func() {
		if err := b.registry.HandleReactionRemove(b.ctx, ev); err != nil {
			b.log.Error("reaction remove failed", "message_id", ev.MessageID, "error", err)
		}
	}()
}

func reactionEvent(r *discordgo.MessageReaction) directory.ReactionEvent {
	return directory.ReactionEvent{
		MessageID: r.MessageID,
		ChannelID: r.ChannelID,
		Emoji:     r.Emoji.Name,
		ActorID:   r.UserID,
		GuildID:   r.GuildID,
	}
}
