// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinokolab/semesterd/pkg/logging"
	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/lifecycle"
	"github.com/kinokolab/semesterd/services/naming"
	"github.com/kinokolab/semesterd/services/provision"
	"github.com/kinokolab/semesterd/services/reactionroles"
)

type cmdFixture struct {
	dir *directory.Memory
	bot *Bot
}

// newCmdFixture wires a bot over the in-memory directory. The session
// stays nil; handleCommand never touches the gateway.
func newCmdFixture(t *testing.T) *cmdFixture {
	t.Helper()
	dir := directory.NewMemory()
	log := logging.Discard()
	res := naming.NewResolver(dir, log)
	store := reactionroles.NewStore(filepath.Join(t.TempDir(), "reaction_roles.json"))
	registry := reactionroles.New(dir, res, store, reactionroles.Config{}, log)
	gate := confirm.NewGate(time.Second, log)

	cfg := lifecycle.Config{
		StaffRole:          "管理者",
		OBRole:             "OB",
		UnassignedRole:     "ロール未付与",
		StaffMenuChannel:   "職員todoリスト",
		StudentMenuChannel: "総合受付",
		Present: func(ctx context.Context, p *confirm.Pending) error {
			return gate.Resolve(p.ID, p.RequesterID, true)
		},
	}
	orch := lifecycle.New(dir, res, provision.NewEngine(dir, res, log), registry, gate, cfg, log)
	b := New(nil, orch, registry, gate, Config{StaffRole: "管理者"}, log)

	dir.SeedRole("管理者")
	dir.SeedRole("OB")
	dir.SeedRole("ロール未付与")
	dir.SeedChannel("📋｜職員todoリスト", "")
	dir.SeedChannel("🛎｜総合受付", "")
	return &cmdFixture{dir: dir, bot: b}
}

func slashInteraction(name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommand,
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: opts,
			},
			Member: &discordgo.Member{User: &discordgo.User{ID: "admin-1"}},
		},
	}
}

func intOpt(name string, v int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionInteger,
		Name:  name,
		Value: float64(v),
	}
}

func userOpt(name, userID string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Type:  discordgo.ApplicationCommandOptionUser,
		Name:  name,
		Value: userID,
	}
}

func TestNextSeasonCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("retires exactly the given semester", func(t *testing.T) {
		f := newCmdFixture(t)
		require.True(t, f.bot.orch.CreateCohort(ctx, 5, 1).OK())

		student, ok := f.dir.RoleByName("5期生")
		require.True(t, ok)
		f.dir.SeedMember("user-1", "tanaka", student.ID)

		content := f.bot.handleCommand(ctx, slashInteraction("next_season", intOpt("semester", 5)), "📋｜運営")
		assert.Contains(t, content, "✅")

		assert.Contains(t, f.dir.MemberRoleNames("user-1"), "OB")
		_, ok = f.dir.ChannelByName("📙📢｜5期連絡")
		assert.True(t, ok, "semester 5 channels renamed to the retired glyph")

		// Retirement provisions nothing for the following semester.
		_, ok = f.dir.RoleByName("6期生")
		assert.False(t, ok)
		_, ok = f.dir.ChannelByName("6期連絡")
		assert.False(t, ok)
	})
}

func TestEventRoleCommands(t *testing.T) {
	ctx := context.Background()

	t.Run("grant and revoke derive the event from the channel", func(t *testing.T) {
		f := newCmdFixture(t)
		require.True(t, f.bot.orch.CreateEvent(ctx, "文化祭").OK())
		f.dir.SeedMember("user-1", "tanaka")

		content := f.bot.handleCommand(ctx, slashInteraction("add_role", userOpt("user", "user-1")), "ロール付与-文化祭")
		assert.Contains(t, content, "✅")
		assert.Contains(t, f.dir.MemberRoleNames("user-1"), "🎯 文化祭")

		content = f.bot.handleCommand(ctx, slashInteraction("remove_role", userOpt("user", "user-1")), "ロール付与-文化祭")
		assert.Contains(t, content, "✅")
		assert.NotContains(t, f.dir.MemberRoleNames("user-1"), "🎯 文化祭")
	})

	t.Run("granting an already-held role reports the duplicate", func(t *testing.T) {
		f := newCmdFixture(t)
		require.True(t, f.bot.orch.CreateEvent(ctx, "文化祭").OK())
		role, ok := f.dir.RoleByName("🎯 文化祭")
		require.True(t, ok)
		f.dir.SeedMember("user-1", "tanaka", role.ID)

		content := f.bot.handleCommand(ctx, slashInteraction("add_role", userOpt("user", "user-1")), "ロール付与-文化祭")
		assert.Contains(t, content, "❌")
		assert.Contains(t, content, "既に")
	})

	t.Run("revoking a role the member does not hold reports it", func(t *testing.T) {
		f := newCmdFixture(t)
		require.True(t, f.bot.orch.CreateEvent(ctx, "文化祭").OK())
		f.dir.SeedMember("user-1", "tanaka")

		content := f.bot.handleCommand(ctx, slashInteraction("remove_role", userOpt("user", "user-1")), "ロール付与-文化祭")
		assert.Contains(t, content, "❌")
		assert.Contains(t, content, "持っていません")
	})

	t.Run("running outside a role-assignment channel is rejected", func(t *testing.T) {
		f := newCmdFixture(t)
		require.True(t, f.bot.orch.CreateEvent(ctx, "文化祭").OK())
		f.dir.SeedMember("user-1", "tanaka")

		content := f.bot.handleCommand(ctx, slashInteraction("add_role", userOpt("user", "user-1")), "📋｜職員todoリスト")
		assert.Contains(t, content, "ロール付与チャンネルで実行してください")
		assert.Empty(t, f.dir.MemberRoleNames("user-1"))
	})
}
