// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reactionroles

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinokolab/semesterd/pkg/logging"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
)

func newTestRegistry(t *testing.T, dir *directory.Memory, cfg Config) *Registry {
	t.Helper()
	store := NewStore(filepath.Join(t.TempDir(), "reaction_roles.json"))
	return New(dir, naming.NewResolver(dir, logging.Discard()), store, cfg, logging.Discard())
}

func TestCreateMenu(t *testing.T) {
	ctx := context.Background()

	t.Run("posts the message and attaches reactions in binding order", func(t *testing.T) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		reg := newTestRegistry(t, dir, Config{})

		role1 := dir.SeedRole("5-1生徒")
		role2 := dir.SeedRole("5-2生徒")
		menu, err := reg.CreateMenu(ctx, ch.ID, 5, "クラスを選択してください", []Binding{
			{RoleID: role1.ID, RoleName: role1.Name, Emoji: "1️⃣", Kind: KindStudentClass},
			{RoleID: role2.ID, RoleName: role2.Name, Emoji: "2️⃣", Kind: KindStudentClass},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"1️⃣", "2️⃣"}, dir.Reactions(menu.MessageID))
	})

	t.Run("rejects duplicate emoji and empty bindings", func(t *testing.T) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		reg := newTestRegistry(t, dir, Config{})

		_, err := reg.CreateMenu(ctx, ch.ID, 5, "x", []Binding{
			{RoleID: "a", Emoji: "1️⃣"},
			{RoleID: "b", Emoji: "1️⃣"},
		})
		assert.ErrorIs(t, err, ErrDuplicateEmoji)

		_, err = reg.CreateMenu(ctx, ch.ID, 5, "x", nil)
		assert.ErrorIs(t, err, ErrNoBindings)
	})

	t.Run("reaction failure surfaces and leaves the menu unregistered", func(t *testing.T) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		reg := newTestRegistry(t, dir, Config{})

		dir.FailWith("add_reaction", assert.AnError)
		_, err := reg.CreateMenu(ctx, ch.ID, 5, "x", []Binding{{RoleID: "a", Emoji: "1️⃣"}})
		require.Error(t, err)
		assert.Empty(t, reg.Menus())
	})
}

func TestHandleReactionAdd(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*directory.Memory, *Registry, *Menu, directory.Role) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		dir.SeedChannel("管理bot通知", "")
		classRole := dir.SeedRole("5-1生徒")
		dir.SeedRole("5期生")
		unassigned := dir.SeedRole("ロール未付与")
		dir.SeedMember("user-1", "tanaka", unassigned.ID)

		reg := newTestRegistry(t, dir, Config{
			BotUserID:      "bot-1",
			UnassignedRole: "ロール未付与",
			AuditChannel:   "管理bot",
		})
		menu, err := reg.CreateMenu(ctx, ch.ID, 5, "クラス選択", []Binding{
			{RoleID: classRole.ID, RoleName: classRole.Name, Emoji: "1️⃣", Kind: KindStudentClass},
		})
		require.NoError(t, err)
		return dir, reg, menu, classRole
	}

	t.Run("grants the bound role, the parent role, and drops unassigned", func(t *testing.T) {
		dir, reg, menu, _ := setup(t)

		err := reg.HandleReactionAdd(ctx, directory.ReactionEvent{
			MessageID: menu.MessageID, ChannelID: menu.ChannelID, Emoji: "1️⃣", ActorID: "user-1",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"5-1生徒", "5期生"}, dir.MemberRoleNames("user-1"))
	})

	t.Run("sends an audit notification naming member and role", func(t *testing.T) {
		dir, reg, menu, _ := setup(t)

		require.NoError(t, reg.HandleReactionAdd(ctx, directory.ReactionEvent{
			MessageID: menu.MessageID, ChannelID: menu.ChannelID, Emoji: "1️⃣", ActorID: "user-1",
		}))

		audit, ok := dir.ChannelByName("管理bot")
		require.True(t, ok)
		msgs, err := dir.RecentMessages(ctx, audit.ID, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "`tanaka` に `5-1生徒` ロールを付与しました。", msgs[0].Content)
	})

	t.Run("ignores the bot's own reactions", func(t *testing.T) {
		dir, reg, menu, _ := setup(t)
		dir.SeedMember("bot-1", "bot")

		require.NoError(t, reg.HandleReactionAdd(ctx, directory.ReactionEvent{
			MessageID: menu.MessageID, ChannelID: menu.ChannelID, Emoji: "1️⃣", ActorID: "bot-1",
		}))
		assert.Empty(t, dir.MemberRoleNames("bot-1"))
	})

	t.Run("ignores unknown messages and unbound emoji", func(t *testing.T) {
		dir, reg, menu, _ := setup(t)

		require.NoError(t, reg.HandleReactionAdd(ctx, directory.ReactionEvent{
			MessageID: "msg-unknown", Emoji: "1️⃣", ActorID: "user-1",
		}))
		require.NoError(t, reg.HandleReactionAdd(ctx, directory.ReactionEvent{
			MessageID: menu.MessageID, Emoji: "9️⃣", ActorID: "user-1",
		}))
		assert.Equal(t, []string{"ロール未付与"}, dir.MemberRoleNames("user-1"))
	})

	t.Run("tolerates a bound role deleted out-of-band", func(t *testing.T) {
		dir, reg, menu, classRole := setup(t)
		require.NoError(t, dir.DeleteRole(ctx, classRole.ID))

		err := reg.HandleReactionAdd(ctx, directory.ReactionEvent{
			MessageID: menu.MessageID, ChannelID: menu.ChannelID, Emoji: "1️⃣", ActorID: "user-1",
		})
		assert.NoError(t, err, "missing role is a logged no-op, not a failure")
	})
}

func TestHandleReactionRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip restores the member's original roles", func(t *testing.T) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		classRole := dir.SeedRole("5-1生徒")
		dir.SeedRole("5期生")
		unassigned := dir.SeedRole("ロール未付与")
		dir.SeedMember("user-1", "tanaka", unassigned.ID)

		reg := newTestRegistry(t, dir, Config{BotUserID: "bot-1", UnassignedRole: "ロール未付与"})
		menu, err := reg.CreateMenu(ctx, ch.ID, 5, "クラス選択", []Binding{
			{RoleID: classRole.ID, RoleName: classRole.Name, Emoji: "1️⃣", Kind: KindStudentClass},
		})
		require.NoError(t, err)

		ev := directory.ReactionEvent{
			MessageID: menu.MessageID, ChannelID: menu.ChannelID, Emoji: "1️⃣", ActorID: "user-1",
		}
		require.NoError(t, reg.HandleReactionAdd(ctx, ev))
		require.NoError(t, reg.HandleReactionRemove(ctx, ev))
		assert.Equal(t, []string{"ロール未付与"}, dir.MemberRoleNames("user-1"))
	})
}

func TestRegistryReload(t *testing.T) {
	ctx := context.Background()

	t.Run("drops bindings whose role no longer resolves", func(t *testing.T) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		role1 := dir.SeedRole("5-1生徒")
		role2 := dir.SeedRole("5-2生徒")

		path := filepath.Join(t.TempDir(), "reaction_roles.json")
		res := naming.NewResolver(dir, logging.Discard())
		reg := New(dir, res, NewStore(path), Config{}, logging.Discard())
		menu, err := reg.CreateMenu(ctx, ch.ID, 5, "クラス選択", []Binding{
			{RoleID: role1.ID, RoleName: role1.Name, Emoji: "1️⃣", Kind: KindStudentClass},
			{RoleID: role2.ID, RoleName: role2.Name, Emoji: "2️⃣", Kind: KindStudentClass},
		})
		require.NoError(t, err)

		require.NoError(t, dir.DeleteRole(ctx, role2.ID))

		reloaded := New(dir, res, NewStore(path), Config{}, logging.Discard())
		dropped, err := reloaded.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, dropped)

		menus := reloaded.Menus()
		require.Len(t, menus, 1)
		assert.Equal(t, menu.MessageID, menus[0].MessageID)
		require.Len(t, menus[0].Bindings, 1)
		assert.Equal(t, role1.ID, menus[0].Bindings[0].RoleID)
	})

	t.Run("removes a menu whose bindings all dropped", func(t *testing.T) {
		dir := directory.NewMemory()
		ch := dir.SeedChannel("総合受付", "")
		role := dir.SeedRole("5-1生徒")

		path := filepath.Join(t.TempDir(), "reaction_roles.json")
		res := naming.NewResolver(dir, logging.Discard())
		reg := New(dir, res, NewStore(path), Config{}, logging.Discard())
		_, err := reg.CreateMenu(ctx, ch.ID, 5, "クラス選択", []Binding{
			{RoleID: role.ID, RoleName: role.Name, Emoji: "1️⃣", Kind: KindStudentClass},
		})
		require.NoError(t, err)
		require.NoError(t, dir.DeleteRole(ctx, role.ID))

		reloaded := New(dir, res, NewStore(path), Config{}, logging.Discard())
		dropped, err := reloaded.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, dropped)
		assert.Empty(t, reloaded.Menus())
	})
}

func TestPurge(t *testing.T) {
	ctx := context.Background()

	dir := directory.NewMemory()
	ch := dir.SeedChannel("総合受付", "")
	role := dir.SeedRole("5-1生徒")

	path := filepath.Join(t.TempDir(), "reaction_roles.json")
	res := naming.NewResolver(dir, logging.Discard())
	reg := New(dir, res, NewStore(path), Config{}, logging.Discard())
	menu, err := reg.CreateMenu(ctx, ch.ID, 5, "クラス選択", []Binding{
		{RoleID: role.ID, RoleName: role.Name, Emoji: "1️⃣", Kind: KindStudentClass},
	})
	require.NoError(t, err)

	removed, err := reg.Purge(menu.MessageID, "msg-unknown")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Empty(t, reg.Menus())

	// Purge is durable: a reload does not resurrect the menu.
	reloaded := New(dir, res, NewStore(path), Config{}, logging.Discard())
	dropped, err := reloaded.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	assert.Empty(t, reloaded.Menus())
}
