// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinokolab/semesterd/pkg/logging"
	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
	"github.com/kinokolab/semesterd/services/provision"
	"github.com/kinokolab/semesterd/services/reactionroles"
)

type fixture struct {
	dir       *directory.Memory
	registry  *reactionroles.Registry
	orch      *Orchestrator
	storePath string
}

// autoConfirm resolves every presented confirmation as the requester.
func autoConfirm(gate *confirm.Gate) Presenter {
	return func(ctx context.Context, p *confirm.Pending) error {
		return gate.Resolve(p.ID, p.RequesterID, true)
	}
}

func newFixture(t *testing.T, timeout time.Duration, confirmAll bool) *fixture {
	t.Helper()
	dir := directory.NewMemory()
	log := logging.Discard()
	res := naming.NewResolver(dir, log)
	storePath := filepath.Join(t.TempDir(), "reaction_roles.json")
	store := reactionroles.NewStore(storePath)
	registry := reactionroles.New(dir, res, store, reactionroles.Config{}, log)
	gate := confirm.NewGate(timeout, log)

	cfg := Config{
		StaffRole:          "管理者",
		OBRole:             "OB",
		UnassignedRole:     "ロール未付与",
		StaffMenuChannel:   "職員todoリスト",
		StudentMenuChannel: "総合受付",
	}
	if confirmAll {
		cfg.Present = autoConfirm(gate)
	}
	orch := New(dir, res, provision.NewEngine(dir, res, log), registry, gate, cfg, log)
	return &fixture{dir: dir, registry: registry, orch: orch, storePath: storePath}
}

// stageByName finds a report stage for detail assertions.
func stageByName(t *testing.T, r *Report, name string) Stage {
	t.Helper()
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("stage %q not in report %+v", name, r)
	return Stage{}
}

// seedGuild sets up the standing objects every workflow assumes.
func (f *fixture) seedGuild() {
	f.dir.SeedRole("管理者")
	f.dir.SeedRole("OB")
	f.dir.SeedRole("ロール未付与")
	f.dir.SeedChannel("📋｜職員todoリスト", "")
	f.dir.SeedChannel("🛎｜総合受付", "")
}

func TestCreateCohort(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions roles, categories, channels, and menus", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.seedGuild()

		report := f.orch.CreateCohort(ctx, 5, 2)
		require.True(t, report.OK(), "report: %+v", report)
		require.Len(t, report.Stages, 4)

		_, ok := f.dir.RoleByName("5期生")
		assert.True(t, ok)
		_, ok = f.dir.RoleByName("5-2職員")
		assert.True(t, ok)
		_, ok = f.dir.ChannelByName("5-1雑談")
		assert.True(t, ok)

		menus := f.registry.Menus()
		require.Len(t, menus, 2, "one staff and one student menu")
		for _, m := range menus {
			assert.Len(t, m.Bindings, 2)
			assert.Equal(t, []string{"1️⃣", "2️⃣"}, f.dir.Reactions(m.MessageID))
		}
	})

	t.Run("second run halts at the role stage", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.seedGuild()

		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())

		report := f.orch.CreateCohort(ctx, 5, 1)
		assert.False(t, report.OK())
		require.Len(t, report.Stages, 1, "halted before categories")
		assert.ErrorIs(t, report.Err(), provision.ErrAlreadyExists)
	})

	t.Run("menus skip classes whose role is missing", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.seedGuild()
		f.dir.SeedChannel("dummy", "")
		f.dir.SeedRole("5-1生徒")
		f.dir.SeedRole("5-1職員")
		// Class 2 roles intentionally absent.

		report := f.orch.CreateReactionMenus(ctx, 5, 2)
		require.True(t, report.OK(), "missing class roles are skipped, not fatal")

		for _, m := range f.registry.Menus() {
			require.Len(t, m.Bindings, 1)
			assert.Equal(t, "1️⃣", m.Bindings[0].Emoji)
		}
	})
}

func TestRetireCohort(t *testing.T) {
	ctx := context.Background()

	t.Run("grants OB and swaps channel glyphs", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())

		student, _ := f.dir.RoleByName("5期生")
		ob, _ := f.dir.RoleByName("OB")
		f.dir.SeedMember("user-1", "tanaka", student.ID)
		f.dir.SeedMember("user-2", "suzuki", student.ID, ob.ID)
		f.dir.SeedMember("user-3", "sato")

		report := f.orch.RetireCohort(ctx, 5)
		require.True(t, report.OK(), "report: %+v", report)

		assert.Contains(t, f.dir.MemberRoleNames("user-1"), "OB")
		assert.Contains(t, f.dir.MemberRoleNames("user-2"), "OB")
		assert.NotContains(t, f.dir.MemberRoleNames("user-3"), "OB")

		_, ok := f.dir.ChannelByName("📙📢｜5期連絡")
		assert.True(t, ok, "announce channel renamed to retired glyph")
		_, ok = f.dir.ChannelByName("📙💬｜5-1雑談")
		assert.True(t, ok)
		_, ok = f.dir.ChannelByName("📗")
		assert.False(t, ok, "no active-glyph channel of the cohort remains")
	})

	t.Run("leaves other cohorts' channels alone", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())
		other := f.dir.SeedChannel("📗📢｜6期連絡", "")

		require.True(t, f.orch.RetireCohort(ctx, 5).OK())

		ch, ok := f.dir.ChannelByName("6期連絡")
		require.True(t, ok)
		assert.Equal(t, other.Name, ch.Name, "cohort 6 channel untouched")
	})

	t.Run("first cohort aborts when OB was already granted", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 1, 1).OK())

		student, _ := f.dir.RoleByName("1期生")
		ob, _ := f.dir.RoleByName("OB")
		f.dir.SeedMember("user-1", "tanaka", student.ID, ob.ID)

		report := f.orch.RetireCohort(ctx, 1)
		assert.False(t, report.OK())
		assert.ErrorIs(t, report.Err(), ErrAlreadyRetired)

		_, ok := f.dir.ChannelByName("📙")
		assert.False(t, ok, "no channel renamed after the abort")
	})

	t.Run("fails when the OB role is missing", func(t *testing.T) {
		f := newFixture(t, time.Second, false)
		f.dir.SeedRole("管理者")
		f.dir.SeedRole("5期生")

		report := f.orch.RetireCohort(ctx, 5)
		assert.False(t, report.OK())
		assert.ErrorIs(t, report.Err(), directory.ErrNotFound)
	})
}

func TestDeleteCohorts(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed deletion removes every cohort object", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 2).OK())

		report, outcome := f.orch.DeleteCohorts(ctx, "admin-1", 5)
		require.Equal(t, confirm.OutcomeConfirmed, outcome)
		require.True(t, report.OK(), "report: %+v", report)

		_, ok := f.dir.RoleByName("5期生")
		assert.False(t, ok)
		_, ok = f.dir.RoleByName("5-2職員")
		assert.False(t, ok)
		_, ok = f.dir.ChannelByName("5-1雑談")
		assert.False(t, ok)
		assert.Empty(t, f.registry.Menus(), "menu registrations purged")

		// Standing guild objects survive.
		_, ok = f.dir.RoleByName("管理者")
		assert.True(t, ok)
		_, ok = f.dir.ChannelByName("総合受付")
		assert.True(t, ok)
	})

	t.Run("expired confirmation destroys nothing", func(t *testing.T) {
		f := newFixture(t, 20*time.Millisecond, false)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())

		report, outcome := f.orch.DeleteCohorts(ctx, "admin-1", 5)
		assert.Equal(t, confirm.OutcomeExpired, outcome)
		assert.False(t, report.OK())
		assert.ErrorIs(t, report.Err(), ErrNotConfirmed)

		_, ok := f.dir.RoleByName("5期生")
		assert.True(t, ok, "roles survive an expired confirmation")
		assert.NotEmpty(t, f.registry.Menus())
	})

	t.Run("nothing to delete is reported without a prompt", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()

		report, outcome := f.orch.DeleteCohorts(ctx, "admin-1", 5)
		assert.Equal(t, confirm.OutcomePending, outcome)
		assert.ErrorIs(t, report.Err(), ErrNothingFound)
	})

	t.Run("registry bookkeeping failure does not skew the deletion count", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())

		// Make the snapshot rename fail by putting a directory where the
		// store file lives. Guild objects still delete fine.
		require.NoError(t, os.Remove(f.storePath))
		require.NoError(t, os.Mkdir(f.storePath, 0o755))

		report, outcome := f.orch.DeleteCohorts(ctx, "admin-1", 5)
		require.Equal(t, confirm.OutcomeConfirmed, outcome)

		// 2 menu messages, 5 channels, 2 categories, 4 roles.
		stage := stageByName(t, report, "削除実行")
		assert.Contains(t, stage.Detail, "13 件を削除しました")
		var purgeNoted bool
		for _, d := range stage.Detail {
			if strings.Contains(d, "リアクションロール登録の削除") {
				purgeNoted = true
			}
		}
		assert.True(t, purgeNoted, "purge failure surfaced to the operator: %+v", stage.Detail)
	})

	t.Run("failed objects are excluded from the deletion count", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())
		f.dir.FailWith("delete_role", errors.New("missing permission"))

		report, outcome := f.orch.DeleteCohorts(ctx, "admin-1", 5)
		require.Equal(t, confirm.OutcomeConfirmed, outcome)

		// All 4 roles fail; the other 9 objects delete.
		stage := stageByName(t, report, "削除実行")
		assert.Contains(t, stage.Detail, "9 件を削除しました")
	})

	t.Run("multiple cohorts are deleted in one confirmation", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()
		require.True(t, f.orch.CreateCohort(ctx, 5, 1).OK())
		require.True(t, f.orch.CreateCohort(ctx, 6, 1).OK())

		report, outcome := f.orch.DeleteCohorts(ctx, "admin-1", 5, 6)
		require.Equal(t, confirm.OutcomeConfirmed, outcome)
		require.True(t, report.OK(), "report: %+v", report)

		for _, name := range []string{"5期生", "6期生", "5-1生徒", "6-1生徒"} {
			_, ok := f.dir.RoleByName(name)
			assert.False(t, ok, name)
		}
	})
}

func TestEventLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create, grant, revoke, delete", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()

		report := f.orch.CreateEvent(ctx, "文化祭")
		require.True(t, report.OK(), "report: %+v", report)
		_, ok := f.dir.RoleByName("🎯 文化祭")
		require.True(t, ok)

		f.dir.SeedMember("user-1", "tanaka")
		require.NoError(t, f.orch.GrantEventRole(ctx, "文化祭", "user-1"))
		assert.Contains(t, f.dir.MemberRoleNames("user-1"), "🎯 文化祭")

		require.NoError(t, f.orch.RevokeEventRole(ctx, "文化祭", "user-1"))
		assert.NotContains(t, f.dir.MemberRoleNames("user-1"), "🎯 文化祭")

		delReport, outcome := f.orch.DeleteEvent(ctx, "admin-1", "文化祭")
		require.Equal(t, confirm.OutcomeConfirmed, outcome)
		require.True(t, delReport.OK(), "report: %+v", delReport)
		_, ok = f.dir.RoleByName("🎯 文化祭")
		assert.False(t, ok)
		_, ok = f.dir.ChannelByName("ログ-文化祭")
		assert.False(t, ok)
	})

	t.Run("granting to a member who already holds the role fails", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()
		require.True(t, f.orch.CreateEvent(ctx, "文化祭").OK())

		role, ok := f.dir.RoleByName("🎯 文化祭")
		require.True(t, ok)
		f.dir.SeedMember("user-1", "tanaka", role.ID)

		err := f.orch.GrantEventRole(ctx, "文化祭", "user-1")
		assert.ErrorIs(t, err, ErrAlreadyHolding)
	})

	t.Run("revoking from a member who does not hold the role fails", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		f.seedGuild()
		require.True(t, f.orch.CreateEvent(ctx, "文化祭").OK())
		f.dir.SeedMember("user-1", "tanaka")

		err := f.orch.RevokeEventRole(ctx, "文化祭", "user-1")
		assert.ErrorIs(t, err, ErrNotHolding)
		assert.NotContains(t, f.dir.MemberRoleNames("user-1"), "🎯 文化祭")
	})

	t.Run("deleting an unknown event finds nothing", func(t *testing.T) {
		f := newFixture(t, time.Second, true)
		report, outcome := f.orch.DeleteEvent(ctx, "admin-1", "不明")
		assert.Equal(t, confirm.OutcomePending, outcome)
		assert.ErrorIs(t, report.Err(), ErrNothingFound)
	})
}
