// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
	"github.com/kinokolab/semesterd/services/reactionroles"
)

// CreateCohort provisions a full cohort: roles, categories, channels,
// then reaction menus, halting at the first failed stage. Because each
// stage re-checks the live directory, a failed run is resumed by
// re-running the individual stage commands after fixing the cause.
func (o *Orchestrator) CreateCohort(ctx context.Context, c naming.Cohort, classCount int) *Report {
	report := newReport(fmt.Sprintf("%s 作成", c.Label()))

	stages := []struct {
		span string
		run  func(context.Context, *Report) error
	}{
		{"cohort.create.roles", func(ctx context.Context, r *Report) error { return o.rolesStage(ctx, r, c, classCount) }},
		{"cohort.create.categories", func(ctx context.Context, r *Report) error { return o.categoriesStage(ctx, r, c) }},
		{"cohort.create.channels", func(ctx context.Context, r *Report) error { return o.channelsStage(ctx, r, c, classCount) }},
		{"cohort.create.menus", func(ctx context.Context, r *Report) error { return o.menusStage(ctx, r, c, classCount) }},
	}
	for _, s := range stages {
		err := o.stage(ctx, s.span, func(ctx context.Context) error {
			return s.run(ctx, report)
		})
		if err != nil {
			o.log.Error("cohort creation halted", "cohort", c.Label(), "stage", s.span, "error", err)
			return report
		}
	}
	o.log.Info("cohort created", "cohort", c.Label(), "classes", classCount)
	return report
}

// CreateRoles runs only the role stage.
func (o *Orchestrator) CreateRoles(ctx context.Context, c naming.Cohort, classCount int) *Report {
	report := newReport(fmt.Sprintf("%s ロール作成", c.Label()))
	_ = o.stage(ctx, "cohort.roles", func(ctx context.Context) error {
		return o.rolesStage(ctx, report, c, classCount)
	})
	return report
}

// CreateBaseRoles provisions the guild-wide staff and alumni roles.
func (o *Orchestrator) CreateBaseRoles(ctx context.Context) *Report {
	report := newReport("基本ロール作成")
	_ = o.stage(ctx, "guild.base_roles", func(ctx context.Context) error {
		roles, err := o.engine.CreateBaseRoles(ctx, o.cfg.StaffRole, o.cfg.OBRole)
		report.add("ロール作成", err, roleNames(roles)...)
		return err
	})
	return report
}

// CreateCategories runs only the category stage.
func (o *Orchestrator) CreateCategories(ctx context.Context, c naming.Cohort) *Report {
	report := newReport(fmt.Sprintf("%s カテゴリ作成", c.Label()))
	_ = o.stage(ctx, "cohort.categories", func(ctx context.Context) error {
		return o.categoriesStage(ctx, report, c)
	})
	return report
}

// CreateChannels runs only the channel stage.
func (o *Orchestrator) CreateChannels(ctx context.Context, c naming.Cohort, classCount int) *Report {
	report := newReport(fmt.Sprintf("%s チャンネル作成", c.Label()))
	_ = o.stage(ctx, "cohort.channels", func(ctx context.Context) error {
		return o.channelsStage(ctx, report, c, classCount)
	})
	return report
}

// CreateReactionMenus runs only the reaction-menu stage.
func (o *Orchestrator) CreateReactionMenus(ctx context.Context, c naming.Cohort, classCount int) *Report {
	report := newReport(fmt.Sprintf("%s リアクションロール作成", c.Label()))
	_ = o.stage(ctx, "cohort.menus", func(ctx context.Context) error {
		return o.menusStage(ctx, report, c, classCount)
	})
	return report
}

func (o *Orchestrator) rolesStage(ctx context.Context, report *Report, c naming.Cohort, classCount int) error {
	roles, err := o.engine.CreateCohortRoles(ctx, c, classCount)
	report.add("ロール作成", err, roleNames(roles)...)
	return err
}

func (o *Orchestrator) categoriesStage(ctx context.Context, report *Report, c naming.Cohort) error {
	cats, err := o.engine.CreateCohortCategories(ctx, c)
	names := make([]string, 0, len(cats))
	for _, cat := range cats {
		names = append(names, cat.Name)
	}
	report.add("カテゴリ作成", err, names...)
	return err
}

func (o *Orchestrator) channelsStage(ctx context.Context, report *Report, c naming.Cohort, classCount int) error {
	channels, err := o.engine.CreateCohortChannels(ctx, c, classCount)
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name)
	}
	report.add("チャンネル作成", err, names...)
	return err
}

// menusStage posts the staff and student reaction menus. A class role
// that does not resolve is skipped with a note rather than failing the
// stage, so a cohort provisioned with fewer classes than usual still
// gets its menus.
func (o *Orchestrator) menusStage(ctx context.Context, report *Report, c naming.Cohort, classCount int) error {
	var notes []string

	staffBindings, staffNotes := o.classBindings(ctx, c, classCount, c.ClassStaffRole)
	notes = append(notes, staffNotes...)
	if len(staffBindings) > 0 {
		staffMention := ""
		if role, err := o.res.Role(ctx, o.cfg.StaffRole); err == nil {
			staffMention = role.ID
		}
		channel, err := o.res.ChannelContaining(ctx, o.cfg.StaffMenuChannel)
		if err != nil {
			report.add("リアクションロール作成", err, notes...)
			return err
		}
		content := reactionroles.RenderStaffMenu(int(c), staffMention, staffBindings)
		menu, err := o.registry.CreateMenu(ctx, channel.ID, int(c), content, staffBindings)
		if err != nil {
			report.add("リアクションロール作成", err, notes...)
			return err
		}
		notes = append(notes, fmt.Sprintf("職員メニュー (%s)", menu.MessageID))
	}

	studentBindings, studentNotes := o.classBindings(ctx, c, classCount, c.ClassStudentRole)
	notes = append(notes, studentNotes...)
	if len(studentBindings) > 0 {
		unassignedMention := ""
		if role, err := o.res.Role(ctx, o.cfg.UnassignedRole); err == nil {
			unassignedMention = role.ID
		}
		channel, err := o.res.ChannelContaining(ctx, o.cfg.StudentMenuChannel)
		if err != nil {
			report.add("リアクションロール作成", err, notes...)
			return err
		}
		content := reactionroles.RenderClassMenu(int(c), unassignedMention, studentBindings)
		menu, err := o.registry.CreateMenu(ctx, channel.ID, int(c), content, studentBindings)
		if err != nil {
			report.add("リアクションロール作成", err, notes...)
			return err
		}
		notes = append(notes, fmt.Sprintf("生徒メニュー (%s)", menu.MessageID))
	}

	report.add("リアクションロール作成", nil, notes...)
	return nil
}

// classBindings resolves the per-class roles 1..classCount into menu
// bindings with keycap trigger emoji. Missing roles are skipped and
// noted.
func (o *Orchestrator) classBindings(ctx context.Context, c naming.Cohort, classCount int, roleName func(int) string) ([]reactionroles.Binding, []string) {
	var bindings []reactionroles.Binding
	var notes []string
	for i := 1; i <= classCount; i++ {
		name := roleName(i)
		role, err := o.res.Role(ctx, name)
		if err != nil {
			notes = append(notes, fmt.Sprintf("%s はスキップしました（ロールが見つかりません）", name))
			continue
		}
		bindings = append(bindings, reactionroles.Binding{
			RoleID:   role.ID,
			RoleName: role.Name,
			Emoji:    reactionroles.KeycapEmoji(i),
			Kind:     reactionroles.ClassifyRole(role.Name),
		})
	}
	return bindings, notes
}

// RetireCohort marks a cohort as graduated: every member holding the
// cohort student role is granted the alumni role, and every active
// channel belonging to the cohort has its status glyph swapped.
//
// Channel membership is decided by name substring ("5期" or "5-"), so
// single-digit cohorts can match a later cohort's names ("1期" occurs
// in "11期連絡"). The guild restarts numbering long before that
// collides; the match is kept simple on purpose.
//
// When retiring cohort 1 the workflow aborts if any of its members
/// already holds the alumni role: for the first intake that means the
// grant already ran, and re-running it would hide an operator mistake.
func (o *Orchestrator) RetireCohort(ctx context.Context, c naming.Cohort) *Report {
	report := newReport(fmt.Sprintf("%s 引退処理", c.Label()))

	err := o.stage(ctx, "cohort.retire.roles", func(ctx context.Context) error {
		return o.retireRolesStage(ctx, report, c)
	})
	if err != nil {
		return report
	}
	_ = o.stage(ctx, "cohort.retire.channels", func(ctx context.Context) error {
		return o.retireChannelsStage(ctx, report, c)
	})
	return report
}

func (o *Orchestrator) retireRolesStage(ctx context.Context, report *Report, c naming.Cohort) error {
	obRole, err := o.res.Role(ctx, o.cfg.OBRole)
	if err != nil {
		report.add("OBロール付与", fmt.Errorf("resolving %q: %w", o.cfg.OBRole, err))
		return err
	}
	studentRole, err := o.res.Role(ctx, c.StudentRole())
	if err != nil {
		report.add("OBロール付与", fmt.Errorf("resolving %q: %w", c.StudentRole(), err))
		return err
	}
	members, err := o.dir.Members(ctx)
	if err != nil {
		report.add("OBロール付与", err)
		return err
	}

	var cohortMembers []directory.Member
	alreadyOB := 0
	for _, m := range members {
		if !hasRole(m, studentRole.ID) {
			continue
		}
		cohortMembers = append(cohortMembers, m)
		if hasRole(m, obRole.ID) {
			alreadyOB++
		}
	}

	if c == 1 && alreadyOB > 0 {
		err := fmt.Errorf("%d members of %s already hold %s: %w", alreadyOB, c.Label(), o.cfg.OBRole, ErrAlreadyRetired)
		report.add("OBロール付与", err)
		return err
	}

	var notes []string
	granted := 0
	for _, m := range cohortMembers {
		if hasRole(m, obRole.ID) {
			continue
		}
		if err := o.dir.GrantRole(ctx, m.ID, obRole.ID); err != nil {
			notes = append(notes, fmt.Sprintf("%s: %v", m.Name, err))
			continue
		}
		granted++
	}
	notes = append(notes, fmt.Sprintf("%d 名に %s を付与しました", granted, o.cfg.OBRole))
	report.add("OBロール付与", nil, notes...)
	return nil
}

func (o *Orchestrator) retireChannelsStage(ctx context.Context, report *Report, c naming.Cohort) error {
	channels, err := o.dir.Channels(ctx)
	if err != nil {
		report.add("チャンネル名変更", err)
		return err
	}

	var notes []string
	renamed := 0
	for _, ch := range channels {
		if !strings.HasPrefix(ch.Name, naming.ActiveGlyph) || !belongsToCohort(ch.Name, c) {
			continue
		}
		retired := naming.Retire(ch.Name)
		if err := o.dir.RenameChannel(ctx, ch.ID, retired); err != nil {
			// Per-channel failures are isolated so one stuck rename
			// does not strand the rest of the cohort.
			notes = append(notes, fmt.Sprintf("%s: %v", ch.Name, err))
			continue
		}
		renamed++
		notes = append(notes, retired)
	}
	notes = append(notes, fmt.Sprintf("%d チャンネルの名前を変更しました", renamed))
	report.add("チャンネル名変更", nil, notes...)
	return nil
}

// belongsToCohort reports whether an object name references the cohort
// via the "{n}期" or "{n}-" convention.
func belongsToCohort(name string, c naming.Cohort) bool {
	return strings.Contains(name, c.Label()) || strings.Contains(name, fmt.Sprintf("%d-", c))
}

func hasRole(m directory.Member, roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func roleNames(roles []directory.Role) []string {
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names
}
