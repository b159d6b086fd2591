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
	"fmt"
	"strings"

	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
)

// DeletionPlan enumerates every guild object a deletion will destroy.
// It is discovered from the live directory immediately before the
// confirmation prompt so the operator confirms exactly what exists.
type DeletionPlan struct {
	Cohorts    []naming.Cohort
	Roles      []directory.Role
	Categories []directory.Category
	Channels   []directory.Channel
	// Messages are the registered reaction-menu messages found in the
	// menu channels.
	Messages []directory.Message
}

// Empty reports whether discovery found nothing to delete.
func (p *DeletionPlan) Empty() bool {
	return len(p.Roles) == 0 && len(p.Categories) == 0 && len(p.Channels) == 0 && len(p.Messages) == 0
}

// Lines renders the plan for the confirmation prompt, one object per
// line.
func (p *DeletionPlan) Lines() []string {
	var lines []string
	for _, r := range p.Roles {
		lines = append(lines, "ロール: "+r.Name)
	}
	for _, c := range p.Categories {
		lines = append(lines, "カテゴリ: "+c.Name)
	}
	for _, ch := range p.Channels {
		lines = append(lines, "チャンネル: "+ch.Name)
	}
	for range p.Messages {
		lines = append(lines, "リアクションロールメッセージ 1件")
	}
	return lines
}

// DiscoverCohorts builds the deletion plan for the given cohorts from
// the live directory: the cohort and class roles that resolve, the
// categories in either emoji form, every channel named for the cohort,
// and the reaction-menu messages found in the menu channels.
func (o *Orchestrator) DiscoverCohorts(ctx context.Context, cohorts ...naming.Cohort) (*DeletionPlan, error) {
	plan := &DeletionPlan{Cohorts: cohorts}

	for _, c := range cohorts {
		names := []string{c.StudentRole(), c.StaffRole()}
		for i := 1; i <= o.cfg.ClassProbe; i++ {
			names = append(names, c.ClassStudentRole(i), c.ClassStaffRole(i))
		}
		for _, name := range names {
			role, err := o.res.Role(ctx, name)
			if err != nil {
				if errors.Is(err, directory.ErrNotFound) {
					continue
				}
				return nil, err
			}
			plan.Roles = append(plan.Roles, role)
		}

		for _, name := range []string{c.StaffCategory(), c.StudentCategory()} {
			cat, err := o.res.Category(ctx, name)
			if err != nil {
				if errors.Is(err, directory.ErrNotFound) {
					continue
				}
				return nil, err
			}
			plan.Categories = append(plan.Categories, cat)
		}
	}

	channels, err := o.dir.Channels(ctx)
	if err != nil {
		return nil, err
	}
	for _, ch := range channels {
		for _, c := range cohorts {
			if belongsToCohort(ch.Name, c) {
				plan.Channels = append(plan.Channels, ch)
				break
			}
		}
	}

	messages, err := o.discoverMenuMessages(ctx, cohorts)
	if err != nil {
		return nil, err
	}
	plan.Messages = messages
	return plan, nil
}

// discoverMenuMessages scans the two menu channels' recent history for
// messages mentioning any of the cohorts' labels.
func (o *Orchestrator) discoverMenuMessages(ctx context.Context, cohorts []naming.Cohort) ([]directory.Message, error) {
	var out []directory.Message
	for _, substr := range []string{o.cfg.StaffMenuChannel, o.cfg.StudentMenuChannel} {
		channel, err := o.res.ChannelContaining(ctx, substr)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				continue
			}
			return nil, err
		}
		messages, err := o.dir.RecentMessages(ctx, channel.ID, o.cfg.ScanLimit)
		if err != nil {
			return nil, err
		}
		for _, msg := range messages {
			for _, c := range cohorts {
				if containsLabel(msg.Content, c) {
					out = append(out, msg)
					break
				}
			}
		}
	}
	return out, nil
}

func containsLabel(content string, c naming.Cohort) bool {
	return strings.Contains(content, c.Label())
}

// DeleteCohorts destroys every object of the given cohorts after the
// requester confirms the discovered plan. Deletion order is messages,
// channels, categories, roles: visible surfaces disappear first, and
// role deletion (which touches every member) runs only after the
// spaces gated by those roles are gone. Each object is deleted
// best-effort; failures are reported per object and do not stop the
// batch.
func (o *Orchestrator) DeleteCohorts(ctx context.Context, requesterID string, cohorts ...naming.Cohort) (*Report, confirm.Outcome) {
	report := newReport(deleteTitle(cohorts))

	plan, err := o.DiscoverCohorts(ctx, cohorts...)
	if err != nil {
		report.add("削除対象の検索", err)
		return report, confirm.OutcomePending
	}
	if plan.Empty() {
		report.add("削除対象の検索", ErrNothingFound)
		return report, confirm.OutcomePending
	}
	report.add("削除対象の検索", nil, plan.Lines()...)

	pending := o.gate.Propose(requesterID, plan.Lines())
	o.present(ctx, pending)
	outcome := o.gate.Await(ctx, pending)
	if outcome != confirm.OutcomeConfirmed {
		report.add("確認", fmt.Errorf("%s: %w", outcome, ErrNotConfirmed))
		return report, outcome
	}
	report.add("確認", nil)

	_ = o.stage(ctx, "cohort.delete", func(ctx context.Context) error {
		o.executePlan(ctx, report, plan)
		return nil
	})
	return report, outcome
}

func (o *Orchestrator) executePlan(ctx context.Context, report *Report, plan *DeletionPlan) {
	var notes []string
	failed := 0
	objectFailure := func(format string, args ...any) {
		notes = append(notes, fmt.Sprintf(format, args...))
		failed++
	}

	var menuIDs []string
	for _, msg := range plan.Messages {
		menuIDs = append(menuIDs, msg.ID)
		if err := o.dir.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
			objectFailure("メッセージ %s: %v", msg.ID, err)
		}
	}
	if len(menuIDs) > 0 {
		if _, err := o.registry.Purge(menuIDs...); err != nil {
			// Registry bookkeeping, not a guild object: noted for the
			// operator but excluded from the deletion tally.
			notes = append(notes, fmt.Sprintf("リアクションロール登録の削除: %v", err))
		}
	}
	for _, ch := range plan.Channels {
		if err := o.dir.DeleteChannel(ctx, ch.ID); err != nil {
			objectFailure("チャンネル %s: %v", ch.Name, err)
		}
	}
	for _, cat := range plan.Categories {
		if err := o.dir.DeleteCategory(ctx, cat.ID); err != nil {
			objectFailure("カテゴリ %s: %v", cat.Name, err)
		}
	}
	for _, r := range plan.Roles {
		if err := o.dir.DeleteRole(ctx, r.ID); err != nil {
			objectFailure("ロール %s: %v", r.Name, err)
		}
	}

	total := len(plan.Messages) + len(plan.Channels) + len(plan.Categories) + len(plan.Roles)
	notes = append(notes, fmt.Sprintf("%d 件を削除しました", total-failed))
	report.add("削除実行", nil, notes...)
	o.log.Info("cohort deletion executed", "deleted", total-failed, "failures", failed)
}

func deleteTitle(cohorts []naming.Cohort) string {
	if len(cohorts) == 1 {
		return fmt.Sprintf("%s 削除", cohorts[0].Label())
	}
	return fmt.Sprintf("%d 期分の削除", len(cohorts))
}
