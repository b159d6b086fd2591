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

	"github.com/kinokolab/semesterd/services/confirm"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
)

// CreateEvent provisions an ad-hoc event space: role, category, log
// forum, and role-assignment channel.
func (o *Orchestrator) CreateEvent(ctx context.Context, event string) *Report {
	report := newReport(fmt.Sprintf("イベント %s 作成", event))
	_ = o.stage(ctx, "event.create", func(ctx context.Context) error {
		space, err := o.engine.CreateEventSpace(ctx, event)
		var notes []string
		if space != nil {
			notes = append(notes, space.Role.Name, space.Category.Name)
			for _, ch := range space.Channels {
				notes = append(notes, ch.Name)
			}
		}
		report.add("イベント作成", err, notes...)
		return err
	})
	return report
}

// GrantEventRole grants an event's role to a member. A member who
// already holds the role gets ErrAlreadyHolding; silently re-granting
// would hide an operator targeting the wrong member.
func (o *Orchestrator) GrantEventRole(ctx context.Context, event, userID string) error {
	role, err := o.res.Role(ctx, naming.EventRole(event))
	if err != nil {
		return fmt.Errorf("resolving event role: %w", err)
	}
	member, err := o.dir.Member(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolving member %s: %w", userID, err)
	}
	if hasRole(member, role.ID) {
		return fmt.Errorf("%s holds %q: %w", member.Name, role.Name, ErrAlreadyHolding)
	}
	if err := o.dir.GrantRole(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("granting %q: %w", role.Name, err)
	}
	o.log.Info("event role granted", "event", event, "user", userID)
	return nil
}

// RevokeEventRole removes an event's role from a member. A member who
// does not hold the role gets ErrNotHolding.
func (o *Orchestrator) RevokeEventRole(ctx context.Context, event, userID string) error {
	role, err := o.res.Role(ctx, naming.EventRole(event))
	if err != nil {
		return fmt.Errorf("resolving event role: %w", err)
	}
	member, err := o.dir.Member(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolving member %s: %w", userID, err)
	}
	if !hasRole(member, role.ID) {
		return fmt.Errorf("%s does not hold %q: %w", member.Name, role.Name, ErrNotHolding)
	}
	if err := o.dir.RevokeRole(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("revoking %q: %w", role.Name, err)
	}
	o.log.Info("event role revoked", "event", event, "user", userID)
	return nil
}

// DeleteEvent destroys an event space after the requester confirms
// the discovered plan: channels first, then the category, then the
// role.
func (o *Orchestrator) DeleteEvent(ctx context.Context, requesterID, event string) (*Report, confirm.Outcome) {
	report := newReport(fmt.Sprintf("イベント %s 削除", event))

	role, roleErr := o.res.Role(ctx, naming.EventRole(event))
	category, catErr := o.res.Category(ctx, naming.EventCategory(event))
	if errors.Is(roleErr, directory.ErrNotFound) && errors.Is(catErr, directory.ErrNotFound) {
		report.add("削除対象の検索", ErrNothingFound)
		return report, confirm.OutcomePending
	}
	for _, err := range []error{roleErr, catErr} {
		if err != nil && !errors.Is(err, directory.ErrNotFound) {
			report.add("削除対象の検索", err)
			return report, confirm.OutcomePending
		}
	}

	var channels []directory.Channel
	if catErr == nil {
		all, err := o.dir.Channels(ctx)
		if err != nil {
			report.add("削除対象の検索", err)
			return report, confirm.OutcomePending
		}
		for _, ch := range all {
			if ch.ParentID == category.ID {
				channels = append(channels, ch)
			}
		}
	}

	var lines []string
	if roleErr == nil {
		lines = append(lines, "ロール: "+role.Name)
	}
	if catErr == nil {
		lines = append(lines, "カテゴリ: "+category.Name)
	}
	for _, ch := range channels {
		lines = append(lines, "チャンネル: "+ch.Name)
	}
	report.add("削除対象の検索", nil, lines...)

	pending := o.gate.Propose(requesterID, lines)
	o.present(ctx, pending)
	outcome := o.gate.Await(ctx, pending)
	if outcome != confirm.OutcomeConfirmed {
		report.add("確認", fmt.Errorf("%s: %w", outcome, ErrNotConfirmed))
		return report, outcome
	}
	report.add("確認", nil)

	var notes []string
	for _, ch := range channels {
		if err := o.dir.DeleteChannel(ctx, ch.ID); err != nil {
			notes = append(notes, fmt.Sprintf("チャンネル %s: %v", ch.Name, err))
		}
	}
	if catErr == nil {
		if err := o.dir.DeleteCategory(ctx, category.ID); err != nil {
			notes = append(notes, fmt.Sprintf("カテゴリ %s: %v", category.Name, err))
		}
	}
	if roleErr == nil {
		if err := o.dir.DeleteRole(ctx, role.ID); err != nil {
			notes = append(notes, fmt.Sprintf("ロール %s: %v", role.Name, err))
		}
	}
	notes = append(notes, fmt.Sprintf("イベント %s を削除しました", event))
	report.add("削除実行", nil, notes...)
	o.log.Info("event deleted", "event", event)
	return report, outcome
}
