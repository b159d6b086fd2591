// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package reactionroles maintains the durable mapping from live guild
// messages to the roles their reactions grant.
//
// The registry is the one piece of state shared between the operator
// workflows (which create and purge menus) and the asynchronous
// reaction event stream (which grants and revokes roles). The
// in-memory map and the snapshot file are guarded by a single mutex:
// one writer at a time, and remote calls are issued outside the
// critical section so a slow grant never blocks menu registration.
//
// # Durability
//
// Every mutation (menu creation, purge) synchronously rewrites the
// full snapshot before success is reported. A crash after the write
// but before the caller observes success re-registers an existing
// menu on restart, which is harmless; a crash before the write never
// claims success for state that was lost.
package reactionroles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kinokolab/semesterd/pkg/metrics"
	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
)

// Config carries the guild-specific knobs the registry needs.
type Config struct {
	// BotUserID is the bot's own identity. Reaction events from this
	// actor are ignored so attaching the initial reactions never
	// triggers a grant.
	BotUserID string

	// UnassignedRole is the marker role revoked on grant and restored
	// on revoke. Empty disables the behavior.
	UnassignedRole string

	// AuditChannel is a substring of the channel receiving audit
	// notifications. Empty, or no matching channel, skips auditing.
	AuditChannel string
}

// Registry maps message ids to reaction menus and applies role
// grants/revokes for inbound reaction events.
type Registry struct {
	dir directory.Directory
	res *naming.Resolver
	cfg Config
	log *slog.Logger

	mu    sync.Mutex
	store *Store
	menus map[string]*Menu
}

// New builds an empty registry. Call Load to rebuild state from the
// snapshot file.
func New(dir directory.Directory, res *naming.Resolver, store *Store, cfg Config, log *slog.Logger) *Registry {
	return &Registry{
		dir:   dir,
		res:   res,
		cfg:   cfg,
		log:   log,
		store: store,
		menus: map[string]*Menu{},
	}
}

// SetBotUserID records the bot identity once the session is open.
func (r *Registry) SetBotUserID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.BotUserID = id
}

// Load rebuilds the in-memory registry from the snapshot, re-resolving
// every stored role id against the live directory. Bindings whose role
// no longer resolves are dropped; the count of dropped bindings is
// returned and is not an error.
func (r *Registry) Load(ctx context.Context) (int, error) {
	stored, err := r.store.Load()
	if err != nil {
		return 0, err
	}

	live, err := r.dir.Roles(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolving stored roles: %w", err)
	}
	liveIDs := make(map[string]bool, len(live))
	for _, role := range live {
		liveIDs[role.ID] = true
	}

	dropped := 0
	menus := make(map[string]*Menu, len(stored))
	for id, menu := range stored {
		kept := menu.Bindings[:0]
		for _, b := range menu.Bindings {
			if liveIDs[b.RoleID] {
				kept = append(kept, b)
				continue
			}
			dropped++
			r.log.Warn("dropping binding, role no longer resolves",
				"message_id", id, "role", b.RoleName, "role_id", b.RoleID)
		}
		menu.Bindings = kept
		if len(menu.Bindings) > 0 {
			menus[id] = menu
		}
	}

	if dropped > 0 {
		metrics.DroppedBindings.Add(float64(dropped))
	}

	r.mu.Lock()
	r.menus = menus
	r.mu.Unlock()

	r.log.Info("registry loaded", "menus", len(menus), "dropped_bindings", dropped)
	return dropped, nil
}

// CreateMenu posts the rendered menu message, attaches one reaction
// per binding in declaration order, registers the menu, and persists
// the registry before returning. The bindings' emoji must be unique
// within the menu.
func (r *Registry) CreateMenu(ctx context.Context, channelID string, cohort int, content string, bindings []Binding) (*Menu, error) {
	if len(bindings) == 0 {
		return nil, ErrNoBindings
	}
	seen := make(map[string]bool, len(bindings))
	for _, b := range bindings {
		if seen[b.Emoji] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateEmoji, b.Emoji)
		}
		seen[b.Emoji] = true
	}

	msg, err := r.dir.SendMessage(ctx, channelID, content)
	if err != nil {
		return nil, fmt.Errorf("posting menu: %w", err)
	}
	for _, b := range bindings {
		if err := r.dir.AddReaction(ctx, channelID, msg.ID, b.Emoji); err != nil {
			// The message is live but unregistered; surface the
			// failure so the operator removes the stray message.
			return nil, fmt.Errorf("attaching reaction %s: %w", b.Emoji, err)
		}
	}

	menu := &Menu{
		MessageID: msg.ID,
		ChannelID: channelID,
		Cohort:    cohort,
		Bindings:  append([]Binding(nil), bindings...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.menus[menu.MessageID] = menu
	if err := r.store.Save(r.menus); err != nil {
		// Undo the registration: success must not be reported for
		// state that is not durable.
		delete(r.menus, menu.MessageID)
		return nil, err
	}

	r.log.Info("menu registered", "message_id", menu.MessageID, "cohort", cohort, "bindings", len(bindings))
	return menu, nil
}

// Purge removes the menus for the given message ids and persists the
// registry. Unknown ids are ignored. Returns how many were removed.
func (r *Registry) Purge(messageIDs ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, id := range messageIDs {
		if _, ok := r.menus[id]; ok {
			delete(r.menus, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := r.store.Save(r.menus); err != nil {
		return removed, err
	}
	r.log.Info("menus purged", "count", removed)
	return removed, nil
}

// Menus returns a snapshot of the registered menus.
func (r *Registry) Menus() []*Menu {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Menu, 0, len(r.menus))
	for _, m := range r.menus {
		copied := *m
		copied.Bindings = append([]Binding(nil), m.Bindings...)
		out = append(out, &copied)
	}
	return out
}

// lookup resolves (messageID, emoji) to a binding copy.
func (r *Registry) lookup(messageID, emoji string) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	menu, ok := r.menus[messageID]
	if !ok {
		return Binding{}, false
	}
	return menu.binding(emoji)
}

// HandleReactionAdd applies the grant side of a reaction event. The
// bound role is granted first, then (for class bindings) the cohort-wide
// parent role, so an observer never sees the parent granted before the
// primary. Afterwards the unassigned marker role is revoked and an
// audit note is sent.
//
// Events from the bot itself, unrecognized messages, and unrecognized
// emoji are no-ops. A bound role deleted out-of-band is tolerated.
func (r *Registry) HandleReactionAdd(ctx context.Context, ev directory.ReactionEvent) error {
	if ev.ActorID == r.botUserID() {
		return nil
	}
	binding, ok := r.lookup(ev.MessageID, ev.Emoji)
	if !ok {
		return nil
	}

	if err := r.dir.GrantRole(ctx, ev.ActorID, binding.RoleID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			r.log.Warn("bound role no longer resolves, skipping grant",
				"role", binding.RoleName, "message_id", ev.MessageID)
			return nil
		}
		return fmt.Errorf("granting %q: %w", binding.RoleName, err)
	}

	r.propagateParent(ctx, binding, ev.ActorID, true)
	r.applyUnassigned(ctx, ev.ActorID, false)
	r.audit(ctx, ev.ActorID, binding.RoleName, "付与")
	metrics.ReactionGrants.Inc()
	return nil
}

// HandleReactionRemove is the symmetric inverse of HandleReactionAdd:
// revoke the bound role, revoke the propagated parent, restore the
// unassigned marker role.
func (r *Registry) HandleReactionRemove(ctx context.Context, ev directory.ReactionEvent) error {
	if ev.ActorID == r.botUserID() {
		return nil
	}
	binding, ok := r.lookup(ev.MessageID, ev.Emoji)
	if !ok {
		return nil
	}

	if err := r.dir.RevokeRole(ctx, ev.ActorID, binding.RoleID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			r.log.Warn("bound role no longer resolves, skipping revoke",
				"role", binding.RoleName, "message_id", ev.MessageID)
			return nil
		}
		return fmt.Errorf("revoking %q: %w", binding.RoleName, err)
	}

	r.propagateParent(ctx, binding, ev.ActorID, false)
	r.applyUnassigned(ctx, ev.ActorID, true)
	r.audit(ctx, ev.ActorID, binding.RoleName, "削除")
	metrics.ReactionRevokes.Inc()
	return nil
}

func (r *Registry) botUserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg.BotUserID
}

// propagateParent grants or revokes the cohort-wide role derived from
// a class binding. Failures are logged, not fatal: the primary grant
// already happened and must not be rolled back by a propagation miss.
func (r *Registry) propagateParent(ctx context.Context, binding Binding, actorID string, grant bool) {
	if binding.Kind != KindStudentClass && binding.Kind != KindStaffClass {
		return
	}
	parentName, ok := naming.ParentRole(binding.RoleName)
	if !ok {
		return
	}
	parent, err := r.res.Role(ctx, parentName)
	if err != nil {
		r.log.Warn("parent role does not resolve", "parent", parentName, "error", err)
		return
	}
	if grant {
		err = r.dir.GrantRole(ctx, actorID, parent.ID)
	} else {
		err = r.dir.RevokeRole(ctx, actorID, parent.ID)
	}
	if err != nil {
		r.log.Warn("parent role propagation failed", "parent", parentName, "error", err)
	}
}

// applyUnassigned revokes (restore=false) or re-grants (restore=true)
// the unassigned marker role, when configured.
func (r *Registry) applyUnassigned(ctx context.Context, actorID string, restore bool) {
	if r.cfg.UnassignedRole == "" {
		return
	}
	role, err := r.res.Role(ctx, r.cfg.UnassignedRole)
	if err != nil {
		r.log.Warn("unassigned role does not resolve", "role", r.cfg.UnassignedRole, "error", err)
		return
	}
	if restore {
		err = r.dir.GrantRole(ctx, actorID, role.ID)
	} else {
		err = r.dir.RevokeRole(ctx, actorID, role.ID)
	}
	if err != nil {
		r.log.Warn("unassigned role update failed", "error", err)
	}
}

// audit sends a best-effort notification to the audit channel. A
// missing channel is silently skipped.
func (r *Registry) audit(ctx context.Context, actorID, roleName, verb string) {
	if r.cfg.AuditChannel == "" {
		return
	}
	channel, err := r.res.ChannelContaining(ctx, r.cfg.AuditChannel)
	if err != nil {
		return
	}
	name := actorID
	if member, err := r.dir.Member(ctx, actorID); err == nil {
		name = member.Name
	}
	var text string
	if verb == "付与" {
		text = fmt.Sprintf("`%s` に `%s` ロールを付与しました。", name, roleName)
	} else {
		text = fmt.Sprintf("`%s` から `%s` ロールを削除しました。", name, roleName)
	}
	if _, err := r.dir.SendMessage(ctx, channel.ID, text); err != nil {
		r.log.Warn("audit notification failed", "error", err)
	}
}
