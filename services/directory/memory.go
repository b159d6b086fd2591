// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Directory used by tests and local dry runs.
// It models one guild: roles, categories, channels, messages with
// reactions, and members. Failures can be injected per operation to
// exercise partial-failure paths.
//
// All methods are safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	nextID int

	roles      map[string]Role
	categories map[string]memCategory
	channels   map[string]memChannel
	messages   map[string]*memMessage
	// channelLog holds message ids per channel in posting order.
	channelLog map[string][]string
	members    map[string]*Member

	failures map[string]error
}

type memCategory struct {
	Category
	Overwrites []Overwrite
}

type memChannel struct {
	Channel
	Overwrites []Overwrite
}

type memMessage struct {
	Message
	// Reactions holds the emoji attached by the bot, in attach order.
	Reactions []string
}

var _ Directory = (*Memory)(nil)

// NewMemory returns an empty guild.
func NewMemory() *Memory {
	return &Memory{
		roles:      make(map[string]Role),
		categories: make(map[string]memCategory),
		channels:   make(map[string]memChannel),
		messages:   make(map[string]*memMessage),
		channelLog: make(map[string][]string),
		members:    make(map[string]*Member),
		failures:   make(map[string]error),
	}
}

// FailWith makes every subsequent call of the named operation return
// err until cleared with FailWith(op, nil).
func (m *Memory) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

func (m *Memory) fail(op, name string) error {
	if err := m.failures[op]; err != nil {
		return &RemoteError{Op: op, Name: name, Err: err}
	}
	return nil
}

func (m *Memory) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// =============================================================================
// Roles
// =============================================================================

func (m *Memory) Roles(ctx context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_roles", ""); err != nil {
		return nil, err
	}
	roles := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (m *Memory) CreateRole(ctx context.Context, p RoleCreate) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create_role", p.Name); err != nil {
		return Role{}, err
	}
	r := Role{ID: m.id("role"), Name: p.Name, Color: p.Color, Hoist: p.Hoist}
	m.roles[r.ID] = r
	return r, nil
}

func (m *Memory) DeleteRole(ctx context.Context, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_role", roleID); err != nil {
		return err
	}
	if _, ok := m.roles[roleID]; !ok {
		return fmt.Errorf("delete_role %q: %w", roleID, ErrNotFound)
	}
	delete(m.roles, roleID)
	for _, member := range m.members {
		member.RoleIDs = removeString(member.RoleIDs, roleID)
	}
	return nil
}

// =============================================================================
// Categories
// =============================================================================

func (m *Memory) Categories(ctx context.Context) ([]Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_categories", ""); err != nil {
		return nil, err
	}
	categories := make([]Category, 0, len(m.categories))
	for _, c := range m.categories {
		categories = append(categories, c.Category)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

func (m *Memory) CreateCategory(ctx context.Context, p CategoryCreate) (Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create_category", p.Name); err != nil {
		return Category{}, err
	}
	c := Category{ID: m.id("category"), Name: p.Name}
	m.categories[c.ID] = memCategory{Category: c, Overwrites: p.Overwrites}
	return c, nil
}

func (m *Memory) DeleteCategory(ctx context.Context, categoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_category", categoryID); err != nil {
		return err
	}
	if _, ok := m.categories[categoryID]; !ok {
		return fmt.Errorf("delete_category %q: %w", categoryID, ErrNotFound)
	}
	delete(m.categories, categoryID)
	return nil
}

// =============================================================================
// Channels
// =============================================================================

func (m *Memory) Channels(ctx context.Context) ([]Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_channels", ""); err != nil {
		return nil, err
	}
	channels := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		channels = append(channels, ch.Channel)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].ID < channels[j].ID })
	return channels, nil
}

func (m *Memory) CreateChannel(ctx context.Context, p ChannelCreate) (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("create_channel", p.Name); err != nil {
		return Channel{}, err
	}
	kind := p.Kind
	if kind == "" {
		kind = ChannelText
	}
	ch := Channel{ID: m.id("channel"), Name: p.Name, ParentID: p.ParentID, Kind: kind}
	m.channels[ch.ID] = memChannel{Channel: ch, Overwrites: p.Overwrites}
	return ch, nil
}

func (m *Memory) RenameChannel(ctx context.Context, channelID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("rename_channel", name); err != nil {
		return err
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return fmt.Errorf("rename_channel %q: %w", channelID, ErrNotFound)
	}
	ch.Name = name
	m.channels[channelID] = ch
	return nil
}

func (m *Memory) DeleteChannel(ctx context.Context, channelID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_channel", channelID); err != nil {
		return err
	}
	if _, ok := m.channels[channelID]; !ok {
		return fmt.Errorf("delete_channel %q: %w", channelID, ErrNotFound)
	}
	delete(m.channels, channelID)
	for _, msgID := range m.channelLog[channelID] {
		delete(m.messages, msgID)
	}
	delete(m.channelLog, channelID)
	return nil
}

// =============================================================================
// Messages
// =============================================================================

func (m *Memory) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("send_message", channelID); err != nil {
		return Message{}, err
	}
	if _, ok := m.channels[channelID]; !ok {
		return Message{}, fmt.Errorf("send_message %q: %w", channelID, ErrNotFound)
	}
	msg := Message{ID: m.id("message"), ChannelID: channelID, Content: content}
	m.messages[msg.ID] = &memMessage{Message: msg}
	m.channelLog[channelID] = append(m.channelLog[channelID], msg.ID)
	return msg, nil
}

func (m *Memory) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_messages", channelID); err != nil {
		return nil, err
	}
	log := m.channelLog[channelID]
	var out []Message
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[log[i]].Message)
	}
	return out, nil
}

func (m *Memory) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("delete_message", messageID); err != nil {
		return err
	}
	if _, ok := m.messages[messageID]; !ok {
		return fmt.Errorf("delete_message %q: %w", messageID, ErrNotFound)
	}
	delete(m.messages, messageID)
	m.channelLog[channelID] = removeString(m.channelLog[channelID], messageID)
	return nil
}

func (m *Memory) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("add_reaction", emoji); err != nil {
		return err
	}
	msg, ok := m.messages[messageID]
	if !ok {
		return fmt.Errorf("add_reaction %q: %w", messageID, ErrNotFound)
	}
	msg.Reactions = append(msg.Reactions, emoji)
	return nil
}

// =============================================================================
// Members
// =============================================================================

func (m *Memory) Members(ctx context.Context) ([]Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("list_members", ""); err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(m.members))
	for _, member := range m.members {
		members = append(members, cloneMember(member))
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members, nil
}

func (m *Memory) Member(ctx context.Context, userID string) (Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("get_member", userID); err != nil {
		return Member{}, err
	}
	member, ok := m.members[userID]
	if !ok {
		return Member{}, fmt.Errorf("get_member %q: %w", userID, ErrNotFound)
	}
	return cloneMember(member), nil
}

func (m *Memory) GrantRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("grant_role", roleID); err != nil {
		return err
	}
	member, ok := m.members[userID]
	if !ok {
		return fmt.Errorf("grant_role member %q: %w", userID, ErrNotFound)
	}
	if _, ok := m.roles[roleID]; !ok {
		return fmt.Errorf("grant_role %q: %w", roleID, ErrNotFound)
	}
	for _, id := range member.RoleIDs {
		if id == roleID {
			return nil
		}
	}
	member.RoleIDs = append(member.RoleIDs, roleID)
	return nil
}

func (m *Memory) RevokeRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("revoke_role", roleID); err != nil {
		return err
	}
	member, ok := m.members[userID]
	if !ok {
		return fmt.Errorf("revoke_role member %q: %w", userID, ErrNotFound)
	}
	member.RoleIDs = removeString(member.RoleIDs, roleID)
	return nil
}

// =============================================================================
// Seeding and inspection helpers for tests
// =============================================================================

// SeedRole creates a role directly, bypassing failure injection.
func (m *Memory) SeedRole(name string) Role {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := Role{ID: m.id("role"), Name: name}
	m.roles[r.ID] = r
	return r
}

// SeedCategory creates a category directly.
func (m *Memory) SeedCategory(name string) Category {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := Category{ID: m.id("category"), Name: name}
	m.categories[c.ID] = memCategory{Category: c}
	return c
}

// SeedChannel creates a text channel directly.
func (m *Memory) SeedChannel(name, parentID string) Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := Channel{ID: m.id("channel"), Name: name, ParentID: parentID, Kind: ChannelText}
	m.channels[ch.ID] = memChannel{Channel: ch}
	return ch
}

// SeedMember adds a member holding the given role ids.
func (m *Memory) SeedMember(id, name string, roleIDs ...string) Member {
	m.mu.Lock()
	defer m.mu.Unlock()
	member := &Member{ID: id, Name: name, RoleIDs: append([]string(nil), roleIDs...)}
	m.members[id] = member
	return cloneMember(member)
}

// RoleByName returns the first role with the given name.
func (m *Memory) RoleByName(name string) (Role, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.roles))
	for id := range m.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if m.roles[id].Name == name {
			return m.roles[id], true
		}
	}
	return Role{}, false
}

// ChannelByName returns the first channel whose name contains substr.
func (m *Memory) ChannelByName(substr string) (Channel, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if strings.Contains(m.channels[id].Name, substr) {
			return m.channels[id].Channel, true
		}
	}
	return Channel{}, false
}

// ChannelOverwrites returns the overwrites a channel was created with.
func (m *Memory) ChannelOverwrites(channelID string) []Overwrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels[channelID].Overwrites
}

// CategoryOverwrites returns the overwrites a category was created with.
func (m *Memory) CategoryOverwrites(categoryID string) []Overwrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.categories[categoryID].Overwrites
}

// Reactions returns the emoji attached to a message, in attach order.
func (m *Memory) Reactions(messageID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[messageID]; ok {
		return append([]string(nil), msg.Reactions...)
	}
	return nil
}

// MemberRoleNames returns the names of the roles a member holds.
func (m *Memory) MemberRoleNames(userID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[userID]
	if !ok {
		return nil
	}
	var names []string
	for _, id := range member.RoleIDs {
		if r, ok := m.roles[id]; ok {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}

func cloneMember(m *Member) Member {
	return Member{ID: m.ID, Name: m.Name, RoleIDs: append([]string(nil), m.RoleIDs...)}
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
