// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package directory

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/kinokolab/semesterd/pkg/metrics"
)

// memberPageSize is the Discord API maximum for one GuildMembers page.
const memberPageSize = 1000

// Discord adapts a discordgo session to the Directory contract for a
// single guild.
//
// REST calls are paced by a local rate limiter on top of discordgo's
// own bucket handling, so a large fan-out (channel creation, batch
// deletion) cannot starve the gateway. Calls are not retried: failures
// map to *RemoteError (or ErrNotFound) and surface to the caller.
type Discord struct {
	session *discordgo.Session
	guildID string
	limiter *rate.Limiter
}

var _ Directory = (*Discord)(nil)

// NewDiscord wraps an open session for the given guild.
func NewDiscord(session *discordgo.Session, guildID string) *Discord {
	return &Discord{
		session: session,
		guildID: guildID,
		// 20 req/s with a small burst keeps well inside Discord's
		// global limit while still letting a 9-class fan-out finish
		// in a few seconds.
		limiter: rate.NewLimiter(rate.Limit(20), 5),
	}
}

// wrap maps a discordgo error into the package taxonomy and records
// the call outcome.
func (d *Discord) wrap(op, name string, err error) error {
	if err == nil {
		metrics.ObserveDirectoryCall(op, "ok")
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		metrics.ObserveDirectoryCall(op, "not_found")
		return fmt.Errorf("%s %q: %w", op, name, ErrNotFound)
	}

	metrics.ObserveDirectoryCall(op, "error")
	return &RemoteError{Op: op, Name: name, Err: err}
}

func (d *Discord) wait(ctx context.Context, op string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	return nil
}

func (d *Discord) Roles(ctx context.Context) ([]Role, error) {
	if err := d.wait(ctx, "list_roles"); err != nil {
		return nil, err
	}
	raw, err := d.session.GuildRoles(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, d.wrap("list_roles", "", err)
	}
	metrics.ObserveDirectoryCall("list_roles", "ok")

	roles := make([]Role, 0, len(raw))
	for _, r := range raw {
		roles = append(roles, Role{ID: r.ID, Name: r.Name, Color: r.Color, Hoist: r.Hoist})
	}
	return roles, nil
}

func (d *Discord) CreateRole(ctx context.Context, p RoleCreate) (Role, error) {
	if err := d.wait(ctx, "create_role"); err != nil {
		return Role{}, err
	}
	params := &discordgo.RoleParams{
		Name:  p.Name,
		Color: &p.Color,
		Hoist: &p.Hoist,
	}
	r, err := d.session.GuildRoleCreate(d.guildID, params, discordgo.WithContext(ctx))
	if err != nil {
		return Role{}, d.wrap("create_role", p.Name, err)
	}
	metrics.ObserveDirectoryCall("create_role", "ok")
	return Role{ID: r.ID, Name: r.Name, Color: r.Color, Hoist: r.Hoist}, nil
}

func (d *Discord) DeleteRole(ctx context.Context, roleID string) error {
	if err := d.wait(ctx, "delete_role"); err != nil {
		return err
	}
	return d.wrap("delete_role", roleID,
		d.session.GuildRoleDelete(d.guildID, roleID, discordgo.WithContext(ctx)))
}

func (d *Discord) Categories(ctx context.Context) ([]Category, error) {
	channels, err := d.guildChannels(ctx, "list_categories")
	if err != nil {
		return nil, err
	}
	var categories []Category
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory {
			categories = append(categories, Category{ID: ch.ID, Name: ch.Name})
		}
	}
	return categories, nil
}

func (d *Discord) CreateCategory(ctx context.Context, p CategoryCreate) (Category, error) {
	if err := d.wait(ctx, "create_category"); err != nil {
		return Category{}, err
	}
	data := discordgo.GuildChannelCreateData{
		Name:                 p.Name,
		Type:                 discordgo.ChannelTypeGuildCategory,
		PermissionOverwrites: toDiscordOverwrites(d.guildID, p.Overwrites),
	}
	ch, err := d.session.GuildChannelCreateComplex(d.guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return Category{}, d.wrap("create_category", p.Name, err)
	}
	metrics.ObserveDirectoryCall("create_category", "ok")
	return Category{ID: ch.ID, Name: ch.Name}, nil
}

func (d *Discord) DeleteCategory(ctx context.Context, categoryID string) error {
	if err := d.wait(ctx, "delete_category"); err != nil {
		return err
	}
	_, err := d.session.ChannelDelete(categoryID, discordgo.WithContext(ctx))
	return d.wrap("delete_category", categoryID, err)
}

func (d *Discord) Channels(ctx context.Context) ([]Channel, error) {
	raw, err := d.guildChannels(ctx, "list_channels")
	if err != nil {
		return nil, err
	}
	var channels []Channel
	for _, ch := range raw {
		switch ch.Type {
		case discordgo.ChannelTypeGuildText:
			channels = append(channels, Channel{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID, Kind: ChannelText})
		case discordgo.ChannelTypeGuildForum:
			channels = append(channels, Channel{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID, Kind: ChannelForum})
		}
	}
	return channels, nil
}

func (d *Discord) guildChannels(ctx context.Context, op string) ([]*discordgo.Channel, error) {
	if err := d.wait(ctx, op); err != nil {
		return nil, err
	}
	channels, err := d.session.GuildChannels(d.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, d.wrap(op, "", err)
	}
	metrics.ObserveDirectoryCall(op, "ok")
	return channels, nil
}

func (d *Discord) CreateChannel(ctx context.Context, p ChannelCreate) (Channel, error) {
	if err := d.wait(ctx, "create_channel"); err != nil {
		return Channel{}, err
	}
	kind := discordgo.ChannelTypeGuildText
	if p.Kind == ChannelForum {
		kind = discordgo.ChannelTypeGuildForum
	}
	data := discordgo.GuildChannelCreateData{
		Name:                 p.Name,
		Type:                 kind,
		Topic:                p.Topic,
		ParentID:             p.ParentID,
		PermissionOverwrites: toDiscordOverwrites(d.guildID, p.Overwrites),
	}
	ch, err := d.session.GuildChannelCreateComplex(d.guildID, data, discordgo.WithContext(ctx))
	if err != nil {
		return Channel{}, d.wrap("create_channel", p.Name, err)
	}
	metrics.ObserveDirectoryCall("create_channel", "ok")
	return Channel{ID: ch.ID, Name: ch.Name, ParentID: ch.ParentID, Kind: p.Kind}, nil
}

func (d *Discord) RenameChannel(ctx context.Context, channelID, name string) error {
	if err := d.wait(ctx, "rename_channel"); err != nil {
		return err
	}
	_, err := d.session.ChannelEdit(channelID, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return d.wrap("rename_channel", name, err)
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	if err := d.wait(ctx, "delete_channel"); err != nil {
		return err
	}
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return d.wrap("delete_channel", channelID, err)
}

func (d *Discord) SendMessage(ctx context.Context, channelID, content string) (Message, error) {
	if err := d.wait(ctx, "send_message"); err != nil {
		return Message{}, err
	}
	m, err := d.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return Message{}, d.wrap("send_message", channelID, err)
	}
	metrics.ObserveDirectoryCall("send_message", "ok")
	return Message{ID: m.ID, ChannelID: m.ChannelID, Content: m.Content}, nil
}

func (d *Discord) RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if err := d.wait(ctx, "list_messages"); err != nil {
		return nil, err
	}
	raw, err := d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, d.wrap("list_messages", channelID, err)
	}
	metrics.ObserveDirectoryCall("list_messages", "ok")

	messages := make([]Message, 0, len(raw))
	for _, m := range raw {
		messages = append(messages, Message{ID: m.ID, ChannelID: m.ChannelID, Content: m.Content})
	}
	return messages, nil
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	if err := d.wait(ctx, "delete_message"); err != nil {
		return err
	}
	return d.wrap("delete_message", messageID,
		d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	if err := d.wait(ctx, "add_reaction"); err != nil {
		return err
	}
	return d.wrap("add_reaction", emoji,
		d.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)))
}

func (d *Discord) Members(ctx context.Context) ([]Member, error) {
	var members []Member
	after := ""
	for {
		if err := d.wait(ctx, "list_members"); err != nil {
			return nil, err
		}
		page, err := d.session.GuildMembers(d.guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, d.wrap("list_members", "", err)
		}
		metrics.ObserveDirectoryCall("list_members", "ok")

		for _, m := range page {
			members = append(members, toMember(m))
		}
		if len(page) < memberPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (d *Discord) Member(ctx context.Context, userID string) (Member, error) {
	if err := d.wait(ctx, "get_member"); err != nil {
		return Member{}, err
	}
	m, err := d.session.GuildMember(d.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return Member{}, d.wrap("get_member", userID, err)
	}
	metrics.ObserveDirectoryCall("get_member", "ok")
	return toMember(m), nil
}

func (d *Discord) GrantRole(ctx context.Context, userID, roleID string) error {
	if err := d.wait(ctx, "grant_role"); err != nil {
		return err
	}
	return d.wrap("grant_role", roleID,
		d.session.GuildMemberRoleAdd(d.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (d *Discord) RevokeRole(ctx context.Context, userID, roleID string) error {
	if err := d.wait(ctx, "revoke_role"); err != nil {
		return err
	}
	return d.wrap("revoke_role", roleID,
		d.session.GuildMemberRoleRemove(d.guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func toMember(m *discordgo.Member) Member {
	name := m.Nick
	if name == "" && m.User != nil {
		name = m.User.Username
	}
	id := ""
	if m.User != nil {
		id = m.User.ID
	}
	return Member{ID: id, Name: name, RoleIDs: m.Roles}
}

// toDiscordOverwrites translates the portable overwrite model into
// Discord allow/deny bitmasks. An empty RoleID addresses @everyone,
// whose role id equals the guild id.
func toDiscordOverwrites(guildID string, overwrites []Overwrite) []*discordgo.PermissionOverwrite {
	if len(overwrites) == 0 {
		return nil
	}
	out := make([]*discordgo.PermissionOverwrite, 0, len(overwrites))
	for _, ow := range overwrites {
		id := ow.RoleID
		if id == "" {
			id = guildID
		}
		var allow, deny int64
		if ow.ViewChannel != nil {
			if *ow.ViewChannel {
				allow |= discordgo.PermissionViewChannel
			} else {
				deny |= discordgo.PermissionViewChannel
			}
		}
		if ow.SendMessages != nil {
			if *ow.SendMessages {
				allow |= discordgo.PermissionSendMessages
			} else {
				deny |= discordgo.PermissionSendMessages
			}
		}
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    id,
			Type:  discordgo.PermissionOverwriteTypeRole,
			Allow: allow,
			Deny:  deny,
		})
	}
	return out
}
