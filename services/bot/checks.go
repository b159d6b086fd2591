// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bot

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// invocation is the authorization-relevant context of one command
// invocation, extracted from the interaction so the predicate itself
// stays pure.
type invocation struct {
	channelName string
	roleNames   []string
	permissions int64
}

// authorized gates every management command behind three conditions
// that must all hold: the command runs in an admin channel, the caller
// holds the staff role, and the caller has administrator permission.
func authorized(inv invocation, adminChannelPrefix, staffRole string) bool {
	if !strings.HasPrefix(inv.channelName, adminChannelPrefix) {
		return false
	}
	hasStaff := false
	for _, name := range inv.roleNames {
		if name == staffRole {
			hasStaff = true
			break
		}
	}
	if !hasStaff {
		return false
	}
	return inv.permissions&discordgo.PermissionAdministrator != 0
}

// invocationOf extracts the authorization context from an interaction.
func (b *Bot) invocationOf(i *discordgo.InteractionCreate) (invocation, error) {
	if i.Member == nil || i.Member.User == nil {
		return invocation{}, fmt.Errorf("interaction has no guild member")
	}

	channel, err := b.session.State.Channel(i.ChannelID)
	if err != nil {
		channel, err = b.session.Channel(i.ChannelID)
		if err != nil {
			return invocation{}, fmt.Errorf("resolving channel %s: %w", i.ChannelID, err)
		}
	}

	roles, err := b.session.GuildRoles(b.cfg.GuildID)
	if err != nil {
		return invocation{}, fmt.Errorf("listing guild roles: %w", err)
	}
	byID := make(map[string]string, len(roles))
	for _, r := range roles {
		byID[r.ID] = r.Name
	}
	var names []string
	for _, id := range i.Member.Roles {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		}
	}

	return invocation{
		channelName: channel.Name,
		roleNames:   names,
		permissions: i.Member.Permissions,
	}, nil
}
