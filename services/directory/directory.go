// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package directory defines the remote object store that semesterd
// orchestrates: the guild's roles, categories, channels, messages, and
// members, plus the reaction events the guild delivers.
//
// The remote store is authoritative. Local components hold back-
// references (ids and names) and re-resolve on demand; they never trust
// a cached copy over remote state, because humans and other bots mutate
// the guild concurrently.
//
// Two implementations ship with the daemon: Discord (the production
// adapter, discord.go) and Memory (an in-process fake for tests,
// memory.go). Every call is a potentially slow, independently fallible
// network operation; callers must not assume a multi-object logical
// operation applied atomically.
package directory

import "context"

// ChannelKind distinguishes the channel shapes the daemon creates.
type ChannelKind string

const (
	ChannelText  ChannelKind = "text"
	ChannelForum ChannelKind = "forum"
)

// Role is a grantable guild role.
type Role struct {
	ID    string
	Name  string
	Color int
	Hoist bool
}

// Category groups channels and carries permission overwrites its
// channels inherit unless they define their own.
type Category struct {
	ID   string
	Name string
}

// Channel is a text or forum channel, optionally inside a category.
type Channel struct {
	ID       string
	Name     string
	ParentID string
	Kind     ChannelKind
}

// Message is a posted message; semesterd only ever needs id, channel,
// and content.
type Message struct {
	ID        string
	ChannelID string
	Content   string
}

// Member is a guild member with their current role ids.
type Member struct {
	ID      string
	Name    string
	RoleIDs []string
}

// Overwrite is a permission overwrite for one principal. An empty
// RoleID addresses the default (@everyone) principal. Nil pointers
// leave the permission inherited.
type Overwrite struct {
	RoleID       string
	ViewChannel  *bool
	SendMessages *bool
}

// RoleCreate are the parameters for creating a role.
type RoleCreate struct {
	Name  string
	Color int
	Hoist bool
}

// CategoryCreate are the parameters for creating a category.
type CategoryCreate struct {
	Name       string
	Overwrites []Overwrite
}

// ChannelCreate are the parameters for creating a channel.
type ChannelCreate struct {
	Name       string
	ParentID   string
	Kind       ChannelKind
	Topic      string
	Overwrites []Overwrite
}

// ReactionEvent is a reaction added to or removed from a message,
// as delivered by the guild's event stream.
type ReactionEvent struct {
	MessageID string
	ChannelID string
	Emoji     string
	ActorID   string
	GuildID   string
}

// Directory is the guild-scoped remote object store. Implementations
// are safe for concurrent use; ordering across calls is the caller's
// responsibility.
type Directory interface {
	// Roles lists every role in the guild.
	Roles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, p RoleCreate) (Role, error)
	DeleteRole(ctx context.Context, roleID string) error

	// Categories lists every category in the guild.
	Categories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, p CategoryCreate) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error

	// Channels lists every non-category channel in the guild.
	Channels(ctx context.Context) ([]Channel, error)
	CreateChannel(ctx context.Context, p ChannelCreate) (Channel, error)
	RenameChannel(ctx context.Context, channelID, name string) error
	DeleteChannel(ctx context.Context, channelID string) error

	SendMessage(ctx context.Context, channelID, content string) (Message, error)
	// RecentMessages returns up to limit of the channel's most recent
	// messages, newest first.
	RecentMessages(ctx context.Context, channelID string, limit int) ([]Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error

	// Members lists every member of the guild.
	Members(ctx context.Context) ([]Member, error)
	Member(ctx context.Context, userID string) (Member, error)
	GrantRole(ctx context.Context, userID, roleID string) error
	RevokeRole(ctx context.Context, userID, roleID string) error
}
