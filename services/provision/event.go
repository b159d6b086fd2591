// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provision

import (
	"context"
	"errors"
	"fmt"

	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
)

// EventSpace is the set of objects backing one ad-hoc event: a hoisted
// role, a members-only category, a forum log channel, and a text
// channel for role assignment.
type EventSpace struct {
	Role     directory.Role
	Category directory.Category
	Channels []directory.Channel
}

// CreateEventSpace provisions an event space for the given name.
// Fails fast with ErrAlreadyExists when the event's role or category
// already resolves.
func (e *Engine) CreateEventSpace(ctx context.Context, event string) (*EventSpace, error) {
	if err := e.mustNotResolveRole(ctx, naming.EventRole(event)); err != nil {
		return nil, err
	}
	_, err := e.res.Category(ctx, naming.EventCategory(event))
	switch {
	case err == nil:
		return nil, fmt.Errorf("category %q: %w", naming.EventCategory(event), ErrAlreadyExists)
	case errors.Is(err, directory.ErrNotFound):
	default:
		return nil, err
	}

	space := &EventSpace{}

	space.Role, err = e.dir.CreateRole(ctx, directory.RoleCreate{
		Name:  naming.EventRole(event),
		Color: colorPurple,
		Hoist: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating role %q: %w", naming.EventRole(event), err)
	}

	space.Category, err = e.dir.CreateCategory(ctx, directory.CategoryCreate{
		Name: naming.EventCategory(event),
		Overwrites: []directory.Overwrite{
			{RoleID: "", ViewChannel: boolPtr(false)},
			{RoleID: space.Role.ID, ViewChannel: boolPtr(true)},
		},
	})
	if err != nil {
		return space, fmt.Errorf("creating category %q: %w", naming.EventCategory(event), err)
	}

	logCh, err := e.dir.CreateChannel(ctx, directory.ChannelCreate{
		Name:     naming.EventLogChannel(event),
		ParentID: space.Category.ID,
		Kind:     directory.ChannelForum,
		Topic:    fmt.Sprintf("%sのログを記録するフォーラムです。", event),
	})
	if err != nil {
		return space, fmt.Errorf("creating channel %q: %w", naming.EventLogChannel(event), err)
	}
	space.Channels = append(space.Channels, logCh)

	roleCh, err := e.dir.CreateChannel(ctx, directory.ChannelCreate{
		Name:     naming.EventRoleChannel(event),
		ParentID: space.Category.ID,
	})
	if err != nil {
		return space, fmt.Errorf("creating channel %q: %w", naming.EventRoleChannel(event), err)
	}
	space.Channels = append(space.Channels, roleCh)

	e.log.Info("event space created", "event", event, "role", space.Role.ID)
	return space, nil
}
