// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package naming

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kinokolab/semesterd/services/directory"
)

// Resolver performs name-based lookup against the live directory.
//
// The remote store is the source of truth: callers re-resolve on every
// operation instead of caching ids. Exact-name match is tried first;
// on a miss, names are compared with zero-width joiners folded out so
// either normalization form of a compound emoji matches. When both
// forms are present the first match wins and the inconsistency is
// logged.
type Resolver struct {
	dir directory.Directory
	log *slog.Logger
}

// NewResolver builds a resolver over the given directory.
func NewResolver(dir directory.Directory, log *slog.Logger) *Resolver {
	return &Resolver{dir: dir, log: log}
}

// Role resolves a role by exact name.
func (r *Resolver) Role(ctx context.Context, name string) (directory.Role, error) {
	roles, err := r.dir.Roles(ctx)
	if err != nil {
		return directory.Role{}, err
	}
	for _, role := range roles {
		if role.Name == name {
			return role, nil
		}
	}
	return directory.Role{}, fmt.Errorf("role %q: %w", name, directory.ErrNotFound)
}

// Category resolves a category by name, tolerating both emoji forms.
func (r *Resolver) Category(ctx context.Context, name string) (directory.Category, error) {
	categories, err := r.dir.Categories(ctx)
	if err != nil {
		return directory.Category{}, err
	}
	for _, c := range categories {
		if c.Name == name {
			return c, nil
		}
	}

	// Alternate-form pass: either side may hold the decomposed form.
	folded := FoldZWJ(name)
	var matches []directory.Category
	for _, c := range categories {
		if FoldZWJ(c.Name) == folded {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return directory.Category{}, fmt.Errorf("category %q: %w", name, directory.ErrNotFound)
	}
	if len(matches) > 1 {
		ids := make([]string, len(matches))
		for i, c := range matches {
			ids[i] = c.ID
		}
		r.log.Warn("both emoji normalization forms present, resolving to first",
			"name", name, "category_ids", ids)
	}
	return matches[0], nil
}

// Channel resolves a channel by exact name, tolerating both emoji
// forms the same way Category does.
func (r *Resolver) Channel(ctx context.Context, name string) (directory.Channel, error) {
	channels, err := r.dir.Channels(ctx)
	if err != nil {
		return directory.Channel{}, err
	}
	for _, ch := range channels {
		if ch.Name == name {
			return ch, nil
		}
	}
	folded := FoldZWJ(name)
	for _, ch := range channels {
		if FoldZWJ(ch.Name) == folded {
			return ch, nil
		}
	}
	return directory.Channel{}, fmt.Errorf("channel %q: %w", name, directory.ErrNotFound)
}

// ChannelContaining resolves the first channel whose name contains
// substr, matching the guild convention of decorating channel names
// with emoji prefixes around a stable core name.
func (r *Resolver) ChannelContaining(ctx context.Context, substr string) (directory.Channel, error) {
	channels, err := r.dir.Channels(ctx)
	if err != nil {
		return directory.Channel{}, err
	}
	for _, ch := range channels {
		if strings.Contains(ch.Name, substr) {
			return ch, nil
		}
	}
	return directory.Channel{}, fmt.Errorf("channel containing %q: %w", substr, directory.ErrNotFound)
}
