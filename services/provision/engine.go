// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package provision executes the ordered creation sequences for cohort
// and event guild objects: roles, then categories, then channels.
//
// Every creation checks its preconditions against the live directory
// first: the target must not already resolve (ErrAlreadyExists) and
// every predecessor must (ErrMissingDependency). A failure partway
// through a fan-out leaves previously created objects in place; the
// engine does not retry or roll back; the orchestrator reports the
// exact failure point to the operator.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kinokolab/semesterd/services/directory"
	"github.com/kinokolab/semesterd/services/naming"
)

// Role colors, matching the guild's established palette.
const (
	colorBlue   = 0x3498db
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorPurple = 0x9b59b6
)

// Engine creates cohort and event objects in dependency order.
type Engine struct {
	dir directory.Directory
	res *naming.Resolver
	log *slog.Logger
}

// NewEngine builds an engine over the given directory and resolver.
func NewEngine(dir directory.Directory, res *naming.Resolver, log *slog.Logger) *Engine {
	return &Engine{dir: dir, res: res, log: log}
}

func boolPtr(b bool) *bool { return &b }

// mustNotResolveRole returns ErrAlreadyExists when the named role is
// already present.
func (e *Engine) mustNotResolveRole(ctx context.Context, name string) error {
	_, err := e.res.Role(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("role %q: %w", name, ErrAlreadyExists)
	case errors.Is(err, directory.ErrNotFound):
		return nil
	default:
		return err
	}
}

// CreateCohortRoles creates the cohort-wide student and staff roles
// plus one student and one staff role per class. Fails fast with
// ErrAlreadyExists when either cohort-wide role already resolves.
func (e *Engine) CreateCohortRoles(ctx context.Context, c naming.Cohort, classCount int) ([]directory.Role, error) {
	for _, name := range []string{c.StudentRole(), c.StaffRole()} {
		if err := e.mustNotResolveRole(ctx, name); err != nil {
			return nil, err
		}
	}

	var created []directory.Role
	create := func(p directory.RoleCreate) error {
		role, err := e.dir.CreateRole(ctx, p)
		if err != nil {
			return fmt.Errorf("creating role %q: %w", p.Name, err)
		}
		created = append(created, role)
		e.log.Info("role created", "name", role.Name, "id", role.ID)
		return nil
	}

	if err := create(directory.RoleCreate{Name: c.StudentRole(), Color: colorBlue}); err != nil {
		return created, err
	}
	if err := create(directory.RoleCreate{Name: c.StaffRole(), Color: colorGreen}); err != nil {
		return created, err
	}
	for i := 1; i <= classCount; i++ {
		if err := create(directory.RoleCreate{Name: c.ClassStudentRole(i), Color: colorBlue, Hoist: true}); err != nil {
			return created, err
		}
		if err := create(directory.RoleCreate{Name: c.ClassStaffRole(i), Color: colorGreen}); err != nil {
			return created, err
		}
	}
	return created, nil
}

// CreateBaseRoles creates the guild-wide staff and alumni roles that
// every cohort workflow depends on. Run once when the guild is first
// set up.
func (e *Engine) CreateBaseRoles(ctx context.Context, staffRole, obRole string) ([]directory.Role, error) {
	for _, name := range []string{staffRole, obRole} {
		if err := e.mustNotResolveRole(ctx, name); err != nil {
			return nil, err
		}
	}

	staff, err := e.dir.CreateRole(ctx, directory.RoleCreate{Name: staffRole, Color: colorRed, Hoist: true})
	if err != nil {
		return nil, fmt.Errorf("creating role %q: %w", staffRole, err)
	}
	ob, err := e.dir.CreateRole(ctx, directory.RoleCreate{Name: obRole, Color: colorBlue})
	if err != nil {
		return []directory.Role{staff}, fmt.Errorf("creating role %q: %w", obRole, err)
	}
	return []directory.Role{staff, ob}, nil
}

// CreateCohortCategories creates the staff and student categories.
// The staff category is visible only to the cohort staff role; the
// student category carries no overwrites of its own because every
// channel inside defines an explicit deny-by-default set.
func (e *Engine) CreateCohortCategories(ctx context.Context, c naming.Cohort) ([]directory.Category, error) {
	for _, name := range []string{c.StaffCategory(), c.StudentCategory()} {
		_, err := e.res.Category(ctx, name)
		switch {
		case err == nil:
			return nil, fmt.Errorf("category %q: %w", name, ErrAlreadyExists)
		case errors.Is(err, directory.ErrNotFound):
		default:
			return nil, err
		}
	}

	staffRole, err := e.res.Role(ctx, c.StaffRole())
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, fmt.Errorf("role %q (create roles first): %w", c.StaffRole(), ErrMissingDependency)
		}
		return nil, err
	}

	var created []directory.Category
	staffCat, err := e.dir.CreateCategory(ctx, directory.CategoryCreate{
		Name: c.StaffCategory(),
		Overwrites: []directory.Overwrite{
			{RoleID: "", ViewChannel: boolPtr(false)},
			{RoleID: staffRole.ID, ViewChannel: boolPtr(true)},
		},
	})
	if err != nil {
		return created, fmt.Errorf("creating category %q: %w", c.StaffCategory(), err)
	}
	created = append(created, staffCat)

	studentCat, err := e.dir.CreateCategory(ctx, directory.CategoryCreate{Name: c.StudentCategory()})
	if err != nil {
		return created, fmt.Errorf("creating category %q: %w", c.StudentCategory(), err)
	}
	created = append(created, studentCat)

	e.log.Info("categories created", "cohort", c.Label(), "staff", staffCat.ID, "student", studentCat.ID)
	return created, nil
}

// CreateCohortChannels creates the cohort announcement channel, one
// staff channel per class, and three student channels per class
// (chat, photo, announcement). Every student-facing channel denies
// view to @everyone; class channels additionally grant view and send
// to exactly the class student role and the cohort staff role.
func (e *Engine) CreateCohortChannels(ctx context.Context, c naming.Cohort, classCount int) ([]directory.Channel, error) {
	staffCat, err := e.res.Category(ctx, c.StaffCategory())
	if err != nil {
		return nil, e.missingDep(err, fmt.Sprintf("category %q (create categories first)", c.StaffCategory()))
	}
	studentCat, err := e.res.Category(ctx, c.StudentCategory())
	if err != nil {
		return nil, e.missingDep(err, fmt.Sprintf("category %q (create categories first)", c.StudentCategory()))
	}
	studentRole, err := e.res.Role(ctx, c.StudentRole())
	if err != nil {
		return nil, e.missingDep(err, fmt.Sprintf("role %q (create roles first)", c.StudentRole()))
	}
	staffRole, err := e.res.Role(ctx, c.StaffRole())
	if err != nil {
		return nil, e.missingDep(err, fmt.Sprintf("role %q (create roles first)", c.StaffRole()))
	}

	var created []directory.Channel
	create := func(p directory.ChannelCreate) error {
		ch, err := e.dir.CreateChannel(ctx, p)
		if err != nil {
			return fmt.Errorf("creating channel %q: %w", p.Name, err)
		}
		created = append(created, ch)
		return nil
	}

	// Cohort-wide announcement: visible to the whole cohort, staff included.
	err = create(directory.ChannelCreate{
		Name:     c.AnnounceChannel(),
		ParentID: studentCat.ID,
		Overwrites: []directory.Overwrite{
			{RoleID: "", ViewChannel: boolPtr(false)},
			{RoleID: studentRole.ID, ViewChannel: boolPtr(true)},
			{RoleID: staffRole.ID, ViewChannel: boolPtr(true)},
		},
	})
	if err != nil {
		return created, err
	}

	// Staff channels inherit the staff category's deny-by-default set.
	for i := 1; i <= classCount; i++ {
		if err := create(directory.ChannelCreate{Name: c.ClassStaffChannel(i), ParentID: staffCat.ID}); err != nil {
			return created, err
		}
	}

	for i := 1; i <= classCount; i++ {
		classRole, err := e.res.Role(ctx, c.ClassStudentRole(i))
		if err != nil {
			return created, e.missingDep(err, fmt.Sprintf("role %q (create roles first)", c.ClassStudentRole(i)))
		}
		// One overwrite set shared by the class's three channels.
		overwrites := []directory.Overwrite{
			{RoleID: "", ViewChannel: boolPtr(false)},
			{RoleID: classRole.ID, ViewChannel: boolPtr(true), SendMessages: boolPtr(true)},
			{RoleID: staffRole.ID, ViewChannel: boolPtr(true), SendMessages: boolPtr(true)},
		}
		for _, name := range []string{c.ClassChatChannel(i), c.ClassPhotoChannel(i), c.ClassAnnounceChannel(i)} {
			if err := create(directory.ChannelCreate{Name: name, ParentID: studentCat.ID, Overwrites: overwrites}); err != nil {
				return created, err
			}
		}
	}

	e.log.Info("channels created", "cohort", c.Label(), "count", len(created))
	return created, nil
}

func (e *Engine) missingDep(err error, what string) error {
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrMissingDependency)
	}
	return err
}
