// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reactionroles

import "errors"

// Sentinel errors for the reaction-role registry.
var (
	// ErrPersistence is returned when the durable snapshot cannot be
	// written or read. A mutation that fails persistence must not be
	// reported to the caller as a success.
	ErrPersistence = errors.New("registry persistence failed")

	// ErrDuplicateEmoji is returned when a menu is created with the
	// same trigger emoji bound twice. Emoji are the lookup key within
	// a menu and must be unique.
	ErrDuplicateEmoji = errors.New("duplicate trigger emoji in menu")

	// ErrNoBindings is returned when a menu is created with an empty
	// binding list.
	ErrNoBindings = errors.New("menu has no role bindings")
)
