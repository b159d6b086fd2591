// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package provision

import "errors"

// Sentinel errors for creation workflows. Both are always wrapped with
// the offending object's name.
var (
	// ErrAlreadyExists is returned when the target role or category
	// already resolves in the guild. Creation fails fast; nothing is
	// created.
	ErrAlreadyExists = errors.New("target already exists")

	// ErrMissingDependency is returned when a required predecessor
	// (role before category, category and roles before channels) does
	// not resolve.
	ErrMissingDependency = errors.New("required dependency does not resolve")
)
