// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package lifecycle

import "errors"

// Sentinel errors for the lifecycle workflows.
var (
	// ErrAlreadyRetired is returned when retirement finds the alumni
	// role already granted in a case where that signals a double run.
	ErrAlreadyRetired = errors.New("cohort appears to be retired already")

	// ErrNotConfirmed is returned when a gated deletion was cancelled
	// or expired. Nothing was destroyed.
	ErrNotConfirmed = errors.New("deletion was not confirmed")

	// ErrNothingFound is returned when deletion discovery finds no
	// objects for the requested cohorts.
	ErrNothingFound = errors.New("no objects found for the requested cohorts")

	// ErrAlreadyHolding is returned when an event role grant targets a
	// member who already holds the role.
	ErrAlreadyHolding = errors.New("member already holds the role")

	// ErrNotHolding is returned when an event role revoke targets a
	// member who does not hold the role.
	ErrNotHolding = errors.New("member does not hold the role")
)
