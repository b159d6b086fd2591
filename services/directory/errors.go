// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package directory

import (
	"errors"
	"fmt"
)

// Sentinel errors for directory lookups.
var (
	// ErrNotFound is returned when a target entity does not resolve in
	// the guild. Deletion and lookup paths treat it as a reportable,
	// non-fatal condition.
	ErrNotFound = errors.New("entity not found")
)

// RemoteError wraps a failed call against the remote store: network
// failure, permission denial, or rate limiting. It carries the
// operation and the offending object's name so operator reports can
// name exactly what failed; it is never silently swallowed.
type RemoteError struct {
	// Op is the directory operation, e.g. "create_role".
	Op string

	// Name identifies the object the operation addressed.
	Name string

	// Err is the underlying transport or API error.
	Err error
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RemoteError) Unwrap() error {
	return e.Err
}
