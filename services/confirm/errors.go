// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package confirm

import "errors"

// Sentinel errors for the confirmation gate.
var (
	// ErrUnknownPending is returned when a resolution targets an id
	// that is not pending (already resolved, expired, or never issued).
	ErrUnknownPending = errors.New("no pending confirmation with that id")

	// ErrNotRequester is returned when someone other than the original
	// requester attempts to resolve a pending confirmation. The
	// confirmation stays pending and its timeout keeps running.
	ErrNotRequester = errors.New("only the requester may resolve this confirmation")
)
