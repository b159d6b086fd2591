// Copyright (C) 2026 Kinoko Lab (oss@kinokolab.jp)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package reactionroles

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists the registry as one JSON file keyed by message id.
//
// The durability strategy is a full-snapshot overwrite on every
// mutation: write amplification is traded for recovery simplicity, and
// the file stays hand-inspectable. Writes go through a temp file and
// rename so a crash mid-write never truncates the previous snapshot.
type Store struct {
	path string
}

// NewStore returns a store backed by the given file path. The file
// need not exist yet.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Save writes the full snapshot.
func (s *Store) Save(menus map[string]*Menu) error {
	data, err := json.MarshalIndent(menus, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: encoding snapshot: %v", ErrPersistence, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating store directory: %v", ErrPersistence, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrPersistence, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing snapshot: %v", ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing snapshot: %v", ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing snapshot: %v", ErrPersistence, err)
	}
	return nil
}

// Load reads the snapshot. An absent file is not an error: it yields
// an empty registry.
func (s *Store) Load() (map[string]*Menu, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]*Menu{}, nil
		}
		return nil, fmt.Errorf("%w: reading snapshot: %v", ErrPersistence, err)
	}

	menus := map[string]*Menu{}
	if err := json.Unmarshal(data, &menus); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot %s: %v", ErrPersistence, s.path, err)
	}
	for id, m := range menus {
		m.MessageID = id
	}
	return menus, nil
}
