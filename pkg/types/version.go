// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"time"
)

// EntryKind discriminates the two record shapes a version listing returns
type EntryKind uint8

const (
	KindFile EntryKind = iota
	KindDeleteMarker
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDeleteMarker:
		return "deleteMarker"
	default:
		return fmt.Sprintf("EntryKind(%d)", uint8(k))
	}
}

// MarshalText renders the kind as "file" or "deleteMarker"
func (k EntryKind) MarshalText() ([]byte, error) {
	switch k {
	case KindFile, KindDeleteMarker:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("unknown entry kind %d", uint8(k))
	}
}

// UnmarshalText parses the output of MarshalText
func (k *EntryKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*k = KindFile
	case "deleteMarker":
		*k = KindDeleteMarker
	default:
		return fmt.Errorf("unknown entry kind %q", text)
	}
	return nil
}

// VersionEntry is one point in an object's history: either a stored file
// version or a delete marker. Entries are projections of a listing and are
// never cached.
type VersionEntry struct {
	ContentHash string    `json:"hash"`
	Key         string    `json:"key"`
	VersionID   string    `json:"version"`
	Kind        EntryKind `json:"type"`
	IsLatest    bool      `json:"latest"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Size        int64     `json:"size"`
}

// IsDeleteMarker reports whether the entry is a tombstone
func (e VersionEntry) IsDeleteMarker() bool {
	return e.Kind == KindDeleteMarker
}

// ObjectState is the visible existence of a key, derived from its history
type ObjectState uint8

const (
	StateAbsent ObjectState = iota
	StatePresent
)

func (s ObjectState) String() string {
	if s == StatePresent {
		return "present"
	}
	return "absent"
}

// Latest returns the entry the store flags as latest.
// Falls back to the first entry when no flag is set, since listings are
// ordered newest first.
func Latest(entries []VersionEntry) (VersionEntry, bool) {
	for _, e := range entries {
		if e.IsLatest {
			return e, true
		}
	}
	if len(entries) > 0 {
		return entries[0], true
	}
	return VersionEntry{}, false
}

// State derives Present/Absent from a history. An empty history or a latest
// delete marker both mean Absent.
func State(entries []VersionEntry) ObjectState {
	latest, ok := Latest(entries)
	if !ok || latest.IsDeleteMarker() {
		return StateAbsent
	}
	return StatePresent
}

// CountKind returns how many entries have the given kind
func CountKind(entries []VersionEntry, kind EntryKind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
