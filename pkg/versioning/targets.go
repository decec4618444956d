// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import "sort"

// Target is one delete request. An empty VersionID means a soft delete.
type Target struct {
	Path      string
	VersionID string
}

// Qualified reports whether the target pins a version
func (t Target) Qualified() bool {
	return t.VersionID != ""
}

// Targets is the argument of Delete. Build it with Key, Keys or Versions;
// a single value is either all soft deletes or all version-qualified deletes.
type Targets struct {
	items     []Target
	versioned bool
}

// Key targets a single path for a soft delete
func Key(path string) Targets {
	return Targets{items: []Target{{Path: path}}}
}

// Keys targets several paths for soft deletes
func Keys(paths ...string) Targets {
	items := make([]Target, len(paths))
	for i, p := range paths {
		items[i] = Target{Path: p}
	}
	return Targets{items: items}
}

// Versions targets specific versions for permanent deletes, keyed by
// version id. Targets are ordered by version id.
func Versions(byVersion map[string]string) Targets {
	ids := make([]string, 0, len(byVersion))
	for id := range byVersion {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	items := make([]Target, len(ids))
	for i, id := range ids {
		items[i] = Target{Path: byVersion[id], VersionID: id}
	}
	return Targets{items: items, versioned: true}
}

// Versioned reports whether these are version-qualified deletes
func (t Targets) Versioned() bool {
	return t.versioned
}

// Len returns the number of targets
func (t Targets) Len() int {
	return len(t.items)
}

// Items returns a copy of the targets in delete order
func (t Targets) Items() []Target {
	out := make([]Target, len(t.items))
	copy(out, t.items)
	return out
}
