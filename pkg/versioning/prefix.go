// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import "strings"

// Prefixer maps caller paths to store keys under a root prefix
type Prefixer struct {
	prefix string
}

// NewPrefixer creates a Prefixer for root. An empty root maps paths as-is.
func NewPrefixer(root string) Prefixer {
	root = strings.TrimRight(root, "/")
	if root == "" {
		return Prefixer{}
	}
	return Prefixer{prefix: root + "/"}
}

// Prefix returns the normalized root, with trailing slash, or ""
func (p Prefixer) Prefix() string {
	return p.prefix
}

// PrefixPath returns the store key for path
func (p Prefixer) PrefixPath(path string) string {
	return p.prefix + strings.TrimLeft(path, `\/`)
}

// StripPrefix returns the caller path for a store key
func (p Prefixer) StripPrefix(key string) string {
	return strings.TrimPrefix(key, p.prefix)
}
