// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"

	"github.com/szhorvath/s3plus/pkg/s3client"
	"github.com/szhorvath/s3plus/pkg/storage/memory"
	"github.com/szhorvath/s3plus/pkg/types"
)

func init() {
	Register(types.StorageTypeMemory, NewMemory)
}

// NewMemory creates a driver backed by a fresh in-memory store holding the
// configured bucket. The memory driver cannot presign requests.
func NewMemory(ctx context.Context, cfg types.DiskConfig, pool *s3client.Pool) (*Driver, error) {
	return &Driver{API: memory.NewStore([]string{cfg.Bucket})}, nil
}

// MemoryStore returns the in-memory store behind a memory disk, for test verification
func (d *Disk) MemoryStore() (*memory.Store, bool) {
	s, ok := d.Driver.API.(*memory.Store)
	return s, ok
}
