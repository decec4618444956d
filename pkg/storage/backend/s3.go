// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"fmt"

	"github.com/szhorvath/s3plus/pkg/s3client"
	"github.com/szhorvath/s3plus/pkg/types"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func init() {
	Register(types.StorageTypeS3, NewS3)
}

// NewS3 creates a driver for S3-compatible storage
func NewS3(ctx context.Context, cfg types.DiskConfig, pool *s3client.Pool) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket required for S3 backend")
	}

	client, err := pool.GetClient(ctx, &s3client.Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		AccessKeyID:     cfg.Key,
		SecretAccessKey: cfg.Secret,
		SessionToken:    cfg.Token,
		PathStyle:       cfg.UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	return &Driver{
		API:       client,
		Presigner: s3.NewPresignClient(client),
	}, nil
}
