// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"context"
	"time"

	"github.com/szhorvath/s3plus/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// BucketVersioning is the versioning state of a bucket
type BucketVersioning string

const (
	VersioningEnabled   BucketVersioning = "Enabled"
	VersioningSuspended BucketVersioning = "Suspended"
	VersioningDisabled  BucketVersioning = "" // Never configured
)

// VersioningStatus returns the bucket's versioning state
func (c *Controller) VersioningStatus(ctx context.Context) (BucketVersioning, error) {
	start := time.Now()
	out, err := c.api.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(c.cfg.Bucket),
	})
	recordMetric(opBucketVersions, start, err)

	if err != nil {
		return VersioningDisabled, c.fail(opBucketVersions, newError(ErrCodeBucketConfigFailed, "", "", err))
	}
	return BucketVersioning(out.Status), nil
}

// EnableVersioning turns on versioning for the bucket
func (c *Controller) EnableVersioning(ctx context.Context) error {
	return c.setVersioning(ctx, s3types.BucketVersioningStatusEnabled)
}

// SuspendVersioning stops creating new versions; existing history is kept
func (c *Controller) SuspendVersioning(ctx context.Context) error {
	return c.setVersioning(ctx, s3types.BucketVersioningStatusSuspended)
}

func (c *Controller) setVersioning(ctx context.Context, status s3types.BucketVersioningStatus) error {
	start := time.Now()
	_, err := c.api.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(c.cfg.Bucket),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: status,
		},
	})
	recordMetric(opBucketVersions, start, err)

	if err != nil {
		return c.fail(opBucketVersions, newError(ErrCodeBucketConfigFailed, "", "", err))
	}

	logger.Info().
		Str("bucket", c.cfg.Bucket).
		Str("status", string(status)).
		Msg("updated bucket versioning")
	return nil
}
