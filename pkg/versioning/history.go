// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/szhorvath/s3plus/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var errMissingMarker = errors.New("truncated listing without continuation marker")

// History turns the store's version and delete-marker records for a key into
// one timeline, newest first.
type History struct {
	api      VersionLister
	bucket   string
	pageSize int32
}

// HistoryOption configures a History
type HistoryOption func(*History)

// WithPageSize sets MaxKeys on each listing request. Zero leaves the store default.
func WithPageSize(n int32) HistoryOption {
	return func(h *History) {
		h.pageSize = n
	}
}

// NewHistory creates a History reading from bucket
func NewHistory(api VersionLister, bucket string, opts ...HistoryOption) *History {
	h := &History{api: api, bucket: bucket}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// List returns every version and delete marker of key, sorted by UpdatedAt
// descending. Pages are followed until the store reports no more; nothing is
// sorted before the last page arrives. Entries with equal timestamps keep
// files ahead of delete markers.
func (h *History) List(ctx context.Context, key string) ([]types.VersionEntry, error) {
	input := &s3.ListObjectVersionsInput{
		Bucket: aws.String(h.bucket),
		Prefix: aws.String(key),
	}
	if h.pageSize > 0 {
		input.MaxKeys = aws.Int32(h.pageSize)
	}

	var (
		files   []types.VersionEntry
		markers []types.VersionEntry
		pages   int
	)

	for {
		out, err := h.api.ListObjectVersions(ctx, input)
		if err != nil {
			return nil, newError(ErrCodeVersionListingFailed, key, "", err)
		}
		pages++

		for _, v := range out.Versions {
			if aws.ToString(v.Key) != key {
				continue
			}
			files = append(files, fromVersion(v))
		}
		for _, m := range out.DeleteMarkers {
			if aws.ToString(m.Key) != key {
				continue
			}
			markers = append(markers, fromDeleteMarker(m))
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		if out.NextKeyMarker == nil && out.NextVersionIdMarker == nil {
			return nil, newError(ErrCodeVersionListingFailed, key, "", errMissingMarker)
		}
		input.KeyMarker = out.NextKeyMarker
		input.VersionIdMarker = out.NextVersionIdMarker
	}
	listedPages.Observe(float64(pages))

	entries := make([]types.VersionEntry, 0, len(files)+len(markers))
	entries = append(entries, files...)
	entries = append(entries, markers...)
	SortNewestFirst(entries)

	return entries, nil
}

// SortNewestFirst orders entries by UpdatedAt descending, keeping the
// relative order of equal timestamps
func SortNewestFirst(entries []types.VersionEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
	})
}

// StripQuotes removes the literal quotes S3 wraps around ETags
func StripQuotes(etag string) string {
	return strings.ReplaceAll(etag, `"`, "")
}

func fromVersion(v s3types.ObjectVersion) types.VersionEntry {
	return types.VersionEntry{
		ContentHash: StripQuotes(aws.ToString(v.ETag)),
		Key:         aws.ToString(v.Key),
		VersionID:   aws.ToString(v.VersionId),
		Kind:        types.KindFile,
		IsLatest:    aws.ToBool(v.IsLatest),
		UpdatedAt:   aws.ToTime(v.LastModified),
		Size:        aws.ToInt64(v.Size),
	}
}

func fromDeleteMarker(m s3types.DeleteMarkerEntry) types.VersionEntry {
	return types.VersionEntry{
		Key:       aws.ToString(m.Key),
		VersionID: aws.ToString(m.VersionId),
		Kind:      types.KindDeleteMarker,
		IsLatest:  aws.ToBool(m.IsLatest),
		UpdatedAt: aws.ToTime(m.LastModified),
	}
}
