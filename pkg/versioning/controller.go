// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/szhorvath/s3plus/pkg/logger"
	"github.com/szhorvath/s3plus/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/time/rate"
)

var errVersionRequired = errors.New("version id required")

// Controller implements the version-aware lifecycle of objects in one bucket
type Controller struct {
	api       ObjectAPI
	presigner Presigner
	history   *History
	cfg       Config
	prefixer  Prefixer
	limiter   *rate.Limiter
}

// Option configures a Controller
type Option func(*Controller)

// WithPresigner enables TemporaryURL and TemporaryUploadURL
func WithPresigner(p Presigner) Option {
	return func(c *Controller) {
		c.presigner = p
	}
}

// WithHistoryPageSize sets the page size used when listing versions
func WithHistoryPageSize(n int32) Option {
	return func(c *Controller) {
		c.history.pageSize = n
	}
}

// NewController creates a Controller over api
func NewController(api ObjectAPI, cfg Config, opts ...Option) (*Controller, error) {
	if api == nil {
		return nil, errors.New("object api required")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Controller{
		api:      api,
		history:  NewHistory(api, cfg.Bucket),
		cfg:      cfg,
		prefixer: NewPrefixer(cfg.Root),
	}
	if cfg.DeleteRateLimit > 0 {
		burst := int(cfg.DeleteRateLimit)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.DeleteRateLimit), burst)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Bucket returns the bucket name
func (c *Controller) Bucket() string {
	return c.cfg.Bucket
}

// Prefixer returns the root prefixer
func (c *Controller) Prefixer() Prefixer {
	return c.prefixer
}

// Policy returns the failure policy
func (c *Controller) Policy() FailurePolicy {
	return c.cfg.Policy
}

// fail applies the failure policy to err. Under PolicySuppress the error is
// logged and nil is returned.
func (c *Controller) fail(op string, err *Error) error {
	if c.cfg.Policy != PolicySuppress {
		return err
	}

	suppressedTotal.WithLabelValues(op).Inc()
	logger.Warn().
		Err(err.Err).
		Str("operation", op).
		Str("bucket", c.cfg.Bucket).
		Str("key", err.Key).
		Str("version_id", err.VersionID).
		Str("code", err.Code.String()).
		Str("store_code", ErrorCodeOf(err.Err)).
		Msg("suppressed storage failure")
	return nil
}

// Get returns the content of path. With an empty versionID it reads whatever
// the store considers latest, otherwise the pinned version.
// Under PolicySuppress a failed read returns nil, nil.
func (c *Controller) Get(ctx context.Context, path, versionID string) ([]byte, error) {
	start := time.Now()

	out, err := c.getObject(ctx, path, versionID)
	var data []byte
	if err == nil {
		data, err = readAll(out.Body, path, versionID)
	}
	recordMetric(opGet, start, errOrNil(err))

	if err != nil {
		return nil, c.fail(opGet, err)
	}
	return data, nil
}

// Read returns a reader for path. When the config enables stream reads the
// live response body is returned and the caller must close it; the
// connection is released on Close, at EOF or on the first read error.
// Otherwise the body is fully buffered before Read returns.
// Under PolicySuppress a failed read returns nil, nil.
func (c *Controller) Read(ctx context.Context, path, versionID string) (io.ReadCloser, error) {
	start := time.Now()

	out, err := c.getObject(ctx, path, versionID)
	if err == nil && c.cfg.StreamReads {
		recordMetric(opGet, start, nil)
		return newReleasingBody(out.Body), nil
	}

	var data []byte
	if err == nil {
		data, err = readAll(out.Body, path, versionID)
	}
	recordMetric(opGet, start, errOrNil(err))

	if err != nil {
		return nil, c.fail(opGet, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Controller) getObject(ctx context.Context, path, versionID string) (*s3.GetObjectOutput, *Error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.prefixer.PrefixPath(path)),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	out, err := c.api.GetObject(ctx, input)
	if err != nil {
		return nil, newError(ErrCodeReadFailed, path, versionID, err)
	}
	return out, nil
}

func readAll(body io.ReadCloser, path, versionID string) ([]byte, *Error) {
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, newError(ErrCodeReadFailed, path, versionID, fmt.Errorf("read body: %w", err))
	}
	return data, nil
}

// Write stores body at path and returns the version id the store assigned,
// empty when the bucket is not versioned. size may be -1 when unknown.
// ok is false when the write failed; under PolicySuppress that is the only
// sign of failure.
func (c *Controller) Write(ctx context.Context, path string, body io.Reader, size int64) (versionID string, ok bool, err error) {
	start := time.Now()
	versionID, werr := c.putObject(ctx, path, body, size)
	recordMetric(opWrite, start, errOrNil(werr))

	if werr != nil {
		return "", false, c.fail(opWrite, werr)
	}
	return versionID, true, nil
}

func (c *Controller) putObject(ctx context.Context, path string, body io.Reader, size int64) (string, *Error) {
	// Request signing needs a seekable body
	rs, ok := body.(io.ReadSeeker)
	if !ok {
		buf, err := io.ReadAll(body)
		if err != nil {
			return "", newError(ErrCodeWriteFailed, path, "", fmt.Errorf("read data: %w", err))
		}
		rs = bytes.NewReader(buf)
		size = int64(len(buf))
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.prefixer.PrefixPath(path)),
		Body:   rs,
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	out, err := c.api.PutObject(ctx, input)
	if err != nil {
		return "", newError(ErrCodeWriteFailed, path, "", err)
	}

	logger.Debug().
		Str("bucket", c.cfg.Bucket).
		Str("key", aws.ToString(input.Key)).
		Str("version_id", aws.ToString(out.VersionId)).
		Msg("wrote object")
	return aws.ToString(out.VersionId), nil
}

// Exists reports whether path currently resolves to an object. A key whose
// latest entry is a delete marker does not exist.
func (c *Controller) Exists(ctx context.Context, path string) (bool, error) {
	start := time.Now()
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.prefixer.PrefixPath(path)),
	})
	if err != nil && IsNotFound(err) {
		recordMetric(opExists, start, nil)
		return false, nil
	}
	recordMetric(opExists, start, err)

	if err != nil {
		return false, c.fail(opExists, newError(ErrCodeReadFailed, path, "", err))
	}
	return true, nil
}

// Versions returns the history of path, newest first.
// Under PolicySuppress a failed listing returns an empty slice.
func (c *Controller) Versions(ctx context.Context, path string) ([]types.VersionEntry, error) {
	start := time.Now()
	entries, err := c.history.List(ctx, c.prefixer.PrefixPath(path))
	recordMetric(opVersions, start, err)

	if err != nil {
		cause := err
		var herr *Error
		if errors.As(err, &herr) {
			cause = herr.Err
		}
		if ferr := c.fail(opVersions, newError(ErrCodeVersionListingFailed, path, "", cause)); ferr != nil {
			return nil, ferr
		}
		return []types.VersionEntry{}, nil
	}
	return entries, nil
}

// Restore makes versionID the current object at path by copying it onto the
// same key. The store records the copy as a new latest version, so history
// grows by one and the restored content is duplicated, not moved. Restoring
// over a delete marker un-deletes the object and leaves the marker in history.
// Under PolicySuppress a failed restore returns false, nil.
func (c *Controller) Restore(ctx context.Context, path, versionID string) (bool, error) {
	start := time.Now()
	err := c.copyVersion(ctx, path, versionID)
	recordMetric(opRestore, start, errOrNil(err))

	if err != nil {
		return false, c.fail(opRestore, err)
	}
	return true, nil
}

func (c *Controller) copyVersion(ctx context.Context, path, versionID string) *Error {
	if versionID == "" {
		return newError(ErrCodeRestoreFailed, path, "", errVersionRequired)
	}

	key := c.prefixer.PrefixPath(path)
	out, err := c.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(c.cfg.Bucket),
		Key:        aws.String(key),
		CopySource: aws.String(CopySource(c.cfg.Bucket, key, versionID)),
	})
	if err != nil {
		return newError(ErrCodeRestoreFailed, path, versionID, err)
	}

	logger.Debug().
		Str("bucket", c.cfg.Bucket).
		Str("key", key).
		Str("restored_version_id", versionID).
		Str("version_id", aws.ToString(out.VersionId)).
		Msg("restored object version")
	return nil
}

// CopySource builds the URL-encoded x-amz-copy-source value for a version
func CopySource(bucket, key, versionID string) string {
	src := bucket + "/" + escapeKey(key)
	if versionID != "" {
		src += "?versionId=" + url.QueryEscape(versionID)
	}
	return src
}

// errOrNil keeps a nil *Error from becoming a non-nil error interface
func errOrNil(err *Error) error {
	if err == nil {
		return nil
	}
	return err
}
