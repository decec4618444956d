// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var errNoPresigner = errors.New("temporary urls are not supported by this disk")

// UploadURL is a presigned PUT request
type UploadURL struct {
	URL     string
	Headers http.Header
}

// URL returns the public URL of path. A configured URL base wins; otherwise
// the URL is derived from endpoint and bucket.
func (c *Controller) URL(path string) string {
	key := c.prefixer.PrefixPath(path)
	if c.cfg.URL != "" {
		return concatPathToURL(c.cfg.URL, key)
	}
	return c.objectURL(key)
}

func (c *Controller) objectURL(key string) string {
	escaped := escapeKey(key)

	if c.cfg.Endpoint != "" {
		base := strings.TrimRight(c.cfg.Endpoint, "/")
		if c.cfg.UsePathStyle {
			return base + "/" + c.cfg.Bucket + "/" + escaped
		}
		if u, err := url.Parse(base); err == nil && u.Host != "" {
			u.Host = c.cfg.Bucket + "." + u.Host
			return strings.TrimRight(u.String(), "/") + "/" + escaped
		}
		return base + "/" + c.cfg.Bucket + "/" + escaped
	}

	region := c.cfg.Region
	if region == "" || region == "us-east-1" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", c.cfg.Bucket, escaped)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.cfg.Bucket, region, escaped)
}

// TemporaryURL returns a presigned GET URL for path valid for expires,
// pinned to versionID when it is not empty.
func (c *Controller) TemporaryURL(ctx context.Context, path string, expires time.Duration, versionID string) (string, error) {
	start := time.Now()
	u, err := c.presignGet(ctx, path, expires, versionID)
	recordMetric(opTemporaryURL, start, errOrNil(err))

	if err != nil {
		return "", c.fail(opTemporaryURL, err)
	}
	return u, nil
}

func (c *Controller) presignGet(ctx context.Context, path string, expires time.Duration, versionID string) (string, *Error) {
	if c.presigner == nil {
		return "", newError(ErrCodeURLFailed, path, versionID, errNoPresigner)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.prefixer.PrefixPath(path)),
	}
	if versionID != "" {
		input.VersionId = aws.String(versionID)
	}

	req, err := c.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(expires))
	if err != nil {
		return "", newError(ErrCodeURLFailed, path, versionID, err)
	}

	u := req.URL
	if c.cfg.TemporaryURL != "" {
		if u, err = replaceBaseURL(u, c.cfg.TemporaryURL); err != nil {
			return "", newError(ErrCodeURLFailed, path, versionID, err)
		}
	}
	return u, nil
}

// TemporaryUploadURL returns a presigned PUT request for path valid for
// expires, with the headers the uploader must send.
func (c *Controller) TemporaryUploadURL(ctx context.Context, path string, expires time.Duration) (*UploadURL, error) {
	start := time.Now()
	u, err := c.presignPut(ctx, path, expires)
	recordMetric(opUploadURL, start, errOrNil(err))

	if err != nil {
		return nil, c.fail(opUploadURL, err)
	}
	return u, nil
}

func (c *Controller) presignPut(ctx context.Context, path string, expires time.Duration) (*UploadURL, *Error) {
	if c.presigner == nil {
		return nil, newError(ErrCodeURLFailed, path, "", errNoPresigner)
	}

	req, err := c.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.prefixer.PrefixPath(path)),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return nil, newError(ErrCodeURLFailed, path, "", err)
	}

	u := req.URL
	if c.cfg.TemporaryURL != "" {
		if u, err = replaceBaseURL(u, c.cfg.TemporaryURL); err != nil {
			return nil, newError(ErrCodeURLFailed, path, "", err)
		}
	}
	return &UploadURL{URL: u, Headers: req.SignedHeader}, nil
}

func concatPathToURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// replaceBaseURL swaps scheme, host and port of raw for those of base,
// keeping path and query (including the signature) intact
func replaceBaseURL(raw, base string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse presigned url: %w", err)
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse temporary_url: %w", err)
	}
	if b.Scheme == "" || b.Host == "" {
		return "", fmt.Errorf("temporary_url %q must include scheme and host", base)
	}

	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String(), nil
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
