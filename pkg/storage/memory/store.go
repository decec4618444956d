// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

// Package memory implements the versioning-related part of the S3 API in
// memory. It follows S3 semantics closely enough for hermetic tests and the
// "memory" disk driver: version ids, delete markers, suspended buckets,
// paginated version listings and server-side copies.
package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// nullVersion is the id S3 gives objects written while versioning is off
const nullVersion = "null"

const defaultMaxKeys = 1000

// Operation names accepted by Fail
const (
	OpGetObject           = "GetObject"
	OpPutObject           = "PutObject"
	OpHeadObject          = "HeadObject"
	OpDeleteObject        = "DeleteObject"
	OpCopyObject          = "CopyObject"
	OpListObjectVersions  = "ListObjectVersions"
	OpGetBucketVersioning = "GetBucketVersioning"
	OpPutBucketVersioning = "PutBucketVersioning"
)

type version struct {
	id           string
	data         []byte
	etag         string
	deleteMarker bool
	modified     time.Time
}

type bucket struct {
	status s3types.BucketVersioningStatus
	// history per key, oldest first
	objects map[string][]*version
}

type fault struct {
	key string
	err error
}

// Store is an in-memory versioned object store
type Store struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	last    time.Time
	faults  map[string][]fault
	calls   map[string]int
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces the wall clock used for LastModified
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store holding the given (unversioned) buckets
func NewStore(buckets []string, opts ...Option) *Store {
	s := &Store{
		buckets: make(map[string]*bucket),
		now:     time.Now,
		faults:  make(map[string][]fault),
		calls:   make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, b := range buckets {
		s.CreateBucket(b)
	}
	return s
}

// CreateBucket adds an empty bucket if it does not exist
func (s *Store) CreateBucket(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; !ok {
		s.buckets[name] = &bucket{objects: make(map[string][]*version)}
	}
}

// Fail makes op return err for key. An empty key matches every key.
func (s *Store) Fail(op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], fault{key: key, err: err})
}

// ClearFailures removes every injected failure
func (s *Store) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string][]fault)
}

// Calls returns how many times op was invoked
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// enter records a call and returns any injected failure. Caller holds s.mu.
func (s *Store) enter(op, key string) error {
	s.calls[op]++
	for _, f := range s.faults[op] {
		if f.key == "" || f.key == key {
			return f.err
		}
	}
	return nil
}

// tick returns a millisecond timestamp strictly after the previous one
func (s *Store) tick() time.Time {
	t := s.now().UTC().Truncate(time.Millisecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Millisecond)
	}
	s.last = t
	return t
}

func (s *Store) bucket(name *string) (*bucket, error) {
	b, ok := s.buckets[aws.ToString(name)]
	if !ok {
		return nil, &s3types.NoSuchBucket{Message: aws.String("The specified bucket does not exist")}
	}
	return b, nil
}

func newVersionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// append adds v as the latest version of key, honoring the bucket's
// versioning state
func (b *bucket) append(key string, v *version) {
	if b.status == s3types.BucketVersioningStatusEnabled {
		b.objects[key] = append(b.objects[key], v)
		return
	}

	// Unversioned and suspended buckets overwrite the null version
	v.id = nullVersion
	history := b.objects[key][:0]
	for _, old := range b.objects[key] {
		if old.id != nullVersion {
			history = append(history, old)
		}
	}
	b.objects[key] = append(history, v)
}

func (b *bucket) latest(key string) *version {
	h := b.objects[key]
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}

func (b *bucket) find(key, versionID string) *version {
	for _, v := range b.objects[key] {
		if v.id == versionID {
			return v
		}
	}
	return nil
}

// resolve finds the version a read targets
func (b *bucket) resolve(key string, versionID *string) (*version, error) {
	if versionID != nil {
		v := b.find(key, *versionID)
		if v == nil {
			return nil, &smithy.GenericAPIError{Code: "NoSuchVersion", Message: "The specified version does not exist."}
		}
		if v.deleteMarker {
			return nil, &smithy.GenericAPIError{Code: "MethodNotAllowed", Message: "The specified method is not allowed against this resource."}
		}
		return v, nil
	}

	v := b.latest(key)
	if v == nil || v.deleteMarker {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return v, nil
}

func (b *bucket) publicID(v *version) *string {
	if b.status == "" && v.id == nullVersion {
		return nil
	}
	return aws.String(v.id)
}

func (s *Store) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aws.ToString(params.Key)
	if err := s.enter(OpGetObject, key); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}
	v, err := b.resolve(key, params.VersionId)
	if err != nil {
		return nil, err
	}

	data := bytes.Clone(v.data)
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(v.etag),
		LastModified:  aws.Time(v.modified),
		VersionId:     b.publicID(v),
	}, nil
}

func (s *Store) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aws.ToString(params.Key)
	if err := s.enter(OpHeadObject, key); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}
	v, err := b.resolve(key, params.VersionId)
	if err != nil {
		return nil, &s3types.NotFound{Message: aws.String(err.Error())}
	}

	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(v.data))),
		ETag:          aws.String(v.etag),
		LastModified:  aws.Time(v.modified),
		VersionId:     b.publicID(v),
	}, nil
}

func (s *Store) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	var data []byte
	if params.Body != nil {
		var err error
		if data, err = io.ReadAll(params.Body); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := aws.ToString(params.Key)
	if err := s.enter(OpPutObject, key); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}

	v := &version{id: newVersionID(), data: data, etag: etagOf(data), modified: s.tick()}
	b.append(key, v)

	return &s3.PutObjectOutput{
		ETag:      aws.String(v.etag),
		VersionId: b.publicID(v),
	}, nil
}

func (s *Store) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aws.ToString(params.Key)
	if err := s.enter(OpDeleteObject, key); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}

	// Version-qualified: remove exactly that record. Missing versions are not an error.
	if params.VersionId != nil {
		id := *params.VersionId
		out := &s3.DeleteObjectOutput{VersionId: aws.String(id)}
		history := b.objects[key]
		for i, v := range history {
			if v.id != id {
				continue
			}
			if v.deleteMarker {
				out.DeleteMarker = aws.Bool(true)
			}
			b.objects[key] = append(history[:i:i], history[i+1:]...)
			break
		}
		if len(b.objects[key]) == 0 {
			delete(b.objects, key)
		}
		return out, nil
	}

	if b.status == "" {
		delete(b.objects, key)
		return &s3.DeleteObjectOutput{}, nil
	}

	marker := &version{id: newVersionID(), deleteMarker: true, modified: s.tick()}
	b.append(key, marker)
	return &s3.DeleteObjectOutput{
		DeleteMarker: aws.Bool(true),
		VersionId:    aws.String(marker.id),
	}, nil
}

// parseCopySource splits "bucket/key?versionId=id"
func parseCopySource(src string) (bucketName, key, versionID string, err error) {
	src = strings.TrimPrefix(src, "/")
	path, query, _ := strings.Cut(src, "?")

	bucketName, rawKey, ok := strings.Cut(path, "/")
	if !ok || bucketName == "" || rawKey == "" {
		return "", "", "", &smithy.GenericAPIError{Code: "InvalidArgument", Message: "Copy Source must mention the source bucket and key"}
	}
	if key, err = url.PathUnescape(rawKey); err != nil {
		return "", "", "", &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
	}
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return "", "", "", &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
		}
		versionID = values.Get("versionId")
	}
	return bucketName, key, versionID, nil
}

func (s *Store) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := aws.ToString(params.Key)
	if err := s.enter(OpCopyObject, key); err != nil {
		return nil, err
	}

	srcBucket, srcKey, srcVersion, err := parseCopySource(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}
	sb, err := s.bucket(aws.String(srcBucket))
	if err != nil {
		return nil, err
	}
	var pinned *string
	if srcVersion != "" {
		pinned = aws.String(srcVersion)
	}
	src, err := sb.resolve(srcKey, pinned)
	if err != nil {
		return nil, err
	}

	db, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}
	v := &version{id: newVersionID(), data: bytes.Clone(src.data), etag: src.etag, modified: s.tick()}
	db.append(key, v)

	return &s3.CopyObjectOutput{
		CopyObjectResult: &s3types.CopyObjectResult{
			ETag:         aws.String(v.etag),
			LastModified: aws.Time(v.modified),
		},
		CopySourceVersionId: sb.publicID(src),
		VersionId:           db.publicID(v),
	}, nil
}

type listed struct {
	key      string
	v        *version
	isLatest bool
}

func (s *Store) ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := aws.ToString(params.Prefix)
	if err := s.enter(OpListObjectVersions, prefix); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	// Keys ascending, versions of a key newest first
	var all []listed
	for _, k := range keys {
		h := b.objects[k]
		for i := len(h) - 1; i >= 0; i-- {
			all = append(all, listed{key: k, v: h[i], isLatest: i == len(h)-1})
		}
	}

	all = skipToMarker(all, aws.ToString(params.KeyMarker), aws.ToString(params.VersionIdMarker))

	maxKeys := int(aws.ToInt32(params.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	out := &s3.ListObjectVersionsOutput{
		Name:            params.Bucket,
		Prefix:          params.Prefix,
		KeyMarker:       params.KeyMarker,
		VersionIdMarker: params.VersionIdMarker,
		MaxKeys:         aws.Int32(int32(maxKeys)),
		IsTruncated:     aws.Bool(len(all) > maxKeys),
	}

	page := all
	if len(page) > maxKeys {
		page = page[:maxKeys]
		last := page[len(page)-1]
		out.NextKeyMarker = aws.String(last.key)
		out.NextVersionIdMarker = aws.String(last.v.id)
	}

	for _, e := range page {
		if e.v.deleteMarker {
			out.DeleteMarkers = append(out.DeleteMarkers, s3types.DeleteMarkerEntry{
				Key:          aws.String(e.key),
				VersionId:    aws.String(e.v.id),
				IsLatest:     aws.Bool(e.isLatest),
				LastModified: aws.Time(e.v.modified),
			})
			continue
		}
		out.Versions = append(out.Versions, s3types.ObjectVersion{
			Key:          aws.String(e.key),
			VersionId:    aws.String(e.v.id),
			IsLatest:     aws.Bool(e.isLatest),
			LastModified: aws.Time(e.v.modified),
			ETag:         aws.String(e.v.etag),
			Size:         aws.Int64(int64(len(e.v.data))),
			StorageClass: s3types.ObjectVersionStorageClassStandard,
		})
	}

	return out, nil
}

// skipToMarker drops entries up to and including the marker. A key marker
// without a version marker skips every version of that key.
func skipToMarker(all []listed, keyMarker, versionMarker string) []listed {
	if keyMarker == "" {
		return all
	}
	for i, e := range all {
		if versionMarker == "" {
			if e.key > keyMarker {
				return all[i:]
			}
			continue
		}
		if e.key == keyMarker && e.v.id == versionMarker {
			return all[i+1:]
		}
		if e.key > keyMarker {
			return all[i:]
		}
	}
	return nil
}

func (s *Store) GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpGetBucketVersioning, ""); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}
	return &s3.GetBucketVersioningOutput{Status: b.status}, nil
}

func (s *Store) PutBucketVersioning(ctx context.Context, params *s3.PutBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.PutBucketVersioningOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enter(OpPutBucketVersioning, ""); err != nil {
		return nil, err
	}
	b, err := s.bucket(params.Bucket)
	if err != nil {
		return nil, err
	}
	if params.VersioningConfiguration == nil {
		return nil, &smithy.GenericAPIError{Code: "MalformedXML", Message: "missing versioning configuration"}
	}

	switch status := params.VersioningConfiguration.Status; status {
	case s3types.BucketVersioningStatusEnabled, s3types.BucketVersioningStatusSuspended:
		b.status = status
	default:
		return nil, &smithy.GenericAPIError{Code: "IllegalVersioningConfigurationException", Message: fmt.Sprintf("invalid status %q", status)}
	}
	return &s3.PutBucketVersioningOutput{}, nil
}
