// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrorCode represents a domain-level error code
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	ErrCodeReadFailed
	ErrCodeWriteFailed
	ErrCodeVersionListingFailed
	ErrCodeDeleteFailed
	ErrCodeRestoreFailed
	ErrCodeURLFailed
	ErrCodeBucketConfigFailed
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeReadFailed:
		return "ReadFailed"
	case ErrCodeWriteFailed:
		return "WriteFailed"
	case ErrCodeVersionListingFailed:
		return "VersionListingFailed"
	case ErrCodeDeleteFailed:
		return "DeleteFailed"
	case ErrCodeRestoreFailed:
		return "RestoreFailed"
	case ErrCodeURLFailed:
		return "URLFailed"
	case ErrCodeBucketConfigFailed:
		return "BucketConfigFailed"
	default:
		return "None"
	}
}

// Sentinels for errors.Is; matching compares the code only
var (
	ErrReadFailed           = &Error{Code: ErrCodeReadFailed}
	ErrWriteFailed          = &Error{Code: ErrCodeWriteFailed}
	ErrVersionListingFailed = &Error{Code: ErrCodeVersionListingFailed}
	ErrDeleteFailed         = &Error{Code: ErrCodeDeleteFailed}
	ErrRestoreFailed        = &Error{Code: ErrCodeRestoreFailed}
	ErrURLFailed            = &Error{Code: ErrCodeURLFailed}
	ErrBucketConfigFailed   = &Error{Code: ErrCodeBucketConfigFailed}
)

// Error is a failed store call translated into the domain taxonomy.
// Key is the caller's path, not the prefixed store key.
type Error struct {
	Code      ErrorCode
	Key       string
	VersionID string
	Err       error
}

func (e *Error) Error() string {
	msg := e.message()
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) message() string {
	switch e.Code {
	case ErrCodeReadFailed:
		return "unable to read file at location: " + e.location()
	case ErrCodeWriteFailed:
		return "unable to write file at location: " + e.location()
	case ErrCodeVersionListingFailed:
		return "unable to retrieve the versions for file at location: " + e.Key
	case ErrCodeDeleteFailed:
		return "unable to delete file at location: " + e.location()
	case ErrCodeRestoreFailed:
		return "unable to restore file " + e.location()
	case ErrCodeURLFailed:
		return "unable to generate url for file at location: " + e.location()
	case ErrCodeBucketConfigFailed:
		return "unable to configure bucket versioning"
	default:
		return "versioning error"
	}
}

func (e *Error) location() string {
	if e.VersionID == "" {
		return e.Key
	}
	return e.Key + " (version " + e.VersionID + ")"
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrReadFailed) works
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, key, versionID string, cause error) *Error {
	return &Error{Code: code, Key: key, VersionID: versionID, Err: cause}
}

// IsNotFound reports whether err carries a store not-found signal
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchVersion", "NotFound":
			return true
		}
	}

	// HEAD responses carry no body, so only the status survives
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}

// ErrorCodeOf returns the store error code carried by err, if any
func ErrorCodeOf(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
