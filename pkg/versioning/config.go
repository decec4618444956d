// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"errors"
	"strings"
)

// FailurePolicy decides what a Controller does with a failed store call
type FailurePolicy int

const (
	// PolicyPropagate returns domain errors to the caller
	PolicyPropagate FailurePolicy = iota
	// PolicySuppress logs failures and returns an empty, false or nil result
	PolicySuppress
)

func (p FailurePolicy) String() string {
	if p == PolicySuppress {
		return "suppress"
	}
	return "propagate"
}

// PolicyFromThrow maps the boolean "throw" disk option to a policy
func PolicyFromThrow(throw bool) FailurePolicy {
	if throw {
		return PolicyPropagate
	}
	return PolicySuppress
}

const defaultDeleteConcurrency = 1

// Config configures a Controller
type Config struct {
	Bucket string
	// Root is a key prefix applied to every path
	Root string

	Policy FailurePolicy

	// StreamReads hands the live response body to Read callers instead of
	// buffering it
	StreamReads bool

	// URL overrides the base of public links
	URL string
	// TemporaryURL replaces scheme and host of presigned links
	TemporaryURL string

	// Endpoint, Region and UsePathStyle only feed public URL generation
	Endpoint     string
	Region       string
	UsePathStyle bool

	// DeleteConcurrency bounds parallel deletes in a batch; 0 means sequential
	DeleteConcurrency int
	// DeleteRateLimit caps delete requests per second in a batch; 0 disables
	DeleteRateLimit float64
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket required")
	}
	if c.Policy != PolicyPropagate && c.Policy != PolicySuppress {
		return errors.New("unknown failure policy")
	}
	if c.DeleteConcurrency < 0 {
		return errors.New("delete concurrency must not be negative")
	}
	if c.DeleteRateLimit < 0 {
		return errors.New("delete rate limit must not be negative")
	}
	return nil
}

func (c *Config) deleteConcurrency() int {
	if c.DeleteConcurrency <= 0 {
		return defaultDeleteConcurrency
	}
	return c.DeleteConcurrency
}
