// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package types

// StorageType identifies the driver behind a disk
type StorageType string

const (
	StorageTypeS3     StorageType = "s3"     // S3-compatible
	StorageTypeMemory StorageType = "memory" // In-process versioned store
)

// DiskConfig contains the configuration of a single named disk.
// Keys mirror the disk options accepted by the config file.
type DiskConfig struct {
	Driver StorageType `mapstructure:"driver" json:"driver"`

	// Connection; opaque to the versioning layer and passed through to the client
	Key          string `mapstructure:"key" json:"key,omitempty"`
	Secret       string `mapstructure:"secret" json:"secret,omitempty"`
	Token        string `mapstructure:"token" json:"token,omitempty"`
	Region       string `mapstructure:"region" json:"region,omitempty"`
	Endpoint     string `mapstructure:"endpoint" json:"endpoint,omitempty"`
	UsePathStyle bool   `mapstructure:"use_path_style_endpoint" json:"use_path_style_endpoint,omitempty"`

	Bucket string `mapstructure:"bucket" json:"bucket"`
	Root   string `mapstructure:"root" json:"root,omitempty"`

	// URL overrides the base of public links
	URL string `mapstructure:"url" json:"url,omitempty"`
	// TemporaryURL rewrites the scheme and host of presigned links
	TemporaryURL string `mapstructure:"temporary_url" json:"temporary_url,omitempty"`

	StreamReads bool `mapstructure:"stream_reads" json:"stream_reads,omitempty"`
	// Throw selects whether operation failures propagate or are swallowed
	Throw bool `mapstructure:"throw" json:"throw,omitempty"`

	DeleteConcurrency int     `mapstructure:"delete_concurrency" json:"delete_concurrency,omitempty"`
	DeleteRateLimit   float64 `mapstructure:"delete_rate_limit" json:"delete_rate_limit,omitempty"`
}

// HasCredentials reports whether static credentials are configured
func (c DiskConfig) HasCredentials() bool {
	return c.Key != "" && c.Secret != ""
}
