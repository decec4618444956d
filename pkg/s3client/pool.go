// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3client provides a connection pool for S3 clients.
// Disks that point at the same endpoint with the same credentials share a client.
package s3client

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/szhorvath/s3plus/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/sha256-simd"
)

// Config holds configuration for connecting to an S3 service.
// Without AccessKeyID and SecretAccessKey the SDK default credential chain is used.
type Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// cacheKey identifies clients that can be shared. Secret and session token
// only enter the key as a digest.
func (c *Config) cacheKey() string {
	secret := sha256.Sum256([]byte(c.SecretAccessKey + "\x00" + c.SessionToken))
	return fmt.Sprintf("%s|%s|%s|%t|%s", c.Endpoint, c.Region, c.AccessKeyID, c.PathStyle, hex.EncodeToString(secret[:]))
}

// Pool manages a pool of S3 clients for different endpoints.
type Pool struct {
	mu      sync.RWMutex
	clients map[string]*s3.Client
	timeout time.Duration
	maxIdle int

	// Shared HTTP client for connection reuse. Buildable so the SDK can
	// apply AWS_CA_BUNDLE and other transport options on top.
	httpClient *awshttp.BuildableClient
}

// NewPool creates a new client pool with the given timeout and max idle connections.
func NewPool(timeout time.Duration, maxIdleConns int) *Pool {
	if timeout == 0 {
		timeout = 5 * time.Minute
	}
	if maxIdleConns == 0 {
		maxIdleConns = 100
	}

	perHost := maxIdleConns / 10
	if perHost < 1 {
		perHost = 1
	}

	return &Pool{
		clients: make(map[string]*s3.Client),
		timeout: timeout,
		maxIdle: maxIdleConns,
		httpClient: awshttp.NewBuildableClient().
			WithTimeout(timeout).
			WithTransportOptions(func(t *http.Transport) {
				t.Proxy = http.ProxyFromEnvironment
				t.MaxIdleConns = maxIdleConns
				t.MaxIdleConnsPerHost = perHost
				t.IdleConnTimeout = 90 * time.Second
			}),
	}
}

// GetClient returns an S3 client configured for the given config.
func (p *Pool) GetClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	cacheKey := cfg.cacheKey()

	p.mu.RLock()
	client, exists := p.clients[cacheKey]
	p.mu.RUnlock()
	if exists {
		return client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if client, exists := p.clients[cacheKey]; exists {
		return client, nil
	}

	client, err := p.createClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	p.clients[cacheKey] = client

	logger.Debug().
		Str("endpoint", cfg.Endpoint).
		Str("region", cfg.Region).
		Bool("path_style", cfg.PathStyle).
		Msg("Created new S3 client")

	return client, nil
}

// Len returns the number of cached clients
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clients)
}

// createClient creates a new S3 client for the given config.
func (p *Pool) createClient(ctx context.Context, cfg *Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(p.httpClient),
	}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Opts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.PathStyle
		},
	}
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// Close closes the client pool and releases resources.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.clients = make(map[string]*s3.Client)
	if c, ok := any(p.httpClient).(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}

	return nil
}
