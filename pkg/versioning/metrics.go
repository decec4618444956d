// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for store operations
var (
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "s3plus_operation_duration_seconds",
			Help:    "Duration of versioned object operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"operation", "status"},
	)

	operationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3plus_operations_total",
			Help: "Total number of versioned object operations",
		},
		[]string{"operation", "status"},
	)

	suppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "s3plus_suppressed_errors_total",
			Help: "Failures swallowed by the suppress policy",
		},
		[]string{"operation"},
	)

	listedPages = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "s3plus_version_listing_pages",
			Help:    "Number of store pages fetched per version listing",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)
)

func init() {
	prometheus.MustRegister(
		operationDuration,
		operationTotal,
		suppressedTotal,
		listedPages,
	)
}

// Metrics returns the Prometheus collectors for versioning operations
func Metrics() []prometheus.Collector {
	return []prometheus.Collector{
		operationDuration,
		operationTotal,
		suppressedTotal,
		listedPages,
	}
}

// Operation names used as metric labels and log fields
const (
	opGet            = "get"
	opWrite          = "write"
	opExists         = "exists"
	opVersions       = "versions"
	opDelete         = "delete"
	opRestore        = "restore"
	opTemporaryURL   = "temporary_url"
	opUploadURL      = "temporary_upload_url"
	opBucketVersions = "bucket_versioning"
)

// recordMetric records timing and status for an operation
func recordMetric(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	operationDuration.WithLabelValues(operation, status).Observe(duration)
	operationTotal.WithLabelValues(operation, status).Inc()
}
