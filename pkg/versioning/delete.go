// Copyright 2025 S3Plus Authors
// SPDX-License-Identifier: Apache-2.0

package versioning

import (
	"context"
	"errors"
	"time"

	"github.com/szhorvath/s3plus/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"
)

// DeleteOutcome is the result of deleting one target
type DeleteOutcome struct {
	Target Target
	// DeleteMarker is true when the store answered with a delete marker,
	// either created by a soft delete or removed by a qualified one
	DeleteMarker bool
	// VersionID is the version the store reported: the new marker for soft
	// deletes, the removed version for qualified ones
	VersionID string
	Err       error
}

// DeleteReport holds per-target outcomes in target order
type DeleteReport struct {
	Outcomes []DeleteOutcome
}

// Succeeded is true only if every target was deleted
func (r *DeleteReport) Succeeded() bool {
	for _, o := range r.Outcomes {
		if o.Err != nil {
			return false
		}
	}
	return true
}

// Failed returns the outcomes that carry an error
func (r *DeleteReport) Failed() []DeleteOutcome {
	var failed []DeleteOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins every failure, or returns nil
func (r *DeleteReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Delete removes targets and reports whether all of them succeeded.
//
// Soft targets (Key, Keys) add a delete marker on versioned buckets and keep
// all prior versions. Qualified targets (Versions) permanently remove the
// pinned version; the next entry in history, if any, becomes latest.
//
// Every target is attempted even after a failure. Under PolicyPropagate the
// joined DeleteFailed errors are returned once the whole batch has run; use
// DeleteAll to learn which targets succeeded.
func (c *Controller) Delete(ctx context.Context, targets Targets) (bool, error) {
	return c.ApplyDeletePolicy(c.DeleteAll(ctx, targets))
}

// ApplyDeletePolicy turns a report from DeleteAll into the result Delete
// returns. Under PolicySuppress every failed target is logged and counted.
func (c *Controller) ApplyDeletePolicy(report *DeleteReport) (bool, error) {
	if report.Succeeded() {
		return true, nil
	}

	if c.cfg.Policy == PolicyPropagate {
		return false, report.Err()
	}
	for _, o := range report.Failed() {
		var derr *Error
		if !errors.As(o.Err, &derr) {
			derr = newError(ErrCodeDeleteFailed, o.Target.Path, o.Target.VersionID, o.Err)
		}
		_ = c.fail(opDelete, derr)
	}
	return false, nil
}

// DeleteAll runs a best-effort batch delete and returns every outcome. The
// failure policy is not applied.
func (c *Controller) DeleteAll(ctx context.Context, targets Targets) *DeleteReport {
	items := targets.items
	report := &DeleteReport{Outcomes: make([]DeleteOutcome, len(items))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.deleteConcurrency())

	for i, t := range items {
		g.Go(func() error {
			report.Outcomes[i] = c.deleteOne(gctx, t, targets.versioned)
			return nil
		})
	}
	// Workers never return errors; outcomes carry them
	_ = g.Wait()

	logger.Debug().
		Str("bucket", c.cfg.Bucket).
		Int("targets", len(items)).
		Int("failed", len(report.Failed())).
		Bool("versioned", targets.versioned).
		Msg("batch delete finished")
	return report
}

func (c *Controller) deleteOne(ctx context.Context, t Target, versioned bool) DeleteOutcome {
	start := time.Now()
	outcome := DeleteOutcome{Target: t}

	fail := func(err error) DeleteOutcome {
		outcome.Err = newError(ErrCodeDeleteFailed, t.Path, t.VersionID, err)
		recordMetric(opDelete, start, outcome.Err)
		return outcome
	}

	if versioned && !t.Qualified() {
		return fail(errVersionRequired)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail(err)
		}
	}

	input := &s3.DeleteObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(c.prefixer.PrefixPath(t.Path)),
	}
	if versioned {
		input.VersionId = aws.String(t.VersionID)
	}

	out, err := c.api.DeleteObject(ctx, input)
	if err != nil {
		return fail(err)
	}
	recordMetric(opDelete, start, nil)

	outcome.DeleteMarker = aws.ToBool(out.DeleteMarker)
	outcome.VersionID = aws.ToString(out.VersionId)
	return outcome
}
