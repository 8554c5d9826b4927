// Package publish pushes a local directory to a Neocities site, uploading
// only the files whose content differs from the site's file list.
package publish

import (
	"context"
	"fmt"
	"strings"

	"github.com/ochronus/goneocities/internal/services/neocities"
	"github.com/ochronus/goneocities/internal/site"
	"github.com/sirupsen/logrus"
)

const DefaultBatchSize = 20

// Publisher applies plans against a site.
type Publisher struct {
	client    neocities.ClientAPI
	catalog   *site.Catalog
	logger    *logrus.Logger
	batchSize int
}

// Result summarizes an applied plan.
type Result struct {
	Uploaded      int
	UploadedBytes int64
	Deleted       int
	Unchanged     int
}

// NewPublisher creates a Publisher. The catalog is refreshed after every
// Apply that changed the site.
func NewPublisher(client neocities.ClientAPI, catalog *site.Catalog, logger *logrus.Logger, batchSize int) *Publisher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Publisher{
		client:    client,
		catalog:   catalog,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Catalog returns the catalog the publisher diffs against.
func (p *Publisher) Catalog() *site.Catalog {
	return p.catalog
}

// Plan walks dir and compares it with the catalog.
func (p *Publisher) Plan(ctx context.Context, dir string, excludes []string, workers int, deleteRemote bool) (Plan, error) {
	local, err := WalkLocal(ctx, dir, excludes, workers)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	p.logger.Debugf("scanned %d local files in %s", len(local), dir)

	plan := BuildPlan(p.catalog, local, deleteRemote)
	p.logger.Infof("plan: %d to upload, %d unchanged, %d to delete",
		len(plan.Uploads), len(plan.Unchanged), len(plan.Deletes))
	return plan, nil
}

// Apply uploads and deletes according to plan. With dryRun set nothing is sent.
func (p *Publisher) Apply(ctx context.Context, plan Plan, dryRun bool) (*Result, error) {
	result := &Result{Unchanged: len(plan.Unchanged)}

	for _, c := range plan.Uploads {
		p.logger.Debugf("[%s] %s", c.Reason, c.File.RemotePath())
	}
	for _, path := range plan.Deletes {
		p.logger.Debugf("[delete] %s", path)
	}

	if dryRun {
		p.logger.Infof("dry run: skipping %d uploads and %d deletes", len(plan.Uploads), len(plan.Deletes))
		return result, nil
	}

	for start := 0; start < len(plan.Uploads); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + p.batchSize
		if end > len(plan.Uploads) {
			end = len(plan.Uploads)
		}
		batch := plan.Uploads[start:end]

		paths := make([]neocities.UploadPath, 0, len(batch))
		var size int64
		for _, c := range batch {
			paths = append(paths, neocities.UploadPath{Local: c.File.AbsPath, Remote: c.File.RelPath})
			size += c.File.Size
		}

		body, err := p.client.UploadMultiple(paths)
		if err == nil {
			err = neocities.CheckResult(body)
		}
		if err != nil {
			return result, fmt.Errorf("failed to upload batch starting at %s: %w", batch[0].File.RemotePath(), err)
		}

		result.Uploaded += len(batch)
		result.UploadedBytes += size
		p.logger.Infof("uploaded %d/%d files", result.Uploaded, len(plan.Uploads))
	}

	if len(plan.Deletes) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		names := make([]string, 0, len(plan.Deletes))
		for _, path := range plan.Deletes {
			names = append(names, strings.TrimPrefix(path, "/"))
		}
		body, err := p.client.DeleteMultiple(names)
		if err == nil {
			err = neocities.CheckResult(body)
		}
		if err != nil {
			return result, fmt.Errorf("failed to delete %d files: %w", len(names), err)
		}
		result.Deleted = len(names)
		p.logger.Infof("deleted %d files", result.Deleted)
	}

	if plan.Empty() {
		p.logger.Info("site is up to date")
		return result, nil
	}

	if err := p.catalog.Refresh(); err != nil {
		return result, fmt.Errorf("failed to refresh site list: %w", err)
	}
	return result, nil
}
