// internal/bulk/executor.go
package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"scm-project-sync/internal/model"
)

const (
	// DefaultBranchConcurrency bounds in-flight branch updates.
	DefaultBranchConcurrency = 50
	// DefaultDeactivateConcurrency bounds in-flight deactivations.
	DefaultDeactivateConcurrency = 50
)

// MutateFunc applies one planned mutation remotely. It is responsible for
// time-bounding and retrying its own calls.
type MutateFunc func(ctx context.Context, m model.PlannedMutation) error

// Executor applies a homogeneous mutation to many projects with bounded
// concurrency. One item failing never stops the others.
type Executor struct {
	logger *slog.Logger
	dryRun bool
}

// NewExecutor creates an Executor. In dry run no MutateFunc is ever called.
func NewExecutor(logger *slog.Logger, dryRun bool) *Executor {
	return &Executor{logger: logger, dryRun: dryRun}
}

// DryRun reports whether the executor skips remote mutations.
func (e *Executor) DryRun() bool {
	return e.dryRun
}

// Execute runs fn for every item with at most limit calls in flight and
// returns one record per item, partitioned into succeeded and failed.
// Record order is not guaranteed to match item order.
func (e *Executor) Execute(ctx context.Context, items []model.PlannedMutation, limit int, fn MutateFunc) (succeeded, failed []model.MutationRecord) {
	if len(items) == 0 {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}

	// One slot per item; each goroutine writes only its own index.
	records := make([]model.MutationRecord, len(items))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			rec := model.MutationRecord{
				ProjectID: item.ProjectID,
				Type:      item.Type,
				From:      item.From,
				To:        item.To,
				DryRun:    e.dryRun,
			}
			if !e.dryRun {
				if err := fn(ctx, item); err != nil {
					rec.ErrorMessage = errorMessage(err)
					e.logger.Debug("Project mutation failed", "project_id", item.ProjectID, "type", item.Type, "error", err)
				}
			}
			records[i] = rec
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		if rec.Succeeded() {
			succeeded = append(succeeded, rec)
		} else {
			failed = append(failed, rec)
		}
	}
	e.logger.Debug("Batch finished", "total", len(items), "succeeded", len(succeeded), "failed", len(failed), "dry_run", e.dryRun)
	return succeeded, failed
}

// errorMessage never returns an empty string so a failed record cannot read as succeeded.
func errorMessage(err error) string {
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprintf("mutation failed (%T)", err)
}
