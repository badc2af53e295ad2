// internal/runlog/sink.go
package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"scm-project-sync/internal/model"
)

// Sink persists the outcome of a sync run.
type Sink interface {
	Record(ctx context.Context, run model.SyncRun, res *model.SyncResult) error
}

// NewRun starts a run record with a fresh id.
func NewRun(orgID string, dryRun bool) model.SyncRun {
	return model.SyncRun{
		ID:        uuid.NewString(),
		OrgID:     orgID,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
	}
}

// Multi fans a run out to several sinks. Every sink is attempted.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, run model.SyncRun, res *model.SyncResult) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, run, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
