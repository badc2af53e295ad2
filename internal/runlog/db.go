// internal/runlog/db.go
package runlog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"scm-project-sync/internal/database"
	"scm-project-sync/internal/model"
)

// DBSink stores runs and their mutation records in Postgres.
type DBSink struct {
	dbpool *pgxpool.Pool
}

// NewDBSink creates a DBSink.
func NewDBSink(dbpool *pgxpool.Pool) *DBSink {
	return &DBSink{dbpool: dbpool}
}

// Record stores the run and all of its records in one transaction.
func (s *DBSink) Record(ctx context.Context, run model.SyncRun, res *model.SyncResult) error {
	tx, err := s.dbpool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // Rollback is a no-op if the transaction is already committed.

	if err := recordRun(ctx, database.New(tx), run, res); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func recordRun(ctx context.Context, q database.Querier, run model.SyncRun, res *model.SyncResult) error {
	id, err := uuid.Parse(run.ID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", run.ID, err)
	}
	runID := pgtype.UUID{Bytes: id, Valid: true}

	if _, err := q.CreateSyncRun(ctx, database.CreateSyncRunParams{
		ID:           runID,
		OrgID:        run.OrgID,
		DryRun:       run.DryRun,
		StartedAt:    pgtype.Timestamptz{Time: run.StartedAt, Valid: true},
		FinishedAt:   pgtype.Timestamptz{Time: run.FinishedAt, Valid: true},
		UpdatedCount: int32(len(res.Updated)),
		FailedCount:  int32(len(res.Failed)),
	}); err != nil {
		return fmt.Errorf("failed to store sync run: %w", err)
	}

	params := make([]database.CreateProjectUpdatesParams, 0, len(res.Updated)+len(res.Failed))
	for _, r := range res.Updated {
		params = append(params, toUpdateParams(runID, r))
	}
	for _, r := range res.Failed {
		params = append(params, toUpdateParams(runID, r))
	}
	if len(params) == 0 {
		return nil
	}
	if _, err := q.CreateProjectUpdates(ctx, params); err != nil {
		return fmt.Errorf("failed to store project updates: %w", err)
	}
	return nil
}

func toUpdateParams(runID pgtype.UUID, r model.MutationRecord) database.CreateProjectUpdatesParams {
	p := database.CreateProjectUpdatesParams{
		RunID:        runID,
		ProjectID:    r.ProjectID,
		UpdateType:   string(r.Type),
		FromValue:    r.From,
		ToValue:      r.To,
		DryRun:       r.DryRun,
		ErrorMessage: pgtype.Text{String: r.ErrorMessage, Valid: r.ErrorMessage != ""},
	}
	if r.Target != nil {
		p.TargetID = r.Target.ID
		p.TargetName = r.Target.DisplayName
	}
	return p
}
