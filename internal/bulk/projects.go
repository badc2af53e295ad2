// internal/bulk/projects.go
package bulk

import (
	"context"
	"fmt"

	"scm-project-sync/internal/model"
)

// ProjectUpdater issues the remote project mutations.
type ProjectUpdater interface {
	UpdateProjectBranch(ctx context.Context, orgID, projectID, branch string) error
	DeactivateProject(ctx context.Context, orgID, projectID string) error
}

// UpdateBranches points every project at branch.
func (e *Executor) UpdateBranches(ctx context.Context, client ProjectUpdater, orgID string, projects []model.MonitoredProject, branch string, limit int) *model.SyncResult {
	items := make([]model.PlannedMutation, 0, len(projects))
	for _, p := range projects {
		items = append(items, model.PlannedMutation{
			ProjectID: p.ID,
			Type:      model.UpdateTypeBranch,
			From:      p.Branch,
			To:        branch,
		})
	}
	updated, failed := e.Execute(ctx, items, limit, func(ctx context.Context, m model.PlannedMutation) error {
		return client.UpdateProjectBranch(ctx, orgID, m.ProjectID, m.To)
	})
	return &model.SyncResult{Updated: updated, Failed: failed}
}

// Deactivate marks every project inactive.
func (e *Executor) Deactivate(ctx context.Context, client ProjectUpdater, orgID string, projects []model.MonitoredProject, limit int) *model.SyncResult {
	items := make([]model.PlannedMutation, 0, len(projects))
	for _, p := range projects {
		items = append(items, model.PlannedMutation{
			ProjectID: p.ID,
			Type:      model.UpdateTypeDeactivate,
			From:      "active",
			To:        "deactivated",
		})
	}
	updated, failed := e.Execute(ctx, items, limit, func(ctx context.Context, m model.PlannedMutation) error {
		if err := client.DeactivateProject(ctx, orgID, m.ProjectID); err != nil {
			return fmt.Errorf("could not deactivate project: %w", err)
		}
		return nil
	})
	return &model.SyncResult{Updated: updated, Failed: failed}
}

// FailAll records the same error against every project without attempting
// any mutation. Used when a target-level step fails before the batch runs.
func FailAll(projects []model.MonitoredProject, typ model.UpdateType, to string, dryRun bool, err error) []model.MutationRecord {
	records := make([]model.MutationRecord, 0, len(projects))
	for _, p := range projects {
		from := p.Branch
		if typ == model.UpdateTypeDeactivate {
			from = "active"
		}
		records = append(records, model.MutationRecord{
			ProjectID:    p.ID,
			Type:         typ,
			From:         from,
			To:           to,
			DryRun:       dryRun,
			ErrorMessage: err.Error(),
		})
	}
	return records
}
