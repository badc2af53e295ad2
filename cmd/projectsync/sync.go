// cmd/projectsync/sync.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"scm-project-sync/internal/gitclone"
	"scm-project-sync/internal/runlog"
	"scm-project-sync/internal/syncer"
)

func (a *app) syncCommand() *cobra.Command {
	var (
		orgID     string
		targetIDs []string
		dryRun    bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile an org's projects with their repositories",
		Long:  "Update project branches to the repository default branch, deactivate projects whose manifest is gone and import manifests that are not monitored yet.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.sync(cmd.Context(), orgID, targetIDs, dryRun)
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "public id of the org to sync")
	cmd.Flags().StringSliceVar(&targetIDs, "target-id", nil, "only sync these targets")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record planned changes without applying them")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func (a *app) sync(ctx context.Context, orgID string, targetIDs []string, dryRun bool) error {
	client, err := a.platformClient()
	if err != nil {
		return err
	}
	resolvers, err := a.resolvers()
	if err != nil {
		return err
	}
	files, err := runlog.NewFileSink(a.cfg.LogPath)
	if err != nil {
		return err
	}
	sinks, closeSinks, err := a.sinks(ctx, files)
	if err != nil {
		return err
	}
	defer closeSinks()

	cloner := gitclone.New(a.cfg.CloneDir, a.cfg.CloneDepth, a.logger)
	s := syncer.NewSyncer(client, resolvers, cloner, a.newImporter(client), a.logger, a.syncOptions(dryRun))

	run := runlog.NewRun(orgID, dryRun)
	logger := a.logger.With("run_id", run.ID, "org_id", orgID, "dry_run", dryRun)
	logger.Info("Starting sync")

	res, err := s.SyncOrg(ctx, orgID, targetIDs)
	if err != nil {
		return err
	}
	run.FinishedAt = time.Now().UTC()
	if err := sinks.Record(ctx, run, res.Records()); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	logger.Info("Sync finished",
		"targets", res.Targets,
		"updated", len(res.Updated),
		"failed", len(res.Failed),
		"failed_targets", len(res.FailedTargets),
		"duration", run.FinishedAt.Sub(run.StartedAt),
	)

	renderSyncSummary(a.stdout, res)

	if failures := len(res.Failed) + len(res.FailedTargets); failures > 0 && a.cfg.FailOnErrors {
		return fmt.Errorf("sync of org %s finished with %d failures", orgID, failures)
	}
	return nil
}
