// internal/importer/importer.go
package importer

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"scm-project-sync/internal/model"
	"scm-project-sync/internal/target"
)

// DefaultSubmitConcurrency bounds concurrent import submissions.
const DefaultSubmitConcurrency = 15

// Client submits and polls import jobs.
type Client interface {
	StatusClient
	ImportTarget(ctx context.Context, orgID, integrationID string, t model.Target, files []string, exclusionGlobs string) (model.ImportJobHandle, error)
}

// Importer submits import jobs and polls them to completion.
type Importer struct {
	client      Client
	poller      *Poller
	logger      *slog.Logger
	concurrency int
}

// New creates an Importer.
func New(client Client, poller *Poller, logger *slog.Logger, concurrency int) *Importer {
	if concurrency < 1 {
		concurrency = DefaultSubmitConcurrency
	}
	return &Importer{client: client, poller: poller, logger: logger, concurrency: concurrency}
}

// Import submits every distinct target and polls all accepted jobs.
// Targets repeated within the batch are skipped. Targets that cannot be
// submitted are reported in FailedTargets with the submission error.
func (im *Importer) Import(ctx context.Context, targets []model.ImportTarget) *model.ImportResult {
	res := &model.ImportResult{}

	seen := target.NewSet()
	var unique []model.ImportTarget
	for _, t := range targets {
		added, err := seen.Add(t.OrgID, t.IntegrationID, t.Target)
		if err != nil {
			res.FailedTargets = append(res.FailedTargets, failedSubmission(t, err))
			continue
		}
		if !added {
			im.logger.Debug("Skipping duplicate import target", "org_id", t.OrgID, "target", t.Target.FullName())
			continue
		}
		unique = append(unique, t)
	}

	handles := make([]*model.ImportJobHandle, len(unique))
	errs := make([]error, len(unique))
	var g errgroup.Group
	g.SetLimit(im.concurrency)
	for i, t := range unique {
		g.Go(func() error {
			h, err := im.client.ImportTarget(ctx, t.OrgID, t.IntegrationID, t.Target, t.Files, t.ExclusionGlobs)
			if err != nil {
				errs[i] = err
				return nil
			}
			handles[i] = &h
			return nil
		})
	}
	_ = g.Wait()

	var submitted []model.ImportJobHandle
	for i, t := range unique {
		if errs[i] != nil {
			im.logger.Warn("Failed to submit import", "org_id", t.OrgID, "target", t.Target.FullName(), "error", errs[i])
			res.FailedTargets = append(res.FailedTargets, failedSubmission(t, errs[i]))
			continue
		}
		submitted = append(submitted, *handles[i])
	}
	if len(submitted) == 0 {
		return res
	}

	im.logger.Info("Polling import jobs", "jobs", len(submitted))
	polled := im.poller.Poll(ctx, submitted)
	res.Projects = append(res.Projects, polled.Projects...)
	res.FailedProjects = append(res.FailedProjects, polled.FailedProjects...)
	res.FailedTargets = append(res.FailedTargets, polled.FailedTargets...)
	im.logger.Info("Finished polling", "discovered", len(res.Projects), "failed_targets", len(res.FailedTargets))
	return res
}

// JoinGlobs merges exclusion glob lists into the comma separated form the
// import API expects.
func JoinGlobs(lists ...[]string) string {
	var all []string
	for _, l := range lists {
		for _, g := range l {
			if g = strings.TrimSpace(g); g != "" {
				all = append(all, g)
			}
		}
	}
	return strings.Join(all, ",")
}

func failedSubmission(t model.ImportTarget, err error) model.FailedImport {
	return model.FailedImport{
		Handle: model.ImportJobHandle{
			OrgID:         t.OrgID,
			IntegrationID: t.IntegrationID,
			Target:        t.Target,
		},
		Status: model.ImportStatusFailed,
		Reason: err.Error(),
	}
}
