// internal/syncer/targets.go
package syncer

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"scm-project-sync/internal/model"
	"scm-project-sync/internal/platform"
	"scm-project-sync/internal/target"
)

// OrgFailure is an org whose projects could not be listed.
type OrgFailure struct {
	OrgID string
	Err   error
}

// DiscoveryResult lists the distinct import targets found across a group.
type DiscoveryResult struct {
	Targets    []model.ImportTarget
	FailedOrgs []OrgFailure
	Skipped    int
}

// DiscoverTargets derives one import target per distinct repository (and
// branch) already monitored in the group's orgs for the given integration
// types. Orgs are processed with at most TargetConcurrency in flight.
func (s *Syncer) DiscoverTargets(ctx context.Context, groupID string, types []model.IntegrationType) (*DiscoveryResult, error) {
	orgs, err := s.client.ListOrgs(ctx, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs for group %s: %w", groupID, err)
	}
	s.logger.Info("Discovering targets", "group_id", groupID, "orgs", len(orgs))

	perOrg := make([][]model.ImportTarget, len(orgs))
	errs := make([]error, len(orgs))

	var g errgroup.Group
	g.SetLimit(s.opts.TargetConcurrency)
	for i, org := range orgs {
		g.Go(func() error {
			perOrg[i], errs[i] = s.orgTargets(ctx, org, types)
			return nil
		})
	}
	_ = g.Wait()

	res := &DiscoveryResult{}
	seen := target.NewSet()
	for i, org := range orgs {
		if errs[i] != nil {
			s.logger.Error("Failed to discover targets for org", "org_id", org.ID, "error", errs[i])
			res.FailedOrgs = append(res.FailedOrgs, OrgFailure{OrgID: org.ID, Err: errs[i]})
			continue
		}
		for _, t := range perOrg[i] {
			added, err := seen.Add(t.OrgID, t.IntegrationID, t.Target)
			if err != nil {
				s.logger.Warn("Skipping target without identity", "org_id", t.OrgID, "error", err)
				res.Skipped++
				continue
			}
			if added {
				res.Targets = append(res.Targets, t)
			}
		}
	}
	s.logger.Info("Target discovery finished", "targets", len(res.Targets), "failed_orgs", len(res.FailedOrgs))
	return res, nil
}

func (s *Syncer) orgTargets(ctx context.Context, org platform.Org, types []model.IntegrationType) ([]model.ImportTarget, error) {
	integrations, err := s.client.ListIntegrations(ctx, org.ID)
	if err != nil {
		return nil, err
	}

	var out []model.ImportTarget
	for _, typ := range types {
		integrationID, ok := integrations[string(typ)]
		if !ok {
			continue
		}
		projects, err := s.client.ListProjects(ctx, org.ID, platform.ProjectFilter{Origin: string(typ), Limit: projectPageSize})
		if err != nil {
			return nil, err
		}
		for _, p := range projects {
			if p.Origin != typ {
				continue
			}
			t, err := target.FromProject(p)
			if err != nil {
				s.logger.Debug("Skipping project", "org_id", org.ID, "project_id", p.ID, "error", err)
				continue
			}
			out = append(out, model.ImportTarget{OrgID: org.ID, IntegrationID: integrationID, Target: t})
		}
	}
	return out, nil
}
