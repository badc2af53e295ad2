// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"scm-project-sync/internal/bulk"
	"scm-project-sync/internal/diff"
	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/importer"
	"scm-project-sync/internal/model"
	"scm-project-sync/internal/platform"
	"scm-project-sync/internal/scanner"
	"scm-project-sync/internal/target"
)

const (
	// DefaultTargetConcurrency is the number of targets synced in parallel.
	DefaultTargetConcurrency = 15

	projectPageSize = 100
)

// PlatformClient is the subset of the platform API the syncer drives.
type PlatformClient interface {
	bulk.ProjectUpdater
	ListProjects(ctx context.Context, orgID string, filter platform.ProjectFilter) ([]model.MonitoredProject, error)
	ListTargets(ctx context.Context, orgID, origin string) ([]model.SyncTarget, error)
	ListIntegrations(ctx context.Context, orgID string) (map[string]string, error)
	ListOrgs(ctx context.Context, groupID string) ([]platform.Org, error)
}

// MetadataResolver looks up a repository's default branch and clone url.
type MetadataResolver interface {
	RepoMetaData(ctx context.Context, t model.Target) (model.RepoMetaData, error)
}

// Cloner checks a repository out into a directory owned by the caller.
type Cloner interface {
	Clone(ctx context.Context, meta model.RepoMetaData) (string, error)
}

// Importer submits import jobs and waits for them to finish.
type Importer interface {
	Import(ctx context.Context, targets []model.ImportTarget) *model.ImportResult
}

// Resolvers holds one metadata resolver per integration type that supports sync.
type Resolvers struct {
	GitHub           MetadataResolver
	GitHubEnterprise MetadataResolver
}

// Options tunes a sync run.
type Options struct {
	DryRun                bool
	ExclusionGlobs        []string
	ManifestTypes         []string
	Entitlements          []scanner.Entitlement
	MaxDepth              int
	BranchConcurrency     int
	DeactivateConcurrency int
	TargetConcurrency     int
}

// Syncer reconciles monitored projects with the manifests present in their repositories.
type Syncer struct {
	client    PlatformClient
	resolvers Resolvers
	cloner    Cloner
	importer  Importer
	scanner   *scanner.Scanner
	executor  *bulk.Executor
	logger    *slog.Logger
	opts      Options

	allowedTypes     []string
	manifestPatterns []string
	exclusionGlobs   []string
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(client PlatformClient, resolvers Resolvers, cloner Cloner, imp Importer, logger *slog.Logger, opts Options) *Syncer {
	if opts.BranchConcurrency < 1 {
		opts.BranchConcurrency = bulk.DefaultBranchConcurrency
	}
	if opts.DeactivateConcurrency < 1 {
		opts.DeactivateConcurrency = bulk.DefaultDeactivateConcurrency
	}
	if opts.TargetConcurrency < 1 {
		opts.TargetConcurrency = DefaultTargetConcurrency
	}
	if opts.MaxDepth == 0 {
		opts.MaxDepth = scanner.DefaultMaxDepth
	}
	if len(opts.Entitlements) == 0 {
		opts.Entitlements = []scanner.Entitlement{scanner.EntitlementOpenSource}
	}

	allowed := scanner.ResolveProjectTypes(opts.ManifestTypes, opts.Entitlements)
	globs := append(append([]string{}, scanner.DefaultExclusionGlobs...), opts.ExclusionGlobs...)

	return &Syncer{
		client:           client,
		resolvers:        resolvers,
		cloner:           cloner,
		importer:         imp,
		scanner:          scanner.New(logger),
		executor:         bulk.NewExecutor(logger, opts.DryRun),
		logger:           logger,
		opts:             opts,
		allowedTypes:     allowed,
		manifestPatterns: scanner.SupportedManifests(allowed, opts.Entitlements),
		exclusionGlobs:   globs,
	}
}

// TargetFailure is a target whose sync could not start.
type TargetFailure struct {
	Target model.SyncTarget
	Err    error
}

// OrgResult is the merged outcome of syncing every target of an org.
type OrgResult struct {
	model.SyncResult
	FailedTargets []TargetFailure
	Targets       int
}

// Records returns the mutation records plus one failed record per failed
// target, in the shape the run sinks persist.
func (r *OrgResult) Records() *model.SyncResult {
	out := &model.SyncResult{
		Updated: append([]model.MutationRecord{}, r.Updated...),
		Failed:  append([]model.MutationRecord{}, r.Failed...),
	}
	for _, f := range r.FailedTargets {
		t := f.Target
		out.Failed = append(out.Failed, model.MutationRecord{
			Type:         model.UpdateTypeTarget,
			ErrorMessage: errorMessage(f.Err),
			Target:       &t,
		})
	}
	return out
}

func errorMessage(err error) string {
	if err == nil || err.Error() == "" {
		return "target sync failed"
	}
	return err.Error()
}

// SyncOrg syncs the org's targets with at most TargetConcurrency in flight.
// When targetIDs is non-empty only those targets are synced. A target that
// fails entirely is reported in FailedTargets and never stops its siblings.
func (s *Syncer) SyncOrg(ctx context.Context, orgID string, targetIDs []string) (*OrgResult, error) {
	logger := s.logger.With("org_id", orgID)

	all, err := s.client.ListTargets(ctx, orgID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list targets for org %s: %w", orgID, err)
	}
	targets := selectTargets(all, targetIDs)
	logger.Info("Starting org sync", "targets", len(targets), "concurrency", s.opts.TargetConcurrency, "dry_run", s.opts.DryRun)

	results := make([]*model.SyncResult, len(targets))
	errs := make([]error, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.TargetConcurrency)
	for i, t := range targets {
		g.Go(func() error {
			if gctx.Err() != nil {
				errs[i] = gctx.Err()
				return nil
			}
			res, err := s.SyncTarget(gctx, orgID, t)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Failed to sync target", "target", t.DisplayName, "error", err)
				}
				errs[i] = err
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := &OrgResult{Targets: len(targets)}
	for i, t := range targets {
		if errs[i] != nil {
			out.FailedTargets = append(out.FailedTargets, TargetFailure{Target: t, Err: errs[i]})
			continue
		}
		out.Merge(results[i])
	}
	logger.Info("Org sync finished", "updated", len(out.Updated), "failed", len(out.Failed), "failed_targets", len(out.FailedTargets))
	return out, nil
}

// SyncTarget reconciles one target: its projects are moved to the default
// branch, projects whose manifest disappeared are deactivated and new
// manifests are imported. Only a failure to list the target's projects is
// returned as an error; every later failure is recorded per project.
func (s *Syncer) SyncTarget(ctx context.Context, orgID string, t model.SyncTarget) (*model.SyncResult, error) {
	logger := s.logger.With("org_id", orgID, "target", t.DisplayName)
	logger.Info("Syncing target")

	projects, err := s.client.ListProjects(ctx, orgID, platform.ProjectFilter{TargetID: t.ID, Limit: projectPageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects for target %s: %w", t.DisplayName, err)
	}

	res := &model.SyncResult{}
	defer res.Tag(&t)

	origin := t.Origin
	if origin == "" && len(projects) > 0 {
		origin = projects[0].Origin
	}
	tgt, err := deriveTarget(t, projects)
	if err != nil {
		if len(projects) == 0 {
			return nil, err
		}
		res.Failed = bulk.FailAll(active(projects), model.UpdateTypeBranch, "", s.opts.DryRun, err)
		return res, nil
	}

	if len(projects) == 0 {
		logger.Info("Target has no projects, importing it")
		res.Merge(s.importFiles(ctx, orgID, origin, tgt, nil))
		return res, nil
	}

	meta, err := s.resolveMetaData(ctx, origin, tgt)
	if err != nil {
		logger.Warn("Failed to resolve repository metadata", "error", err)
		res.Failed = bulk.FailAll(active(projects), model.UpdateTypeBranch, "", s.opts.DryRun, err)
		return res, nil
	}
	logger = logger.With("default_branch", meta.Branch)

	if meta.Archived {
		logger.Info("Repository is archived, deactivating its projects")
		res.Merge(s.executor.Deactivate(ctx, s.client, orgID, active(projects), s.opts.DeactivateConcurrency))
		return res, nil
	}

	var toDeactivate []model.MonitoredProject
	var toImport []string
	d, err := s.analyze(ctx, meta, projects)
	if err != nil {
		logger.Warn("Failed to analyze repository", "error", err)
		res.Failed = append(res.Failed, bulk.FailAll(inScope(projects, s.allowedTypes), model.UpdateTypeDeactivate, "deactivated", s.opts.DryRun, err)...)
	} else {
		toDeactivate, toImport = d.Deactivate, d.Import
	}

	toUpdate := branchCandidates(projects, toDeactivate, meta.Branch)
	logger.Info("Reconciliation planned", "branch_updates", len(toUpdate), "deactivations", len(toDeactivate), "imports", len(toImport))

	var branchRes, deactivateRes *model.SyncResult
	var g errgroup.Group
	g.Go(func() error {
		branchRes = s.executor.UpdateBranches(ctx, s.client, orgID, toUpdate, meta.Branch, s.opts.BranchConcurrency)
		return nil
	})
	g.Go(func() error {
		deactivateRes = s.executor.Deactivate(ctx, s.client, orgID, toDeactivate, s.opts.DeactivateConcurrency)
		return nil
	})
	_ = g.Wait()
	res.Merge(branchRes)
	res.Merge(deactivateRes)

	if len(toImport) > 0 {
		tgt.Branch = meta.Branch
		res.Merge(s.importFiles(ctx, orgID, origin, tgt, toImport))
	}
	return res, nil
}

// analyze clones the repository, scans it and diffs the manifests against
// projects. The clone is always removed before returning.
func (s *Syncer) analyze(ctx context.Context, meta model.RepoMetaData, projects []model.MonitoredProject) (model.DiffResult, error) {
	dir, err := s.cloner.Clone(ctx, meta)
	if err != nil {
		return model.DiffResult{}, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("Failed to remove clone", "dir", dir, "error", err)
		}
	}()

	scan, err := s.scanner.Scan(dir, s.exclusionGlobs, s.manifestPatterns, s.opts.MaxDepth)
	if err != nil {
		return model.DiffResult{}, err
	}
	return diff.Compute(scan.Files, projects, s.allowedTypes), nil
}

func (s *Syncer) resolveMetaData(ctx context.Context, origin model.IntegrationType, t model.Target) (model.RepoMetaData, error) {
	var r MetadataResolver
	switch origin {
	case model.IntegrationGitHub:
		r = s.resolvers.GitHub
	case model.IntegrationGitHubEnterprise:
		r = s.resolvers.GitHubEnterprise
	default:
		return model.RepoMetaData{}, &custom_errors.UnsupportedIntegrationError{Type: string(origin)}
	}
	if r == nil {
		return model.RepoMetaData{}, fmt.Errorf("no metadata resolver configured for %s", origin)
	}
	return r.RepoMetaData(ctx, t)
}

// importFiles imports files of tgt (all manifests when files is nil) and
// turns the outcome into mutation records.
func (s *Syncer) importFiles(ctx context.Context, orgID string, origin model.IntegrationType, tgt model.Target, files []string) *model.SyncResult {
	res := &model.SyncResult{}
	if s.opts.DryRun {
		if files == nil {
			res.Updated = append(res.Updated, importRecord("", tgt.FullName(), true, ""))
		}
		for _, f := range files {
			res.Updated = append(res.Updated, importRecord("", f, true, ""))
		}
		return res
	}

	fail := func(err error) *model.SyncResult {
		if files == nil {
			res.Failed = append(res.Failed, importRecord("", tgt.FullName(), false, err.Error()))
		}
		for _, f := range files {
			res.Failed = append(res.Failed, importRecord("", f, false, err.Error()))
		}
		return res
	}

	integrations, err := s.client.ListIntegrations(ctx, orgID)
	if err != nil {
		return fail(fmt.Errorf("failed to list integrations: %w", err))
	}
	integrationID, ok := integrations[string(origin)]
	if !ok {
		return fail(fmt.Errorf("org has no %s integration", origin))
	}

	out := s.importer.Import(ctx, []model.ImportTarget{{
		OrgID:          orgID,
		IntegrationID:  integrationID,
		Target:         tgt,
		Files:          files,
		ExclusionGlobs: importer.JoinGlobs(scanner.DefaultExclusionGlobs, s.opts.ExclusionGlobs),
	}})
	for _, p := range out.Projects {
		res.Updated = append(res.Updated, importRecord(p.ProjectURL, p.TargetFile, false, ""))
	}
	for _, p := range out.FailedProjects {
		res.Failed = append(res.Failed, importRecord(p.ProjectURL, p.TargetFile, false, "project import failed"))
	}
	for _, f := range out.FailedTargets {
		to := f.LogName
		if to == "" {
			to = f.Handle.Target.FullName()
		}
		res.Failed = append(res.Failed, importRecord("", to, false, f.Reason))
	}
	return res
}

func importRecord(projectID, to string, dryRun bool, errMsg string) model.MutationRecord {
	return model.MutationRecord{
		ProjectID:    projectID,
		Type:         model.UpdateTypeImport,
		To:           to,
		DryRun:       dryRun,
		ErrorMessage: errMsg,
	}
}

// deriveTarget prefers the platform's target record and falls back to the
// name of one of its projects.
func deriveTarget(t model.SyncTarget, projects []model.MonitoredProject) (model.Target, error) {
	tgt, err := target.FromSyncTarget(t)
	if err == nil || len(projects) == 0 {
		return tgt, err
	}
	tgt, perr := target.FromProject(projects[0])
	if perr != nil {
		return model.Target{}, err
	}
	tgt.Branch = ""
	return tgt, nil
}

// branchCandidates returns the active projects that stay monitored and are
// not already on branch.
func branchCandidates(projects, deactivate []model.MonitoredProject, branch string) []model.MonitoredProject {
	skip := make(map[string]struct{}, len(deactivate))
	for _, p := range deactivate {
		skip[p.ID] = struct{}{}
	}
	var out []model.MonitoredProject
	for _, p := range projects {
		if _, ok := skip[p.ID]; ok || !p.IsActive() || p.Branch == branch {
			continue
		}
		out = append(out, p)
	}
	return out
}

func active(projects []model.MonitoredProject) []model.MonitoredProject {
	var out []model.MonitoredProject
	for _, p := range projects {
		if p.IsActive() {
			out = append(out, p)
		}
	}
	return out
}

func inScope(projects []model.MonitoredProject, types []string) []model.MonitoredProject {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	var out []model.MonitoredProject
	for _, p := range active(projects) {
		if _, ok := allowed[p.Type]; ok {
			out = append(out, p)
		}
	}
	return out
}

func selectTargets(all []model.SyncTarget, ids []string) []model.SyncTarget {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []model.SyncTarget
	for _, t := range all {
		if !t.Origin.SupportsSync() {
			continue
		}
		if _, ok := want[t.ID]; len(want) > 0 && !ok {
			continue
		}
		out = append(out, t)
	}
	return out
}
