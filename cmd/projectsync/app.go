// cmd/projectsync/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"scm-project-sync/internal/github"
	"scm-project-sync/internal/importer"
	"scm-project-sync/internal/platform"
	"scm-project-sync/internal/runlog"
	"scm-project-sync/internal/syncer"
)

const retryInterval = 500 * time.Millisecond

func (a *app) platformClient() (*platform.Client, error) {
	if err := a.cfg.RequireAPI(); err != nil {
		return nil, err
	}
	return platform.NewClient(a.cfg.APIURL, a.cfg.APIToken, a.logger,
		platform.WithTimeout(a.cfg.RequestTimeout),
		platform.WithRetries(a.cfg.MaxRetries, retryInterval),
	), nil
}

func (a *app) newImporter(client *platform.Client) *importer.Importer {
	poller := importer.NewPoller(client, a.cfg.PollInterval, a.cfg.PollTimeout, a.logger)
	return importer.New(client, poller, a.logger, a.cfg.TargetConcurrency)
}

// resolvers builds a github.com client, plus an enterprise one when a host is configured.
func (a *app) resolvers() (syncer.Resolvers, error) {
	public, err := github.NewClient(a.cfg.GithubToken, "", a.logger)
	if err != nil {
		return syncer.Resolvers{}, err
	}
	res := syncer.Resolvers{GitHub: public}
	if a.cfg.GithubHost != "" {
		ghe, err := github.NewClient(a.cfg.GithubToken, a.cfg.GithubHost, a.logger)
		if err != nil {
			return syncer.Resolvers{}, err
		}
		res.GitHubEnterprise = ghe
	}
	return res, nil
}

func (a *app) syncOptions(dryRun bool) syncer.Options {
	return syncer.Options{
		DryRun:                dryRun,
		ExclusionGlobs:        a.cfg.ExclusionGlobs,
		ManifestTypes:         a.cfg.ManifestTypes,
		Entitlements:          a.cfg.ScannerEntitlements(),
		BranchConcurrency:     a.cfg.BranchConcurrency,
		DeactivateConcurrency: a.cfg.DeactivateConcurrency,
		TargetConcurrency:     a.cfg.TargetConcurrency,
	}
}

// sinks always writes log files and also records to the database when DB_URL is set.
// The returned func releases the database pool.
func (a *app) sinks(ctx context.Context, files *runlog.FileSink) (runlog.Multi, func(), error) {
	sinks := runlog.Multi{files}
	if a.cfg.DBURL == "" {
		return sinks, func() {}, nil
	}
	dbpool, err := pgxpool.New(ctx, a.cfg.DBURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.logger.Info("Database connection established")
	return append(sinks, runlog.NewDBSink(dbpool)), dbpool.Close, nil
}
