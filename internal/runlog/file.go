// internal/runlog/file.go
package runlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/model"
)

const (
	updatedSuffix       = "updated-projects.log"
	failedUpdateSuffix  = "failed-to-update-projects.log"
	importedTargetsFile = "imported-targets.log"
	importedSuffix      = "imported-projects.log"
	failedProjectSuffix = "failed-projects.log"
	failedImportSuffix  = "failed-imports.log"
)

// FileSink appends JSON lines to files under a log directory.
type FileSink struct {
	dir string
}

// NewFileSink creates a FileSink writing into dir, which must exist.
func NewFileSink(dir string) (*FileSink, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &custom_errors.FilesystemError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &custom_errors.FilesystemError{Path: dir, Err: fmt.Errorf("not a directory")}
	}
	return &FileSink{dir: dir}, nil
}

// Record writes succeeded and failed mutations to
// <orgId>.updated-projects.log and <orgId>.failed-to-update-projects.log.
func (s *FileSink) Record(_ context.Context, run model.SyncRun, res *model.SyncResult) error {
	if err := s.write(orgFile(run.OrgID, updatedSuffix), func(l *slog.Logger) {
		for _, r := range res.Updated {
			l.Info("Project updated", "runId", run.ID, "orgId", run.OrgID, "update", r)
		}
	}); err != nil {
		return err
	}
	return s.write(orgFile(run.OrgID, failedUpdateSuffix), func(l *slog.Logger) {
		for _, r := range res.Failed {
			l.Error("Project update failed", "runId", run.ID, "orgId", run.OrgID, "update", r)
		}
	})
}

// RecordTargets appends discovered targets to imported-targets.log.
func (s *FileSink) RecordTargets(targets []model.ImportTarget) error {
	return s.write(importedTargetsFile, func(l *slog.Logger) {
		for _, t := range targets {
			l.Info("Target discovered", "target", t)
		}
	})
}

// RecordImport writes an org's import outcome to
// <orgId>.imported-projects.log, <orgId>.failed-projects.log and
// <orgId>.failed-imports.log.
func (s *FileSink) RecordImport(orgID string, res *model.ImportResult) error {
	if err := s.write(orgFile(orgID, importedSuffix), func(l *slog.Logger) {
		for _, p := range res.Projects {
			l.Info("Project imported", "orgId", orgID, "project", p)
		}
	}); err != nil {
		return err
	}
	if err := s.write(orgFile(orgID, failedProjectSuffix), func(l *slog.Logger) {
		for _, p := range res.FailedProjects {
			l.Error("Project import failed", "orgId", orgID, "project", p)
		}
	}); err != nil {
		return err
	}
	return s.write(orgFile(orgID, failedImportSuffix), func(l *slog.Logger) {
		for _, f := range res.FailedTargets {
			l.Error("Target import failed",
				"orgId", f.Handle.OrgID,
				"integrationId", f.Handle.IntegrationID,
				"target", f.Handle.Target,
				"log", f.LogName,
				"status", f.Status,
				"reason", f.Reason,
			)
		}
	})
}

// write opens name for appending and hands fn a JSON logger over it.
func (s *FileSink) write(name string, fn func(l *slog.Logger)) error {
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &custom_errors.FilesystemError{Path: path, Err: err}
	}
	fn(slog.New(slog.NewJSONHandler(f, nil)))
	if err := f.Close(); err != nil {
		return &custom_errors.FilesystemError{Path: path, Err: err}
	}
	return nil
}

func orgFile(orgID, suffix string) string {
	return orgID + "." + suffix
}
