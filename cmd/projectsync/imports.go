// cmd/projectsync/imports.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"scm-project-sync/internal/model"
	"scm-project-sync/internal/runlog"
	"scm-project-sync/internal/syncer"
)

// targetFile is the document read by import and written by targets --out.
type targetFile struct {
	Targets []model.ImportTarget `yaml:"targets"`
}

func (a *app) targetsCommand() *cobra.Command {
	var (
		groupID      string
		integrations []string
		out          string
	)
	cmd := &cobra.Command{
		Use:   "targets",
		Short: "List the repositories already monitored across a group",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.targets(cmd.Context(), groupID, integrations, out)
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "public id of the group")
	cmd.Flags().StringSliceVar(&integrations, "integration", []string{string(model.IntegrationGitHub)}, "integration types to include")
	cmd.Flags().StringVar(&out, "out", "", "also write the targets to this file for import")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func (a *app) targets(ctx context.Context, groupID string, integrations []string, out string) error {
	types := make([]model.IntegrationType, 0, len(integrations))
	for _, i := range integrations {
		t, err := model.ParseIntegrationType(i)
		if err != nil {
			return err
		}
		types = append(types, t)
	}

	client, err := a.platformClient()
	if err != nil {
		return err
	}
	files, err := runlog.NewFileSink(a.cfg.LogPath)
	if err != nil {
		return err
	}

	s := syncer.NewSyncer(client, syncer.Resolvers{}, nil, nil, a.logger, a.syncOptions(false))
	res, err := s.DiscoverTargets(ctx, groupID, types)
	if err != nil {
		return err
	}
	if err := files.RecordTargets(res.Targets); err != nil {
		return err
	}
	if out != "" {
		if err := writeTargetFile(out, res.Targets); err != nil {
			return err
		}
	}

	renderTargets(a.stdout, res)
	if len(res.FailedOrgs) > 0 && a.cfg.FailOnErrors {
		return fmt.Errorf("failed to list targets for %d orgs", len(res.FailedOrgs))
	}
	return nil
}

func (a *app) importCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the targets listed in a file",
		Long:  "Read a YAML (or JSON) document with a top level \"targets\" list and import each target through its org's integration.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.importTargets(cmd.Context(), file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the targets file, - for stdin")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// orgImport is the outcome of importing one org's targets.
type orgImport struct {
	OrgID  string
	Result *model.ImportResult
}

func (a *app) importTargets(ctx context.Context, path string) error {
	targets, err := a.readTargetFile(path)
	if err != nil {
		return err
	}
	client, err := a.platformClient()
	if err != nil {
		return err
	}
	files, err := runlog.NewFileSink(a.cfg.LogPath)
	if err != nil {
		return err
	}
	imp := a.newImporter(client)

	var (
		results  []orgImport
		failures int
	)
	for _, group := range groupByOrg(targets) {
		a.logger.Info("Importing targets", "org_id", group.OrgID, "targets", len(group.Targets))
		res := imp.Import(ctx, group.Targets)
		if err := files.RecordImport(group.OrgID, res); err != nil {
			return err
		}
		failures += len(res.FailedProjects) + len(res.FailedTargets)
		results = append(results, orgImport{OrgID: group.OrgID, Result: res})
	}

	renderImportSummary(a.stdout, results)
	if failures > 0 && a.cfg.FailOnErrors {
		return fmt.Errorf("import finished with %d failures", failures)
	}
	return nil
}

func (a *app) readTargetFile(path string) ([]model.ImportTarget, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	var doc targetFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse targets file: %w", err)
	}
	if len(doc.Targets) == 0 {
		return nil, fmt.Errorf("targets file %s lists no targets", path)
	}
	for i, t := range doc.Targets {
		if t.OrgID == "" || t.IntegrationID == "" {
			return nil, fmt.Errorf("target %d: orgId and integrationId are required", i)
		}
	}
	return doc.Targets, nil
}

func writeTargetFile(path string, targets []model.ImportTarget) error {
	data, err := yaml.Marshal(targetFile{Targets: targets})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write targets file: %w", err)
	}
	return nil
}

type orgTargets struct {
	OrgID   string
	Targets []model.ImportTarget
}

// groupByOrg keeps the order in which orgs first appear.
func groupByOrg(targets []model.ImportTarget) []orgTargets {
	var groups []orgTargets
	index := make(map[string]int)
	for _, t := range targets {
		i, ok := index[t.OrgID]
		if !ok {
			i = len(groups)
			index[t.OrgID] = i
			groups = append(groups, orgTargets{OrgID: t.OrgID})
		}
		groups[i].Targets = append(groups[i].Targets, t)
	}
	return groups
}
