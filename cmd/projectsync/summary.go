// cmd/projectsync/summary.go
package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"scm-project-sync/internal/model"
	"scm-project-sync/internal/syncer"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	return table
}

func renderSyncSummary(w io.Writer, res *syncer.OrgResult) {
	records := append(append([]model.MutationRecord{}, res.Updated...), res.Failed...)
	slices.SortStableFunc(records, func(a, b model.MutationRecord) int {
		return cmp.Or(
			cmp.Compare(targetName(a.Target), targetName(b.Target)),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.ProjectID, b.ProjectID),
			cmp.Compare(a.To, b.To),
		)
	})

	if len(records) == 0 {
		fmt.Fprintln(w, "No changes.")
	} else {
		table := newTable(w, "Target", "Type", "Project", "From", "To", "Result")
		for _, r := range records {
			table.Append([]string{targetName(r.Target), string(r.Type), r.ProjectID, r.From, r.To, outcome(r)})
		}
		table.Render()
	}

	if len(res.FailedTargets) > 0 {
		table := newTable(w, "Failed target", "Error")
		for _, f := range res.FailedTargets {
			table.Append([]string{f.Target.DisplayName, f.Err.Error()})
		}
		table.Render()
	}

	table := newTable(w, "Metric", "Value")
	table.Append([]string{"Targets", strconv.Itoa(res.Targets)})
	table.Append([]string{"Updated", strconv.Itoa(len(res.Updated))})
	table.Append([]string{"Failed", strconv.Itoa(len(res.Failed))})
	table.Append([]string{"Failed targets", strconv.Itoa(len(res.FailedTargets))})
	table.Render()
}

func targetName(t *model.SyncTarget) string {
	if t == nil {
		return ""
	}
	return t.DisplayName
}

func outcome(r model.MutationRecord) string {
	switch {
	case !r.Succeeded():
		return "failed: " + r.ErrorMessage
	case r.DryRun:
		return "dry run"
	default:
		return "ok"
	}
}

func renderTargets(w io.Writer, res *syncer.DiscoveryResult) {
	table := newTable(w, "Org", "Integration", "Target", "Branch")
	for _, t := range res.Targets {
		table.Append([]string{t.OrgID, t.IntegrationID, t.Target.FullName(), t.Target.Branch})
	}
	table.Render()

	if len(res.FailedOrgs) > 0 {
		table := newTable(w, "Failed org", "Error")
		for _, f := range res.FailedOrgs {
			table.Append([]string{f.OrgID, f.Err.Error()})
		}
		table.Render()
	}
	fmt.Fprintf(w, "%d targets, %d skipped, %d failed orgs\n", len(res.Targets), res.Skipped, len(res.FailedOrgs))
}

func renderImportSummary(w io.Writer, results []orgImport) {
	table := newTable(w, "Org", "Imported", "Failed projects", "Failed targets")
	for _, r := range results {
		table.Append([]string{
			r.OrgID,
			strconv.Itoa(len(r.Result.Projects)),
			strconv.Itoa(len(r.Result.FailedProjects)),
			strconv.Itoa(len(r.Result.FailedTargets)),
		})
	}
	table.Render()

	var failed [][]string
	for _, r := range results {
		for _, f := range r.Result.FailedTargets {
			name := f.LogName
			if name == "" {
				name = f.Handle.Target.FullName()
			}
			failed = append(failed, []string{r.OrgID, name, string(f.Status), f.Reason})
		}
	}
	if len(failed) > 0 {
		table := newTable(w, "Org", "Target", "Status", "Reason")
		table.AppendBulk(failed)
		table.Render()
	}
}
