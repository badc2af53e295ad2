// internal/diff/diff.go
package diff

import (
	"scm-project-sync/internal/model"
)

// Compute compares the manifests found in a repository against the projects
// currently monitored for it.
//
// Only active projects whose type is in allowedTypes take part: projects of
// other types belong to a different product scope and are left untouched.
// An empty scan deactivates every in-scope active project.
func Compute(scanned []string, projects []model.MonitoredProject, allowedTypes []string) model.DiffResult {
	allowed := make(map[string]struct{}, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[t] = struct{}{}
	}

	found := make(map[string]struct{}, len(scanned))
	for _, f := range scanned {
		found[f] = struct{}{}
	}

	monitored := make(map[string]struct{})
	var res model.DiffResult
	for _, p := range projects {
		if _, ok := allowed[p.Type]; !ok || !p.IsActive() {
			continue
		}
		file := targetFile(p)
		monitored[file] = struct{}{}
		if _, ok := found[file]; !ok {
			res.Deactivate = append(res.Deactivate, p)
		}
	}

	queued := make(map[string]struct{})
	for _, f := range scanned {
		if _, ok := monitored[f]; ok {
			continue
		}
		if _, ok := queued[f]; ok {
			continue
		}
		queued[f] = struct{}{}
		res.Import = append(res.Import, f)
	}
	return res
}

func targetFile(p model.MonitoredProject) string {
	if p.TargetFile != "" {
		return p.TargetFile
	}
	return model.TargetFileFromName(p.Name)
}
