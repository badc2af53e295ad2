// internal/target/identity.go
package target

import (
	"encoding/json"
	"strings"

	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/model"
)

// identifyingFields is the subset of Target that makes up its identity.
// Field order here is the serialization order and must not change.
type identifyingFields struct {
	Name       string `json:"name,omitempty"`
	AppID      string `json:"appId,omitempty"`
	FunctionID string `json:"functionId,omitempty"`
	SlugID     string `json:"slugId,omitempty"`
	ProjectKey string `json:"projectKey,omitempty"`
	RepoSlug   string `json:"repoSlug,omitempty"`
	ID         int64  `json:"id,omitempty"`
	Owner      string `json:"owner,omitempty"`
	Branch     string `json:"branch,omitempty"`
}

// Identity derives a deterministic key for a target within an org and integration.
// Targets that differ only by branch get different identities.
func Identity(orgID, integrationID string, t model.Target) (string, error) {
	if orgID == "" {
		return "", &custom_errors.IdentityError{Reason: "missing org id"}
	}
	if integrationID == "" {
		return "", &custom_errors.IdentityError{Reason: "missing integration id"}
	}
	fields := identifyingFields{
		Name:       t.Name,
		AppID:      t.AppID,
		FunctionID: t.FunctionID,
		SlugID:     t.SlugID,
		ProjectKey: t.ProjectKey,
		RepoSlug:   t.RepoSlug,
		ID:         t.ID,
		Owner:      t.Owner,
		Branch:     t.Branch,
	}
	if fields == (identifyingFields{Branch: t.Branch}) {
		return "", &custom_errors.IdentityError{Reason: "target has no identifying fields"}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", &custom_errors.IdentityError{Reason: err.Error()}
	}
	return orgID + ":" + integrationID + ":" + string(b), nil
}

// Set remembers identities seen during one generation pass.
type Set struct {
	seen map[string]struct{}
}

// NewSet returns an empty identity set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add records the target and reports whether it was new. A repeated target
// is not an error, the caller simply skips it.
func (s *Set) Add(orgID, integrationID string, t model.Target) (bool, error) {
	id, err := Identity(orgID, integrationID, t)
	if err != nil {
		return false, err
	}
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = struct{}{}
	return true, nil
}

// Len returns the number of distinct identities recorded.
func (s *Set) Len() int {
	return len(s.seen)
}

// FromProjectName derives a target from a project name of the form
// "owner/repo:path/to/manifest".
func FromProjectName(name, branch string) (model.Target, error) {
	repo, _, _ := strings.Cut(name, ":")
	owner, repoName, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || repoName == "" || strings.Contains(repoName, "/") {
		return model.Target{}, &custom_errors.ErrInvalidRepoFormat{Repo: repo}
	}
	return model.Target{Owner: owner, Name: repoName, Branch: branch}, nil
}

// FromProject builds the target for a monitored project, dispatching on its origin.
func FromProject(p model.MonitoredProject) (model.Target, error) {
	switch p.Origin {
	case model.IntegrationGitHub, model.IntegrationGitHubEnterprise, model.IntegrationBitbucketCloud:
		return FromProjectName(p.Name, p.Branch)
	default:
		return model.Target{}, &custom_errors.UnsupportedIntegrationError{Type: string(p.Origin)}
	}
}

// FromSyncTarget builds the target for a platform target record.
func FromSyncTarget(t model.SyncTarget) (model.Target, error) {
	if _, err := model.ParseIntegrationType(string(t.Origin)); err != nil {
		return model.Target{}, err
	}
	return FromProjectName(t.DisplayName, "")
}
