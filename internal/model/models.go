// internal/model/models.go
package model

import (
	"strings"
	"time"
)

// Target identifies a repository (and optionally a branch) eligible for monitoring.
// Exactly one identifying shape is populated, depending on the source provider.
type Target struct {
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
	AppID      string `json:"appId,omitempty" yaml:"appId,omitempty"`
	FunctionID string `json:"functionId,omitempty" yaml:"functionId,omitempty"`
	SlugID     string `json:"slugId,omitempty" yaml:"slugId,omitempty"`
	ProjectKey string `json:"projectKey,omitempty" yaml:"projectKey,omitempty"`
	RepoSlug   string `json:"repoSlug,omitempty" yaml:"repoSlug,omitempty"`
	ID         int64  `json:"id,omitempty" yaml:"id,omitempty"`
	Owner      string `json:"owner,omitempty" yaml:"owner,omitempty"`
	Branch     string `json:"branch,omitempty" yaml:"branch,omitempty"`
}

// FullName returns "owner/name" for repository style targets.
func (t Target) FullName() string {
	if t.Owner == "" {
		return t.Name
	}
	return t.Owner + "/" + t.Name
}

// SyncTarget is a target as the platform records it for an organization.
type SyncTarget struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Origin      IntegrationType `json:"origin"`
	RemoteURL   string          `json:"remoteUrl,omitempty"`
	IsPrivate   bool            `json:"isPrivate"`
}

// ProjectStatus is the monitoring state of a project.
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusInactive ProjectStatus = "inactive"
)

// MonitoredProject is the platform's record of an already imported project.
type MonitoredProject struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Branch     string          `json:"branch"`
	Origin     IntegrationType `json:"origin"`
	Status     ProjectStatus   `json:"status"`
	TargetFile string          `json:"targetFile"`
}

// IsActive reports whether the project is still monitored.
func (p MonitoredProject) IsActive() bool {
	return p.Status != ProjectStatusInactive
}

// TargetFileFromName extracts the manifest path from a project name of the
// form "owner/repo(:branch):path/to/file". Returns "" when the name carries none.
func TargetFileFromName(name string) string {
	i := strings.LastIndex(name, ":")
	if i < 0 {
		return ""
	}
	return name[i+1:]
}

// RepoMetaData is what a source provider reports about a repository.
type RepoMetaData struct {
	Branch   string
	CloneURL string
	SSHURL   string
	Archived bool
	// Token is the provider credential used to clone over https.
	Token string `json:"-"`
}

// DiffResult is the reconciliation action list for one target.
type DiffResult struct {
	Import     []string
	Deactivate []MonitoredProject
}

// UpdateType is the kind of mutation applied to a project.
type UpdateType string

const (
	UpdateTypeBranch     UpdateType = "branch"
	UpdateTypeDeactivate UpdateType = "deactivate"
	UpdateTypeImport     UpdateType = "import"
	// UpdateTypeTarget marks a target whose sync failed before any project was touched.
	UpdateTypeTarget UpdateType = "target"
)

// PlannedMutation is a mutation to apply to a single project. From/To are
// computed up front so dry runs can record them without a remote call.
type PlannedMutation struct {
	ProjectID string
	Type      UpdateType
	From      string
	To        string
}

// MutationRecord is the outcome of one mutation attempt.
type MutationRecord struct {
	ProjectID    string      `json:"projectPublicId"`
	Type         UpdateType  `json:"type"`
	From         string      `json:"from"`
	To           string      `json:"to"`
	DryRun       bool        `json:"dryRun"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	Target       *SyncTarget `json:"target,omitempty"`
}

// Succeeded reports whether the record carries no error.
func (r MutationRecord) Succeeded() bool {
	return r.ErrorMessage == ""
}

// SyncResult holds the partitioned mutation outcomes of a sync.
type SyncResult struct {
	Updated []MutationRecord
	Failed  []MutationRecord
}

// Merge appends other's records to r.
func (r *SyncResult) Merge(other *SyncResult) {
	if other == nil {
		return
	}
	r.Updated = append(r.Updated, other.Updated...)
	r.Failed = append(r.Failed, other.Failed...)
}

// Tag attaches the target to every record.
func (r *SyncResult) Tag(t *SyncTarget) {
	for i := range r.Updated {
		r.Updated[i].Target = t
	}
	for i := range r.Failed {
		r.Failed[i].Target = t
	}
}

// SyncRun describes one invocation of the orchestrator over an organization.
type SyncRun struct {
	ID         string
	OrgID      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// ImportTarget is one unit of work for the import workflow.
type ImportTarget struct {
	OrgID          string   `json:"orgId" yaml:"orgId"`
	IntegrationID  string   `json:"integrationId" yaml:"integrationId"`
	Target         Target   `json:"target" yaml:"target"`
	Files          []string `json:"files,omitempty" yaml:"files,omitempty"`
	ExclusionGlobs string   `json:"exclusionGlobs,omitempty" yaml:"exclusionGlobs,omitempty"`
}

// ImportJobHandle tracks a submitted import until it reaches a terminal state.
type ImportJobHandle struct {
	PollingURL    string
	OrgID         string
	IntegrationID string
	Target        Target
}

// ImportStatus is the state of an import job or of one of its sub-targets.
type ImportStatus string

const (
	ImportStatusPending  ImportStatus = "pending"
	ImportStatusFailed   ImportStatus = "failed"
	ImportStatusComplete ImportStatus = "complete"
)

// Terminal reports whether no further polling is needed.
func (s ImportStatus) Terminal() bool {
	return s == ImportStatusFailed || s == ImportStatusComplete
}

// ImportedProject is one project produced by an import job.
type ImportedProject struct {
	TargetFile string `json:"targetFile,omitempty"`
	Success    bool   `json:"success"`
	ProjectURL string `json:"projectUrl"`
}

// ImportLog is the per-target section of an import job payload.
type ImportLog struct {
	Name     string            `json:"name"`
	Created  string            `json:"created"`
	Status   ImportStatus      `json:"status"`
	Projects []ImportedProject `json:"projects"`
}

// ImportJobStatus is the payload returned when polling an import job.
type ImportJobStatus struct {
	ID      string       `json:"id"`
	Status  ImportStatus `json:"status"`
	Created string       `json:"created"`
	Logs    []ImportLog  `json:"logs"`
}

// FailedImport reports a job or sub-target that did not produce projects.
type FailedImport struct {
	Handle   ImportJobHandle
	LogName  string
	Status   ImportStatus
	Reason   string
	Projects []ImportedProject
}

// ImportResult aggregates the outcome of polling one or more import jobs.
type ImportResult struct {
	Projects       []ImportedProject
	FailedProjects []ImportedProject
	FailedTargets  []FailedImport
}
