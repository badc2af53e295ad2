// internal/platform/api.go
package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"scm-project-sync/internal/model"
)

const (
	restVersion = "2023-11-06"
	// DefaultPageSize is used for every paginated listing.
	DefaultPageSize = 100
)

// Org is an organization within a group.
type Org struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// ProjectFilter narrows a project listing.
type ProjectFilter struct {
	TargetID string
	Origin   string
	Limit    int
}

type restLinks struct {
	Next string `json:"next"`
}

type restProject struct {
	ID         string `json:"id"`
	Attributes struct {
		Name            string `json:"name"`
		Type            string `json:"type"`
		TargetFile      string `json:"target_file"`
		TargetReference string `json:"target_reference"`
		Origin          string `json:"origin"`
		Status          string `json:"status"`
	} `json:"attributes"`
}

type restTarget struct {
	ID         string `json:"id"`
	Attributes struct {
		DisplayName string `json:"display_name"`
		URL         string `json:"url"`
		IsPrivate   bool   `json:"is_private"`
		Origin      string `json:"origin"`
	} `json:"attributes"`
}

// ListProjects returns every project of an org matching filter, following pagination.
func (c *Client) ListProjects(ctx context.Context, orgID string, filter ProjectFilter) ([]model.MonitoredProject, error) {
	q := url.Values{}
	q.Set("version", restVersion)
	q.Set("limit", strconv.Itoa(pageSize(filter.Limit)))
	if filter.TargetID != "" {
		q.Set("target_id", filter.TargetID)
	}
	if filter.Origin != "" {
		q.Set("origins", filter.Origin)
	}
	next := fmt.Sprintf("/rest/orgs/%s/projects?%s", url.PathEscape(orgID), q.Encode())

	var projects []model.MonitoredProject
	for next != "" {
		resp, err := c.Request(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			Data  []restProject `json:"data"`
			Links restLinks     `json:"links"`
		}
		if err := decode(resp, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Data {
			projects = append(projects, toMonitoredProject(p))
		}
		next = page.Links.Next
	}
	return projects, nil
}

// ListTargets returns the targets of an org, optionally limited to one origin.
func (c *Client) ListTargets(ctx context.Context, orgID, origin string) ([]model.SyncTarget, error) {
	q := url.Values{}
	q.Set("version", restVersion)
	q.Set("limit", strconv.Itoa(DefaultPageSize))
	if origin != "" {
		q.Set("source_types", origin)
	}
	next := fmt.Sprintf("/rest/orgs/%s/targets?%s", url.PathEscape(orgID), q.Encode())

	var targets []model.SyncTarget
	for next != "" {
		resp, err := c.Request(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		var page struct {
			Data  []restTarget `json:"data"`
			Links restLinks    `json:"links"`
		}
		if err := decode(resp, &page); err != nil {
			return nil, err
		}
		for _, t := range page.Data {
			targets = append(targets, model.SyncTarget{
				ID:          t.ID,
				DisplayName: t.Attributes.DisplayName,
				Origin:      model.IntegrationType(t.Attributes.Origin),
				RemoteURL:   t.Attributes.URL,
				IsPrivate:   t.Attributes.IsPrivate,
			})
		}
		next = page.Links.Next
	}
	return targets, nil
}

// ListIntegrations returns the org's integrations keyed by integration type.
func (c *Client) ListIntegrations(ctx context.Context, orgID string) (map[string]string, error) {
	resp, err := c.Request(ctx, http.MethodGet, fmt.Sprintf("/v1/org/%s/integrations", url.PathEscape(orgID)), nil)
	if err != nil {
		return nil, err
	}
	integrations := make(map[string]string)
	if err := decode(resp, &integrations); err != nil {
		return nil, err
	}
	return integrations, nil
}

// ListOrgs returns every org in a group.
func (c *Client) ListOrgs(ctx context.Context, groupID string) ([]Org, error) {
	var orgs []Org
	for page := 1; ; page++ {
		path := fmt.Sprintf("/v1/group/%s/orgs?perPage=%d&page=%d", url.PathEscape(groupID), DefaultPageSize, page)
		resp, err := c.Request(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		var body struct {
			Orgs []Org `json:"orgs"`
		}
		if err := decode(resp, &body); err != nil {
			return nil, err
		}
		orgs = append(orgs, body.Orgs...)
		if len(body.Orgs) < DefaultPageSize {
			return orgs, nil
		}
	}
}

// UpdateProjectBranch points a project at a different branch.
func (c *Client) UpdateProjectBranch(ctx context.Context, orgID, projectID, branch string) error {
	if branch == "" {
		return errors.New("branch must not be empty")
	}
	path := fmt.Sprintf("/v1/org/%s/project/%s", url.PathEscape(orgID), url.PathEscape(projectID))
	_, err := c.Request(ctx, http.MethodPut, path, map[string]string{"branch": branch})
	return err
}

// DeactivateProject stops monitoring a project without deleting its history.
func (c *Client) DeactivateProject(ctx context.Context, orgID, projectID string) error {
	path := fmt.Sprintf("/v1/org/%s/project/%s/deactivate", url.PathEscape(orgID), url.PathEscape(projectID))
	_, err := c.Request(ctx, http.MethodPost, path, nil)
	return err
}

type importFile struct {
	Path string `json:"path"`
}

type importRequest struct {
	Target         model.Target `json:"target"`
	Files          []importFile `json:"files,omitempty"`
	ExclusionGlobs string       `json:"exclusionGlobs,omitempty"`
}

// ImportTarget submits an import job and returns its polling handle.
// With no files the platform discovers every manifest itself.
func (c *Client) ImportTarget(ctx context.Context, orgID, integrationID string, target model.Target, files []string, exclusionGlobs string) (model.ImportJobHandle, error) {
	body := importRequest{Target: target, ExclusionGlobs: exclusionGlobs}
	for _, f := range files {
		body.Files = append(body.Files, importFile{Path: f})
	}
	path := fmt.Sprintf("/v1/org/%s/integrations/%s/import", url.PathEscape(orgID), url.PathEscape(integrationID))
	resp, err := c.Request(ctx, http.MethodPost, path, body)
	if err != nil {
		return model.ImportJobHandle{}, err
	}
	location := resp.Header.Get("Location")
	if location == "" {
		return model.ImportJobHandle{}, fmt.Errorf("import of %s returned no polling url", target.FullName())
	}
	return model.ImportJobHandle{
		PollingURL:    location,
		OrgID:         orgID,
		IntegrationID: integrationID,
		Target:        target,
	}, nil
}

// PollImportStatus fetches the current state of an import job.
func (c *Client) PollImportStatus(ctx context.Context, pollingURL string) (*model.ImportJobStatus, error) {
	resp, err := c.Request(ctx, http.MethodGet, pollingURL, nil)
	if err != nil {
		return nil, err
	}
	var status model.ImportJobStatus
	if err := decode(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func toMonitoredProject(p restProject) model.MonitoredProject {
	status := model.ProjectStatus(p.Attributes.Status)
	if status == "" {
		status = model.ProjectStatusActive
	}
	targetFile := p.Attributes.TargetFile
	if targetFile == "" {
		targetFile = model.TargetFileFromName(p.Attributes.Name)
	}
	return model.MonitoredProject{
		ID:         p.ID,
		Name:       p.Attributes.Name,
		Type:       p.Attributes.Type,
		Branch:     p.Attributes.TargetReference,
		Origin:     model.IntegrationType(p.Attributes.Origin),
		Status:     status,
		TargetFile: targetFile,
	}
}

func pageSize(limit int) int {
	if limit <= 0 || limit > DefaultPageSize {
		return DefaultPageSize
	}
	return limit
}
