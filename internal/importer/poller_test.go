// internal/importer/poller_test.go
package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scm-project-sync/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStatusClient replays a scripted sequence of responses per polling url.
type fakeStatusClient struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     map[string]int
}

type fakeResponse struct {
	status *model.ImportJobStatus
	err    error
}

func newFakeStatusClient() *fakeStatusClient {
	return &fakeStatusClient{responses: map[string][]fakeResponse{}, calls: map[string]int{}}
}

func (f *fakeStatusClient) script(url string, responses ...fakeResponse) {
	f.responses[url] = responses
}

func (f *fakeStatusClient) PollImportStatus(_ context.Context, url string) (*model.ImportJobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rs := f.responses[url]
	i := f.calls[url]
	f.calls[url]++
	if len(rs) == 0 {
		return nil, errors.New("no scripted response")
	}
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i].status, rs[i].err
}

func (f *fakeStatusClient) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func pending() fakeResponse {
	return fakeResponse{status: &model.ImportJobStatus{Status: model.ImportStatusPending}}
}

func TestPoller_MixedSubTargets(t *testing.T) {
	client := newFakeStatusClient()
	client.script("job-1", fakeResponse{status: &model.ImportJobStatus{
		ID:     "job-1",
		Status: model.ImportStatusComplete,
		Logs: []model.ImportLog{
			{Name: "snyk/goof", Status: model.ImportStatusComplete, Projects: []model.ImportedProject{
				{TargetFile: "package.json", Success: true, ProjectURL: "https://app/p1"},
				{TargetFile: "broken/package.json", Success: false},
			}},
			{Name: "snyk/other", Status: model.ImportStatusFailed, Projects: []model.ImportedProject{
				{TargetFile: "Gemfile.lock", Success: true, ProjectURL: "https://app/p2"},
			}},
		},
	}})

	p := NewPoller(client, time.Millisecond, time.Second, discardLogger())
	res := p.Poll(context.Background(), []model.ImportJobHandle{{PollingURL: "job-1", OrgID: "org-1"}})

	require.Len(t, res.Projects, 1)
	assert.Equal(t, "https://app/p1", res.Projects[0].ProjectURL)
	require.Len(t, res.FailedProjects, 1)
	assert.Equal(t, "broken/package.json", res.FailedProjects[0].TargetFile)
	require.Len(t, res.FailedTargets, 1)
	assert.Equal(t, "snyk/other", res.FailedTargets[0].LogName)
	assert.Equal(t, model.ImportStatusFailed, res.FailedTargets[0].Status)
	assert.Equal(t, 1, client.callCount("job-1"))
}

func TestPoller_CompletesOnLaterTick(t *testing.T) {
	client := newFakeStatusClient()
	done := fakeResponse{status: &model.ImportJobStatus{
		Status: model.ImportStatusComplete,
		Logs: []model.ImportLog{{Name: "a/b", Status: model.ImportStatusComplete, Projects: []model.ImportedProject{
			{TargetFile: "go.mod", Success: true, ProjectURL: "https://app/p3"},
		}}},
	}}
	client.script("slow", pending(), pending(), done)
	client.script("fast", done)

	p := NewPoller(client, time.Millisecond, time.Second, discardLogger())
	res := p.Poll(context.Background(), []model.ImportJobHandle{{PollingURL: "slow"}, {PollingURL: "fast"}})

	assert.Len(t, res.Projects, 2)
	assert.Empty(t, res.FailedTargets)
	assert.Equal(t, 3, client.callCount("slow"))
	assert.Equal(t, 1, client.callCount("fast"), "terminal jobs are not polled again")
}

func TestPoller_Timeout(t *testing.T) {
	client := newFakeStatusClient()
	client.script("stuck", pending())
	client.script("done", fakeResponse{status: &model.ImportJobStatus{
		Status: model.ImportStatusComplete,
		Logs: []model.ImportLog{{Name: "a/b", Status: model.ImportStatusComplete, Projects: []model.ImportedProject{
			{TargetFile: "pom.xml", Success: true, ProjectURL: "https://app/p4"},
		}}},
	}})

	p := NewPoller(client, 5*time.Millisecond, 30*time.Millisecond, discardLogger())
	res := p.Poll(context.Background(), []model.ImportJobHandle{{PollingURL: "stuck"}, {PollingURL: "done"}})

	require.Len(t, res.Projects, 1, "completed jobs keep their results")
	require.Len(t, res.FailedTargets, 1)
	assert.Equal(t, "stuck", res.FailedTargets[0].Handle.PollingURL)
	assert.Equal(t, model.ImportStatusFailed, res.FailedTargets[0].Status, "a timed out job is reported as failed")
	assert.Contains(t, res.FailedTargets[0].Reason, "timed out")
}

func TestPoller_ErrorTolerance(t *testing.T) {
	t.Run("recovers from transient errors", func(t *testing.T) {
		client := newFakeStatusClient()
		boom := fakeResponse{err: errors.New("boom")}
		client.script("flaky", boom, boom, fakeResponse{status: &model.ImportJobStatus{Status: model.ImportStatusComplete}})

		p := NewPoller(client, time.Millisecond, time.Second, discardLogger())
		res := p.Poll(context.Background(), []model.ImportJobHandle{{PollingURL: "flaky"}})

		assert.Empty(t, res.FailedTargets)
		assert.Equal(t, 3, client.callCount("flaky"))
	})

	t.Run("gives up after consecutive errors", func(t *testing.T) {
		client := newFakeStatusClient()
		client.script("broken", fakeResponse{err: errors.New("boom")})

		p := NewPoller(client, time.Millisecond, time.Second, discardLogger())
		res := p.Poll(context.Background(), []model.ImportJobHandle{{PollingURL: "broken"}})

		require.Len(t, res.FailedTargets, 1)
		assert.Contains(t, res.FailedTargets[0].Reason, "polling failed: boom")
		assert.Equal(t, maxConsecutiveErrors, client.callCount("broken"))
	})
}

func TestPoller_FailedJobWithoutLogs(t *testing.T) {
	client := newFakeStatusClient()
	client.script("job", fakeResponse{status: &model.ImportJobStatus{Status: model.ImportStatusFailed}})

	p := NewPoller(client, time.Millisecond, time.Second, discardLogger())
	res := p.Poll(context.Background(), []model.ImportJobHandle{{PollingURL: "job"}})

	require.Len(t, res.FailedTargets, 1)
	assert.Equal(t, model.ImportStatusFailed, res.FailedTargets[0].Status)
}

// MockClient is a mock implementation of the Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ImportTarget(ctx context.Context, orgID, integrationID string, t model.Target, files []string, exclusionGlobs string) (model.ImportJobHandle, error) {
	args := m.Called(ctx, orgID, integrationID, t, files, exclusionGlobs)
	return args.Get(0).(model.ImportJobHandle), args.Error(1)
}

func (m *MockClient) PollImportStatus(ctx context.Context, pollingURL string) (*model.ImportJobStatus, error) {
	args := m.Called(ctx, pollingURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ImportJobStatus), args.Error(1)
}

func TestImporter_Import(t *testing.T) {
	goof := model.Target{Owner: "snyk", Name: "goof", Branch: "main"}
	other := model.Target{Owner: "snyk", Name: "other"}

	client := new(MockClient)
	client.On("ImportTarget", mock.Anything, "org-1", "int-1", goof, []string{"package.json"}, "").
		Return(model.ImportJobHandle{PollingURL: "job-goof", OrgID: "org-1", IntegrationID: "int-1", Target: goof}, nil).Once()
	client.On("ImportTarget", mock.Anything, "org-1", "int-1", other, []string(nil), "").
		Return(model.ImportJobHandle{}, errors.New("rate limited")).Once()
	client.On("PollImportStatus", mock.Anything, "job-goof").Return(&model.ImportJobStatus{
		Status: model.ImportStatusComplete,
		Logs: []model.ImportLog{{Name: "snyk/goof", Status: model.ImportStatusComplete, Projects: []model.ImportedProject{
			{TargetFile: "package.json", Success: true, ProjectURL: "https://app/p1"},
		}}},
	}, nil)

	poller := NewPoller(client, time.Millisecond, time.Second, discardLogger())
	im := New(client, poller, discardLogger(), 2)

	res := im.Import(context.Background(), []model.ImportTarget{
		{OrgID: "org-1", IntegrationID: "int-1", Target: goof, Files: []string{"package.json"}},
		{OrgID: "org-1", IntegrationID: "int-1", Target: goof, Files: []string{"package.json"}},
		{OrgID: "org-1", IntegrationID: "int-1", Target: other},
		{OrgID: "", IntegrationID: "int-1", Target: other},
	})

	require.Len(t, res.Projects, 1)
	assert.Equal(t, "https://app/p1", res.Projects[0].ProjectURL)
	require.Len(t, res.FailedTargets, 2)
	assert.Contains(t, res.FailedTargets[0].Reason, "cannot derive target identity")
	assert.Equal(t, "rate limited", res.FailedTargets[1].Reason)
	assert.Equal(t, other, res.FailedTargets[1].Handle.Target)
	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "ImportTarget", 2)
}

func TestImporter_NothingSubmitted(t *testing.T) {
	client := new(MockClient)
	im := New(client, NewPoller(client, time.Millisecond, time.Second, discardLogger()), discardLogger(), 0)

	res := im.Import(context.Background(), nil)

	assert.Empty(t, res.Projects)
	assert.Empty(t, res.FailedTargets)
	client.AssertNotCalled(t, "PollImportStatus", mock.Anything, mock.Anything)
}

func TestJoinGlobs(t *testing.T) {
	assert.Equal(t, "fixtures,**/test, vendor", JoinGlobs([]string{"fixtures", " "}, []string{"**/test, vendor"}))
	assert.Equal(t, "", JoinGlobs())
}
