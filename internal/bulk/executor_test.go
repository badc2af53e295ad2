// internal/bulk/executor_test.go
package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scm-project-sync/internal/model"
)

// MockUpdater is a mock of the ProjectUpdater interface.
type MockUpdater struct {
	mock.Mock
}

func (m *MockUpdater) UpdateProjectBranch(ctx context.Context, orgID, projectID, branch string) error {
	args := m.Called(ctx, orgID, projectID, branch)
	return args.Error(0)
}

func (m *MockUpdater) DeactivateProject(ctx context.Context, orgID, projectID string) error {
	args := m.Called(ctx, orgID, projectID)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func projects(n int) []model.MonitoredProject {
	out := make([]model.MonitoredProject, n)
	for i := range out {
		out[i] = model.MonitoredProject{ID: fmt.Sprintf("p%d", i), Branch: "master", Status: model.ProjectStatusActive}
	}
	return out
}

func TestExecutor_Execute_BoundsConcurrency(t *testing.T) {
	items := make([]model.PlannedMutation, 120)
	for i := range items {
		items[i] = model.PlannedMutation{ProjectID: fmt.Sprintf("p%d", i), Type: model.UpdateTypeBranch, From: "master", To: "main"}
	}

	var inFlight, peak int32
	fn := func(ctx context.Context, m model.PlannedMutation) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		if m.ProjectID == "p7" {
			return errors.New("boom")
		}
		return nil
	}

	succeeded, failed := NewExecutor(testLogger(), false).Execute(context.Background(), items, 50, fn)

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(50))
	assert.Len(t, succeeded, 119)
	require.Len(t, failed, 1)
	assert.Equal(t, "p7", failed[0].ProjectID)
	assert.Equal(t, "boom", failed[0].ErrorMessage)
	assert.Equal(t, "main", failed[0].To)
}

func TestExecutor_Execute_EveryItemRecordedOnce(t *testing.T) {
	items := make([]model.PlannedMutation, 37)
	for i := range items {
		items[i] = model.PlannedMutation{ProjectID: fmt.Sprintf("p%d", i)}
	}
	fn := func(ctx context.Context, m model.PlannedMutation) error {
		if len(m.ProjectID)%2 == 0 {
			return errors.New("even")
		}
		return nil
	}

	succeeded, failed := NewExecutor(testLogger(), false).Execute(context.Background(), items, 3, fn)

	seen := make(map[string]int)
	for _, r := range append(succeeded, failed...) {
		seen[r.ProjectID]++
	}
	assert.Len(t, seen, len(items))
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestExecutor_Execute_DryRun(t *testing.T) {
	items := []model.PlannedMutation{
		{ProjectID: "a", Type: model.UpdateTypeBranch, From: "master", To: "main"},
		{ProjectID: "b", Type: model.UpdateTypeBranch, From: "dev", To: "main"},
	}
	var calls int32
	fn := func(ctx context.Context, m model.PlannedMutation) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("should not be called")
	}

	succeeded, failed := NewExecutor(testLogger(), true).Execute(context.Background(), items, 50, fn)

	assert.Empty(t, failed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	require.Len(t, succeeded, 2)
	for _, r := range succeeded {
		assert.True(t, r.DryRun)
		assert.Equal(t, "main", r.To)
	}
}

func TestExecutor_Execute_EmptyErrorText(t *testing.T) {
	items := []model.PlannedMutation{{ProjectID: "a", Type: model.UpdateTypeDeactivate, From: "active", To: "deactivated"}}
	fn := func(ctx context.Context, m model.PlannedMutation) error {
		return errors.New("")
	}

	succeeded, failed := NewExecutor(testLogger(), false).Execute(context.Background(), items, 1, fn)

	assert.Empty(t, succeeded)
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].ErrorMessage)
	assert.False(t, failed[0].Succeeded())
}

func TestExecutor_Execute_Empty(t *testing.T) {
	succeeded, failed := NewExecutor(testLogger(), false).Execute(context.Background(), nil, 0, nil)
	assert.Nil(t, succeeded)
	assert.Nil(t, failed)
}

func TestExecutor_UpdateBranches(t *testing.T) {
	ctx := context.Background()
	updater := new(MockUpdater)
	updater.On("UpdateProjectBranch", ctx, "org", "p7", "main").Return(errors.New("403 forbidden"))
	updater.On("UpdateProjectBranch", ctx, "org", mock.Anything, "main").Return(nil)

	res := NewExecutor(testLogger(), false).UpdateBranches(ctx, updater, "org", projects(120), "main", DefaultBranchConcurrency)

	assert.Len(t, res.Updated, 119)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, model.MutationRecord{
		ProjectID:    "p7",
		Type:         model.UpdateTypeBranch,
		From:         "master",
		To:           "main",
		ErrorMessage: "403 forbidden",
	}, res.Failed[0])
	updater.AssertNumberOfCalls(t, "UpdateProjectBranch", 120)
}

func TestExecutor_Deactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("wraps failures", func(t *testing.T) {
		updater := new(MockUpdater)
		updater.On("DeactivateProject", ctx, "org", "p0").Return(nil).Once()
		updater.On("DeactivateProject", ctx, "org", "p1").Return(errors.New("not found")).Once()

		res := NewExecutor(testLogger(), false).Deactivate(ctx, updater, "org", projects(2), DefaultDeactivateConcurrency)

		require.Len(t, res.Updated, 1)
		assert.Equal(t, "deactivated", res.Updated[0].To)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, "could not deactivate project: not found", res.Failed[0].ErrorMessage)
		updater.AssertExpectations(t)
	})

	t.Run("dry run issues no calls", func(t *testing.T) {
		updater := new(MockUpdater)

		res := NewExecutor(testLogger(), true).Deactivate(ctx, updater, "org", projects(3), DefaultDeactivateConcurrency)

		assert.Len(t, res.Updated, 3)
		assert.Empty(t, res.Failed)
		updater.AssertNotCalled(t, "DeactivateProject", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestFailAll(t *testing.T) {
	recs := FailAll(projects(2), model.UpdateTypeDeactivate, "deactivated", false, errors.New("clone failed"))

	require.Len(t, recs, 2)
	assert.Equal(t, "active", recs[0].From)
	assert.Equal(t, "clone failed", recs[1].ErrorMessage)
	assert.False(t, recs[0].Succeeded())
}
