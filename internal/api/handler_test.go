// internal/api/handler_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scm-project-sync/internal/database"
)

// MockQuerier is a mock of the database.Querier interface.
type MockQuerier struct {
	mock.Mock
}

func (m *MockQuerier) CreateProjectUpdates(ctx context.Context, arg []database.CreateProjectUpdatesParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockQuerier) CreateSyncRun(ctx context.Context, arg database.CreateSyncRunParams) (database.SyncRun, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(database.SyncRun), args.Error(1)
}
func (m *MockQuerier) GetSyncRun(ctx context.Context, id pgtype.UUID) (database.SyncRun, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(database.SyncRun), args.Error(1)
}
func (m *MockQuerier) ListProjectUpdates(ctx context.Context, arg database.ListProjectUpdatesParams) ([]database.ProjectUpdate, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.ProjectUpdate), args.Error(1)
}
func (m *MockQuerier) ListSyncRuns(ctx context.Context, arg database.ListSyncRunsParams) ([]database.SyncRun, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).([]database.SyncRun), args.Error(1)
}

var (
	testRunUUID = uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	testRunID   = pgtype.UUID{Bytes: testRunUUID, Valid: true}
	testStarted = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func testRun() database.SyncRun {
	return database.SyncRun{
		ID:           testRunID,
		OrgID:        "org-1",
		StartedAt:    pgtype.Timestamptz{Time: testStarted, Valid: true},
		FinishedAt:   pgtype.Timestamptz{Time: testStarted.Add(time.Minute), Valid: true},
		UpdatedCount: 2,
		FailedCount:  1,
	}
}

func serve(t *testing.T, db database.Querier, target string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	rec := serve(t, new(MockQuerier), "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListRuns(t *testing.T) {
	t.Run("filters by org", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("ListSyncRuns", mock.Anything, database.ListSyncRunsParams{OrgID: "org-1", RowLimit: 5}).
			Return([]database.SyncRun{testRun()}, nil).Once()

		rec := serve(t, mockQ, "/v1/runs?org_id=org-1&limit=5")

		require.Equal(t, http.StatusOK, rec.Code)
		var runs []Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, testRunUUID.String(), runs[0].ID)
		assert.Equal(t, int32(1), runs[0].FailedCount)
		mockQ.AssertExpectations(t)
	})

	t.Run("rejects a bad limit", func(t *testing.T) {
		mockQ := new(MockQuerier)

		rec := serve(t, mockQ, "/v1/runs?limit=1000")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockQ.AssertNotCalled(t, "ListSyncRuns", mock.Anything, mock.Anything)
	})

	t.Run("returns an empty list", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("ListSyncRuns", mock.Anything, database.ListSyncRunsParams{RowLimit: defaultRunLimit}).
			Return([]database.SyncRun(nil), nil).Once()

		rec := serve(t, mockQ, "/v1/runs")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestGetRun(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("GetSyncRun", mock.Anything, testRunID).Return(testRun(), nil).Once()

		rec := serve(t, mockQ, "/v1/runs/"+testRunUUID.String())

		require.Equal(t, http.StatusOK, rec.Code)
		var run Run
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
		assert.Equal(t, "org-1", run.OrgID)
		assert.True(t, testStarted.Equal(run.StartedAt))
	})

	t.Run("not found", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("GetSyncRun", mock.Anything, testRunID).Return(database.SyncRun{}, pgx.ErrNoRows).Once()

		rec := serve(t, mockQ, "/v1/runs/"+testRunUUID.String())

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := serve(t, new(MockQuerier), "/v1/runs/not-a-uuid")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("database error", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("GetSyncRun", mock.Anything, testRunID).Return(database.SyncRun{}, errors.New("connection reset")).Once()

		rec := serve(t, mockQ, "/v1/runs/"+testRunUUID.String())

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	})
}

func TestListUpdates(t *testing.T) {
	t.Run("failed updates", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("GetSyncRun", mock.Anything, testRunID).Return(testRun(), nil).Once()
		mockQ.On("ListProjectUpdates", mock.Anything, database.ListProjectUpdatesParams{RunID: testRunID, Status: "failed"}).
			Return([]database.ProjectUpdate{{
				ID: 1, RunID: testRunID, ProjectID: "p7", UpdateType: "branch", FromValue: "master", ToValue: "main",
				ErrorMessage: pgtype.Text{String: "boom", Valid: true}, TargetID: "t1", TargetName: "snyk/goof",
			}}, nil).Once()

		rec := serve(t, mockQ, "/v1/runs/"+testRunUUID.String()+"/updates?status=failed")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[{"projectPublicId":"p7","type":"branch","from":"master","to":"main","dryRun":false,
			"errorMessage":"boom","targetId":"t1","targetName":"snyk/goof"}]`, rec.Body.String())
		mockQ.AssertExpectations(t)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		mockQ := new(MockQuerier)

		rec := serve(t, mockQ, "/v1/runs/"+testRunUUID.String()+"/updates?status=pending")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		mockQ.AssertNotCalled(t, "GetSyncRun", mock.Anything, mock.Anything)
	})

	t.Run("unknown run", func(t *testing.T) {
		mockQ := new(MockQuerier)
		mockQ.On("GetSyncRun", mock.Anything, testRunID).Return(database.SyncRun{}, pgx.ErrNoRows).Once()

		rec := serve(t, mockQ, "/v1/runs/"+testRunUUID.String()+"/updates")

		assert.Equal(t, http.StatusNotFound, rec.Code)
		mockQ.AssertNotCalled(t, "ListProjectUpdates", mock.Anything, mock.Anything)
	})
}
