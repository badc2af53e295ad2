// internal/gitclone/cloner_test.go
package gitclone

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/model"
)

// initRepo creates a repository with one commit containing files.
func initRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestCloner_Clone(t *testing.T) {
	src := initRepo(t, map[string]string{
		"package.json":     "{}",
		"api/Gemfile.lock": "",
	})
	base := t.TempDir()
	c := New(base, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	dir, err := c.Clone(context.Background(), model.RepoMetaData{CloneURL: src, Branch: "master"})

	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	assert.Equal(t, base, filepath.Dir(dir))
	assert.FileExists(t, filepath.Join(dir, "package.json"))
	assert.FileExists(t, filepath.Join(dir, "api", "Gemfile.lock"))
}

func TestCloner_Clone_Failures(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("missing branch leaves no directory behind", func(t *testing.T) {
		src := initRepo(t, map[string]string{"go.mod": "module x"})
		base := t.TempDir()
		c := New(base, 0, logger)

		_, err := c.Clone(context.Background(), model.RepoMetaData{CloneURL: src, Branch: "does-not-exist"})

		var cloneErr *custom_errors.CloneError
		require.ErrorAs(t, err, &cloneErr)
		assert.Equal(t, src, cloneErr.URL)
		assert.Contains(t, cloneErr.Diagnostic, "does-not-exist")
		entries, err := os.ReadDir(base)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("no clone url", func(t *testing.T) {
		c := New(t.TempDir(), 0, logger)

		_, err := c.Clone(context.Background(), model.RepoMetaData{Branch: "main"})

		var cloneErr *custom_errors.CloneError
		assert.ErrorAs(t, err, &cloneErr)
	})
}

func TestAuthFor(t *testing.T) {
	assert.Nil(t, authFor(model.RepoMetaData{CloneURL: "https://github.com/a/b.git"}))
	assert.Nil(t, authFor(model.RepoMetaData{CloneURL: "/tmp/repo", Token: "t"}))
	assert.Equal(t, &http.BasicAuth{Username: "x-access-token", Password: "t"},
		authFor(model.RepoMetaData{CloneURL: "https://github.com/a/b.git", Token: "t"}))
}
