// internal/gitclone/cloner.go
package gitclone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	custom_errors "scm-project-sync/internal/errors"
	"scm-project-sync/internal/model"
)

// DefaultDepth limits clones to the tip of the default branch.
const DefaultDepth = 1

// Cloner checks repositories out into fresh temporary directories.
type Cloner struct {
	baseDir string
	depth   int
	logger  *slog.Logger
}

// New creates a Cloner. An empty baseDir uses the system temp dir and a
// depth of 0 clones the full history.
func New(baseDir string, depth int, logger *slog.Logger) *Cloner {
	if depth < 0 {
		depth = DefaultDepth
	}
	return &Cloner{baseDir: baseDir, depth: depth, logger: logger}
}

// Clone checks out meta's default branch and returns the local path.
// The caller owns the returned directory and must remove it.
func (c *Cloner) Clone(ctx context.Context, meta model.RepoMetaData) (string, error) {
	if meta.CloneURL == "" {
		return "", &custom_errors.CloneError{Diagnostic: "repository has no clone url"}
	}
	if c.baseDir != "" {
		if err := os.MkdirAll(c.baseDir, 0o755); err != nil {
			return "", &custom_errors.FilesystemError{Path: c.baseDir, Err: err}
		}
	}
	dir, err := os.MkdirTemp(c.baseDir, "repo-*")
	if err != nil {
		return "", &custom_errors.FilesystemError{Path: c.baseDir, Err: err}
	}

	opts := &git.CloneOptions{
		URL:          meta.CloneURL,
		Auth:         authFor(meta),
		SingleBranch: true,
		Depth:        c.depth,
		Tags:         git.NoTags,
	}
	if meta.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(meta.Branch)
	}

	c.logger.Debug("Cloning repository", "url", meta.CloneURL, "branch", meta.Branch, "dir", dir)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			c.logger.Warn("Failed to remove clone directory", "dir", dir, "error", rmErr)
		}
		return "", &custom_errors.CloneError{
			URL:        meta.CloneURL,
			Diagnostic: fmt.Sprintf("failed to clone %s (branch %q): %v", meta.CloneURL, meta.Branch, err),
		}
	}
	return dir, nil
}

func authFor(meta model.RepoMetaData) transport.AuthMethod {
	if meta.Token == "" || !strings.HasPrefix(meta.CloneURL, "https://") {
		return nil
	}
	return &http.BasicAuth{Username: "x-access-token", Password: meta.Token}
}
