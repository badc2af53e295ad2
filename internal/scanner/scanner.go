// internal/scanner/scanner.go
package scanner

import (
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/patternmatcher"

	custom_errors "scm-project-sync/internal/errors"
)

// DefaultMaxDepth is how many directory levels below the root are scanned.
const DefaultMaxDepth = 6

// DefaultExclusionGlobs are never scanned: VCS metadata, dependency caches,
// build output and test fixtures.
var DefaultExclusionGlobs = []string{
	"**/.git",
	"**/node_modules",
	"**/bower_components",
	"**/vendor",
	"**/fixtures",
	"**/tests",
	"**/__tests__",
	"**/test",
	"**/__test__",
	"**/ci",
	"**/dist",
	"**/build",
}

// SkippedDir is a directory that could not be read during a scan.
type SkippedDir struct {
	Path string
	Err  error
}

// Result is the outcome of a scan.
type Result struct {
	// Files are manifest paths relative to the root, slash separated and sorted.
	Files   []string
	Skipped []SkippedDir
}

// Scanner finds manifest files in a checked out repository.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner.
func New(logger *slog.Logger) *Scanner {
	return &Scanner{logger: logger}
}

// Scan walks root up to maxDepth directory levels (negative means unlimited),
// pruning paths matched by exclusionGlobs and returning files whose name
// matches one of manifestPatterns.
func (s *Scanner) Scan(root string, exclusionGlobs, manifestPatterns []string, maxDepth int) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &custom_errors.FilesystemError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &custom_errors.FilesystemError{Path: root, Err: fs.ErrInvalid}
	}

	excludes, err := patternmatcher.New(cleanGlobs(exclusionGlobs))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if err != nil {
			if p == root {
				return &custom_errors.FilesystemError{Path: root, Err: err}
			}
			s.logger.Warn("Skipping unreadable path", "path", rel, "error", err)
			res.Skipped = append(res.Skipped, SkippedDir{Path: filepath.ToSlash(rel), Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		excluded, err := excludes.MatchesOrParentMatches(rel)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if excluded || (maxDepth >= 0 && depth(rel) > maxDepth) {
				return filepath.SkipDir
			}
			return nil
		}
		if excluded || !d.Type().IsRegular() {
			return nil
		}
		if matchesManifest(filepath.ToSlash(rel), manifestPatterns) {
			res.Files = append(res.Files, filepath.ToSlash(rel))
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Strings(res.Files)
	s.logger.Debug("Scan finished", "root", root, "files", len(res.Files), "skipped", len(res.Skipped))
	return res, nil
}

func depth(rel string) int {
	return strings.Count(filepath.ToSlash(rel), "/") + 1
}

func cleanGlobs(globs []string) []string {
	var out []string
	for _, g := range globs {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		out = append(out, filepath.FromSlash(g))
	}
	return out
}

// matchesManifest matches patterns without a slash against the file name and
// patterns with one against the same number of trailing path elements.
func matchesManifest(rel string, patterns []string) bool {
	name := path.Base(rel)
	parts := strings.Split(rel, "/")
	for _, p := range patterns {
		n := strings.Count(p, "/")
		if n == 0 {
			if ok, _ := path.Match(p, name); ok {
				return true
			}
			continue
		}
		if n >= len(parts) {
			continue
		}
		suffix := strings.Join(parts[len(parts)-n-1:], "/")
		if ok, _ := path.Match(p, suffix); ok {
			return true
		}
	}
	return false
}
