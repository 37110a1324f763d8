package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/gitignore"
)

// ignoredSuffixes are repository housekeeping files that never describe an artifact.
var ignoredSuffixes = []string{
	".sha1", ".sha256", ".sha512", ".md5", ".asc", ".sig",
	".lastUpdated", ".tmp", ".part", ".properties",
}

// snapshotTimestamp matches the timestamp-build suffix of deployed snapshots.
var snapshotTimestamp = regexp.MustCompile(`^\d{8}\.\d{6}-\d+`)

// Scanner discovers artifacts in a repository directory tree.
type Scanner struct {
	logger *slog.Logger
}

// New creates a Scanner that logs to logger, or slog.Default when nil.
func New(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{logger: logger}
}

// Scan walks the repository in lexical order and calls req.Visit once per artifact.
// A missing root or subtree yields a repository-not-found error.
func (s *Scanner) Scan(ctx context.Context, req Request) (*Result, error) {
	if req.Visit == nil {
		return nil, errors.New("visit function is required")
	}

	absRoot, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("invalid repository root: %w", err)
	}
	if st, err := os.Stat(absRoot); err != nil || !st.IsDir() {
		return nil, ierrors.RepositoryNotFoundError(absRoot)
	}

	start := absRoot
	if req.FromPath != "" {
		start = req.FromPath
		if !filepath.IsAbs(start) {
			start = filepath.Join(absRoot, start)
		}
		rel, err := filepath.Rel(absRoot, start)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, ierrors.New(ierrors.ErrCodeInvalidPath,
				fmt.Sprintf("scan path %s is outside repository %s", req.FromPath, absRoot), err)
		}
		if _, err := os.Stat(start); err != nil {
			return nil, ierrors.RepositoryNotFoundError(start)
		}
	}

	exclude, err := NewExcluder(absRoot, req.Exclude)
	if err != nil {
		s.logger.Warn("ignore_file_unreadable",
			slog.String("root", absRoot),
			slog.String("error", err.Error()))
	}

	began := time.Now()
	res := &Result{}
	w := walk{root: absRoot, req: req, exclude: exclude, res: res}
	if err := s.walkDir(ctx, &w, start); err != nil {
		return res, err
	}
	res.Duration = time.Since(began)

	s.logger.Debug("scan_complete",
		slog.String("root", absRoot),
		slog.Int("directories", res.Directories),
		slog.Int("artifacts", res.Discovered),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// walk carries the state of one Scan through the recursion.
type walk struct {
	root    string
	req     Request
	exclude *gitignore.Matcher
	res     *Result
}

func (s *Scanner) walkDir(ctx context.Context, w *walk, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	w.res.Directories++

	var files, dirs []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		rel, _ := filepath.Rel(w.root, filepath.Join(dir, name))
		if e.IsDir() {
			if !w.exclude.Match(rel, true) {
				dirs = append(dirs, name)
			}
			continue
		}
		if e.Type().IsRegular() && !w.exclude.Match(rel, false) {
			files = append(files, name)
		}
	}

	for _, ac := range ArtifactsInDir(w.root, dir, files) {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.res.Discovered++
		if err := w.req.Visit(ctx, ac); err != nil {
			return err
		}
	}

	for _, name := range dirs {
		if err := s.walkDir(ctx, w, filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// layoutCoordinates derives group, artifact and version from a version
// directory relative to the repository root.
func layoutCoordinates(root, dir string) (artifact.Coordinates, bool) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return artifact.Coordinates{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return artifact.Coordinates{}, false
	}
	n := len(parts)
	return artifact.Coordinates{
		GroupID:    strings.Join(parts[:n-2], "."),
		ArtifactID: parts[n-2],
		Version:    parts[n-1],
	}, true
}

// parseFileName splits a file name into version, classifier and extension
// for the given artifact directory coordinates.
func parseFileName(c artifact.Coordinates, name string) (artifact.Coordinates, bool) {
	prefix := c.ArtifactID + "-"
	if !strings.HasPrefix(name, prefix) {
		return c, false
	}
	rest := strings.TrimPrefix(name, prefix)

	version := c.Version
	switch {
	case strings.HasPrefix(rest, c.Version):
		rest = strings.TrimPrefix(rest, c.Version)
	case strings.HasSuffix(c.Version, "-SNAPSHOT"):
		base := strings.TrimSuffix(c.Version, "SNAPSHOT")
		if !strings.HasPrefix(rest, base) {
			return c, false
		}
		ts := snapshotTimestamp.FindString(strings.TrimPrefix(rest, base))
		if ts == "" {
			return c, false
		}
		version = base + ts
		rest = strings.TrimPrefix(rest, version)
	default:
		return c, false
	}

	out := c
	out.Version = version
	switch {
	case strings.HasPrefix(rest, "."):
		out.Extension = rest[1:]
	case strings.HasPrefix(rest, "-"):
		dot := strings.Index(rest, ".")
		if dot <= 1 {
			return c, false
		}
		out.Classifier = rest[1:dot]
		out.Extension = rest[dot+1:]
	default:
		return c, false
	}
	if out.Extension == "" {
		return c, false
	}
	return out, true
}

func ignoredFile(name string) bool {
	if strings.HasPrefix(name, "maven-metadata") || name == "_remote.repositories" || name == "resolver-status.properties" {
		return true
	}
	for _, suffix := range ignoredSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// ArtifactsInDir turns the files of one version directory into artifact
// contexts. Each non-pom file becomes an artifact carrying the directory's
// pom; a pom becomes an artifact of its own only when no unclassified
// main artifact sits beside it.
func ArtifactsInDir(root, dir string, files []string) []*artifact.Context {
	base, ok := layoutCoordinates(root, dir)
	if !ok {
		return nil
	}

	type entry struct {
		name   string
		coords artifact.Coordinates
	}
	poms := map[string]string{}
	var candidates []entry

	sort.Strings(files)
	for _, name := range files {
		if ignoredFile(name) {
			continue
		}
		c, ok := parseFileName(base, name)
		if !ok {
			continue
		}
		if c.Extension == "pom" && c.Classifier == "" {
			poms[c.Version] = filepath.Join(dir, name)
			continue
		}
		candidates = append(candidates, entry{name: name, coords: c})
	}

	// Timestamped snapshots share the pom of their directory version.
	hasMain := map[string]bool{}
	var out []*artifact.Context
	for _, e := range candidates {
		if e.coords.Classifier == "" {
			hasMain[e.coords.Version] = true
			hasMain[base.Version] = true
		}
		pom := poms[e.coords.Version]
		if pom == "" {
			pom = poms[base.Version]
		}
		out = append(out, &artifact.Context{
			Artifact:    filepath.Join(dir, e.name),
			POM:         pom,
			Coordinates: e.coords,
		})
	}

	versions := make([]string, 0, len(poms))
	for v := range poms {
		versions = append(versions, v)
	}
	sort.Strings(versions)
	for _, v := range versions {
		if hasMain[v] {
			continue
		}
		c := base
		c.Version = v
		c.Extension = "pom"
		out = append(out, &artifact.Context{POM: poms[v], Coordinates: c})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Coordinates.UInfo() < out[j].Coordinates.UInfo()
	})
	return out
}

// ArtifactAt maps a single repository file to the artifact it belongs to.
// Sidecar checksums and poms map to their main artifact. ok is false for
// files outside the layout.
func ArtifactAt(root, path string) (*artifact.Context, bool) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	name := filepath.Base(absPath)
	if strings.HasPrefix(name, ".") {
		return nil, false
	}
	for _, suffix := range []string{".sha1", ".md5", ".asc"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if ignoredFile(name) {
		return nil, false
	}

	dir := filepath.Dir(absPath)
	base, ok := layoutCoordinates(absRoot, dir)
	if !ok {
		return nil, false
	}
	c, ok := parseFileName(base, name)
	if !ok {
		return nil, false
	}

	if c.Extension == "pom" && c.Classifier == "" {
		// A pom describes the main artifact when one exists.
		if entries, err := os.ReadDir(dir); err == nil {
			files := make([]string, 0, len(entries))
			for _, e := range entries {
				files = append(files, e.Name())
			}
			for _, ac := range ArtifactsInDir(absRoot, dir, files) {
				if ac.Coordinates.Version == c.Version && ac.Coordinates.Classifier == "" {
					return ac, true
				}
			}
		}
		return &artifact.Context{POM: filepath.Join(dir, name), Coordinates: c}, true
	}

	ac := &artifact.Context{Coordinates: c, Artifact: filepath.Join(dir, name)}
	pom := filepath.Join(dir, c.ArtifactID+"-"+c.Version+".pom")
	if _, err := os.Stat(pom); err == nil {
		ac.POM = pom
	}
	return ac, true
}

// NewExcluder compiles patterns followed by the rules of the repository's
// IgnoreFile, if one exists at root.
func NewExcluder(root string, patterns []string) (*gitignore.Matcher, error) {
	m := gitignore.Compile(patterns...)
	if root == "" {
		return m, nil
	}
	if err := m.AddFromFile(filepath.Join(root, IgnoreFile)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return m, err
	}
	return m, nil
}
