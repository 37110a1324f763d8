package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

type fakeTarget struct {
	added   []string
	deleted []string
	adds    int
	deletes int
	fail    error
}

func uinfos(acs []*artifact.Context) []string {
	out := make([]string, 0, len(acs))
	for _, ac := range acs {
		out = append(out, ac.Coordinates.UInfo())
	}
	sort.Strings(out)
	return out
}

func (f *fakeTarget) AddArtifacts(_ context.Context, _ index.Context, acs []*artifact.Context) error {
	f.adds++
	f.added = append(f.added, uinfos(acs)...)
	return f.fail
}

func (f *fakeTarget) DeleteArtifacts(_ context.Context, _ index.Context, acs []*artifact.Context) error {
	f.deletes++
	f.deleted = append(f.deleted, uinfos(acs)...)
	return f.fail
}

// repoContext is an index.Context that only knows its id and repository.
type repoContext struct {
	index.Context
	id   string
	root string
}

func (r repoContext) ID() string         { return r.id }
func (r repoContext) Repository() string { return r.root }

func writeFile(t *testing.T, root, rel string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestSyncer_AddsAndDeletesInOneCallEach(t *testing.T) {
	// Given: a repository where one jar exists and another was removed
	root := t.TempDir()
	writeFile(t, root, "org/x/a/1/a-1.jar")
	writeFile(t, root, "org/x/a/1/a-1.pom")
	target := &fakeTarget{}
	s := NewSyncer(target, repoContext{id: "c", root: root}, nil, nil)

	// When: a batch touches the jar, its pom, its checksum and a deleted jar
	res, err := s.Apply(context.Background(), []FileEvent{
		{Path: "org/x/a/1/a-1.jar", Operation: OpCreate},
		{Path: "org/x/a/1/a-1.jar.sha1", Operation: OpCreate},
		{Path: "org/x/a/1/a-1.pom", Operation: OpModify},
		{Path: "org/x/b/2/b-2.jar", Operation: OpDelete},
	})

	// Then: the touched artifact is added once and the removed one deleted
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Added: 1, Deleted: 1}, res)
	assert.Equal(t, 1, target.adds)
	assert.Equal(t, 1, target.deletes)
	assert.Equal(t, []string{"org.x|a|1|NA|jar"}, target.added)
	assert.Equal(t, []string{"org.x|b|2|NA|jar"}, target.deleted)
}

func TestSyncer_IgnoresFilesOutsideLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "README")
	target := &fakeTarget{}
	s := NewSyncer(target, repoContext{id: "c", root: root}, nil, nil)

	res, err := s.Apply(context.Background(), []FileEvent{
		{Path: "README", Operation: OpCreate},
		{Path: "org/x/a/1/maven-metadata.xml", Operation: OpModify},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, res.Ignored)
	assert.Zero(t, target.adds)
	assert.Zero(t, target.deletes)
}

func TestSyncer_DirectoryRemovalTriggersRescan(t *testing.T) {
	// Given: a syncer with a rescan callback
	root := t.TempDir()
	rescans := 0
	s := NewSyncer(&fakeTarget{}, repoContext{id: "c", root: root}, func(context.Context) error {
		rescans++
		return nil
	}, nil)

	// When: a version directory is removed
	res, err := s.Apply(context.Background(), []FileEvent{
		{Path: "org/x/a/1", Operation: OpDelete, IsDir: true},
		{Path: "org/x/a/2", Operation: OpCreate, IsDir: true},
	})

	// Then: one rescan runs
	require.NoError(t, err)
	assert.True(t, res.Rescanned)
	assert.Equal(t, 1, rescans)
}

func TestSyncer_DirectoryRemovalWithoutRescanFunc(t *testing.T) {
	s := NewSyncer(&fakeTarget{}, repoContext{id: "c", root: t.TempDir()}, nil, nil)

	res, err := s.Apply(context.Background(), []FileEvent{{Path: "org", Operation: OpDelete, IsDir: true}})

	require.NoError(t, err)
	assert.False(t, res.Rescanned)
}

func TestSyncer_TargetErrorsAreJoined(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "org/x/a/1/a-1.jar")
	boom := errors.New("boom")
	s := NewSyncer(&fakeTarget{fail: boom}, repoContext{id: "c", root: root}, nil, nil)

	res, err := s.Apply(context.Background(), []FileEvent{
		{Path: "org/x/a/1/a-1.jar", Operation: OpModify},
		{Path: "org/x/b/1/b-1.jar", Operation: OpDelete},
	})

	require.ErrorIs(t, err, boom)
	assert.Zero(t, res.Added)
	assert.Zero(t, res.Deleted)
}

func TestSyncer_ContextWithoutRepository(t *testing.T) {
	s := NewSyncer(&fakeTarget{}, repoContext{id: "c"}, nil, nil)

	_, err := s.Apply(context.Background(), []FileEvent{{Path: "a", Operation: OpCreate}})
	assert.Error(t, err)
}
