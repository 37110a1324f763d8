package nexus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/journal"
	"github.com/Aman-CERP/artifactidx/internal/logging"
	"github.com/Aman-CERP/artifactidx/internal/scanner"
	"github.com/Aman-CERP/artifactidx/pkg/searcher"
)

// fakeCrawler emits preset artifacts, optionally failing after them.
type fakeCrawler struct {
	mu    sync.Mutex
	items func() []artifact.Coordinates
	fail  error
	calls int
}

func (f *fakeCrawler) Scan(ctx context.Context, req scanner.Request) (*scanner.Result, error) {
	f.mu.Lock()
	f.calls++
	items := f.items()
	fail := f.fail
	f.mu.Unlock()

	res := &scanner.Result{}
	for _, c := range items {
		ac := &artifact.Context{Coordinates: c, Info: &artifact.Info{Coordinates: c, Size: -1}}
		if err := req.Visit(ctx, ac); err != nil {
			return res, err
		}
		res.Discovered++
	}
	return res, fail
}

func staticItems(coords ...artifact.Coordinates) func() []artifact.Coordinates {
	return func() []artifact.Coordinates { return coords }
}

// recordingContext is a context that only records whether it was searched.
type recordingContext struct {
	id      string
	queried atomic.Bool
}

func (r *recordingContext) ID() string { return r.id }
func (r *recordingContext) RepositoryID() string { return r.id }
func (r *recordingContext) Repository() string { return "" }
func (r *recordingContext) Searchable() bool { return true }
func (r *recordingContext) Describe() index.Description { return index.Description{ID: r.id} }
func (r *recordingContext) Commit() error { return nil }
func (r *recordingContext) Close(bool) error { return nil }
func (r *recordingContext) Members() []index.Context { return nil }
func (r *recordingContext) Acquire() ([]*index.Searcher, error) {
	r.queried.Store(true)
	return nil, nil
}

func jar(g, a, v string) artifact.Coordinates {
	return artifact.Coordinates{GroupID: g, ArtifactID: a, Version: v, Extension: "jar"}
}

func newIndexer(t *testing.T, opts ...Option) *Indexer {
	t.Helper()
	n := New(append([]Option{WithLogger(logging.Discard())}, opts...)...)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func addInfo(t *testing.T, n *Indexer, c index.Context, coords artifact.Coordinates, sha1 string) {
	t.Helper()
	ac := &artifact.Context{Coordinates: coords, Info: &artifact.Info{Coordinates: coords, Size: -1, SHA1: sha1}}
	require.NoError(t, n.AddArtifact(context.Background(), c, ac))
}

func allUInfos(t *testing.T, n *Indexer, contexts ...index.Context) []string {
	t.Helper()
	res, err := n.SearchFlat(context.Background(), searcher.FlatRequest{
		Request: searcher.Request{Query: bleve.NewMatchAllQuery(), Contexts: contexts},
	})
	require.NoError(t, err)
	out := make([]string, 0, len(res.Results))
	for _, i := range res.Results {
		out = append(out, i.UInfo())
	}
	return out
}

func TestAddContext_DuplicateRejected(t *testing.T) {
	n := newIndexer(t)
	_, err := n.AddContext(index.Config{ID: "central"})
	require.NoError(t, err)

	_, err = n.AddContext(index.Config{ID: "central"})
	assert.ErrorIs(t, err, ierrors.ErrDuplicateID)
	assert.Len(t, n.Contexts(), 1)
}

func TestAddContextForced_DiscardsIncompatible(t *testing.T) {
	// Given: an on-disk index created for another repository
	dir := filepath.Join(t.TempDir(), "idx")
	old, err := index.New(index.Config{ID: "c", RepositoryID: "other", IndexDir: dir})
	require.NoError(t, err)
	require.NoError(t, old.Close(false))

	n := newIndexer(t)

	// When: adding it normally
	_, err = n.AddContext(index.Config{ID: "c", RepositoryID: "mine", IndexDir: dir})

	// Then: it fails and nothing is registered
	assert.ErrorIs(t, err, ierrors.ErrIncompatibleIndex)
	assert.Empty(t, n.Contexts())

	// When: adding it forced
	ic, err := n.AddContextForced(index.Config{ID: "c", RepositoryID: "mine", IndexDir: dir})

	// Then: it starts empty
	require.NoError(t, err)
	assert.Equal(t, "mine", ic.Describe().RepositoryID)
}

func TestRemoveContext_UnreachableAfterReturn(t *testing.T) {
	n := newIndexer(t)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				id := fmt.Sprintf("ctx-%d-%d", w, i)
				_, err := n.AddContext(index.Config{ID: id})
				assert.NoError(t, err)
				assert.NoError(t, n.RemoveContext(id, true))
				for _, c := range n.Contexts() {
					assert.NotEqual(t, id, c.ID())
				}
			}
		}()
	}
	wg.Wait()
	assert.Empty(t, n.Contexts())
}

func TestContextLookup(t *testing.T) {
	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "a"})
	require.NoError(t, err)
	_, err = n.AddMergedContext(index.MergedConfig{ID: "all", Members: index.MemberFunc(n.AllIndexingContexts)})
	require.NoError(t, err)

	got, err := n.IndexingContext("a")
	require.NoError(t, err)
	assert.Same(t, ic, got)

	_, err = n.IndexingContext("all")
	assert.ErrorIs(t, err, ierrors.ErrUnsupported)

	_, err = n.Context("missing")
	assert.ErrorIs(t, err, ierrors.ErrContextNotFound)
}

func TestReplaceContext_ClosesDisplaced(t *testing.T) {
	n := newIndexer(t)
	first, err := n.AddContext(index.Config{ID: "a"})
	require.NoError(t, err)

	second, err := index.New(index.Config{ID: "a"})
	require.NoError(t, err)
	require.NoError(t, n.ReplaceContext(second))

	got, err := n.Context("a")
	require.NoError(t, err)
	assert.Same(t, second, got)
	_, err = first.Store().Acquire()
	assert.Error(t, err)
}

func TestRescan_FullReplacesContents(t *testing.T) {
	// Given: a context with an artifact that is no longer in the repository
	crawler := &fakeCrawler{items: staticItems(jar("org.x", "lib", "2"))}
	n := newIndexer(t, WithCrawler(crawler))
	ic, err := n.AddContext(index.Config{ID: "c", Repository: t.TempDir(), Searchable: true})
	require.NoError(t, err)
	addInfo(t, n, ic, jar("org.x", "lib", "1"), "")

	// When: rescanning fully
	res, err := n.Rescan(context.Background(), ic, RescanRequest{})

	// Then: only the crawled artifact remains
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discovered)
	assert.Equal(t, 1, res.Indexed)
	assert.Equal(t, []string{"org.x|lib|2|NA|jar"}, allUInfos(t, n))

	ts, err := ic.Timestamp()
	require.NoError(t, err)
	assert.False(t, ts.IsZero())
}

func TestRemoveContext_ReleasesRescanLock(t *testing.T) {
	crawler := &fakeCrawler{items: staticItems(jar("org.x", "lib", "1"))}
	n := newIndexer(t, WithCrawler(crawler))
	for _, id := range []string{"a", "b"} {
		ic, err := n.AddContext(index.Config{ID: id, Repository: t.TempDir(), Searchable: true})
		require.NoError(t, err)
		_, err = n.Rescan(context.Background(), ic, RescanRequest{})
		require.NoError(t, err)
	}
	require.Len(t, n.locks, 2)

	require.NoError(t, n.RemoveContext("a", false))
	assert.NotContains(t, n.locks, "a")
	assert.Contains(t, n.locks, "b")

	// A context re-added under the same id rescans normally.
	ic, err := n.AddContext(index.Config{ID: "a", Repository: t.TempDir(), Searchable: true})
	require.NoError(t, err)
	_, err = n.Rescan(context.Background(), ic, RescanRequest{})
	require.NoError(t, err)
	assert.Len(t, n.locks, 2)
}

func TestRescan_UpdateKeepsStaleEntries(t *testing.T) {
	crawler := &fakeCrawler{items: staticItems(jar("org.x", "lib", "2"))}
	n := newIndexer(t, WithCrawler(crawler))
	ic, err := n.AddContext(index.Config{ID: "c", Repository: t.TempDir(), Searchable: true})
	require.NoError(t, err)
	addInfo(t, n, ic, jar("org.x", "lib", "1"), "")

	_, err = n.Rescan(context.Background(), ic, RescanRequest{Update: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"org.x|lib|1|NA|jar", "org.x|lib|2|NA|jar"}, allUInfos(t, n))
}

func writePOM(t *testing.T, root, g, a, v string) string {
	t.Helper()
	dir := filepath.Join(root, filepath.FromSlash(g), a, v)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, a+"-"+v+".pom")
	pom := fmt.Sprintf("<project><groupId>%s</groupId><artifactId>%s</artifactId><version>%s</version><name>%s</name></project>", g, a, v, a)
	require.NoError(t, os.WriteFile(path, []byte(pom), 0o644))
	return path
}

func TestRescan_RemovedFromDisk(t *testing.T) {
	// Given: a repository on disk with two artifacts, indexed
	repo := t.TempDir()
	writePOM(t, repo, "org/x", "keep", "1")
	gone := writePOM(t, repo, "org/x", "gone", "1")

	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "c", Repository: repo, IndexDir: filepath.Join(t.TempDir(), "c"), Searchable: true})
	require.NoError(t, err)
	_, err = n.Rescan(context.Background(), ic, RescanRequest{})
	require.NoError(t, err)
	hits, err := n.Identify(context.Background(), artifact.FieldArtifactID, "gone")
	require.NoError(t, err)
	require.Len(t, hits, 1)

	// When: one artifact is deleted and an update rescan runs
	require.NoError(t, os.Remove(gone))
	_, err = n.Rescan(context.Background(), ic, RescanRequest{Update: true})
	require.NoError(t, err)

	// Then: the stale entry survives
	hits, err = n.Identify(context.Background(), artifact.FieldArtifactID, "gone")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	// When: a full rescan runs
	_, err = n.Rescan(context.Background(), ic, RescanRequest{})
	require.NoError(t, err)

	// Then: it is gone and the rest remains
	hits, err = n.Identify(context.Background(), artifact.FieldArtifactID, "gone")
	require.NoError(t, err)
	assert.Empty(t, hits)
	hits, err = n.Identify(context.Background(), artifact.FieldArtifactID, "keep")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "keep", hits[0].Name)
}

func TestRescan_FailureLeavesLiveContextUntouched(t *testing.T) {
	// Given: an on-disk context with committed contents
	parent := t.TempDir()
	crawler := &fakeCrawler{
		items: staticItems(jar("org.new", "a", "1"), jar("org.new", "b", "1")),
		fail:  errors.New("disk went away"),
	}
	n := newIndexer(t, WithCrawler(crawler))
	ic, err := n.AddContext(index.Config{ID: "c", Repository: t.TempDir(), IndexDir: filepath.Join(parent, "c"), Searchable: true})
	require.NoError(t, err)
	addInfo(t, n, ic, jar("org.old", "a", "1"), "")
	before := allUInfos(t, n)
	generation := ic.Store().Generation()

	// When: the crawl fails after discovering artifacts
	res, err := n.Rescan(context.Background(), ic, RescanRequest{})

	// Then: a scan error carries the context id and the cause
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ierrors.ErrScan)
	assert.ErrorContains(t, err, "disk went away")
	var ie *ierrors.IndexError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "c", ie.Details["context_id"])

	// And: the live context is exactly as before
	assert.Equal(t, before, allUInfos(t, n))
	assert.Equal(t, generation, ic.Store().Generation())

	// And: no staging files remain
	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	assert.Equal(t, []string{"c", "c.rescan.lock"}, names)
}

func TestRescan_InvalidArtifactRecorded(t *testing.T) {
	// Given: a crawler yielding an artifact whose preset info is unusable
	crawler := &fakeCrawler{items: staticItems(jar("org.x", "a", "1"), artifact.Coordinates{})}
	var listened []error
	n := newIndexer(t, WithCrawler(crawler))
	ic, err := n.AddContext(index.Config{ID: "c", Repository: t.TempDir()})
	require.NoError(t, err)

	// When: rescanning
	res, err := n.Rescan(context.Background(), ic, RescanRequest{Listener: &errorListener{errs: &listened}})

	// Then: invalid coordinates are per-artifact errors, not aborts
	require.NoError(t, err)
	assert.Equal(t, 2, res.Discovered)
	assert.Equal(t, 1, res.Indexed)
	assert.Len(t, res.Errors, 1)
	assert.Len(t, listened, 1)
}

type errorListener struct {
	NopListener
	errs *[]error
}

func (l *errorListener) ArtifactError(_ *artifact.Context, err error) {
	*l.errs = append(*l.errs, err)
}

func TestRescan_CancelledMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	crawler := &fakeCrawler{items: staticItems(jar("org.x", "a", "1"))}
	n := newIndexer(t, WithCrawler(&cancellingCrawler{inner: crawler, cancel: cancel}))
	ic, err := n.AddContext(index.Config{ID: "c", Repository: t.TempDir()})
	require.NoError(t, err)
	addInfo(t, n, ic, jar("org.old", "a", "1"), "")

	_, err = n.Rescan(ctx, ic, RescanRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"org.old|a|1|NA|jar"}, allUInfos(t, n, ic))
}

// cancellingCrawler cancels the rescan after the inner crawl.
type cancellingCrawler struct {
	inner  Crawler
	cancel context.CancelFunc
}

func (c *cancellingCrawler) Scan(ctx context.Context, req scanner.Request) (*scanner.Result, error) {
	res, err := c.inner.Scan(ctx, req)
	c.cancel()
	if err != nil {
		return res, err
	}
	return res, ctx.Err()
}

func TestRescan_NoRepositoryIsNoop(t *testing.T) {
	crawler := &fakeCrawler{items: staticItems()}
	n := newIndexer(t, WithCrawler(crawler))
	ic, err := n.AddContext(index.Config{ID: "c"})
	require.NoError(t, err)

	res, err := n.Rescan(context.Background(), ic, RescanRequest{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, crawler.calls)
}

func TestRescan_MissingRepository(t *testing.T) {
	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "c", Repository: filepath.Join(t.TempDir(), "nope")})
	require.NoError(t, err)

	_, err = n.Rescan(context.Background(), ic, RescanRequest{})
	assert.ErrorIs(t, err, ierrors.ErrRepositoryNotFound)
}

func TestRescan_StagingFailure(t *testing.T) {
	// Given: an id that cannot name a staging file
	n := newIndexer(t, WithCrawler(&fakeCrawler{items: staticItems()}))
	ic, err := n.AddContext(index.Config{ID: "a" + string(filepath.Separator) + "b", Repository: t.TempDir(), IndexDir: filepath.Join(t.TempDir(), "idx")})
	require.NoError(t, err)

	// When: rescanning
	_, err = n.Rescan(context.Background(), ic, RescanRequest{})

	// Then: a staging error is reported
	assert.ErrorIs(t, err, ierrors.ErrStaging)
}

func TestRescanContext_JournalRecordsRuns(t *testing.T) {
	j, err := journal.Open("")
	require.NoError(t, err)
	defer j.Close()

	crawler := &fakeCrawler{items: staticItems(jar("org.x", "a", "1"))}
	n := newIndexer(t, WithCrawler(crawler), WithJournal(j))
	_, err = n.AddContext(index.Config{ID: "c", Repository: t.TempDir()})
	require.NoError(t, err)

	res, err := n.RescanContext(context.Background(), "c", RescanRequest{})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	crawler.fail = errors.New("boom")
	_, err = n.RescanContext(context.Background(), "c", RescanRequest{Update: true})
	require.Error(t, err)

	runs, err := j.List(context.Background(), "c", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	statuses := []journal.Status{runs[0].Status, runs[1].Status}
	assert.ElementsMatch(t, []journal.Status{journal.StatusSucceeded, journal.StatusFailed}, statuses)

	_, err = n.RescanContext(context.Background(), "missing", RescanRequest{})
	assert.ErrorIs(t, err, ierrors.ErrContextNotFound)
}

func TestRescan_ConcurrentSearchSeesOldOrNew(t *testing.T) {
	// Given: a context whose repository alternates between two artifact sets
	setA := []artifact.Coordinates{jar("org.a", "x", "1"), jar("org.a", "y", "1"), jar("org.a", "z", "1")}
	setB := []artifact.Coordinates{jar("org.b", "x", "1"), jar("org.b", "y", "1")}
	var toggle atomic.Int32
	crawler := &fakeCrawler{items: func() []artifact.Coordinates {
		if toggle.Add(1)%2 == 1 {
			return setA
		}
		return setB
	}}
	n := newIndexer(t, WithCrawler(crawler))
	ic, err := n.AddContext(index.Config{ID: "c", Repository: t.TempDir(), IndexDir: filepath.Join(t.TempDir(), "c"), Searchable: true})
	require.NoError(t, err)
	_, err = n.Rescan(context.Background(), ic, RescanRequest{})
	require.NoError(t, err)

	uinfos := func(cs []artifact.Coordinates) []string {
		out := make([]string, 0, len(cs))
		for _, c := range cs {
			out = append(out, c.UInfo())
		}
		return out
	}
	wantA, wantB := uinfos(setA), uinfos(setB)

	// When: rescans and searches interleave
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for range 6 {
			_, err := n.Rescan(context.Background(), ic, RescanRequest{})
			assert.NoError(t, err)
		}
	}()

	// Then: every search sees one complete set. The pause leaves the
	// index persister room to run on a single CPU.
	searches := 0
	for ctx.Err() == nil {
		got := allUInfos(t, n)
		if len(got) == len(wantA) {
			assert.Equal(t, wantA, got)
		} else {
			assert.Equal(t, wantB, got)
		}
		searches++
		time.Sleep(time.Millisecond)
	}
	wg.Wait()
	assert.Positive(t, searches)
	assert.Zero(t, ic.Store().ActiveReaders())
}

func TestAddArtifacts_SingleCommit(t *testing.T) {
	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "c", Searchable: true})
	require.NoError(t, err)

	var batch []*artifact.Context
	for i := range 5 {
		c := jar("org.x", "lib", fmt.Sprint(i))
		batch = append(batch, &artifact.Context{Coordinates: c, Info: &artifact.Info{Coordinates: c, Size: -1}})
	}

	before := ic.Store().Commits()
	require.NoError(t, n.AddArtifacts(context.Background(), ic, batch))
	assert.Equal(t, before+1, ic.Store().Commits())
	assert.Len(t, allUInfos(t, n), 5)

	before = ic.Store().Commits()
	require.NoError(t, n.DeleteArtifacts(context.Background(), ic, batch[:3]))
	assert.Equal(t, before+1, ic.Store().Commits())
	assert.Len(t, allUInfos(t, n), 2)
}

func TestMutations_MergedContextRejected(t *testing.T) {
	n := newIndexer(t)
	mc, err := n.AddMergedContext(index.MergedConfig{ID: "m", Members: index.StaticMembers{}})
	require.NoError(t, err)

	ac := &artifact.Context{Coordinates: jar("org.x", "a", "1")}
	assert.ErrorIs(t, n.AddArtifact(context.Background(), mc, ac), ierrors.ErrUnsupported)
	assert.ErrorIs(t, n.DeleteArtifact(context.Background(), mc, ac), ierrors.ErrUnsupported)
	assert.ErrorIs(t, n.ArtifactDiscovered(context.Background(), mc, ac), ierrors.ErrUnsupported)
}

func TestArtifactDiscovered_DoesNotCommit(t *testing.T) {
	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "c", Searchable: true})
	require.NoError(t, err)

	c := jar("org.x", "a", "1")
	require.NoError(t, n.ArtifactDiscovered(context.Background(), ic, &artifact.Context{Coordinates: c, Info: &artifact.Info{Coordinates: c, Size: -1}}))
	assert.Empty(t, allUInfos(t, n))

	require.NoError(t, ic.Commit())
	assert.Len(t, allUInfos(t, n), 1)
}

func TestSearch_DispatchAllVersusTargeted(t *testing.T) {
	// Given: two registered recording contexts and one unregistered
	n := newIndexer(t)
	a, b := &recordingContext{id: "a"}, &recordingContext{id: "b"}
	require.NoError(t, n.Registry().Add(a))
	require.NoError(t, n.Registry().Add(b))
	outside := &recordingContext{id: "outside"}

	// When: searching with no targets
	_, err := n.SearchFlat(context.Background(), searcher.FlatRequest{Request: searcher.Request{Query: bleve.NewMatchAllQuery()}})
	require.NoError(t, err)

	// Then: every registered context was queried
	assert.True(t, a.queried.Load())
	assert.True(t, b.queried.Load())
	assert.False(t, outside.queried.Load())

	// When: searching one explicit unregistered context
	a.queried.Store(false)
	b.queried.Store(false)
	_, err = n.SearchGrouped(context.Background(), searcher.GroupedRequest{
		Request: searcher.Request{Query: bleve.NewMatchAllQuery(), Contexts: []index.Context{outside}},
	})
	require.NoError(t, err)

	// Then: only it was queried
	assert.True(t, outside.queried.Load())
	assert.False(t, a.queried.Load())
	assert.False(t, b.queried.Load())
}

func TestSearch_TargetedForcesNonSearchable(t *testing.T) {
	n := newIndexer(t)
	hidden, err := n.AddContext(index.Config{ID: "hidden"})
	require.NoError(t, err)
	addInfo(t, n, hidden, jar("org.x", "a", "1"), "")

	assert.Empty(t, allUInfos(t, n))
	assert.Len(t, allUInfos(t, n, hidden), 1)
}

func TestSearchGrouped_StableSingleGroup(t *testing.T) {
	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "c", Searchable: true})
	require.NoError(t, err)
	addInfo(t, n, ic, jar("org.x", "lib", "2"), "")
	addInfo(t, n, ic, jar("org.x", "lib", "1"), "")

	req := searcher.GroupedRequest{Request: searcher.Request{Query: bleve.NewMatchAllQuery()}}
	first, err := n.SearchGrouped(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Groups, 1)
	assert.Len(t, first.Groups[0].Infos, 2)
	assert.Equal(t, "1", first.Groups[0].Infos[0].Version)

	for range 5 {
		again, err := n.SearchGrouped(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestIdentifyFile_EmptyFileDigest(t *testing.T) {
	// Given: an artifact indexed with the SHA-1 of empty content
	const emptySHA1 = "da39a3ee5e6b4b0d3255bfef95601890afd80709"
	n := newIndexer(t)
	ic, err := n.AddContext(index.Config{ID: "c", Searchable: true})
	require.NoError(t, err)
	addInfo(t, n, ic, jar("org.x", "empty", "1"), emptySHA1)
	addInfo(t, n, ic, jar("org.x", "other", "1"), "0000000000000000000000000000000000000000")

	path := filepath.Join(t.TempDir(), "empty.jar")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	// When: identifying the empty file
	hits, err := n.IdentifyFile(context.Background(), path)

	// Then: exactly that artifact is found and no reader is left open
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, emptySHA1, hits[0].SHA1)
	assert.Equal(t, "empty", hits[0].ArtifactID)
	assert.Zero(t, ic.Store().ActiveReaders())

	// And: the digest is served from cache on repeat
	sum, err := n.Digest(path)
	require.NoError(t, err)
	assert.Equal(t, emptySHA1, sum)
	assert.Equal(t, 1, n.digests.Len())
}

func TestIdentifyFile_Missing(t *testing.T) {
	n := newIndexer(t)
	_, err := n.IdentifyFile(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ierrors.ErrCodeFileNotFound, ierrors.GetCode(err))
}

func TestIdentify_InvalidQuery(t *testing.T) {
	n := newIndexer(t)

	_, err := n.Identify(context.Background(), "noSuchField", "x")
	assert.ErrorIs(t, err, ierrors.ErrInvalidQuery)

	_, err = n.Identify(context.Background(), artifact.FieldSHA1, "")
	assert.ErrorIs(t, err, ierrors.ErrInvalidQuery)

	_, err = n.Identify(context.Background(), artifact.FieldSHA1, "   ")
	assert.ErrorIs(t, err, ierrors.ErrInvalidQuery)
}

func TestIdentify_ExplicitContexts(t *testing.T) {
	n := newIndexer(t)
	a, err := n.AddContext(index.Config{ID: "a", Searchable: true})
	require.NoError(t, err)
	b, err := n.AddContext(index.Config{ID: "b", Searchable: true})
	require.NoError(t, err)
	addInfo(t, n, a, jar("org.x", "lib", "1"), "")
	addInfo(t, n, b, jar("org.x", "lib", "1"), "")

	all, err := n.Identify(context.Background(), artifact.FieldGroupID, "org.x")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ContextID)
	assert.Equal(t, "b", all[1].ContextID)

	onlyB, err := n.Identify(context.Background(), artifact.FieldGroupID, "org.x", b)
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, "b", onlyB[0].ContextID)
}

func TestMergedContext_SearchesMembers(t *testing.T) {
	n := newIndexer(t)
	a, err := n.AddContext(index.Config{ID: "a"})
	require.NoError(t, err)
	addInfo(t, n, a, jar("org.x", "lib", "1"), "")
	merged, err := n.AddMergedContext(index.MergedConfig{
		ID:         "all",
		Members:    index.MemberFunc(n.AllIndexingContexts),
		Searchable: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"org.x|lib|1|NA|jar"}, allUInfos(t, n))

	require.NoError(t, n.RemoveContext("a", false))
	assert.Empty(t, allUInfos(t, n, merged))
}
