// Package store provides the on-disk and in-memory document index used by
// indexing contexts. A Store is a bleve index kept in numbered generation
// directories; a CURRENT file names the live generation so a whole index can
// be replaced by writing one small file.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"

	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
)

const (
	currentFile   = "CURRENT"
	genPrefix     = "gen-"
	descriptorKey = "descriptor"

	// pageSize bounds each page when walking every document of an index.
	pageSize = 500
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Policy decides what Open does with an existing index it cannot reuse.
type Policy int

const (
	// Fail returns an incompatible-index error.
	Fail Policy = iota
	// DiscardAndRecreate wipes the directory and starts an empty index.
	DiscardAndRecreate
)

// Field describes one indexed and stored document field.
type Field struct {
	Name string
	// Keyword fields are indexed as a single untokenized term.
	Keyword bool
}

// Document is a flat set of string fields under a unique id.
type Document struct {
	ID     string
	Fields map[string]string
}

// Descriptor identifies what an index holds.
type Descriptor struct {
	Format       string    `json:"format"`
	RepositoryID string    `json:"repositoryId"`
	Timestamp    time.Time `json:"timestamp,omitzero"`
}

// Options configures Open.
type Options struct {
	// Path is the index directory. Empty means an in-memory store.
	Path string
	// Schema lists the fields documents may carry. Unknown fields are dropped.
	Schema []Field
	// Descriptor is written into freshly created indexes.
	Descriptor *Descriptor
	// Check validates the descriptor of an existing index. A nil descriptor
	// means the index carries none. Nil Check accepts anything.
	Check func(*Descriptor) error
	// OnIncompatible applies when the existing index cannot be opened or fails Check.
	OnIncompatible Policy
	Logger         *slog.Logger
}

type generation struct {
	idx     bleve.Index
	name    string
	dir     string
	refs    int
	retired bool
}

// Store is a bleve index with buffered writes, explicit commits, and
// ref-counted readers that survive a wholesale replace.
type Store struct {
	opts    Options
	mapping mapping.IndexMapping
	logger  *slog.Logger

	// writeMu serializes Put, Delete, Commit, ReplaceFrom and Close.
	writeMu sync.Mutex
	batch   *bleve.Batch

	// mu guards cur, seq, closed and generation ref counts.
	mu     sync.Mutex
	cur    *generation
	seq    int
	closed bool

	commits atomic.Int64
}

// Open opens the store at opts.Path, creating it when absent.
func Open(opts Options) (*Store, error) {
	s := &Store{
		opts:    opts,
		mapping: buildMapping(opts.Schema),
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if opts.Path == "" {
		gen, err := s.createGeneration("")
		if err != nil {
			return nil, err
		}
		s.cur = gen
		s.batch = gen.idx.NewBatch()
		return s, nil
	}

	if err := os.MkdirAll(opts.Path, 0o755); err != nil {
		return nil, ierrors.New(ierrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot create index directory %s", opts.Path), err)
	}

	gen, err := s.openExisting()
	if err != nil {
		var incompatible *incompatibleError
		if !errors.As(err, &incompatible) {
			return nil, err
		}
		if opts.OnIncompatible != DiscardAndRecreate {
			return nil, ierrors.IncompatibleIndexError(opts.Path, incompatible.cause)
		}
		s.logger.Warn("index_discarded",
			slog.String("path", opts.Path),
			slog.String("reason", incompatible.cause.Error()))
		if err := clearDir(opts.Path); err != nil {
			return nil, fmt.Errorf("failed to clear index directory %s: %w", opts.Path, err)
		}
		gen = nil
	}

	if gen == nil {
		s.seq = 1
		gen, err = s.createGeneration(genName(s.seq))
		if err != nil {
			return nil, err
		}
		if err := s.writeCurrent(gen.name); err != nil {
			_ = gen.idx.Close()
			return nil, err
		}
	}

	s.cur = gen
	s.batch = gen.idx.NewBatch()
	s.removeStaleGenerations()
	return s, nil
}

type incompatibleError struct{ cause error }

func (e *incompatibleError) Error() string { return e.cause.Error() }

// openExisting returns the live generation, nil for an empty directory,
// or an incompatibleError.
func (s *Store) openExisting() (*generation, error) {
	data, err := os.ReadFile(filepath.Join(s.opts.Path, currentFile))
	if os.IsNotExist(err) {
		entries, err := os.ReadDir(s.opts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read index directory: %w", err)
		}
		if len(entries) == 0 {
			return nil, nil
		}
		if onlyLeftovers(entries) {
			// A first open that died before publishing CURRENT.
			s.logger.Warn("index_unpublished_removed", slog.String("path", s.opts.Path))
			if err := clearDir(s.opts.Path); err != nil {
				return nil, fmt.Errorf("failed to clear index directory %s: %w", s.opts.Path, err)
			}
			return nil, nil
		}
		return nil, &incompatibleError{errors.New("directory is not empty and has no CURRENT marker")}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CURRENT: %w", err)
	}

	name := strings.TrimSpace(string(data))
	seq, ok := parseGenName(name)
	if !ok {
		return nil, &incompatibleError{fmt.Errorf("CURRENT names invalid generation %q", name)}
	}

	dir := filepath.Join(s.opts.Path, name)
	idx, err := bleve.Open(dir)
	if err != nil {
		return nil, &incompatibleError{fmt.Errorf("cannot open generation %s: %w", name, err)}
	}

	desc, err := readDescriptor(idx)
	if err != nil {
		_ = idx.Close()
		return nil, &incompatibleError{err}
	}
	if s.opts.Check != nil {
		if err := s.opts.Check(desc); err != nil {
			_ = idx.Close()
			return nil, &incompatibleError{err}
		}
	}

	s.seq = seq
	return &generation{idx: idx, name: name, dir: dir}, nil
}

// createGeneration builds an empty index, on disk when name is set.
func (s *Store) createGeneration(name string) (*generation, error) {
	var (
		idx bleve.Index
		err error
		dir string
	)
	if name == "" {
		idx, err = bleve.NewMemOnly(s.mapping)
	} else {
		dir = filepath.Join(s.opts.Path, name)
		_ = os.RemoveAll(dir)
		idx, err = bleve.New(dir, s.mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	if s.opts.Descriptor != nil {
		if err := writeDescriptor(idx, s.opts.Descriptor); err != nil {
			_ = idx.Close()
			return nil, err
		}
	}
	return &generation{idx: idx, name: name, dir: dir}, nil
}

func buildMapping(schema []Field) mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	doc := bleve.NewDocumentStaticMapping()
	for _, f := range schema {
		fm := bleve.NewTextFieldMapping()
		fm.Store = true
		// Positions are only needed for phrase matching on analyzed text.
		fm.IncludeTermVectors = !f.Keyword
		if f.Keyword {
			fm.Analyzer = keyword.Name
		} else {
			fm.Analyzer = standard.Name
		}
		doc.AddFieldMappingsAt(f.Name, fm)
	}
	im.DefaultMapping = doc
	return im
}

// Put buffers a document add or replace until the next Commit.
func (s *Store) Put(doc Document) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	if doc.ID == "" {
		return errors.New("document id is required")
	}

	data := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		data[k] = v
	}
	if err := s.batch.Index(doc.ID, data); err != nil {
		return fmt.Errorf("failed to index document %s: %w", doc.ID, err)
	}
	return nil
}

// Delete buffers a document removal until the next Commit.
func (s *Store) Delete(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	s.batch.Delete(id)
	return nil
}

// SetDescriptor buffers a descriptor update until the next Commit.
func (s *Store) SetDescriptor(d Descriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	s.batch.SetInternal([]byte(descriptorKey), data)
	return nil
}

// Commit makes every buffered change visible to readers at once.
func (s *Store) Commit() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}
	return s.commitLocked()
}

func (s *Store) commitLocked() error {
	s.commits.Add(1)
	if s.batch.Size() == 0 {
		return nil
	}
	if err := s.cur.idx.Batch(s.batch); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.batch.Reset()
	return nil
}

// Commits returns how many commits the store has performed.
func (s *Store) Commits() int64 {
	return s.commits.Load()
}

// Descriptor returns the committed descriptor, or nil when none was written.
func (s *Store) Descriptor() (*Descriptor, error) {
	r, err := s.Acquire()
	if err != nil {
		return nil, err
	}
	defer r.Release()
	return readDescriptor(r.gen.idx)
}

// DocCount returns the number of committed documents.
func (s *Store) DocCount() (uint64, error) {
	r, err := s.Acquire()
	if err != nil {
		return 0, err
	}
	defer r.Release()
	return r.DocCount()
}

// Path returns the index directory, empty for in-memory stores.
func (s *Store) Path() string {
	return s.opts.Path
}

// Generation returns the name of the live generation.
func (s *Store) Generation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.name
}

// ActiveReaders returns the number of unreleased readers on the live generation.
func (s *Store) ActiveReaders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return 0
	}
	return s.cur.refs
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// CopyInto buffers every committed document of s into dst. dst is not committed.
func (s *Store) CopyInto(ctx context.Context, dst *Store) error {
	r, err := s.Acquire()
	if err != nil {
		return err
	}
	defer r.Release()

	return r.Walk(ctx, func(doc Document) error {
		return dst.Put(doc)
	})
}

// ReplaceFrom makes the committed contents of src the live contents of s.
// src is committed first and becomes unusable afterwards. Readers acquired
// before the swap keep the old contents until released.
func (s *Store) ReplaceFrom(ctx context.Context, src *Store) error {
	if src == s {
		return errors.New("cannot replace a store with itself")
	}
	if err := src.Commit(); err != nil {
		return fmt.Errorf("failed to commit replacement: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.isClosed() {
		return ErrClosed
	}

	s.mu.Lock()
	s.seq++
	next := genName(s.seq)
	s.mu.Unlock()
	if s.opts.Path == "" {
		next = ""
	}

	gen, err := s.adopt(ctx, src, next)
	if err != nil {
		return err
	}

	if s.opts.Path != "" {
		if err := s.writeCurrent(gen.name); err != nil {
			_ = gen.idx.Close()
			_ = os.RemoveAll(gen.dir)
			return err
		}
	}

	s.mu.Lock()
	old := s.cur
	s.cur = gen
	s.retireLocked(old)
	s.mu.Unlock()

	// Changes buffered against the old contents are discarded.
	s.batch = gen.idx.NewBatch()

	s.logger.Debug("index_replaced",
		slog.String("path", s.opts.Path),
		slog.String("generation", gen.name))
	return nil
}

// adopt turns src into a new generation of s. On-disk sources are moved
// into place when possible; otherwise documents are copied.
func (s *Store) adopt(ctx context.Context, src *Store, name string) (*generation, error) {
	if name != "" && src.opts.Path != "" {
		dir, err := src.detach()
		if err != nil {
			return nil, err
		}
		target := filepath.Join(s.opts.Path, name)
		if err := os.Rename(dir, target); err == nil {
			idx, err := bleve.Open(target)
			if err != nil {
				return nil, fmt.Errorf("failed to open replacement index: %w", err)
			}
			return &generation{idx: idx, name: name, dir: target}, nil
		}

		// Different filesystem: copy out of the detached directory.
		from, err := bleve.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open replacement index: %w", err)
		}
		defer func() { _ = from.Close() }()
		return s.copyGeneration(ctx, from, name)
	}

	r, err := src.Acquire()
	if err != nil {
		return nil, err
	}
	defer r.Release()
	return s.copyGeneration(ctx, r.gen.idx, name)
}

func (s *Store) copyGeneration(ctx context.Context, from bleve.Index, name string) (*generation, error) {
	gen, err := s.createGeneration(name)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*generation, error) {
		_ = gen.idx.Close()
		if gen.dir != "" {
			_ = os.RemoveAll(gen.dir)
		}
		return nil, err
	}

	batch := gen.idx.NewBatch()
	err = walk(ctx, from, func(doc Document) error {
		data := make(map[string]any, len(doc.Fields))
		for k, v := range doc.Fields {
			data[k] = v
		}
		if err := batch.Index(doc.ID, data); err != nil {
			return err
		}
		if batch.Size() >= pageSize {
			if err := gen.idx.Batch(batch); err != nil {
				return err
			}
			batch.Reset()
		}
		return nil
	})
	if err != nil {
		return fail(fmt.Errorf("failed to copy documents: %w", err))
	}

	raw, err := from.GetInternal([]byte(descriptorKey))
	if err != nil {
		return fail(fmt.Errorf("failed to read descriptor: %w", err))
	}
	if raw != nil {
		batch.SetInternal([]byte(descriptorKey), raw)
	}
	if err := gen.idx.Batch(batch); err != nil {
		return fail(fmt.Errorf("failed to copy documents: %w", err))
	}
	return gen, nil
}

// detach closes s and hands over its live generation directory.
func (s *Store) detach() (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if s.cur.refs > 0 {
		return "", fmt.Errorf("replacement index %s has %d active readers", s.opts.Path, s.cur.refs)
	}
	if err := s.cur.idx.Close(); err != nil {
		return "", fmt.Errorf("failed to close replacement index: %w", err)
	}
	s.closed = true
	dir := s.cur.dir
	s.cur = &generation{name: s.cur.name, retired: true}
	return dir, nil
}

// retireLocked closes a generation once no reader holds it.
func (s *Store) retireLocked(g *generation) {
	if g == nil {
		return
	}
	g.retired = true
	if g.refs > 0 || g.idx == nil {
		return
	}
	if err := g.idx.Close(); err != nil {
		s.logger.Warn("generation_close_failed",
			slog.String("generation", g.name),
			slog.String("error", err.Error()))
	}
	g.idx = nil
	if g.dir != "" {
		if err := os.RemoveAll(g.dir); err != nil {
			s.logger.Warn("generation_remove_failed",
				slog.String("dir", g.dir),
				slog.String("error", err.Error()))
		}
	}
}

// Close releases the store. Files stay on disk. Safe to call more than once.
func (s *Store) Close() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	g := s.cur
	if g.refs > 0 || g.idx == nil {
		// The last reader closes it.
		g.retired = true
		g.dir = ""
		return nil
	}
	err := g.idx.Close()
	g.idx = nil
	g.retired = true
	return err
}

// Remove closes the store and deletes its directory.
func (s *Store) Remove() error {
	closeErr := s.Close()
	if s.opts.Path == "" {
		return closeErr
	}
	if err := os.RemoveAll(s.opts.Path); err != nil {
		return fmt.Errorf("failed to remove index directory %s: %w", s.opts.Path, err)
	}
	return closeErr
}

func (s *Store) writeCurrent(name string) error {
	path := filepath.Join(s.opts.Path, currentFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0o644); err != nil {
		return ierrors.New(ierrors.ErrCodeFilePermission, "failed to write CURRENT", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return ierrors.New(ierrors.ErrCodeFilePermission, "failed to publish CURRENT", err)
	}
	return nil
}

// removeStaleGenerations deletes generation directories left behind by
// interrupted swaps.
func (s *Store) removeStaleGenerations() {
	entries, err := os.ReadDir(s.opts.Path)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == s.cur.name || name == currentFile {
			continue
		}
		if _, ok := parseGenName(name); ok || name == currentFile+".tmp" {
			s.logger.Debug("stale_generation_removed", slog.String("name", name))
			_ = os.RemoveAll(filepath.Join(s.opts.Path, name))
		}
	}
}

// onlyLeftovers reports whether entries hold nothing but generation
// directories and a half-written CURRENT.
func onlyLeftovers(entries []os.DirEntry) bool {
	for _, e := range entries {
		if _, ok := parseGenName(e.Name()); ok && e.IsDir() {
			continue
		}
		if e.Name() == currentFile+".tmp" {
			continue
		}
		return false
	}
	return true
}

func clearDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func genName(seq int) string {
	return fmt.Sprintf("%s%06d", genPrefix, seq)
}

func parseGenName(name string) (int, bool) {
	if !strings.HasPrefix(name, genPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, genPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func readDescriptor(idx bleve.Index) (*Descriptor, error) {
	raw, err := idx.GetInternal([]byte(descriptorKey))
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("descriptor is corrupt: %w", err)
	}
	return &d, nil
}

func writeDescriptor(idx bleve.Index, d *Descriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode descriptor: %w", err)
	}
	if err := idx.SetInternal([]byte(descriptorKey), data); err != nil {
		return fmt.Errorf("failed to write descriptor: %w", err)
	}
	return nil
}

// walk visits every document of idx in id order.
func walk(ctx context.Context, idx bleve.Index, fn func(Document) error) error {
	var after []string
	for {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), pageSize, 0, false)
		req.Fields = []string{"*"}
		req.SortBy([]string{"_id"})
		if after != nil {
			req.SetSearchAfter(after)
		}

		res, err := idx.SearchInContext(ctx, req)
		if err != nil {
			return err
		}
		for _, hit := range res.Hits {
			if err := fn(DocumentFromHit(hit)); err != nil {
				return err
			}
		}
		if len(res.Hits) < pageSize {
			return nil
		}
		after = []string{res.Hits[len(res.Hits)-1].ID}
	}
}

// DocumentFromHit rebuilds a Document from the stored fields of a hit.
func DocumentFromHit(hit *search.DocumentMatch) Document {
	doc := Document{ID: hit.ID, Fields: make(map[string]string, len(hit.Fields))}
	for k, v := range hit.Fields {
		switch val := v.(type) {
		case string:
			doc.Fields[k] = val
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			doc.Fields[k] = strings.Join(parts, "\n")
		default:
			doc.Fields[k] = fmt.Sprint(val)
		}
	}
	return doc
}
