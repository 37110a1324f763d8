package index

import (
	"log/slog"
	"sort"
	"sync/atomic"

	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
)

// MemberProvider yields the current members of a merged context.
type MemberProvider interface {
	Members() []Context
}

// StaticMembers is a fixed member list.
type StaticMembers []Context

// Members implements MemberProvider.
func (s StaticMembers) Members() []Context { return s }

// MemberFunc computes members on every call.
type MemberFunc func() []Context

// Members implements MemberProvider.
func (f MemberFunc) Members() []Context { return f() }

// MergedConfig describes a merged context.
type MergedConfig struct {
	ID           string
	RepositoryID string
	Repository   string
	Members      MemberProvider
	Searchable   bool
}

// MergedContext is a read-only union of its members. It owns no storage.
type MergedContext struct {
	cfg        MergedConfig
	searchable atomic.Bool
}

// NewMerged creates a merged context.
func NewMerged(cfg MergedConfig) (*MergedContext, error) {
	if cfg.ID == "" {
		return nil, ierrors.ValidationError("context id is required", nil)
	}
	if cfg.Members == nil {
		return nil, ierrors.ValidationError("merged context "+cfg.ID+" needs a member provider", nil)
	}
	if cfg.RepositoryID == "" {
		cfg.RepositoryID = cfg.ID
	}
	m := &MergedContext{cfg: cfg}
	m.searchable.Store(cfg.Searchable)
	return m, nil
}

// ID implements Context.
func (m *MergedContext) ID() string { return m.cfg.ID }

// RepositoryID implements Context.
func (m *MergedContext) RepositoryID() string { return m.cfg.RepositoryID }

// Repository implements Context.
func (m *MergedContext) Repository() string { return m.cfg.Repository }

// Searchable implements Context.
func (m *MergedContext) Searchable() bool { return m.searchable.Load() }

// SetSearchable toggles whether search-all includes the context.
func (m *MergedContext) SetSearchable(v bool) { m.searchable.Store(v) }

// Members implements Context. The merged context never lists itself.
func (m *MergedContext) Members() []Context {
	var out []Context
	for _, c := range m.cfg.Members.Members() {
		if c == nil || c.ID() == m.cfg.ID {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Commit implements Context. Merged contexts hold nothing to commit.
func (m *MergedContext) Commit() error {
	return ierrors.UnsupportedError("commit", "merged context "+m.cfg.ID)
}

// Close implements Context. Members are owned elsewhere and stay open.
func (m *MergedContext) Close(bool) error { return nil }

// Acquire implements Context. Members are flattened and deduplicated by
// context id; members closed in the meantime are skipped.
func (m *MergedContext) Acquire() ([]*Searcher, error) {
	seen := map[string]bool{}
	visiting := map[string]bool{m.cfg.ID: true}
	var out []*Searcher

	var visit func(c Context)
	visit = func(c Context) {
		if c == nil || visiting[c.ID()] {
			return
		}
		if _, merged := c.(*MergedContext); merged {
			visiting[c.ID()] = true
			for _, member := range c.Members() {
				visit(member)
			}
			return
		}
		if seen[c.ID()] {
			return
		}
		seen[c.ID()] = true

		searchers, err := c.Acquire()
		if err != nil {
			slog.Debug("merged_member_skipped",
				slog.String("context_id", m.cfg.ID),
				slog.String("member", c.ID()),
				slog.String("error", err.Error()))
			return
		}
		out = append(out, searchers...)
	}

	for _, c := range m.Members() {
		visit(c)
	}
	return out, nil
}

// Describe implements Context.
func (m *MergedContext) Describe() Description {
	d := Description{
		ID:           m.cfg.ID,
		RepositoryID: m.cfg.RepositoryID,
		Repository:   m.cfg.Repository,
		Searchable:   m.Searchable(),
		Merged:       true,
	}
	for _, c := range m.Members() {
		d.Members = append(d.Members, c.ID())
		md := c.Describe()
		d.Documents += md.Documents
		if md.Timestamp.After(d.Timestamp) {
			d.Timestamp = md.Timestamp
		}
	}
	sort.Strings(d.Members)
	return d
}
