package nexus

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/artifactidx/internal/config"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

func TestLoadContexts(t *testing.T) {
	// Given: a configuration with two contexts and two merges
	no := false
	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	cfg.Contexts = []config.ContextConfig{
		{ID: "central", Creators: []string{"min"}},
		{ID: "snapshots", IndexDir: "memory", Searchable: &no},
	}
	cfg.Merged = []config.MergedConfig{
		{ID: "all", Members: []string{config.MergeAll}},
		{ID: "public", Members: []string{"central"}},
	}
	require.NoError(t, cfg.Validate())
	n := newIndexer(t)

	// When: loading
	require.NoError(t, n.LoadContexts(cfg))

	// Then: everything is registered as configured
	require.Len(t, n.Contexts(), 4)

	central, err := n.IndexingContext("central")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.DataDir, "indexes", "central"), central.IndexDir())
	assert.Equal(t, []string{"min"}, central.Describe().Creators)

	snapshots, err := n.IndexingContext("snapshots")
	require.NoError(t, err)
	assert.Empty(t, snapshots.IndexDir())
	assert.False(t, snapshots.Searchable())

	all, err := n.Context("all")
	require.NoError(t, err)
	assert.Len(t, all.Members(), 2)

	public, err := n.Context("public")
	require.NoError(t, err)
	members := public.Members()
	require.Len(t, members, 1)
	assert.Equal(t, "central", members[0].ID())
}

func TestLoadContexts_RollsBackOnFailure(t *testing.T) {
	n := newIndexer(t)
	_, err := n.AddContext(index.Config{ID: "taken"})
	require.NoError(t, err)

	cfg := config.NewConfig()
	cfg.DataDir = t.TempDir()
	cfg.Contexts = []config.ContextConfig{{ID: "fresh"}, {ID: "taken"}}

	err = n.LoadContexts(cfg)
	assert.ErrorIs(t, err, ierrors.ErrDuplicateID)

	_, err = n.Context("fresh")
	assert.ErrorIs(t, err, ierrors.ErrContextNotFound)
	_, err = n.Context("taken")
	assert.NoError(t, err)
}
