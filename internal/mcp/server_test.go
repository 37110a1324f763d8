package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/config"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/logging"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
)

func jar(g, a, v string) artifact.Coordinates {
	return artifact.Coordinates{GroupID: g, ArtifactID: a, Version: v, Extension: "jar"}
}

// newTestServer returns a server over an indexer with one in-memory
// context holding three artifacts.
func newTestServer(t *testing.T) (*Server, *nexus.Indexer) {
	t.Helper()
	n := nexus.New(nexus.WithLogger(logging.Discard()))
	t.Cleanup(func() { _ = n.Close() })

	ic, err := n.AddContext(index.Config{ID: "central", RepositoryID: "central", Searchable: true})
	require.NoError(t, err)

	for _, item := range []struct {
		coords artifact.Coordinates
		name   string
		sha1   string
	}{
		{jar("org.x", "core", "1.0"), "X Core", "1111111111111111111111111111111111111111"},
		{jar("org.x", "core", "2.0"), "X Core", "2222222222222222222222222222222222222222"},
		{jar("org.y", "util", "1.0"), "Y Util", "3333333333333333333333333333333333333333"},
	} {
		info := &artifact.Info{Coordinates: item.coords, Name: item.name, SHA1: item.sha1, Size: -1}
		require.NoError(t, n.AddArtifact(context.Background(), ic, &artifact.Context{Coordinates: item.coords, Info: info}))
	}

	s, err := NewServer(n, config.NewConfig(), logging.Discard())
	require.NoError(t, err)
	return s, n
}

func requireMCPCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %T", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer_NilService(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	s, _ := newTestServer(t)

	names := make([]string, 0, 4)
	for _, tool := range s.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"search_artifacts", "identify_artifact", "list_contexts", "rescan_context"}, names)

	name, _ := s.Info()
	assert.Equal(t, "artifactidx", name)
	assert.NotNil(t, s.MCPServer())
}

func TestServer_CallTool_UnknownTool(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.CallTool(context.Background(), "search", nil)

	requireMCPCode(t, err, ErrCodeMethodNotFound)
}

func TestSearchTool_ExactField_ReturnsMarkdown(t *testing.T) {
	// Given: a server over three artifacts
	s, _ := newTestServer(t)

	// When: searching artifactId exactly
	result, err := s.CallTool(context.Background(), "search_artifacts", map[string]any{
		"query": "core",
		"field": "artifactId",
		"match": "exact",
	})

	// Then: both versions are listed in coordinate order
	require.NoError(t, err)
	text, ok := result.(string)
	require.True(t, ok, "expected string result, got %T", result)
	assert.Contains(t, text, "Found 2 hits")
	assert.Contains(t, text, "`org.x:core:1.0@jar` X Core (context: central)")
	assert.Less(t, strings.Index(text, "core:1.0"), strings.Index(text, "core:2.0"))
	assert.NotContains(t, text, "util")
}

func TestSearch_ExpressionWhenFieldEmpty(t *testing.T) {
	s, _ := newTestServer(t)

	out, err := s.search(context.Background(), SearchInput{Query: "groupId:org.y"})

	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "org.y|util|1.0|NA|jar", out.Results[0].UInfo)
}

func TestSearch_GroupedWithWindow(t *testing.T) {
	s, _ := newTestServer(t)

	out, err := s.search(context.Background(), SearchInput{
		Query:   "org.*",
		Field:   "groupId",
		Grouped: true,
		Offset:  1,
		Limit:   5,
	})

	require.NoError(t, err)
	assert.Equal(t, 3, out.TotalHits)
	assert.Equal(t, 2, out.TotalGroups)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, "org.y:util", out.Groups[0].Key)
}

func TestSearch_InvalidInput(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		in   SearchInput
		code int
	}{
		{"empty query", SearchInput{Query: "  "}, ErrCodeInvalidParams},
		{"field required for exact", SearchInput{Query: "core", Match: "exact"}, ErrCodeInvalidParams},
		{"unknown match type", SearchInput{Query: "core", Field: "artifactId", Match: "fuzzy"}, ErrCodeInvalidParams},
		{"unknown field", SearchInput{Query: "core", Field: "nope"}, ErrCodeInvalidParams},
		{"malformed expression", SearchInput{Query: "groupId:(("}, ErrCodeInvalidParams},
		{"unknown context", SearchInput{Query: "core", Field: "artifactId", Contexts: []string{"missing"}}, ErrCodeContextNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.search(context.Background(), tt.in)
			requireMCPCode(t, err, tt.code)
		})
	}
}

func TestIdentifyTool_BySHA1(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.CallTool(context.Background(), "identify_artifact", map[string]any{
		"sha1": "2222222222222222222222222222222222222222",
	})

	require.NoError(t, err)
	text := result.(string)
	assert.Contains(t, text, "Identified 1 artifact")
	assert.Contains(t, text, "org.x:core:2.0@jar")
}

func TestIdentify_ByFieldAndExplicitContext(t *testing.T) {
	s, _ := newTestServer(t)

	out, err := s.identify(context.Background(), IdentifyInput{
		Field:    "artifactId",
		Value:    "util",
		Contexts: []string{"central"},
	})

	require.NoError(t, err)
	require.Len(t, out.Matches, 1)
	assert.Equal(t, "central", out.Matches[0].ContextID)
}

func TestIdentify_RequiresSomeKey(t *testing.T) {
	s, _ := newTestServer(t)

	_, err := s.identify(context.Background(), IdentifyInput{Field: "artifactId"})

	requireMCPCode(t, err, ErrCodeInvalidParams)
}

func TestListContextsTool(t *testing.T) {
	s, _ := newTestServer(t)

	result, err := s.CallTool(context.Background(), "list_contexts", nil)

	require.NoError(t, err)
	out, ok := result.(*ListContextsOutput)
	require.True(t, ok)
	require.Len(t, out.Contexts, 1)
	assert.Equal(t, "central", out.Contexts[0].ID)
	assert.Equal(t, uint64(3), out.Contexts[0].Documents)
}

func TestRescanTool(t *testing.T) {
	s, _ := newTestServer(t)

	t.Run("context without repository is skipped", func(t *testing.T) {
		result, err := s.CallTool(context.Background(), "rescan_context", map[string]any{"context_id": "central"})
		require.NoError(t, err)
		out := result.(*RescanOutput)
		assert.True(t, out.Skipped)
		assert.Equal(t, "central", out.ContextID)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := s.CallTool(context.Background(), "rescan_context", map[string]any{})
		requireMCPCode(t, err, ErrCodeInvalidParams)
	})

	t.Run("unknown context", func(t *testing.T) {
		_, err := s.CallTool(context.Background(), "rescan_context", map[string]any{"context_id": "nope"})
		requireMCPCode(t, err, ErrCodeContextNotFound)
	})

	t.Run("bad argument types", func(t *testing.T) {
		_, err := s.CallTool(context.Background(), "rescan_context", map[string]any{"context_id": 42})
		requireMCPCode(t, err, ErrCodeInvalidParams)
	})
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		v, def, want int
	}{
		{0, 50, 50},
		{-3, 50, 50},
		{10, 50, 10},
		{10000, 50, maxLimit},
		{0, 0, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, clampLimit(tt.v, tt.def, 1, maxLimit))
	}
}
