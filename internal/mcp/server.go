package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bq "github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/config"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
	"github.com/Aman-CERP/artifactidx/internal/query"
	"github.com/Aman-CERP/artifactidx/pkg/searcher"
	"github.com/Aman-CERP/artifactidx/pkg/version"
)

// maxLimit caps client-requested result counts.
const maxLimit = 500

// Service is the part of the indexer the server exposes. *nexus.Indexer
// satisfies it.
type Service interface {
	Contexts() []index.Context
	Context(id string) (index.Context, error)
	ConstructQuery(field, text string, match query.MatchType) (bq.Query, error)
	SearchFlat(ctx context.Context, req searcher.FlatRequest) (*searcher.FlatResponse, error)
	SearchGrouped(ctx context.Context, req searcher.GroupedRequest) (*searcher.GroupedResponse, error)
	Identify(ctx context.Context, field, text string, contexts ...index.Context) ([]*artifact.Info, error)
	IdentifyFile(ctx context.Context, path string, contexts ...index.Context) ([]*artifact.Info, error)
	RescanContext(ctx context.Context, id string, req nexus.RescanRequest) (*nexus.RescanResult, error)
}

var _ Service = (*nexus.Indexer)(nil)

// Server is the MCP server for artifactidx. It exposes artifact search,
// identification, context listing and rescans as tools.
type Server struct {
	mcp    *mcp.Server
	svc    Service
	config *config.Config
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "search_artifacts",
		Description: "Search indexed repository artifacts by field (groupId, artifactId, version, name, description, classNames, sha1) or by query expression. Returns hits ordered by coordinates, optionally grouped by groupId:artifactId.",
	},
	{
		Name:        "identify_artifact",
		Description: "Identify artifacts exactly: by SHA-1, by digesting a local file, or by an exact field value. Use to find the coordinates of a jar you have on disk.",
	},
	{
		Name:        "list_contexts",
		Description: "List the indexing contexts and merged contexts with their repository, searchable flag, document count and last update timestamp.",
	},
	{
		Name:        "rescan_context",
		Description: "Rebuild an indexing context from its local repository. The live index is replaced only when the scan succeeds.",
	},
}

// NewServer creates a new MCP server.
func NewServer(svc Service, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if svc == nil {
		return nil, errors.New("indexer is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		svc:    svc,
		config: cfg,
		logger: logger,
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Name, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with JSON-style arguments. Search and
// identify return markdown; the other tools return their output structs.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case "search_artifacts":
		var in SearchInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.search(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatSearchResults(in.Query, out), nil
	case "identify_artifact":
		var in IdentifyInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		out, err := s.identify(ctx, in)
		if err != nil {
			return nil, err
		}
		return FormatIdentifyResults(out), nil
	case "list_contexts":
		return s.listContexts(), nil
	case "rescan_context":
		var in RescanInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.rescan(ctx, in)
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError(err.Error())
	}
	if err := json.Unmarshal(data, v); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) search(ctx context.Context, in SearchInput) (*SearchOutput, error) {
	start := time.Now()
	requestID := generateRequestID()

	if strings.TrimSpace(in.Query) == "" {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	match := query.Scored
	if in.Match != "" {
		m, err := query.ParseMatchType(in.Match)
		if err != nil {
			return nil, MapError(err)
		}
		match = m
	}
	if in.Field == "" {
		if in.Match != "" && match != query.Expression {
			return nil, NewInvalidParamsError("field is required for exact and scored matches")
		}
		match = query.Expression
	}

	q, err := s.svc.ConstructQuery(in.Field, in.Query, match)
	if err != nil {
		return nil, MapError(err)
	}
	contexts, err := s.resolveContexts(in.Contexts)
	if err != nil {
		return nil, err
	}

	req := searcher.Request{
		Query:    q,
		Contexts: contexts,
		From:     max(in.Offset, 0),
		Count:    clampLimit(in.Limit, s.config.Search.HitLimit, 1, maxLimit),
	}

	s.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", in.Query),
		slog.String("field", in.Field),
		slog.String("match", match.String()),
		slog.Bool("grouped", in.Grouped))

	out := &SearchOutput{}
	if in.Grouped {
		res, err := s.svc.SearchGrouped(ctx, searcher.GroupedRequest{Request: req})
		if err != nil {
			return nil, s.searchFailed(requestID, start, err)
		}
		out.TotalHits = res.TotalHits
		out.TotalGroups = res.TotalGroups
		out.Groups = make([]GroupOutput, 0, len(res.Groups))
		for _, g := range res.Groups {
			out.Groups = append(out.Groups, GroupOutput{Key: g.Key, Results: toArtifactOutputs(g.Infos)})
		}
	} else {
		res, err := s.svc.SearchFlat(ctx, searcher.FlatRequest{Request: req})
		if err != nil {
			return nil, s.searchFailed(requestID, start, err)
		}
		out.TotalHits = res.TotalHits
		out.Results = toArtifactOutputs(res.Results)
	}

	s.logger.Info("search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("total_hits", out.TotalHits))
	return out, nil
}

func (s *Server) searchFailed(requestID string, start time.Time, err error) error {
	s.logger.Error("search_failed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.String("error", err.Error()))
	return MapError(err)
}

func (s *Server) identify(ctx context.Context, in IdentifyInput) (*IdentifyOutput, error) {
	contexts, err := s.resolveContexts(in.Contexts)
	if err != nil {
		return nil, err
	}

	var infos []*artifact.Info
	switch {
	case in.SHA1 != "":
		infos, err = s.svc.Identify(ctx, artifact.FieldSHA1, strings.ToLower(strings.TrimSpace(in.SHA1)), contexts...)
	case in.Path != "":
		infos, err = s.svc.IdentifyFile(ctx, in.Path, contexts...)
	case in.Field != "" && in.Value != "":
		infos, err = s.svc.Identify(ctx, in.Field, in.Value, contexts...)
	default:
		return nil, NewInvalidParamsError("one of sha1, path, or field and value is required")
	}
	if err != nil {
		s.logger.Warn("identify_failed", slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &IdentifyOutput{Matches: toArtifactOutputs(infos)}, nil
}

func (s *Server) listContexts() *ListContextsOutput {
	contexts := s.svc.Contexts()
	out := &ListContextsOutput{Contexts: make([]ContextOutput, 0, len(contexts))}
	for _, c := range contexts {
		out.Contexts = append(out.Contexts, ToContextOutput(c.Describe()))
	}
	return out
}

func (s *Server) rescan(ctx context.Context, in RescanInput) (*RescanOutput, error) {
	if in.ContextID == "" {
		return nil, NewInvalidParamsError("context_id is required")
	}
	res, err := s.svc.RescanContext(ctx, in.ContextID, nexus.RescanRequest{
		Update:   in.Update,
		FromPath: in.FromPath,
	})
	if err != nil {
		return nil, MapError(err)
	}

	out := &RescanOutput{
		ContextID:  res.ContextID,
		RunID:      res.RunID,
		Skipped:    res.Skipped,
		Discovered: res.Discovered,
		Indexed:    res.Indexed,
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, e := range res.Errors {
		out.ArtifactErrors = append(out.ArtifactErrors, e.Error())
	}
	return out, nil
}

// resolveContexts looks up explicit context ids. Nil means all contexts.
func (s *Server) resolveContexts(ids []string) ([]index.Context, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]index.Context, 0, len(ids))
	for _, id := range ids {
		c, err := s.svc.Context(id)
		if err != nil {
			return nil, MapError(err)
		}
		out = append(out, c)
	}
	return out, nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpSearchHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIdentifyHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[2].Name, Description: tools[2].Description}, s.mcpListContextsHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[3].Name, Description: tools[3].Description}, s.mcpRescanHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpSearchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	out, err := s.search(ctx, input)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return textResult(FormatSearchResults(input.Query, out)), *out, nil
}

func (s *Server) mcpIdentifyHandler(ctx context.Context, _ *mcp.CallToolRequest, input IdentifyInput) (
	*mcp.CallToolResult,
	IdentifyOutput,
	error,
) {
	out, err := s.identify(ctx, input)
	if err != nil {
		return nil, IdentifyOutput{}, err
	}
	return textResult(FormatIdentifyResults(out)), *out, nil
}

func (s *Server) mcpListContextsHandler(_ context.Context, _ *mcp.CallToolRequest, _ ListContextsInput) (
	*mcp.CallToolResult,
	ListContextsOutput,
	error,
) {
	return nil, *s.listContexts(), nil
}

func (s *Server) mcpRescanHandler(ctx context.Context, _ *mcp.CallToolRequest, input RescanInput) (
	*mcp.CallToolResult,
	RescanOutput,
	error,
) {
	out, err := s.rescan(ctx, input)
	if err != nil {
		return nil, RescanOutput{}, err
	}
	return nil, *out, nil
}

// Serve runs the server on the given transport until ctx is done.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		} else {
			s.logger.Info("mcp_server_stopped")
		}
		return err
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// clampLimit applies def to non-positive values and bounds the result.
func clampLimit(v, def, lo, hi int) int {
	if v <= 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// generateRequestID creates a short id for log correlation.
func generateRequestID() string {
	return uuid.NewString()[:8]
}
