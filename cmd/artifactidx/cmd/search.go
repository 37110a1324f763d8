package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/mcp"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
	"github.com/Aman-CERP/artifactidx/internal/query"
	"github.com/Aman-CERP/artifactidx/internal/ui"
	"github.com/Aman-CERP/artifactidx/pkg/searcher"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	field    string
	match    string
	contexts []string
	grouped  bool
	limit    int
	offset   int
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search artifacts across contexts",
		Long: `Search artifacts in every searchable context, or in the contexts given
with --context (which are searched even when not searchable).

Without --field the query is an expression such as "groupId:org.apache +classNames:Log*".
With --field, --match selects exact, scored (default) or expression matching.

Examples:
  artifactidx search "artifactId:commons-lang3"
  artifactidx search --field classNames StringUtils
  artifactidx search --field groupId --match exact org.slf4j --grouped
  artifactidx search "junit" --context central --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(commandContext(cmd), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.field, "field", "", "Field to match (groupId, artifactId, classNames, sha1, ...)")
	cmd.Flags().StringVarP(&opts.match, "match", "m", "", "Match type: exact, scored, expression")
	cmd.Flags().StringSliceVarP(&opts.contexts, "context", "c", nil, "Search only these contexts (repeatable)")
	cmd.Flags().BoolVarP(&opts.grouped, "grouped", "g", false, "Group hits by groupId:artifactId")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default search.hit_limit)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip this many leading results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, text string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return ierrors.New(ierrors.ErrCodeInvalidInput, fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use --format text or --format json")
	}

	match, err := searchMatch(opts.field, opts.match)
	if err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	q, err := s.idx.ConstructQuery(opts.field, text, match)
	if err != nil {
		return err
	}
	contexts, err := lookupContexts(s.idx, opts.contexts)
	if err != nil {
		return err
	}

	limit := opts.limit
	if limit <= 0 {
		limit = s.cfg.Search.HitLimit
	}
	req := searcher.Request{
		Query:    q,
		Contexts: contexts,
		From:     max(opts.offset, 0),
		Count:    limit,
	}

	slog.Info("search_started",
		slog.String("query", text),
		slog.String("field", opts.field),
		slog.String("match", match.String()),
		slog.Bool("grouped", opts.grouped))

	p := ui.NewPrinter(newUIConfig(cmd))
	if opts.grouped {
		res, err := s.idx.SearchGrouped(ctx, searcher.GroupedRequest{Request: req})
		if err != nil {
			return err
		}
		slog.Info("search_complete", slog.Int("total_hits", res.TotalHits), slog.Int("total_groups", res.TotalGroups))
		if opts.format == "json" {
			out := mcp.SearchOutput{TotalHits: res.TotalHits, TotalGroups: res.TotalGroups}
			for _, g := range res.Groups {
				out.Groups = append(out.Groups, mcp.GroupOutput{Key: g.Key, Results: toOutputs(g.Infos)})
			}
			return p.JSON(out)
		}
		if len(res.Groups) == 0 {
			p.Dim(fmt.Sprintf("No results for %q", text))
			return nil
		}
		p.Heading(fmt.Sprintf("%d hits in %d groups", res.TotalHits, res.TotalGroups))
		for _, g := range res.Groups {
			p.Heading(g.Key)
			if err := p.Table(ui.HitsTable(g.Infos)); err != nil {
				return err
			}
		}
		return nil
	}

	res, err := s.idx.SearchFlat(ctx, searcher.FlatRequest{Request: req})
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.Int("total_hits", res.TotalHits))
	if opts.format == "json" {
		return p.JSON(mcp.SearchOutput{TotalHits: res.TotalHits, Results: toOutputs(res.Results)})
	}
	if len(res.Results) == 0 {
		p.Dim(fmt.Sprintf("No results for %q", text))
		return nil
	}
	p.Heading(fmt.Sprintf("%d hits, showing %d", res.TotalHits, len(res.Results)))
	return p.Table(ui.HitsTable(res.Results))
}

// searchMatch picks the match type: expression without a field, scored
// by default otherwise.
func searchMatch(field, match string) (query.MatchType, error) {
	if match == "" {
		if field == "" {
			return query.Expression, nil
		}
		return query.Scored, nil
	}
	m, err := query.ParseMatchType(match)
	if err != nil {
		return 0, err
	}
	if field == "" && m != query.Expression {
		return 0, ierrors.InvalidQueryError("--field is required for exact and scored matches", nil)
	}
	return m, nil
}

// lookupContexts resolves explicit context ids. No ids means every context.
func lookupContexts(idx *nexus.Indexer, ids []string) ([]index.Context, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out := make([]index.Context, 0, len(ids))
	for _, id := range ids {
		c, err := idx.Context(id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func toOutputs(infos []*artifact.Info) []mcp.ArtifactOutput {
	out := make([]mcp.ArtifactOutput, 0, len(infos))
	for _, info := range infos {
		out = append(out, mcp.ToArtifactOutput(info))
	}
	return out
}
