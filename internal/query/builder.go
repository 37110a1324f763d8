// Package query compiles (field, text, match type) triples into bleve queries.
package query

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	bq "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	ierrors "github.com/Aman-CERP/artifactidx/internal/errors"
	"github.com/Aman-CERP/artifactidx/internal/store"
)

// MatchType selects how text is matched against a field.
type MatchType int

const (
	// Exact matches the whole field value.
	Exact MatchType = iota
	// Scored matches by prefix or wildcard on keyword fields and by
	// analyzed terms on text fields.
	Scored
	// Expression parses text as a query string ("+groupId:org.x name:core").
	Expression
)

// String returns the lower-case name of the match type.
func (m MatchType) String() string {
	switch m {
	case Exact:
		return "exact"
	case Scored:
		return "scored"
	case Expression:
		return "expression"
	default:
		return fmt.Sprintf("MatchType(%d)", int(m))
	}
}

// ParseMatchType is the inverse of MatchType.String.
func ParseMatchType(s string) (MatchType, error) {
	switch strings.ToLower(s) {
	case "exact", "":
		return Exact, nil
	case "scored":
		return Scored, nil
	case "expression", "expr":
		return Expression, nil
	}
	return Exact, ierrors.InvalidQueryError(fmt.Sprintf("unknown match type %q", s), nil)
}

// Builder compiles queries against a known field catalogue.
type Builder struct {
	fields map[string]store.Field
}

// NewBuilder creates a Builder for the given fields. With no fields the
// fields of the default creators are used.
func NewBuilder(fields ...store.Field) *Builder {
	if len(fields) == 0 {
		fields = artifact.Schema(artifact.DefaultCreators())
	}
	b := &Builder{fields: make(map[string]store.Field, len(fields))}
	for _, f := range fields {
		b.fields[f.Name] = f
	}
	return b
}

// Build compiles one query. Every failure is an invalid-query error.
func (b *Builder) Build(field, text string, match MatchType) (bq.Query, error) {
	if match == Expression && field == "" {
		return b.expression(text)
	}

	f, ok := b.fields[field]
	if !ok {
		return nil, ierrors.InvalidQueryError(fmt.Sprintf("unknown field %q", field), nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ierrors.InvalidQueryError(fmt.Sprintf("empty query text for field %q", field), nil)
	}

	switch match {
	case Exact:
		if f.Keyword {
			q := bleve.NewTermQuery(text)
			q.SetField(field)
			return q, nil
		}
		q := bleve.NewMatchPhraseQuery(text)
		q.SetField(field)
		return q, nil

	case Scored:
		if !f.Keyword {
			q := bleve.NewMatchQuery(text)
			q.SetField(field)
			return q, nil
		}
		if strings.ContainsAny(text, "*?") {
			q := bleve.NewWildcardQuery(text)
			q.SetField(field)
			return q, nil
		}
		exact := bleve.NewTermQuery(text)
		exact.SetField(field)
		exact.SetBoost(2)
		prefix := bleve.NewPrefixQuery(text)
		prefix.SetField(field)
		return bleve.NewDisjunctionQuery(exact, prefix), nil

	case Expression:
		return b.expression(field + ":" + quoteIfNeeded(text))

	default:
		return nil, ierrors.InvalidQueryError(fmt.Sprintf("unknown match type %s", match), nil)
	}
}

// expression parses a query string.
func (b *Builder) expression(text string) (bq.Query, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ierrors.InvalidQueryError("empty query expression", nil)
	}
	q := bleve.NewQueryStringQuery(text)
	if _, err := q.Parse(); err != nil {
		return nil, ierrors.InvalidQueryError(fmt.Sprintf("malformed query %q", text), err)
	}
	return q, nil
}

func quoteIfNeeded(text string) string {
	if strings.ContainsAny(text, " \t") && !strings.HasPrefix(text, "\"") {
		return `"` + strings.ReplaceAll(text, `"`, `\"`) + `"`
	}
	return text
}

// And combines queries into a conjunction; nil entries are skipped.
func And(queries ...bq.Query) bq.Query {
	var parts []bq.Query
	for _, q := range queries {
		if q != nil {
			parts = append(parts, q)
		}
	}
	switch len(parts) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return parts[0]
	}
	return bleve.NewConjunctionQuery(parts...)
}
