package mcp

import (
	"time"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// SearchInput defines the input schema for the search_artifacts tool.
type SearchInput struct {
	Query    string   `json:"query" jsonschema:"text to match, or a query expression when field is empty"`
	Field    string   `json:"field,omitempty" jsonschema:"index field to match, e.g. groupId, artifactId, name, classNames"`
	Match    string   `json:"match,omitempty" jsonschema:"match type: exact, scored or expression; default scored"`
	Contexts []string `json:"contexts,omitempty" jsonschema:"context ids to search; all searchable contexts when empty"`
	Grouped  bool     `json:"grouped,omitempty" jsonschema:"group hits by groupId:artifactId"`
	Limit    int      `json:"limit,omitempty" jsonschema:"maximum number of results or groups"`
	Offset   int      `json:"offset,omitempty" jsonschema:"number of results or groups to skip"`
}

// SearchOutput defines the output schema for the search_artifacts tool.
type SearchOutput struct {
	TotalHits   int              `json:"total_hits"`
	TotalGroups int              `json:"total_groups,omitempty"`
	Results     []ArtifactOutput `json:"results,omitempty"`
	Groups      []GroupOutput    `json:"groups,omitempty"`
}

// GroupOutput is one group of a grouped search.
type GroupOutput struct {
	Key     string           `json:"key"`
	Results []ArtifactOutput `json:"results"`
}

// ArtifactOutput is one index hit.
type ArtifactOutput struct {
	UInfo        string   `json:"uinfo"`
	GroupID      string   `json:"group_id"`
	ArtifactID   string   `json:"artifact_id"`
	Version      string   `json:"version"`
	Classifier   string   `json:"classifier,omitempty"`
	Extension    string   `json:"extension,omitempty"`
	Packaging    string   `json:"packaging,omitempty"`
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	SHA1         string   `json:"sha1,omitempty"`
	Size         int64    `json:"size,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
	ContextID    string   `json:"context_id"`
	RepositoryID string   `json:"repository_id,omitempty"`
	ClassNames   []string `json:"class_names,omitempty"`
}

// IdentifyInput defines the input schema for the identify_artifact tool.
// Exactly one of SHA1, Path or Field+Value is used, in that order.
type IdentifyInput struct {
	SHA1     string   `json:"sha1,omitempty" jsonschema:"hex SHA-1 of the artifact file"`
	Path     string   `json:"path,omitempty" jsonschema:"local file to digest and identify"`
	Field    string   `json:"field,omitempty" jsonschema:"index field to match exactly"`
	Value    string   `json:"value,omitempty" jsonschema:"exact field value"`
	Contexts []string `json:"contexts,omitempty" jsonschema:"context ids to search; all searchable contexts when empty"`
}

// IdentifyOutput defines the output schema for the identify_artifact tool.
type IdentifyOutput struct {
	Matches []ArtifactOutput `json:"matches"`
}

// ListContextsInput defines the input schema for the list_contexts tool (no parameters).
type ListContextsInput struct{}

// ListContextsOutput defines the output schema for the list_contexts tool.
type ListContextsOutput struct {
	Contexts []ContextOutput `json:"contexts"`
}

// ContextOutput describes one registered context.
type ContextOutput struct {
	ID           string   `json:"id"`
	RepositoryID string   `json:"repository_id"`
	Repository   string   `json:"repository,omitempty"`
	Searchable   bool     `json:"searchable"`
	Merged       bool     `json:"merged"`
	Members      []string `json:"members,omitempty"`
	Creators     []string `json:"creators,omitempty"`
	Documents    uint64   `json:"documents"`
	Timestamp    string   `json:"timestamp,omitempty"`
}

// ToContextOutput converts a context description.
func ToContextOutput(d index.Description) ContextOutput {
	out := ContextOutput{
		ID:           d.ID,
		RepositoryID: d.RepositoryID,
		Repository:   d.Repository,
		Searchable:   d.Searchable,
		Merged:       d.Merged,
		Members:      d.Members,
		Creators:     d.Creators,
		Documents:    d.Documents,
	}
	if !d.Timestamp.IsZero() {
		out.Timestamp = d.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

// RescanInput defines the input schema for the rescan_context tool.
type RescanInput struct {
	ContextID string `json:"context_id" jsonschema:"id of the indexing context to rescan"`
	Update    bool   `json:"update,omitempty" jsonschema:"keep entries whose files are gone instead of rebuilding from scratch"`
	FromPath  string `json:"from_path,omitempty" jsonschema:"repository subtree to crawl"`
}

// RescanOutput defines the output schema for the rescan_context tool.
type RescanOutput struct {
	ContextID      string   `json:"context_id"`
	RunID          string   `json:"run_id,omitempty"`
	Skipped        bool     `json:"skipped,omitempty"`
	Discovered     int      `json:"discovered"`
	Indexed        int      `json:"indexed"`
	ArtifactErrors []string `json:"artifact_errors,omitempty"`
	DurationMS     int64    `json:"duration_ms"`
}

// ToArtifactOutput converts an index hit.
func ToArtifactOutput(info *artifact.Info) ArtifactOutput {
	out := ArtifactOutput{
		UInfo:        info.UInfo(),
		GroupID:      info.GroupID,
		ArtifactID:   info.ArtifactID,
		Version:      info.Version,
		Classifier:   info.Classifier,
		Extension:    info.Extension,
		Packaging:    info.Packaging,
		Name:         info.Name,
		Description:  info.Description,
		SHA1:         info.SHA1,
		ContextID:    info.ContextID,
		RepositoryID: info.RepositoryID,
		ClassNames:   info.ClassNames,
	}
	if info.Size >= 0 {
		out.Size = info.Size
	}
	if !info.LastModified.IsZero() {
		out.LastModified = info.LastModified.UTC().Format(time.RFC3339)
	}
	return out
}

func toArtifactOutputs(infos []*artifact.Info) []ArtifactOutput {
	out := make([]ArtifactOutput, 0, len(infos))
	for _, info := range infos {
		if info != nil {
			out = append(out, ToArtifactOutput(info))
		}
	}
	return out
}
