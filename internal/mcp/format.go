package mcp

import (
	"fmt"
	"strings"
)

// FormatSearchResults renders a search response as markdown.
func FormatSearchResults(q string, out *SearchOutput) string {
	if out == nil || out.TotalHits == 0 {
		return fmt.Sprintf("No artifacts found for \"%s\"", q)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Artifacts matching \"%s\"\n\n", q)
	if len(out.Groups) > 0 || out.TotalGroups > 0 {
		fmt.Fprintf(&sb, "Found %s in %s\n\n", plural(out.TotalHits, "hit"), plural(out.TotalGroups, "group"))
		for _, g := range out.Groups {
			fmt.Fprintf(&sb, "### %s\n\n", g.Key)
			for _, a := range g.Results {
				formatArtifact(&sb, a)
			}
			sb.WriteString("\n")
		}
		return sb.String()
	}

	fmt.Fprintf(&sb, "Found %s", plural(out.TotalHits, "hit"))
	if len(out.Results) < out.TotalHits {
		fmt.Fprintf(&sb, ", showing %d", len(out.Results))
	}
	sb.WriteString("\n\n")
	for _, a := range out.Results {
		formatArtifact(&sb, a)
	}
	return sb.String()
}

// FormatIdentifyResults renders identification matches as markdown.
func FormatIdentifyResults(out *IdentifyOutput) string {
	if out == nil || len(out.Matches) == 0 {
		return "No matching artifact is indexed."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Identified %s\n\n", plural(len(out.Matches), "artifact"))
	for _, a := range out.Matches {
		formatArtifact(&sb, a)
	}
	return sb.String()
}

func formatArtifact(sb *strings.Builder, a ArtifactOutput) {
	fmt.Fprintf(sb, "- `%s`", coordinates(a))
	if a.Name != "" {
		fmt.Fprintf(sb, " %s", a.Name)
	}
	fmt.Fprintf(sb, " (context: %s)", a.ContextID)
	if a.SHA1 != "" {
		fmt.Fprintf(sb, " sha1:%s", a.SHA1)
	}
	sb.WriteString("\n")
}

// coordinates renders group:artifact:version[:classifier]@extension.
func coordinates(a ArtifactOutput) string {
	s := a.GroupID + ":" + a.ArtifactID + ":" + a.Version
	if a.Classifier != "" {
		s += ":" + a.Classifier
	}
	if a.Extension != "" {
		s += "@" + a.Extension
	}
	return s
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
