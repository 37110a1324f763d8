package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/journal"
)

// Table is command output in rows and columns.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Printer renders command output either styled or as tab-separated text.
type Printer struct {
	out    io.Writer
	styled bool
	styles Styles
}

// NewPrinter creates a printer. Styling is used only for interactive output.
func NewPrinter(cfg Config) *Printer {
	return &Printer{
		out:    cfg.Output,
		styled: cfg.Interactive(),
		styles: GetStyles(!cfg.Colored()),
	}
}

// Table prints t.
func (p *Printer) Table(t Table) error {
	if len(t.Rows) == 0 {
		return nil
	}
	if !p.styled {
		tw := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, strings.Join(t.Headers, "\t"))
		for _, row := range t.Rows {
			_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	}

	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(p.styles.Border).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return p.styles.Header.PaddingRight(1).PaddingLeft(1)
			}
			return p.styles.Cell.PaddingLeft(1).PaddingRight(1)
		})
	_, err := fmt.Fprintln(p.out, tbl.Render())
	return err
}

// Heading prints a section title.
func (p *Printer) Heading(text string) {
	_, _ = fmt.Fprintln(p.out, p.styles.Header.Render(text))
}

// Success prints a confirmation line.
func (p *Printer) Success(text string) {
	_, _ = fmt.Fprintln(p.out, p.styles.Success.Render(text))
}

// Warn prints a warning line.
func (p *Printer) Warn(text string) {
	_, _ = fmt.Fprintln(p.out, p.styles.Warning.Render(text))
}

// Dim prints secondary information.
func (p *Printer) Dim(text string) {
	_, _ = fmt.Fprintln(p.out, p.styles.Dim.Render(text))
}

// JSON prints v as indented JSON.
func (p *Printer) JSON(v any) error {
	encoder := json.NewEncoder(p.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// ContextsTable lists registered contexts.
func ContextsTable(descs []index.Description) Table {
	t := Table{Headers: []string{"ID", "KIND", "REPOSITORY", "SEARCHABLE", "DOCUMENTS", "UPDATED"}}
	for _, d := range descs {
		kind := "index"
		repo := d.Repository
		if d.Merged {
			kind = "merged"
			repo = strings.Join(d.Members, ",")
		}
		if repo == "" {
			repo = "-"
		}
		t.Rows = append(t.Rows, []string{
			d.ID,
			kind,
			repo,
			strconv.FormatBool(d.Searchable),
			strconv.FormatUint(d.Documents, 10),
			formatTime(d.Timestamp),
		})
	}
	return t
}

// HitsTable lists search or identification hits.
func HitsTable(infos []*artifact.Info) Table {
	t := Table{Headers: []string{"GROUP", "ARTIFACT", "VERSION", "CLASSIFIER", "EXT", "NAME", "CONTEXT"}}
	for _, info := range infos {
		t.Rows = append(t.Rows, []string{
			info.GroupID,
			info.ArtifactID,
			info.Version,
			orDash(info.Classifier),
			orDash(info.Extension),
			orDash(info.Name),
			info.ContextID,
		})
	}
	return t
}

// RunsTable lists journal entries.
func RunsTable(runs []journal.Run) Table {
	t := Table{Headers: []string{"STARTED", "CONTEXT", "MODE", "STATUS", "DISCOVERED", "DURATION", "ERROR"}}
	for _, r := range runs {
		mode := "full"
		if r.Update {
			mode = "update"
		}
		if r.FromPath != "" {
			mode += " " + r.FromPath
		}
		duration := "-"
		if d := r.Duration(); d > 0 {
			duration = formatDuration(d)
		}
		t.Rows = append(t.Rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.ContextID,
			mode,
			string(r.Status),
			strconv.Itoa(r.Discovered),
			duration,
			orDash(r.Error),
		})
	}
	return t
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatTime formats a time relative to now for display.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day") + " ago"
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
