package ui

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
	"github.com/Aman-CERP/artifactidx/internal/journal"
)

func TestPrinter_PlainTable(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(NewConfig(buf))

	err := p.Table(Table{
		Headers: []string{"ID", "DOCS"},
		Rows:    [][]string{{"central", "12"}, {"local", "3"}},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "DOCS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"central", "12"}, strings.Fields(lines[1]))
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPrinter_EmptyTablePrintsNothing(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(NewConfig(buf))

	require.NoError(t, p.Table(Table{Headers: []string{"ID"}}))
	assert.Empty(t, buf.String())
}

func TestPrinter_StyledTable(t *testing.T) {
	buf := &bytes.Buffer{}
	p := &Printer{out: buf, styled: true, styles: NoColorStyles()}

	require.NoError(t, p.Table(Table{
		Headers: []string{"ID"},
		Rows:    [][]string{{"central"}},
	}))

	output := buf.String()
	assert.Contains(t, output, "central")
	assert.Contains(t, output, "╭")
}

func TestPrinter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	p := NewPrinter(NewConfig(buf))

	require.NoError(t, p.JSON(map[string]int{"hits": 2}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 2, decoded["hits"])
}

func TestContextsTable(t *testing.T) {
	tbl := ContextsTable([]index.Description{
		{ID: "central", Repository: "/repo", Searchable: true, Documents: 5},
		{ID: "all", Merged: true, Members: []string{"central", "local"}},
	})

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"central", "index", "/repo", "true", "5", "never"}, tbl.Rows[0])
	assert.Equal(t, "merged", tbl.Rows[1][1])
	assert.Equal(t, "central,local", tbl.Rows[1][2])
}

func TestHitsTable(t *testing.T) {
	tbl := HitsTable([]*artifact.Info{{
		Coordinates: artifact.Coordinates{GroupID: "org.x", ArtifactID: "core", Version: "1.0", Extension: "jar"},
		ContextID:   "central",
	}})

	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"org.x", "core", "1.0", "-", "jar", "-", "central"}, tbl.Rows[0])
}

func TestRunsTable(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tbl := RunsTable([]journal.Run{{
		ID:         "r1",
		ContextID:  "central",
		Update:     true,
		FromPath:   "org/x",
		Status:     journal.StatusSucceeded,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Discovered: 7,
	}})

	require.Len(t, tbl.Rows, 1)
	row := tbl.Rows[0]
	assert.Equal(t, "central", row[1])
	assert.Equal(t, "update org/x", row[2])
	assert.Equal(t, "succeeded", row[3])
	assert.Equal(t, "7", row[4])
	assert.Equal(t, "-", row[6])
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "never", formatTime(time.Time{}))
	assert.Equal(t, "just now", formatTime(time.Now()))
	assert.Equal(t, "5 minutes ago", formatTime(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "1 hour ago", formatTime(time.Now().Add(-61*time.Minute)))
	assert.Equal(t, "3 days ago", formatTime(time.Now().Add(-73*time.Hour)))

	old := time.Date(2020, 5, 6, 7, 8, 0, 0, time.Local)
	assert.Equal(t, "2020-05-06 07:08", formatTime(old))
}
