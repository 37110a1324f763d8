package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"time":"2026-01-02T03:04:05.123Z","level":"DEBUG","msg":"scan_dir","dir":"org"}
{"time":"2026-01-02T03:04:06Z","level":"INFO","msg":"rescan_started","context_id":"central","update":false}
not json at all
{"time":"2026-01-02T03:04:07Z","level":"WARN","msg":"staging_cleanup_failed","context_id":"central"}
{"time":"2026-01-02T03:04:08Z","level":"ERROR","msg":"rescan_failed","context_id":"local"}
`

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), LogFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseLine(t *testing.T) {
	entry := ParseLine(`{"time":"2026-01-02T03:04:06Z","level":"INFO","msg":"rescan_started","context_id":"central"}`)

	require.True(t, entry.IsValid)
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "rescan_started", entry.Msg)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 6, 0, time.UTC), entry.Time.UTC())
	assert.Equal(t, map[string]any{"context_id": "central"}, entry.Attrs)
}

func TestParseLine_Invalid(t *testing.T) {
	entry := ParseLine("plain text")

	assert.False(t, entry.IsValid)
	assert.Equal(t, "plain text", entry.Raw)
}

func TestViewer_Tail(t *testing.T) {
	// Given: a log with five lines
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	// When: tailing the last three
	entries, err := v.Tail(path, 3)

	// Then: only those lines are returned, in file order
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.False(t, entries[0].IsValid)
	assert.Equal(t, "staging_cleanup_failed", entries[1].Msg)
	assert.Equal(t, "rescan_failed", entries[2].Msg)
}

func TestViewer_Tail_LevelFilter(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)
	require.NoError(t, err)

	var msgs []string
	for _, e := range entries {
		if e.IsValid {
			msgs = append(msgs, e.Msg)
		}
	}
	assert.Equal(t, []string{"staging_cleanup_failed", "rescan_failed"}, msgs)
}

func TestViewer_Tail_PatternFilter(t *testing.T) {
	path := writeLog(t, sampleLog)
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`"local"`), NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rescan_failed", entries[0].Msg)
}

func TestViewer_Tail_MissingFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	_, err := v.Tail(filepath.Join(t.TempDir(), "missing.log"), 10)
	assert.Error(t, err)
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})
	entry := ParseLine(`{"time":"2026-01-02T03:04:06Z","level":"INFO","msg":"rescan_finished","indexed":3,"context_id":"central"}`)

	line := v.FormatEntry(entry)

	assert.True(t, strings.HasSuffix(line, "INFO  rescan_finished context_id=central indexed=3"), line)
	assert.Equal(t, "garbage", v.FormatEntry(ParseLine("garbage")))
}

func TestViewer_Print(t *testing.T) {
	buf := &bytes.Buffer{}
	v := NewViewer(ViewerConfig{NoColor: true}, buf)

	v.Print([]LogEntry{ParseLine("one"), ParseLine("two")})

	assert.Equal(t, "one\ntwo\n", buf.String())
}

func TestViewer_Follow(t *testing.T) {
	// Given: a log being followed
	path := writeLog(t, "")
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end.
	time.Sleep(150 * time.Millisecond)

	// When: a line is appended
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-01-02T03:04:06Z","level":"INFO","msg":"appended"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: it is delivered
	select {
	case entry := <-entries:
		assert.Equal(t, "appended", entry.Msg)
	case <-ctx.Done():
		t.Fatal("timed out waiting for followed entry")
	}

	cancel()
	assert.NoError(t, <-done)
}
