package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs one line per event, for CI and pipes.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
	// every throttles discovery lines; stage changes always print.
	every   int
	context string
	stage   Stage
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, every: 1000}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := event.Context != r.context || event.Stage != r.stage
	r.context, r.stage = event.Context, event.Stage

	prefix := fmt.Sprintf("[%s]", event.Stage.Icon())
	if event.ContextTotal > 1 {
		prefix = fmt.Sprintf("[%s %d/%d]", event.Stage.Icon(), event.ContextIndex, event.ContextTotal)
	}

	switch {
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "%s %s: %s\n", prefix, event.Context, event.Message)
	case changed:
		_, _ = fmt.Fprintf(r.out, "%s %s\n", prefix, event.Context)
	case event.Discovered > 0 && event.Discovered%r.every == 0:
		_, _ = fmt.Fprintf(r.out, "%s %s: %d discovered, %d indexed\n", prefix, event.Context, event.Discovered, event.Indexed)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Artifact != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Artifact, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d contexts, %d artifacts indexed in %s",
		stats.Contexts, stats.Indexed, stats.Duration.Round(100*time.Millisecond))
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d skipped", stats.Skipped)
	}
	if stats.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, ", %d failed", stats.Failed)
	}
	if stats.Errors > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d artifact errors)", stats.Errors)
	}
	_, _ = fmt.Fprintln(r.out)
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
