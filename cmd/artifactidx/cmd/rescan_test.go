package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/nexus"
	"github.com/Aman-CERP/artifactidx/internal/ui"
)

// recordingRenderer keeps every event it receives.
type recordingRenderer struct {
	progress []ui.ProgressEvent
	errors   []ui.ErrorEvent
}

func (r *recordingRenderer) Start(context.Context) error          { return nil }
func (r *recordingRenderer) UpdateProgress(event ui.ProgressEvent) { r.progress = append(r.progress, event) }
func (r *recordingRenderer) AddError(event ui.ErrorEvent)          { r.errors = append(r.errors, event) }
func (r *recordingRenderer) Complete(ui.CompletionStats)           {}
func (r *recordingRenderer) Stop() error                           { return nil }

func TestProgressListener_ForwardsScanEvents(t *testing.T) {
	// Given: a listener for the second of three contexts
	r := &recordingRenderer{}
	l := &progressListener{renderer: r, position: 2, total: 3}
	l.contextID = "central"

	// When: two artifacts are discovered, one with an extraction error
	coords := artifact.Coordinates{GroupID: "org.x", ArtifactID: "core", Version: "1.0", Extension: "jar"}
	l.ArtifactDiscovered(&artifact.Context{Coordinates: coords})
	bad := &artifact.Context{Artifact: "/repo/org/x/bad/1/bad-1.jar"}
	l.ArtifactDiscovered(bad)
	l.ArtifactError(bad, errors.New("corrupt jar"))
	l.ScanningFinished(nil, &nexus.RescanResult{Discovered: 2, Indexed: 2, Duration: time.Second})

	// Then: progress carries position, counts and the current artifact
	require.Len(t, r.progress, 3)
	first := r.progress[0]
	assert.Equal(t, "central", first.Context)
	assert.Equal(t, 2, first.ContextIndex)
	assert.Equal(t, 3, first.ContextTotal)
	assert.Equal(t, 1, first.Discovered)
	assert.Equal(t, coords.String(), first.Current)
	assert.Equal(t, 2, r.progress[1].Discovered)
	assert.Equal(t, "2 of 2 artifacts indexed in 1s", r.progress[2].Message)

	// And: extraction errors are warnings naming the file
	require.Len(t, r.errors, 1)
	assert.True(t, r.errors[0].IsWarn)
	assert.Equal(t, "/repo/org/x/bad/1/bad-1.jar", r.errors[0].Artifact)
	assert.Equal(t, "central", r.errors[0].Context)
}
