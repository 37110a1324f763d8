package nexus

import (
	"github.com/Aman-CERP/artifactidx/internal/artifact"
	"github.com/Aman-CERP/artifactidx/internal/index"
)

// ScanListener observes a rescan. Calls arrive on the rescanning goroutine.
type ScanListener interface {
	ScanningStarted(ic *index.IndexingContext)
	ArtifactDiscovered(ac *artifact.Context)
	// ArtifactError reports a per-artifact failure; the scan continues.
	ArtifactError(ac *artifact.Context, err error)
	ScanningFinished(ic *index.IndexingContext, res *RescanResult)
}

// NopListener ignores every event. Embed it to implement only some methods.
type NopListener struct{}

func (NopListener) ScanningStarted(*index.IndexingContext) {}
func (NopListener) ArtifactDiscovered(*artifact.Context) {}
func (NopListener) ArtifactError(*artifact.Context, error) {}
func (NopListener) ScanningFinished(*index.IndexingContext, *RescanResult) {}
