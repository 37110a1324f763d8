package ui

import (
	"sync"
	"time"
)

// ProgressTracker accumulates rescan progress. It is safe for concurrent use.
type ProgressTracker struct {
	mu           sync.RWMutex
	stage        Stage
	context      string
	contextIndex int
	contextTotal int
	discovered   int
	indexed      int
	current      string
	startTime    time.Time
	errors       []ErrorEvent
	warnings     []ErrorEvent

	lastIndexed   int
	lastSpeedCalc time.Time
	currentSpeed  float64
	avgSpeed      float64
	peakSpeed     float64
	speedSamples  int
}

// SpeedStats contains artifacts-per-second metrics.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of current progress.
type ProgressStats struct {
	Stage        Stage
	Context      string
	ContextIndex int
	ContextTotal int
	Discovered   int
	Indexed      int
	Current      string
	// Progress is the fraction of contexts finished, 0 when unknown.
	Progress   float64
	Elapsed    time.Duration
	ErrorCount int
	WarnCount  int
	Speed      SpeedStats
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	now := time.Now()
	return &ProgressTracker{
		stage:         StageScanning,
		startTime:     now,
		lastSpeedCalc: now,
	}
}

// Update applies a progress event. Counts reset when the context changes.
func (p *ProgressTracker) Update(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Context != p.context {
		p.lastIndexed = 0
		p.lastSpeedCalc = time.Now()
	}
	p.stage = event.Stage
	p.context = event.Context
	p.contextIndex = event.ContextIndex
	p.contextTotal = event.ContextTotal
	p.discovered = event.Discovered
	p.indexed = event.Indexed
	if event.Current != "" {
		p.current = event.Current
	}

	// Sample speed at most twice a second to avoid noise.
	now := time.Now()
	elapsed := now.Sub(p.lastSpeedCalc)
	if elapsed < 500*time.Millisecond {
		return
	}
	if delta := event.Indexed - p.lastIndexed; delta > 0 {
		speed := float64(delta) / elapsed.Seconds()
		p.currentSpeed = speed
		p.speedSamples++
		if p.speedSamples == 1 {
			p.avgSpeed = speed
		} else {
			p.avgSpeed = 0.2*speed + 0.8*p.avgSpeed
		}
		if speed > p.peakSpeed {
			p.peakSpeed = speed
		}
	}
	p.lastIndexed = event.Indexed
	p.lastSpeedCalc = now
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.IsWarn {
		p.warnings = append(p.warnings, event)
	} else {
		p.errors = append(p.errors, event)
	}
}

// Complete marks the run finished.
func (p *ProgressTracker) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = StageComplete
}

// Stats returns a snapshot.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	progress := 0.0
	if p.contextTotal > 0 {
		done := p.contextIndex - 1
		if p.stage == StageComplete {
			done = p.contextTotal
		}
		progress = min(max(float64(done)/float64(p.contextTotal), 0), 1)
	}

	return ProgressStats{
		Stage:        p.stage,
		Context:      p.context,
		ContextIndex: p.contextIndex,
		ContextTotal: p.contextTotal,
		Discovered:   p.discovered,
		Indexed:      p.indexed,
		Current:      p.current,
		Progress:     progress,
		Elapsed:      time.Since(p.startTime),
		ErrorCount:   len(p.errors),
		WarnCount:    len(p.warnings),
		Speed: SpeedStats{
			Current: p.currentSpeed,
			Avg:     p.avgSpeed,
			Peak:    p.peakSpeed,
		},
	}
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}
