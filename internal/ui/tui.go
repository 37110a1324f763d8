package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer shows rescan progress with bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *rescanModel
	tracker *ProgressTracker
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates a TUI renderer. It fails for non-terminal output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewProgressTracker()
	model := newRescanModel(tracker)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	ctx, r.cancel = context.WithCancel(ctx)
	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithInput(nil)}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()
	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.tracker.Update(event)
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.tracker.AddError(event)
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.tracker.Complete()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.program != nil {
		r.program.Send(completeMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	program, done := r.program, r.done
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	if program == nil {
		return nil
	}
	program.Quit()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return nil
}

type completeMsg CompletionStats
type tickMsg time.Time

// rescanModel is the bubbletea model. Progress is read from the tracker
// on every tick rather than sent as messages.
type rescanModel struct {
	tracker     *ProgressTracker
	width       int
	complete    bool
	stats       CompletionStats
	spinner     spinner.Model
	progressBar progress.Model
	styles      Styles
}

func newRescanModel(tracker *ProgressTracker) *rescanModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorLime))

	return &rescanModel{
		tracker: tracker,
		spinner: s,
		progressBar: progress.New(
			progress.WithSolidFill(ColorLime),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
		styles: DefaultStyles(),
		width:  80,
	}
}

// Init implements tea.Model.
func (m *rescanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *rescanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = max(msg.Width-30, 20)
	case completeMsg:
		m.complete = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *rescanModel) View() string {
	if m.complete {
		return m.renderComplete()
	}

	stats := m.tracker.Stats()
	var lines []string

	header := fmt.Sprintf("%s %s %s", m.spinner.View(), stats.Stage, m.styles.Header.Render(stats.Context))
	if stats.ContextTotal > 1 {
		header += m.styles.Label.Render(fmt.Sprintf("  (%d/%d)", stats.ContextIndex, stats.ContextTotal))
	}
	lines = append(lines, header)

	if stats.ContextTotal > 1 {
		lines = append(lines, m.progressBar.ViewAs(stats.Progress))
	}

	counts := fmt.Sprintf("%s %d  %s %d",
		m.styles.Label.Render("discovered"), stats.Discovered,
		m.styles.Label.Render("indexed"), stats.Indexed)
	if stats.Speed.Current > 0 {
		counts += m.styles.Dim.Render(fmt.Sprintf("  %.0f/s", stats.Speed.Current))
	}
	if stats.ErrorCount > 0 {
		counts += "  " + m.styles.Error.Render(fmt.Sprintf("%d errors", stats.ErrorCount))
	}
	lines = append(lines, counts)

	if stats.Current != "" {
		lines = append(lines, m.styles.Dim.Render(truncate(stats.Current, m.width-2)))
	}
	return strings.Join(lines, "\n") + "\n"
}

func (m *rescanModel) renderComplete() string {
	var sb strings.Builder
	title := "Rescan complete"
	style := m.styles.Success
	if m.stats.Failed > 0 {
		title = "Rescan finished with failures"
		style = m.styles.Error
	}
	sb.WriteString(style.Render(title) + "\n")
	fmt.Fprintf(&sb, "  %s %d\n", m.styles.Label.Render("Contexts:  "), m.stats.Contexts)
	fmt.Fprintf(&sb, "  %s %d\n", m.styles.Label.Render("Indexed:   "), m.stats.Indexed)
	fmt.Fprintf(&sb, "  %s %s\n", m.styles.Label.Render("Duration:  "), formatDuration(m.stats.Duration))
	if speed := m.tracker.Stats().Speed; speed.Avg > 0 {
		fmt.Fprintf(&sb, "  %s %.0f artifacts/sec\n", m.styles.Label.Render("Avg speed: "), speed.Avg)
	}
	if m.stats.Skipped > 0 {
		sb.WriteString("  " + m.styles.Warning.Render(fmt.Sprintf("%d skipped (no repository)", m.stats.Skipped)) + "\n")
	}
	if m.stats.Errors > 0 {
		sb.WriteString("  " + m.styles.Error.Render(fmt.Sprintf("%d artifact errors", m.stats.Errors)) + "\n")
	}
	return sb.String()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// truncate keeps the tail of s, which holds the most specific part of a path.
func truncate(s string, maxLen int) string {
	if maxLen < 4 || len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
