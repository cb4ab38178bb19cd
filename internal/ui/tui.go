package ui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/fsledger/internal/ledger"
	"github.com/Aman-CERP/fsledger/internal/output"
	"github.com/Aman-CERP/fsledger/internal/service"
)

// TUIRenderer shows a live dashboard using bubbletea.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *monitorModel
	tracker *ActivityTracker
	started bool
	quit    chan struct{}
	done    chan struct{}
}

// NewTUIRenderer creates a dashboard renderer. It fails for non-terminal
// output.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a TTY")
	}

	tracker := NewActivityTracker(cfg.Recent, 0)
	model := newMonitorModel(tracker, cfg.LedgerPath)
	if cfg.NoColor || DetectNoColor() {
		model.styles = output.NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context, watchers []service.WatcherView) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	r.model.watchers = watchers

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}
	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
		if r.model.quitting {
			close(r.quit)
		}
	}()
	return nil
}

// Event implements Renderer.
func (r *TUIRenderer) Event(e ledger.Event) {
	r.tracker.Record(e)

	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(eventMsg(e))
	}
}

// Done implements Renderer. It is closed when the user presses q.
func (r *TUIRenderer) Done() <-chan struct{} {
	return r.quit
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	p.Quit()

	// An unresponsive program must not hang shutdown.
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
	}

	snap := r.tracker.Snapshot()
	fmt.Fprintf(r.cfg.Output, "Recorded %d events in %s (%s)\n",
		snap.Total, formatDuration(snap.Elapsed), summarizeCounts(snap.Counts))
	return nil
}

type eventMsg ledger.Event
type tickMsg time.Time

// monitorModel is the bubbletea model for the watch dashboard.
type monitorModel struct {
	tracker    *ActivityTracker
	watchers   []service.WatcherView
	ledgerPath string
	width      int
	height     int
	quitting   bool
	spinner    spinner.Model
	styles     output.Styles
}

func newMonitorModel(tracker *ActivityTracker, ledgerPath string) *monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorLime))

	return &monitorModel{
		tracker:    tracker,
		ledgerPath: ledgerPath,
		spinner:    s,
		styles:     output.DefaultStyles(),
		width:      80,
		height:     24,
	}
}

// Init implements tea.Model.
func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case eventMsg:
		// Already recorded by the renderer; the next View picks it up.
		return m, nil

	case tickMsg:
		m.tracker.Tick()
		return m, tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *monitorModel) View() string {
	if m.quitting {
		return "Stopping watchers...\n"
	}

	contentWidth := max(m.width-4, 40)
	snap := m.tracker.Snapshot()

	sections := []string{
		m.renderWatchers(),
		m.renderDivider(contentWidth),
		m.renderCounts(snap),
		m.renderRate(snap, contentWidth),
		m.renderDivider(contentWidth),
		m.renderRecent(snap, contentWidth),
	}

	title := fmt.Sprintf("%s fsledger", m.spinner.View())
	if m.ledgerPath != "" {
		title = fmt.Sprintf("%s • %s", title, m.ledgerPath)
	}
	panel := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(output.ColorDarkGray)).
		Padding(0, 1).
		Width(contentWidth)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		panel.Render(strings.Join(sections, "\n")),
	) + "\n" + m.styles.Dim.Render(fmt.Sprintf("up %s  │  q to quit", formatDuration(snap.Elapsed)))
}

func (m *monitorModel) renderWatchers() string {
	if len(m.watchers) == 0 {
		return m.styles.Dim.Render("no watchers")
	}
	lines := make([]string, 0, len(m.watchers))
	for _, w := range m.watchers {
		lines = append(lines, fmt.Sprintf("%s %s %s",
			m.styles.Status(w.Status).Render(string(w.Status)),
			w.Path,
			m.styles.Dim.Render(w.Backend)))
	}
	return strings.Join(lines, "\n")
}

func (m *monitorModel) renderCounts(snap Activity) string {
	parts := make([]string, 0, len(ledger.EventTypes())+1)
	parts = append(parts, m.styles.Label.Render(fmt.Sprintf("Events: %d", snap.Total)))
	for _, t := range ledger.EventTypes() {
		parts = append(parts, m.styles.EventType(t).Render(fmt.Sprintf("%s %d", t, snap.Counts[t])))
	}
	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

func (m *monitorModel) renderRate(snap Activity, width int) string {
	spark := m.tracker.RenderRate(max(width-24, 10))
	label := m.styles.Dim.Render(fmt.Sprintf("%.1f/s (peak %.1f)", snap.Rate, snap.PeakRate))
	return m.styles.Success.Render(spark) + " " + label
}

func (m *monitorModel) renderRecent(snap Activity, width int) string {
	if len(snap.Recent) == 0 {
		return m.styles.Dim.Render("waiting for changes...")
	}
	lines := make([]string, 0, len(snap.Recent))
	for i := len(snap.Recent) - 1; i >= 0; i-- {
		e := snap.Recent[i]
		path := e.FilePath
		if e.OldPath != "" {
			path = e.OldPath + " → " + e.FilePath
		}
		lines = append(lines, fmt.Sprintf("%s %s %s",
			m.styles.Dim.Render(e.Timestamp.Local().Format("15:04:05")),
			m.styles.EventType(e.EventType).Render(fmt.Sprintf("%-8s", e.EventType)),
			truncatePath(path, width-20)))
	}
	return strings.Join(lines, "\n")
}

func (m *monitorModel) renderDivider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

// truncatePath shortens path from the left to fit maxLen, keeping the file
// name whenever it fits.
func truncatePath(path string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-maxLen+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
