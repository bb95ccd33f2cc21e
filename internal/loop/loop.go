// Package loop hosts the dashboard's Bubbletea event loop (spec §4.7, C7):
// it multiplexes key input, debounced filesystem notifications from C3, and
// a periodic render tick, feeding C1/C2/C4 output into the C5 Store and
// requesting a re-render after every update.
//
// It is grounded on the teacher's internal/tui/app.go Run/Update loop: a
// tea.Program driven from a value-receiver Model, external events bridged in
// via long-lived "wait for the next value on this channel" commands that
// resubmit themselves (the same shape the teacher uses for its event-bus
// subscriptions and its 100ms tick), rather than a hand-rolled select loop.
package loop

import (
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/afero"

	"github.com/taskdash/taskdash/internal/dashboard"
	"github.com/taskdash/taskdash/internal/eventlog"
	"github.com/taskdash/taskdash/internal/logging"
	"github.com/taskdash/taskdash/internal/planfile"
	"github.com/taskdash/taskdash/internal/watch"
)

// tickInterval is the render/metrics refresh cadence (spec §4.7: 1 Hz).
const tickInterval = 1 * time.Second

// sessionMarkerPath is the well-known POSIX path a hook invocation may
// leave its session id at (spec §6). Read once at startup and displayed
// verbatim; never mutated by this process.
const sessionMarkerPath = "/tmp/claude-dashboard-session-id"

// Renderer produces the terminal frame for a Snapshot. internal/render
// supplies the default implementation; tests can substitute a stub.
type Renderer interface {
	Render(snap dashboard.Snapshot, width, height int) string
}

// Model is the Bubbletea model driving the dashboard. It holds no exported
// fields: every external input arrives as a tea.Msg.
type Model struct {
	fs        afero.Fs
	planPath  string
	eventDirs []string

	store    *dashboard.Store
	watcher  *watch.Watcher
	tail     *eventlog.TailReader
	renderer Renderer
	logger   *logging.Logger

	width, height int
	quitting      bool
	fatalErr      error
}

// New builds a Model and performs the synchronous startup load (spec §4.7:
// "on launch, the dashboard parses the plan file once and scans every event
// directory from offset zero before rendering its first frame").
func New(fs afero.Fs, planPath string, eventDirs []string, renderer Renderer, logger *logging.Logger) (*Model, error) {
	m := &Model{
		fs:        fs,
		planPath:  planPath,
		eventDirs: eventDirs,
		store:     dashboard.NewStore(time.Now()),
		tail:      eventlog.NewTailReader(fs),
		renderer:  renderer,
		logger:    logger,
	}

	if err := m.reloadPlan(); err != nil {
		return nil, err
	}

	events, err := m.tail.StartupScan(eventDirs)
	if err != nil {
		return nil, err
	}
	for _, ev := range events {
		m.store.ApplyEvent(ev)
	}

	if marker, err := os.ReadFile(sessionMarkerPath); err == nil {
		id := strings.TrimSpace(string(marker))
		m.store.SetSessionMarker(id)
		if id != "" {
			logger = logger.WithSession(id)
			m.logger = logger
		}
	}

	w, err := watch.New(planPath, eventDirs, watch.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}
	m.watcher = w

	return m, nil
}

func (m *Model) reloadPlan() error {
	raw, err := afero.ReadFile(m.fs, m.planPath)
	if err != nil {
		return err
	}
	m.store.ApplyPlan(planfile.Parse(m.planPath, raw))
	return nil
}

// Store returns the underlying Store, e.g. so a key-binding layer can call
// SetStatus through internal/planfile.Writer.
func (m *Model) Store() *dashboard.Store { return m.store }

// tickMsg drives the 1 Hz metrics/uptime refresh.
type tickMsg time.Time

// watchMsg wraps one debounced notification from C3.
type watchMsg watch.WatchEvent

// fatalMsg wraps a terminal watcher failure (spec §4.3/§7).
type fatalMsg struct{ err error }

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitForWatch resubmits itself after every delivered event, the same
// "subscription" shape the teacher's app.go uses for its event-bus
// subscriptions.
func waitForWatch(ch <-chan watch.WatchEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return watchMsg(ev)
	}
}

func waitForFatal(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return fatalMsg{err: err}
	}
}

// Init starts the watcher and the tick/watch/fatal command chain.
func (m *Model) Init() tea.Cmd {
	m.watcher.Start()
	return tea.Batch(
		tick(),
		waitForWatch(m.watcher.Events()),
		waitForFatal(m.watcher.Fatal()),
	)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.watcher.Stop()
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(tick())

	case watchMsg:
		m.handleWatch(watch.WatchEvent(msg))
		return m, waitForWatch(m.watcher.Events())

	case fatalMsg:
		m.fatalErr = msg.err
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m *Model) handleWatch(ev watch.WatchEvent) {
	switch ev.Kind {
	case watch.PlanChanged:
		if m.logger != nil {
			m.logger.Debug("plan file changed", "path", ev.Path)
		}
		if err := m.reloadPlan(); err != nil && m.logger != nil {
			m.logger.Warn("failed to reload plan", "error", err.Error())
		}

	case watch.EventFileChanged:
		events, err := m.tail.Poll(ev.Path)
		if err != nil {
			if m.logger != nil {
				m.logger.Warn("failed to tail event file", "path", ev.Path, "error", err.Error())
			}
			return
		}
		for _, parsed := range events {
			m.store.ApplyEvent(parsed)
		}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderer.Render(m.store.Snapshot(), m.width, m.height)
}

// FatalErr returns the error that caused the loop to quit, if any.
func (m *Model) FatalErr() error { return m.fatalErr }
