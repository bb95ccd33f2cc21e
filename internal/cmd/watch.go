package cmd

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	appconfig "github.com/taskdash/taskdash/internal/config"
	"github.com/taskdash/taskdash/internal/logging"
	"github.com/taskdash/taskdash/internal/loop"
	"github.com/taskdash/taskdash/internal/render"
)

func init() {
	rootCmd.RunE = runWatch // watch is the default when no subcommand is given
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the task plan and event stream, rendering the dashboard",
	RunE:  runWatch,
}

// exitCodeError lets a RunE failure carry the spec §6 exit code (2 for
// unusable CLI args, 3 for a fatal watcher failure, 1 otherwise) up to
// main.go without cobra's generic error handling collapsing it to 1.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }
func (e *exitCodeError) ExitCode() int { return e.code }

// ExitCode extracts the process exit code for an error returned by
// Execute: 0 for nil, the carried code for an *exitCodeError, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ec *exitCodeError
	if e, ok := err.(*exitCodeError); ok {
		ec = e
		return ec.code
	}
	return 1
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return &exitCodeError{code: 2, err: fmt.Errorf("loading configuration: %w", err)}
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return &exitCodeError{code: 2, err: errs}
	}

	fs := afero.NewOsFs()
	tasksPath := cfg.Tasks.ResolvedPath(func(p string) bool {
		_, statErr := fs.Stat(p)
		return statErr == nil
	})
	if _, statErr := fs.Stat(tasksPath); statErr != nil {
		return &exitCodeError{code: 2, err: fmt.Errorf("no usable plan file: tried %q and %q", cfg.Tasks.Path, cfg.Tasks.FallbackPath)}
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return &exitCodeError{code: 2, err: fmt.Errorf("taskdash requires an interactive terminal")}
	}

	logDir := cfg.Log.Dir
	logger, err := logging.NewLoggerWithRotation(logDir, cfg.Log.Level, logging.DefaultRotationConfig())
	if err != nil {
		color.Red("failed to initialize logging: %v", err)
		logger = logging.NopLogger()
	}
	defer func() { _ = logger.Close() }()

	m, err := loop.New(fs, tasksPath, []string{cfg.Events.Dir}, render.Default{}, logger.WithComponent("loop"))
	if err != nil {
		return &exitCodeError{code: 2, err: fmt.Errorf("starting dashboard: %w", err)}
	}

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return &exitCodeError{code: 1, err: fmt.Errorf("dashboard exited: %w", err)}
	}

	if fatal := m.FatalErr(); fatal != nil {
		return &exitCodeError{code: 3, err: fatal}
	}

	return nil
}
