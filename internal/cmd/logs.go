package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	appconfig "github.com/taskdash/taskdash/internal/config"
	"github.com/taskdash/taskdash/internal/logging"
)

// logs exposes the teacher's aggregate/filter/export utilities
// (internal/logging/aggregate.go) for post-hoc inspection of a dashboard
// session's debug.log once the watch loop has exited. Only the current
// debug.log is read; rotated backups are not. It is not part of the core
// watch path (spec §6).
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect a past dashboard session's debug log",
	RunE:  runLogs,
}

var (
	logsLevel     string
	logsSince     string
	logsExport    string
	logsFormat    string
	logsContain   string
	logsComponent string
	logsAgent     string
)

func init() {
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "minimum level to show (DEBUG, INFO, WARN, ERROR)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "only show entries at or after this RFC3339 timestamp")
	logsCmd.Flags().StringVar(&logsContain, "contains", "", "only show entries whose message contains this substring")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "only show entries tagged with this component (e.g. loop, watch, planfile)")
	logsCmd.Flags().StringVar(&logsAgent, "agent", "", "only show entries tagged with this agent id")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "write the filtered entries to this path instead of stdout")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "export format: text, json, or csv")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return &exitCodeError{code: 2, err: fmt.Errorf("loading configuration: %w", err)}
	}
	if cfg.Log.Dir == "" {
		return &exitCodeError{code: 2, err: fmt.Errorf("log.dir is unset: this session logged to stderr, there is no debug.log to inspect")}
	}

	entries, err := logging.AggregateLogs(cfg.Log.Dir)
	if err != nil {
		return &exitCodeError{code: 1, err: fmt.Errorf("reading debug.log: %w", err)}
	}

	filter := logging.LogFilter{
		Level:           logsLevel,
		MessageContains: logsContain,
		Component:       logsComponent,
		AgentID:         logsAgent,
	}
	if logsSince != "" {
		since, err := time.Parse(time.RFC3339, logsSince)
		if err != nil {
			return &exitCodeError{code: 2, err: fmt.Errorf("parsing --since: %w", err)}
		}
		filter.StartTime = since
	}
	entries = logging.FilterLogs(entries, filter)

	if logsExport != "" {
		if err := logging.ExportLogEntries(entries, logsExport, logsFormat); err != nil {
			return &exitCodeError{code: 1, err: fmt.Errorf("exporting logs: %w", err)}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d entries to %s\n", len(entries), logsExport)
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
	}
	return nil
}
