package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	appconfig "github.com/taskdash/taskdash/internal/config"
)

// initCmd installs the hook producer script and registers it in a Claude
// Code settings.json (spec §6: "installs the hook producer and patches a
// settings file; not part of the core"). The producer itself is an external
// collaborator out of scope for this spec; this subcommand only lays down a
// stub that emits the JSONL schema internal/eventlog expects.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Install the event-stream hook producer",
	Long: `init writes a hook producer script into the configured hooks
directory and registers it as a PostToolUse hook in .claude/settings.json
(replacing any existing PostToolUse entry), so agent tool-use events start
flowing into the directory taskdash watches for events.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

const hookScript = `#!/bin/sh
# Installed by taskdash init. Appends one JSON object per line to the
# taskdash event stream; see internal/eventlog for the schema taskdash
# watch reads back.
exec taskdash-hook-emit "$@"
`

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := appconfig.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	hooksDir := cfg.Hooks.Path
	if _, err := os.Stat(hooksDir); err != nil {
		hooksDir = cfg.Hooks.FallbackPath
	}
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return fmt.Errorf("creating hooks directory %q: %w", hooksDir, err)
	}
	scriptPath := filepath.Join(hooksDir, "taskdash-event.sh")
	if err := os.WriteFile(scriptPath, []byte(hookScript), 0o755); err != nil {
		return fmt.Errorf("writing hook script: %w", err)
	}

	if err := os.MkdirAll(cfg.Events.Dir, 0o755); err != nil {
		return fmt.Errorf("creating events directory %q: %w", cfg.Events.Dir, err)
	}

	settingsPath := filepath.Join(".claude", "settings.json")
	if err := patchSettings(settingsPath, scriptPath); err != nil {
		return fmt.Errorf("patching %s: %w", settingsPath, err)
	}

	fmt.Printf("installed hook producer at %s\n", scriptPath)
	fmt.Printf("registered in %s\n", settingsPath)
	return nil
}

// patchSettings merges a hook registration into an existing settings.json
// (or creates one) without disturbing keys it doesn't understand.
func patchSettings(path, scriptPath string) error {
	settings := map[string]any{}
	if raw, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(raw, &settings); err != nil {
			return fmt.Errorf("parsing existing settings: %w", err)
		}
	}

	hooks, _ := settings["hooks"].(map[string]any)
	if hooks == nil {
		hooks = map[string]any{}
	}
	hooks["PostToolUse"] = []any{
		map[string]any{
			"hooks": []any{
				map[string]any{"type": "command", "command": scriptPath},
			},
		},
	}
	settings["hooks"] = hooks

	out, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
