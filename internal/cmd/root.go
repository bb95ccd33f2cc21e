// Package cmd provides taskdash's CLI command tree, grounded on the
// teacher's internal/cmd/root.go: a single cobra root command,
// cobra.OnInitialize wiring config defaults before flag/env/file overrides
// are merged, and one file per subcommand.
package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	appconfig "github.com/taskdash/taskdash/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "taskdash",
	Short: "Terminal dashboard for a task plan and live agent activity",
	Long: `taskdash renders a hierarchical task plan and live coding-agent
tool-use events in one terminal dashboard, merging a human-edited
markdown plan file with an append-only JSONL event log.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/taskdash/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().String("tasks", "", "plan markdown file (default ./TASKS.md, fallback ./docs/planning/06-tasks.md)")
	rootCmd.PersistentFlags().String("hooks", "", "hook producer install directory (default .claude/hooks, fallback ~/.claude/hooks)")
	rootCmd.PersistentFlags().String("events", "", "event-stream directory (default ~/.claude/dashboard)")
	_ = viper.BindPFlag("tasks.path", rootCmd.PersistentFlags().Lookup("tasks"))
	_ = viper.BindPFlag("hooks.path", rootCmd.PersistentFlags().Lookup("hooks"))
	_ = viper.BindPFlag("events.dir", rootCmd.PersistentFlags().Lookup("events"))
}

func initConfig() {
	appconfig.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(appconfig.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TASKDASH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}
