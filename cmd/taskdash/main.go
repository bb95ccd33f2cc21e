// Command taskdash renders a hierarchical task plan and live coding-agent
// tool-use events in one terminal dashboard.
package main

import (
	"os"

	"github.com/fatih/color"

	"github.com/taskdash/taskdash/internal/cmd"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		color.Red("taskdash: %v", err)
	}
	os.Exit(cmd.ExitCode(err))
}
