// Command boardctl inspects and edits a board snapshot file without running
// the service.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var path string
	rootCmd := &cobra.Command{
		Use:           "boardctl",
		Short:         "Inspect and edit a task board snapshot",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)
	def := os.Getenv("SNAPSHOT_PATH")
	if def == "" {
		def = "data/board.json"
	}
	rootCmd.PersistentFlags().StringVarP(&path, "file", "f", def, "snapshot file")

	rootCmd.AddCommand(listCmd(&path))
	rootCmd.AddCommand(boardCmd(&path))
	rootCmd.AddCommand(calendarCmd(&path))
	rootCmd.AddCommand(addCmd(&path))
	rootCmd.AddCommand(editCmd(&path))
	rootCmd.AddCommand(moveCmd(&path))
	rootCmd.AddCommand(rmCmd(&path))
	rootCmd.AddCommand(seedCmd(&path))
	rootCmd.AddCommand(checkCmd(&path))
	return rootCmd
}
