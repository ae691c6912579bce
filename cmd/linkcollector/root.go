package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkcollector.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkcollector",
		Short: "Collect links from websites by breadth-first crawling",
		Long: `linkcollector crawls a website starting from a seed URL, follows links up to
a configurable depth and reports every URL it discovered together with the
page it was found on.

Crawls are polite by default: one request at a time per site with a delay
between requests. Results are saved to a local history database so that
later crawls can be compared with earlier ones.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCollectCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
