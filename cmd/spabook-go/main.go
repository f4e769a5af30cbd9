package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "spabook-go",
	Short: "Server-rendered booking site with query cache hydration",
	Long: `spabook-go serves the booking site and its identity backend.

Available subcommands:
  serve   - Run the server-rendering web site
  api     - Run the identity and health backend
  seed    - Load staff identities from a YAML file
  inspect - Fetch a page and show the query state it hydrates`,
	SilenceUsage: true,
}

var channelLevels []string

func init() {
	for _, cmd := range []*cobra.Command{serveCmd, apiCmd} {
		cmd.Flags().StringArrayVar(&channelLevels, "log-level", nil, "per-channel log level as channel=level, e.g. query=debug (repeatable)")
	}
	rootCmd.AddCommand(serveCmd, apiCmd, seedCmd, inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
