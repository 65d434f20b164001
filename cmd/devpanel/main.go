package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "devpanel",
	Short: "devpanel - local development services panel",
	Long:  `devpanel supervises the local development services of a workspace and aggregates their logs behind one HTTP API, a CLI, and an interactive TUI.`,
	// No RunE - defaults to showing help when no subcommand is provided
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the devpanel version",
	Run:   runVersion,
}

var (
	apiAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:9000", "API server address")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(servicesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(containersCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("devpanel version %s\n", version)
	fmt.Printf("  OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go version: %s\n", runtime.Version())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
