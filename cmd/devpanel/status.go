package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon health and host metrics",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if !isDaemonRunning(apiAddr) {
		fmt.Println("Daemon: not running")
		fmt.Printf("  (no response from %s)\n", apiAddr)
		return nil
	}
	fmt.Println("Daemon: running")

	resp, err := apiGet("/api/system/metrics")
	if err != nil {
		return err
	}

	var m map[string]float64
	if err := json.Unmarshal(resp, &m); err != nil {
		return err
	}

	fmt.Printf("  CPU:       %.1f%%\n", m["cpu_usage"])
	fmt.Printf("  Memory:    %.1f%% (%s of %s)\n",
		m["memory_usage_percent"],
		formatBytes(uint64(m["memory_used"])),
		formatBytes(uint64(m["memory_total"])))
	fmt.Printf("  Processes: %.0f\n", m["process_count"])
	return nil
}
