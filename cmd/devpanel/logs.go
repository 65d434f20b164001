package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/panelkit/devpanel/internal/models"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Work with aggregated logs",
}

var logsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show combined logs across all services",
	RunE:  runLogsTail,
}

var logsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stored log entries older than the retention window",
	RunE:  runLogsCleanup,
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show stored log counts by service and level",
	RunE:  runLogsStats,
}

var (
	combinedLines  int
	combinedLevel  string
	combinedSearch string
	cleanupDays    int
)

func init() {
	logsCmd.AddCommand(logsTailCmd, logsCleanupCmd, logsStatsCmd)

	logsTailCmd.Flags().IntVar(&combinedLines, "lines", 100, "Number of log entries to show")
	logsTailCmd.Flags().StringVar(&combinedLevel, "level", "", "Filter by level (error, warn, info, debug)")
	logsTailCmd.Flags().StringVar(&combinedSearch, "search", "", "Filter by message substring")

	logsCleanupCmd.Flags().IntVar(&cleanupDays, "days", 30, "Delete entries older than this many days")
}

func runLogsTail(cmd *cobra.Command, args []string) error {
	q := url.Values{}
	q.Set("lines", fmt.Sprintf("%d", combinedLines))
	if combinedLevel != "" {
		q.Set("level", combinedLevel)
	}
	if combinedSearch != "" {
		q.Set("search", combinedSearch)
	}

	resp, err := apiGet("/api/logs/combined?" + q.Encode())
	if err != nil {
		return err
	}

	var page models.FilteredLogs
	if err := json.Unmarshal(resp, &page); err != nil {
		return err
	}

	if len(page.Logs) == 0 {
		fmt.Println("No log entries")
		return nil
	}

	for _, e := range page.Logs {
		printLogEntry(e, true)
	}
	return nil
}

func runLogsCleanup(cmd *cobra.Command, args []string) error {
	resp, err := apiPost(fmt.Sprintf("/api/logs/cleanup?days=%d", cleanupDays))
	if err != nil {
		return err
	}

	var result map[string]int64
	if err := json.Unmarshal(resp, &result); err != nil {
		return err
	}

	fmt.Printf("Deleted %d entries older than %d days\n", result["deleted"], result["days"])
	return nil
}

func runLogsStats(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/api/logs/stats")
	if err != nil {
		return err
	}

	var stats map[string]int
	if err := json.Unmarshal(resp, &stats); err != nil {
		return err
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tCOUNT")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%d\n", k, stats[k])
	}
	w.Flush()
	return nil
}
