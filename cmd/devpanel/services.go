package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/panelkit/devpanel/internal/models"
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "Manage workspace services",
}

var servicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List detected services",
	RunE:  runServicesList,
}

var servicesStartCmd = &cobra.Command{
	Use:   "start [service-id]",
	Short: "Start a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesStart,
}

var servicesStopCmd = &cobra.Command{
	Use:   "stop [service-id]",
	Short: "Stop a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesStop,
}

var servicesRestartCmd = &cobra.Command{
	Use:   "restart [service-id]",
	Short: "Restart a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesRestart,
}

var servicesStatusCmd = &cobra.Command{
	Use:   "status [service-id]",
	Short: "Show the supervised status of a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesStatus,
}

var servicesLogsCmd = &cobra.Command{
	Use:   "logs [service-id]",
	Short: "Show service logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesLogs,
}

var servicesMetricsCmd = &cobra.Command{
	Use:   "metrics [service-id]",
	Short: "Show process metrics for a service",
	Args:  cobra.ExactArgs(1),
	RunE:  runServicesMetrics,
}

var (
	logLines  int
	logLevel  string
	logSearch string
)

func init() {
	servicesCmd.AddCommand(servicesListCmd, servicesStartCmd, servicesStopCmd, servicesRestartCmd, servicesStatusCmd, servicesLogsCmd, servicesMetricsCmd)

	servicesLogsCmd.Flags().IntVar(&logLines, "lines", 100, "Number of log lines to show")
	servicesLogsCmd.Flags().StringVar(&logLevel, "level", "", "Filter by level (error, warn, info, debug)")
	servicesLogsCmd.Flags().StringVar(&logSearch, "search", "", "Filter by message substring")
}

func runServicesList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/api/services")
	if err != nil {
		return err
	}

	var services []models.Service
	if err := json.Unmarshal(resp, &services); err != nil {
		return err
	}

	if len(services) == 0 {
		fmt.Println("No services detected")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tPORT\tRESTARTS")
	for _, s := range services {
		port := "-"
		if s.Port > 0 {
			port = fmt.Sprintf("%d", s.Port)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Type, s.Status, port, s.Restarts)
	}
	w.Flush()
	return nil
}

func runServicesStart(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/api/services/" + args[0] + "/start"); err != nil {
		return err
	}
	fmt.Printf("Started %s\n", args[0])
	return nil
}

func runServicesStop(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/api/services/" + args[0] + "/stop"); err != nil {
		return err
	}
	fmt.Printf("Stopped %s\n", args[0])
	return nil
}

func runServicesRestart(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/api/services/" + args[0] + "/restart"); err != nil {
		return err
	}
	fmt.Printf("Restarted %s\n", args[0])
	return nil
}

func runServicesStatus(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/api/services/" + args[0] + "/status")
	if err != nil {
		return err
	}

	var status string
	if err := json.Unmarshal(resp, &status); err != nil {
		return err
	}

	fmt.Println(status)
	return nil
}

func runServicesLogs(cmd *cobra.Command, args []string) error {
	// A level or search filter switches the endpoint to its filtered
	// query, which takes limit instead of lines.
	q := url.Values{}
	if logLevel != "" || logSearch != "" {
		q.Set("limit", fmt.Sprintf("%d", logLines))
		if logLevel != "" {
			q.Set("level", logLevel)
		}
		if logSearch != "" {
			q.Set("search", logSearch)
		}
	} else {
		q.Set("lines", fmt.Sprintf("%d", logLines))
	}

	resp, err := apiGet("/api/services/" + args[0] + "/logs?" + q.Encode())
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
		printLogEntry(e, false)
	}
	return nil
}

func runServicesMetrics(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/api/services/" + args[0] + "/metrics")
	if err != nil {
		return err
	}

	var info models.ProcessInfo
	if err := json.Unmarshal(resp, &info); err != nil {
		return err
	}

	pid := "-"
	if info.PID != nil {
		pid = fmt.Sprintf("%d", *info.PID)
	}
	fmt.Printf("PID:     %s\n", pid)
	fmt.Printf("Status:  %s\n", info.Status)
	fmt.Printf("CPU:     %.1f%%\n", info.CPUUsage)
	fmt.Printf("Memory:  %s\n", formatBytes(info.MemoryUsage))
	fmt.Printf("Uptime:  %s\n", formatUptime(info.Uptime))
	return nil
}

// printLogEntry renders one entry. withService prefixes the owning
// service id, used by the combined view.
func printLogEntry(e models.LogEntry, withService bool) {
	ts := e.Timestamp.Local().Format("15:04:05")
	level := strings.ToUpper(e.Level)
	if withService {
		fmt.Printf("%s [%s] %-9s %s\n", ts, level, e.ServiceID, e.Message)
		return
	}
	fmt.Printf("%s [%s] %s\n", ts, level, e.Message)
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatUptime(seconds uint64) string {
	if seconds == 0 {
		return "-"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
