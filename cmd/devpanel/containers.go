package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/panelkit/devpanel/internal/models"
)

var containersCmd = &cobra.Command{
	Use:   "containers",
	Short: "Manage Docker containers",
}

var containersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List containers",
	RunE:  runContainersList,
}

var containersStartCmd = &cobra.Command{
	Use:   "start [container-id]",
	Short: "Start a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runContainersStart,
}

var containersStopCmd = &cobra.Command{
	Use:   "stop [container-id]",
	Short: "Stop a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runContainersStop,
}

var containersRestartCmd = &cobra.Command{
	Use:   "restart [container-id]",
	Short: "Restart a container",
	Args:  cobra.ExactArgs(1),
	RunE:  runContainersRestart,
}

var containersLogsCmd = &cobra.Command{
	Use:   "logs [container-id]",
	Short: "Show container logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runContainersLogs,
}

var containerTail int

func init() {
	containersCmd.AddCommand(containersListCmd, containersStartCmd, containersStopCmd, containersRestartCmd, containersLogsCmd)

	containersLogsCmd.Flags().IntVar(&containerTail, "tail", 100, "Number of log lines to show")
}

func runContainersList(cmd *cobra.Command, args []string) error {
	resp, err := apiGet("/api/containers")
	if err != nil {
		return err
	}

	var containers []models.ContainerInfo
	if err := json.Unmarshal(resp, &containers); err != nil {
		return err
	}

	if len(containers) == 0 {
		fmt.Println("No containers found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tIMAGE\tSTATUS\tPORTS\tCPU\tMEMORY")
	for _, c := range containers {
		ports := "-"
		if len(c.Ports) > 0 {
			ports = strings.Join(c.Ports, ",")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.1f%%\t%s\n", c.ID, c.Name, c.Image, c.Status, ports, c.CPUUsage, formatBytes(c.MemoryUsage))
	}
	w.Flush()
	return nil
}

func runContainersStart(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/api/containers/" + args[0] + "/start"); err != nil {
		return err
	}
	fmt.Printf("Started container %s\n", args[0])
	return nil
}

func runContainersStop(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/api/containers/" + args[0] + "/stop"); err != nil {
		return err
	}
	fmt.Printf("Stopped container %s\n", args[0])
	return nil
}

func runContainersRestart(cmd *cobra.Command, args []string) error {
	if _, err := apiPost("/api/containers/" + args[0] + "/restart"); err != nil {
		return err
	}
	fmt.Printf("Restarted container %s\n", args[0])
	return nil
}

func runContainersLogs(cmd *cobra.Command, args []string) error {
	resp, err := apiGet(fmt.Sprintf("/api/containers/%s/logs?tail=%d", args[0], containerTail))
	if err != nil {
		return err
	}

	var lines []string
	if err := json.Unmarshal(resp, &lines); err != nil {
		return err
	}

	if len(lines) == 0 {
		fmt.Println("No log lines")
		return nil
	}

	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
