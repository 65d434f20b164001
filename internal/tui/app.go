// Package tui provides the interactive terminal dashboard for the
// panel daemon.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/panelkit/devpanel/internal/models"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#3B82F6")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	onlineStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	offlineStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// refreshInterval drives the periodic data refresh.
const refreshInterval = 2 * time.Second

// logTailLines is how many recent lines the log view requests.
const logTailLines = 200

// App is the main TUI application model.
type App struct {
	client       *Client
	services     []models.Service
	containers   []models.ContainerInfo
	selectedIdx  int
	containerIdx int
	viewport     viewport.Model
	width        int
	height       int
	mode         string // "services", "logs", "containers"
	logsFor      string
	sysMetrics   map[string]float64
	message      string
	loading      bool
	daemonOnline bool
}

// New creates a new TUI application talking to the daemon at apiAddr.
func New(apiAddr string) *App {
	vp := viewport.New(80, 20)

	return &App{
		client:   NewClient(apiAddr),
		viewport: vp,
		mode:     "services",
		loading:  true,
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.fetchServices(),
		a.fetchSystemMetrics(),
		a.checkDaemon(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit

		case "esc":
			if a.mode != "services" {
				a.mode = "services"
				a.logsFor = ""
				return a, a.fetchServices()
			}

		case "up", "k":
			if a.mode == "services" && a.selectedIdx > 0 {
				a.selectedIdx--
			} else if a.mode == "containers" && a.containerIdx > 0 {
				a.containerIdx--
			}

		case "down", "j":
			if a.mode == "services" && a.selectedIdx < len(a.services)-1 {
				a.selectedIdx++
			} else if a.mode == "containers" && a.containerIdx < len(a.containers)-1 {
				a.containerIdx++
			}

		case "enter", "l":
			if a.mode == "services" && len(a.services) > 0 {
				svc := a.services[a.selectedIdx]
				a.mode = "logs"
				a.logsFor = svc.ID
				a.viewport.SetContent("  Loading logs...")
				return a, a.fetchLogs(svc.ID)
			}

		case "s":
			if svc, ok := a.selectedService(); ok {
				return a, a.controlService("start", svc.ID)
			}

		case "x":
			if svc, ok := a.selectedService(); ok {
				return a, a.controlService("stop", svc.ID)
			}

		case "r":
			if a.mode == "containers" {
				return a, a.fetchContainers()
			}
			if svc, ok := a.selectedService(); ok {
				return a, a.controlService("restart", svc.ID)
			}

		case "c":
			a.mode = "containers"
			return a, a.fetchContainers()

		case "tab":
			if a.mode == "services" {
				a.mode = "containers"
				return a, a.fetchContainers()
			}
			a.mode = "services"
			return a, a.fetchServices()
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = msg.Width - 4
		a.viewport.Height = msg.Height - 9

	case servicesLoadedMsg:
		a.loading = false
		a.services = msg.services
		if a.selectedIdx >= len(a.services) {
			a.selectedIdx = max(0, len(a.services)-1)
		}

	case logsLoadedMsg:
		if a.mode == "logs" && a.logsFor == msg.serviceID {
			atBottom := a.viewport.AtBottom()
			a.viewport.SetContent(a.renderLogEntries(msg.page.Logs))
			if atBottom {
				a.viewport.GotoBottom()
			}
		}

	case containersLoadedMsg:
		a.containers = msg.containers
		if a.containerIdx >= len(a.containers) {
			a.containerIdx = max(0, len(a.containers)-1)
		}

	case systemMetricsMsg:
		a.sysMetrics = msg.metrics

	case daemonStatusMsg:
		a.daemonOnline = msg.online

	case actionResultMsg:
		a.message = msg.message
		return a, a.fetchServices()

	case tickMsg:
		cmds := []tea.Cmd{a.fetchSystemMetrics(), a.checkDaemon(), a.tickCmd()}
		switch a.mode {
		case "services":
			cmds = append(cmds, a.fetchServices())
		case "logs":
			cmds = append(cmds, a.fetchLogs(a.logsFor))
		case "containers":
			cmds = append(cmds, a.fetchContainers())
		}
		return a, tea.Batch(cmds...)

	case errMsg:
		a.loading = false
		a.message = "Error: " + msg.err.Error()
	}

	// Scroll keys fall through to the log viewport.
	if a.mode == "logs" {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}

	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemonStatus := onlineStyle.Render("● DAEMON")
	if !a.daemonOnline {
		daemonStatus = offlineStyle.Render("○ DAEMON")
	}

	header := titleStyle.Render("DEVPANEL")
	header += "  " + daemonStatus
	header += "  " + lipgloss.NewStyle().Foreground(cyanColor).Render(a.formatSystemMetrics())

	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	contentHeight := a.height - 7
	if contentHeight < 5 {
		contentHeight = 5
	}

	switch a.mode {
	case "services":
		b.WriteString(a.renderServices(contentHeight))
	case "logs":
		b.WriteString(a.renderLogsView())
	case "containers":
		b.WriteString(a.renderContainers(contentHeight))
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}
	b.WriteString("\n")

	var status string
	switch a.mode {
	case "services":
		status = fmt.Sprintf(" Services: %d | ↑↓:nav | Enter:logs | s:start | x:stop | r:restart | Tab:containers | q:quit", len(a.services))
	case "logs":
		status = fmt.Sprintf(" Logs: %s | ↑↓:scroll | Esc:back | q:quit", a.logsFor)
	case "containers":
		status = fmt.Sprintf(" Containers: %d | ↑↓:nav | r:refresh | Esc:back | q:quit", len(a.containers))
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 20)).Render(status))

	return b.String()
}

func (a *App) selectedService() (models.Service, bool) {
	if a.mode != "services" || len(a.services) == 0 {
		return models.Service{}, false
	}
	return a.services[a.selectedIdx], true
}

func (a *App) renderServices(height int) string {
	if a.loading {
		return "\n  Loading services...\n"
	}
	if len(a.services) == 0 {
		return "\n  No services detected in the project tree.\n"
	}

	var lines []string
	for i, svc := range a.services {
		port := "-"
		if svc.Port > 0 {
			port = fmt.Sprintf(":%d", svc.Port)
		}
		body := fmt.Sprintf("  %-24s %-12s %-7s restarts:%d",
			svc.Name, svc.Type, port, svc.Restarts)

		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render("▶ "+a.plainGlyph(svc.Status)+body))
		} else {
			lines = append(lines, rowStyle.Render("  "+a.statusGlyph(svc.Status)+body))
		}
	}

	if len(lines) > height {
		start := a.selectedIdx - height/2
		if start < 0 {
			start = 0
		}
		end := start + height
		if end > len(lines) {
			end = len(lines)
			start = max(0, end-height)
		}
		lines = lines[start:end]
	}

	return strings.Join(lines, "\n")
}

func (a *App) renderLogsView() string {
	title := lipgloss.NewStyle().Bold(true).Render("  Logs: " + a.logsFor)
	return title + "\n" + a.viewport.View()
}

func (a *App) renderLogEntries(entries []models.LogEntry) string {
	if len(entries) == 0 {
		return "  No log entries yet."
	}

	var b strings.Builder
	for _, e := range entries {
		ts := lipgloss.NewStyle().Foreground(mutedColor).Render(e.Timestamp.Local().Format("15:04:05"))
		b.WriteString(fmt.Sprintf("%s %s %s\n", ts, a.levelGlyph(e.Level), e.Message))
	}
	return b.String()
}

func (a *App) renderContainers(height int) string {
	if len(a.containers) == 0 {
		return "\n  No containers (or the Docker engine is unreachable).\n"
	}

	var lines []string
	for i, c := range a.containers {
		state := offlineStyle.Render("○")
		if strings.HasPrefix(c.Status, "Up") {
			state = onlineStyle.Render("●")
		}
		ports := strings.Join(c.Ports, ", ")
		row := fmt.Sprintf("%s  %-20s %-28s %s", state, c.Name, c.Image, ports)

		if i == a.containerIdx {
			lines = append(lines, selectedStyle.Render("▶ "+row))
		} else {
			lines = append(lines, rowStyle.Render("  "+row))
		}
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (a *App) formatSystemMetrics() string {
	if a.sysMetrics == nil {
		return ""
	}
	return fmt.Sprintf("CPU %.0f%% · MEM %.0f%% · %d procs",
		a.sysMetrics["cpu_usage"],
		a.sysMetrics["memory_usage_percent"],
		int(a.sysMetrics["process_count"]))
}

func (a *App) statusGlyph(status models.ServiceStatus) string {
	switch status {
	case models.ServiceStatusRunning:
		return lipgloss.NewStyle().Foreground(successColor).Render("●")
	case models.ServiceStatusStarting, models.ServiceStatusStopping:
		return lipgloss.NewStyle().Foreground(warningColor).Render("◐")
	case models.ServiceStatusError:
		return lipgloss.NewStyle().Foreground(errorColor).Render("✗")
	default:
		return lipgloss.NewStyle().Foreground(mutedColor).Render("○")
	}
}

func (a *App) plainGlyph(status models.ServiceStatus) string {
	switch status {
	case models.ServiceStatusRunning:
		return "●"
	case models.ServiceStatusStarting, models.ServiceStatusStopping:
		return "◐"
	case models.ServiceStatusError:
		return "✗"
	default:
		return "○"
	}
}

func (a *App) levelGlyph(level string) string {
	switch level {
	case "error":
		return lipgloss.NewStyle().Foreground(errorColor).Render("ERR")
	case "warn":
		return lipgloss.NewStyle().Foreground(warningColor).Render("WRN")
	case "debug":
		return lipgloss.NewStyle().Foreground(mutedColor).Render("DBG")
	default:
		return lipgloss.NewStyle().Foreground(cyanColor).Render("INF")
	}
}

func (a *App) fetchServices() tea.Cmd {
	return func() tea.Msg {
		services, err := a.client.ListServices()
		if err != nil {
			return errMsg{err}
		}
		return servicesLoadedMsg{services}
	}
}

func (a *App) fetchLogs(serviceID string) tea.Cmd {
	return func() tea.Msg {
		page, err := a.client.ServiceLogs(serviceID, logTailLines)
		if err != nil {
			return errMsg{err}
		}
		return logsLoadedMsg{serviceID, page}
	}
}

func (a *App) fetchContainers() tea.Cmd {
	return func() tea.Msg {
		containers, err := a.client.ListContainers()
		if err != nil {
			return errMsg{err}
		}
		return containersLoadedMsg{containers}
	}
}

func (a *App) fetchSystemMetrics() tea.Cmd {
	return func() tea.Msg {
		m, err := a.client.SystemMetrics()
		if err != nil {
			// The header just shows nothing while the daemon is away.
			return systemMetricsMsg{nil}
		}
		return systemMetricsMsg{m}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		return daemonStatusMsg{online: a.client.Health() == nil}
	}
}

func (a *App) controlService(action, id string) tea.Cmd {
	return func() tea.Msg {
		var err error
		switch action {
		case "start":
			err = a.client.StartService(id)
		case "stop":
			err = a.client.StopService(id)
		case "restart":
			err = a.client.RestartService(id)
		}
		if err != nil {
			return actionResultMsg{"Error: " + err.Error()}
		}
		past := map[string]string{"start": "started", "stop": "stopped", "restart": "restarted"}
		return actionResultMsg{fmt.Sprintf("✓ %s %s", id, past[action])}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type servicesLoadedMsg struct {
	services []models.Service
}

type logsLoadedMsg struct {
	serviceID string
	page      *models.FilteredLogs
}

type containersLoadedMsg struct {
	containers []models.ContainerInfo
}

type systemMetricsMsg struct {
	metrics map[string]float64
}

type daemonStatusMsg struct {
	online bool
}

type actionResultMsg struct {
	message string
}

type errMsg struct {
	err error
}

type tickMsg time.Time
