package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/panelkit/devpanel/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// Client wraps HTTP calls to the panel API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client with timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

func (c *Client) get(path string, out any) error {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) post(path string) error {
	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", nil)
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// Health reports whether the daemon answers its health endpoint.
func (c *Client) Health() error {
	return c.get("/api/health", nil)
}

// ListServices fetches every service with live status overlaid.
func (c *Client) ListServices() ([]models.Service, error) {
	var services []models.Service
	if err := c.get("/api/services", &services); err != nil {
		return nil, err
	}
	return services, nil
}

// ServiceLogs fetches the most recent log lines for one service.
func (c *Client) ServiceLogs(id string, lines int) (*models.FilteredLogs, error) {
	var page models.FilteredLogs
	if err := c.get("/api/services/"+id+"/logs?lines="+strconv.Itoa(lines), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ServiceMetrics fetches one service's process figures.
func (c *Client) ServiceMetrics(id string) (*models.ProcessInfo, error) {
	var info models.ProcessInfo
	if err := c.get("/api/services/"+id+"/metrics", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StartService asks the daemon to start a service.
func (c *Client) StartService(id string) error {
	return c.post("/api/services/" + id + "/start")
}

// StopService asks the daemon to stop a service.
func (c *Client) StopService(id string) error {
	return c.post("/api/services/" + id + "/stop")
}

// RestartService asks the daemon to restart a service.
func (c *Client) RestartService(id string) error {
	return c.post("/api/services/" + id + "/restart")
}

// SystemMetrics fetches the host resource snapshot.
func (c *Client) SystemMetrics() (map[string]float64, error) {
	var m map[string]float64
	if err := c.get("/api/system/metrics", &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListContainers fetches the Docker container list. A daemon without
// engine access answers 503, which surfaces here as an error.
func (c *Client) ListContainers() ([]models.ContainerInfo, error) {
	var containers []models.ContainerInfo
	if err := c.get("/api/containers", &containers); err != nil {
		return nil, err
	}
	return containers, nil
}
