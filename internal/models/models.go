// Package models defines the core domain types for devpanel.
package models

import "time"

// ServiceStatus represents the current lifecycle state of a service.
type ServiceStatus string

const (
	ServiceStatusStopped  ServiceStatus = "stopped"
	ServiceStatusStarting ServiceStatus = "starting"
	ServiceStatusRunning  ServiceStatus = "running"
	ServiceStatusStopping ServiceStatus = "stopping"
	ServiceStatusError    ServiceStatus = "error"
)

// ServiceType classifies the runtime a service is built on.
type ServiceType string

const (
	ServiceTypeGo         ServiceType = "go"
	ServiceTypeNodeJS     ServiceType = "nodejs"
	ServiceTypeTypeScript ServiceType = "typescript"
	ServiceTypePHP        ServiceType = "php"
	ServiceTypeDocker     ServiceType = "docker"
	ServiceTypeGeneric    ServiceType = "generic"
)

// Service describes a managed development service and its runtime state.
// Identity and command fields are fixed at detection time; status,
// restart count, and updated_at are mutated by the supervisor.
type Service struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        ServiceType       `json:"service_type"`
	Status      ServiceStatus     `json:"status"`
	Command     string            `json:"command"`
	WorkingDir  string            `json:"working_dir"`
	Port        int               `json:"port,omitempty"`
	AutoRestart bool              `json:"auto_restart"`
	Restarts    int               `json:"restart_count"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Env         map[string]string `json:"environment"` // merged over the inherited environment
}

// ServiceState is the persisted snapshot of one running service, enough to
// re-adopt it after a daemon restart.
type ServiceState struct {
	ServiceID  string            `json:"service_id"`
	PID        int               `json:"pid"`
	StartedAt  time.Time         `json:"started_at"`
	Command    string            `json:"command"`
	WorkingDir string            `json:"working_dir"`
	Env        map[string]string `json:"environment,omitempty"`
}

// StateFile is the on-disk layout of the supervisor state snapshot.
type StateFile struct {
	Services  []ServiceState `json:"services"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// LogEntry is a single parsed log line attributed to a service.
type LogEntry struct {
	ID        int64     `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	ServiceID string    `json:"service_id"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// LogFilters narrows a historical log query. Zero values mean "no filter".
type LogFilters struct {
	ServiceID string
	Level     string // matched case-insensitively; "" or "all" disables
	Since     *time.Time
	Until     *time.Time
	Search    string // substring match against the message
	Limit     int
	Offset    int
}

// FilteredLogs is a page of query results. Total counts entries before
// filtering, Filtered the entries actually returned.
type FilteredLogs struct {
	Logs     []LogEntry `json:"logs"`
	Total    int        `json:"total"`
	Filtered int        `json:"filtered"`
}

// ProcessInfo is a point-in-time resource view of one managed process.
type ProcessInfo struct {
	PID         *int32        `json:"pid"`
	CPUUsage    float64       `json:"cpu_usage"`
	MemoryUsage uint64        `json:"memory_usage"` // resident bytes
	Uptime      uint64        `json:"uptime"`       // seconds
	Status      ServiceStatus `json:"status"`
}

// ContainerInfo summarizes one Docker container for the panel.
type ContainerInfo struct {
	ID          string    `json:"id"` // short 12-char form
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Image       string    `json:"image"`
	Ports       []string  `json:"ports"` // "public:private" or bare private port
	CPUUsage    float64   `json:"cpu_usage"`
	MemoryUsage uint64    `json:"memory_usage"`
	Created     time.Time `json:"created"`
}
