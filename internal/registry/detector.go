package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/panelkit/devpanel/internal/models"
)

// Detect probes the project tree for the manifests that identify each
// managed service and returns a descriptor per match. Services come
// back stopped; the supervisor owns all later status transitions.
func Detect(projectRoot string) []models.Service {
	var services []models.Service

	if svc := detectBackend(projectRoot); svc != nil {
		services = append(services, *svc)
	}
	if svc := detectDashboard(projectRoot); svc != nil {
		services = append(services, *svc)
	}
	if svc := detectTracker(projectRoot); svc != nil {
		services = append(services, *svc)
	}
	if svc := detectDemo(projectRoot); svc != nil {
		services = append(services, *svc)
	}
	return services
}

// detectBackend matches a Go module run under the air reloader.
func detectBackend(root string) *models.Service {
	dir := filepath.Join(root, "backend")
	if !fileExists(filepath.Join(dir, "go.mod")) || !fileExists(filepath.Join(dir, ".air.toml")) {
		return nil
	}
	return newService("backend", "Backend (Go)", models.ServiceTypeGo, "air", dir, 8085)
}

// detectDashboard matches a Next.js app and pulls its dev port out of
// the package manifest.
func detectDashboard(root string) *models.Service {
	dir := filepath.Join(root, "dashboard")
	manifest := filepath.Join(dir, "package.json")
	if !fileExists(manifest) {
		return nil
	}
	port := portFromPackageJSON(manifest)
	if port == 0 {
		port = 3009
	}
	return newService("dashboard", "Dashboard (Next.js)", models.ServiceTypeNodeJS, "npm run dev", dir, port)
}

// detectTracker matches the TypeScript watch build. It binds no port.
func detectTracker(root string) *models.Service {
	dir := filepath.Join(root, "tracker")
	if !fileExists(filepath.Join(dir, "package.json")) {
		return nil
	}
	return newService("tracker", "Tracker (TypeScript)", models.ServiceTypeTypeScript, "npm run dev", dir, 0)
}

// detectDemo matches a Laravel app by its artisan entry point.
func detectDemo(root string) *models.Service {
	dir := filepath.Join(root, "demo", "blog")
	if !fileExists(filepath.Join(dir, "artisan")) {
		return nil
	}
	return newService("demo", "Demo (Laravel)", models.ServiceTypePHP, "php artisan serve", dir, 8000)
}

func newService(id, name string, typ models.ServiceType, command, dir string, port int) *models.Service {
	now := time.Now().UTC()
	return &models.Service{
		ID:          id,
		Name:        name,
		Type:        typ,
		Status:      models.ServiceStatusStopped,
		Command:     command,
		WorkingDir:  dir,
		Port:        port,
		AutoRestart: true,
		CreatedAt:   now,
		UpdatedAt:   now,
		Env:         map[string]string{},
	}
}

// portFromPackageJSON pulls the -p flag out of the manifest's dev
// script, e.g. "next dev -p 3009". Returns 0 when absent or unreadable.
func portFromPackageJSON(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}

	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return 0
	}

	_, after, found := strings.Cut(manifest.Scripts["dev"], "-p")
	if !found {
		return 0
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return 0
	}
	port, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return port
}

// ComposeServices lists the service names declared in the project's
// docker-compose.yml, sorted. A missing file is not an error.
func ComposeServices(projectRoot string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(projectRoot, "docker-compose.yml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read docker-compose.yml: %w", err)
	}

	var compose struct {
		Services map[string]yaml.Node `yaml:"services"`
	}
	if err := yaml.Unmarshal(data, &compose); err != nil {
		return nil, fmt.Errorf("parse docker-compose.yml: %w", err)
	}

	names := make([]string, 0, len(compose.Services))
	for name := range compose.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
