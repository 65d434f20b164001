// Package supervisor owns the lifecycle of managed child processes:
// spawning, liveness monitoring, bounded auto-restart, and re-adoption
// of processes left running by a previous daemon instance.
package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/panelkit/devpanel/internal/models"
	"github.com/panelkit/devpanel/internal/state"
)

const (
	settleInterval    = 500 * time.Millisecond
	monitorInterval   = time.Second
	restartBackoff    = 2 * time.Second
	restartDelay      = time.Second
	portReclaimGrace  = 2 * time.Second
	recoveredInterval = 5 * time.Second
)

// managedProcess is one entry in the live map.
type managedProcess struct {
	proc      procHandle // nil once the process has exited
	service   models.Service
	startedAt time.Time
	restarts  int
	pid       int
}

// Supervisor owns the authoritative map of managed processes. All
// lifecycle operations and every monitor goroutine go through it.
type Supervisor struct {
	mu        sync.RWMutex
	procs     map[string]*managedProcess
	snapshots map[string]models.Service // last-known definition per id, for Restart

	autoRestart bool
	maxRestarts int
	logsDir     string
	state       *state.Store
	log         *slog.Logger
}

// New creates a Supervisor. Children write their output under logsDir
// and lifecycle transitions are mirrored into the state store.
func New(autoRestart bool, maxRestarts int, logsDir string, st *state.Store, log *slog.Logger) *Supervisor {
	return &Supervisor{
		procs:       make(map[string]*managedProcess),
		snapshots:   make(map[string]models.Service),
		autoRestart: autoRestart,
		maxRestarts: maxRestarts,
		logsDir:     logsDir,
		state:       st,
		log:         log,
	}
}

// Start spawns the service's command and begins supervising it. The
// command's stdout and stderr are appended to logs_dir/{id}.log. If the
// service declares a port, whatever currently holds that port is
// reclaimed first, best-effort.
func (s *Supervisor) Start(service models.Service) error {
	s.log.Info("starting service", "service", service.ID, "command", service.Command)

	if service.Port > 0 {
		s.reclaimPort(service.Port)
	}

	cmd, logFile, logPath, err := s.buildCommand(service)
	if err != nil {
		return err
	}

	// Remember where this run's output begins, for the early-exit report
	var logStart int64
	if info, err := os.Stat(logPath); err == nil {
		logStart = info.Size()
	}

	err = cmd.Start()
	logFile.Close()
	if err != nil {
		return fmt.Errorf("spawn %q in %s (is the executable on PATH?): %w", service.Command, service.WorkingDir, err)
	}

	proc := newSpawnedProc(cmd)
	pid := proc.Pid()

	// Settle, then probe once: a service that cannot survive the settle
	// interval is misconfigured and must not be registered as managed
	time.Sleep(settleInterval)
	if !proc.Alive() {
		if tail := readLogTail(logPath, logStart); tail != "" {
			return fmt.Errorf("%w: %s", ErrProcessExitedImmediately, tail)
		}
		return ErrProcessExitedImmediately
	}

	now := time.Now().UTC()
	service.Status = models.ServiceStatusRunning
	service.Restarts = 0
	service.UpdatedAt = now

	s.mu.Lock()
	prev := s.procs[service.ID]
	s.procs[service.ID] = &managedProcess{
		proc:      proc,
		service:   service,
		startedAt: now,
		pid:       pid,
	}
	s.snapshots[service.ID] = service
	s.mu.Unlock()

	// Starting over a still-running instance replaces it; the old
	// monitor retires on its own once its handle is superseded
	if prev != nil {
		if sp, ok := prev.proc.(*spawnedProc); ok {
			sp.Terminate()
		}
	}

	s.persistState(service, pid, now)
	go s.monitor(service.ID, proc)

	s.log.Info("service started", "service", service.ID, "pid", pid)
	return nil
}

// Stop terminates a managed service and forgets it. Stopping an id
// that is not managed is not an error.
func (s *Supervisor) Stop(serviceID string) error {
	s.log.Info("stopping service", "service", serviceID)

	s.mu.Lock()
	mp := s.procs[serviceID]
	delete(s.procs, serviceID)
	s.mu.Unlock()

	if mp != nil {
		// Only processes we spawned can be killed and reaped. Adopted
		// ones are merely dropped from supervision.
		if sp, ok := mp.proc.(*spawnedProc); ok {
			sp.Terminate()
		}
	}

	s.removeState(serviceID)
	return nil
}

// Restart stops a service and starts it again from its last-known
// definition. Restarting an id that was never started or recovered
// fails with ErrNeverStarted.
func (s *Supervisor) Restart(serviceID string) error {
	s.mu.RLock()
	snapshot, ok := s.snapshots[serviceID]
	s.mu.RUnlock()
	if !ok {
		return ErrNeverStarted
	}

	if err := s.Stop(serviceID); err != nil {
		return err
	}
	time.Sleep(restartDelay)
	return s.Start(snapshot)
}

// Status reports the current lifecycle status of a managed service.
// Entries without a live handle are verified against the OS process
// table; a dead one is flipped to Stopped and its persisted state
// pruned before returning. Unknown ids report ok = false.
func (s *Supervisor) Status(serviceID string) (models.ServiceStatus, bool) {
	s.mu.RLock()
	mp, ok := s.procs[serviceID]
	if !ok {
		s.mu.RUnlock()
		return "", false
	}
	status := mp.service.Status
	pid := mp.pid
	_, spawned := mp.proc.(*spawnedProc)
	s.mu.RUnlock()

	if spawned {
		return status, true
	}

	alive, err := process.PidExists(int32(pid))
	if err == nil && alive {
		return status, true
	}

	s.mu.Lock()
	if mp, ok := s.procs[serviceID]; ok {
		mp.service.Status = models.ServiceStatusStopped
		mp.service.UpdatedAt = time.Now().UTC()
	}
	s.mu.Unlock()

	s.removeState(serviceID)
	return models.ServiceStatusStopped, true
}

// Info returns a point-in-time resource snapshot for a managed service.
func (s *Supervisor) Info(serviceID string) (models.ProcessInfo, bool) {
	s.mu.RLock()
	mp, ok := s.procs[serviceID]
	if !ok {
		s.mu.RUnlock()
		return models.ProcessInfo{}, false
	}
	pid := mp.pid
	startedAt := mp.startedAt
	status := mp.service.Status
	s.mu.RUnlock()

	info := models.ProcessInfo{Status: status}
	if !startedAt.IsZero() {
		info.Uptime = uint64(time.Since(startedAt).Seconds())
	}
	if pid > 0 {
		p := int32(pid)
		info.PID = &p
		if proc, err := process.NewProcess(p); err == nil {
			if cpu, err := proc.CPUPercent(); err == nil {
				info.CPUUsage = cpu
			}
			if mem, err := proc.MemoryInfo(); err == nil {
				info.MemoryUsage = mem.RSS
			}
		}
	}
	return info, true
}

// List returns a snapshot of every currently managed service.
func (s *Supervisor) List() []models.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]models.Service, 0, len(s.procs))
	for _, mp := range s.procs {
		services = append(services, mp.service)
	}
	return services
}

// Recover re-adopts services left running by a previous daemon
// instance. Each persisted record whose pid is still alive and whose
// id matches a known descriptor becomes a handle-less entry watched by
// a pid-only monitor; stale records are pruned. A bad state snapshot
// is logged and treated as no prior state.
func (s *Supervisor) Recover(known []models.Service) {
	sf, err := s.state.Load()
	if err != nil {
		s.log.Warn("state snapshot unreadable, skipping recovery", "error", err)
		return
	}
	if len(sf.Services) == 0 {
		s.log.Info("no saved services to recover")
		return
	}

	s.log.Info("recovering services from saved state", "count", len(sf.Services))

	byID := make(map[string]models.Service, len(known))
	for _, svc := range known {
		byID[svc.ID] = svc
	}

	for _, saved := range sf.Services {
		alive, err := process.PidExists(int32(saved.PID))
		if err != nil || !alive {
			s.log.Warn("saved process no longer running, dropping", "service", saved.ServiceID, "pid", saved.PID)
			s.removeState(saved.ServiceID)
			continue
		}

		service, ok := byID[saved.ServiceID]
		if !ok {
			s.log.Warn("saved service no longer detected, dropping", "service", saved.ServiceID)
			s.removeState(saved.ServiceID)
			continue
		}

		service.Status = models.ServiceStatusRunning
		service.UpdatedAt = time.Now().UTC()

		s.mu.Lock()
		s.procs[saved.ServiceID] = &managedProcess{
			proc:      &recoveredProc{pid: saved.PID},
			service:   service,
			startedAt: saved.StartedAt,
			pid:       saved.PID,
		}
		s.snapshots[saved.ServiceID] = service
		s.mu.Unlock()

		// Refresh the record but keep the original start time
		if err := s.state.Upsert(saved); err != nil {
			s.log.Warn("failed to refresh service state", "service", saved.ServiceID, "error", err)
		}

		go s.monitorRecovered(saved.ServiceID, saved.PID)
		s.log.Info("recovered service", "service", saved.ServiceID, "pid", saved.PID)
	}
}

// monitor watches one spawned process until it is stopped, replaced by
// a newer start, or out of restart attempts.
func (s *Supervisor) monitor(serviceID string, watched *spawnedProc) {
	for {
		time.Sleep(monitorInterval)

		s.mu.Lock()
		mp, ok := s.procs[serviceID]
		if !ok {
			s.mu.Unlock()
			return // stopped by the caller
		}
		if mp.proc != watched {
			// A newer Start owns this entry now
			s.mu.Unlock()
			return
		}
		if watched.Alive() {
			s.mu.Unlock()
			continue
		}

		// Exited outside of Stop
		s.log.Warn("service exited unexpectedly", "service", serviceID, "pid", mp.pid)
		mp.proc = nil
		mp.service.Status = models.ServiceStatusError
		mp.service.UpdatedAt = time.Now().UTC()

		if !s.autoRestart || mp.restarts >= s.maxRestarts {
			s.mu.Unlock()
			s.log.Warn("restart limit reached, leaving service in error state",
				"service", serviceID, "restarts", mp.restarts)
			return
		}
		mp.restarts++
		mp.service.Restarts = mp.restarts
		attempt := mp.restarts
		service := mp.service
		s.mu.Unlock()

		s.log.Info("auto-restarting service", "service", serviceID, "attempt", attempt, "max", s.maxRestarts)
		time.Sleep(restartBackoff)

		next, ok := s.respawn(serviceID, service)
		if !ok {
			return
		}
		watched = next
	}
}

// respawn re-executes the service command into the existing map entry,
// keeping the running monitor loop. Returns the new handle, or false
// when the loop should end.
func (s *Supervisor) respawn(serviceID string, service models.Service) (*spawnedProc, bool) {
	cmd, logFile, _, err := s.buildCommand(service)
	if err != nil {
		s.log.Error("failed to rebuild service command", "service", serviceID, "error", err)
		return nil, false
	}
	err = cmd.Start()
	logFile.Close()
	if err != nil {
		s.log.Error("failed to respawn service", "service", serviceID, "error", err)
		return nil, false
	}

	proc := newSpawnedProc(cmd)
	now := time.Now().UTC()

	s.mu.Lock()
	mp, ok := s.procs[serviceID]
	if !ok || mp.proc != nil {
		// Stopped or replaced during the backoff sleep
		s.mu.Unlock()
		proc.Terminate()
		return nil, false
	}
	mp.proc = proc
	mp.pid = proc.Pid()
	mp.startedAt = now
	mp.service.Status = models.ServiceStatusRunning
	mp.service.UpdatedAt = now
	service = mp.service
	s.mu.Unlock()

	s.persistState(service, proc.Pid(), now)
	s.log.Info("service restarted", "service", serviceID, "pid", proc.Pid())
	return proc, true
}

// monitorRecovered watches an adopted process by pid only. It cannot
// reap the process or read an exit status, so death just flips the
// entry to Stopped and drops the persisted record.
func (s *Supervisor) monitorRecovered(serviceID string, pid int) {
	for {
		time.Sleep(recoveredInterval)

		s.mu.Lock()
		mp, ok := s.procs[serviceID]
		if !ok {
			s.mu.Unlock()
			return
		}
		if _, spawned := mp.proc.(*spawnedProc); spawned {
			// Restart replaced the adopted process with a spawned one,
			// which has its own monitor
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		alive, err := process.PidExists(int32(pid))
		if err == nil && alive {
			continue
		}

		s.log.Warn("recovered service no longer running", "service", serviceID, "pid", pid)
		s.mu.Lock()
		if mp, ok := s.procs[serviceID]; ok {
			mp.proc = nil
			mp.service.Status = models.ServiceStatusStopped
			mp.service.UpdatedAt = time.Now().UTC()
		}
		s.mu.Unlock()
		s.removeState(serviceID)
		return
	}
}

// buildCommand translates a service definition into an exec.Cmd with
// output redirected to the service's append-mode log file. The caller
// must close the returned file once the command has been started.
func (s *Supervisor) buildCommand(service models.Service) (*exec.Cmd, *os.File, string, error) {
	parts := strings.Fields(service.Command)
	if len(parts) == 0 {
		return nil, nil, "", ErrInvalidCommand
	}

	if info, err := os.Stat(service.WorkingDir); err != nil || !info.IsDir() {
		return nil, nil, "", fmt.Errorf("%w: %s", ErrWorkingDirNotFound, service.WorkingDir)
	}

	if err := os.MkdirAll(s.logsDir, 0o755); err != nil {
		return nil, nil, "", fmt.Errorf("create logs dir: %w", err)
	}
	logPath := filepath.Join(s.logsDir, service.ID+".log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, "", fmt.Errorf("open log file %s: %w", logPath, err)
	}

	cmd := exec.Command(parts[0], parts[1:]...)
	cmd.Dir = service.WorkingDir
	cmd.Env = mergeEnv(service.Env)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	detach(cmd)
	return cmd, logFile, logPath, nil
}

// persistState mirrors a lifecycle transition into the state store.
// Failures are logged, never propagated; the live map stays the source
// of truth.
func (s *Supervisor) persistState(service models.Service, pid int, startedAt time.Time) {
	err := s.state.Upsert(models.ServiceState{
		ServiceID:  service.ID,
		PID:        pid,
		StartedAt:  startedAt,
		Command:    service.Command,
		WorkingDir: service.WorkingDir,
		Env:        service.Env,
	})
	if err != nil {
		s.log.Warn("failed to persist service state", "service", service.ID, "error", err)
	}
}

func (s *Supervisor) removeState(serviceID string) {
	if err := s.state.Remove(serviceID); err != nil {
		s.log.Warn("failed to remove service state", "service", serviceID, "error", err)
	}
}

// mergeEnv overlays the service environment on the daemon's inherited
// one. Later entries win, so PATH and friends carry over unless the
// service overrides them.
func mergeEnv(env map[string]string) []string {
	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	return merged
}

// readLogTail returns what a process wrote to its log file after the
// given offset, capped to the last kilobyte.
func readLogTail(path string, from int64) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	if _, err := f.Seek(from, io.SeekStart); err != nil {
		return ""
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return ""
	}
	if len(data) > 1024 {
		data = data[len(data)-1024:]
	}
	return strings.TrimSpace(string(data))
}
