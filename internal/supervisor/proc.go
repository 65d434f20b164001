package supervisor

import (
	"os/exec"

	"github.com/shirou/gopsutil/v3/process"
)

// procHandle abstracts liveness checking over a managed OS process.
// Processes spawned by this daemon are backed by a full exec handle;
// processes adopted from a previous run can only be probed by pid.
type procHandle interface {
	Pid() int
	Alive() bool
}

// spawnedProc wraps a child this daemon started. A reaper goroutine
// waits on the child so exit is observable without blocking callers.
type spawnedProc struct {
	cmd     *exec.Cmd
	done    chan struct{}
	waitErr error
}

func newSpawnedProc(cmd *exec.Cmd) *spawnedProc {
	p := &spawnedProc{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p
}

func (p *spawnedProc) Pid() int {
	return p.cmd.Process.Pid
}

func (p *spawnedProc) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Terminate kills the child and waits until it has been reaped.
func (p *spawnedProc) Terminate() {
	_ = p.cmd.Process.Kill()
	<-p.done
}

// recoveredProc tracks a process adopted from a previous daemon run.
// It was not spawned by us, so it cannot be reaped or signalled safely;
// the pid table is the only source of truth.
type recoveredProc struct {
	pid int
}

func (p *recoveredProc) Pid() int {
	return p.pid
}

func (p *recoveredProc) Alive() bool {
	alive, err := process.PidExists(int32(p.pid))
	return err == nil && alive
}
