//go:build !windows

package supervisor

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own session so it is not signalled
// together with the daemon's terminal group and keeps running when the
// daemon exits, which is what allows recovery after a restart.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
