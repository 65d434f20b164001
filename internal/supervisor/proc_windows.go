//go:build windows

package supervisor

import "os/exec"

// detach is a no-op on Windows; children are not tied to the daemon's
// console session the way a Unix process group is.
func detach(cmd *exec.Cmd) {}
