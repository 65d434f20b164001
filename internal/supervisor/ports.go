package supervisor

import (
	"time"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// portOwner returns the pid of the process listening on the given TCP
// port, or 0 when the port is free or the owner cannot be determined.
func portOwner(port int) int32 {
	conns, err := gnet.Connections("tcp")
	if err != nil {
		return 0
	}
	for _, conn := range conns {
		if conn.Status == "LISTEN" && conn.Laddr.Port == uint32(port) && conn.Pid > 0 {
			return conn.Pid
		}
	}
	return 0
}

// reclaimPort frees a TCP port held by another process before a start
// attempt: graceful terminate first, then a forced kill if the port is
// still bound after the grace period. Best-effort throughout; a port
// that cannot be freed never blocks the start.
func (s *Supervisor) reclaimPort(port int) {
	pid := portOwner(port)
	if pid == 0 {
		return
	}

	s.log.Info("port in use, reclaiming", "port", port, "pid", pid)
	proc, err := process.NewProcess(pid)
	if err != nil {
		return
	}
	if err := proc.Terminate(); err != nil {
		s.log.Warn("failed to terminate port owner", "port", port, "pid", pid, "error", err)
	}
	time.Sleep(portReclaimGrace)

	if portOwner(port) == 0 {
		return
	}
	s.log.Warn("port owner still alive after grace period, killing", "port", port, "pid", pid)
	if err := proc.Kill(); err != nil {
		s.log.Warn("failed to kill port owner", "port", port, "pid", pid, "error", err)
		return
	}
	// Give the kernel a moment to release the socket
	time.Sleep(500 * time.Millisecond)
}
