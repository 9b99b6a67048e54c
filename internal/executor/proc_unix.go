//go:build unix

package executor

import (
	"os/exec"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalTree signals the process group of cmd and every descendant that
// left it (daemonized children, launchers creating their own groups).
func signalTree(cmd *exec.Cmd, kill bool) {
	if cmd.Process == nil {
		return
	}
	sig := syscall.SIGTERM
	if kill {
		sig = syscall.SIGKILL
	}
	pid := cmd.Process.Pid
	descendants := collectDescendants(int32(pid))
	_ = syscall.Kill(-pid, sig)
	for _, p := range descendants {
		_ = p.SendSignal(sig)
	}
}

func collectDescendants(pid int32) []*process.Process {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	var out []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}
