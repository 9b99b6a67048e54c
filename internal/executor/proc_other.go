//go:build !unix

package executor

import (
	"os/exec"

	"github.com/shirou/gopsutil/v3/process"
)

func setProcessGroup(*exec.Cmd) {}

// signalTree has no graceful variant here: the tree is killed bottom-up.
func signalTree(cmd *exec.Cmd, _ bool) {
	if cmd.Process == nil {
		return
	}
	if root, err := process.NewProcess(int32(cmd.Process.Pid)); err == nil {
		if children, err := root.Children(); err == nil {
			for _, c := range children {
				_ = c.Kill()
			}
		}
	}
	_ = cmd.Process.Kill()
}
