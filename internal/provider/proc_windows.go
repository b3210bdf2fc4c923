//go:build windows

package provider

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// killProcessTree kills the direct child only
func killProcessTree(proc *os.Process) error {
	return proc.Kill()
}
