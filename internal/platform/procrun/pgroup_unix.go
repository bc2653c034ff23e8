//go:build unix

package procrun

import (
	"os/exec"
	"syscall"
)

// killProcessGroup makes cancellation kill the whole process group, so helpers spawned by the
// tool die with it.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
