//go:build unix

package r

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// killProcessGroup starts the command on its own process group and makes
// cancellation kill the whole group, so tools that fork helpers do not leave
// them running
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
