//go:build !windows

package subprocess

import (
	"os/exec"
	"syscall"

	"github.com/Legionxoxo/ffmpeg-video/log"
)

func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	// negative pid targets the group
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		log.LogNoRequestID("failed to kill process group", "pid", cmd.Process.Pid, "err", err)
	}
}
