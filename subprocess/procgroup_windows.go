//go:build windows

package subprocess

import (
	"os/exec"

	"github.com/Legionxoxo/ffmpeg-video/log"
)

func setProcessGroup(cmd *exec.Cmd) {}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := cmd.Process.Kill(); err != nil {
		log.LogNoRequestID("failed to kill process", "pid", cmd.Process.Pid, "err", err)
	}
}
