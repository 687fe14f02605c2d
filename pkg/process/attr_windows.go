//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

// Windows constants from Win32 API
const createNoWindow = 0x08000000

func configure(cmd *exec.Cmd, spec Spec) {
	attr := &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: createNoWindow | syscall.CREATE_NEW_PROCESS_GROUP,
	}
	if spec.RawArgs != "" {
		attr.CmdLine = spec.CommandLine()
	}
	cmd.SysProcAttr = attr

	// taskkill /T reaches the children an uninstaller spawns; Process.Kill does not.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(cmd.Process.Pid))
		kill.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
		return kill.Run()
	}
}
