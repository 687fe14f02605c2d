//go:build !windows

package process

import (
	"os/exec"
	"strings"
)

// configure splits RawArgs on whitespace; there is no raw command line outside Windows.
func configure(cmd *exec.Cmd, spec Spec) {
	if spec.RawArgs != "" {
		cmd.Args = append([]string{cmd.Args[0]}, append(strings.Fields(spec.RawArgs), spec.Args...)...)
	}
}
