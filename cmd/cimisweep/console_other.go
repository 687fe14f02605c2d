//go:build !windows

package main

import "os"

func enableANSIConsole() {}

func useRawCommandLine() {}

// adminCheck treats root as the administrator.
func adminCheck() (bool, error) {
	return os.Geteuid() == 0, nil
}
