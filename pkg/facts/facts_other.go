//go:build !windows

package facts

import "runtime"

func collectPlatform(f *SystemFacts) {
	f.OSVersion = runtime.GOOS
}
