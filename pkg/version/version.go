// pkg/version/version.go - build information for cimisweep.

package version

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
)

const appName = "cimisweep"

// Set with -ldflags "-X github.com/windowsadmins/cimisweep/pkg/version.version=...".
var (
	version   = "dev"
	branch    = "unknown"
	revision  = "unknown"
	buildDate = "unknown"
)

// Info is the build information of the running binary.
type Info struct {
	Version   string `yaml:"version"`
	Branch    string `yaml:"branch"`
	Revision  string `yaml:"revision"`
	GoVersion string `yaml:"go_version"`
	BuildDate string `yaml:"build_date"`
}

// Version returns the current build information. When the binary was built
// without ldflags the VCS stamp from the Go toolchain fills the gaps.
func Version() Info {
	info := Info{
		Version:   version,
		Branch:    branch,
		Revision:  revision,
		GoVersion: runtime.Version(),
		BuildDate: buildDate,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.Revision == "unknown" {
					info.Revision = s.Value
				}
			case "vcs.time":
				if info.BuildDate == "unknown" {
					info.BuildDate = s.Value
				}
			}
		}
	}
	return info
}

// String is "cimisweep <version>".
func (i Info) String() string {
	return appName + " " + i.Version
}

// Print writes the application name and version.
func Print(w io.Writer) {
	fmt.Fprintln(w, Version())
}

// PrintFull writes the detailed build information.
func PrintFull(w io.Writer) {
	v := Version()
	fmt.Fprintln(w, v)
	fmt.Fprintf(w, "  branch: \t%s\n", v.Branch)
	fmt.Fprintf(w, "  revision: \t%s\n", v.Revision)
	fmt.Fprintf(w, "  build date: \t%s\n", v.BuildDate)
	fmt.Fprintf(w, "  go version: \t%s\n", v.GoVersion)
}
