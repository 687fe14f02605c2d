// pkg/facts/facts.go - host facts stamped into removal reports.

package facts

import (
	"os"
	"os/user"
	"runtime"
)

// SystemFacts identifies the machine a report was produced on.
type SystemFacts struct {
	Hostname     string `yaml:"hostname"`
	OSVersion    string `yaml:"os_version,omitempty"`
	Architecture string `yaml:"architecture"`
	MachineModel string `yaml:"machine_model,omitempty"`
	Domain       string `yaml:"domain,omitempty"`
	Username     string `yaml:"username,omitempty"`
}

// Collect gathers facts. Lookups that fail leave their field empty; a report
// is never withheld for want of a fact.
func Collect() SystemFacts {
	f := SystemFacts{Architecture: runtime.GOARCH}
	if h, err := os.Hostname(); err == nil {
		f.Hostname = h
	}
	if u, err := user.Current(); err == nil {
		f.Username = u.Username
	}
	collectPlatform(&f)
	return f
}
