// pkg/blocking/blocking.go - finding and terminating processes that keep a target in use.

package blocking

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Process is a running process that matched a target.
type Process struct {
	PID  int32
	Name string
	Exe  string
}

func (p Process) String() string {
	if p.Exe != "" {
		return fmt.Sprintf("%s (PID %d, %s)", p.Name, p.PID, p.Exe)
	}
	return fmt.Sprintf("%s (PID %d)", p.Name, p.PID)
}

// Finder is the process enumeration/termination collaborator.
type Finder interface {
	// Find returns processes whose name or executable path contains pattern,
	// case-insensitively.
	Find(ctx context.Context, pattern string) ([]Process, error)
	Terminate(ctx context.Context, p Process) error
}

// SystemFinder is the live Finder. It never reports its own process.
type SystemFinder struct {
	self int32
}

func NewSystemFinder() *SystemFinder {
	return &SystemFinder{self: int32(os.Getpid())}
}

func (f *SystemFinder) Find(ctx context.Context, pattern string) ([]Process, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get process list: %w", err)
	}

	needle := strings.ToLower(pattern)
	var matches []Process
	for _, proc := range procs {
		if proc.Pid == f.self || proc.Pid == 0 {
			continue
		}
		// Exited processes and protected system processes fail these calls; skip what we cannot read.
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		exe, _ := proc.ExeWithContext(ctx)
		if strings.Contains(strings.ToLower(name), needle) || strings.Contains(strings.ToLower(exe), needle) {
			matches = append(matches, Process{PID: proc.Pid, Name: name, Exe: exe})
		}
	}
	return matches, nil
}

func (f *SystemFinder) Terminate(ctx context.Context, p Process) error {
	proc, err := process.NewProcessWithContext(ctx, p.PID)
	if err != nil {
		return fmt.Errorf("process %d not found: %w", p.PID, err)
	}
	if err := proc.KillWithContext(ctx); err != nil {
		return fmt.Errorf("failed to terminate %s: %w", p, err)
	}
	return nil
}
