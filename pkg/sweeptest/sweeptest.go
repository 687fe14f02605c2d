// Package sweeptest provides in-memory stand-ins for the system collaborators
// (registry, package managers, processes, command runner) so removal logic
// can be exercised without touching the machine. All fakes are safe for
// concurrent use.
package sweeptest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/windowsadmins/cimisweep/pkg/blocking"
	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/hive"
	"github.com/windowsadmins/cimisweep/pkg/process"
)

// Hive is an in-memory hive.Store.
type Hive struct {
	mu      sync.Mutex
	records map[hive.Root][]catalog.RegistryEntry
	fail    map[hive.Root]error
	queries int
	deleted []string
}

func NewHive() *Hive {
	return &Hive{records: map[hive.Root][]catalog.RegistryEntry{}, fail: map[hive.Root]error{}}
}

// Add stores an uninstall record under root. KeyPath defaults to root.Path\DisplayName.
func (h *Hive) Add(root hive.Root, rec catalog.RegistryEntry) catalog.RegistryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.Hive = root.Hive
	if rec.KeyPath == "" {
		rec.KeyPath = root.Path + `\` + rec.DisplayName
	}
	h.records[root] = append(h.records[root], rec)
	return rec
}

// FailRoot makes Records fail for root.
func (h *Hive) FailRoot(root hive.Root, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fail[root] = err
}

func (h *Hive) Records(_ context.Context, root hive.Root) ([]catalog.RegistryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries++
	if err := h.fail[root]; err != nil {
		return nil, err
	}
	return append([]catalog.RegistryEntry(nil), h.records[root]...), nil
}

func (h *Hive) DeleteKey(_ context.Context, hiveRoot catalog.HiveRoot, path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for root, recs := range h.records {
		if root.Hive != hiveRoot {
			continue
		}
		kept := recs[:0]
		for _, rec := range recs {
			if rec.KeyPath != path {
				kept = append(kept, rec)
			}
		}
		h.records[root] = kept
	}
	h.deleted = append(h.deleted, string(hiveRoot)+`\`+path)
	return nil
}

// Queries counts Records calls.
func (h *Hive) Queries() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.queries
}

// Deleted lists deleted keys as HIVE\path in call order.
func (h *Hive) Deleted() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.deleted...)
}

// Packages is a fake packagemgr.Manager.
type Packages struct {
	mu          sync.Mutex
	Entries     []catalog.PackageEntry
	FindErr     error
	UninstallFn func(catalog.PackageEntry) error
	finds       int
	uninstalled []string
}

func (p *Packages) Find(_ context.Context, pattern string) ([]catalog.PackageEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if p.FindErr != nil {
		return nil, p.FindErr
	}
	var out []catalog.PackageEntry
	for _, e := range p.Entries {
		if catalog.MatchesName(e.Name, pattern) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (p *Packages) Uninstall(_ context.Context, entry catalog.PackageEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uninstalled = append(p.uninstalled, entry.Handle)
	if p.UninstallFn != nil {
		return p.UninstallFn(entry)
	}
	return nil
}

func (p *Packages) Finds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds
}

// Uninstalled lists the handles passed to Uninstall.
func (p *Packages) Uninstalled() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.uninstalled...)
}

// Apps is a fake appx.Manager.
type Apps struct {
	mu       sync.Mutex
	Entries  []catalog.AppxEntry
	FindErr  error
	RemoveFn func(catalog.AppxEntry) error
	finds    int
	removed  []string
}

func (a *Apps) Find(_ context.Context, pattern string) ([]catalog.AppxEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finds++
	if a.FindErr != nil {
		return nil, a.FindErr
	}
	var out []catalog.AppxEntry
	for _, e := range a.Entries {
		if catalog.MatchesName(e.Name, pattern) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *Apps) Remove(_ context.Context, entry catalog.AppxEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, entry.FullName)
	if a.RemoveFn != nil {
		return a.RemoveFn(entry)
	}
	return nil
}

func (a *Apps) Finds() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.finds
}

// Removed lists the full names passed to Remove.
func (a *Apps) Removed() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.removed...)
}

// Processes is a fake blocking.Finder.
type Processes struct {
	mu         sync.Mutex
	Running    []blocking.Process
	FindErr    error
	terminated []int32
}

func (p *Processes) Find(_ context.Context, pattern string) ([]blocking.Process, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FindErr != nil {
		return nil, p.FindErr
	}
	var out []blocking.Process
	for _, proc := range p.Running {
		if catalog.MatchesName(proc.Name, pattern) || catalog.MatchesName(proc.Exe, pattern) {
			out = append(out, proc)
		}
	}
	return out, nil
}

func (p *Processes) Terminate(_ context.Context, proc blocking.Process) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, running := range p.Running {
		if running.PID == proc.PID {
			p.Running = append(p.Running[:i], p.Running[i+1:]...)
			p.terminated = append(p.terminated, proc.PID)
			return nil
		}
	}
	return fmt.Errorf("process %d not found", proc.PID)
}

func (p *Processes) Terminated() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int32(nil), p.terminated...)
}

// ErrCommandFailed is what Runner returns for a command listed in Fail.
var ErrCommandFailed = errors.New("command failed")

// Runner is a fake process.Runner that records every command line.
type Runner struct {
	mu    sync.Mutex
	Fail  map[string]bool // command lines that fail
	lines []string
}

func (r *Runner) Run(_ context.Context, spec process.Spec) (process.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := spec.CommandLine()
	r.lines = append(r.lines, line)
	if r.Fail[line] {
		return process.Result{ExitCode: 1}, &process.ExitError{Code: 1}
	}
	return process.Result{}, nil
}

// Lines returns the command lines run so far.
func (r *Runner) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
