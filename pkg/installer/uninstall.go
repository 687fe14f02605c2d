// pkg/installer/uninstall.go - removing one target and all of its candidates.

package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/windowsadmins/cimisweep/pkg/appx"
	"github.com/windowsadmins/cimisweep/pkg/catalog"
	sweeperrors "github.com/windowsadmins/cimisweep/pkg/errors"
	"github.com/windowsadmins/cimisweep/pkg/gate"
	"github.com/windowsadmins/cimisweep/pkg/hive"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/packagemgr"
	"github.com/windowsadmins/cimisweep/pkg/process"
)

// Resolver finds the candidates behind a name.
type Resolver interface {
	Resolve(ctx context.Context, pattern string) ([]catalog.Entry, error)
}

// Options describe one removal request.
type Options struct {
	Target  catalog.Target
	Recurse bool // also remove leftover folders and the originating registry key
	DryRun  bool
	Force   bool
}

func (o Options) mode() gate.Mode {
	return gate.Mode{DryRun: o.DryRun, Force: o.Force}
}

// Dependencies wires an Uninstaller to its collaborators.
type Dependencies struct {
	Gate     *gate.Gate
	Resolver Resolver
	Hive     hive.Store
	Packages packagemgr.Manager
	Apps     appx.Manager
	Runner   process.Runner
	Log      *logging.Logger

	MsiExecPath string
	// LeftoverRoots are joined with the target name when Recurse is set.
	LeftoverRoots []string
}

// Uninstaller removes a single target.
type Uninstaller struct {
	Dependencies
}

func New(deps Dependencies) *Uninstaller {
	if deps.MsiExecPath == "" {
		deps.MsiExecPath = "msiexec.exe"
	}
	return &Uninstaller{Dependencies: deps}
}

// DefaultLeftoverRoots returns both Program Files directories.
func DefaultLeftoverRoots() []string {
	// ProgramW6432 is the 64-bit Program Files even from a 32-bit process
	programFiles := firstEnv(`C:\Program Files`, "ProgramW6432", "ProgramFiles")
	programFilesX86 := firstEnv(`C:\Program Files (x86)`, "ProgramFiles(x86)")
	return []string{programFiles, programFilesX86}
}

func firstEnv(fallback string, names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return fallback
}

// Uninstall removes opts.Target.
//
// A product code is removed directly with msiexec and nothing is resolved.
// Otherwise every candidate the resolver returns is processed in order; one
// candidate failing does not stop the others. Failures come back together as
// a PartialFailure once every candidate has been tried. A name that resolves
// to nothing is a warning, not an error.
func (u *Uninstaller) Uninstall(ctx context.Context, opts Options) error {
	mode := opts.mode()

	if opts.Target.IsProductCode() {
		cmd := MsiUninstall(u.MsiExecPath, opts.Target.ProductCode)
		_, err := u.Gate.Execute(ctx, mode.Request(
			fmt.Sprintf("Uninstall product %s via %s", opts.Target.ProductCode, cmd.Line()),
			u.runCommand(cmd)))
		return err
	}

	name := strings.TrimSpace(opts.Target.Name())
	if name == "" {
		u.Log.Warn("No target given: specify a name or an MSI product code")
		return nil
	}

	entries, err := u.Resolver.Resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", name, err)
	}
	if len(entries) == 0 {
		u.Log.Warn(fmt.Sprintf("no match for '%s'", name))
		return nil
	}

	var (
		errs    error
		failed  int
		visited = map[string]bool{}
	)
	for _, entry := range entries {
		if err := u.removeEntry(ctx, mode, name, entry, opts.Recurse, visited); err != nil {
			failed++
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", entry.Label(), err))
		}
	}
	if errs != nil {
		return sweeperrors.NewPartialFailure(name, failed, len(entries), errs)
	}
	return nil
}

// RemoveApps removes only the packaged apps whose name contains the target.
// Uninstall records and package providers are not consulted.
func (u *Uninstaller) RemoveApps(ctx context.Context, opts Options) error {
	name := strings.TrimSpace(opts.Target.Name())
	if name == "" {
		u.Log.Warn("Packaged app removal needs a name")
		return nil
	}
	apps, err := u.Apps.Find(ctx, name)
	if err != nil {
		return sweeperrors.NewExecutionFailure("Find packaged apps matching "+name, err)
	}
	if len(apps) == 0 {
		u.Log.Warn(fmt.Sprintf("no match for '%s'", name))
		return nil
	}

	var (
		errs   error
		failed int
	)
	for _, app := range apps {
		if err := u.removeEntry(ctx, opts.mode(), name, app, false, nil); err != nil {
			failed++
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return sweeperrors.NewPartialFailure(name, failed, len(apps), errs)
	}
	return nil
}

// removeEntry runs every step for one candidate and returns their combined failures.
func (u *Uninstaller) removeEntry(ctx context.Context, mode gate.Mode, name string, entry catalog.Entry, recurse bool, visited map[string]bool) error {
	var errs error

	switch e := entry.(type) {
	case catalog.AppxEntry:
		_, err := u.Gate.Execute(ctx, mode.Request(
			"Remove packaged app "+e.FullName,
			func(ctx context.Context) error { return u.Apps.Remove(ctx, e) }))
		errs = multierr.Append(errs, err)

	case catalog.RegistryEntry:
		errs = multierr.Append(errs, u.runUninstallString(ctx, mode, e))
		if recurse {
			errs = multierr.Append(errs, u.removeLeftovers(ctx, mode, name, visited))
			_, err := u.Gate.Execute(ctx, mode.Request(
				"Delete registry key "+e.FullKeyPath(),
				func(ctx context.Context) error { return u.Hive.DeleteKey(ctx, e.Hive, e.KeyPath) }))
			errs = multierr.Append(errs, err)
		}
		return errs

	case catalog.PackageEntry:
		_, err := u.Gate.Execute(ctx, mode.Request(
			fmt.Sprintf("Uninstall package %s [%s]", e.Name, e.Provider),
			func(ctx context.Context) error { return u.Packages.Uninstall(ctx, e) }))
		errs = multierr.Append(errs, err)

	default:
		u.Log.Warn("Skipping candidate of unknown kind", "target", name, "candidate", catalog.Describe(entry))
		return nil
	}

	if recurse {
		errs = multierr.Append(errs, u.removeLeftovers(ctx, mode, name, visited))
	}
	return errs
}

func (u *Uninstaller) runUninstallString(ctx context.Context, mode gate.Mode, e catalog.RegistryEntry) error {
	if strings.TrimSpace(e.UninstallCommand) == "" {
		u.Log.Warn("Registry entry has no uninstall command; skipping", "candidate", e.DisplayName, "key", e.FullKeyPath())
		return nil
	}
	cmd, err := ParseCommand(e.UninstallCommand)
	if err != nil {
		u.Log.Error("FAILED: Uninstall "+e.DisplayName+" - "+err.Error(), "command", e.UninstallCommand)
		return sweeperrors.NewExecutionFailure("Uninstall "+e.DisplayName, err)
	}
	if cmd.IsMsi() {
		cmd = cmd.SilentMsi(u.MsiExecPath)
	}
	_, err = u.Gate.Execute(ctx, mode.Request(
		fmt.Sprintf("Uninstall %s via %s", e.DisplayName, cmd.Line()),
		u.runCommand(cmd)))
	return err
}

// removeLeftovers removes <root>\<name> for each leftover root that exists.
// visited keeps a folder shared by several candidates from being handled twice.
func (u *Uninstaller) removeLeftovers(ctx context.Context, mode gate.Mode, name string, visited map[string]bool) error {
	var errs error
	for _, root := range u.LeftoverRoots {
		dir := filepath.Join(root, name)
		if visited[dir] {
			continue
		}
		visited[dir] = true
		_, _, err := RemoveFolder(ctx, u.Gate, mode, dir)
		errs = multierr.Append(errs, err)
	}
	return errs
}

// RemoveFolder removes dir through the gate when it exists. A missing folder
// is neither removed nor reported, and existed is false.
func RemoveFolder(ctx context.Context, g *gate.Gate, mode gate.Mode, dir string) (out gate.Outcome, existed bool, err error) {
	info, statErr := os.Stat(dir)
	if statErr != nil || !info.IsDir() {
		return gate.Outcome{}, false, nil
	}
	out, err = g.Execute(ctx, mode.Request("Remove folder "+dir, func(context.Context) error {
		return os.RemoveAll(dir)
	}))
	return out, true, err
}

func (u *Uninstaller) runCommand(cmd Command) gate.Operation {
	return func(ctx context.Context) error {
		_, err := u.Runner.Run(ctx, cmd.Spec())
		return err
	}
}
