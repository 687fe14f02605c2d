package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	sweeperrors "github.com/windowsadmins/cimisweep/pkg/errors"
	"github.com/windowsadmins/cimisweep/pkg/gate"
	"github.com/windowsadmins/cimisweep/pkg/hive"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/resolver"
	"github.com/windowsadmins/cimisweep/pkg/sweeptest"
)

const msiexec = `C:\Windows\System32\msiexec.exe`

type fixture struct {
	hive     *sweeptest.Hive
	packages *sweeptest.Packages
	apps     *sweeptest.Apps
	runner   *sweeptest.Runner
	log      *logging.TestLogger
	gate     *gate.Gate
	roots    []string
	u        *Uninstaller
}

func newFixture(t *testing.T, confirm bool) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		hive:     sweeptest.NewHive(),
		packages: &sweeptest.Packages{},
		apps:     &sweeptest.Apps{},
		runner:   &sweeptest.Runner{Fail: map[string]bool{}},
		log:      logging.NewTestLogger(),
		roots:    []string{filepath.Join(base, "Program Files"), filepath.Join(base, "Program Files (x86)")},
	}
	f.gate = gate.New(gate.AutoConfirmer(confirm), f.log.Logger, nil)
	f.u = New(Dependencies{
		Gate:          f.gate,
		Resolver:      resolver.New(f.hive, f.packages, f.apps, f.log.Logger),
		Hive:          f.hive,
		Packages:      f.packages,
		Apps:          f.apps,
		Runner:        f.runner,
		Log:           f.log.Logger,
		MsiExecPath:   msiexec,
		LeftoverRoots: f.roots,
	})
	return f
}

func (f *fixture) mkdir(t *testing.T, root int, name string) string {
	t.Helper()
	dir := filepath.Join(f.roots[root], name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "agent.exe"), []byte("x"), 0644))
	return dir
}

func TestExactProductCodeBypassesResolution(t *testing.T) {
	f := newFixture(t, true)
	target := catalog.ParseTarget("{12345678-1234-1234-1234-123456789012}")

	err := f.u.Uninstall(context.Background(), Options{Target: target, Force: true})
	require.NoError(t, err)

	assert.Equal(t, []string{`"` + msiexec + `" /x {12345678-1234-1234-1234-123456789012} /qn /norestart`}, f.runner.Lines())
	assert.Zero(t, f.hive.Queries())
	assert.Zero(t, f.packages.Finds())
	assert.Zero(t, f.apps.Finds())
}

func TestNoMatchIsRepeatableNoop(t *testing.T) {
	f := newFixture(t, true)
	for i := 0; i < 2; i++ {
		err := f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("Nonexistent Suite"), Recurse: true, Force: true})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.log.CountContaining(logging.LevelWarn, "no match for 'Nonexistent Suite'"))
	assert.Zero(t, f.gate.Executions())
	assert.Empty(t, f.log.Messages(logging.LevelError))
}

func TestEmptyNameWarns(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("   ")}))
	f.log.AssertLogged(t, logging.LevelWarn, "No target given")
	assert.Zero(t, f.hive.Queries())
}

func TestRegistryCandidatesRunParsedCommands(t *testing.T) {
	f := newFixture(t, true)
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{
		DisplayName:      "Contoso Agent",
		UninstallCommand: `MsiExec.exe /I{12345678-1234-1234-1234-123456789012}`,
	})
	f.hive.Add(hive.UninstallRoots[1], catalog.RegistryEntry{
		DisplayName:      "Contoso Helper",
		UninstallCommand: `C:\Program Files (x86)\Contoso\unins000.exe /SILENT`,
	})
	f.hive.Add(hive.UninstallRoots[2], catalog.RegistryEntry{DisplayName: "Contoso Stub"})

	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("contoso"), Force: true}))

	assert.Equal(t, []string{
		`"` + msiexec + `" /x {12345678-1234-1234-1234-123456789012} /qn /norestart`,
		`"C:\Program Files (x86)\Contoso\unins000.exe" /SILENT`,
	}, f.runner.Lines())
	f.log.AssertLogged(t, logging.LevelWarn, "has no uninstall command")
	assert.Empty(t, f.hive.Deleted(), "keys are only deleted with Recurse")
}

func TestOneCandidateFailingDoesNotStopOthers(t *testing.T) {
	f := newFixture(t, true)
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso A", UninstallCommand: `"C:\a.exe" /S`})
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso B", UninstallCommand: `"C:\b.exe" /S`})
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso C", UninstallCommand: `"C:\c.exe /S`})
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso D", UninstallCommand: `"C:\d.exe" /S`})
	f.runner.Fail[`"C:\b.exe" /S`] = true

	err := f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("contoso"), Force: true})
	require.Error(t, err)
	assert.True(t, sweeperrors.IsPartialFailure(err))
	assert.True(t, sweeperrors.IsExecutionFailure(err))
	assert.Contains(t, err.Error(), "2 of 4 removal steps failed")
	assert.Contains(t, err.Error(), ErrUnterminatedQuote.Error())

	assert.Equal(t, []string{`"C:\a.exe" /S`, `"C:\b.exe" /S`, `"C:\d.exe" /S`}, f.runner.Lines())
	assert.Len(t, f.log.Messages(logging.LevelError), 2)
}

func TestPackageAndAppxCandidates(t *testing.T) {
	f := newFixture(t, true)
	f.packages.Entries = []catalog.PackageEntry{{Name: "Fabrikam Sync", Provider: "Programs", Handle: "fab-1"}}
	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("fabrikam"), Force: true}))
	assert.Equal(t, []string{"fab-1"}, f.packages.Uninstalled())

	f.apps.Entries = []catalog.AppxEntry{{Name: "Adatum.Notes", FullName: "Adatum.Notes_1.0_x64__abc"}}
	f.apps.RemoveFn = func(catalog.AppxEntry) error { return errors.New("0x80073CFA") }
	err := f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("adatum"), Force: true})
	require.Error(t, err)
	assert.Equal(t, []string{"Adatum.Notes_1.0_x64__abc"}, f.apps.Removed())
	f.log.AssertLogged(t, logging.LevelError, "FAILED: Remove packaged app Adatum.Notes_1.0_x64__abc - 0x80073CFA")
}

func TestRecurseRemovesExistingLeftoversOnly(t *testing.T) {
	f := newFixture(t, true)
	rec := f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso Agent", UninstallCommand: `"C:\a.exe"`})
	f.hive.Add(hive.UninstallRoots[1], catalog.RegistryEntry{DisplayName: "Contoso Agent x86", UninstallCommand: `"C:\b.exe"`})
	existing := f.mkdir(t, 0, "Contoso")
	missing := filepath.Join(f.roots[1], "Contoso")

	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("Contoso"), Recurse: true, Force: true}))

	assert.NoDirExists(t, existing)
	assert.Equal(t, 1, f.log.CountContaining(logging.LevelInfo, "SUCCESS: Remove folder "+existing), "shared leftovers are handled once")
	for _, msg := range f.log.All() {
		assert.NotContains(t, msg, missing)
	}
	assert.Contains(t, f.hive.Deleted(), rec.FullKeyPath())
	assert.Len(t, f.hive.Deleted(), 2)
}

func TestDryRunHasNoSideEffects(t *testing.T) {
	f := newFixture(t, true)
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso Agent", UninstallCommand: `"C:\a.exe" /S`})
	f.packages.Entries = []catalog.PackageEntry{{Name: "Contoso"}}
	dir := f.mkdir(t, 1, "Contoso")

	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("Contoso"), Recurse: true, DryRun: true, Force: true}))
	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("{12345678-1234-1234-1234-123456789012}"), DryRun: true}))

	assert.DirExists(t, dir)
	assert.Empty(t, f.runner.Lines())
	assert.Empty(t, f.hive.Deleted())
	assert.Zero(t, f.gate.Executions())

	actions := f.log.Messages(logging.LevelInfo)
	require.Len(t, actions, 4)
	for _, msg := range actions {
		assert.True(t, strings.HasPrefix(msg, "DRYRUN: "), msg)
	}
}

func TestDeclinedConfirmationSkipsWithoutError(t *testing.T) {
	f := newFixture(t, false)
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso Agent", UninstallCommand: `"C:\a.exe" /S`})

	require.NoError(t, f.u.Uninstall(context.Background(), Options{Target: catalog.ParseTarget("contoso"), Recurse: true}))
	assert.Empty(t, f.runner.Lines())
	assert.Empty(t, f.hive.Deleted())
	assert.Equal(t, 2, f.log.CountContaining(logging.LevelWarn, "(user declined)"))
}

func TestRemoveAppsOnlyTouchesPackagedApps(t *testing.T) {
	f := newFixture(t, true)
	f.hive.Add(hive.UninstallRoots[0], catalog.RegistryEntry{DisplayName: "Contoso Notes", UninstallCommand: `C:\Contoso\uninst.exe /S`})
	f.apps.Entries = []catalog.AppxEntry{
		{Name: "Contoso.Notes", FullName: "Contoso.Notes_2.1.0.0_x64__8wekyb3d8bbwe"},
		{Name: "Fabrikam.Paint", FullName: "Fabrikam.Paint_1.0.0.0_x64__abc"},
	}

	err := f.u.RemoveApps(context.Background(), Options{Target: catalog.ParseTarget("contoso"), Force: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"Contoso.Notes_2.1.0.0_x64__8wekyb3d8bbwe"}, f.apps.Removed())
	assert.Empty(t, f.runner.Lines())
	assert.Zero(t, f.hive.Queries())
}

func TestRemoveAppsNoMatchWarns(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.u.RemoveApps(context.Background(), Options{Target: catalog.ParseTarget("Nothing"), Force: true}))
	f.log.AssertLogged(t, logging.LevelWarn, "no match for 'Nothing'")
}
