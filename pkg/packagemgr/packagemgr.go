// Package packagemgr queries and removes packages through the PackageManagement
// providers (Get-Package / Uninstall-Package).
package packagemgr

import (
	"context"
	"fmt"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/powershell"
)

// Manager is the package-manager collaborator.
type Manager interface {
	Find(ctx context.Context, pattern string) ([]catalog.PackageEntry, error)
	Uninstall(ctx context.Context, entry catalog.PackageEntry) error
}

// PowerShellManager is the live Manager.
type PowerShellManager struct {
	shell *powershell.Shell
}

// New returns a Manager backed by shell.
func New(shell *powershell.Shell) *PowerShellManager {
	return &PowerShellManager{shell: shell}
}

type packageRecord struct {
	Name                 string `json:"Name"`
	ProviderName         string `json:"ProviderName"`
	Version              string `json:"Version"`
	FastPackageReference string `json:"FastPackageReference"`
}

// Find returns every package whose name contains pattern.
func (m *PowerShellManager) Find(ctx context.Context, pattern string) ([]catalog.PackageEntry, error) {
	script := fmt.Sprintf(
		"Get-Package -Name %s -ErrorAction SilentlyContinue | "+
			"Select-Object Name,ProviderName,@{n='Version';e={[string]$_.Version}},FastPackageReference | "+
			"ConvertTo-Json -Compress",
		powershell.ContainsPattern(pattern))

	records, err := powershell.Query[packageRecord](ctx, m.shell, script)
	if err != nil {
		return nil, fmt.Errorf("package lookup for %q failed: %w", pattern, err)
	}

	var entries []catalog.PackageEntry
	for _, r := range records {
		if !catalog.MatchesName(r.Name, pattern) {
			continue
		}
		entries = append(entries, catalog.PackageEntry{
			Name:     r.Name,
			Provider: r.ProviderName,
			Version:  r.Version,
			Handle:   r.FastPackageReference,
		})
	}
	return entries, nil
}

// Uninstall force-removes exactly the package identified by entry.Handle.
func (m *PowerShellManager) Uninstall(ctx context.Context, entry catalog.PackageEntry) error {
	script := fmt.Sprintf(
		"$ErrorActionPreference = 'Stop'; "+
			"$pkg = Get-Package -Name %s -ProviderName %s | Where-Object { $_.FastPackageReference -eq %s }; "+
			"if (-not $pkg) { throw 'package no longer present' }; "+
			"$pkg | Uninstall-Package -Force | Out-Null",
		powershell.Quote(entry.Name), powershell.Quote(entry.Provider), powershell.Quote(entry.Handle))

	if _, err := m.shell.Run(ctx, script); err != nil {
		return fmt.Errorf("uninstall of package %s [%s] failed: %w", entry.Name, entry.Provider, err)
	}
	return nil
}
