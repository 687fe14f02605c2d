// Package appx queries and removes packaged (MSIX/Appx) applications.
package appx

import (
	"context"
	"fmt"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/powershell"
)

// Manager is the packaged-app collaborator.
type Manager interface {
	Find(ctx context.Context, pattern string) ([]catalog.AppxEntry, error)
	Remove(ctx context.Context, entry catalog.AppxEntry) error
}

// PowerShellManager is the live Manager. With AllUsers set it queries and
// removes machine-wide, which requires an elevated session.
type PowerShellManager struct {
	shell    *powershell.Shell
	AllUsers bool
}

func New(shell *powershell.Shell, allUsers bool) *PowerShellManager {
	return &PowerShellManager{shell: shell, AllUsers: allUsers}
}

type appxRecord struct {
	Name            string `json:"Name"`
	PackageFullName string `json:"PackageFullName"`
	Version         string `json:"Version"`
}

func (m *PowerShellManager) scope() string {
	if m.AllUsers {
		return " -AllUsers"
	}
	return ""
}

func (m *PowerShellManager) Find(ctx context.Context, pattern string) ([]catalog.AppxEntry, error) {
	script := fmt.Sprintf(
		"Get-AppxPackage%s -Name %s -ErrorAction SilentlyContinue | "+
			"Select-Object Name,PackageFullName,@{n='Version';e={[string]$_.Version}} | "+
			"ConvertTo-Json -Compress",
		m.scope(), powershell.ContainsPattern(pattern))

	records, err := powershell.Query[appxRecord](ctx, m.shell, script)
	if err != nil {
		return nil, fmt.Errorf("packaged app lookup for %q failed: %w", pattern, err)
	}

	var entries []catalog.AppxEntry
	for _, r := range records {
		if !catalog.MatchesName(r.Name, pattern) {
			continue
		}
		entries = append(entries, catalog.AppxEntry{
			Name:     r.Name,
			FullName: r.PackageFullName,
			Version:  r.Version,
			AllUsers: m.AllUsers,
		})
	}
	return entries, nil
}

// Remove removes the package by its full name in the scope it was found in.
func (m *PowerShellManager) Remove(ctx context.Context, entry catalog.AppxEntry) error {
	scope := ""
	if entry.AllUsers {
		scope = " -AllUsers"
	}
	script := fmt.Sprintf("$ErrorActionPreference = 'Stop'; Remove-AppxPackage -Package %s%s",
		powershell.Quote(entry.FullName), scope)

	if _, err := m.shell.Run(ctx, script); err != nil {
		return fmt.Errorf("removal of packaged app %s failed: %w", entry.FullName, err)
	}
	return nil
}
