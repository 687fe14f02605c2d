// Package hive reads and deletes Add/Remove Programs uninstall records.
package hive

import (
	"context"
	"errors"
	"fmt"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
)

// ErrUnsupported is returned by the registry store on platforms without a registry.
var ErrUnsupported = errors.New("registry access is only supported on Windows")

// Root is one uninstall hive to enumerate.
type Root struct {
	Hive catalog.HiveRoot
	Path string
}

func (r Root) String() string {
	return string(r.Hive) + `\` + r.Path
}

// UninstallRoots are enumerated in this order by every caller.
var UninstallRoots = []Root{
	{Hive: catalog.HiveLocalMachine, Path: `SOFTWARE\Microsoft\Windows\CurrentVersion\Uninstall`},
	{Hive: catalog.HiveLocalMachine, Path: `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Uninstall`},
	{Hive: catalog.HiveCurrentUser, Path: `Software\Microsoft\Windows\CurrentVersion\Uninstall`},
}

// Store is the uninstall-record collaborator.
type Store interface {
	// Records lists every subkey of root that carries a DisplayName.
	// A root that does not exist yields no records and no error.
	Records(ctx context.Context, root Root) ([]catalog.RegistryEntry, error)
	// DeleteKey removes path and everything below it.
	DeleteKey(ctx context.Context, hive catalog.HiveRoot, path string) error
}

// Matching scans roots in order and returns the records whose DisplayName
// contains pattern, case-insensitively. Every root is scanned even when an
// earlier one fails; the failures are joined into the returned error.
func Matching(ctx context.Context, store Store, roots []Root, pattern string) ([]catalog.RegistryEntry, error) {
	var (
		matches []catalog.RegistryEntry
		errs    []error
	)
	for _, root := range roots {
		records, err := store.Records(ctx, root)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", root, err))
			continue
		}
		for _, rec := range records {
			if catalog.MatchesName(rec.DisplayName, pattern) {
				matches = append(matches, rec)
			}
		}
	}
	return matches, errors.Join(errs...)
}
