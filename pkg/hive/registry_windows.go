//go:build windows

package hive

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
)

// RegistryStore is the live Store backed by the Windows registry.
type RegistryStore struct{}

// NewRegistryStore returns the live Store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{}
}

func rootKey(h catalog.HiveRoot) (registry.Key, error) {
	switch h {
	case catalog.HiveLocalMachine:
		return registry.LOCAL_MACHINE, nil
	case catalog.HiveCurrentUser:
		return registry.CURRENT_USER, nil
	default:
		return 0, fmt.Errorf("unknown hive %q", h)
	}
}

func (s *RegistryStore) Records(ctx context.Context, root Root) ([]catalog.RegistryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := rootKey(root.Hive)
	if err != nil {
		return nil, err
	}

	key, err := registry.OpenKey(base, root.Path, registry.READ)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("unable to open %s: %w", root, err)
	}
	defer key.Close()

	subKeys, err := key.ReadSubKeyNames(0)
	if err != nil {
		return nil, fmt.Errorf("unable to read sub keys of %s: %w", root, err)
	}

	var records []catalog.RegistryEntry
	for _, subKey := range subKeys {
		fullPath := root.Path + `\` + subKey
		rec, ok := readRecord(base, fullPath)
		if !ok {
			continue
		}
		rec.Hive = root.Hive
		records = append(records, rec)
	}
	return records, nil
}

// readRecord skips keys that vanish mid-scan or have no DisplayName.
func readRecord(base registry.Key, path string) (catalog.RegistryEntry, bool) {
	k, err := registry.OpenKey(base, path, registry.QUERY_VALUE)
	if err != nil {
		return catalog.RegistryEntry{}, false
	}
	defer k.Close()

	name, _, err := k.GetStringValue("DisplayName")
	if err != nil || name == "" {
		return catalog.RegistryEntry{}, false
	}
	rec := catalog.RegistryEntry{DisplayName: name, KeyPath: path}
	if v, _, err := k.GetStringValue("DisplayVersion"); err == nil {
		rec.DisplayVersion = v
	}
	if u, _, err := k.GetStringValue("UninstallString"); err == nil {
		rec.UninstallCommand = u
	}
	return rec, true
}

func (s *RegistryStore) DeleteKey(ctx context.Context, hive catalog.HiveRoot, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	base, err := rootKey(hive)
	if err != nil {
		return err
	}
	return deleteTree(base, path)
}

// deleteTree removes children first; registry.DeleteKey refuses keys with subkeys.
func deleteTree(base registry.Key, path string) error {
	k, err := registry.OpenKey(base, path, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	children, err := k.ReadSubKeyNames(0)
	k.Close()
	if err != nil {
		return fmt.Errorf("unable to read sub keys of %s: %w", path, err)
	}
	for _, child := range children {
		if err := deleteTree(base, path+`\`+child); err != nil {
			return err
		}
	}
	if err := registry.DeleteKey(base, path); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return fmt.Errorf("unable to delete %s: %w", path, err)
	}
	return nil
}
