//go:build !windows

package hive

import (
	"context"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
)

// RegistryStore reports ErrUnsupported off Windows.
type RegistryStore struct{}

func NewRegistryStore() *RegistryStore {
	return &RegistryStore{}
}

func (s *RegistryStore) Records(ctx context.Context, root Root) ([]catalog.RegistryEntry, error) {
	return nil, ErrUnsupported
}

func (s *RegistryStore) DeleteKey(ctx context.Context, hive catalog.HiveRoot, path string) error {
	return ErrUnsupported
}
