//go:build !windows

package config

// applyPolicy is a no-op off Windows; there is no policy registry to read.
func applyPolicy(cfg *Configuration) ([]string, error) {
	return nil, nil
}
