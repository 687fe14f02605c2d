//go:build windows

// pkg/config/policy_windows.go - enterprise policy overrides from the registry.

package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/windows/registry"
)

// applyPolicy overlays values found under HKLM\SOFTWARE\Cimian\Sweep.
// A missing key means no policy is deployed.
func applyPolicy(cfg *Configuration) ([]string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, PolicyRegistryPath, registry.READ)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open policy key %s: %w", PolicyRegistryPath, err)
	}
	defer key.Close()

	var applied []string
	mark := func(name string, ok bool) {
		if ok {
			applied = append(applied, name)
		}
	}

	mark("LogFile", loadStringFromRegistry(key, "LogFile", &cfg.LogFile))
	mark("LogLevel", loadStringFromRegistry(key, "LogLevel", &cfg.LogLevel))
	mark("ReportDir", loadStringFromRegistry(key, "ReportDir", &cfg.ReportDir))
	mark("MetricsFile", loadStringFromRegistry(key, "MetricsFile", &cfg.MetricsFile))
	mark("PowerShellPath", loadStringFromRegistry(key, "PowerShellPath", &cfg.PowerShellPath))
	mark("MsiExecPath", loadStringFromRegistry(key, "MsiExecPath", &cfg.MsiExecPath))
	mark("PreflightScript", loadStringFromRegistry(key, "PreflightScript", &cfg.PreflightScript))
	mark("PostflightScript", loadStringFromRegistry(key, "PostflightScript", &cfg.PostflightScript))

	mark("Concurrency", loadIntFromRegistry(key, "Concurrency", &cfg.Concurrency))
	mark("CommandTimeoutMinutes", loadIntFromRegistry(key, "CommandTimeoutMinutes", &cfg.CommandTimeoutMinutes))

	// Policy can force dry-run on but never switch confirmation off.
	var dryRun bool
	if loadBoolFromRegistry(key, "DryRun", &dryRun) && dryRun {
		cfg.DryRun = true
		applied = append(applied, "DryRun")
	}

	mark("ExtraInstallRoots", loadStringArrayFromRegistry(key, "ExtraInstallRoots", &cfg.ExtraInstallRoots))

	return applied, nil
}

func loadStringFromRegistry(key registry.Key, valueName string, target *string) bool {
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		*target = val
		return true
	}
	return false
}

// loadBoolFromRegistry accepts "true"/"false", "1"/"0" strings and DWORD 1/0.
func loadBoolFromRegistry(key registry.Key, valueName string, target *bool) bool {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.ParseBool(val); parseErr == nil {
			*target = parsed
			return true
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = val != 0
		return true
	}
	return false
}

func loadIntFromRegistry(key registry.Key, valueName string, target *int) bool {
	if val, _, err := key.GetStringValue(valueName); err == nil {
		if parsed, parseErr := strconv.Atoi(val); parseErr == nil {
			*target = parsed
			return true
		}
	}
	if val, _, err := key.GetIntegerValue(valueName); err == nil {
		*target = int(val)
		return true
	}
	return false
}

// loadStringArrayFromRegistry reads REG_MULTI_SZ or a comma-separated REG_SZ.
func loadStringArrayFromRegistry(key registry.Key, valueName string, target *[]string) bool {
	if vals, _, err := key.GetStringsValue(valueName); err == nil {
		if filtered := nonEmpty(vals); len(filtered) > 0 {
			*target = filtered
			return true
		}
	}
	if val, _, err := key.GetStringValue(valueName); err == nil && val != "" {
		if filtered := nonEmpty(strings.Split(val, ",")); len(filtered) > 0 {
			*target = filtered
			return true
		}
	}
	return false
}

func nonEmpty(vals []string) []string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
