// pkg/config/config.go - configuration settings for cimisweep.

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/windowsadmins/cimisweep/pkg/logging"
)

// ConfigPath is read when no --config flag is given. Its absence is not an error.
const ConfigPath = `C:\ProgramData\ManagedInstalls\cimisweep.yaml`

// PolicyRegistryPath holds enterprise policy overrides (HKLM).
const PolicyRegistryPath = `SOFTWARE\Cimian\Sweep`

// EnvPrefix prefixes every environment override, e.g. CIMISWEEP_CONCURRENCY=8.
const EnvPrefix = "CIMISWEEP_"

const (
	MinConcurrency = 1
	MaxConcurrency = 16

	maxConfigFileSize = 1024 * 1024
)

// Configuration holds the configurable options for cimisweep.
// YAML keys are matched case-insensitively and ignore underscores, so
// LogFile, logfile and log_file all address the same setting.
type Configuration struct {
	LogFile               string   `yaml:"LogFile" koanf:"logfile"`
	LogLevel              string   `yaml:"LogLevel" koanf:"loglevel"`
	ReportDir             string   `yaml:"ReportDir" koanf:"reportdir"`
	Concurrency           int      `yaml:"Concurrency" koanf:"concurrency"`
	DryRun                bool     `yaml:"DryRun" koanf:"dryrun"`
	Force                 bool     `yaml:"Force" koanf:"force"`
	MetricsFile           string   `yaml:"MetricsFile" koanf:"metricsfile"` // empty disables the textfile export
	PowerShellPath        string   `yaml:"PowerShellPath" koanf:"powershellpath"`
	MsiExecPath           string   `yaml:"MsiExecPath" koanf:"msiexecpath"`
	CommandTimeoutMinutes int      `yaml:"CommandTimeoutMinutes" koanf:"commandtimeoutminutes"` // 0 disables the timeout
	ExtraInstallRoots     []string `yaml:"ExtraInstallRoots" koanf:"extrainstallroots"`
	PreflightScript       string   `yaml:"PreflightScript" koanf:"preflightscript"`
	PostflightScript      string   `yaml:"PostflightScript" koanf:"postflightscript"`

	// Names of the settings that came from the policy registry key, for logging.
	PolicyOverrides []string `yaml:"-" koanf:"-"`
}

// GetDefaultConfig provides default configuration values.
func GetDefaultConfig() *Configuration {
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	systemRoot := os.Getenv("SystemRoot")
	if systemRoot == "" {
		systemRoot = `C:\Windows`
	}
	programFiles := os.Getenv("ProgramFiles")
	if programFiles == "" {
		programFiles = `C:\Program Files`
	}
	managed := filepath.Join(programData, "ManagedInstalls")

	return &Configuration{
		LogFile:               filepath.Join(managed, "logs", "cimisweep.log"),
		LogLevel:              "INFO",
		ReportDir:             filepath.Join(managed, "reports", "cimisweep"),
		Concurrency:           4,
		PowerShellPath:        filepath.Join(systemRoot, "System32", "WindowsPowerShell", "v1.0", "powershell.exe"),
		MsiExecPath:           filepath.Join(systemRoot, "System32", "msiexec.exe"),
		CommandTimeoutMinutes: 15,
		PreflightScript:       filepath.Join(programFiles, "Cimian", "sweep-preflight.ps1"),
		PostflightScript:      filepath.Join(programFiles, "Cimian", "sweep-postflight.ps1"),
	}
}

// Load layers configuration sources over the defaults, lowest precedence first:
// a .env file in the working directory, the YAML file at path (ConfigPath when
// empty), CIMISWEEP_* environment variables, then the policy registry key.
//
// An explicit path that does not exist is an error; a missing default file is not.
func Load(path string) (*Configuration, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		path = ConfigPath
	}
	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), foldedParser{yaml.Parser()}); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := GetDefaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrides, err := applyPolicy(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to apply policy overrides: %w", err)
	}
	cfg.PolicyOverrides = overrides

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// Validate checks the settings that would otherwise fail deep inside a run.
func (c *Configuration) Validate() error {
	if c.Concurrency < MinConcurrency || c.Concurrency > MaxConcurrency {
		return fmt.Errorf("concurrency must be between %d and %d, got %d", MinConcurrency, MaxConcurrency, c.Concurrency)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.CommandTimeoutMinutes < 0 {
		return fmt.Errorf("command timeout must not be negative, got %d", c.CommandTimeoutMinutes)
	}
	if c.ReportDir == "" {
		return errors.New("report directory must not be empty")
	}
	return nil
}

// normalizeKey folds a setting name so "LogFile", "log_file" and "LOGFILE" compare equal.
func normalizeKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "_", "")
}

// envKey maps CIMISWEEP_LOG_FILE to logfile.
func envKey(s string) string {
	return normalizeKey(strings.TrimPrefix(s, EnvPrefix))
}

// foldedParser normalizes top-level keys of the wrapped parser's output.
type foldedParser struct {
	koanf.Parser
}

func (p foldedParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	raw, err := p.Parser.Unmarshal(b)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(raw))
	for key, value := range raw {
		out[normalizeKey(key)] = value
	}
	return out, nil
}
