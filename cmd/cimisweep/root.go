package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/windowsadmins/cimisweep/pkg/appx"
	"github.com/windowsadmins/cimisweep/pkg/blocking"
	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/config"
	"github.com/windowsadmins/cimisweep/pkg/escalation"
	"github.com/windowsadmins/cimisweep/pkg/facts"
	"github.com/windowsadmins/cimisweep/pkg/gate"
	"github.com/windowsadmins/cimisweep/pkg/hive"
	"github.com/windowsadmins/cimisweep/pkg/installer"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/metrics"
	"github.com/windowsadmins/cimisweep/pkg/packagemgr"
	"github.com/windowsadmins/cimisweep/pkg/powershell"
	"github.com/windowsadmins/cimisweep/pkg/process"
	"github.com/windowsadmins/cimisweep/pkg/reporting"
	"github.com/windowsadmins/cimisweep/pkg/resolver"
	"github.com/windowsadmins/cimisweep/pkg/scripts"
)

var errNotAdmin = errors.New("administrative access is required; run from an elevated prompt or add --dry-run")

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logFile    string
	dryRun     bool
	force      bool
	verbosity  int
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "cimisweep",
		Short: "Remove Windows software by name or product code, one target or many",
		Long: `cimisweep removes software found in the uninstall registry, the
PackageManagement providers or the packaged app store. Every destructive
step is confirmed unless --force is given, and nothing changes with --dry-run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "configuration file (default "+config.ConfigPath+")")
	pf.StringVar(&opts.logFile, "log-file", "", "log file path (overrides LogFile)")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "show what would be removed without changing anything")
	pf.BoolVar(&opts.force, "force", false, "do not ask for confirmation")
	pf.CountVarP(&opts.verbosity, "verbose", "v", "console verbosity (-v warnings, -vv info, -vvv debug)")

	root.AddCommand(
		newUninstallCmd(opts),
		newStubbornCmd(opts),
		newBatchCmd(opts),
		newListCmd(opts),
		newReportsCmd(opts),
		newVersionCmd(),
	)
	return root
}

// app is everything one command invocation needs, built from configuration.
type app struct {
	cfg     *config.Configuration
	log     *logging.Logger
	metrics *metrics.Metrics
	out     io.Writer

	gate        *gate.Gate
	hive        hive.Store
	packages    packagemgr.Manager
	apps        appx.Manager
	uninstaller *installer.Uninstaller
	engine      *escalation.Engine
	reports     *reporting.Writer
	hooks       *scripts.Hooks
}

// loadConfig reads configuration and lays the flags that were set on top.
func (o *globalOptions) loadConfig(flags *pflag.FlagSet) (*config.Configuration, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg, flags, o)
	return cfg, nil
}

// applyFlags overrides cfg with explicitly set flags. A dry-run forced by
// policy stays on.
func applyFlags(cfg *config.Configuration, flags *pflag.FlagSet, o *globalOptions) {
	if flags.Changed("log-file") {
		cfg.LogFile = o.logFile
	}
	if flags.Changed("force") {
		cfg.Force = o.force
	}
	if flags.Changed("dry-run") {
		if o.dryRun || !slices.Contains(cfg.PolicyOverrides, "DryRun") {
			cfg.DryRun = o.dryRun
		}
	}
	if flags.Changed("concurrency") {
		if n, err := flags.GetInt("concurrency"); err == nil {
			cfg.Concurrency = n
		}
	}
}

// run builds the app, checks elevation for destructive commands, runs fn and
// exports metrics.
func (o *globalOptions) run(cmd *cobra.Command, destructive bool, fn func(a *app) error) error {
	cfg, err := o.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a := newApp(cfg, o.verbosity, cmd.OutOrStdout())
	defer a.log.Close()

	if len(cfg.PolicyOverrides) > 0 {
		a.log.Info("Policy overrides applied", "settings", cfg.PolicyOverrides)
	}
	if destructive && !cfg.DryRun {
		admin, err := adminCheck()
		if err != nil {
			return fmt.Errorf("failed to check administrative privileges: %w", err)
		}
		if !admin {
			a.log.Error(errNotAdmin.Error())
			return errNotAdmin
		}
	}

	var runErr error
	if destructive {
		if err := a.hooks.RunPreflight(cmd.Context(), cfg.DryRun); err != nil {
			a.log.Error("Preflight failed; nothing was removed", "error", err)
			return err
		}
		runErr = fn(a)
		if err := a.hooks.RunPostflight(workContext(cmd), cfg.DryRun); err != nil {
			a.log.Warn("Postflight failed", "error", err)
		}
	} else {
		runErr = fn(a)
	}

	if cfg.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			a.log.Warn("Failed to write metrics textfile", "path", cfg.MetricsFile, "error", err)
		}
	}
	return runErr
}

func newApp(cfg *config.Configuration, verbosity int, out io.Writer) *app {
	fileLevel, _ := logging.ParseLevel(cfg.LogLevel)
	log := logging.New(logging.LoggerConfig{
		FilePath:     cfg.LogFile,
		FileLevel:    fileLevel,
		Console:      true,
		ConsoleLevel: logging.VerbosityLevel(verbosity),
	})
	m := metrics.New()

	var confirmer gate.Confirmer = gate.NewConsoleConfirmer(os.Stdin, out)
	g := gate.New(confirmer, log, m)

	runner := process.NewExecRunner(time.Duration(cfg.CommandTimeoutMinutes)*time.Minute, log)
	shell := powershell.New(cfg.PowerShellPath, runner)
	store := hive.NewRegistryStore()
	packages := packagemgr.New(shell)
	apps := appx.New(shell, true)

	uninstaller := installer.New(installer.Dependencies{
		Gate:          g,
		Resolver:      resolver.New(store, packages, apps, log),
		Hive:          store,
		Packages:      packages,
		Apps:          apps,
		Runner:        runner,
		Log:           log,
		MsiExecPath:   cfg.MsiExecPath,
		LeftoverRoots: append(installer.DefaultLeftoverRoots(), cfg.ExtraInstallRoots...),
	})
	reports := reporting.NewWriter(cfg.ReportDir, log, m)

	engine := escalation.New(escalation.Dependencies{
		Gate:           g,
		Uninstaller:    uninstaller,
		Processes:      blocking.NewSystemFinder(),
		Hive:           store,
		Writer:         reports,
		Log:            log,
		DeepCleanRoots: append(escalation.DefaultDeepCleanRoots(), cfg.ExtraInstallRoots...),
		Facts:          facts.Collect,
	})

	return &app{
		cfg:         cfg,
		log:         log,
		metrics:     m,
		out:         out,
		gate:        g,
		hive:        store,
		packages:    packages,
		apps:        apps,
		uninstaller: uninstaller,
		engine:      engine,
		reports:     reports,
		hooks:       scripts.New(shell, g, log, cfg.PreflightScript, cfg.PostflightScript),
	}
}

func (a *app) installerOptions(id string, recurse bool) installer.Options {
	return installer.Options{
		Target:  catalog.ParseTarget(id),
		Recurse: recurse,
		DryRun:  a.cfg.DryRun,
		Force:   a.cfg.Force,
	}
}

// workContext is what removals run under. A Ctrl+C stops admitting new work
// but never interrupts an uninstaller that has already started.
func workContext(cmd *cobra.Command) context.Context {
	return context.WithoutCancel(cmd.Context())
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
