// Package escalation removes stubborn targets. It runs the standard uninstall
// first and then, on request, kills matching processes and sweeps leftover
// folders and uninstall records, writing one report per run.
//
//	Start -> StandardUninstall -> [KillProcesses] -> [DeepClean] -> PersistReport -> Done
//
// The machine never moves backwards and never retries a step. A failing step
// is recorded and the next one still runs.
package escalation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/windowsadmins/cimisweep/pkg/blocking"
	"github.com/windowsadmins/cimisweep/pkg/catalog"
	sweeperrors "github.com/windowsadmins/cimisweep/pkg/errors"
	"github.com/windowsadmins/cimisweep/pkg/facts"
	"github.com/windowsadmins/cimisweep/pkg/gate"
	"github.com/windowsadmins/cimisweep/pkg/hive"
	"github.com/windowsadmins/cimisweep/pkg/installer"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/reporting"
)

// State is a step of the escalation machine.
type State int

const (
	StateStart State = iota
	StateStandardUninstall
	StateKillProcesses
	StateDeepClean
	StatePersistReport
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "Start"
	case StateStandardUninstall:
		return "StandardUninstall"
	case StateKillProcesses:
		return "KillProcesses"
	case StateDeepClean:
		return "DeepClean"
	case StatePersistReport:
		return "PersistReport"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Uninstaller is the standard single-target removal.
type Uninstaller interface {
	Uninstall(ctx context.Context, opts installer.Options) error
}

// Options describe one stubborn removal.
type Options struct {
	Target        catalog.Target
	Recurse       bool
	KillProcesses bool
	DeepClean     bool
	DryRun        bool
	Force         bool
}

func (o Options) mode() gate.Mode {
	return gate.Mode{DryRun: o.DryRun, Force: o.Force}
}

// next is the transition function. It only ever moves forward.
func next(s State, opts Options) State {
	switch s {
	case StateStart:
		return StateStandardUninstall
	case StateStandardUninstall:
		if opts.KillProcesses {
			return StateKillProcesses
		}
		fallthrough
	case StateKillProcesses:
		if opts.DeepClean {
			return StateDeepClean
		}
		return StatePersistReport
	case StateDeepClean:
		return StatePersistReport
	default:
		return StateDone
	}
}

// Dependencies wires an Engine.
type Dependencies struct {
	Gate        *gate.Gate
	Uninstaller Uninstaller
	Processes   blocking.Finder
	Hive        hive.Store
	Writer      *reporting.Writer
	Log         *logging.Logger
	// DeepCleanRoots are joined with the target name during DeepClean.
	DeepCleanRoots []string
	// Facts is called once per run; nil stamps empty host facts.
	Facts func() facts.SystemFacts
}

// Engine runs escalations. It holds no per-run state and may be shared by
// concurrent batch jobs.
type Engine struct {
	Dependencies
}

func New(deps Dependencies) *Engine {
	return &Engine{Dependencies: deps}
}

// DefaultDeepCleanRoots are Program Files, Program Files (x86), the roaming
// application data of the current user and the shared ProgramData.
func DefaultDeepCleanRoots() []string {
	roots := installer.DefaultLeftoverRoots()
	if v := os.Getenv("APPDATA"); v != "" {
		roots = append(roots, v)
	}
	programData := os.Getenv("ProgramData")
	if programData == "" {
		programData = `C:\ProgramData`
	}
	return append(roots, programData)
}

// Result is what one run produced.
type Result struct {
	ReportPath string
	Report     *reporting.Report
	// Visited lists the states in the order they ran.
	Visited []State
}

// Run escalates opts.Target. The report is persisted even when steps fail;
// the error then is a PartialFailure naming the failed steps. A failure to
// persist the report is also returned.
func (e *Engine) Run(ctx context.Context, opts Options) (Result, error) {
	host := facts.SystemFacts{}
	if e.Facts != nil {
		host = e.Facts()
	}
	run := &runState{
		engine: e,
		opts:   opts,
		mode:   opts.mode(),
		report: reporting.New(opts.Target.String(), opts.DryRun, host),
		log:    e.Log.With("target", opts.Target.String()),
	}

	var res Result
	for state := StateStart; state != StateDone; state = next(state, opts) {
		res.Visited = append(res.Visited, state)
		if state == StateStart {
			continue
		}
		run.report.Step(state.String())
		switch state {
		case StateStandardUninstall:
			run.standardUninstall(ctx)
		case StateKillProcesses:
			run.killProcesses(ctx)
		case StateDeepClean:
			run.deepClean(ctx)
		case StatePersistReport:
			path, err := e.Writer.Persist(ctx, run.report)
			if err != nil {
				run.log.Error("FAILED: Persist removal report - " + err.Error())
				run.fail(err)
			}
			res.ReportPath = path
		}
	}
	res.Visited = append(res.Visited, StateDone)
	res.Report = run.report

	if run.errs != nil {
		return res, sweeperrors.NewPartialFailure(opts.Target.String(), run.failed, run.steps, run.errs)
	}
	return res, nil
}

type runState struct {
	engine *Engine
	opts   Options
	mode   gate.Mode
	report *reporting.Report
	log    *logging.Logger

	errs   error
	failed int
	steps  int
}

func (r *runState) fail(err error) {
	r.failed++
	r.errs = multierr.Append(r.errs, err)
}

// record adds the gate outcome for one action and counts it.
func (r *runState) record(kind reporting.RecordKind, detail string, out gate.Outcome, err error) {
	r.steps++
	r.report.Add(kind, detail, outcomeStatus(out), out.Reason)
	if err != nil {
		r.fail(err)
	}
}

func outcomeStatus(out gate.Outcome) string {
	if out.Simulated() {
		return "dry-run"
	}
	return out.Status.String()
}

func (r *runState) standardUninstall(ctx context.Context) {
	err := r.engine.Uninstaller.Uninstall(ctx, installer.Options{
		Target:  r.opts.Target,
		Recurse: r.opts.Recurse,
		DryRun:  r.opts.DryRun,
		Force:   r.opts.Force,
	})
	r.steps++
	switch {
	case err != nil:
		r.log.Error("Standard uninstall failed; escalating", "error", err)
		r.report.Add(reporting.Uninstalled, r.opts.Target.String(), gate.StatusFailed.String(), err.Error())
		r.fail(err)
	case r.opts.DryRun:
		r.report.Add(reporting.Uninstalled, r.opts.Target.String(), "dry-run", gate.ReasonDryRun)
	default:
		r.report.Add(reporting.Uninstalled, r.opts.Target.String(), "completed", "")
	}
}

func (r *runState) killProcesses(ctx context.Context) {
	name := r.opts.Target.Name()
	if name == "" {
		r.log.Warn("Process termination needs a target name; skipping")
		return
	}
	procs, err := r.engine.Processes.Find(ctx, name)
	if err != nil {
		r.log.Error("FAILED: Enumerate processes - " + err.Error())
		r.steps++
		r.fail(sweeperrors.NewExecutionFailure("Enumerate processes for "+name, err))
		return
	}
	if len(procs) == 0 {
		r.log.Info("No running processes match", "pattern", name)
	}
	for _, p := range procs {
		p := p
		out, err := r.engine.Gate.Execute(ctx, r.mode.Request("Terminate process "+p.String(), func(ctx context.Context) error {
			return r.engine.Processes.Terminate(ctx, p)
		}))
		r.record(reporting.KilledProcess, p.String(), out, err)
	}
}

func (r *runState) deepClean(ctx context.Context) {
	name := r.opts.Target.Name()
	if name == "" {
		r.log.Warn("Deep clean needs a target name; skipping")
		return
	}

	for _, root := range r.engine.DeepCleanRoots {
		dir := filepath.Join(root, name)
		out, existed, err := installer.RemoveFolder(ctx, r.engine.Gate, r.mode, dir)
		if !existed {
			continue
		}
		r.record(reporting.RemovedFolder, dir, out, err)
	}

	// Re-scan rather than trusting the standard uninstall: vendors often leave their record behind.
	records, err := hive.Matching(ctx, r.engine.Hive, hive.UninstallRoots, name)
	if err != nil {
		r.log.Error("FAILED: Scan uninstall records - " + err.Error())
		r.steps++
		r.fail(sweeperrors.NewExecutionFailure("Scan uninstall records for "+name, err))
	}
	for _, rec := range records {
		rec := rec
		detail := fmt.Sprintf("%s (%s)", rec.FullKeyPath(), rec.DisplayName)
		out, err := r.engine.Gate.Execute(ctx, r.mode.Request("Delete registry key "+rec.FullKeyPath(), func(ctx context.Context) error {
			return r.engine.Hive.DeleteKey(ctx, rec.Hive, rec.KeyPath)
		}))
		r.record(reporting.RemovedRegistryKey, detail, out, err)
	}
}
