// Package gate is the single choke point for destructive operations. Every
// registry deletion, folder removal, process kill and uninstaller launch is
// wrapped in a Request and decided here.
package gate

import (
	"context"
	"errors"
	"sync/atomic"

	sweeperrors "github.com/windowsadmins/cimisweep/pkg/errors"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/metrics"
)

// Status is the decision recorded for one Request.
type Status int

const (
	StatusSkipped Status = iota
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const (
	ReasonDryRun   = "dry-run"
	ReasonDeclined = "user declined"
)

// Operation performs the side effect. It only runs when the gate allows it.
type Operation func(ctx context.Context) error

// Request is built once per action and never modified.
type Request struct {
	Description string
	Operation   Operation
	DryRun      bool
	Force       bool
}

// Mode carries the dry-run and force switches of one invocation.
type Mode struct {
	DryRun bool
	Force  bool
}

// Request builds a Request under m.
func (m Mode) Request(description string, op Operation) Request {
	return Request{Description: description, Operation: op, DryRun: m.DryRun, Force: m.Force}
}

// Outcome is produced exactly once per Request.
type Outcome struct {
	Status Status
	Reason string
	Err    error
}

// OK reports whether the action succeeded or was simulated by dry-run.
func (o Outcome) OK() bool {
	return o.Status == StatusSucceeded || (o.Status == StatusSkipped && o.Reason == ReasonDryRun)
}

// Simulated reports a dry-run outcome.
func (o Outcome) Simulated() bool {
	return o.Status == StatusSkipped && o.Reason == ReasonDryRun
}

// Gate applies dry-run, force and confirmation to Requests.
type Gate struct {
	confirmer Confirmer
	log       *logging.Logger
	metrics   *metrics.Metrics

	executions atomic.Int64
}

// New returns a Gate. m may be nil.
func New(confirmer Confirmer, log *logging.Logger, m *metrics.Metrics) *Gate {
	return &Gate{confirmer: confirmer, log: log, metrics: m}
}

var errNoOperation = errors.New("request has no operation")

// Execute decides req. DryRun is checked before anything else, so neither the
// confirmer nor the operation is consulted in a dry run. The returned error is
// non-nil only when the operation itself failed, and is an ExecutionFailure.
// A dry run returns StatusSkipped with ReasonDryRun: that is the simulated
// success (OK and Simulated both report true), not a decline.
func (g *Gate) Execute(ctx context.Context, req Request) (Outcome, error) {
	out, err := g.decide(ctx, req)
	g.metrics.GateDecision(out.Status.String())
	return out, err
}

func (g *Gate) decide(ctx context.Context, req Request) (Outcome, error) {
	if req.DryRun {
		g.log.Info("DRYRUN: " + req.Description)
		return Outcome{Status: StatusSkipped, Reason: ReasonDryRun}, nil
	}

	if !req.Force && !g.confirmer.Confirm(req.Description) {
		g.log.Warn("SKIPPED: " + req.Description + " (user declined)")
		return Outcome{Status: StatusSkipped, Reason: ReasonDeclined}, nil
	}

	g.executions.Add(1)
	err := errNoOperation
	if req.Operation != nil {
		err = req.Operation(ctx)
	}
	if err != nil {
		g.log.Error("FAILED: " + req.Description + " - " + err.Error())
		failure := sweeperrors.NewExecutionFailure(req.Description, err)
		return Outcome{Status: StatusFailed, Reason: err.Error(), Err: failure}, failure
	}

	g.log.Info("SUCCESS: " + req.Description)
	return Outcome{Status: StatusSucceeded}, nil
}

// Executions counts operations the gate actually invoked.
func (g *Gate) Executions() int64 {
	return g.executions.Load()
}
