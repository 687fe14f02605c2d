// pkg/process/process.go - launching external uninstallers and cmdlets.

package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/windowsadmins/cimisweep/pkg/logging"
)

// Spec describes one external command.
type Spec struct {
	Path string
	Args []string
	// RawArgs is appended to the quoted Path verbatim. On Windows the
	// resulting string becomes the process command line unchanged, which
	// keeps vendor uninstall strings byte-for-byte intact.
	RawArgs string
	// OkExitCodes lists additional exit codes that count as success
	// (msiexec reports 3010 and 1641 when a reboot is pending).
	OkExitCodes []int
}

// CommandLine renders the spec the way it is handed to the OS.
func (s Spec) CommandLine() string {
	var b strings.Builder
	b.WriteString(`"` + s.Path + `"`)
	if s.RawArgs != "" {
		b.WriteString(" " + s.RawArgs)
	}
	for _, a := range s.Args {
		b.WriteString(" " + quoteArg(a))
	}
	return b.String()
}

func quoteArg(a string) string {
	if a == "" || strings.ContainsAny(a, " \t\"") {
		return `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
	}
	return a
}

// Result carries what the command printed and how it exited.
type Result struct {
	Output   string
	ExitCode int
}

// Runner executes external commands.
type Runner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

const waitDelay = 2 * time.Second

// ErrTimeout is wrapped when a command outlives the runner's timeout.
var ErrTimeout = errors.New("command timed out")

// ExitError reports a non-zero exit code that is not in OkExitCodes.
type ExitError struct {
	Code   int
	Output string
}

func (e *ExitError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return fmt.Sprintf("exit code %d: %s", e.Code, out)
}

// ExecRunner is the live Runner. Windows consoles are hidden and a timed-out
// command has its whole process tree terminated.
type ExecRunner struct {
	Timeout time.Duration // zero disables the timeout
	log     *logging.Logger
}

// NewExecRunner returns a Runner that applies timeout to every command.
func NewExecRunner(timeout time.Duration, log *logging.Logger) *ExecRunner {
	return &ExecRunner{Timeout: timeout, log: log}
}

func (r *ExecRunner) Run(ctx context.Context, spec Spec) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	configure(cmd, spec)
	// Children that inherit stdout must not hold Wait open after a kill.
	cmd.WaitDelay = waitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.log.Debug("Running command", "command", spec.CommandLine())
	start := time.Now()
	err := cmd.Run()
	res := Result{Output: out.String(), ExitCode: cmd.ProcessState.ExitCode()}
	r.log.Debug("Command finished", "command", spec.Path, "exitCode", res.ExitCode, "duration", time.Since(start))

	if err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%w after %s: %s", ErrTimeout, r.Timeout, spec.Path)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		for _, ok := range spec.OkExitCodes {
			if res.ExitCode == ok {
				r.log.Info("Command reported success with pending reboot", "command", spec.Path, "exitCode", res.ExitCode)
				return res, nil
			}
		}
		return res, &ExitError{Code: res.ExitCode, Output: res.Output}
	}
	return res, fmt.Errorf("command execution failed: %w", err)
}
