// pkg/scripts/prepost.go - site preflight and postflight scripts around destructive commands.

package scripts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/windowsadmins/cimisweep/pkg/gate"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/powershell"
)

// Hooks runs the configured scripts. An empty or missing path is skipped.
// Scripts go through the gate, so a dry run never starts them; they are
// never prompted for because an administrator deployed them.
type Hooks struct {
	Preflight  string
	Postflight string

	shell *powershell.Shell
	gate  *gate.Gate
	log   *logging.Logger
}

func New(shell *powershell.Shell, g *gate.Gate, log *logging.Logger, preflight, postflight string) *Hooks {
	return &Hooks{Preflight: preflight, Postflight: postflight, shell: shell, gate: g, log: log}
}

// RunPreflight runs before any removal. Its failure should abort the command.
func (h *Hooks) RunPreflight(ctx context.Context, dryRun bool) error {
	return h.run(ctx, "Preflight", h.Preflight, dryRun)
}

// RunPostflight runs after the command, whatever its result.
func (h *Hooks) RunPostflight(ctx context.Context, dryRun bool) error {
	return h.run(ctx, "Postflight", h.Postflight, dryRun)
}

func (h *Hooks) run(ctx context.Context, displayName, scriptPath string, dryRun bool) error {
	if scriptPath == "" {
		return nil
	}
	if _, err := os.Stat(scriptPath); errors.Is(err, fs.ErrNotExist) {
		h.log.Debug(displayName+" script not found", "path", scriptPath)
		return nil
	}

	mode := gate.Mode{DryRun: dryRun, Force: true}
	_, err := h.gate.Execute(ctx, mode.Request(
		fmt.Sprintf("Run %s script %s", strings.ToLower(displayName), scriptPath),
		func(ctx context.Context) error {
			out, err := h.shell.Run(ctx, "& "+powershell.Quote(scriptPath)+" 2>&1")
			for _, line := range outputLines(out) {
				h.log.Info(line, "script", displayName)
			}
			return err
		}))
	if err != nil {
		return fmt.Errorf("%s script error: %w", strings.ToLower(displayName), err)
	}
	return nil
}

// outputLines splits script output into non-empty lines without BOMs or
// colour escapes.
func outputLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		txt := strings.TrimSpace(line)
		txt = strings.TrimPrefix(txt, "\ufeff")
		txt = stripANSI(txt)
		if txt == "" {
			continue
		}
		lines = append(lines, txt)
	}
	return lines
}

// stripANSI removes CSI sequences such as "\x1b[31m".
func stripANSI(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return strings.TrimSpace(b.String())
}
