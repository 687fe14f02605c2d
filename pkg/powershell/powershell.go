// Package powershell runs non-interactive PowerShell scripts and decodes their JSON output.
package powershell

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/windowsadmins/cimisweep/pkg/process"
)

// Shell invokes Windows PowerShell through a process.Runner.
type Shell struct {
	Path   string
	runner process.Runner
}

// New returns a Shell that launches path (powershell.exe) through runner.
func New(path string, runner process.Runner) *Shell {
	if path == "" {
		path = "powershell.exe"
	}
	return &Shell{Path: path, runner: runner}
}

func (s *Shell) spec(script string) process.Spec {
	return process.Spec{
		Path: s.Path,
		Args: []string{"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script},
	}
}

// Run executes script and returns its combined output.
func (s *Shell) Run(ctx context.Context, script string) (string, error) {
	res, err := s.runner.Run(ctx, s.spec(script))
	if err != nil {
		return res.Output, fmt.Errorf("powershell: %w", err)
	}
	return res.Output, nil
}

// Query runs script, which must end in ConvertTo-Json, and decodes the result
// into a slice. ConvertTo-Json emits a bare object for a single result and
// nothing at all for none; both are handled.
func Query[T any](ctx context.Context, s *Shell, script string) ([]T, error) {
	out, err := s.Run(ctx, script)
	if err != nil {
		return nil, err
	}
	return DecodeList[T](out)
}

// DecodeList parses ConvertTo-Json output into a slice.
func DecodeList[T any](raw string) ([]T, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "{") {
		raw = "[" + raw + "]"
	}
	var out []T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode powershell output: %w", err)
	}
	return out, nil
}

// Quote renders s as a single-quoted PowerShell literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ContainsPattern renders a -Name wildcard that matches s anywhere, with the
// wildcard metacharacters in s escaped.
func ContainsPattern(s string) string {
	var b strings.Builder
	b.WriteByte('*')
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '`':
			b.WriteByte('`')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return Quote(b.String())
}
