// pkg/installer/command.go - parsing vendor uninstall strings.

package installer

import (
	"errors"
	"strings"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/process"
)

var (
	ErrEmptyCommand      = errors.New("empty uninstall command")
	ErrUnterminatedQuote = errors.New("unterminated quote in uninstall command")
)

// msiexec exit codes that mean the product is gone (3010 and 1641 ask for a reboot).
var msiOkExitCodes = []int{3010, 1641}

// Command is an uninstall string split into executable and argument tail.
type Command struct {
	Path string
	Args string // verbatim, leading blanks removed
}

// ParseCommand splits an UninstallString.
//
//	"C:\Program Files\X\uninst.exe" /S   -> path inside the quotes, rest verbatim
//	C:\Program Files\X\uninst.exe /S     -> path runs through the first ".exe" that ends a word
//	MsiExec.exe /X{GUID}                 -> same rule
//	rundll32 shell32.dll,Foo             -> no ".exe": first whitespace-delimited token
//
// Surrounding whitespace is ignored. An opening quote with no closing quote is
// ErrUnterminatedQuote, an empty string ErrEmptyCommand.
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Command{}, ErrEmptyCommand
	}

	if s[0] == '"' {
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return Command{}, ErrUnterminatedQuote
		}
		path := s[1 : end+1]
		if strings.TrimSpace(path) == "" {
			return Command{}, ErrEmptyCommand
		}
		return Command{Path: path, Args: trimLeadingBlanks(s[end+2:])}, nil
	}

	if end := exeEnd(s); end > 0 {
		return Command{Path: s[:end], Args: trimLeadingBlanks(s[end:])}, nil
	}

	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return Command{Path: s[:i], Args: trimLeadingBlanks(s[i:])}, nil
	}
	return Command{Path: s}, nil
}

// exeEnd returns the index just past the first ".exe" that is followed by
// whitespace or the end of s, or -1.
func exeEnd(s string) int {
	lower := strings.ToLower(s)
	offset := 0
	for {
		i := strings.Index(lower[offset:], ".exe")
		if i < 0 {
			return -1
		}
		end := offset + i + len(".exe")
		if end == len(s) || s[end] == ' ' || s[end] == '\t' {
			return end
		}
		offset = end
	}
}

func trimLeadingBlanks(s string) string {
	return strings.TrimLeft(s, " \t")
}

// baseName strips both separator styles so it behaves the same on every GOOS.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `\/`); i >= 0 {
		return path[i+1:]
	}
	return path
}

// IsMsi reports whether the command is a Windows Installer uninstall.
func (c Command) IsMsi() bool {
	switch strings.ToLower(baseName(c.Path)) {
	case "msiexec", "msiexec.exe":
		return true
	}
	_, ok := c.ProductCode()
	return ok
}

// ProductCode finds a /I{GUID} or /X{GUID} switch (also "-x", and with the
// GUID as the next word) and returns the normalized product code.
func (c Command) ProductCode() (string, bool) {
	fields := strings.Fields(c.Args)
	for i, f := range fields {
		if len(f) < 2 || (f[0] != '/' && f[0] != '-') {
			continue
		}
		switch f[1] {
		case 'i', 'I', 'x', 'X':
		default:
			continue
		}
		rest := f[2:]
		if rest == "" && i+1 < len(fields) {
			rest = fields[i+1]
		}
		if code, ok := catalog.NormalizeProductCode(rest); ok {
			return code, true
		}
	}
	return "", false
}

// SilentMsi rewrites an MSI command to the silent, no-restart removal form.
// With a product code this is always msiexec /x {CODE} /qn /norestart, which
// also turns vendor /I (repair/modify) strings into removals. Without one, a
// leading install switch is swapped for /x and its package operand kept.
func (c Command) SilentMsi(msiexecPath string) Command {
	if code, ok := c.ProductCode(); ok {
		return MsiUninstall(msiexecPath, code)
	}
	args := removalSwitch(c.Args)
	lower := strings.ToLower(args)
	if !strings.Contains(lower, "/qn") && !strings.Contains(lower, "/quiet") {
		args = strings.TrimSpace(args + " /qn")
	}
	if !strings.Contains(lower, "/norestart") {
		args = strings.TrimSpace(args + " /norestart")
	}
	return Command{Path: msiexecPath, Args: args}
}

// removalSwitch replaces a leading /i, -i or /package switch with /x.
func removalSwitch(args string) string {
	trimmed := strings.TrimLeft(args, " \t")
	end := strings.IndexAny(trimmed, " \t")
	if end < 0 {
		end = len(trimmed)
	}
	token := strings.ToLower(trimmed[:end])
	if len(token) < 2 || (token[0] != '/' && token[0] != '-') {
		return args
	}
	switch name := token[1:]; {
	case name == "i" || name == "package":
		return "/x" + trimmed[end:]
	case strings.HasPrefix(name, `i"`):
		// msiexec accepts the operand glued to the switch: /I"C:\pkg.msi"
		return "/x " + trimmed[2:]
	}
	return args
}

// MsiUninstall is the direct removal command for a known product code.
func MsiUninstall(msiexecPath, productCode string) Command {
	return Command{Path: msiexecPath, Args: "/x " + productCode + " /qn /norestart"}
}

// Line renders the command the way it is launched.
func (c Command) Line() string {
	return c.Spec().CommandLine()
}

// Spec converts the command for a process.Runner.
func (c Command) Spec() process.Spec {
	spec := process.Spec{Path: c.Path, RawArgs: c.Args}
	if c.IsMsi() {
		spec.OkExitCodes = msiOkExitCodes
	}
	return spec
}
