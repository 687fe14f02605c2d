// Package catalog describes removal targets and the candidates they resolve to.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-version"
)

// Source identifies which backend produced an Entry.
type Source string

const (
	SourceRegistry Source = "registry"
	SourcePackage  Source = "package"
	SourceAppx     Source = "appx"
)

// HiveRoot is the predefined registry root an uninstall record lives under.
type HiveRoot string

const (
	HiveLocalMachine HiveRoot = "HKLM"
	HiveCurrentUser  HiveRoot = "HKCU"
)

// Entry is one removable unit discovered for a target. The set of
// implementations is closed: RegistryEntry, PackageEntry and AppxEntry.
type Entry interface {
	// Label is the human readable name used in gate descriptions.
	Label() string
	Source() Source
	// VersionString is empty when the backend reports none.
	VersionString() string
	isEntry()
}

// RegistryEntry is a classic Add/Remove Programs record.
type RegistryEntry struct {
	DisplayName      string
	DisplayVersion   string
	UninstallCommand string
	Hive             HiveRoot
	KeyPath          string // relative to Hive, e.g. SOFTWARE\...\Uninstall\{GUID}
}

func (e RegistryEntry) Label() string         { return e.DisplayName }
func (e RegistryEntry) Source() Source        { return SourceRegistry }
func (e RegistryEntry) VersionString() string { return e.DisplayVersion }
func (RegistryEntry) isEntry()                {}

// FullKeyPath renders the key as HKLM\SOFTWARE\...
func (e RegistryEntry) FullKeyPath() string {
	return string(e.Hive) + `\` + e.KeyPath
}

// PackageEntry comes from the PackageManagement (Get-Package) providers.
type PackageEntry struct {
	Name     string
	Provider string
	Version  string
	Handle   string // value passed back to the uninstall-by-handle primitive
}

func (e PackageEntry) Label() string         { return e.Name }
func (e PackageEntry) Source() Source        { return SourcePackage }
func (e PackageEntry) VersionString() string { return e.Version }
func (PackageEntry) isEntry()                {}

// AppxEntry is a packaged (MSIX/Appx) application.
type AppxEntry struct {
	Name     string
	FullName string
	Version  string
	AllUsers bool // installed machine-wide rather than for the current user
}

func (e AppxEntry) Label() string         { return e.Name }
func (e AppxEntry) Source() Source        { return SourceAppx }
func (e AppxEntry) VersionString() string { return e.Version }
func (AppxEntry) isEntry()                {}

// Target is the identifier a removal was requested for. It is either a
// free-text name pattern or an exact MSI product code.
type Target struct {
	Identifier  string
	ProductCode string // normalized {UPPER-GUID}; empty for name targets
}

// ParseTarget classifies identifier. Braced and bare GUIDs are product codes.
func ParseTarget(identifier string) Target {
	id := strings.TrimSpace(identifier)
	if code, ok := NormalizeProductCode(id); ok {
		return Target{Identifier: id, ProductCode: code}
	}
	return Target{Identifier: id}
}

// IsProductCode reports whether the target bypasses resolution.
func (t Target) IsProductCode() bool {
	return t.ProductCode != ""
}

// Name is the pattern used for resolution and leftover probing.
func (t Target) Name() string {
	if t.IsProductCode() {
		return ""
	}
	return t.Identifier
}

func (t Target) String() string {
	if t.IsProductCode() {
		return t.ProductCode
	}
	return t.Identifier
}

// NormalizeProductCode validates s as a GUID and returns it as {UPPER-CASE}.
func NormalizeProductCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(strings.ToLower(s), "urn:") {
		return "", false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return "{" + strings.ToUpper(u.String()) + "}", true
}

// MatchesName is the case-insensitive substring test shared by every backend.
func MatchesName(candidate, pattern string) bool {
	if pattern == "" {
		return false
	}
	return strings.Contains(strings.ToLower(candidate), strings.ToLower(pattern))
}

// SortForDisplay orders entries by label, newest version first within a label.
// Versions that do not parse sort after those that do, compared as strings.
func SortForDisplay(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		li, lj := strings.ToLower(entries[i].Label()), strings.ToLower(entries[j].Label())
		if li != lj {
			return li < lj
		}
		return newer(entries[i].VersionString(), entries[j].VersionString())
	})
}

func newer(a, b string) bool {
	va, errA := version.NewVersion(a)
	vb, errB := version.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		return va.GreaterThan(vb)
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a > b
	}
}

// Describe renders an entry for logs and tables.
func Describe(e Entry) string {
	switch v := e.(type) {
	case RegistryEntry:
		return fmt.Sprintf("%s (%s)", v.DisplayName, v.FullKeyPath())
	case PackageEntry:
		return fmt.Sprintf("%s [%s]", v.Name, v.Provider)
	case AppxEntry:
		return v.FullName
	default:
		return e.Label()
	}
}
