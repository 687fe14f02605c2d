// pkg/reporting/reporting.go - durable per-run removal reports.

package reporting

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/windowsadmins/cimisweep/pkg/facts"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/metrics"
	"github.com/windowsadmins/cimisweep/pkg/retry"
)

// RecordKind classifies one recorded action.
type RecordKind string

const (
	KilledProcess      RecordKind = "KilledProcess"
	RemovedFolder      RecordKind = "RemovedFolder"
	RemovedRegistryKey RecordKind = "RemovedRegistryKey"
	Uninstalled        RecordKind = "Uninstalled"
)

// Record is one action taken (or simulated, or declined) during a run.
type Record struct {
	Kind   RecordKind `yaml:"kind"`
	Detail string     `yaml:"detail"`
	Status string     `yaml:"status"`
	Reason string     `yaml:"reason,omitempty"`
	Time   time.Time  `yaml:"time"`
}

// Report accumulates the records of one escalation run. Once persisted it is
// sealed; adding to a sealed report panics.
type Report struct {
	ID         string            `yaml:"id"`
	Target     string            `yaml:"target"`
	DryRun     bool              `yaml:"dry_run"`
	StartedAt  time.Time         `yaml:"started_at"`
	FinishedAt time.Time         `yaml:"finished_at"`
	Host       facts.SystemFacts `yaml:"host"`
	Steps      []string          `yaml:"steps"`
	Records    []Record          `yaml:"actions"`

	sealed bool
}

// New starts a report for target.
func New(target string, dryRun bool, host facts.SystemFacts) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Target:    target,
		DryRun:    dryRun,
		StartedAt: time.Now(),
		Host:      host,
	}
}

func (r *Report) mustBeOpen() {
	if r.sealed {
		panic("reporting: report " + r.ID + " modified after it was persisted")
	}
}

// Add appends a record.
func (r *Report) Add(kind RecordKind, detail, status, reason string) {
	r.mustBeOpen()
	r.Records = append(r.Records, Record{Kind: kind, Detail: detail, Status: status, Reason: reason, Time: time.Now()})
}

// Step notes that the run entered a state.
func (r *Report) Step(name string) {
	r.mustBeOpen()
	r.Steps = append(r.Steps, name)
}

// Sealed reports whether the report has been persisted.
func (r *Report) Sealed() bool {
	return r.sealed
}

// Count returns how many records of kind carry status.
func (r *Report) Count(kind RecordKind, status string) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Kind == kind && rec.Status == status {
			n++
		}
	}
	return n
}

// Writer persists reports under Dir.
type Writer struct {
	Dir     string
	log     *logging.Logger
	metrics *metrics.Metrics
	retry   retry.RetryConfig
}

// NewWriter returns a Writer. m may be nil.
func NewWriter(dir string, log *logging.Logger, m *metrics.Metrics) *Writer {
	return &Writer{Dir: dir, log: log, metrics: m, retry: retry.DefaultConfig}
}

// FileName is removal-<target>-<timestamp>-<id prefix>.yaml.
func FileName(r *Report) string {
	id := strings.ReplaceAll(r.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("removal-%s-%s-%s.yaml", slug(r.Target), r.StartedAt.Format("20060102-150405"), id)
}

// slug keeps letters and digits and folds everything else into single dashes.
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if len(out) > 48 {
		out = strings.TrimSuffix(out[:48], "-")
	}
	if out == "" {
		return "target"
	}
	return out
}

// Persist writes r exactly once and seals it. The file is created
// exclusively, so an existing report is never overwritten.
func (w *Writer) Persist(ctx context.Context, r *Report) (string, error) {
	r.mustBeOpen()
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now()
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(w.Dir, FileName(r))
	err = retry.Retry(ctx, w.retry, w.log, func() error {
		return writeExclusive(path, data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", path, err)
	}

	r.sealed = true
	w.metrics.ReportWritten()
	w.log.Info("Removal report written", "path", path, "actions", len(r.Records))
	return path, nil
}

func writeExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return retry.Permanent(err)
		}
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Read loads a persisted report. The result is sealed.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	r.sealed = true
	return &r, nil
}

// Summary is one line of a report listing.
type Summary struct {
	Path     string
	Target   string
	Started  time.Time
	DryRun   bool
	Actions  int
	Failures int
}

// List summarises the reports in dir started within the last limitDays
// (all when limitDays <= 0), newest first. Unreadable files are skipped.
func List(dir string, limitDays int) ([]Summary, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "removal-*.yaml"))
	if err != nil {
		return nil, err
	}
	cutoff := time.Time{}
	if limitDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -limitDays)
	}

	var out []Summary
	for _, path := range matches {
		r, err := Read(path)
		if err != nil || r.StartedAt.Before(cutoff) {
			continue
		}
		s := Summary{Path: path, Target: r.Target, Started: r.StartedAt, DryRun: r.DryRun, Actions: len(r.Records)}
		for _, rec := range r.Records {
			if rec.Status == "failed" {
				s.Failures++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Started.After(out[j].Started) })
	return out, nil
}
