package reporting

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/cimisweep/pkg/facts"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/metrics"
)

func TestPersistWritesUniqueSealedReports(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w := NewWriter(dir, logging.NewNop(), metrics.New())
	started := time.Date(2025, 7, 12, 14, 3, 11, 0, time.UTC)

	var paths []string
	for i := 0; i < 3; i++ {
		r := New("Contoso Agent", false, facts.SystemFacts{Hostname: "ws-01"})
		r.StartedAt = started
		r.Step("StandardUninstall")
		r.Add(Uninstalled, "Contoso Agent", "succeeded", "")
		path, err := w.Persist(context.Background(), r)
		require.NoError(t, err)
		assert.True(t, r.Sealed())
		assert.Regexp(t, `removal-contoso-agent-20250712-140311-[0-9a-f]{8}\.yaml$`, path)
		paths = append(paths, path)
	}
	assert.Len(t, map[string]bool{paths[0]: true, paths[1]: true, paths[2]: true}, 3)

	got, err := Read(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "Contoso Agent", got.Target)
	assert.Equal(t, "ws-01", got.Host.Hostname)
	assert.Equal(t, []string{"StandardUninstall"}, got.Steps)
	require.Len(t, got.Records, 1)
	assert.Equal(t, Uninstalled, got.Records[0].Kind)
	assert.True(t, got.Sealed())
}

func TestSealedReportRejectsChanges(t *testing.T) {
	w := NewWriter(t.TempDir(), logging.NewNop(), nil)
	r := New("Contoso", true, facts.SystemFacts{})
	_, err := w.Persist(context.Background(), r)
	require.NoError(t, err)

	assert.Panics(t, func() { r.Add(RemovedFolder, `C:\x`, "skipped", "dry-run") })
	assert.Panics(t, func() { _, _ = w.Persist(context.Background(), r) })
}

func TestPersistNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, logging.NewNop(), nil)
	r := New("Contoso", false, facts.SystemFacts{})
	path := filepath.Join(dir, FileName(r))
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0644))

	_, err := w.Persist(context.Background(), r)
	require.Error(t, err)
	assert.False(t, r.Sealed())
	data, _ := os.ReadFile(path)
	assert.Equal(t, "existing", string(data))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "contoso-agent-7", slug("  Contoso Agent (7)"))
	assert.Equal(t, "target", slug("{}"))
	assert.Equal(t, "target", slug("日本語"))
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, logging.NewNop(), nil)

	old := New("Old", false, facts.SystemFacts{})
	old.StartedAt = time.Now().AddDate(0, 0, -30)
	_, err := w.Persist(context.Background(), old)
	require.NoError(t, err)

	recent := New("Recent", true, facts.SystemFacts{})
	recent.Add(KilledProcess, "agent.exe (PID 4)", "failed", "access denied")
	recent.Add(RemovedFolder, `C:\Program Files\Recent`, "skipped", "dry-run")
	_, err = w.Persist(context.Background(), recent)
	require.NoError(t, err)

	all, err := List(dir, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Recent", all[0].Target)
	assert.Equal(t, 2, all[0].Actions)
	assert.Equal(t, 1, all[0].Failures)

	week, err := List(dir, 7)
	require.NoError(t, err)
	require.Len(t, week, 1)
	assert.Equal(t, "Recent", week[0].Target)
}
