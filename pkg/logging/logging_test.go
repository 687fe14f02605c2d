package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \[(INFO|WARN|ERROR|DEBUG)\] `)

func TestFileSinkCreatedOnFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "logs", "cimisweep.log")
	logger := New(LoggerConfig{FilePath: path, FileLevel: LevelDebug})
	defer logger.Close()

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "log file must not exist before the first write")

	logger.Info("SUCCESS: Uninstall Contoso Agent")
	logger.Warn("no match", "target", "Fabrikam")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, linePattern, lines[0])
	assert.Contains(t, lines[0], "[INFO] SUCCESS: Uninstall Contoso Agent")
	assert.Contains(t, lines[1], "[WARN] no match")
	assert.Contains(t, lines[1], "Fabrikam")
}

func TestFileLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cimisweep.log")
	logger := New(LoggerConfig{FilePath: path, FileLevel: LevelWarn})
	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Error("FAILED: Remove folder - access denied")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "[ERROR] FAILED: Remove folder - access denied")
}

func TestLogAtComputedLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cimisweep.log")
	logger := New(LoggerConfig{FilePath: path, FileLevel: LevelInfo})
	assert.Equal(t, path, logger.Path())
	assert.Empty(t, NewNop().Path())

	logger.Log(LevelWarn, "batch complete", "failed", 1)
	logger.Log(LevelDebug, "hidden")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[WARN] batch complete")
	assert.NotContains(t, string(data), "hidden")
}

func TestConcurrentWritesKeepWholeLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cimisweep.log")
	logger := New(LoggerConfig{FilePath: path, FileLevel: LevelInfo})

	const writers, perWriter = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				logger.Info(fmt.Sprintf("job %d entry %d %s", w, i, strings.Repeat("x", 200)))
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, writers*perWriter)
	for _, line := range lines {
		assert.Regexp(t, linePattern, line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
		err  bool
	}{
		{"error", LevelError, false},
		{"WARN", LevelWarn, false},
		{"", LevelInfo, false},
		{"Debug", LevelDebug, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestVerbosityLevel(t *testing.T) {
	assert.Equal(t, LevelError, VerbosityLevel(0))
	assert.Equal(t, LevelWarn, VerbosityLevel(1))
	assert.Equal(t, LevelInfo, VerbosityLevel(2))
	assert.Equal(t, LevelDebug, VerbosityLevel(5))
}

func TestTestLoggerObservesEntries(t *testing.T) {
	tl := NewTestLogger()
	tl.Info("DRYRUN: Remove folder")
	tl.Warn("no match for 'X'")

	assert.Equal(t, []string{"DRYRUN: Remove folder"}, tl.Messages(LevelInfo))
	assert.Equal(t, 1, tl.CountContaining(LevelWarn, "no match"))
	tl.AssertLogged(t, LevelWarn, "'X'")
}
