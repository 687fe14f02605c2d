package version

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintFull(t *testing.T) {
	var buf bytes.Buffer
	PrintFull(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 5)
	assert.Equal(t, "cimisweep dev", lines[0])
	assert.Contains(t, buf.String(), runtime.Version())
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	Print(&buf)
	assert.Equal(t, "cimisweep dev\n", buf.String())
}
