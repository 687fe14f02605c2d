package gate

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sweeperrors "github.com/windowsadmins/cimisweep/pkg/errors"
	"github.com/windowsadmins/cimisweep/pkg/logging"
)

type countingConfirmer struct {
	answer bool
	asked  []string
}

func (c *countingConfirmer) Confirm(description string) bool {
	c.asked = append(c.asked, description)
	return c.answer
}

func mustNotRun(t *testing.T) Operation {
	return func(context.Context) error {
		t.Fatal("operation must not run")
		return nil
	}
}

func TestDryRunNeverExecutes(t *testing.T) {
	for _, force := range []bool{false, true} {
		log := logging.NewTestLogger()
		confirmer := &countingConfirmer{answer: true}
		g := New(confirmer, log.Logger, nil)

		out, err := g.Execute(context.Background(), Request{
			Description: "Remove folder C:\\Program Files\\Contoso",
			Operation:   mustNotRun(t),
			DryRun:      true,
			Force:       force,
		})
		require.NoError(t, err)
		assert.Equal(t, StatusSkipped, out.Status)
		assert.Equal(t, ReasonDryRun, out.Reason)
		assert.True(t, out.OK())
		assert.True(t, out.Simulated())
		assert.Empty(t, confirmer.asked, "dry-run is decided before confirmation")
		assert.Zero(t, g.Executions())
		assert.Equal(t, []string{"DRYRUN: Remove folder C:\\Program Files\\Contoso"}, log.Messages(logging.LevelInfo))
	}
}

func TestDryRunSkipIsNotADecline(t *testing.T) {
	g := New(AutoConfirmer(false), logging.NewNop(), nil)
	op := func(context.Context) error { return nil }

	simulated, err := g.Execute(context.Background(), Mode{DryRun: true}.Request("Uninstall Contoso", op))
	require.NoError(t, err)
	declined, err := g.Execute(context.Background(), Mode{}.Request("Uninstall Contoso", op))
	require.NoError(t, err)

	assert.Equal(t, simulated.Status, declined.Status)
	assert.True(t, simulated.OK())
	assert.True(t, simulated.Simulated())
	assert.False(t, declined.OK())
	assert.False(t, declined.Simulated())
}

func TestForceBypassesConfirmation(t *testing.T) {
	log := logging.NewTestLogger()
	confirmer := &countingConfirmer{answer: false}
	g := New(confirmer, log.Logger, nil)

	ran := false
	out, err := g.Execute(context.Background(), Mode{Force: true}.Request("Kill agent.exe", func(context.Context) error {
		ran = true
		return nil
	}))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, StatusSucceeded, out.Status)
	assert.Empty(t, confirmer.asked)
	assert.Equal(t, int64(1), g.Executions())
	log.AssertLogged(t, logging.LevelInfo, "SUCCESS: Kill agent.exe")
}

func TestConfirmationGrantedAndDeclined(t *testing.T) {
	log := logging.NewTestLogger()
	confirmer := &countingConfirmer{answer: true}
	g := New(confirmer, log.Logger, nil)

	ran := 0
	op := func(context.Context) error { ran++; return nil }

	out, err := g.Execute(context.Background(), Mode{}.Request("Uninstall Contoso", op))
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, out.Status)

	confirmer.answer = false
	out, err = g.Execute(context.Background(), Mode{}.Request("Uninstall Fabrikam", op))
	require.NoError(t, err, "a declined confirmation is not an error")
	assert.Equal(t, StatusSkipped, out.Status)
	assert.Equal(t, ReasonDeclined, out.Reason)
	assert.False(t, out.OK())
	assert.Equal(t, 1, ran)
	assert.Equal(t, []string{"Uninstall Contoso", "Uninstall Fabrikam"}, confirmer.asked)
	log.AssertLogged(t, logging.LevelWarn, "SKIPPED: Uninstall Fabrikam (user declined)")
}

func TestFailurePropagatesExecutionFailure(t *testing.T) {
	log := logging.NewTestLogger()
	g := New(AutoConfirmer(true), log.Logger, nil)
	cause := errors.New("exit code 1603")

	out, err := g.Execute(context.Background(), Mode{}.Request("Uninstall Contoso", func(context.Context) error {
		return cause
	}))
	require.Error(t, err)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, "exit code 1603", out.Reason)
	assert.ErrorIs(t, err, cause)
	assert.True(t, sweeperrors.IsExecutionFailure(err))
	assert.Equal(t, err, out.Err)
	assert.Equal(t, []string{"FAILED: Uninstall Contoso - exit code 1603"}, log.Messages(logging.LevelError))
}

func TestMissingOperationFails(t *testing.T) {
	g := New(AutoConfirmer(true), logging.NewNop(), nil)
	out, err := g.Execute(context.Background(), Mode{Force: true}.Request("nothing", nil))
	assert.Error(t, err)
	assert.Equal(t, StatusFailed, out.Status)
}

func TestConsoleConfirmer(t *testing.T) {
	var prompts bytes.Buffer
	c := NewConsoleConfirmer(strings.NewReader("y\nno\nYES\n"), &prompts)

	assert.True(t, c.Confirm("first"))
	assert.False(t, c.Confirm("second"))
	assert.True(t, c.Confirm("third"))
	assert.False(t, c.Confirm("after EOF"))
	assert.Contains(t, prompts.String(), "Confirm: first? [y/N] ")
}

func TestConsoleConfirmerSerialisesPrompts(t *testing.T) {
	const n = 16
	var prompts bytes.Buffer
	c := NewConsoleConfirmer(strings.NewReader(strings.Repeat("y\n", n)), &prompts)

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.Confirm("job") {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, n, granted)
	assert.Equal(t, strings.Repeat("Confirm: job? [y/N] ", n), prompts.String())
}
