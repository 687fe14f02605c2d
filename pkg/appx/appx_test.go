package appx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/powershell"
	"github.com/windowsadmins/cimisweep/pkg/process"
)

type scriptedRunner struct {
	output  string
	scripts []string
}

func (r *scriptedRunner) Run(_ context.Context, spec process.Spec) (process.Result, error) {
	r.scripts = append(r.scripts, spec.Args[len(spec.Args)-1])
	return process.Result{Output: r.output}, nil
}

func TestFindAllUsers(t *testing.T) {
	runner := &scriptedRunner{output: `{"Name":"Contoso.Notes","PackageFullName":"Contoso.Notes_2.1.0.0_x64__8wekyb3d8bbwe","Version":"2.1.0.0"}`}
	m := New(powershell.New("", runner), true)

	got, err := m.Find(context.Background(), "notes")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, catalog.AppxEntry{
		Name:     "Contoso.Notes",
		FullName: "Contoso.Notes_2.1.0.0_x64__8wekyb3d8bbwe",
		Version:  "2.1.0.0",
		AllUsers: true,
	}, got[0])
	assert.Contains(t, runner.scripts[0], "Get-AppxPackage -AllUsers -Name '*notes*'")
}

func TestRemoveUsesFullNameAndScope(t *testing.T) {
	runner := &scriptedRunner{}
	m := New(powershell.New("", runner), false)

	require.NoError(t, m.Remove(context.Background(), catalog.AppxEntry{FullName: "Contoso.Notes_2.1.0.0_x64__abc"}))
	assert.Equal(t, "$ErrorActionPreference = 'Stop'; Remove-AppxPackage -Package 'Contoso.Notes_2.1.0.0_x64__abc'", runner.scripts[0])

	require.NoError(t, m.Remove(context.Background(), catalog.AppxEntry{FullName: "X_1", AllUsers: true}))
	assert.Contains(t, runner.scripts[1], "-AllUsers")
}
