package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantPath string
		wantArgs string
	}{
		{"quoted with tail", `"C:\Program Files\Contoso\uninst.exe" /S /norestart`, `C:\Program Files\Contoso\uninst.exe`, `/S /norestart`},
		{"quoted no tail", `  "C:\Program Files\Contoso\uninst.exe"  `, `C:\Program Files\Contoso\uninst.exe`, ``},
		{"quoted tail keeps inner quotes", `"C:\x\u.exe" /LOG="C:\a b\u.log"`, `C:\x\u.exe`, `/LOG="C:\a b\u.log"`},
		{"quoted tail glued to quote", `"C:\x\u.exe"/S`, `C:\x\u.exe`, `/S`},
		{"unquoted with spaces", `C:\Program Files (x86)\Fabrikam\unins000.exe /SILENT`, `C:\Program Files (x86)\Fabrikam\unins000.exe`, `/SILENT`},
		{"msiexec guid", `MsiExec.exe /X{12345678-1234-1234-1234-123456789012}`, `MsiExec.exe`, `/X{12345678-1234-1234-1234-123456789012}`},
		{"exe inside directory name", `C:\tools.exe.d\run.exe --remove`, `C:\tools.exe.d\run.exe`, `--remove`},
		{"no exe first token", `rundll32 shell32.dll,Control_RunDLL`, `rundll32`, `shell32.dll,Control_RunDLL`},
		{"single token", `C:\Contoso\remove.cmd`, `C:\Contoso\remove.cmd`, ``},
		{"exe at end", `C:\Program Files\Contoso\uninstall.EXE`, `C:\Program Files\Contoso\uninstall.EXE`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, got.Path)
			assert.Equal(t, tt.wantArgs, got.Args)
		})
	}
}

func TestParseCommandMalformed(t *testing.T) {
	_, err := ParseCommand("   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = ParseCommand(`""  /S`)
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = ParseCommand(`"C:\Program Files\Contoso\uninst.exe /S`)
	assert.ErrorIs(t, err, ErrUnterminatedQuote)
}

func TestIsMsiAndProductCode(t *testing.T) {
	tests := []struct {
		in       string
		msi      bool
		wantCode string
	}{
		{`MsiExec.exe /I{12345678-1234-1234-1234-123456789012}`, true, "{12345678-1234-1234-1234-123456789012}"},
		{`C:\Windows\System32\msiexec.exe /x {abcdef01-2345-6789-abcd-ef0123456789} /qb`, true, "{ABCDEF01-2345-6789-ABCD-EF0123456789}"},
		{`msiexec /package foo.msi`, true, ""},
		{`"C:\Contoso\setup.exe" /X{12345678-1234-1234-1234-123456789012}`, true, "{12345678-1234-1234-1234-123456789012}"},
		{`"C:\Contoso\uninst.exe" /S`, false, ""},
		{`"C:\Contoso\uninst.exe" /Install`, false, ""},
	}
	for _, tt := range tests {
		cmd, err := ParseCommand(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.msi, cmd.IsMsi(), tt.in)
		code, ok := cmd.ProductCode()
		assert.Equal(t, tt.wantCode, code, tt.in)
		assert.Equal(t, tt.wantCode != "", ok, tt.in)
	}
}

func TestSilentMsi(t *testing.T) {
	cmd, err := ParseCommand(`MsiExec.exe /I{12345678-1234-1234-1234-123456789012}`)
	require.NoError(t, err)
	silent := cmd.SilentMsi(`C:\Windows\System32\msiexec.exe`)
	assert.Equal(t, `C:\Windows\System32\msiexec.exe`, silent.Path)
	assert.Equal(t, `/x {12345678-1234-1234-1234-123456789012} /qn /norestart`, silent.Args)
	assert.Equal(t, `"C:\Windows\System32\msiexec.exe" /x {12345678-1234-1234-1234-123456789012} /qn /norestart`, silent.Line())

	cmd, err = ParseCommand(`msiexec /package foo.msi /norestart`)
	require.NoError(t, err)
	assert.Equal(t, `/x foo.msi /norestart /qn`, cmd.SilentMsi("msiexec.exe").Args)
}

func TestSilentMsiNeverKeepsInstallSwitch(t *testing.T) {
	cases := []struct {
		line string
		want string
	}{
		{`MsiExec.exe /I "C:\ProgramData\Contoso\agent.msi"`, `/x "C:\ProgramData\Contoso\agent.msi" /qn /norestart`},
		{`msiexec.exe /i C:\Temp\agent.msi`, `/x C:\Temp\agent.msi /qn /norestart`},
		{`msiexec.exe -i C:\Temp\agent.msi /quiet`, `/x C:\Temp\agent.msi /quiet /norestart`},
		{`msiexec.exe /I"C:\Program Files\Contoso\agent.msi"`, `/x "C:\Program Files\Contoso\agent.msi" /qn /norestart`},
		{`msiexec.exe /x C:\Temp\agent.msi`, `/x C:\Temp\agent.msi /qn /norestart`},
	}
	for _, tc := range cases {
		cmd, err := ParseCommand(tc.line)
		require.NoError(t, err, tc.line)
		assert.Equal(t, tc.want, cmd.SilentMsi("msiexec.exe").Args, tc.line)
	}
}

func TestSpecAcceptsRebootCodesForMsiOnly(t *testing.T) {
	msi := MsiUninstall("msiexec.exe", "{12345678-1234-1234-1234-123456789012}")
	assert.Equal(t, []int{3010, 1641}, msi.Spec().OkExitCodes)

	exe := Command{Path: `C:\Contoso\uninst.exe`, Args: "/S"}
	assert.Empty(t, exe.Spec().OkExitCodes)
	assert.Equal(t, "/S", exe.Spec().RawArgs)
}
