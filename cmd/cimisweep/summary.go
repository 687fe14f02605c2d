package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/windowsadmins/cimisweep/pkg/batch"
	"github.com/windowsadmins/cimisweep/pkg/reporting"
)

var (
	colorDim     = lipgloss.Color("#7A8291")
	colorSuccess = lipgloss.Color("#A3BE8C")
	colorFailure = lipgloss.Color("#BF616A")
	colorWarn    = lipgloss.Color("#EBCB8B")

	titleStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)
	failStyle    = lipgloss.NewStyle().Foreground(colorFailure).Bold(true)
	dryRunStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	summaryFrame = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

type summaryRow struct {
	label string
	value string
}

func renderRows(title string, rows []summaryRow) string {
	width := 0
	for _, r := range rows {
		if len(r.label) > width {
			width = len(r.label)
		}
	}
	lines := []string{titleStyle.Render(title)}
	for _, r := range rows {
		lines = append(lines, labelStyle.Render(r.label+strings.Repeat(" ", width-len(r.label)))+"  "+r.value)
	}
	return summaryFrame.Render(strings.Join(lines, "\n"))
}

func renderBatchSummary(s batch.Summary, logPath string) string {
	failed := okStyle.Render("0")
	if s.Failed > 0 {
		failed = failStyle.Render(fmt.Sprintf("%d", s.Failed))
	}
	rows := []summaryRow{
		{"Targets processed", fmt.Sprintf("%d", len(s.Processed))},
		{"Failed", failed},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	for _, j := range s.Failures() {
		rows = append(rows, summaryRow{"  " + j.Identifier, failStyle.Render(firstLine(j.Err))})
	}
	if logPath != "" {
		rows = append(rows, summaryRow{"Log", absPath(logPath)})
	}
	return renderRows("Batch complete", rows)
}

func renderReport(r *reporting.Report, path string) string {
	title := "Stubborn removal: " + r.Target
	if r.DryRun {
		title += dryRunStyle.Render(" (dry run)")
	}

	counts := map[string]int{}
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	rows := []summaryRow{
		{"Steps", strings.Join(r.Steps, " > ")},
		{"Actions", fmt.Sprintf("%d", len(r.Records))},
	}
	for _, status := range []string{"succeeded", "completed", "dry-run", "skipped", "failed"} {
		if n := counts[status]; n > 0 {
			value := fmt.Sprintf("%d", n)
			if status == "failed" {
				value = failStyle.Render(value)
			}
			rows = append(rows, summaryRow{"  " + status, value})
		}
	}
	if path != "" {
		rows = append(rows, summaryRow{"Report", absPath(path)})
	} else {
		rows = append(rows, summaryRow{"Report", failStyle.Render("not written")})
	}
	return renderRows(title, rows)
}

func firstLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}
