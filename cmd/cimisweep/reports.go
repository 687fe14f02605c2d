package main

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/windowsadmins/cimisweep/pkg/reporting"
)

func newReportsCmd(opts *globalOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List removal reports written by stubborn runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, false, func(a *app) error {
				summaries, err := reporting.List(a.cfg.ReportDir, days)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Fprintf(a.out, "No removal reports in %s\n", absPath(a.cfg.ReportDir))
					return nil
				}
				renderReportList(a.out, summaries)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "only reports started within this many days (0 for all)")
	return cmd
}

func renderReportList(w io.Writer, summaries []reporting.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Started", "Target", "Actions", "Failed", "Dry run", "Report"})
	table.SetAutoWrapText(false)
	for _, s := range summaries {
		dryRun := ""
		if s.DryRun {
			dryRun = "yes"
		}
		table.Append([]string{
			s.Started.Local().Format("2006-01-02 15:04:05"),
			s.Target,
			fmt.Sprintf("%d", s.Actions),
			fmt.Sprintf("%d", s.Failures),
			dryRun,
			s.Path,
		})
	}
	table.Render()
}
