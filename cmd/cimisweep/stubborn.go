package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/escalation"
)

type escalationFlags struct {
	recurse       bool
	killProcesses bool
	deepClean     bool
}

func (f *escalationFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.recurse, "recurse", false, "also remove leftover install folders and uninstall keys")
	cmd.Flags().BoolVar(&f.killProcesses, "kill-processes", false, "terminate processes whose name or path matches")
	cmd.Flags().BoolVar(&f.deepClean, "deep-clean", false, "sweep application data folders and remaining uninstall keys")
}

func (f *escalationFlags) options(a *app, id string) escalation.Options {
	return escalation.Options{
		Target:        catalog.ParseTarget(id),
		Recurse:       f.recurse,
		KillProcesses: f.killProcesses,
		DeepClean:     f.deepClean,
		DryRun:        a.cfg.DryRun,
		Force:         a.cfg.Force,
	}
}

func newStubbornCmd(opts *globalOptions) *cobra.Command {
	var (
		name  string
		flags escalationFlags
	)
	cmd := &cobra.Command{
		Use:   "stubborn",
		Short: "Uninstall, then kill processes and sweep leftovers, writing a removal report",
		Example: `  cimisweep stubborn --name "Contoso Agent" --kill-processes --deep-clean
  cimisweep --dry-run stubborn --name Contoso --deep-clean`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.run(cmd, true, func(a *app) error {
				res, err := a.engine.Run(workContext(cmd), flags.options(a, name))
				if res.Report != nil {
					fmt.Fprintln(a.out, renderReport(res.Report, res.ReportPath))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "case-insensitive part of the display name, or a product code")
	_ = cmd.MarkFlagRequired("name")
	flags.register(cmd)
	return cmd
}
