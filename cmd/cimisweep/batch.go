package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/windowsadmins/cimisweep/pkg/batch"
)

const (
	modeUninstall = "uninstall"
	modeStubborn  = "stubborn"
	modeAppx      = "appx"
)

func newBatchCmd(opts *globalOptions) *cobra.Command {
	var (
		fromFile    string
		mode        string
		concurrency int
		flags       escalationFlags
	)
	cmd := &cobra.Command{
		Use:   "batch [target...]",
		Short: "Remove many targets concurrently",
		Long: `Each target is a display-name pattern or a product code. Targets come from
the arguments and from --from-file (one per line, # starts a comment).
A failing target never stops the others.`,
		Example: `  cimisweep batch --concurrency 8 --force "Contoso Agent" "Fabrikam Viewer"
  cimisweep batch --mode stubborn --from-file C:\temp\retire.txt --kill-processes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := append([]string(nil), args...)
			if fromFile != "" {
				fileTargets, err := readTargets(fromFile)
				if err != nil {
					return err
				}
				targets = append(targets, fileTargets...)
			}
			if len(targets) == 0 {
				return errors.New("no targets given: pass identifiers or --from-file")
			}

			return opts.run(cmd, true, func(a *app) error {
				op, err := a.batchOperation(mode, flags)
				if err != nil {
					return err
				}
				orchestrator, err := batch.New(a.cfg.Concurrency, a.log, a.metrics)
				if err != nil {
					return err
				}

				a.log.Info("Starting batch", "mode", mode, "targets", len(targets), "concurrency", a.cfg.Concurrency, "dryRun", a.cfg.DryRun)
				summary := orchestrator.Run(cmd.Context(), targets, op)
				fmt.Fprintln(a.out, renderBatchSummary(summary, a.log.Path()))

				if summary.Failed > 0 {
					return fmt.Errorf("%d of %d targets failed", summary.Failed, len(summary.Processed))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fromFile, "from-file", "", "file with one target per line")
	cmd.Flags().StringVar(&mode, "mode", modeUninstall, "per-target operation: uninstall, stubborn or appx")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "targets processed at once (1-16, overrides Concurrency)")
	flags.register(cmd)
	return cmd
}

// batchOperation picks the single-target operation the orchestrator drives.
func (a *app) batchOperation(mode string, flags escalationFlags) (batch.Operation, error) {
	switch strings.ToLower(mode) {
	case modeUninstall:
		return func(ctx context.Context, id string) error {
			return a.uninstaller.Uninstall(ctx, a.installerOptions(id, flags.recurse))
		}, nil
	case modeStubborn:
		return func(ctx context.Context, id string) error {
			res, err := a.engine.Run(ctx, flags.options(a, id))
			if res.ReportPath != "" {
				a.log.Info("Removal report", "target", id, "path", res.ReportPath)
			}
			return err
		}, nil
	case modeAppx:
		return func(ctx context.Context, id string) error {
			return a.uninstaller.RemoveApps(ctx, a.installerOptions(id, false))
		}, nil
	default:
		return nil, fmt.Errorf("unknown batch mode %q (want %s, %s or %s)", mode, modeUninstall, modeStubborn, modeAppx)
	}
}
