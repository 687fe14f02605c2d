package main

import (
	"github.com/spf13/cobra"

	"github.com/windowsadmins/cimisweep/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if full {
				version.PrintFull(cmd.OutOrStdout())
				return
			}
			version.Print(cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "include branch, revision and build details")
	return cmd
}
