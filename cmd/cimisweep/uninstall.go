package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
)

func newUninstallCmd(opts *globalOptions) *cobra.Command {
	var (
		name        string
		productCode string
		recurse     bool
	)
	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove every product matching a name, or one MSI product code",
		Example: `  cimisweep uninstall --name "Contoso Agent" --recurse
  cimisweep uninstall --product-code {12345678-1234-1234-1234-123456789012} --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id := name
			if productCode != "" {
				if _, ok := catalog.NormalizeProductCode(productCode); !ok {
					return errors.New("--product-code must be a GUID such as {12345678-1234-1234-1234-123456789012}")
				}
				id = productCode
			}
			return opts.run(cmd, true, func(a *app) error {
				return a.uninstaller.Uninstall(workContext(cmd), a.installerOptions(id, recurse))
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "case-insensitive part of the display name")
	cmd.Flags().StringVar(&productCode, "product-code", "", "exact MSI product code; skips name resolution")
	cmd.Flags().BoolVar(&recurse, "recurse", false, "also remove leftover install folders and uninstall keys")
	cmd.MarkFlagsMutuallyExclusive("name", "product-code")
	return cmd
}
