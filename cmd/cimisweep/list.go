package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/hive"
)

func newListCmd(opts *globalOptions) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show what a name matches in every source, without removing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return errors.New("--name is required")
			}
			return opts.run(cmd, false, func(a *app) error {
				entries := a.listCandidates(cmd, name)
				if len(entries) == 0 {
					a.log.Warn(fmt.Sprintf("no match for '%s'", name))
					return nil
				}
				catalog.SortForDisplay(entries)
				renderEntries(a.out, entries)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "case-insensitive part of the name")
	return cmd
}

// listCandidates asks every backend, unlike the resolver which stops at the
// first one that answers.
func (a *app) listCandidates(cmd *cobra.Command, name string) []catalog.Entry {
	ctx := cmd.Context()
	var entries []catalog.Entry

	records, err := hive.Matching(ctx, a.hive, hive.UninstallRoots, name)
	if err != nil {
		a.log.Warn("Uninstall record lookup failed", "error", err)
	}
	for _, r := range records {
		entries = append(entries, r)
	}

	packages, err := a.packages.Find(ctx, name)
	if err != nil {
		a.log.Warn("Package manager lookup failed", "error", err)
	}
	for _, p := range packages {
		entries = append(entries, p)
	}

	apps, err := a.apps.Find(ctx, name)
	if err != nil {
		a.log.Warn("Packaged app lookup failed", "error", err)
	}
	for _, pkg := range apps {
		entries = append(entries, pkg)
	}
	return entries
}

func renderEntries(w io.Writer, entries []catalog.Entry) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Version", "Source", "Detail"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		table.Append([]string{e.Label(), e.VersionString(), string(e.Source()), entryDetail(e)})
	}
	table.Render()
}

func entryDetail(e catalog.Entry) string {
	switch v := e.(type) {
	case catalog.RegistryEntry:
		return v.FullKeyPath()
	case catalog.PackageEntry:
		return v.Provider
	case catalog.AppxEntry:
		return v.FullName
	default:
		return ""
	}
}
