// Package resolver turns a target name into removal candidates.
//
// Backends are consulted in a fixed order and each later one only when every
// earlier one found nothing:
//
//  1. uninstall records in every hive root
//  2. the PackageManagement providers
//  3. packaged (Appx) applications
//
// Every match of the answering backend is returned. There is no
// disambiguation: "Office" resolves to every product whose name contains it.
package resolver

import (
	"context"

	"github.com/windowsadmins/cimisweep/pkg/appx"
	"github.com/windowsadmins/cimisweep/pkg/catalog"
	"github.com/windowsadmins/cimisweep/pkg/hive"
	"github.com/windowsadmins/cimisweep/pkg/logging"
	"github.com/windowsadmins/cimisweep/pkg/packagemgr"
)

// Resolver queries the candidate backends.
type Resolver struct {
	store    hive.Store
	roots    []hive.Root
	packages packagemgr.Manager
	apps     appx.Manager
	log      *logging.Logger
}

// New returns a Resolver over the standard uninstall roots. packages and apps
// may be nil to disable those fallbacks.
func New(store hive.Store, packages packagemgr.Manager, apps appx.Manager, log *logging.Logger) *Resolver {
	return &Resolver{
		store:    store,
		roots:    hive.UninstallRoots,
		packages: packages,
		apps:     apps,
		log:      log,
	}
}

// Resolve returns the candidates for pattern in backend order. A backend
// that fails is logged and treated as having found nothing, so the next
// fallback still runs. The only error returned is ctx's.
func (r *Resolver) Resolve(ctx context.Context, pattern string) ([]catalog.Entry, error) {
	if pattern == "" {
		return nil, nil
	}

	records, err := hive.Matching(ctx, r.store, r.roots, pattern)
	if err != nil {
		r.log.Warn("Uninstall record lookup failed", "target", pattern, "error", err)
	}
	if len(records) > 0 {
		return r.found(pattern, catalog.SourceRegistry, registryEntries(records)), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.packages != nil {
		pkgs, err := r.packages.Find(ctx, pattern)
		if err != nil {
			r.log.Warn("Package manager lookup failed", "target", pattern, "error", err)
		}
		if len(pkgs) > 0 {
			entries := make([]catalog.Entry, 0, len(pkgs))
			for _, p := range pkgs {
				entries = append(entries, p)
			}
			return r.found(pattern, catalog.SourcePackage, entries), nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if r.apps != nil {
		apps, err := r.apps.Find(ctx, pattern)
		if err != nil {
			r.log.Warn("Packaged app lookup failed", "target", pattern, "error", err)
		}
		if len(apps) > 0 {
			entries := make([]catalog.Entry, 0, len(apps))
			for _, a := range apps {
				entries = append(entries, a)
			}
			return r.found(pattern, catalog.SourceAppx, entries), nil
		}
	}

	r.log.Debug("No candidates in any backend", "target", pattern)
	return nil, ctx.Err()
}

func (r *Resolver) found(pattern string, source catalog.Source, entries []catalog.Entry) []catalog.Entry {
	r.log.Debug("Resolved candidates", "target", pattern, "source", string(source), "count", len(entries))
	if len(entries) > 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Label())
		}
		r.log.Warn("Target matches several candidates; all of them will be processed", "target", pattern, "candidates", names)
	}
	return entries
}

func registryEntries(records []catalog.RegistryEntry) []catalog.Entry {
	entries := make([]catalog.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, rec)
	}
	return entries
}
