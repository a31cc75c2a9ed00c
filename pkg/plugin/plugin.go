// Package plugin defines the diagnostic plugin contract and the static
// registry providers implement it against. Providers are resolved at
// process startup from this compile-time registry, never via runtime
// dynamic loading, mirroring internal/archetype.Registry's load-once
// shape and internal/catalog's adapter registry.
package plugin

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dwsmith1983/interlock/internal/cmec"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// ExecutionDefinition is the opaque unit an Executor hands to a
// diagnostic: the resolved input datasets, the directories it may write
// to, and where its captured output stream goes.
type ExecutionDefinition struct {
	ProviderSlug     string
	DiagnosticSlug   string
	GroupKey         []types.FacetPair
	DatasetsBySource map[types.SourceDatasetType][]store.CatalogRow
	OutputDirectory  string
	ScratchDirectory string
	LogSink          io.Writer
}

// DiagnosticPlugin is one provider-registered diagnostic. Execute writes
// files under definition.OutputDirectory; BuildExecutionResult then reads
// back whatever Execute produced and renders the CMEC-compatible bundles.
// A plugin never computes results directly from the executor's
// perspective — it is invoked as an opaque unit, in-process here but
// indistinguishable in shape from an out-of-process subprocess call.
type DiagnosticPlugin interface {
	Slug() string
	DataRequirements() []types.DataRequirement
	Facets() []string
	Execute(ctx context.Context, def ExecutionDefinition) error
	BuildExecutionResult(def ExecutionDefinition) (cmec.OutputBundle, cmec.MetricBundle, error)
}

// Provider groups a named, versioned set of diagnostics registered
// together at init time.
type Provider struct {
	Slug        string
	Version     string
	Diagnostics []DiagnosticPlugin
}

var registry = map[string]Provider{}

// RegisterProvider adds a provider and its diagnostics to the static
// registry. Called from each provider package's init().
func RegisterProvider(p Provider) {
	if _, exists := registry[p.Slug]; exists {
		panic(fmt.Sprintf("plugin: provider %q already registered", p.Slug))
	}
	registry[p.Slug] = p
}

// Get looks up one diagnostic by its (provider, diagnostic) full slug.
func Get(providerSlug, diagnosticSlug string) (DiagnosticPlugin, bool) {
	p, ok := registry[providerSlug]
	if !ok {
		return nil, false
	}
	for _, d := range p.Diagnostics {
		if d.Slug() == diagnosticSlug {
			return d, true
		}
	}
	return nil, false
}

// Providers returns every registered provider's metadata in the
// types.Provider shape internal/resolver and internal/solver operate on,
// sorted by slug for deterministic solve ordering.
func Providers() []types.Provider {
	out := make([]types.Provider, 0, len(registry))
	for _, p := range registry {
		diags := make([]types.Diagnostic, 0, len(p.Diagnostics))
		for _, d := range p.Diagnostics {
			diags = append(diags, types.Diagnostic{
				ProviderSlug:     p.Slug,
				DiagnosticSlug:   d.Slug(),
				DataRequirements: d.DataRequirements(),
				Facets:           d.Facets(),
			})
		}
		sort.Slice(diags, func(i, j int) bool { return diags[i].DiagnosticSlug < diags[j].DiagnosticSlug })
		out = append(out, types.Provider{Slug: p.Slug, Version: p.Version, Diagnostics: diags})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// reset clears the registry. Nothing in the repository calls it; the
// executor tests register uniquely named providers instead.
func reset() {
	registry = map[string]Provider{}
}
