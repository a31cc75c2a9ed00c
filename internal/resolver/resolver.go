// Package resolver turns a diagnostic's DataRequirements into the
// ExecutionCandidates the solver should consider, by querying the
// catalog, partitioning rows into groups, and running each group
// through its declared constraints. Grounded on the GroupConstraint /
// apply_constraint pattern of the reference implementation's
// constraints module, reworked as a Go interface with a static
// registry of constraint kinds instead of Python Protocol duck typing.
package resolver

import (
	"context"
	"fmt"
	"sort"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// Candidate is the output of resolving one DataRequirement: one group
// of catalog rows that satisfied every declared constraint, keyed by
// its group_by facet values.
type Candidate struct {
	GroupKey []types.FacetPair
	Rows     []store.CatalogRow
}

// ExecutionCandidate is the Cartesian-product output of resolving every
// DataRequirement of a diagnostic: one combination of per-source_type
// groups, with a group_key formed from the union of all group_by keys.
type ExecutionCandidate struct {
	GroupKey         []types.FacetPair
	DatasetsBySource map[types.SourceDatasetType][]store.CatalogRow
}

// Resolve resolves every DataRequirement of diag against st and returns
// the Cartesian product of the surviving per-requirement candidates.
func Resolve(ctx context.Context, st store.Store, diag types.Diagnostic) ([]ExecutionCandidate, error) {
	perRequirement := make([][]Candidate, 0, len(diag.DataRequirements))
	for _, req := range diag.DataRequirements {
		candidates, err := resolveRequirement(ctx, st, req)
		if err != nil {
			return nil, fmt.Errorf("resolver: resolving requirement for %s: %w", req.SourceType, err)
		}
		if len(candidates) == 0 {
			// This requirement has no surviving group: the Cartesian product is empty.
			return nil, nil
		}
		perRequirement = append(perRequirement, candidates)
	}
	if len(perRequirement) == 0 {
		return nil, nil
	}

	return cartesianProduct(diag, perRequirement), nil
}

func resolveRequirement(ctx context.Context, st store.Store, req types.DataRequirement) ([]Candidate, error) {
	rows, err := st.QueryCatalog(ctx, req.SourceType, req.Filters)
	if err != nil {
		return nil, err
	}

	groups := partitionByFacets(rows, req.GroupBy)

	constraints := make([]Constraint, 0, len(req.Constraints))
	for _, spec := range req.Constraints {
		c, err := Build(spec)
		if err != nil {
			return nil, err
		}
		constraints = append(constraints, c)
	}

	candidates := make([]Candidate, 0, len(groups))
	for _, g := range groups {
		cand := Candidate{GroupKey: g.key, Rows: g.rows}
		ok := true
		for _, c := range constraints {
			cand.Rows, ok = c.Apply(cand.Rows, rows)
			if !ok {
				break
			}
		}
		if ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

type facetGroup struct {
	key  []types.FacetPair
	rows []store.CatalogRow
}

// partitionByFacets groups rows whose values for groupBy facet names are
// identical. If groupBy is empty, every row falls into one group.
func partitionByFacets(rows []store.CatalogRow, groupBy []string) []facetGroup {
	sortedFacets := append([]string(nil), groupBy...)
	sort.Strings(sortedFacets)

	index := map[string]int{}
	var groups []facetGroup
	for _, row := range rows {
		key := make([]types.FacetPair, len(sortedFacets))
		for i, facet := range sortedFacets {
			key[i] = types.FacetPair{Facet: facet, Value: facetValue(row, facet)}
		}
		sig := facetKeySignature(key)
		if idx, ok := index[sig]; ok {
			groups[idx].rows = append(groups[idx].rows, row)
			continue
		}
		index[sig] = len(groups)
		groups = append(groups, facetGroup{key: key, rows: []store.CatalogRow{row}})
	}
	return groups
}

func facetValue(row store.CatalogRow, facet string) string {
	switch facet {
	case "instance_id":
		return row.InstanceID
	case "version":
		return row.Version
	case "variable_id":
		return row.VariableID
	default:
		return row.Facets[facet]
	}
}

func facetKeySignature(key []types.FacetPair) string {
	sig := ""
	for _, p := range key {
		sig += p.Facet + "=" + p.Value + "\x00"
	}
	return sig
}

// cartesianProduct combines the per-requirement candidate lists into
// ExecutionCandidates, one per combination, with a group_key formed from
// the union of every requirement's group key, sorted alphabetically by
// facet name with a stable tie-break on value.
func cartesianProduct(diag types.Diagnostic, perRequirement [][]Candidate) []ExecutionCandidate {
	combos := [][]Candidate{{}}
	for _, candidates := range perRequirement {
		var next [][]Candidate
		for _, combo := range combos {
			for _, c := range candidates {
				next = append(next, append(append([]Candidate{}, combo...), c))
			}
		}
		combos = next
	}

	out := make([]ExecutionCandidate, 0, len(combos))
	for _, combo := range combos {
		ec := ExecutionCandidate{DatasetsBySource: map[types.SourceDatasetType][]store.CatalogRow{}}
		var key []types.FacetPair
		for i, c := range combo {
			sourceType := diag.DataRequirements[i].SourceType
			ec.DatasetsBySource[sourceType] = c.Rows
			key = append(key, c.GroupKey...)
		}
		sort.SliceStable(key, func(i, j int) bool {
			if key[i].Facet != key[j].Facet {
				return key[i].Facet < key[j].Facet
			}
			return key[i].Value < key[j].Value
		})
		ec.GroupKey = key
		out = append(out, ec)
	}
	return out
}
