package resolver

import (
	"fmt"
	"time"

	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// Constraint is a post-grouping predicate/augmentation over the rows of
// one resolved group. It returns the (possibly modified) rows and
// whether the group survives; false drops the group.
type Constraint interface {
	Apply(group, catalog []store.CatalogRow) ([]store.CatalogRow, bool)
}

// Build turns a declarative ConstraintSpec into its concrete Constraint.
func Build(spec types.ConstraintSpec) (Constraint, error) {
	switch spec.Kind {
	case "add-supplementary":
		return addSupplementaryDataset{spec: spec, dropIfMissing: true}, nil
	case "select-supplementary":
		return addSupplementaryDataset{spec: spec, dropIfMissing: false}, nil
	case "require-contiguous":
		return requireContiguousTimerange{groupBy: spec.GroupBy}, nil
	case "require-overlapping":
		return requireOverlappingTimerange{groupBy: spec.GroupBy}, nil
	default:
		return nil, fmt.Errorf("resolver: unknown constraint kind %q", spec.Kind)
	}
}

// addSupplementaryDataset finds the single catalog dataset matching
// spec.Template plus the group's own values for spec.MatchFacets, scores
// ties by spec.OptionalMatchFacets agreement (preferring the newest
// version on a further tie), and attaches it to the group.
//
// Grounded on AddSupplementaryDataset in the reference implementation's
// constraints module; simplified for one supplementary attachment per
// group rather than per distinct dataset within the group, since the
// preceding group_by already pins the match facets to a single value
// across the group's rows.
type addSupplementaryDataset struct {
	spec          types.ConstraintSpec
	dropIfMissing bool
}

func (c addSupplementaryDataset) Apply(group, catalog []store.CatalogRow) ([]store.CatalogRow, bool) {
	if len(group) == 0 {
		return group, !c.dropIfMissing
	}
	representative := group[0]

	wanted := make(map[string][]string, len(c.spec.Template)+len(c.spec.MatchFacets)+1)
	for facet, value := range c.spec.Template {
		wanted[facet] = []string{value}
	}
	for _, facet := range c.spec.MatchFacets {
		wanted[facet] = []string{facetValue(representative, facet)}
	}
	if c.spec.SupplementaryVariableID != "" {
		wanted["variable_id"] = []string{c.spec.SupplementaryVariableID}
	}

	var candidates []store.CatalogRow
	for _, row := range catalog {
		if rowMatches(row, wanted) {
			candidates = append(candidates, row)
		}
	}
	if len(candidates) == 0 {
		return group, !c.dropIfMissing
	}

	best := bestSupplementaryMatch(candidates, representative, c.spec.OptionalMatchFacets)
	return append(append([]store.CatalogRow{}, group...), best), true
}

func rowMatches(row store.CatalogRow, wanted map[string][]string) bool {
	for facet, values := range wanted {
		actual := facetValue(row, facet)
		found := false
		for _, v := range values {
			if actual == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func bestSupplementaryMatch(candidates []store.CatalogRow, representative store.CatalogRow, optionalFacets []string) store.CatalogRow {
	best := candidates[0]
	bestScore := -1
	for _, cand := range candidates {
		score := 0
		for _, facet := range optionalFacets {
			if facetValue(cand, facet) == facetValue(representative, facet) {
				score++
			}
		}
		switch {
		case score > bestScore:
			best, bestScore = cand, score
		case score == bestScore && cand.Version > best.Version:
			best = cand
		}
	}
	return best
}

// requireContiguousTimerange drops a group if, within any sub-grouping
// by groupBy, the union of file time ranges has a gap larger than one
// month plus a rounding allowance.
//
// Grounded on RequireContiguousTimerange in the reference
// implementation's constraints module.
type requireContiguousTimerange struct {
	groupBy []string
}

const maxContiguousGap = 31*24*time.Hour + time.Hour

func (c requireContiguousTimerange) Apply(group, _ []store.CatalogRow) ([]store.CatalogRow, bool) {
	for _, sub := range subGroups(group, c.groupBy) {
		timed := withTimeRange(sub)
		if len(timed) < 2 {
			continue
		}
		sortByStartTime(timed)
		for i := 1; i < len(timed); i++ {
			gap := timed[i].StartTime.Sub(*timed[i-1].EndTime)
			if gap > maxContiguousGap {
				return group, false
			}
		}
	}
	return group, true
}

// requireOverlappingTimerange drops a group unless, across its
// sub-groupings by groupBy, the latest group-start precedes the
// earliest group-end (i.e. all sub-groups have overlapping coverage).
//
// Grounded on RequireOverlappingTimerange in the reference
// implementation's constraints module.
type requireOverlappingTimerange struct {
	groupBy []string
}

func (c requireOverlappingTimerange) Apply(group, _ []store.CatalogRow) ([]store.CatalogRow, bool) {
	timed := withTimeRange(group)
	if len(timed) < 2 {
		return group, true
	}

	subs := subGroups(timed, c.groupBy)
	if len(subs) < 2 {
		return group, true
	}

	var maxStart, minEnd time.Time
	for i, sub := range subs {
		start, end := sub[0].StartTime, sub[0].EndTime
		for _, row := range sub {
			if row.StartTime.Before(*start) {
				start = row.StartTime
			}
			if row.EndTime.After(*end) {
				end = row.EndTime
			}
		}
		if i == 0 || start.After(maxStart) {
			maxStart = *start
		}
		if i == 0 || end.Before(minEnd) {
			minEnd = *end
		}
	}
	return group, maxStart.Before(minEnd)
}

func withTimeRange(rows []store.CatalogRow) []store.CatalogRow {
	out := make([]store.CatalogRow, 0, len(rows))
	for _, r := range rows {
		if r.StartTime != nil && r.EndTime != nil {
			out = append(out, r)
		}
	}
	return out
}

func sortByStartTime(rows []store.CatalogRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].StartTime.Before(*rows[j-1].StartTime); j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
}

func subGroups(rows []store.CatalogRow, groupBy []string) [][]store.CatalogRow {
	if len(groupBy) == 0 {
		return [][]store.CatalogRow{rows}
	}
	index := map[string]int{}
	var groups [][]store.CatalogRow
	for _, row := range rows {
		sig := ""
		for _, facet := range groupBy {
			sig += facet + "=" + facetValue(row, facet) + "\x00"
		}
		if idx, ok := index[sig]; ok {
			groups[idx] = append(groups[idx], row)
			continue
		}
		index[sig] = len(groups)
		groups = append(groups, []store.CatalogRow{row})
	}
	return groups
}
