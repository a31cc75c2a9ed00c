// Package solver runs the requirement resolver against the current
// catalog for a set of registered diagnostics and decides which
// ExecutionGroups are up to date, stale, or need a new pending
// Execution enqueued. Grounded on the readiness/evaluate loop of
// internal/engine: fan a concurrent step out across independent units
// of work, collect results, then make one decision per unit.
package solver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dwsmith1983/interlock/internal/resolver"
	"github.com/dwsmith1983/interlock/internal/store"
	"github.com/dwsmith1983/interlock/pkg/types"
)

// Options restricts a solver pass to a subset of providers/diagnostics
// by case-sensitive substring match, as per the CLI's --provider and
// --diagnostic flags.
type Options struct {
	ProviderFilter   string
	DiagnosticFilter string
}

const lockKey = "solver"
const lockTTL = 5 * time.Minute

// Solver resolves registered diagnostics against a Store and reconciles
// ExecutionGroups and Executions to match.
type Solver struct {
	store     store.Store
	providers []types.Provider
	logger    *slog.Logger
}

// New returns a Solver over the given providers (and their registered
// diagnostics), backed by st.
func New(st store.Store, providers []types.Provider, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{store: st, providers: providers, logger: logger}
}

// Solve acquires the cross-host advisory lock, runs one pass over every
// diagnostic that survives opts' filters, and releases the lock before
// returning — even on error.
func (s *Solver) Solve(ctx context.Context, opts Options) (types.SolveSummary, error) {
	acquired, err := s.store.AcquireLock(ctx, lockKey, lockTTL)
	if err != nil {
		return types.SolveSummary{}, fmt.Errorf("solver: acquiring lock: %w", err)
	}
	if !acquired {
		return types.SolveSummary{}, fmt.Errorf("solver: another solver pass is in progress")
	}
	defer s.store.ReleaseLock(ctx, lockKey) //nolint:errcheck

	diagnostics := s.selectDiagnostics(opts)
	unfiltered := opts.ProviderFilter == "" && opts.DiagnosticFilter == ""

	type diagResult struct {
		diag    types.Diagnostic
		summary types.SolveSummary
		err     error
	}
	results := make([]diagResult, len(diagnostics))
	var wg sync.WaitGroup
	for i, diag := range diagnostics {
		wg.Add(1)
		go func(idx int, d types.Diagnostic) {
			defer wg.Done()
			summary, err := s.solveDiagnostic(ctx, d)
			results[idx] = diagResult{diag: d, summary: summary, err: err}
		}(i, diag)
	}
	wg.Wait()

	total := types.SolveSummary{DiagnosticsConsidered: len(diagnostics)}
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			s.logger.Error("solving diagnostic failed", "diagnostic", r.diag.FullSlug(), "error", r.err)
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		total.CandidatesResolved += r.summary.CandidatesResolved
		total.GroupsCreated += r.summary.GroupsCreated
		total.ExecutionsEnqueued += r.summary.ExecutionsEnqueued
		total.GroupsUpToDate += r.summary.GroupsUpToDate
		total.GroupsDropped += r.summary.GroupsDropped
		total.GroupsStale += r.summary.GroupsStale
	}

	// Groups belonging to a diagnostic that was unregistered entirely
	// (not merely excluded by this pass's filters) are flagged stale too.
	if unfiltered && firstErr == nil {
		n, err := s.markUnregisteredDiagnosticsStale(ctx, diagnostics)
		if err != nil {
			return total, err
		}
		total.GroupsStale += n
	}

	return total, firstErr
}

func (s *Solver) markUnregisteredDiagnosticsStale(ctx context.Context, diagnostics []types.Diagnostic) (int, error) {
	registered := make(map[string]bool, len(diagnostics))
	for _, d := range diagnostics {
		registered[d.FullSlug()] = true
	}

	groups, err := s.store.ListGroups(ctx, "", "")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, g := range groups {
		if registered[g.ProviderSlug+"/"+g.DiagnosticSlug] || g.Stale {
			continue
		}
		if err := s.store.MarkGroupStale(ctx, g.ID, true); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *Solver) selectDiagnostics(opts Options) []types.Diagnostic {
	var out []types.Diagnostic
	for _, p := range s.providers {
		if opts.ProviderFilter != "" && !strings.Contains(p.Slug, opts.ProviderFilter) {
			continue
		}
		for _, d := range p.Diagnostics {
			if opts.DiagnosticFilter != "" && !strings.Contains(d.DiagnosticSlug, opts.DiagnosticFilter) {
				continue
			}
			out = append(out, d)
		}
	}
	return out
}

// solveDiagnostic implements steps 1-6 of the solve algorithm for one
// diagnostic. Each candidate is reconciled against the store
// independently — one round trip of idempotent calls per group, not one
// transaction per diagnostic, so progress checkpoints incrementally on
// large catalogs.
func (s *Solver) solveDiagnostic(ctx context.Context, diag types.Diagnostic) (types.SolveSummary, error) {
	var summary types.SolveSummary

	candidates, err := resolver.Resolve(ctx, s.store, diag)
	if err != nil {
		return summary, err
	}
	summary.CandidatesResolved = len(candidates)

	seenGroups := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		seenGroups[groupSignature(cand.GroupKey)] = true

		existing, err := s.store.GetGroup(ctx, diag.ProviderSlug, diag.DiagnosticSlug, cand.GroupKey)
		if err != nil {
			return summary, err
		}

		group := types.ExecutionGroup{ProviderSlug: diag.ProviderSlug, DiagnosticSlug: diag.DiagnosticSlug, GroupKey: cand.GroupKey}
		if existing != nil {
			group = *existing
			group.Stale = false
		} else {
			summary.GroupsCreated++
		}

		datasetHash := DatasetHash(cand.DatasetsBySource)

		upToDate := false
		if existing != nil {
			executions, err := s.store.ListExecutions(ctx, existing.ID)
			if err != nil {
				return summary, err
			}
			for _, e := range executions {
				if e.Status == types.ExecutionSucceeded && e.DatasetHash == datasetHash {
					upToDate = true
					break
				}
			}
		}

		group.Dirty = !upToDate
		stored, err := s.store.UpsertGroup(ctx, group)
		if err != nil {
			return summary, err
		}

		if upToDate {
			summary.GroupsUpToDate++
			continue
		}

		if _, err := s.store.InsertExecution(ctx, types.Execution{
			GroupID:     stored.ID,
			DatasetHash: datasetHash,
			Status:      types.ExecutionPending,
		}); err != nil {
			return summary, err
		}
		summary.ExecutionsEnqueued++
	}

	stale, err := s.markVanishedGroupsStale(ctx, diag, seenGroups)
	if err != nil {
		return summary, err
	}
	summary.GroupsStale = stale

	return summary, nil
}

// markVanishedGroupsStale flags every existing group for diag whose
// group_key is no longer among the resolver's current candidates.
func (s *Solver) markVanishedGroupsStale(ctx context.Context, diag types.Diagnostic, seen map[string]bool) (int, error) {
	existing, err := s.store.ListGroups(ctx, diag.ProviderSlug, diag.DiagnosticSlug)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, g := range existing {
		if g.ProviderSlug != diag.ProviderSlug || g.DiagnosticSlug != diag.DiagnosticSlug {
			continue
		}
		if seen[groupSignature(g.GroupKey)] {
			continue
		}
		if !g.Stale {
			if err := s.store.MarkGroupStale(ctx, g.ID, true); err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

func groupSignature(key []types.FacetPair) string {
	sig := ""
	for _, p := range key {
		sig += p.Facet + "=" + p.Value + "\x00"
	}
	return sig
}
