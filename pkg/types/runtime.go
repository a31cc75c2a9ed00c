package types

import "time"

// LockRecord backs the store's distributed advisory lock, used to
// serialize concurrent solver passes across hosts.
type LockRecord struct {
	Key       string    `json:"key"`
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// WorkerLease tracks which worker/job owns a running Execution, so a
// restarted orchestrator can tell a live worker from a dead one.
type WorkerLease struct {
	ExecutionID int64     `json:"executionId"`
	WorkerID    string    `json:"workerId"`
	Variant     ExecutorVariant `json:"variant"`
	HeartbeatAt time.Time `json:"heartbeatAt"`
}

// BackupRecord describes one timestamped pre-migration snapshot of the
// embedded datastore file.
type BackupRecord struct {
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExecutionLog is a reference to the captured stdout/stderr of an
// Execution, split out of Execution so its retention can differ.
type ExecutionLog struct {
	ExecutionID int64  `json:"executionId"`
	RelPath     string `json:"relPath"` // relative to the log root
}

// SolveSummary is the result of one solver pass across a set of
// diagnostics, returned by internal/solver.Solve.
type SolveSummary struct {
	DiagnosticsConsidered int
	CandidatesResolved    int
	GroupsCreated         int
	ExecutionsEnqueued    int
	GroupsUpToDate        int
	GroupsDropped         int // constraint-unsatisfied
	GroupsStale           int
}

// ExecuteSummary is the result of Executor.Join: the terminal status
// counts for one batch of submitted executions.
type ExecuteSummary struct {
	Succeeded int
	Failed    int
	Cancelled int
}

// IngestSummary is the result of one Catalog.Ingest call.
type IngestSummary struct {
	FilesSeen      int
	FilesSkipped   int // skip_invalid
	DatasetsUpdated int
	Errors         []string
}
