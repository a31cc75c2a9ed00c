// Package hpcjob abstracts submitting and polling batch jobs on an HPC
// scheduler, generalized from the shape of internal/trigger/emr.go and
// internal/trigger/glue.go (submit, then a master process polls job
// state, terminal state triggers result collection) with the AWS
// payloads swapped for the job-submission primitives spec.md calls
// out: at least slurm and pbs.
package hpcjob

import "context"

// State is the terminal-or-not state of a submitted job, independent of
// the scheduler that reports it.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// IsTerminal reports whether a State represents a final outcome.
func IsTerminal(s State) bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Spec describes one batch job submission.
type Spec struct {
	Name       string // job name, shown in scheduler queue listings
	ScriptPath string // path to the already-written batch script
	WorkDir    string // working directory the script runs from
}

// Scheduler is the contract a concrete HPC batch backend satisfies.
type Scheduler interface {
	// Submit hands the script at spec.ScriptPath to the scheduler and
	// returns its job ID.
	Submit(ctx context.Context, spec Spec) (jobID string, err error)
	// Poll reports the current state of a previously submitted job.
	Poll(ctx context.Context, jobID string) (State, error)
	// Cancel requests termination of a running or queued job.
	Cancel(ctx context.Context, jobID string) error
}
