package hpcjob

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Slurm submits and polls jobs via sbatch/squeue/scancel.
type Slurm struct {
	// SbatchPath, SqueuePath, ScancelPath override the binary looked up
	// on PATH, for pointing at a non-default install in tests.
	SbatchPath, SqueuePath, ScancelPath string
}

func (s *Slurm) bin(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

// Submit runs `sbatch <scriptPath>` from spec.WorkDir and parses the job
// ID out of its "Submitted batch job <id>" stdout line.
func (s *Slurm) Submit(ctx context.Context, spec Spec) (string, error) {
	cmd := exec.CommandContext(ctx, s.bin(s.SbatchPath, "sbatch"), "--job-name", spec.Name, spec.ScriptPath)
	cmd.Dir = spec.WorkDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hpcjob: sbatch failed: %w: %s", err, out.String())
	}

	line := strings.TrimSpace(out.String())
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("hpcjob: sbatch produced no output")
	}
	jobID := fields[len(fields)-1]
	if jobID == "" {
		return "", fmt.Errorf("hpcjob: could not parse job id from sbatch output %q", line)
	}
	return jobID, nil
}

// Poll runs `squeue -j <jobID> -h -o %T`. squeue only lists jobs still
// in the queue (pending or running); once a job leaves the queue this
// falls back to `sacct` to learn its terminal state.
func (s *Slurm) Poll(ctx context.Context, jobID string) (State, error) {
	cmd := exec.CommandContext(ctx, s.bin(s.SqueuePath, "squeue"), "-j", jobID, "-h", "-o", "%T")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hpcjob: squeue failed: %w", err)
	}

	state := strings.TrimSpace(out.String())
	switch state {
	case "PENDING", "CONFIGURING":
		return StatePending, nil
	case "RUNNING", "COMPLETING", "SUSPENDED":
		return StateRunning, nil
	case "":
		return s.pollAccounting(ctx, jobID)
	default:
		return StateRunning, nil
	}
}

func (s *Slurm) pollAccounting(ctx context.Context, jobID string) (State, error) {
	cmd := exec.CommandContext(ctx, "sacct", "-j", jobID, "-n", "-o", "State")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// sacct is optional accounting infrastructure; if it is not
		// installed or the job is not yet in the accounting DB, report
		// the job as failed rather than hanging indefinitely.
		return StateFailed, nil
	}

	state := strings.TrimSpace(strings.Split(out.String(), "\n")[0])
	switch {
	case strings.HasPrefix(state, "COMPLETED"):
		return StateSucceeded, nil
	case strings.HasPrefix(state, "CANCELLED"):
		return StateCancelled, nil
	case state == "":
		return StateFailed, nil
	default:
		return StateFailed, nil
	}
}

// Cancel runs `scancel <jobID>`.
func (s *Slurm) Cancel(ctx context.Context, jobID string) error {
	cmd := exec.CommandContext(ctx, s.bin(s.ScancelPath, "scancel"), jobID)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hpcjob: scancel failed: %w: %s", err, out.String())
	}
	return nil
}
