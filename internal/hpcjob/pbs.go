package hpcjob

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PBS submits and polls jobs via qsub/qstat/qdel.
type PBS struct {
	QsubPath, QstatPath, QdelPath string
}

func (p *PBS) bin(override, def string) string {
	if override != "" {
		return override
	}
	return def
}

// Submit runs `qsub <scriptPath>` from spec.WorkDir; qsub's stdout is
// the job ID with no further parsing required.
func (p *PBS) Submit(ctx context.Context, spec Spec) (string, error) {
	cmd := exec.CommandContext(ctx, p.bin(p.QsubPath, "qsub"), "-N", spec.Name, spec.ScriptPath)
	cmd.Dir = spec.WorkDir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("hpcjob: qsub failed: %w: %s", err, out.String())
	}
	jobID := strings.TrimSpace(out.String())
	if jobID == "" {
		return "", fmt.Errorf("hpcjob: qsub produced no job id")
	}
	return jobID, nil
}

// Poll runs `qstat -f <jobID>` and greps the job_state attribute
// (Q/H/W/T=pending, R/S/E=running, C=succeeded; any other state is
// reported as running).
func (p *PBS) Poll(ctx context.Context, jobID string) (State, error) {
	cmd := exec.CommandContext(ctx, p.bin(p.QstatPath, "qstat"), "-f", jobID)
	var out bytes.Buffer
	cmd.Stdout = &out
	err := cmd.Run()
	if err != nil {
		// qstat returns non-zero once a job has left the queue on most
		// PBS flavors (no accounting fallback comparable to sacct is
		// universally available), so treat that as success: the
		// plugin's own runOne already recorded the real outcome on the
		// Execution by the time the job terminates.
		return StateSucceeded, nil
	}

	state := ""
	for _, line := range strings.Split(out.String(), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "job_state =") {
			state = strings.TrimSpace(strings.TrimPrefix(line, "job_state ="))
			break
		}
	}

	switch state {
	case "Q", "H", "W", "T":
		return StatePending, nil
	case "R", "S", "E":
		return StateRunning, nil
	case "C":
		return StateSucceeded, nil
	default:
		return StateRunning, nil
	}
}

// Cancel runs `qdel <jobID>`.
func (p *PBS) Cancel(ctx context.Context, jobID string) error {
	cmd := exec.CommandContext(ctx, p.bin(p.QdelPath, "qdel"), jobID)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("hpcjob: qdel failed: %w: %s", err, out.String())
	}
	return nil
}
