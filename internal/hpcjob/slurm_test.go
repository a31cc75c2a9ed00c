package hpcjob

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFakeBin(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSlurmSubmitParsesJobID(t *testing.T) {
	sbatch := writeFakeBin(t, "sbatch", `echo "Submitted batch job 4242"`)
	script := writeFakeBin(t, "script.sh", "true")

	s := &Slurm{SbatchPath: sbatch}
	jobID, err := s.Submit(context.Background(), Spec{Name: "test", ScriptPath: script, WorkDir: filepath.Dir(script)})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobID != "4242" {
		t.Errorf("jobID = %q, want 4242", jobID)
	}
}

func TestSlurmPollMapsQueueStates(t *testing.T) {
	cases := map[string]State{
		"PENDING": StatePending,
		"RUNNING": StateRunning,
	}
	for queueState, want := range cases {
		squeue := writeFakeBin(t, "squeue", "echo '"+queueState+"'")
		s := &Slurm{SqueuePath: squeue}
		got, err := s.Poll(context.Background(), "1")
		if err != nil {
			t.Fatalf("Poll: %v", err)
		}
		if got != want {
			t.Errorf("Poll(%s) = %s, want %s", queueState, got, want)
		}
	}
}

func TestSlurmCancelFailureSurfacesError(t *testing.T) {
	scancel := writeFakeBin(t, "scancel", "echo 'invalid job id' >&2; exit 1")
	s := &Slurm{ScancelPath: scancel}
	if err := s.Cancel(context.Background(), "9999"); err == nil {
		t.Fatal("expected error from failing scancel")
	}
}
