package metrics

import (
	"context"
	"testing"
)

func TestRecordExecutionNoopWithoutInit(t *testing.T) {
	// Instruments is package-global and may already be initialized by
	// another test in the package; this just exercises that calling the
	// recorders never panics regardless of init state.
	RecordExecution(context.Background(), 1.5, "succeeded")
	RecordSolvePass(context.Background(), 0.2)
}

func TestInitIsIdempotent(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := Init(); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestCountersStartAtZeroOrHigher(t *testing.T) {
	if DatasetsIngestedTotal.Value() < 0 {
		t.Fatal("counter should never go negative")
	}
}
