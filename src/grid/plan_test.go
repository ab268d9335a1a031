package grid

import (
	"testing"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
)

// TestSequentialPlan verifies the no-overlap schedule uses one color for
// every step.
func TestSequentialPlan(t *testing.T) {
	manifest := &misc.Manifest{P: 4, Mt: 14, Kt: 14, Nt: 14}
	plan := Sequential{}.Plan(manifest)

	if plan.Overlap {
		t.Fatal("sequential plan must not overlap")
	}
	if plan.Colors != 1 {
		t.Fatalf("sequential colors: got %d, want 1", plan.Colors)
	}
	if len(plan.Steps) != manifest.P {
		t.Fatalf("steps: got %d, want %d", len(plan.Steps), manifest.P)
	}
	for _, step := range plan.Steps {
		if step.Color != 0 {
			t.Fatalf("step %d uses color %d", step.Step, step.Color)
		}
	}
	if plan.PredictedTotalCycles <= 0 {
		t.Fatal("missing cycle prediction")
	}
}

// TestPipelinedPlan verifies the double-buffered schedule alternates two
// colors so consecutive in-flight broadcasts never share one.
func TestPipelinedPlan(t *testing.T) {
	manifest := &misc.Manifest{P: 5, Mt: 8, Kt: 8, Nt: 8}
	plan := Pipelined{}.Plan(manifest)

	if !plan.Overlap {
		t.Fatal("pipelined plan must overlap")
	}
	if plan.Colors != 2 {
		t.Fatalf("pipelined colors: got %d, want 2", plan.Colors)
	}
	for k, step := range plan.Steps {
		if step.Color != Color(k%2) {
			t.Fatalf("step %d uses color %d, want %d", k, step.Color, k%2)
		}
		if k > 0 && step.Color == plan.Steps[k-1].Color {
			t.Fatalf("steps %d and %d share a color", k-1, k)
		}
	}
}

// TestChooseStrategy checks the decision rule and the no-model fallback.
func TestChooseStrategy(t *testing.T) {
	reference := &misc.Manifest{P: 4, Mt: 14, Kt: 14, Nt: 14}

	// (P-1) broadcasts dwarf the pipeline overhead at the reference shape.
	if name := ChooseStrategy(reference, true).Name(); name != "pipelined" {
		t.Fatalf("reference shape chose %s", name)
	}

	// A single-cell grid has no broadcasts to hide.
	single := &misc.Manifest{P: 1, Mt: 14, Kt: 14, Nt: 14}
	if name := ChooseStrategy(single, true).Name(); name != "sequential" {
		t.Fatalf("P=1 chose %s", name)
	}

	// Without a model the scheduler cannot justify pipelining.
	if name := ChooseStrategy(reference, false).Name(); name != "sequential" {
		t.Fatalf("model-less run chose %s", name)
	}
}
