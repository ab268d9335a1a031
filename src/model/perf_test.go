package model

import "testing"

// TestSequentialAnchor pins the model to its hardware calibration point: the
// measured reference run (P=4, 14x14x14 tiles) finished in 95405 cycles, and
// the model must land inside the stated error band.
func TestSequentialAnchor(t *testing.T) {
	const measured = 95405

	predicted := SequentialTotalCycles(4, 14, 14, 14)
	if predicted != 95300 {
		t.Fatalf("sequential prediction drifted: got %d, want 95300", predicted)
	}

	errorFraction := float64(measured-predicted) / measured
	if errorFraction < 0 {
		errorFraction = -errorFraction
	}
	if errorFraction > FitMAPEBound {
		t.Fatalf("model error %.4f exceeds bound %.4f", errorFraction, FitMAPEBound)
	}
}

// TestPerStepReference checks the phase breakdown at the calibration point.
func TestPerStepReference(t *testing.T) {
	if compute := ComputeCyclesPerStep(14, 14, 14); compute != 11880 {
		t.Fatalf("compute step: got %d, want 11880", compute)
	}
	if broadcast := BroadcastCyclesPerStep(4, 14, 14); broadcast != 11945 {
		t.Fatalf("broadcast step: got %d, want 11945", broadcast)
	}
}

// TestPipelineSavingsIdentity verifies the schedule predictions differ by
// exactly the broadcasts a pipeline hides minus its overhead, across a sweep
// of shapes. The decision rule rides on this identity.
func TestPipelineSavingsIdentity(t *testing.T) {
	shapes := []struct{ p, mt, kt, nt int }{
		{2, 2, 2, 2},
		{4, 14, 14, 14},
		{4, 32, 32, 32},
		{8, 14, 14, 14},
		{16, 4, 4, 4},
		{3, 100, 10, 100},
	}

	for _, shape := range shapes {
		sequential := SequentialTotalCycles(shape.p, shape.mt, shape.kt, shape.nt)
		pipelined := PipelinedTotalCycles(shape.p, shape.mt, shape.kt, shape.nt)
		broadcast := BroadcastCyclesPerStep(shape.p, shape.mt, shape.nt)

		savings := sequential - pipelined
		expected := int64(shape.p-1)*broadcast - PipelineOverheadCycles
		if savings != expected {
			t.Fatalf("shape %+v: savings %d, want %d", shape, savings, expected)
		}

		if PipelineWins(shape.p, shape.mt, shape.kt, shape.nt) && pipelined >= sequential {
			t.Fatalf("shape %+v: pipeline chosen but not faster (%d >= %d)",
				shape, pipelined, sequential)
		}
	}
}

// TestDefaultCostModelSetup checks the fixed setup terms survive at zero
// payload.
func TestDefaultCostModelSetup(t *testing.T) {
	costModel := DefaultCostModel()
	if cycles := costModel.H2DCycles(0, 4, 4); cycles != 500 {
		t.Fatalf("h2d setup: got %d, want 500", cycles)
	}
	if cycles := costModel.D2HCycles(0, 4, 4); cycles != 1000 {
		t.Fatalf("d2h setup: got %d, want 1000", cycles)
	}
}

// TestApplyFit verifies fitted coefficients replace the defaults for their
// direction only, and that the nil-fit fallback leaves defaults untouched.
func TestApplyFit(t *testing.T) {
	costModel := DefaultCostModel()
	defaultD2H := costModel.D2HCycles(1000, 4, 4)

	costModel.ApplyFit(DirectionH2D, &LinearFit{
		Direction: DirectionH2D, Alpha: 2, Beta: 10, Gamma: 100})
	if cycles := costModel.H2DCycles(50, 3, 5); cycles != 2*50+10*8+100 {
		t.Fatalf("fitted h2d: got %d, want %d", cycles, 2*50+10*8+100)
	}
	if cycles := costModel.D2HCycles(1000, 4, 4); cycles != defaultD2H {
		t.Fatalf("d2h changed by h2d fit: got %d, want %d", cycles, defaultD2H)
	}

	costModel.ApplyFit(DirectionD2H, nil)
	if cycles := costModel.D2HCycles(1000, 4, 4); cycles != defaultD2H {
		t.Fatalf("nil fit changed d2h: got %d, want %d", cycles, defaultD2H)
	}
}
