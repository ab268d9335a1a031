package grid

import (
	"github.com/Wang-oss-tech/csl-experiments/src/misc"
	"github.com/Wang-oss-tech/csl-experiments/src/model"
)

// Strategy is the closed set of broadcast schedules. Both variants produce
// bit-identical numerics; the choice is purely a latency optimization.
type Strategy interface {
	Name() string
	Plan(manifest *misc.Manifest) *ExecutionPlan
	PredictTotalCycles(manifest *misc.Manifest) int64
}

// ExecutionPlan is what the grid engine actually runs: per-step broadcast
// colors plus the timing the performance model expects for the schedule.
type ExecutionPlan struct {
	Strategy             string
	Overlap              bool // issue step k+1's broadcast during step k's compute
	Colors               int  // per operand; in-flight broadcasts never share a color
	Steps                []StepPlan
	PredictedTotalCycles int64
}

// StepPlan fixes the channel color for one SUMMA step.
type StepPlan struct {
	Step  int
	Color Color
}

func buildSteps(p int, colors int) []StepPlan {
	steps := make([]StepPlan, p)
	for k := 0; k < p; k++ {
		steps[k] = StepPlan{Step: k, Color: Color(k % colors)}
	}
	return steps
}

// Sequential broadcasts, waits, computes, every step. No overlap, a single
// channel color suffices.
type Sequential struct{}

func (Sequential) Name() string {
	return "sequential"
}

func (Sequential) PredictTotalCycles(manifest *misc.Manifest) int64 {
	return model.SequentialTotalCycles(manifest.P, manifest.Mt, manifest.Kt, manifest.Nt)
}

func (strategy Sequential) Plan(manifest *misc.Manifest) *ExecutionPlan {
	return &ExecutionPlan{
		Strategy:             strategy.Name(),
		Overlap:              false,
		Colors:               1,
		Steps:                buildSteps(manifest.P, 1),
		PredictedTotalCycles: strategy.PredictTotalCycles(manifest),
	}
}

// Pipelined double-buffers: step k+1's broadcast rides the alternate color
// while step k computes, hiding broadcast latency behind compute. Two colors
// per operand; always safe, sometimes more than a small grid needs.
type Pipelined struct{}

func (Pipelined) Name() string {
	return "pipelined"
}

func (Pipelined) PredictTotalCycles(manifest *misc.Manifest) int64 {
	return model.PipelinedTotalCycles(manifest.P, manifest.Mt, manifest.Kt, manifest.Nt)
}

func (strategy Pipelined) Plan(manifest *misc.Manifest) *ExecutionPlan {
	return &ExecutionPlan{
		Strategy:             strategy.Name(),
		Overlap:              true,
		Colors:               2,
		Steps:                buildSteps(manifest.P, 2),
		PredictedTotalCycles: strategy.PredictTotalCycles(manifest),
	}
}

// ChooseStrategy applies the decision rule: pipelining must save more than
// its overhead plus a safety margin, i.e. (P-1)*broadcast > overhead+margin.
// Without a usable performance model the scheduler cannot justify the
// pipeline and falls back to sequential.
func ChooseStrategy(manifest *misc.Manifest, modelAvailable bool) Strategy {
	if !modelAvailable {
		return Sequential{}
	}
	if model.PipelineWins(manifest.P, manifest.Mt, manifest.Kt, manifest.Nt) {
		return Pipelined{}
	}
	return Sequential{}
}
