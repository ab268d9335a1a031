// Package model predicts cycle costs for the three phases of a grid GEMM run:
// host transfers, fabric broadcasts, and per-step tile compute. The constants
// come from hardware measurement at the P=4, Mt=Kt=Nt=14 reference point; the
// transfer terms can be re-fit from bandwidth samples (see fit.go).
package model

import "math/bits"

// Measured transfer bandwidths in words per cycle, used until a fitted model
// replaces them.
const (
	DefaultH2DWordsPerCycle       = 0.868
	DefaultD2HWordsPerCycle       = 0.298
	DefaultBroadcastWordsPerCycle = 0.512
)

// Fixed per-transfer setup costs in cycles.
const (
	h2dSetupCycles = 500
	d2hSetupCycles = 1000
)

// Compute-phase constants, from instruction-log analysis: DSD configuration
// and loop init per step, then one issue plus Mt execution cycles per FMAC,
// plus loop/index/stall overhead per FMAC.
const (
	computeSetupCycles    = 120
	perFmacOverheadCycles = 45
)

// Broadcast-phase constants: router configuration dominates, the callback
// closes out the step, and each fabric hop adds one cycle of latency.
const (
	broadcastConfigureCycles = 11000
	broadcastCallbackCycles  = 550
)

// Pipelining constants: task management and state tracking paid once per run,
// and the per-step slack inside which broadcast still hides behind compute.
const (
	PipelineOverheadCycles = 2000
	PipelineSlackCycles    = 500
	safetyMarginCycles     = 500
)

// FitMAPEBound is the stated error band of the model against measured totals,
// as a fraction. Predictions outside it indicate the model needs recalibration.
const FitMAPEBound = 0.05

// CostModel predicts host transfer cycles. The zero value is unusable; start
// from DefaultCostModel and optionally apply fitted coefficients per
// direction.
type CostModel struct {
	h2d transferParams
	d2h transferParams
}

// transferParams is cycles = alpha*words + beta*(w+h) + gamma. The default
// (unfitted) form has beta = 0 and alpha = 1/bandwidth.
type transferParams struct {
	alpha float64
	beta  float64
	gamma float64
}

func DefaultCostModel() *CostModel {
	costModel := new(CostModel)
	costModel.h2d = transferParams{alpha: 1 / DefaultH2DWordsPerCycle, gamma: h2dSetupCycles}
	costModel.d2h = transferParams{alpha: 1 / DefaultD2HWordsPerCycle, gamma: d2hSetupCycles}
	return costModel
}

// ApplyFit replaces one direction's parameters with fitted coefficients. A
// nil fit leaves the defaults in place, which is the ModelFitWarning
// fallback.
func (costModel *CostModel) ApplyFit(direction string, fit *LinearFit) {
	if fit == nil {
		return
	}
	params := transferParams{alpha: fit.Alpha, beta: fit.Beta, gamma: fit.Gamma}
	switch direction {
	case DirectionH2D:
		costModel.h2d = params
	case DirectionD2H:
		costModel.d2h = params
	}
}

func (params transferParams) cycles(words int, width int, height int) int64 {
	estimate := params.alpha*float64(words) + params.beta*float64(width+height) + params.gamma
	if estimate < 0 {
		return 0
	}
	return int64(estimate)
}

// H2DCycles predicts one host-to-grid transfer of `words` elements spread
// over a width x height cell rectangle.
func (costModel *CostModel) H2DCycles(words int, width int, height int) int64 {
	return costModel.h2d.cycles(words, width, height)
}

// D2HCycles predicts the matching grid-to-host readback.
func (costModel *CostModel) D2HCycles(words int, width int, height int) int64 {
	return costModel.d2h.cycles(words, width, height)
}

// ComputeCyclesPerStep predicts one SUMMA accumulation step on one cell:
// setup + Kt*Nt FMACs at (1+Mt) cycles each, plus per-FMAC overhead.
func ComputeCyclesPerStep(tileM int, tileK int, tileN int) int64 {
	fmacs := int64(tileK) * int64(tileN)
	return computeSetupCycles + fmacs*int64(1+tileM) + fmacs*perFmacOverheadCycles
}

// ComputeIterCycles is the instruction-level variant of the compute model,
// keyed off the b_load sequence the DSD increment generates for a given Kt.
// Kept alongside ComputeCyclesPerStep as the detailed cross-check.
func ComputeIterCycles(tileM int, tileK int, tileN int) int64 {
	gray := uint(3*tileK>>1) ^ uint(tileK>>1)
	bLoad := 2*bits.OnesCount(gray) - 1 - tileK%2 + 8

	fmacs := (tileM + 1) * 2
	dsdIncrement := 14 + 3
	loopControl := 3

	return int64(tileK) * int64(tileN) * int64(bLoad+fmacs+dsdIncrement+loopControl)
}

// BroadcastCyclesPerStep predicts one row+column multicast step: router
// configure, the two tile slices on the wire, the completion callback, and
// one cycle per fabric hop to the farthest cell.
func BroadcastCyclesPerStep(p int, tileM int, tileN int) int64 {
	hops := int64(p - 1)
	return broadcastConfigureCycles + 2*int64(tileM)*int64(tileN) + broadcastCallbackCycles + hops
}

// BroadcastTransferCycles is the pure wire-time component at the measured
// fabric bandwidth, reported in breakdowns as the (overlapped) broadcast
// share.
func BroadcastTransferCycles(tileM int, tileK int, tileN int) int64 {
	words := float64(tileM*tileK + tileK*tileN)
	return int64(words / DefaultBroadcastWordsPerCycle)
}

// SequentialTotalCycles predicts the no-overlap schedule: every step pays
// broadcast then compute back to back.
func SequentialTotalCycles(p int, tileM int, tileK int, tileN int) int64 {
	perStep := BroadcastCyclesPerStep(p, tileM, tileN) + ComputeCyclesPerStep(tileM, tileK, tileN)
	return int64(p) * perStep
}

// PipelinedTotalCycles predicts the double-buffered schedule: one exposed
// broadcast, then P compute steps with broadcasts hidden behind them, plus
// the pipeline management overhead.
func PipelinedTotalCycles(p int, tileM int, tileK int, tileN int) int64 {
	broadcast := BroadcastCyclesPerStep(p, tileM, tileN)
	compute := ComputeCyclesPerStep(tileM, tileK, tileN)
	return broadcast + int64(p)*compute + PipelineOverheadCycles
}

// PipelineBound reports whether the pipeline is broadcast-bound for this
// shape: broadcast no longer fits behind compute plus slack, and steady-state
// throughput degrades to max(broadcast, compute) per step.
func PipelineBound(p int, tileM int, tileK int, tileN int) bool {
	broadcast := BroadcastCyclesPerStep(p, tileM, tileN)
	compute := ComputeCyclesPerStep(tileM, tileK, tileN)
	return broadcast > compute+PipelineSlackCycles
}

// PipelineWins applies the scheduling decision rule: the exposed broadcasts a
// pipeline removes must outweigh its overhead plus a safety margin.
func PipelineWins(p int, tileM int, tileK int, tileN int) bool {
	broadcast := BroadcastCyclesPerStep(p, tileM, tileN)
	return int64(p-1)*broadcast > PipelineOverheadCycles+safetyMarginCycles
}
