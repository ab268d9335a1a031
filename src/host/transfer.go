package host

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/Wang-oss-tech/csl-experiments/src/model"
)

// TransferDirection distinguishes host-to-grid staging from grid-to-host
// readback.
type TransferDirection int

const (
	TransferHostToGrid TransferDirection = iota
	TransferGridToHost
)

func (direction TransferDirection) String() string {
	switch direction {
	case TransferHostToGrid:
		return "h2d"
	case TransferGridToHost:
		return "d2h"
	default:
		return "unknown"
	}
}

// TransferEngine charges modeled cycles for host transfers and accumulates
// traffic statistics for the run report. Safe for concurrent use; A and B
// staging record their transfers from separate goroutines.
type TransferEngine struct {
	costModel *model.CostModel

	mutex          sync.Mutex
	totalTransfers int64
	totalWords     int64
	h2dWords       int64
	d2hWords       int64
	h2dCycles      int64
	d2hCycles      int64
}

func NewTransferEngine(costModel *model.CostModel) *TransferEngine {
	if costModel == nil {
		costModel = model.DefaultCostModel()
	}
	transfers := new(TransferEngine)
	transfers.costModel = costModel
	return transfers
}

// EstimateCycles predicts one transfer of `words` elements over a
// width x height cell rectangle.
func (transfers *TransferEngine) EstimateCycles(
	direction TransferDirection, words int, width int, height int) int64 {

	switch direction {
	case TransferHostToGrid:
		return transfers.costModel.H2DCycles(words, width, height)
	case TransferGridToHost:
		return transfers.costModel.D2HCycles(words, width, height)
	default:
		return 0
	}
}

// Record registers a completed transfer for statistics, returning its modeled
// cycle cost.
func (transfers *TransferEngine) Record(
	direction TransferDirection, words int, width int, height int) int64 {

	cycles := transfers.EstimateCycles(direction, words, width, height)

	transfers.mutex.Lock()
	defer transfers.mutex.Unlock()

	transfers.totalTransfers++
	transfers.totalWords += int64(words)
	switch direction {
	case TransferHostToGrid:
		transfers.h2dWords += int64(words)
		transfers.h2dCycles += cycles
	case TransferGridToHost:
		transfers.d2hWords += int64(words)
		transfers.d2hCycles += cycles
	}

	return cycles
}

func (transfers *TransferEngine) H2DCycles() int64 {
	transfers.mutex.Lock()
	defer transfers.mutex.Unlock()
	return transfers.h2dCycles
}

func (transfers *TransferEngine) D2HCycles() int64 {
	transfers.mutex.Lock()
	defer transfers.mutex.Unlock()
	return transfers.d2hCycles
}

// Summary renders the traffic totals for log output.
func (transfers *TransferEngine) Summary() string {
	transfers.mutex.Lock()
	defer transfers.mutex.Unlock()
	return fmt.Sprintf("%s transfers, %s words (h2d %s, d2h %s)",
		humanize.Comma(transfers.totalTransfers),
		humanize.Comma(transfers.totalWords),
		humanize.Comma(transfers.h2dWords),
		humanize.Comma(transfers.d2hWords))
}
