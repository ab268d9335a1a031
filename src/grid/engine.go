package grid

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
	"github.com/Wang-oss-tech/csl-experiments/src/model"
	"github.com/Wang-oss-tech/csl-experiments/src/trace"
)

// Modeled cycles for pulling the staged tiles out of cell memory before the
// first step.
const tileLoadCycles = 100

// bootBase spreads per-cell counter origins far enough apart that the 48-bit
// timestamp words exercise all three 16-bit lanes.
const bootBase = uint64(1) << 33

// inboxCapacity bounds wavelets queued on one link. Coloring keeps at most
// two broadcasts per operand in flight, so this never fills in practice.
const inboxCapacity = 8

type linkStats struct {
	traversals atomic.Int64
}

func (stats *linkStats) record() {
	if stats == nil {
		return
	}
	stats.traversals.Add(1)
}

// Engine owns a P x P fabric of cells and executes one GEMM run on it. Each
// cell runs its own goroutine; the grid is synchronized only by wavelets
// moving over links, never by a global clock.
type Engine struct {
	manifest *misc.Manifest
	topology *Topology
	cells    []*Cell
	emitter  *trace.Emitter
	costs    StepCosts
	links    linkStats
	aStaged  bool
	bStaged  bool
}

func NewEngine(manifest *misc.Manifest, emitter *trace.Emitter) *Engine {
	engine := new(Engine)
	engine.manifest = manifest
	engine.topology = NewTopology(manifest.P)
	engine.emitter = emitter
	engine.costs = StepCosts{
		TileLoad:         tileLoadCycles,
		Broadcast:        model.BroadcastCyclesPerStep(manifest.P, manifest.Mt, manifest.Nt),
		Compute:          model.ComputeCyclesPerStep(manifest.Mt, manifest.Kt, manifest.Nt),
		PipelineOverhead: model.PipelineOverheadCycles,
	}

	numCells := engine.topology.NumCells()
	engine.cells = make([]*Cell, numCells)
	for index := 0; index < numCells; index++ {
		cell := new(Cell)
		cell.coord = engine.topology.Coord(index)
		cell.topology = engine.topology
		cell.tileM = manifest.Mt
		cell.tileK = manifest.Kt
		cell.tileN = manifest.Nt
		cell.cTile = make([]float32, manifest.Mt*manifest.Nt)
		cell.rowInbox = make(chan Wavelet, inboxCapacity)
		cell.colInbox = make(chan Wavelet, inboxCapacity)
		cell.bootOffset = bootBase + 104729*uint64(index)
		cell.costs = engine.costs
		cell.emitter = emitter
		cell.links = &engine.links
		engine.cells[index] = cell
	}

	for index, cell := range engine.cells {
		coord := engine.topology.Coord(index)
		if coord.X > 0 {
			cell.west = engine.cellAt(Coordinate{X: coord.X - 1, Y: coord.Y})
		}
		if coord.X < manifest.P-1 {
			cell.east = engine.cellAt(Coordinate{X: coord.X + 1, Y: coord.Y})
		}
		if coord.Y > 0 {
			cell.north = engine.cellAt(Coordinate{X: coord.X, Y: coord.Y - 1})
		}
		if coord.Y < manifest.P-1 {
			cell.south = engine.cellAt(Coordinate{X: coord.X, Y: coord.Y + 1})
		}
	}

	return engine
}

func (engine *Engine) Topology() *Topology {
	return engine.topology
}

func (engine *Engine) cellAt(coord Coordinate) *Cell {
	return engine.cells[engine.topology.Index(coord)]
}

// StageA stages per-cell A tile buffers, cell-major order matching the
// layout transform's output. Buffers are copied so the host may reuse its
// staging memory. StageA and StageB touch disjoint cell state, so the host
// may run them concurrently.
func (engine *Engine) StageA(tiles [][]float32) error {
	words := engine.manifest.Mt * engine.manifest.Kt
	if err := engine.checkTiles("A", tiles, words); err != nil {
		return err
	}
	for index, cell := range engine.cells {
		cell.aTile = append([]float32(nil), tiles[index]...)
	}
	engine.aStaged = true
	return nil
}

// StageB stages per-cell B tile buffers. See StageA.
func (engine *Engine) StageB(tiles [][]float32) error {
	words := engine.manifest.Kt * engine.manifest.Nt
	if err := engine.checkTiles("B", tiles, words); err != nil {
		return err
	}
	for index, cell := range engine.cells {
		cell.bTile = append([]float32(nil), tiles[index]...)
	}
	engine.bStaged = true
	return nil
}

func (engine *Engine) checkTiles(symbol string, tiles [][]float32, words int) error {
	numCells := engine.topology.NumCells()
	if len(tiles) != numCells {
		return misc.NewConfigurationError(
			"%s tile count mismatch: got %d tiles for %d cells", symbol, len(tiles), numCells)
	}
	for index, tile := range tiles {
		if len(tile) != words {
			return misc.NewConfigurationError(
				"cell %d %s tile has %d elements, want %d", index, symbol, len(tile), words)
		}
	}
	return nil
}

// Launch runs the plan to completion across all cells and blocks until every
// cell reports DONE. There is no per-cell timeout; a wedged fabric wedges
// Launch, and the host treats that as a run-level transfer failure.
func (engine *Engine) Launch(plan *ExecutionPlan) error {
	if !engine.aStaged || !engine.bStaged {
		return misc.NewConfigurationError("launch before tiles were staged")
	}
	if len(plan.Steps) != engine.manifest.P {
		return misc.NewConfigurationError(
			"plan has %d steps for a P=%d grid", len(plan.Steps), engine.manifest.P)
	}

	for _, cell := range engine.cells {
		cell.state = StateIdle
		for i := range cell.cTile {
			cell.cTile[i] = 0
		}
		cell.aSlots = makeSlots(plan.Colors)
		cell.bSlots = makeSlots(plan.Colors)
	}

	done := make(chan struct{})
	for _, cell := range engine.cells {
		go cell.route(cell.rowInbox, done)
		go cell.route(cell.colInbox, done)
	}

	var waitGroup sync.WaitGroup
	for _, cell := range engine.cells {
		waitGroup.Add(1)
		go func(cell *Cell) {
			defer waitGroup.Done()
			cell.run(plan)
		}(cell)
	}
	waitGroup.Wait()
	close(done)

	engine.aStaged = false
	engine.bStaged = false
	return nil
}

func makeSlots(colors int) []chan []float32 {
	slots := make([]chan []float32, colors)
	for color := range slots {
		slots[color] = make(chan []float32, 1)
	}
	return slots
}

// GatherC concatenates the per-cell C accumulators in cell-major order, the
// exact shape the host's inverse layout transform expects.
func (engine *Engine) GatherC() []float32 {
	words := engine.manifest.CTileElements()
	gathered := make([]float32, 0, len(engine.cells)*words)
	for _, cell := range engine.cells {
		gathered = append(gathered, cell.cTile...)
	}
	return gathered
}

// TimestampWords returns the cycle counters in wire form: per cell, three
// float32 bit patterns holding the packed start/end 48-bit pair, and two
// holding the reference counter. Word layout matches the device readback
// order the host reconstruction assumes.
func (engine *Engine) TimestampWords() (timeMemcpy []float32, timeRef []float32) {
	timeMemcpy = make([]float32, 0, len(engine.cells)*3)
	timeRef = make([]float32, 0, len(engine.cells)*2)

	for _, cell := range engine.cells {
		start := misc.PackU48(cell.rawStart)
		end := misc.PackU48(cell.rawEnd)
		timeMemcpy = append(timeMemcpy,
			wordsToFloat(start[0], start[1]),
			wordsToFloat(start[2], end[0]),
			wordsToFloat(end[1], end[2]))

		ref := misc.PackU48(cell.rawRef)
		timeRef = append(timeRef,
			wordsToFloat(ref[0], ref[1]),
			wordsToFloat(ref[2], 0))
	}

	return timeMemcpy, timeRef
}

// LinkTraversals reports how many wavelet hops the fabric carried, for
// traffic diagnostics.
func (engine *Engine) LinkTraversals() int64 {
	return engine.links.traversals.Load()
}

func wordsToFloat(low uint16, high uint16) float32 {
	return math.Float32frombits(uint32(low) | uint32(high)<<16)
}
