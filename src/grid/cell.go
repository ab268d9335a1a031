package grid

import (
	"sync/atomic"

	"github.com/Wang-oss-tech/csl-experiments/src/trace"
)

// CellState tracks where a cell is in its per-run state machine:
// IDLE -> LOAD_TILE -> {WAIT_BROADCAST, COMPUTE} x P -> DONE.
type CellState int

const (
	StateIdle CellState = iota
	StateLoadTile
	StateWaitBroadcast
	StateCompute
	StateDone
)

func (state CellState) String() string {
	switch state {
	case StateIdle:
		return "IDLE"
	case StateLoadTile:
		return "LOAD_TILE"
	case StateWaitBroadcast:
		return "WAIT_BCAST"
	case StateCompute:
		return "COMPUTE"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// StepCosts carries the modeled per-phase cycle counts a cell charges its
// local counter as it advances. Derived once per run from the performance
// model.
type StepCosts struct {
	TileLoad         int64
	Broadcast        int64
	Compute          int64
	PipelineOverhead int64
}

// Cell is one grid-addressed unit. It exclusively owns one A tile, one B
// tile, and one C accumulator for the run's lifetime; nothing else ever
// mutates them. Local tiles are column-major (cliff distribution).
type Cell struct {
	coord    Coordinate
	topology *Topology
	tileM    int
	tileK    int
	tileN    int

	aTile []float32
	bTile []float32
	cTile []float32

	// Neighbor links. Nil at fabric edges.
	west  *Cell
	east  *Cell
	north *Cell
	south *Cell

	rowInbox chan Wavelet
	colInbox chan Wavelet

	// Per-color receive buffers, capacity one. A color's buffer is owned by
	// exactly one in-flight broadcast at a time; that exclusivity is the only
	// locking in the fabric.
	aSlots []chan []float32
	bSlots []chan []float32

	state      CellState
	bootOffset uint64
	clock      atomic.Int64 // boot-relative cycle counter

	rawRef   uint64
	rawStart uint64
	rawEnd   uint64

	costs   StepCosts
	emitter *trace.Emitter
	links   *linkStats
}

func (cell *Cell) coordString() string {
	return trace.Coord(cell.coord.X, cell.coord.Y)
}

func (cell *Cell) now() uint64 {
	return cell.bootOffset + uint64(cell.clock.Load())
}

func (cell *Cell) setState(state CellState) {
	cell.state = state
	cell.emitter.Emit(cell.now(), cell.coordString(), state.String())
}

// route services one inbox until the engine signals completion, landing
// wavelets in the color buffer for their axis and forwarding them
// store-and-forward. Each axis gets its own router goroutine: a delivery
// blocked on a full A slot must never hold up B traffic, or a cell waiting
// for its B slice behind a fast row owner would wait forever.
func (cell *Cell) route(inbox <-chan Wavelet, done <-chan struct{}) {
	for {
		select {
		case wavelet := <-inbox:
			cell.land(wavelet)
		case <-done:
			return
		}
	}
}

func (cell *Cell) land(wavelet Wavelet) {
	cell.emitter.Emit(cell.now(), cell.coordString(),
		"landing", waveletColorTag(wavelet), "from", "link", arrivalLink(wavelet.Dir))
	cell.links.record()

	switch wavelet.Axis {
	case AxisRow:
		cell.aSlots[wavelet.Color] <- wavelet.Data
	case AxisCol:
		cell.bSlots[wavelet.Color] <- wavelet.Data
	}

	if wavelet.Remaining > 1 {
		cell.forward(wavelet.forwarded())
	}
}

func (cell *Cell) forward(wavelet Wavelet) {
	switch wavelet.Dir {
	case DirWest:
		cell.west.rowInbox <- wavelet
	case DirEast:
		cell.east.rowInbox <- wavelet
	case DirNorth:
		cell.north.colInbox <- wavelet
	case DirSouth:
		cell.south.colInbox <- wavelet
	}
}

// issueBroadcasts injects this cell's tile into its row and/or column if it
// owns the given step. The wavefront splits at the owner and travels both
// ways.
func (cell *Cell) issueBroadcasts(step int, color Color) {
	p := cell.topology.P

	if cell.coord.X == step {
		if hops := cell.coord.X; hops > 0 {
			cell.west.rowInbox <- Wavelet{
				Color: color, Axis: AxisRow, Dir: DirWest,
				Step: step, Remaining: hops, Data: cell.aTile,
			}
		}
		if hops := p - 1 - cell.coord.X; hops > 0 {
			cell.east.rowInbox <- Wavelet{
				Color: color, Axis: AxisRow, Dir: DirEast,
				Step: step, Remaining: hops, Data: cell.aTile,
			}
		}
	}

	if cell.coord.Y == step {
		if hops := cell.coord.Y; hops > 0 {
			cell.north.colInbox <- Wavelet{
				Color: color, Axis: AxisCol, Dir: DirNorth,
				Step: step, Remaining: hops, Data: cell.bTile,
			}
		}
		if hops := p - 1 - cell.coord.Y; hops > 0 {
			cell.south.colInbox <- Wavelet{
				Color: color, Axis: AxisCol, Dir: DirSouth,
				Step: step, Remaining: hops, Data: cell.bTile,
			}
		}
	}
}

func (cell *Cell) acquireA(step int, color Color) []float32 {
	if cell.coord.X == step {
		return cell.aTile
	}
	return <-cell.aSlots[color]
}

func (cell *Cell) acquireB(step int, color Color) []float32 {
	if cell.coord.Y == step {
		return cell.bTile
	}
	return <-cell.bSlots[color]
}

// run drives the P-step accumulation loop. There is deliberately no timeout
// anywhere below: a broadcast that never arrives blocks this cell and every
// dependent forever, and only the host notices.
func (cell *Cell) run(plan *ExecutionPlan) {
	p := cell.topology.P

	cell.clock.Store(int64(cell.coord.X + cell.coord.Y)) // launch wave arrival
	cell.rawRef = cell.now()

	cell.setState(StateLoadTile)
	cell.clock.Add(cell.costs.TileLoad)
	cell.rawStart = cell.now()

	for k := 0; k < p; k++ {
		color := plan.Steps[k].Color

		if plan.Overlap {
			if k == 0 {
				cell.issueBroadcasts(0, plan.Steps[0].Color)
			}
			if k+1 < p {
				cell.issueBroadcasts(k+1, plan.Steps[k+1].Color)
			}
		} else {
			cell.issueBroadcasts(k, color)
		}

		cell.setState(StateWaitBroadcast)
		aSlice := cell.acquireA(k, color)
		bSlice := cell.acquireB(k, color)
		cell.clock.Add(cell.exposedBroadcastCycles(plan, k))

		cell.setState(StateCompute)
		cell.accumulate(aSlice, bSlice)
		cell.clock.Add(cell.costs.Compute)
	}

	if plan.Overlap {
		cell.clock.Add(cell.costs.PipelineOverhead)
	}

	cell.rawEnd = cell.now()
	cell.setState(StateDone)
}

// exposedBroadcastCycles is the wait a step actually pays. The first step
// always exposes the full broadcast; overlapped steps only expose whatever
// does not fit behind the previous compute.
func (cell *Cell) exposedBroadcastCycles(plan *ExecutionPlan, step int) int64 {
	if !plan.Overlap || step == 0 {
		return cell.costs.Broadcast
	}
	exposed := cell.costs.Broadcast - cell.costs.Compute
	if exposed < 0 {
		return 0
	}
	return exposed
}

// accumulate performs cTile += aSlice * bSlice over column-major tiles, in a
// fixed loop order so the floating-point rounding is reproducible run to run.
func (cell *Cell) accumulate(aSlice []float32, bSlice []float32) {
	tileM := cell.tileM
	tileK := cell.tileK
	tileN := cell.tileN

	for j := 0; j < tileN; j++ {
		cColumn := cell.cTile[j*tileM : (j+1)*tileM]
		for l := 0; l < tileK; l++ {
			scale := bSlice[j*tileK+l]
			aColumn := aSlice[l*tileM : (l+1)*tileM]
			for i := 0; i < tileM; i++ {
				cColumn[i] += aColumn[i] * scale
			}
		}
	}
}

func waveletColorTag(wavelet Wavelet) string {
	return "C" + string(rune('0'+wavelet.Color))
}

// arrivalLink names the link a wavelet arrived from: a west-bound wavelet
// comes in on the east link, and so on.
func arrivalLink(dir Direction) string {
	switch dir {
	case DirWest:
		return "E"
	case DirEast:
		return "W"
	case DirNorth:
		return "S"
	case DirSouth:
		return "N"
	default:
		return "?"
	}
}
