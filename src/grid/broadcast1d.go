package grid

import (
	"sync"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
	"github.com/Wang-oss-tech/csl-experiments/src/trace"
)

// lineCell is the 1-D reduction of a grid cell used by the broadcast kernel
// test: one data buffer, one result buffer, east/west links only.
type lineCell struct {
	index   int
	data    []float32
	result  []float32
	west    *lineCell
	east    *lineCell
	inbox   chan Wavelet
	slot    chan []float32
	emitter *trace.Emitter
}

func (cell *lineCell) route(done <-chan struct{}) {
	for {
		select {
		case wavelet := <-cell.inbox:
			cell.emitter.Emit(uint64(wavelet.Step), trace.Coord(cell.index, 0),
				"landing", waveletColorTag(wavelet), "from", "link", arrivalLink(wavelet.Dir))
			cell.slot <- wavelet.Data
			if wavelet.Remaining > 1 {
				next := wavelet.forwarded()
				if next.Dir == DirWest {
					cell.west.inbox <- next
				} else {
					cell.east.inbox <- next
				}
			}
		case <-done:
			return
		}
	}
}

// run executes P broadcast rounds. In round r, cell r broadcasts its original
// seed data; every other cell overwrites its result with what lands. After
// the last round every cell holds cell P-1's seed.
func (cell *lineCell) run(rounds int, total int) {
	for round := 0; round < rounds; round++ {
		if cell.index == round {
			copy(cell.result, cell.data)
			if cell.index > 0 {
				cell.west.inbox <- Wavelet{
					Axis: AxisRow, Dir: DirWest, Step: round,
					Remaining: cell.index, Data: cell.data,
				}
			}
			if cell.index < total-1 {
				cell.east.inbox <- Wavelet{
					Axis: AxisRow, Dir: DirEast, Step: round,
					Remaining: total - 1 - cell.index, Data: cell.data,
				}
			}
			continue
		}
		copy(cell.result, <-cell.slot)
	}
}

// Broadcast1D runs the standalone 1-D broadcast kernel over a line of p
// cells, each seeded with n elements, and returns every cell's final result
// buffer.
func Broadcast1D(p int, n int, seeds [][]float32, emitter *trace.Emitter) ([][]float32, error) {
	if p <= 0 || n <= 0 {
		return nil, misc.NewConfigurationError("broadcast needs positive P and N, got P=%d N=%d", p, n)
	}
	if len(seeds) != p {
		return nil, misc.NewConfigurationError("got %d seed buffers for %d cells", len(seeds), p)
	}
	for index, seed := range seeds {
		if len(seed) != n {
			return nil, misc.NewConfigurationError(
				"cell %d seeded with %d elements, want %d", index, len(seed), n)
		}
	}

	cells := make([]*lineCell, p)
	for index := range cells {
		cells[index] = &lineCell{
			index:   index,
			data:    append([]float32(nil), seeds[index]...),
			result:  make([]float32, n),
			inbox:   make(chan Wavelet, inboxCapacity),
			slot:    make(chan []float32, 1),
			emitter: emitter,
		}
	}
	for index, cell := range cells {
		if index > 0 {
			cell.west = cells[index-1]
		}
		if index < p-1 {
			cell.east = cells[index+1]
		}
	}

	done := make(chan struct{})
	for _, cell := range cells {
		go cell.route(done)
	}

	var waitGroup sync.WaitGroup
	for _, cell := range cells {
		waitGroup.Add(1)
		go func(cell *lineCell) {
			defer waitGroup.Done()
			cell.run(p, p)
		}(cell)
	}
	waitGroup.Wait()
	close(done)

	results := make([][]float32, p)
	for index, cell := range cells {
		results[index] = cell.result
	}
	return results, nil
}
