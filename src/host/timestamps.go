package host

import (
	"math"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
)

// Cells report three float32 words carrying the packed (start, end) 48-bit
// cycle pair and two more carrying the reference counter sampled when the
// launch wave arrived. Reconstruction splits the bit patterns back into
// 16-bit words, reassembles the counters, and cancels the fixed per-cell
// clock skew using the reference.

// CellTimes holds skew-corrected per-cell start/end cycle counts, indexed
// cell-major.
type CellTimes struct {
	P     int
	Start []int64
	End   []int64
}

// ReconstructTimestamps converts wire-format timestamp words into corrected
// cycle counts. timeMemcpy carries 3 words per cell, timeRef 2. A cell at
// (x, y) reads its reference x+y cycles after the origin cell, so that
// offset is removed from the reference before subtraction.
func ReconstructTimestamps(timeMemcpy []float32, timeRef []float32, p int) (*CellTimes, error) {
	numCells := p * p
	if len(timeMemcpy) != numCells*3 {
		return nil, &misc.ConfigurationMismatchError{
			Symbol: "time_memcpy", Expected: numCells * 3, Actual: len(timeMemcpy)}
	}
	if len(timeRef) != numCells*2 {
		return nil, &misc.ConfigurationMismatchError{
			Symbol: "time_ref", Expected: numCells * 2, Actual: len(timeRef)}
	}

	times := &CellTimes{
		P:     p,
		Start: make([]int64, numCells),
		End:   make([]int64, numCells),
	}

	for index := 0; index < numCells; index++ {
		word0 := math.Float32bits(timeMemcpy[index*3+0])
		word1 := math.Float32bits(timeMemcpy[index*3+1])
		word2 := math.Float32bits(timeMemcpy[index*3+2])

		start := misc.UnpackU48([3]uint16{
			uint16(word0 & 0xFFFF),
			uint16(word0 >> 16),
			uint16(word1 & 0xFFFF),
		})
		end := misc.UnpackU48([3]uint16{
			uint16(word1 >> 16),
			uint16(word2 & 0xFFFF),
			uint16(word2 >> 16),
		})

		refWord0 := math.Float32bits(timeRef[index*2+0])
		refWord1 := math.Float32bits(timeRef[index*2+1])
		ref := misc.UnpackU48([3]uint16{
			uint16(refWord0 & 0xFFFF),
			uint16(refWord0 >> 16),
			uint16(refWord1 & 0xFFFF),
		})

		x := index % p
		y := index / p
		corrected := int64(ref) - int64(x+y)

		times.Start[index] = int64(start) - corrected
		times.End[index] = int64(end) - corrected
	}

	return times, nil
}

// CycleStats summarizes corrected timestamps the way the host reports them.
type CycleStats struct {
	MeanCycles float64
	MinStart   int64
	MaxEnd     int64
}

// MaxSpan is the wall-clock cycle count of the whole grid: latest end minus
// earliest start.
func (stats CycleStats) MaxSpan() int64 {
	return stats.MaxEnd - stats.MinStart
}

func (times *CellTimes) Stats() CycleStats {
	var stats CycleStats
	if len(times.Start) == 0 {
		return stats
	}

	stats.MinStart = times.Start[0]
	stats.MaxEnd = times.End[0]
	var sum int64
	for index := range times.Start {
		if times.Start[index] < stats.MinStart {
			stats.MinStart = times.Start[index]
		}
		if times.End[index] > stats.MaxEnd {
			stats.MaxEnd = times.End[index]
		}
		sum += times.End[index] - times.Start[index]
	}
	stats.MeanCycles = float64(sum) / float64(len(times.Start))

	return stats
}
