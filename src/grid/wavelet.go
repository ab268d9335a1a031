package grid

// Color tags a broadcast channel. Wavelets of different colors land in
// different receive buffers, which is the only mechanism keeping an in-flight
// step from clobbering data the previous step has not consumed yet.
type Color uint8

// Axis distinguishes row (A operand) from column (B operand) traffic.
type Axis int

const (
	AxisRow Axis = iota
	AxisCol
)

// Direction of travel along a line of cells.
type Direction int

const (
	DirWest Direction = iota
	DirEast
	DirNorth
	DirSouth
)

// Wavelet is one tagged unit of broadcast data moving store-and-forward
// across grid links. Remaining counts the links still ahead of it; a router
// forwards while Remaining > 1. Data is shared read-only between receivers.
type Wavelet struct {
	Color     Color
	Axis      Axis
	Dir       Direction
	Step      int
	Remaining int
	Data      []float32
}

// forwarded returns the wavelet one hop downstream.
func (wavelet Wavelet) forwarded() Wavelet {
	next := wavelet
	next.Remaining--
	return next
}
