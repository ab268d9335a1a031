package grid

// Coordinate identifies a cell position on the P x P fabric. X is the column
// and Y the row, matching the P<x>.<y> trace notation.
type Coordinate struct {
	X int
	Y int
}

// ManhattanDistance returns the hop distance between two cells.
func ManhattanDistance(a, b Coordinate) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}

// Topology describes the square cell grid a run executes on. It is fixed for
// the lifetime of a run.
type Topology struct {
	P int
}

func NewTopology(p int) *Topology {
	topology := new(Topology)
	topology.P = p
	return topology
}

func (topology *Topology) NumCells() int {
	return topology.P * topology.P
}

// Index flattens a coordinate row-major, the order host buffers use.
func (topology *Topology) Index(coord Coordinate) int {
	return coord.Y*topology.P + coord.X
}

func (topology *Topology) Coord(index int) Coordinate {
	return Coordinate{X: index % topology.P, Y: index / topology.P}
}

func (topology *Topology) Contains(coord Coordinate) bool {
	return coord.X >= 0 && coord.X < topology.P && coord.Y >= 0 && coord.Y < topology.P
}

// MulticastHops is the link count one broadcast wavefront crosses to reach
// the farthest cell of its row or column.
func (topology *Topology) MulticastHops() int {
	return topology.P - 1
}

// TotalBroadcastHops aggregates the wavefront hops over the full P-step
// row-and-column schedule: P steps, each crossing MulticastHops links. The
// P*(P-1) identity the performance model relies on.
func (topology *Topology) TotalBroadcastHops() int {
	total := 0
	for step := 0; step < topology.P; step++ {
		total += topology.MulticastHops()
	}
	return total
}

// FarthestHops returns how many links separate an owner at the given row or
// column position from the farthest cell on its line. Bounded by
// MulticastHops.
func (topology *Topology) FarthestHops(ownerPos int) int {
	left := ownerPos
	right := topology.P - 1 - ownerPos
	if left > right {
		return left
	}
	return right
}
