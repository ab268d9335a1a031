package host

import (
	"math/rand"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
)

// Matrix is a dense row-major float32 matrix, the host-boundary shape of all
// operands.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

func NewMatrix(rows int, cols int) *Matrix {
	matrix := new(Matrix)
	matrix.Rows = rows
	matrix.Cols = cols
	matrix.Data = make([]float32, rows*cols)
	return matrix
}

// RandomMatrix fills a matrix with uniform [0,1) values from a fixed seed so
// runs are reproducible.
func RandomMatrix(rows int, cols int, seed int64) *Matrix {
	matrix := NewMatrix(rows, cols)
	rng := rand.New(rand.NewSource(seed))
	fillMatrix(matrix, rng)
	return matrix
}

// RandomOperandPair draws A then B from a single seeded stream, so one seed
// pins the whole run's input.
func RandomOperandPair(aRows, aCols, bRows, bCols int, seed int64) (*Matrix, *Matrix) {
	rng := rand.New(rand.NewSource(seed))
	a := NewMatrix(aRows, aCols)
	fillMatrix(a, rng)
	b := NewMatrix(bRows, bCols)
	fillMatrix(b, rng)
	return a, b
}

func fillMatrix(matrix *Matrix, rng *rand.Rand) {
	for i := range matrix.Data {
		matrix.Data[i] = rng.Float32()
	}
}

func (matrix *Matrix) At(row int, col int) float32 {
	return matrix.Data[row*matrix.Cols+col]
}

func (matrix *Matrix) Set(row int, col int, value float32) {
	matrix.Data[row*matrix.Cols+col] = value
}

// ToTiles performs the cliff distribution: the matrix is reshaped as
// (gridRow, localRow, gridCol, localCol), permuted to (gridRow, gridCol,
// localCol, localRow), and the last two axes flattened into one buffer per
// cell. Local tiles come out column-major. The transform is a pure
// permutation; float bits are moved, never altered.
func ToTiles(matrix *Matrix, p int, tileRows int, tileCols int) ([][]float32, error) {
	if err := checkTiling(matrix, p, tileRows, tileCols); err != nil {
		return nil, err
	}

	tiles := make([][]float32, p*p)
	for gridRow := 0; gridRow < p; gridRow++ {
		for gridCol := 0; gridCol < p; gridCol++ {
			tile := make([]float32, tileRows*tileCols)
			for localCol := 0; localCol < tileCols; localCol++ {
				for localRow := 0; localRow < tileRows; localRow++ {
					row := gridRow*tileRows + localRow
					col := gridCol*tileCols + localCol
					tile[localCol*tileRows+localRow] = matrix.Data[row*matrix.Cols+col]
				}
			}
			tiles[gridRow*p+gridCol] = tile
		}
	}

	return tiles, nil
}

// FromTiles is the exact inverse of ToTiles.
func FromTiles(tiles [][]float32, p int, tileRows int, tileCols int) (*Matrix, error) {
	matrix := NewMatrix(p*tileRows, p*tileCols)

	if len(tiles) != p*p {
		return nil, misc.NewConfigurationError(
			"got %d tiles for a %dx%d grid", len(tiles), p, p)
	}
	for index, tile := range tiles {
		if len(tile) != tileRows*tileCols {
			return nil, misc.NewConfigurationError(
				"tile %d has %d elements, want %d", index, len(tile), tileRows*tileCols)
		}
	}

	for gridRow := 0; gridRow < p; gridRow++ {
		for gridCol := 0; gridCol < p; gridCol++ {
			tile := tiles[gridRow*p+gridCol]
			for localCol := 0; localCol < tileCols; localCol++ {
				for localRow := 0; localRow < tileRows; localRow++ {
					row := gridRow*tileRows + localRow
					col := gridCol*tileCols + localCol
					matrix.Data[row*matrix.Cols+col] = tile[localCol*tileRows+localRow]
				}
			}
		}
	}

	return matrix, nil
}

// checkTiling enforces the divisibility precondition before any data moves.
func checkTiling(matrix *Matrix, p int, tileRows int, tileCols int) error {
	if p <= 0 || tileRows <= 0 || tileCols <= 0 {
		return misc.NewConfigurationError(
			"tiling parameters must be positive: P=%d tileRows=%d tileCols=%d",
			p, tileRows, tileCols)
	}
	if matrix.Rows%p != 0 || matrix.Cols%p != 0 {
		return misc.NewConfigurationError(
			"%dx%d matrix does not divide across a %dx%d grid",
			matrix.Rows, matrix.Cols, p, p)
	}
	if matrix.Rows != p*tileRows || matrix.Cols != p*tileCols {
		return misc.NewConfigurationError(
			"%dx%d matrix does not match %d x (%dx%d) tiles",
			matrix.Rows, matrix.Cols, p, tileRows, tileCols)
	}
	return nil
}
