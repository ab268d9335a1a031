package host

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
)

// Validation tolerances: |C - Cref| <= atol + rtol*|Cref| elementwise.
const (
	DefaultAtol = 1e-6
	DefaultRtol = 1e-5
)

// Validate checks the gathered C against an independent reference multiply.
// The reference runs in float64 through gonum so its rounding is unrelated to
// the grid's. A failure is a logic defect, not a transient condition, so it
// carries the maximum difference and its coordinates and is never retried.
func Validate(a *Matrix, b *Matrix, c *Matrix, atol float64, rtol float64) error {
	if a.Cols != b.Rows || c.Rows != a.Rows || c.Cols != b.Cols {
		return misc.NewConfigurationError(
			"inconsistent shapes: A %dx%d, B %dx%d, C %dx%d",
			a.Rows, a.Cols, b.Rows, b.Cols, c.Rows, c.Cols)
	}

	var reference mat.Dense
	reference.Mul(toDense(a), toDense(b))

	failed := false
	var worst misc.NumericalMismatchError
	for row := 0; row < c.Rows; row++ {
		for col := 0; col < c.Cols; col++ {
			got := float64(c.At(row, col))
			want := reference.At(row, col)
			diff := math.Abs(got - want)
			if diff > worst.MaxDiff {
				worst = misc.NumericalMismatchError{
					Row: row, Col: col, Got: got, Want: want, MaxDiff: diff}
			}
			if diff > atol+rtol*math.Abs(want) {
				failed = true
			}
		}
	}

	if failed {
		return &worst
	}
	return nil
}

func toDense(matrix *Matrix) *mat.Dense {
	dense := mat.NewDense(matrix.Rows, matrix.Cols, nil)
	for row := 0; row < matrix.Rows; row++ {
		for col := 0; col < matrix.Cols; col++ {
			dense.Set(row, col, float64(matrix.At(row, col)))
		}
	}
	return dense
}
