package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
)

// Transfer directions as they appear in bandwidth sample filenames.
const (
	DirectionH2D = "h2d"
	DirectionD2H = "d2h"
)

// Sample is one measured bandwidth point: a width x height rectangle moved
// `Words` elements per cell in `Cycles`.
type Sample struct {
	Direction string
	Width     int
	Height    int
	Words     int // elements per cell
	Channels  int
	Cycles    int64
}

// Wavelets is the total element count the sample pushed through the fabric.
func (sample Sample) Wavelets() int {
	return sample.Width * sample.Height * sample.Words
}

// LinearFit holds the fitted transfer model
//
//	cycles = Alpha*wavelets + Beta*(width+height) + Gamma
//
// together with its goodness-of-fit metrics.
type LinearFit struct {
	Direction string
	Alpha     float64
	Beta      float64
	Gamma     float64

	R2      float64
	RMSE    float64
	MAPE    float64 // percent
	Samples int
}

// FitTransferModel least-squares fits one direction's samples. Fewer than
// three usable samples, or a degenerate system, yields a ModelFitWarning and
// a nil fit; callers fall back to the default bandwidth model.
func FitTransferModel(samples []Sample, direction string) (*LinearFit, error) {
	var filtered []Sample
	for _, sample := range samples {
		if sample.Direction == direction && sample.Cycles > 0 {
			filtered = append(filtered, sample)
		}
	}

	if len(filtered) < 3 {
		return nil, &misc.ModelFitWarning{Direction: direction, Samples: len(filtered)}
	}

	rows := len(filtered)
	design := mat.NewDense(rows, 3, nil)
	observed := mat.NewVecDense(rows, nil)
	for i, sample := range filtered {
		design.Set(i, 0, float64(sample.Wavelets()))
		design.Set(i, 1, float64(sample.Width+sample.Height))
		design.Set(i, 2, 1)
		observed.SetVec(i, float64(sample.Cycles))
	}

	var coefficients mat.VecDense
	if err := coefficients.SolveVec(design, observed); err != nil {
		// Rank-deficient design (e.g. all samples share one shape).
		return nil, &misc.ModelFitWarning{Direction: direction, Samples: rows}
	}

	fit := &LinearFit{
		Direction: direction,
		Alpha:     coefficients.AtVec(0),
		Beta:      coefficients.AtVec(1),
		Gamma:     coefficients.AtVec(2),
		Samples:   rows,
	}

	var predicted mat.VecDense
	predicted.MulVec(design, &coefficients)

	mean := mat.Sum(observed) / float64(rows)
	var ssRes, ssTot, absPct float64
	for i := 0; i < rows; i++ {
		residual := observed.AtVec(i) - predicted.AtVec(i)
		ssRes += residual * residual
		deviation := observed.AtVec(i) - mean
		ssTot += deviation * deviation
		absPct += math.Abs(residual / observed.AtVec(i))
	}

	if ssTot > 0 {
		fit.R2 = 1 - ssRes/ssTot
	} else {
		fit.R2 = 1
	}
	fit.RMSE = math.Sqrt(ssRes / float64(rows))
	fit.MAPE = absPct / float64(rows) * 100

	return fit, nil
}

// Predict evaluates the fitted model for a transfer.
func (fit *LinearFit) Predict(wavelets int, width int, height int) int64 {
	estimate := fit.Alpha*float64(wavelets) + fit.Beta*float64(width+height) + fit.Gamma
	if estimate < 0 {
		return 0
	}
	return int64(estimate)
}
