package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Wang-oss-tech/csl-experiments/src/misc"
)

// TestFitRecoversExactModel generates samples from a known linear model and
// checks the regression recovers it with near-perfect goodness of fit.
func TestFitRecoversExactModel(t *testing.T) {
	const (
		alpha = 2.5
		beta  = 30.0
		gamma = 700.0
	)

	shapes := []struct{ width, height, words int }{
		{1, 1, 100},
		{2, 2, 196},
		{4, 4, 196},
		{4, 4, 1024},
		{8, 8, 512},
		{16, 16, 64},
	}

	var samples []Sample
	for _, shape := range shapes {
		sample := Sample{
			Direction: DirectionH2D,
			Width:     shape.width,
			Height:    shape.height,
			Words:     shape.words,
		}
		sample.Cycles = int64(alpha*float64(sample.Wavelets()) +
			beta*float64(shape.width+shape.height) + gamma)
		samples = append(samples, sample)
	}

	fit, err := FitTransferModel(samples, DirectionH2D)
	require.NoError(t, err)
	require.Equal(t, len(shapes), fit.Samples)
	require.InDelta(t, alpha, fit.Alpha, 1e-3)
	require.InDelta(t, beta, fit.Beta, 1.0)
	require.InDelta(t, gamma, fit.Gamma, 5.0)
	require.Greater(t, fit.R2, 0.999)
	require.Less(t, fit.MAPE, 1.0)

	predicted := fit.Predict(4*4*1024, 4, 4)
	require.InDelta(t, float64(samples[3].Cycles), float64(predicted), 10)
}

// TestFitFiltersDirections checks samples from the other direction never leak
// into a fit.
func TestFitFiltersDirections(t *testing.T) {
	samples := []Sample{
		{Direction: DirectionH2D, Width: 4, Height: 4, Words: 100, Cycles: 5000},
		{Direction: DirectionD2H, Width: 4, Height: 4, Words: 100, Cycles: 9000},
		{Direction: DirectionD2H, Width: 2, Height: 2, Words: 200, Cycles: 4000},
		{Direction: DirectionD2H, Width: 8, Height: 8, Words: 50, Cycles: 12000},
	}

	fit, err := FitTransferModel(samples, DirectionD2H)
	require.NoError(t, err)
	require.Equal(t, 3, fit.Samples)
}

// TestFitTooFewSamples verifies the advisory warning path: under three usable
// samples the caller gets a ModelFitWarning and no fit.
func TestFitTooFewSamples(t *testing.T) {
	samples := []Sample{
		{Direction: DirectionH2D, Width: 4, Height: 4, Words: 100, Cycles: 5000},
		{Direction: DirectionH2D, Width: 2, Height: 2, Words: 50, Cycles: 2000},
	}

	fit, err := FitTransferModel(samples, DirectionH2D)
	if fit != nil {
		t.Fatalf("expected nil fit, got %+v", fit)
	}
	var warning *misc.ModelFitWarning
	if !errors.As(err, &warning) {
		t.Fatalf("expected ModelFitWarning, got %T: %v", err, err)
	}
	if warning.Samples != 2 || warning.Direction != DirectionH2D {
		t.Fatalf("unexpected warning contents: %+v", warning)
	}
}

// TestFitDegenerateSamples verifies a rank-deficient design (every sample the
// same shape) degrades to a warning rather than a bogus fit.
func TestFitDegenerateSamples(t *testing.T) {
	samples := []Sample{
		{Direction: DirectionH2D, Width: 4, Height: 4, Words: 100, Cycles: 5000},
		{Direction: DirectionH2D, Width: 4, Height: 4, Words: 100, Cycles: 5010},
		{Direction: DirectionH2D, Width: 4, Height: 4, Words: 100, Cycles: 4990},
	}

	fit, err := FitTransferModel(samples, DirectionH2D)
	if err == nil {
		t.Fatalf("expected a fit warning, got fit %+v", fit)
	}
	var warning *misc.ModelFitWarning
	if !errors.As(err, &warning) {
		t.Fatalf("expected ModelFitWarning, got %T: %v", err, err)
	}
}
