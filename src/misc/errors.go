package misc

import "fmt"

// ConfigurationError reports grid/tile parameters that cannot describe a valid
// run: dimensions that do not divide evenly, or element counts that disagree
// with what the manifest promises. Always fatal and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NewConfigurationError builds a ConfigurationError from a format string.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// ConfigurationMismatchError is the readback variant of ConfigurationError: a
// grid returned a different element count than the manifest predicts, which
// almost always means a stale binary compiled with different tile parameters.
type ConfigurationMismatchError struct {
	Symbol   string
	Expected int
	Actual   int
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf(
		"%s size mismatch: device returned %d elements, expected %d; "+
			"ensure the staged binary was compiled with the same params as the manifest",
		e.Symbol, e.Actual, e.Expected)
}

// TransferError reports a failed host-to-grid or grid-to-host transfer. The
// run is an atomic batch job, so a transfer failure aborts it wholesale.
type TransferError struct {
	Direction string // "h2d" or "d2h"
	Symbol    string
	Cause     error
}

func (e *TransferError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s transfer of %s failed", e.Direction, e.Symbol)
	}
	return fmt.Sprintf("%s transfer of %s failed: %v", e.Direction, e.Symbol, e.Cause)
}

func (e *TransferError) Unwrap() error {
	return e.Cause
}

// NumericalMismatchError reports a validation failure. The computation is
// deterministic, so a mismatch is a logic defect, not a transient condition.
type NumericalMismatchError struct {
	Row     int
	Col     int
	Got     float64
	Want    float64
	MaxDiff float64
}

func (e *NumericalMismatchError) Error() string {
	return fmt.Sprintf(
		"numerical mismatch at C[%d,%d]: got %g, want %g (max |diff| = %g)",
		e.Row, e.Col, e.Got, e.Want, e.MaxDiff)
}

// ModelFitWarning is advisory: the regression had too few or degenerate
// samples. Callers keep running and fall back to the sequential strategy.
type ModelFitWarning struct {
	Direction string
	Samples   int
}

func (e *ModelFitWarning) Error() string {
	return fmt.Sprintf(
		"model fit warning: only %d %s samples, need at least 3", e.Samples, e.Direction)
}
