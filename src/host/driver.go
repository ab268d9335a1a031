package host

import (
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/Wang-oss-tech/csl-experiments/src/grid"
	"github.com/Wang-oss-tech/csl-experiments/src/misc"
	"github.com/Wang-oss-tech/csl-experiments/src/model"
	"github.com/Wang-oss-tech/csl-experiments/src/trace"
)

// Options tune a Driver without touching the run protocol.
type Options struct {
	Emitter   *trace.Emitter
	CostModel *model.CostModel
	// Timeout bounds the whole launch. Zero waits forever. There is no
	// finer-grained timeout: a stalled broadcast inside the grid is only
	// observable here.
	Timeout time.Duration
	// Progress, when non-nil, receives a phase progress bar.
	Progress io.Writer
}

// RunReport is everything a completed run hands back to the CLI.
type RunReport struct {
	RunID                string
	Strategy             string
	PredictedTotalCycles int64
	Cycles               CycleStats
	H2DCycles            int64
	D2HCycles            int64
	LinkTraversals       int64
	C                    *Matrix
}

// Driver executes the host side of the run protocol: tile, stage, launch,
// read back, gather, validate. One Driver drives one grid; the manifest it
// was built with is immutable for its lifetime.
type Driver struct {
	manifest  *misc.Manifest
	engine    *grid.Engine
	transfers *TransferEngine
	options   Options
}

// NewDriver connects to the grid. A device address, when given, must be an
// IP:port endpoint; anything else is a transfer failure before the run
// starts.
func NewDriver(manifest *misc.Manifest, deviceAddr string, options Options) (*Driver, error) {
	if deviceAddr != "" {
		if _, _, err := net.SplitHostPort(deviceAddr); err != nil {
			return nil, &misc.TransferError{
				Direction: "h2d", Symbol: "connect",
				Cause: errors.Wrapf(err, "device address %q", deviceAddr),
			}
		}
	}

	driver := new(Driver)
	driver.manifest = manifest
	driver.engine = grid.NewEngine(manifest, options.Emitter)
	driver.transfers = NewTransferEngine(options.CostModel)
	driver.options = options
	return driver, nil
}

// Run executes one full GEMM batch. All failures abort the run; nothing is
// retried.
func (driver *Driver) Run(a *Matrix, b *Matrix, strategy grid.Strategy) (*RunReport, error) {
	manifest := driver.manifest

	if a.Rows != manifest.M() || a.Cols != manifest.K() {
		return nil, misc.NewConfigurationError(
			"A is %dx%d, manifest wants %dx%d", a.Rows, a.Cols, manifest.M(), manifest.K())
	}
	if b.Rows != manifest.K() || b.Cols != manifest.N() {
		return nil, misc.NewConfigurationError(
			"B is %dx%d, manifest wants %dx%d", b.Rows, b.Cols, manifest.K(), manifest.N())
	}

	report := new(RunReport)
	report.RunID = uuid.NewString()
	report.Strategy = strategy.Name()

	bar := driver.progressBar()
	klog.V(1).Infof("run %s: %s strategy on %dx%d grid, tiles Mt=%d Kt=%d Nt=%d",
		report.RunID, strategy.Name(), manifest.P, manifest.P,
		manifest.Mt, manifest.Kt, manifest.Nt)

	aTiles, err := ToTiles(a, manifest.P, manifest.Mt, manifest.Kt)
	if err != nil {
		return nil, err
	}
	bTiles, err := ToTiles(b, manifest.P, manifest.Kt, manifest.Nt)
	if err != nil {
		return nil, err
	}

	// A and B go to the grid concurrently; neither blocks the other.
	var staging errgroup.Group
	staging.Go(func() error {
		if err := driver.engine.StageA(aTiles); err != nil {
			return err
		}
		driver.transfers.Record(TransferHostToGrid,
			manifest.NumCells()*manifest.Mt*manifest.Kt, manifest.P, manifest.P)
		return nil
	})
	staging.Go(func() error {
		if err := driver.engine.StageB(bTiles); err != nil {
			return err
		}
		driver.transfers.Record(TransferHostToGrid,
			manifest.NumCells()*manifest.Kt*manifest.Nt, manifest.P, manifest.P)
		return nil
	})
	if err := staging.Wait(); err != nil {
		return nil, err
	}
	barAdd(bar)

	plan := strategy.Plan(manifest)
	report.PredictedTotalCycles = plan.PredictedTotalCycles
	if err := driver.launch(plan); err != nil {
		return nil, err
	}
	barAdd(bar)

	timeMemcpy, timeRef := driver.engine.TimestampWords()
	driver.transfers.Record(TransferGridToHost,
		len(timeMemcpy)+len(timeRef), manifest.P, manifest.P)
	times, err := ReconstructTimestamps(timeMemcpy, timeRef, manifest.P)
	if err != nil {
		return nil, err
	}
	report.Cycles = times.Stats()
	barAdd(bar)

	// Readback is the run's barrier: once the element counts check out, all
	// broadcast and compute work has drained.
	gathered := driver.engine.GatherC()
	expected := manifest.NumCells() * manifest.CTileElements()
	if len(gathered) != expected {
		return nil, &misc.ConfigurationMismatchError{
			Symbol: "C", Expected: expected, Actual: len(gathered)}
	}
	driver.transfers.Record(TransferGridToHost, expected, manifest.P, manifest.P)

	cTiles := make([][]float32, manifest.NumCells())
	words := manifest.CTileElements()
	for index := range cTiles {
		cTiles[index] = gathered[index*words : (index+1)*words]
	}
	c, err := FromTiles(cTiles, manifest.P, manifest.Mt, manifest.Nt)
	if err != nil {
		return nil, err
	}
	report.C = c
	barAdd(bar)

	if err := Validate(a, b, c, DefaultAtol, DefaultRtol); err != nil {
		return nil, err
	}
	barAdd(bar)

	report.H2DCycles = driver.transfers.H2DCycles()
	report.D2HCycles = driver.transfers.D2HCycles()
	report.LinkTraversals = driver.engine.LinkTraversals()
	klog.V(1).Infof("run %s: %s", report.RunID, driver.transfers.Summary())

	return report, nil
}

// launch blocks until the grid drains or the host-level timeout fires. On
// timeout the cells are beyond recovery; the caller aborts the process.
func (driver *Driver) launch(plan *grid.ExecutionPlan) error {
	launchErr := make(chan error, 1)
	go func() {
		launchErr <- driver.engine.Launch(plan)
	}()

	if driver.options.Timeout <= 0 {
		return <-launchErr
	}

	select {
	case err := <-launchErr:
		return err
	case <-time.After(driver.options.Timeout):
		return &misc.TransferError{
			Direction: "d2h", Symbol: "launch",
			Cause: errors.Errorf("run exceeded %s; grid stalled or unreachable", driver.options.Timeout),
		}
	}
}

func (driver *Driver) progressBar() *progressbar.ProgressBar {
	if driver.options.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(5,
		progressbar.OptionSetWriter(driver.options.Progress),
		progressbar.OptionSetDescription("summa"),
		progressbar.OptionShowCount(),
	)
}

func barAdd(bar *progressbar.ProgressBar) {
	if bar != nil {
		bar.Add(1)
	}
}
