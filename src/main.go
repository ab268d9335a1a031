package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/Wang-oss-tech/csl-experiments/src/grid"
	"github.com/Wang-oss-tech/csl-experiments/src/host"
	"github.com/Wang-oss-tech/csl-experiments/src/misc"
	"github.com/Wang-oss-tech/csl-experiments/src/model"
	"github.com/Wang-oss-tech/csl-experiments/src/trace"
)

func main() {
	klog.InitFlags(nil)
	defer klog.Flush()

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "csl-experiments",
		Short:         "SUMMA matrix multiplication on a simulated cell grid",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.AddCommand(newSummaCommand())
	root.AddCommand(newBroadcastCommand())
	root.AddCommand(newPredictCommand())
	root.AddCommand(newCalibrateCommand())
	return root
}

func newSummaCommand() *cobra.Command {
	var (
		name     string
		cmaddr   string
		strategy string
		p        int
		mt       int
		kt       int
		nt       int
		seed     int64
		timeout  time.Duration
		traceOn  bool
	)

	cmd := &cobra.Command{
		Use:   "summa",
		Short: "run one SUMMA GEMM and validate the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := resolveManifest(name, p, mt, kt, nt)
			if err != nil {
				return err
			}

			options := host.Options{Timeout: timeout, Progress: os.Stderr}
			if traceOn {
				options.Emitter = trace.NewEmitter(os.Stderr)
			}
			driver, err := host.NewDriver(manifest, cmaddr, options)
			if err != nil {
				return err
			}

			chosen, err := resolveStrategy(strategy, manifest)
			if err != nil {
				return err
			}

			a, b := host.RandomOperandPair(
				manifest.M(), manifest.K(), manifest.K(), manifest.N(), seed)

			report, err := driver.Run(a, b, chosen)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout())
				fmt.Fprintf(cmd.OutOrStdout(), "FAILED: %v\n", err)
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			fmt.Fprintf(out, "run        %s\n", report.RunID)
			fmt.Fprintf(out, "strategy   %s\n", report.Strategy)
			fmt.Fprintf(out, "predicted  %d cycles\n", report.PredictedTotalCycles)
			fmt.Fprintf(out, "measured   %.0f cycles mean, %d span\n",
				report.Cycles.MeanCycles, report.Cycles.MaxSpan())
			fmt.Fprintf(out, "transfers  h2d %d cycles, d2h %d cycles\n",
				report.H2DCycles, report.D2HCycles)
			fmt.Fprintf(out, "fabric     %d link traversals\n", report.LinkTraversals)
			fmt.Fprintln(out, "SUCCESS")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "compiled artifact directory holding out.json")
	cmd.Flags().StringVar(&cmaddr, "cmaddr", "", "device IP:port (empty runs the simulated grid)")
	cmd.Flags().StringVar(&strategy, "strategy", "auto", "broadcast schedule (auto|sequential|pipelined)")
	cmd.Flags().IntVar(&p, "p", 4, "grid dimension when no artifact is given")
	cmd.Flags().IntVar(&mt, "mt", 14, "A tile rows")
	cmd.Flags().IntVar(&kt, "kt", 14, "inner tile dimension")
	cmd.Flags().IntVar(&nt, "nt", 14, "B tile columns")
	cmd.Flags().Int64Var(&seed, "seed", 7, "operand RNG seed")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "host-level launch timeout (0 waits forever)")
	cmd.Flags().BoolVar(&traceOn, "trace", false, "emit per-cell wavelet traces to stderr")
	return cmd
}

func newBroadcastCommand() *cobra.Command {
	var (
		p       int
		n       int
		traceOn bool
	)

	cmd := &cobra.Command{
		Use:   "broadcast",
		Short: "run the 1-D store-and-forward broadcast kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			var emitter *trace.Emitter
			if traceOn {
				emitter = trace.NewEmitter(os.Stderr)
			}

			// Cell i seeds the values [i*n, i*n+n); after p rounds every cell
			// holds the last owner's buffer.
			seeds := make([][]float32, p)
			for index := range seeds {
				seeds[index] = make([]float32, n)
				for j := range seeds[index] {
					seeds[index][j] = float32(index*n + j)
				}
			}

			results, err := grid.Broadcast1D(p, n, seeds, emitter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for index, result := range results {
				fmt.Fprintf(out, "PE %d: %v\n", index, result)
			}
			fmt.Fprintln(out, "SUCCESS")
			return nil
		},
	}

	cmd.Flags().IntVar(&p, "p", 4, "number of cells in the row")
	cmd.Flags().IntVar(&n, "n", 6, "elements per cell buffer")
	cmd.Flags().BoolVar(&traceOn, "trace", false, "emit per-cell wavelet traces to stderr")
	return cmd
}

func newPredictCommand() *cobra.Command {
	var compare bool

	cmd := &cobra.Command{
		Use:   "predict [P Mt Kt Nt]",
		Short: "print the performance model breakdown for a problem shape",
		Args:  cobra.RangeArgs(0, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, mt, kt, nt := 4, 14, 14, 14
			targets := []*int{&p, &mt, &kt, &nt}
			for index, arg := range args {
				if _, err := fmt.Sscanf(arg, "%d", targets[index]); err != nil {
					return misc.NewConfigurationError("argument %q is not an integer", arg)
				}
			}
			manifest := &misc.Manifest{P: p, Mt: mt, Kt: kt, Nt: nt}
			if err := manifest.Validate(); err != nil {
				return err
			}

			costModel := model.DefaultCostModel()
			aWords := manifest.NumCells() * mt * kt
			bWords := manifest.NumCells() * kt * nt
			cWords := manifest.NumCells() * mt * nt

			broadcast := model.BroadcastCyclesPerStep(p, mt, nt)
			compute := model.ComputeCyclesPerStep(mt, kt, nt)
			sequential := model.SequentialTotalCycles(p, mt, kt, nt)
			pipelined := model.PipelinedTotalCycles(p, mt, kt, nt)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "shape       P=%d Mt=%d Kt=%d Nt=%d (%dx%d x %dx%d)\n",
				p, mt, kt, nt, manifest.M(), manifest.K(), manifest.K(), manifest.N())
			fmt.Fprintf(out, "h2d         %d cycles (%d words)\n",
				costModel.H2DCycles(aWords+bWords, p, p), aWords+bWords)
			fmt.Fprintf(out, "d2h         %d cycles (%d words)\n",
				costModel.D2HCycles(cWords, p, p), cWords)
			fmt.Fprintf(out, "broadcast   %d cycles/step (%d wire)\n",
				broadcast, model.BroadcastTransferCycles(mt, kt, nt))
			fmt.Fprintf(out, "compute     %d cycles/step (%d iter model)\n",
				compute, model.ComputeIterCycles(mt, kt, nt))
			fmt.Fprintf(out, "sequential  %d cycles total\n", sequential)
			fmt.Fprintf(out, "pipelined   %d cycles total\n", pipelined)

			chosen := grid.ChooseStrategy(manifest, true)
			fmt.Fprintf(out, "schedule    %s", chosen.Name())
			if model.PipelineBound(p, mt, kt, nt) {
				fmt.Fprintf(out, " (broadcast bound)")
			}
			fmt.Fprintln(out)

			if compare {
				printMeasuredComparison(out, p, mt, kt, nt, sequential)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&compare, "compare", false, "compare against hardware measurements where available")
	return cmd
}

// Hardware measurements exist for the reference shape only.
const (
	measuredRefSequentialCycles = 95405
)

func printMeasuredComparison(out io.Writer, p, mt, kt, nt int, sequential int64) {
	if p != 4 || mt != 14 || kt != 14 || nt != 14 {
		fmt.Fprintf(out, "measured    no measurements for this shape\n")
		return
	}
	errorFraction := float64(sequential-measuredRefSequentialCycles) / measuredRefSequentialCycles
	fmt.Fprintf(out, "measured    %d cycles sequential, model error %+.2f%%\n",
		measuredRefSequentialCycles, errorFraction*100)
	if errorFraction < 0 {
		errorFraction = -errorFraction
	}
	if errorFraction > model.FitMAPEBound {
		fmt.Fprintf(out, "warning     model error exceeds %.0f%% bound, recalibrate\n",
			model.FitMAPEBound*100)
	}
}

func newCalibrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate <sample-dir>",
		Short: "fit the transfer cost model from bandwidth sample files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples, err := model.LoadSamples(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "loaded %d samples from %s\n", len(samples), args[0])

			for _, direction := range []string{model.DirectionH2D, model.DirectionD2H} {
				fit, err := model.FitTransferModel(samples, direction)
				if err != nil {
					klog.Warningf("%v; keeping default %s bandwidth model", err, direction)
					continue
				}
				fmt.Fprintf(out, "%s  cycles = %.4f*wavelets + %.1f*(w+h) + %.1f\n",
					fit.Direction, fit.Alpha, fit.Beta, fit.Gamma)
				fmt.Fprintf(out, "     R2=%.4f RMSE=%.1f MAPE=%.2f%% over %d samples\n",
					fit.R2, fit.RMSE, fit.MAPE, fit.Samples)
			}
			return nil
		},
	}
	return cmd
}

// resolveManifest prefers a compiled artifact's out.json; without one the
// shape flags stand in.
func resolveManifest(name string, p, mt, kt, nt int) (*misc.Manifest, error) {
	if name != "" {
		return misc.LoadManifest(name)
	}
	manifest := &misc.Manifest{P: p, Mt: mt, Kt: kt, Nt: nt}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return manifest, nil
}

func resolveStrategy(name string, manifest *misc.Manifest) (grid.Strategy, error) {
	switch name {
	case "auto":
		return grid.ChooseStrategy(manifest, true), nil
	case "sequential":
		return grid.Sequential{}, nil
	case "pipelined":
		return grid.Pipelined{}, nil
	default:
		return nil, misc.NewConfigurationError("unknown strategy %q", name)
	}
}
