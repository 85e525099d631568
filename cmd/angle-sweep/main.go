// Command angle-sweep reconstructs one simulated sweep for a single geometry
// and writes its error trace as CSV, PNG and HTML.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/artifact"
	"github.com/banshee-data/tmr-encoder/internal/encoder"
	"github.com/banshee-data/tmr-encoder/internal/report"
	"github.com/banshee-data/tmr-encoder/internal/signalsim"
	"github.com/banshee-data/tmr-encoder/internal/units"
	"github.com/banshee-data/tmr-encoder/internal/version"
)

type options struct {
	sensors   int
	polePairs int
	rangeSpec string
	fail      string
	noise     float64
	adcBits   int
	drift     float64
	seed      uint64
	unit      string
	outDir    string
	name      string
}

func main() {
	var opts options
	flag.IntVar(&opts.sensors, "sensors", 8, "Number of sensors")
	flag.IntVar(&opts.polePairs, "pole-pairs", 7, "Magnet pole pairs")
	flag.StringVar(&opts.rangeSpec, "range", "0:360:3600", "Sweep as start:end:steps in degrees, end exclusive")
	flag.StringVar(&opts.fail, "fail", "", "Comma-separated failed sensor indices")
	flag.Float64Var(&opts.noise, "noise", signalsim.DefaultModel().NoiseLevel, "Noise level relative to the harmonic amplitude")
	flag.IntVar(&opts.adcBits, "adc-bits", 0, "ADC resolution in bits (0 = unquantised)")
	flag.Float64Var(&opts.drift, "drift", 0, "Slow drift amplitude")
	flag.Uint64Var(&opts.seed, "seed", 1, "Noise seed")
	flag.StringVar(&opts.unit, "unit", units.Degrees, "Error unit: "+units.GetValidUnitsString())
	flag.StringVar(&opts.outDir, "out", ".", "Output directory")
	flag.StringVar(&opts.name, "name", "", "Output file base name (default sweep_N_P)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("angle-sweep"))
		return
	}
	if err := run(opts, os.Stdout); err != nil {
		log.Fatalf("angle-sweep: %v", err)
	}
}

func run(opts options, stdout io.Writer) error {
	if !units.IsValid(opts.unit) {
		return fmt.Errorf("invalid unit %q, valid units: %s", opts.unit, units.GetValidUnitsString())
	}
	g, err := encoder.NewGoldenGeometry(opts.sensors, opts.polePairs)
	if err != nil {
		return err
	}
	spec, err := analysis.ParseRangeSpec(opts.rangeSpec)
	if err != nil {
		return err
	}
	failed, err := analysis.ParseIndexList(opts.fail)
	if err != nil {
		return err
	}

	model := signalsim.DefaultModel()
	model.NoiseLevel = opts.noise
	model.ADCBits = opts.adcBits
	model.DriftAmplitude = opts.drift
	if err := model.Validate(); err != nil {
		return err
	}

	res, err := analysis.RunSweep(g, signalsim.NewSource(model, opts.seed), spec, encoder.NewFailureMask(failed...))
	if err != nil {
		return err
	}

	sink, err := artifact.NewDirSink(opts.outDir)
	if err != nil {
		return err
	}
	base := opts.name
	if base == "" {
		base = fmt.Sprintf("sweep_%d_%d", opts.sensors, opts.polePairs)
	}
	if err := report.WriteSweep(sink, base, res, opts.unit); err != nil {
		return err
	}

	printStats(stdout, g, res, opts.unit)
	return nil
}

func printStats(w io.Writer, g encoder.Geometry, res analysis.SweepResult, unit string) {
	st := res.Stats
	sym := units.Symbol(unit)
	conv := func(deg float64) float64 { return units.ConvertAngle(deg, unit) }

	fmt.Fprintf(w, "Geometry:            %s\n", g)
	fmt.Fprintf(w, "Failed sensors:      %v\n", res.FailedSensors)
	fmt.Fprintf(w, "Samples:             %d (%d degenerate, %d underdetermined)\n", st.Samples, res.Degenerate, res.Underdetermined)
	fmt.Fprintf(w, "Mean error:          %.6g%s\n", conv(st.MeanError), sym)
	fmt.Fprintf(w, "Std error:           %.6g%s\n", conv(st.StdError), sym)
	fmt.Fprintf(w, "RMS error:           %.6g%s\n", conv(st.RMSError), sym)
	fmt.Fprintf(w, "Max |error|:         %.6g%s\n", conv(st.MaxAbsError), sym)
	fmt.Fprintf(w, "P99 |error|:         %.6g%s\n", conv(st.P99AbsError), sym)
	fmt.Fprintf(w, "Resolution (mean):   %.2f bits\n", st.MeanResolutionBits)
	fmt.Fprintf(w, "Resolution (p99):    %.2f bits\n", st.ResolutionBitsP99)
}
