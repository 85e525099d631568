// Command montecarlo runs the comprehensive Monte Carlo study over every
// configured array and fault scenario and writes the reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/banshee-data/tmr-encoder/internal/analysis"
	"github.com/banshee-data/tmr-encoder/internal/artifact"
	"github.com/banshee-data/tmr-encoder/internal/config"
	"github.com/banshee-data/tmr-encoder/internal/monitoring"
	"github.com/banshee-data/tmr-encoder/internal/report"
	"github.com/banshee-data/tmr-encoder/internal/store"
	"github.com/banshee-data/tmr-encoder/internal/version"
)

type options struct {
	configPath string
	outDir     string
	dbPath     string
	runs       int
	steps      int
	workers    int
	seed       uint64
	quiet      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Analysis config JSON (defaults built in when empty)")
	flag.StringVar(&opts.outDir, "out", "mc_results", "Output directory")
	flag.StringVar(&opts.dbPath, "db", "", "Also record every run to this SQLite database")
	flag.IntVar(&opts.runs, "runs", 0, "Override runs per scenario")
	flag.IntVar(&opts.steps, "steps", 0, "Override angle steps per run")
	flag.IntVar(&opts.workers, "workers", 0, "Override worker count (0 = config or all CPUs)")
	flag.Uint64Var(&opts.seed, "seed", 0, "Override base seed")
	flag.BoolVar(&opts.quiet, "quiet", false, "Only print the comparative summary")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String("montecarlo"))
		return
	}
	monitoring.SetDebug(*debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		log.Fatalf("montecarlo: %v", err)
	}
}

func loadConfig(opts options) (*config.AnalysisConfig, error) {
	cfg := config.EmptyAnalysisConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.LoadAnalysisConfig(opts.configPath); err != nil {
			return nil, err
		}
	}
	if opts.runs > 0 {
		cfg.Runs = &opts.runs
	}
	if opts.steps > 0 {
		cfg.AngleSteps = &opts.steps
	}
	if opts.workers > 0 {
		cfg.Workers = &opts.workers
	}
	if opts.seed > 0 {
		cfg.Seed = &opts.seed
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	sink, err := artifact.NewDirSink(opts.outDir)
	if err != nil {
		return err
	}

	var st *store.Store
	if opts.dbPath != "" {
		if st, err = store.Open(opts.dbPath); err != nil {
			return err
		}
		defer st.Close()
	}
	studyID := uuid.NewString()

	log.Printf("Monte Carlo study %s: %d runs x %d steps, writing to %s",
		studyID, cfg.GetRuns(), cfg.GetAngleSteps(), opts.outDir)

	_, comp, err := analysis.Comprehensive(ctx, cfg, func(s analysis.ScenarioSummary) error {
		if err := report.WriteScenario(sink, s); err != nil {
			return fmt.Errorf("write %s: %w", report.ScenarioDir(s), err)
		}
		if st != nil {
			if err := st.InsertRuns(ctx, studyID, s.Runs); err != nil {
				return err
			}
		}
		if opts.quiet {
			return nil
		}
		text, err := report.ScenarioSummary(s)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, text)
		return err
	})
	if err != nil {
		return err
	}

	claimBits, faultBits := cfg.GetResolutionClaimBits(), cfg.GetFaultToleranceMinBits()
	if err := report.WriteComparative(sink, comp, claimBits, faultBits); err != nil {
		return err
	}
	text, err := report.ComparativeSummary(comp, claimBits, faultBits)
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, text)
	return err
}
