package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kaii789/disaggregated-systems-research-sub000/sim"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/metrics"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/trace"
	"github.com/kaii789/disaggregated-systems-research-sub000/sim/workload"
)

var (
	// CLI flags for the engine
	configPath  string // YAML engine config; defaults apply when empty
	tracePath   string // CSV access trace; synthetic workload when empty
	seed        int64  // Seed for placement, synthetic accesses and page contents
	logLevel    string // Log verbosity level
	traceLevel  string // Decision trace level
	metricsOut  string // Prometheus textfile output path
	runID       string // Run label for exported metrics
	capacity    int    // Local capacity override in pages (-1 keeps the config value)
	codec       string // Enables compression with this codec when set
	dataSource  string // Page contents handed to the codec: zero or synthetic
	exportPath  string // Destination of the generate command

	// CLI flags for the synthetic workload
	genCfg = workload.DefaultGeneratorConfig()
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "memsim",
	Short: "Latency simulator for disaggregated memory with page migration and compression",
}

// runCmd replays an access stream through the engine and prints its statistics
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the memory simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg, err := loadConfig(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		accesses, err := loadAccesses(cfg.PageSize)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		stats, tr, err := runSimulation(cfg, accesses)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		stats.Print(os.Stdout)
		if tr != nil {
			printTraceSummary(os.Stdout, trace.Summarize(tr))
		}
		if metricsOut != "" {
			if err := metrics.WriteTextfile(metricsOut, stats, runID); err != nil {
				logrus.Fatalf("%v", err)
			}
			logrus.Infof("metrics written to %s", metricsOut)
		}
	},
}

// generateCmd writes a synthetic access stream as a CSV trace
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic access trace",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		genCfg.Seed = seed
		accesses, err := workload.GenerateAccesses(genCfg)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := workload.ExportAccessTrace(exportPath, accesses); err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("wrote %s accesses to %s", humanize.Comma(int64(len(accesses))), exportPath)
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadConfig reads the engine config and applies flag overrides. The seed
// flag wins over the file only when given explicitly.
func loadConfig(cmd *cobra.Command) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = sim.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("seed") || configPath == "" {
		cfg.Seed = seed
	}
	if cmd.Flags().Changed("trace-level") {
		cfg.TraceLevel = traceLevel
	}
	if capacity >= 0 {
		cfg.LocalCapacityPages = capacity
	}
	if codec != "" {
		cfg.Compression.Enabled = true
		cfg.Compression.Codec = codec
	}
	return cfg, cfg.Validate()
}

// loadAccesses reads the trace file or generates a synthetic stream.
func loadAccesses(pageSize int64) ([]workload.Access, error) {
	if tracePath != "" {
		accesses, err := workload.LoadAccessTrace(tracePath)
		if err != nil {
			return nil, err
		}
		logrus.Infof("loaded %s accesses from %s", humanize.Comma(int64(len(accesses))), tracePath)
		return accesses, nil
	}
	genCfg.Seed = seed
	genCfg.PageSize = pageSize
	return workload.GenerateAccesses(genCfg)
}

// runSimulation builds an engine from cfg and replays accesses in order.
func runSimulation(cfg sim.Config, accesses []workload.Access) (sim.StatsSnapshot, *trace.SimulationTrace, error) {
	var data sim.DataSource
	switch dataSource {
	case "", "zero":
	case "synthetic":
		data = workload.NewSyntheticData(workload.DefaultDataMix(), sim.NewPartitionedRNG(sim.NewSimulationKey(cfg.Seed)))
	default:
		return sim.StatsSnapshot{}, nil, fmt.Errorf("unknown data source %q (valid: zero, synthetic)", dataSource)
	}

	engine, err := sim.NewMigrationEngine(cfg, nil, data)
	if err != nil {
		return sim.StatsSnapshot{}, nil, err
	}
	for _, a := range accesses {
		engine.Access(a.TimePs, a.Address, a.Size, a.IsWrite, a.Requester)
	}
	return engine.FinalizeStats(), engine.Trace(), nil
}

func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	fmt.Fprintln(w, "=== Decision Trace ===")
	fmt.Fprintf(w, "Decisions            : %d (%d migrated, %d prefetched, %d skipped)\n",
		s.TotalDecisions, s.MigratedCount, s.PrefetchedCount, s.SkippedCount)
	fmt.Fprintf(w, "Unique Pages Moved   : %d\n", s.UniquePages)
	fmt.Fprintf(w, "Evictions            : %d (%d dirty)\n", s.Evictions, s.DirtyEvictions)
	fmt.Fprintf(w, "Mean Ratio           : %.2f\n", s.MeanCompressionRatio)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addWorkloadFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&genCfg.Accesses, "accesses", genCfg.Accesses, "Number of synthetic accesses")
	cmd.Flags().IntVar(&genCfg.Requesters, "requesters", genCfg.Requesters, "Number of synthetic requesters")
	cmd.Flags().IntVar(&genCfg.Pages, "pages", genCfg.Pages, "Synthetic footprint in pages")
	cmd.Flags().IntVar(&genCfg.HotPages, "hot-pages", genCfg.HotPages, "Pages in the hot set")
	cmd.Flags().Float64Var(&genCfg.HotFraction, "hot-fraction", genCfg.HotFraction, "Probability an access goes to the hot set")
	cmd.Flags().Float64Var(&genCfg.WriteFraction, "write-fraction", genCfg.WriteFraction, "Probability an access is a write")
	cmd.Flags().Float64Var(&genCfg.MeanGapNs, "mean-gap-ns", genCfg.MeanGapNs, "Mean gap between accesses of one requester (ns)")
	cmd.Flags().StringVar(&genCfg.Arrival, "arrival", genCfg.Arrival, "Gap process between accesses (poisson, gamma, weibull)")
	cmd.Flags().Float64Var(&genCfg.ArrivalCV, "arrival-cv", genCfg.ArrivalCV, "Gap coefficient of variation for gamma and weibull")
	cmd.Flags().Int64Var(&genCfg.AccessSize, "access-size", genCfg.AccessSize, "Bytes per synthetic access")
}

// init sets up CLI flags and subcommands
func init() {
	for _, c := range []*cobra.Command{runCmd, generateCmd} {
		c.Flags().Int64Var(&seed, "seed", 42, "Seed for placement, synthetic accesses and page contents")
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
		addWorkloadFlags(c)
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "YAML engine config (defaults when empty)")
	runCmd.Flags().StringVar(&tracePath, "trace", "", "CSV access trace (time_ps,address,size,is_write,requester); synthetic when empty")
	runCmd.Flags().StringVar(&traceLevel, "trace-level", string(trace.TraceLevelNone), "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Write Prometheus metrics to this textfile")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run label for exported metrics (random when empty)")
	runCmd.Flags().IntVar(&capacity, "capacity", -1, "Local capacity in pages (overrides the config)")
	runCmd.Flags().StringVar(&codec, "codec", "", "Enable compression with this codec (overrides the config)")
	runCmd.Flags().StringVar(&dataSource, "data", "zero", "Page contents for compression (zero, synthetic)")

	generateCmd.Flags().StringVar(&exportPath, "out", "accesses.csv", "Destination CSV")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(generateCmd)
}
