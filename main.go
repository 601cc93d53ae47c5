package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pthm-cable/shipwright/config"
	"github.com/pthm-cable/shipwright/fleet"
	"github.com/pthm-cable/shipwright/grid"
	"github.com/pthm-cable/shipwright/rules"
	"github.com/pthm-cable/shipwright/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	rulesPath := flag.String("rules", "", "Path to rule library (empty = config, then embedded defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot (empty = use config)")
	seed := flag.Int64("seed", 0, "RNG seed for the edit workload (0 = time-based)")
	ships := flag.Int("ships", 1, "Number of ships to solve")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = run until the fleet settles)")
	editPeriod := flag.Int("edit-period", 16, "Ticks between random block edits (0 = no edits)")
	editSpan := flag.Int("edit-span", 6, "Half-width of the random edit region in block cells")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Rule library: flag beats config path, empty falls back to embedded
	libPath := cfg.Rules.Path
	if *rulesPath != "" {
		libPath = *rulesPath
	}
	var rs *rules.Set
	var err error
	if libPath != "" {
		rs, err = rules.Load(libPath)
	} else {
		rs, err = rules.Default()
	}
	if err != nil {
		slog.Error("failed to load rule library", "error", err)
		os.Exit(1)
	}

	f, err := fleet.New(fleet.Config{
		NodesPerAxis: cfg.Ship.NodesPerAxis,
		MaxShips:     cfg.Fleet.MaxShips,
		Budget:       cfg.Tick.Budget,
		MinBudget:    cfg.Tick.MinBudget,
		MaxBudget:    cfg.Tick.MaxBudget,
		MinTickTime:  cfg.Derived.MinTickTime,
		MaxTickTime:  cfg.Derived.MaxTickTime,
	}, rs)
	if err != nil {
		slog.Error("failed to create fleet", "error", err)
		os.Exit(1)
	}

	ids := make([]fleet.ShipID, 0, *ships)
	for i := 0; i < *ships; i++ {
		id, err := f.Spawn()
		if err != nil {
			slog.Error("failed to spawn ship", "error", err)
			os.Exit(1)
		}
		ids = append(ids, id)
	}

	dir := cfg.Telemetry.OutputDir
	if *outputDir != "" {
		dir = *outputDir
	}
	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		slog.Error("failed to snapshot config", "error", err)
	}

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(rngSeed))

	slog.Info("starting solver soak",
		"seed", rngSeed,
		"ships", len(ids),
		"max_ticks", *maxTicks,
		"edit_period", *editPeriod,
		"blocks", rs.BlockCount()-1,
		"patterns", len(rs.Patterns()),
	)

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow)
	window := telemetry.NewWindowCollector(0)
	budget := cfg.Tick.Budget

	for tick := 0; ; tick++ {
		perf.StartTick()

		// Random edit workload: toggle a block somewhere near the origin of
		// a random ship.
		if *editPeriod > 0 && tick%*editPeriod == 0 {
			perf.StartPhase(telemetry.PhaseEdit)
			id := ids[rng.Intn(len(ids))]
			s, _ := f.Ship(id)

			span := *editSpan
			pos := grid.V3(rng.Intn(2*span)-span, rng.Intn(2*span)-span, rng.Intn(2*span)-span)
			block := rules.BlockIndex(rng.Intn(rs.BlockCount()))
			if err := s.PlaceBlock(pos, block, f.Rules()); err != nil {
				slog.Error("edit failed", "ship", id, "pos", pos, "error", err)
				os.Exit(1)
			}
			window.RecordEdit()
		}

		perf.StartPhase(telemetry.PhaseSolve)
		report := f.Tick()

		perf.StartPhase(telemetry.PhaseTelemetry)
		window.RecordTick(report.Backlog, report.ChunksChanged, report.Busy)
		for i := 0; i < report.BudgetRaises; i++ {
			window.RecordBudgetChange(true)
		}
		for i := 0; i < report.BudgetLowers; i++ {
			window.RecordBudgetChange(false)
		}
		if b, ok := f.Budget(ids[0]); ok {
			budget = b
		}

		if cfg.Telemetry.FlushInterval > 0 && tick > 0 && tick%cfg.Telemetry.FlushInterval == 0 {
			stats := window.Flush(int32(tick), f.Len(), f.Chunks(), budget)
			slog.Info("window", "stats", stats)
			if err := out.WriteTelemetry(stats); err != nil {
				slog.Error("failed to write telemetry", "error", err)
			}
			if err := out.WritePerf(perf.Stats(), int32(tick)); err != nil {
				slog.Error("failed to write perf", "error", err)
			}
		}
		perf.EndTick()

		if *maxTicks > 0 && tick+1 >= *maxTicks {
			slog.Info("max ticks reached", "tick", tick+1)
			return
		}
		if *maxTicks == 0 && *editPeriod == 0 && !report.Busy && report.Backlog == 0 {
			slog.Info("fleet settled", "tick", tick+1)
			return
		}
	}
}
