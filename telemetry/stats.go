package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated solver statistics for a tick window.
type WindowStats struct {
	WindowStartTick int32 `csv:"-"`
	WindowEndTick   int32 `csv:"window_end"`

	// Fleet shape at window end
	Ships  int `csv:"ships"`
	Chunks int `csv:"chunks"`

	// Work done during the window
	Edits         int `csv:"edits"`
	ChunksRebuilt int `csv:"chunks_rebuilt"`
	BudgetAtEnd   int `csv:"budget"`
	BudgetRaises  int `csv:"budget_raises"`
	BudgetLowers  int `csv:"budget_lowers"`
	TicksWithWork int `csv:"ticks_with_work"`
	TicksAtRest   int `csv:"ticks_at_rest"`

	// Queue backlog distribution, sampled once per tick
	BacklogMean float64 `csv:"backlog_mean"`
	BacklogStd  float64 `csv:"backlog_std"`
	BacklogP50  float64 `csv:"backlog_p50"`
	BacklogP90  float64 `csv:"backlog_p90"`
	BacklogMax  float64 `csv:"backlog_max"`
}

// LogValue implements slog.LogValuer for structured logging.
func (w WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_end", int(w.WindowEndTick)),
		slog.Int("ships", w.Ships),
		slog.Int("chunks", w.Chunks),
		slog.Int("edits", w.Edits),
		slog.Int("chunks_rebuilt", w.ChunksRebuilt),
		slog.Int("budget", w.BudgetAtEnd),
		slog.Float64("backlog_mean", w.BacklogMean),
		slog.Float64("backlog_p90", w.BacklogP90),
	)
}

// WindowCollector accumulates per-tick solver observations and aggregates
// them into WindowStats when a window closes.
type WindowCollector struct {
	startTick int32

	edits         int
	chunksRebuilt int
	budgetRaises  int
	budgetLowers  int
	ticksWithWork int
	ticksAtRest   int

	backlog []float64
}

// NewWindowCollector creates a collector starting at the given tick.
func NewWindowCollector(startTick int32) *WindowCollector {
	return &WindowCollector{startTick: startTick}
}

// RecordTick records one tick's observations: the total queue backlog after
// the tick, how many chunks changed, and whether work remained.
func (w *WindowCollector) RecordTick(backlog, chunksChanged int, busy bool) {
	w.backlog = append(w.backlog, float64(backlog))
	w.chunksRebuilt += chunksChanged
	if busy {
		w.ticksWithWork++
	} else {
		w.ticksAtRest++
	}
}

// RecordEdit counts one block edit.
func (w *WindowCollector) RecordEdit() {
	w.edits++
}

// RecordBudgetChange counts one budget adaptation step.
func (w *WindowCollector) RecordBudgetChange(raised bool) {
	if raised {
		w.budgetRaises++
	} else {
		w.budgetLowers++
	}
}

// Flush aggregates the window and resets the collector for the next one.
func (w *WindowCollector) Flush(endTick int32, ships, chunks, budget int) WindowStats {
	out := WindowStats{
		WindowStartTick: w.startTick,
		WindowEndTick:   endTick,
		Ships:           ships,
		Chunks:          chunks,
		Edits:           w.edits,
		ChunksRebuilt:   w.chunksRebuilt,
		BudgetAtEnd:     budget,
		BudgetRaises:    w.budgetRaises,
		BudgetLowers:    w.budgetLowers,
		TicksWithWork:   w.ticksWithWork,
		TicksAtRest:     w.ticksAtRest,
	}

	if len(w.backlog) > 0 {
		sort.Float64s(w.backlog)
		out.BacklogMean = stat.Mean(w.backlog, nil)
		if len(w.backlog) > 1 {
			out.BacklogStd = stat.StdDev(w.backlog, nil)
		}
		out.BacklogP50 = stat.Quantile(0.5, stat.Empirical, w.backlog, nil)
		out.BacklogP90 = stat.Quantile(0.9, stat.Empirical, w.backlog, nil)
		out.BacklogMax = w.backlog[len(w.backlog)-1]
	}

	*w = WindowCollector{startTick: endTick, backlog: w.backlog[:0]}
	return out
}
