package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollectorWindow(t *testing.T) {
	p := NewPerfCollector(4)

	for i := 0; i < 6; i++ {
		p.StartTick()
		p.StartPhase(PhaseEdit)
		p.StartPhase(PhaseSolve)
		p.EndTick()
	}

	s := p.Stats()
	if s.AvgTickDuration < 0 {
		t.Error("negative average tick duration")
	}
	if s.MaxTickDuration < s.MinTickDuration {
		t.Errorf("max %v below min %v", s.MaxTickDuration, s.MinTickDuration)
	}
	if _, ok := s.PhaseAvg[PhaseEdit]; !ok {
		t.Error("edit phase missing from averages")
	}
	if _, ok := s.PhaseAvg[PhaseSolve]; !ok {
		t.Error("solve phase missing from averages")
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	p := NewPerfCollector(8)
	s := p.Stats()
	if s.AvgTickDuration != 0 || s.TicksPerSecond != 0 {
		t.Errorf("empty collector stats = %+v", s)
	}
	if s.PhaseAvg == nil || s.PhasePct == nil {
		t.Error("empty collector must return usable maps")
	}
}

func TestPerfCollectorPhaseAccumulation(t *testing.T) {
	p := NewPerfCollector(2)

	p.StartTick()
	p.StartPhase(PhaseSolve)
	time.Sleep(time.Millisecond)
	p.StartPhase(PhaseSolve)
	time.Sleep(time.Millisecond)
	p.EndTick()

	s := p.Stats()
	if s.PhaseAvg[PhaseSolve] < 2*time.Millisecond {
		t.Errorf("solve phase = %v, want >= 2ms", s.PhaseAvg[PhaseSolve])
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	s := PerfStats{
		AvgTickDuration: 3 * time.Millisecond,
		PhasePct: map[string]float64{
			PhaseEdit:  40,
			PhaseSolve: 60,
		},
	}
	rec := s.ToCSV(120)
	if rec.WindowEnd != 120 {
		t.Errorf("WindowEnd = %d", rec.WindowEnd)
	}
	if rec.AvgTickUS != 3000 {
		t.Errorf("AvgTickUS = %d", rec.AvgTickUS)
	}
	if rec.EditPct != 40 || rec.SolvePct != 60 {
		t.Errorf("phase pcts = %v, %v", rec.EditPct, rec.SolvePct)
	}
}
