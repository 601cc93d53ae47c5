// Package fleet manages a set of independently solved ships sharing one rule
// library. Ships live as ECS entities; each carries its own solver state and
// an adaptive per-tick work budget.
package fleet

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/shipwright/rules"
	"github.com/pthm-cable/shipwright/ship"
)

// Tag carries a ship's stable id.
type Tag struct {
	ID ShipID
}

// Solver carries a ship's engine state.
type Solver struct {
	Ship *ship.Ship
}

// Config holds the fleet's construction parameters.
type Config struct {
	NodesPerAxis int
	MaxShips     int

	Budget      int
	MinBudget   int
	MaxBudget   int
	MinTickTime time.Duration
	MaxTickTime time.Duration
}

// Fleet owns the ECS world of ships and the shared rule library.
type Fleet struct {
	cfg   Config
	rules *rules.Set

	world      *ecs.World
	shipMapper *ecs.Map3[Tag, Solver, Budget]
	shipFilter *ecs.Filter3[Tag, Solver, Budget]

	ids      *IDPool
	entities map[ShipID]ecs.Entity
}

// TickReport summarizes one fleet tick for telemetry.
type TickReport struct {
	Busy          bool // Any ship still has queued work
	Backlog       int  // Total queued operations across ships
	ChunksChanged int  // Chunks that received collapse writes
	BudgetRaises  int
	BudgetLowers  int
}

// New creates an empty fleet solving against the given rule library.
func New(cfg Config, rs *rules.Set) (*Fleet, error) {
	if cfg.MaxShips < 1 {
		return nil, fmt.Errorf("fleet: max ships must be at least 1, got %d", cfg.MaxShips)
	}

	world := ecs.NewWorld()
	return &Fleet{
		cfg:        cfg,
		rules:      rs,
		world:      world,
		shipMapper: ecs.NewMap3[Tag, Solver, Budget](world),
		shipFilter: ecs.NewFilter3[Tag, Solver, Budget](world),
		ids:        NewIDPool(cfg.MaxShips),
		entities:   make(map[ShipID]ecs.Entity),
	}, nil
}

// Rules returns the fleet's current rule library.
func (f *Fleet) Rules() *rules.Set {
	return f.rules
}

// Len returns the number of live ships.
func (f *Fleet) Len() int {
	return len(f.entities)
}

// Chunks returns the total chunk count across all ships.
func (f *Fleet) Chunks() int {
	total := 0
	query := f.shipFilter.Query()
	for query.Next() {
		_, solver, _ := query.Get()
		total += len(solver.Ship.Chunks())
	}
	return total
}

// Budget returns the current work allowance of a ship.
func (f *Fleet) Budget(id ShipID) (int, bool) {
	entity, ok := f.entities[id]
	if !ok {
		return 0, false
	}
	_, _, budget := f.shipMapper.Get(entity)
	return budget.Ops, true
}

// Spawn creates a new empty ship and returns its id. Fails when the id pool
// is exhausted.
func (f *Fleet) Spawn() (ShipID, error) {
	id, ok := f.ids.Acquire()
	if !ok {
		return 0, fmt.Errorf("fleet: ship limit %d reached", f.cfg.MaxShips)
	}

	s, err := ship.New(f.cfg.NodesPerAxis)
	if err != nil {
		f.ids.Release(id)
		return 0, err
	}

	budget := NewBudget(f.cfg.Budget, f.cfg.MinBudget, f.cfg.MaxBudget,
		f.cfg.MinTickTime, f.cfg.MaxTickTime)
	entity := f.shipMapper.NewEntity(&Tag{ID: id}, &Solver{Ship: s}, &budget)
	f.entities[id] = entity

	slog.Info("ship spawned", "ship", id, "ships", len(f.entities))
	return id, nil
}

// Despawn removes a ship and recycles its id.
func (f *Fleet) Despawn(id ShipID) error {
	entity, ok := f.entities[id]
	if !ok {
		return fmt.Errorf("fleet: unknown ship %d", id)
	}
	f.world.RemoveEntity(entity)
	delete(f.entities, id)
	f.ids.Release(id)

	slog.Info("ship despawned", "ship", id, "ships", len(f.entities))
	return nil
}

// Ship returns a ship's engine by id.
func (f *Fleet) Ship(id ShipID) (*ship.Ship, bool) {
	entity, ok := f.entities[id]
	if !ok {
		return nil, false
	}
	_, solver, _ := f.shipMapper.Get(entity)
	return solver.Ship, true
}

// Tick runs one budgeted solver tick on every ship and adapts each ship's
// budget to how long its tick took.
func (f *Fleet) Tick() TickReport {
	var report TickReport

	query := f.shipFilter.Query()
	for query.Next() {
		tag, solver, budget := query.Get()

		start := time.Now()
		busy, changed := solver.Ship.Tick(budget.Ops, f.rules)
		elapsed := time.Since(start)

		report.ChunksChanged += len(changed)
		report.Backlog += solver.Ship.QueuedWork()
		if busy {
			report.Busy = true
		}

		if adj, raised := budget.Adjust(elapsed, busy); adj {
			slog.Debug("budget adjusted",
				"ship", tag.ID, "ops", budget.Ops, "elapsed", elapsed)
			if raised {
				report.BudgetRaises++
			} else {
				report.BudgetLowers++
			}
		}
	}
	return report
}

// SetRules swaps the shared rule library and queues every ship's cells for
// re-propagation. The next ticks converge the fleet onto the new rules.
func (f *Fleet) SetRules(rs *rules.Set) {
	f.rules = rs

	query := f.shipFilter.Query()
	for query.Next() {
		_, solver, _ := query.Get()
		solver.Ship.OnRulesChanged()
	}
	slog.Info("rule library swapped", "patterns", len(rs.Patterns()))
}
