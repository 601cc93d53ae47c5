package fleet

import "log/slog"

// IDPool hands out stable ship ids from a fixed range. Ids are reused after
// release, oldest first.
type IDPool struct {
	free []ShipID
}

// ShipID identifies one ship for the lifetime of the fleet.
type ShipID uint32

// NewIDPool creates a pool of n ids.
func NewIDPool(n int) *IDPool {
	p := &IDPool{free: make([]ShipID, 0, n)}
	for i := 0; i < n; i++ {
		p.free = append(p.free, ShipID(i+1))
	}
	return p
}

// Acquire takes an id from the pool. Reports false when the pool is empty.
func (p *IDPool) Acquire() (ShipID, bool) {
	if len(p.free) == 0 {
		slog.Warn("ship id pool exhausted")
		return 0, false
	}
	id := p.free[0]
	p.free = p.free[1:]
	return id, true
}

// Release returns an id to the pool.
func (p *IDPool) Release(id ShipID) {
	p.free = append(p.free, id)
}

// Available returns the number of unused ids.
func (p *IDPool) Available() int {
	return len(p.free)
}
