package main

import "sort"

// Trap lifecycle states
type TrapState int

const (
	TrapArmed TrapState = iota
	TrapCountdown
	TrapShaking
	TrapDetonated
	TrapCooling
)

// TrapMode selects how a trap fires
type TrapMode int

const (
	TimedDetonation TrapMode = iota
	CollisionDetonation
)

// Trap tuning
const (
	TrapBlastRadius     = 4.0
	TrapBaseDamage      = 1.0
	TrapFloorDamage     = 0.5 // falloff never drops a victim's damage below this
	TrapDetonationDelay = 3.0
	TrapShakeDuration   = 1.0
	TrapDisableDelay    = 2.0
	TrapStunDuration    = 1.0
	TrapKnockback       = 10.0
	TrapUpwardBias      = 0.6
)

// Trap is a pooled, reusable area-damage emitter. Detonate is idempotent:
// however many triggers race in, exactly one damage pass happens.
type Trap struct {
	ID      string
	Mode    TrapMode
	X, Y, Z float64

	State        TrapState
	timer        float64
	hasDetonated bool

	BlastRadius float64
	BaseDamage  float64

	// OnDetonate receives the one-and-only detonation
	OnDetonate func(*Trap)
	// OnCooled fires when the disable delay ends and the trap may return
	// to its pool
	OnCooled func(*Trap)
}

// NewTrap creates an armed trap at the given position
func NewTrap(mode TrapMode, x, z float64) *Trap {
	return &Trap{
		ID:          GenerateID(4),
		Mode:        mode,
		X:           x,
		Z:           z,
		State:       TrapArmed,
		BlastRadius: TrapBlastRadius,
		BaseDamage:  TrapBaseDamage,
	}
}

// Activate starts the countdown on a timed trap. No-op for collision traps
// or traps that already left the armed state.
func (t *Trap) Activate() bool {
	if t.Mode != TimedDetonation || t.State != TrapArmed {
		return false
	}
	t.State = TrapCountdown
	t.timer = TrapDetonationDelay
	return true
}

// Trigger fires a collision trap immediately. Qualifying collisions on an
// already-detonated trap collapse into the first explosion.
func (t *Trap) Trigger() {
	if t.Mode != CollisionDetonation {
		return
	}
	t.Detonate()
}

// Update advances the countdown/shake/cooling timers one tick
func (t *Trap) Update(dt float64) {
	switch t.State {
	case TrapCountdown:
		t.timer -= dt
		if t.timer <= TrapShakeDuration {
			t.State = TrapShaking
		}
	case TrapShaking:
		t.timer -= dt
		if t.timer <= 0 {
			t.Detonate()
		}
	case TrapDetonated:
		t.State = TrapCooling
		t.timer = TrapDisableDelay
	case TrapCooling:
		t.timer -= dt
		if t.timer <= 0 {
			if t.OnCooled != nil {
				t.OnCooled(t)
			}
		}
	}
}

// Shaking reports whether the pre-detonation jitter window is running
// (presentation reads this; the core only drives the timer)
func (t *Trap) Shaking() bool {
	return t.State == TrapShaking
}

// Detonate performs the single damage pass. Idempotent via the
// hasDetonated latch.
func (t *Trap) Detonate() {
	if t.hasDetonated {
		return
	}
	t.hasDetonated = true
	t.State = TrapDetonated
	if t.OnDetonate != nil {
		t.OnDetonate(t)
	}
}

// BlastDamage returns the damage for a victim at the given distance:
// linear falloff with a floor so every victim inside the radius takes
// non-zero damage
func (t *Trap) BlastDamage(distance float64) float64 {
	dmg := t.BaseDamage * (1 - distance/t.BlastRadius)
	if dmg < TrapFloorDamage {
		return TrapFloorDamage
	}
	return dmg
}

// BlastHits computes the hit events for every entity inside the blast
// radius. Traps have no attacker; knockback points away from the trap
// with an upward bias.
func (t *Trap) BlastHits(world *World) []HitEventMsg {
	var hits []HitEventMsg
	for _, victim := range world.OverlapEntities(t.X, t.Z, t.BlastRadius) {
		if victim.Health.Dead {
			continue
		}
		dist := Distance(t.X, t.Z, victim.Body.X, victim.Body.Z)
		if dist > t.BlastRadius {
			continue
		}
		dirX := victim.Body.X - t.X
		dirZ := victim.Body.Z - t.Z
		nx, ny, nz := Normalize3D(dirX, TrapUpwardBias, dirZ)
		hits = append(hits, HitEventMsg{
			VictimID: victim.ID,
			Kind:     DamageExplosion,
			Amount:   t.BlastDamage(dist),
			DirX:     nx,
			DirY:     ny,
			DirZ:     nz,
			Force:    TrapKnockback,
			StunDur:  TrapStunDuration,
		})
	}
	return hits
}

// Reset re-arms a pooled trap: the detonation latch, timers and any
// dynamic body state added during the blast are cleared before reuse
func (t *Trap) Reset(x, z float64) {
	t.X = x
	t.Y = 0
	t.Z = z
	t.State = TrapArmed
	t.timer = 0
	t.hasDetonated = false
}

// TrapPool recycles trap instances instead of allocating per use
type TrapPool struct {
	free []*Trap
}

// Acquire returns a re-armed trap from the pool, or a fresh one
func (p *TrapPool) Acquire(mode TrapMode, x, z float64) *Trap {
	if n := len(p.free); n > 0 {
		t := p.free[n-1]
		p.free = p.free[:n-1]
		t.Mode = mode
		t.Reset(x, z)
		return t
	}
	return NewTrap(mode, x, z)
}

// Release returns a trap to the free pool
func (p *TrapPool) Release(t *Trap) {
	t.OnDetonate = nil
	t.OnCooled = nil
	p.free = append(p.free, t)
}

// Danger indicators: presentation-side threat markers shown while a
// tracked player is near a counting-down trap. The pool size caps how
// many can be visible at once; beyond that the furthest are evicted.
const (
	MaxTrackingDistance = 8.0
	IndicatorPoolSize   = 4
)

// IndicatorTracker decides which traps currently show a threat marker
// for the local player
type IndicatorTracker struct {
	visible map[string]bool
}

// NewIndicatorTracker creates an empty tracker
func NewIndicatorTracker() *IndicatorTracker {
	return &IndicatorTracker{visible: make(map[string]bool)}
}

// Update recomputes marker visibility from the player position and the
// set of live traps. Within-range counting-down traps show a marker; when
// more than the pool allows are in range, the furthest are dropped first.
func (it *IndicatorTracker) Update(px, pz float64, traps []*Trap) {
	type cand struct {
		id   string
		dist float64
	}
	var inRange []cand
	for _, t := range traps {
		if t.State != TrapCountdown && t.State != TrapShaking {
			continue
		}
		d := Distance(px, pz, t.X, t.Z)
		if d <= MaxTrackingDistance {
			inRange = append(inRange, cand{id: t.ID, dist: d})
		}
	}
	sort.Slice(inRange, func(i, j int) bool { return inRange[i].dist < inRange[j].dist })
	if len(inRange) > IndicatorPoolSize {
		inRange = inRange[:IndicatorPoolSize]
	}

	next := make(map[string]bool, len(inRange))
	for _, c := range inRange {
		next[c.id] = true
	}
	it.visible = next
}

// Visible reports whether the trap currently shows a threat marker
func (it *IndicatorTracker) Visible(trapID string) bool {
	return it.visible[trapID]
}

// VisibleCount returns the number of active markers
func (it *IndicatorTracker) VisibleCount() int {
	return len(it.visible)
}
