package main

import "crypto/rand"

// Arena dimensions on the ground plane (meters)
const (
	ArenaWidth = 60.0
	ArenaDepth = 60.0

	Gravity        = 20.0 // m/s², applied while airborne
	GroundY        = 0.0
	groundFriction = 0.88 // horizontal velocity multiplier per tick while grounded
	fallKillY      = -10.0
)

// Body is the minimal physics surface the combat core reads and writes.
// Integration, collision response and forces are treated as an opaque
// service; this is its request interface.
type Body struct {
	X, Y, Z    float64
	VX, VY, VZ float64
	Radius     float64
	Grounded   bool
}

// Step integrates one tick of the simplified physics model: velocity,
// gravity while airborne, friction while grounded. The ground plane
// exists only inside the arena; a body pushed past the edge keeps
// falling.
func (b *Body) Step(dt float64) {
	b.X += b.VX * dt
	b.Y += b.VY * dt
	b.Z += b.VZ * dt

	if b.Y <= GroundY && b.VY <= 0 && onPlatform(b.X, b.Z) {
		b.Y = GroundY
		b.VY = 0
		b.Grounded = true
		b.VX *= groundFriction
		b.VZ *= groundFriction
	} else {
		b.Grounded = false
		b.VY -= Gravity * dt
	}
}

func onPlatform(x, z float64) bool {
	return x >= 0 && x <= ArenaWidth && z >= 0 && z <= ArenaDepth
}

// ApplyImpulse adds an instantaneous velocity change
func (b *Body) ApplyImpulse(vx, vy, vz float64) {
	b.VX += vx
	b.VY += vy
	b.VZ += vz
}

// Falling reports the airborne-and-descending signal the state machine
// consumes
func (b *Body) Falling() bool {
	return !b.Grounded && b.VY < 0
}

// Destructible is a physics prop on the destructible layer. It has no
// owning peer: force is applied locally and mirrored to remote peers as a
// fire-and-forget visual sync.
type Destructible struct {
	ID   string
	Tag  string // keys the force multiplier table
	Body *Body
}

// World is the per-peer view of the simulation space: the local entity,
// remote mirrors and shared props, indexed for broad-phase queries.
type World struct {
	entities []*Entity
	props    []*Destructible
	grid     SpatialGrid
}

// NewWorld creates an empty world
func NewWorld() *World {
	return &World{}
}

// AddEntity registers an entity for proximity queries
func (w *World) AddEntity(e *Entity) {
	w.entities = append(w.entities, e)
}

// RemoveEntity drops an entity by ID
func (w *World) RemoveEntity(id string) {
	for i, e := range w.entities {
		if e.ID == id {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			return
		}
	}
}

// Entity returns the entity with the given ID, or nil
func (w *World) Entity(id string) *Entity {
	for _, e := range w.entities {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// AddProp registers a destructible prop
func (w *World) AddProp(p *Destructible) {
	w.props = append(w.props, p)
}

// Prop returns the destructible with the given ID, or nil
func (w *World) Prop(id string) *Destructible {
	for _, p := range w.props {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Rebuild reindexes all bodies into the broad-phase grid. Called once per
// tick before detection queries.
func (w *World) Rebuild() {
	w.grid.Clear()
	for i, e := range w.entities {
		w.grid.Insert(e.Body.X, e.Body.Z, BodyRef{Kind: 'e', Idx: i})
	}
	for i, p := range w.props {
		w.grid.Insert(p.Body.X, p.Body.Z, BodyRef{Kind: 'd', Idx: i})
	}
}

// OverlapEntities returns entities whose bodies overlap the query circle,
// in grid iteration order. Callers that need a deterministic winner must
// pick their own tie-break.
func (w *World) OverlapEntities(x, z, radius float64) []*Entity {
	var out []*Entity
	for _, ref := range w.grid.Query(x, z, radius) {
		if ref.Kind != 'e' {
			continue
		}
		e := w.entities[ref.Idx]
		if circleOverlap(x, z, radius, e.Body.X, e.Body.Z, e.Body.Radius) {
			out = append(out, e)
		}
	}
	return out
}

// OverlapProps returns destructible props overlapping the query circle
func (w *World) OverlapProps(x, z, radius float64) []*Destructible {
	var out []*Destructible
	for _, ref := range w.grid.Query(x, z, radius) {
		if ref.Kind != 'd' {
			continue
		}
		p := w.props[ref.Idx]
		if circleOverlap(x, z, radius, p.Body.X, p.Body.Z, p.Body.Radius) {
			out = append(out, p)
		}
	}
	return out
}

func circleOverlap(x1, z1, r1, x2, z2, r2 float64) bool {
	dx := x2 - x1
	dz := z2 - z1
	radSum := r1 + r2
	return dx*dx+dz*dz <= radSum*radSum
}

// RandomSpawn returns a spawn position away from the arena edges
func RandomSpawn() (float64, float64) {
	return ArenaWidth/4 + randFloat()*ArenaWidth/2,
		ArenaDepth/4 + randFloat()*ArenaDepth/2
}

// randFloat returns a pseudo-random float64 in [0, 1) (xorshift, seeded
// from crypto/rand at startup)
var randSrc uint64

func randFloat() float64 {
	randSrc ^= randSrc << 13
	randSrc ^= randSrc >> 7
	randSrc ^= randSrc << 17
	if randSrc == 0 {
		randSrc = 1
	}
	return float64(randSrc%10000) / 10000.0
}

func init() {
	b := make([]byte, 8)
	rand.Read(b)
	for i, v := range b {
		randSrc |= uint64(v) << (uint(i) * 8)
	}
	if randSrc == 0 {
		randSrc = 1
	}
}
