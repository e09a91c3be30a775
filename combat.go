package main

// Detection and knockback tuning
const (
	HitCooldown         = 0.2 // seconds between hits from one attacker
	DetectRadius        = 1.2
	DetectForwardOffset = 0.8
	MaxEngageRange      = 3.0
	BaseKnockback       = 15.0
	DashDamage          = 1.0
	DashStunDuration    = 2.0

	// destructible props get an upward kick before normalization
	UpwardForceRatio = 0.5
)

// propForceMultiplier keys knockback scaling off the prop's tag.
// Unknown tags fall through to 1.0.
var propForceMultiplier = map[string]float64{
	"Fragile":     2.1,
	"HeavyObject": 0.7,
}

// CombatDetector runs the per-tick proximity scan while the owner's dash
// is active, and proposes hit events. It never mutates victim state
// directly: player hits cross the ownership boundary as messages to the
// victim's owning peer; destructible props are applied locally and
// mirrored as a fire-and-forget visual sync.
type CombatDetector struct {
	owner  *Entity
	world  *World
	hitCD  float64
	propCD float64

	// EmitHit sends a HitEvent toward the victim's owning peer
	EmitHit func(HitEventMsg)
	// MirrorPropHit broadcasts a destructible knock for remote presentation
	MirrorPropHit func(PropHitMsg)
}

// NewCombatDetector binds a detector to its owning entity and world view
func NewCombatDetector(owner *Entity, world *World) *CombatDetector {
	return &CombatDetector{owner: owner, world: world}
}

// Update performs one detection tick. The player scan and the
// destructible scan share the detection volume but run independently,
// each gated by its own per-hit cooldown.
func (d *CombatDetector) Update(dt float64) {
	if d.hitCD > 0 {
		d.hitCD -= dt
	}
	if d.propCD > 0 {
		d.propCD -= dt
	}
	if !d.owner.Dash.Active || d.owner.Health.Dead {
		return
	}

	cx, cz := d.owner.ForwardPoint(DetectForwardOffset)
	if d.hitCD <= 0 {
		if victim := d.findVictim(cx, cz); victim != nil {
			d.proposeHit(victim)
			d.hitCD = HitCooldown
		}
	}
	if d.propCD <= 0 {
		if prop := d.findProp(cx, cz); prop != nil {
			d.knockProp(prop)
			d.propCD = HitCooldown
		}
	}
}

// findVictim returns the first valid candidate in the detection volume.
// First match wins, not nearest: candidate order comes from grid
// iteration, so the tie-break between simultaneous candidates is
// arbitrary. This mirrors the original behavior.
func (d *CombatDetector) findVictim(cx, cz float64) *Entity {
	for _, cand := range d.world.OverlapEntities(cx, cz, DetectRadius) {
		if cand.ID == d.owner.ID {
			continue
		}
		if cand.Health.Dead || cand.Stun.IsStunned() {
			continue
		}
		if Distance(d.owner.Body.X, d.owner.Body.Z, cand.Body.X, cand.Body.Z) > MaxEngageRange {
			continue
		}
		return cand
	}
	return nil
}

func (d *CombatDetector) findProp(cx, cz float64) *Destructible {
	props := d.world.OverlapProps(cx, cz, DetectRadius)
	if len(props) == 0 {
		return nil
	}
	return props[0]
}

// proposeHit computes knockback and sends the HitEvent to the victim's
// owning peer. Knockback points from attacker to victim, scaled by the
// attacker's stack level.
func (d *CombatDetector) proposeHit(victim *Entity) {
	dirX := victim.Body.X - d.owner.Body.X
	dirZ := victim.Body.Z - d.owner.Body.Z
	nx, nz := Normalize2D(dirX, dirZ)
	force := BaseKnockback * d.owner.Dash.KnockbackMultiplier()

	if d.EmitHit == nil {
		return
	}
	d.EmitHit(HitEventMsg{
		AttackerID: d.owner.ID,
		VictimID:   victim.ID,
		Kind:       DamageDash,
		Amount:     DashDamage,
		DirX:       nx,
		DirZ:       nz,
		Force:      force,
		StunDur:    DashStunDuration,
	})
}

// knockProp applies force to a destructible prop locally (props have no
// owning peer) and mirrors the knock to remote peers
func (d *CombatDetector) knockProp(prop *Destructible) {
	dirX := prop.Body.X - d.owner.Body.X
	dirZ := prop.Body.Z - d.owner.Body.Z
	nx, ny, nz := Normalize3D(dirX, UpwardForceRatio, dirZ)

	mul, ok := propForceMultiplier[prop.Tag]
	if !ok {
		mul = 1.0
	}
	force := BaseKnockback * d.owner.Dash.KnockbackMultiplier() * mul
	prop.Body.Grounded = false
	prop.Body.ApplyImpulse(nx*force, ny*force, nz*force)

	if d.MirrorPropHit != nil {
		d.MirrorPropHit(PropHitMsg{
			PropID: prop.ID,
			DirX:   nx,
			DirY:   ny,
			DirZ:   nz,
			Force:  force,
		})
	}
}
