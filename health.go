package main

const (
	EntityMaxHealth   = 8.0
	DeathHitThreshold = 8   // dash hits before forced death
	RespawnDelay      = 3.0 // seconds
)

// HealthLedger is the authoritative hit-point and hit-count bookkeeping for
// one entity. Only the entity's owning peer mutates it; remote peers mirror
// the broadcast result and never re-derive death on their own.
type HealthLedger struct {
	MaxHealth float64
	Current   float64
	HitsTaken int // dash damage only
	Dead      bool

	respawnT float64

	// Fired on the owning peer only. Callers use these to broadcast the
	// transition and trigger score ops.
	OnDeath   func(killerID string)
	OnRespawn func()
}

// NewHealthLedger creates a full-health ledger
func NewHealthLedger(maxHealth float64) *HealthLedger {
	return &HealthLedger{MaxHealth: maxHealth, Current: maxHealth}
}

// ApplyDamage subtracts amount (clamped to [0, max]) and returns true if the
// entity died from this hit. Damage to a dead entity is a no-op. Only Dash
// damage counts toward the hit-threshold death condition.
func (h *HealthLedger) ApplyDamage(amount float64, sourceID string, kind DamageKind) bool {
	if h.Dead || amount <= 0 {
		return false
	}
	h.Current = Clamp(h.Current-amount, 0, h.MaxHealth)
	if kind == DamageDash {
		h.HitsTaken++
	}
	if h.Current <= 0 || h.HitsTaken >= DeathHitThreshold {
		h.die(sourceID)
		return true
	}
	return false
}

// die latches the dead flag and schedules the respawn countdown. Idempotent:
// a second call while dead does nothing.
func (h *HealthLedger) die(killerID string) {
	if h.Dead {
		return
	}
	h.Dead = true
	h.respawnT = RespawnDelay
	if h.OnDeath != nil {
		h.OnDeath(killerID)
	}
}

// Kill forces death regardless of remaining health (e.g. fell out of bounds)
func (h *HealthLedger) Kill(killerID string) {
	h.die(killerID)
}

// Update advances the respawn countdown while dead. Only the owning peer
// ticks this; remote mirrors wait for the respawn broadcast.
func (h *HealthLedger) Update(dt float64) {
	if !h.Dead {
		return
	}
	h.respawnT -= dt
	if h.respawnT <= 0 {
		h.Respawn()
	}
}

// Respawn resets health and the dash-hit counter and clears the dead flag
func (h *HealthLedger) Respawn() {
	if !h.Dead {
		return
	}
	h.Dead = false
	h.Current = h.MaxHealth
	h.HitsTaken = 0
	h.respawnT = 0
	if h.OnRespawn != nil {
		h.OnRespawn()
	}
}

// IsAlive reports whether the entity can currently take damage
func (h *HealthLedger) IsAlive() bool {
	return !h.Dead
}
