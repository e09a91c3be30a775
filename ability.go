package main

// AbilityKind identifies the ability
type AbilityKind int

const (
	AbilityDash       AbilityKind = 0 // forward burst with hit detection
	AbilitySpeedBoost AbilityKind = 1 // flat movement speed multiplier
)

// Base ability parameters (stack level 1)
const (
	DashSpeed    = 18.0
	DashDuration = 0.25
	DashCooldown = 2.0

	SpeedBoostMul      = 1.6
	SpeedBoostDuration = 4.0
	SpeedBoostCooldown = 10.0

	MaxStackLevel = 3
)

// StackParams are the per-level scaling knobs. Levels are a policy table,
// not a formula: level 2 extends reach and hits harder, level 3 adds the
// chain window (a second activation allowed during cooldown).
type StackParams struct {
	DistanceMul  float64
	KnockbackMul float64
	CooldownDiv  float64 // applied as baseCooldown / CooldownDiv
	Chain        bool
}

var stackTable = [MaxStackLevel]StackParams{
	{DistanceMul: 1.0, KnockbackMul: 1.0, CooldownDiv: 1.0},
	{DistanceMul: 1.5, KnockbackMul: 1.3, CooldownDiv: 1.25},
	{DistanceMul: 1.5, KnockbackMul: 1.5, CooldownDiv: 1.5, Chain: true},
}

// Ability is a timed, stackable, cooldown-gated action owned by one entity.
// It only mutates its own timers; knockback, messaging and VFX are the
// caller's concern so activation stays replay-deterministic.
type Ability struct {
	Kind       AbilityKind
	StackLevel int // 1..MaxStackLevel
	Active     bool
	Cooldown   float64 // remaining cooldown
	Timer      float64 // remaining active duration

	baseSpeed    float64
	baseDuration float64
	baseCooldown float64

	chainUsed bool // one chain activation per cooldown window
}

// NewAbility creates an ability at stack level 1
func NewAbility(kind AbilityKind) *Ability {
	a := &Ability{Kind: kind, StackLevel: 1}
	switch kind {
	case AbilitySpeedBoost:
		a.baseSpeed = SpeedBoostMul
		a.baseDuration = SpeedBoostDuration
		a.baseCooldown = SpeedBoostCooldown
	default:
		a.baseSpeed = DashSpeed
		a.baseDuration = DashDuration
		a.baseCooldown = DashCooldown
	}
	return a
}

// Params returns the scaling knobs for the current stack level
func (a *Ability) Params() StackParams {
	lvl := a.StackLevel
	if lvl < 1 {
		lvl = 1
	} else if lvl > MaxStackLevel {
		lvl = MaxStackLevel
	}
	return stackTable[lvl-1]
}

// CanActivate returns true if the ability is ready. A level-3 ability may
// chain once while its cooldown is still running.
func (a *Ability) CanActivate() bool {
	if a.Active {
		return false
	}
	if a.Cooldown <= 0 {
		return true
	}
	return a.Params().Chain && !a.chainUsed
}

// TryActivate starts the ability and returns true on success
func (a *Ability) TryActivate() bool {
	if !a.CanActivate() {
		return false
	}
	if a.Cooldown > 0 {
		a.chainUsed = true
	} else {
		a.chainUsed = false
		a.Cooldown = a.baseCooldown / a.Params().CooldownDiv
	}
	a.Active = true
	a.Timer = a.baseDuration
	return true
}

// Update ticks the cooldown and active timers
func (a *Ability) Update(dt float64) {
	if a.Cooldown > 0 {
		a.Cooldown -= dt
		if a.Cooldown < 0 {
			a.Cooldown = 0
		}
	}
	if a.Active {
		a.Timer -= dt
		if a.Timer <= 0 {
			a.Active = false
			a.Timer = 0
		}
	}
}

// Speed returns the effective speed parameter for the current stack level.
// For Dash the distance multiplier is applied to speed over the fixed
// active window, which is how reach scales.
func (a *Ability) Speed() float64 {
	return a.baseSpeed * a.Params().DistanceMul
}

// KnockbackMultiplier returns the stack-scaled knockback factor
func (a *Ability) KnockbackMultiplier() float64 {
	return a.Params().KnockbackMul
}

// AddStack raises the stack level up to MaxStackLevel
func (a *Ability) AddStack() {
	if a.StackLevel < MaxStackLevel {
		a.StackLevel++
	}
}

// ResetStacks returns the ability to level 1 (on respawn)
func (a *Ability) ResetStacks() {
	a.StackLevel = 1
}
