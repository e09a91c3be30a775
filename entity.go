package main

import (
	"fmt"
	"math"
)

const (
	EntityRadius = 0.6
	MoveSpeed    = 6.0 // m/s base movement
)

// Entity is one combat participant. Exactly one peer is authoritative for
// its movement and ability activation; that authority never migrates.
// Remote copies only mirror broadcast state.
type Entity struct {
	ID      string
	OwnerID string // actor ID of the owning peer
	Name    string

	Body   *Body
	Health *HealthLedger
	Stun   *StunResolver

	Dash       *Ability
	SpeedBoost *Ability

	State  EntityState
	Facing float64 // radians on the ground plane

	// current movement input, owner-driven
	InputX, InputZ float64
}

// NewEntity wires an entity from its parts, failing fast if a core
// dependency is missing rather than at first use
func NewEntity(id, ownerID, name string) (*Entity, error) {
	if id == "" || ownerID == "" {
		return nil, fmt.Errorf("entity: missing identity (id=%q owner=%q)", id, ownerID)
	}
	x, z := RandomSpawn()
	body := &Body{X: x, Z: z, Radius: EntityRadius, Grounded: true}
	e := &Entity{
		ID:         id,
		OwnerID:    ownerID,
		Name:       name,
		Body:       body,
		Health:     NewHealthLedger(EntityMaxHealth),
		Stun:       NewStunResolver(body),
		Dash:       NewAbility(AbilityDash),
		SpeedBoost: NewAbility(AbilitySpeedBoost),
	}
	return e, nil
}

// SetInput updates the movement input vector and facing. Stunned entities
// ignore input entirely.
func (e *Entity) SetInput(x, z float64) {
	if e.Stun.SuppressesInput() {
		return
	}
	e.InputX = x
	e.InputZ = z
	if math.Hypot(x, z) > moveInputThreshold {
		e.Facing = math.Atan2(z, x)
	}
}

// TryDash activates the dash ability if the entity may act
func (e *Entity) TryDash() bool {
	if e.Health.Dead || e.Stun.SuppressesInput() {
		return false
	}
	return e.Dash.TryActivate()
}

// TrySpeedBoost activates the speed boost if the entity may act
func (e *Entity) TrySpeedBoost() bool {
	if e.Health.Dead || e.Stun.SuppressesInput() {
		return false
	}
	return e.SpeedBoost.TryActivate()
}

// Update advances one tick on the owning peer: abilities, stun, movement,
// physics, respawn countdown, state machine
func (e *Entity) Update(dt float64) {
	e.Dash.Update(dt)
	e.SpeedBoost.Update(dt)
	e.Stun.Update(dt)
	e.Health.Update(dt)

	if !e.Health.Dead {
		e.applyMovement(dt)
	}
	e.Body.Step(dt)

	if e.Body.Y < fallKillY && !e.Health.Dead {
		e.Health.Kill("")
	}

	inputMag := math.Hypot(e.InputX, e.InputZ)
	e.State = NextState(e.State, StateInputs{
		DashActive:    e.Dash.Active,
		InputMag:      inputMag,
		Grounded:      e.Body.Grounded,
		FallingSignal: e.Body.Falling(),
		Stunned:       e.Stun.SuppressesInput(),
	})
}

// applyMovement writes the owner-driven velocity for this tick. During a
// dash, velocity is the dash burst along facing; during stun, knockback
// velocity is left alone for the physics step to decay.
func (e *Entity) applyMovement(dt float64) {
	if e.Stun.SuppressesInput() {
		return
	}
	if e.Dash.Active {
		e.Body.VX = math.Cos(e.Facing) * e.Dash.Speed()
		e.Body.VZ = math.Sin(e.Facing) * e.Dash.Speed()
		return
	}
	speed := MoveSpeed
	if e.SpeedBoost.Active {
		speed *= e.SpeedBoost.Speed()
	}
	nx, nz := Normalize2D(e.InputX, e.InputZ)
	e.Body.VX = nx * speed
	e.Body.VZ = nz * speed
}

// ForwardPoint returns a point offset forward from the entity on the
// ground plane (the center of the detection volume)
func (e *Entity) ForwardPoint(offset float64) (float64, float64) {
	return e.Body.X + math.Cos(e.Facing)*offset,
		e.Body.Z + math.Sin(e.Facing)*offset
}

// Relocate moves the entity to a fresh spawn point and clears motion.
// Stacks reset to level 1 on respawn.
func (e *Entity) Relocate() {
	x, z := RandomSpawn()
	e.Body.X = x
	e.Body.Z = z
	e.Body.Y = GroundY
	e.Body.VX, e.Body.VY, e.Body.VZ = 0, 0, 0
	e.Body.Grounded = true
	e.Stun.Clear()
	e.Dash.ResetStacks()
	e.SpeedBoost.ResetStacks()
	e.InputX, e.InputZ = 0, 0
	e.State = StateIdle
}

// ToStateMsg converts to the broadcast transform sync
func (e *Entity) ToStateMsg() EntityStateMsg {
	return EntityStateMsg{
		EntityID: e.ID,
		X:        round1(e.Body.X),
		Y:        round1(e.Body.Y),
		Z:        round1(e.Body.Z),
		Facing:   round1(e.Facing),
		State:    int(e.State),
	}
}
