package main

import "log"

// Stun phases. Recovering is a fixed grace window after the stun timer
// expires; movement input stays suppressed until it ends.
const (
	StunNone = iota
	StunActive
	StunRecovering
)

const (
	// vertical impulse as a fixed fraction of knockback force
	stunVerticalRatio = 0.4
	// recovery grace window (animation-length fallback)
	StunRecoveryGrace = 0.8
)

// StunResolver applies knockback+stun to its entity and owns the stun
// timer and recovery transition. It is independent of who caused the hit;
// only the victim's owning peer runs it authoritatively.
type StunResolver struct {
	Phase int
	timer float64
	body  *Body

	// OnPhase fires on every transition so the owner can broadcast a
	// cosmetic replica to remote peers.
	OnPhase func(phase int, duration float64)
}

// NewStunResolver binds a resolver to the entity's physics body
func NewStunResolver(body *Body) *StunResolver {
	return &StunResolver{body: body}
}

// ApplyKnockbackAndStun zeroes current velocity, applies the knockback
// impulse and starts the stun timer. A request while already stunned is
// rejected and the running timer is left untouched — arrival order of
// concurrent attackers is not guaranteed, so this guard is the defense
// against double-stun rather than any transactional lock.
func (s *StunResolver) ApplyKnockbackAndStun(dirX, dirZ, force, duration float64) bool {
	if s.Phase == StunActive {
		log.Printf("stun: rejected, already stunned (%.2fs remaining)", s.timer)
		return false
	}
	nx, nz := Normalize2D(dirX, dirZ)
	s.body.VX = nx * force
	s.body.VZ = nz * force
	s.body.VY = force * stunVerticalRatio
	s.setPhase(StunActive, duration)
	return true
}

// Update advances the stun timer: Stunned -> Recovering -> Normal
func (s *StunResolver) Update(dt float64) {
	if s.Phase == StunNone {
		return
	}
	s.timer -= dt
	if s.timer > 0 {
		return
	}
	switch s.Phase {
	case StunActive:
		s.setPhase(StunRecovering, StunRecoveryGrace)
	case StunRecovering:
		s.setPhase(StunNone, 0)
	}
}

// Clear cancels any running stun, e.g. when the entity dies mid-stun
func (s *StunResolver) Clear() {
	if s.Phase == StunNone {
		return
	}
	s.setPhase(StunNone, 0)
}

func (s *StunResolver) setPhase(phase int, duration float64) {
	s.Phase = phase
	s.timer = duration
	if s.OnPhase != nil {
		s.OnPhase(phase, duration)
	}
}

// IsStunned reports whether the entity is in the hard-stun window. The
// recovery grace still suppresses movement but a fresh stun may land.
func (s *StunResolver) IsStunned() bool {
	return s.Phase == StunActive
}

// SuppressesInput reports whether movement/ability input is ignored
func (s *StunResolver) SuppressesInput() bool {
	return s.Phase != StunNone
}

// Remaining returns the current phase timer (tests and cosmetic mirrors)
func (s *StunResolver) Remaining() float64 {
	return s.timer
}
