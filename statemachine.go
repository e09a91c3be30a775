package main

// EntityState is the movement state of a combat entity
type EntityState int

const (
	StateIdle EntityState = iota
	StateMoving
	StateDashing
	StateFalling
)

// moveInputThreshold is the input magnitude below which an entity idles
const moveInputThreshold = 0.1

// StateInputs are the external signals the state machine resolves against.
// Grounded and FallingSignal come from the physics collaborator; the rest
// from the entity's own ability and input handling.
type StateInputs struct {
	DashActive    bool
	InputMag      float64
	Grounded      bool
	FallingSignal bool
	Stunned       bool
}

// NextState evaluates the transition rules in fixed priority order:
// stun freezes the current state, dash interrupts everything, falling is
// entered on the physics signal regardless of input, and falling exits
// only when grounded with the falling signal clear. Idle/Moving resolve
// from input magnitude.
func NextState(current EntityState, in StateInputs) EntityState {
	if in.Stunned {
		return current
	}
	if in.DashActive {
		return StateDashing
	}
	if current == StateFalling {
		if in.Grounded && !in.FallingSignal {
			return stateFromInput(in.InputMag)
		}
		return StateFalling
	}
	if in.FallingSignal {
		return StateFalling
	}
	// covers Dashing -> Idle/Moving when the dash window closes
	return stateFromInput(in.InputMag)
}

func stateFromInput(mag float64) EntityState {
	if mag > moveInputThreshold {
		return StateMoving
	}
	return StateIdle
}

func (s EntityState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMoving:
		return "moving"
	case StateDashing:
		return "dashing"
	case StateFalling:
		return "falling"
	}
	return "unknown"
}
