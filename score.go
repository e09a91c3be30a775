package main

// Score constants
const (
	DashHitScore     = 10
	ExplosionPenalty = 5
	SurvivalBonus    = 5
)

// ScoreLedger is the replicated per-actor score/kills/deaths/hits record.
// All mutation funnels through the room that owns the ledger, one call at
// a time, so read-modify-write updates cannot lose increments the way
// concurrent last-writer-wins property writes could. Deltas are
// commutative; the floor-at-zero clamp is applied at write time.
type ScoreLedger struct {
	props *PropertyStore

	// OnChange fires after any mutation of an actor's record
	OnChange func(actor string)
}

// NewScoreLedger wraps a property store
func NewScoreLedger(props *PropertyStore) *ScoreLedger {
	return &ScoreLedger{props: props}
}

// Register creates the zeroed record for a new actor
func (s *ScoreLedger) Register(actor string) {
	s.props.SetActor(actor, PropPlayerScore, 0)
	s.props.SetActor(actor, PropHitsTaken, 0)
	s.props.SetActor(actor, PropKills, 0)
	s.props.SetActor(actor, PropDeaths, 0)
	s.notify(actor)
}

// Remove drops an actor's record on leave
func (s *ScoreLedger) Remove(actor string) {
	s.props.RemoveActor(actor)
}

// AddDashHitScore rewards a landed dash hit: score and kill credit to the
// attacker
func (s *ScoreLedger) AddDashHitScore(attacker string) {
	s.ApplyScoreDelta(attacker, DashHitScore)
	s.props.SetActor(attacker, PropKills, s.props.ActorInt(attacker, PropKills)+1)
	s.notify(attacker)
}

// RemoveExplosionScore penalizes a victim caught in a detonation. Score
// never goes negative.
func (s *ScoreLedger) RemoveExplosionScore(victim string) {
	s.ApplyScoreDelta(victim, -ExplosionPenalty)
	s.notify(victim)
}

// ApplyScoreDelta applies a commutative score change with a floor of 0
func (s *ScoreLedger) ApplyScoreDelta(actor string, delta int) {
	score := s.props.ActorInt(actor, PropPlayerScore) + delta
	if score < 0 {
		score = 0
	}
	s.props.SetActor(actor, PropPlayerScore, score)
}

// IncrementHits bumps the victim's dash-hit counter and returns the new
// count
func (s *ScoreLedger) IncrementHits(actor string) int {
	n := s.props.ActorInt(actor, PropHitsTaken) + 1
	s.props.SetActor(actor, PropHitsTaken, n)
	s.notify(actor)
	return n
}

// ResetHits clears the dash-hit counter (on respawn)
func (s *ScoreLedger) ResetHits(actor string) {
	s.props.SetActor(actor, PropHitsTaken, 0)
	s.notify(actor)
}

// IncrementDeaths records a death and awards the survival bonus: every
// other actor still under the hit threshold gets a flat bonus. The room
// is the single writer for this ledger, so the fan-out runs exactly once
// per death.
func (s *ScoreLedger) IncrementDeaths(actor string) {
	s.props.SetActor(actor, PropDeaths, s.props.ActorInt(actor, PropDeaths)+1)
	s.notify(actor)

	for _, other := range s.props.Actors() {
		if other == actor {
			continue
		}
		if s.props.ActorInt(other, PropHitsTaken) >= DeathHitThreshold {
			continue
		}
		s.ApplyScoreDelta(other, SurvivalBonus)
		s.notify(other)
	}
}

// Read accessors: pure replicated-property lookups, absent actors read 0

func (s *ScoreLedger) GetScore(actor string) int {
	return s.props.ActorInt(actor, PropPlayerScore)
}

func (s *ScoreLedger) GetKills(actor string) int {
	return s.props.ActorInt(actor, PropKills)
}

func (s *ScoreLedger) GetDeaths(actor string) int {
	return s.props.ActorInt(actor, PropDeaths)
}

func (s *ScoreLedger) GetHits(actor string) int {
	return s.props.ActorInt(actor, PropHitsTaken)
}

// Record returns the full broadcast record for one actor
func (s *ScoreLedger) Record(actor string) ScoreRecordMsg {
	return ScoreRecordMsg{
		Actor:     actor,
		Score:     s.GetScore(actor),
		Kills:     s.GetKills(actor),
		Deaths:    s.GetDeaths(actor),
		HitsTaken: s.GetHits(actor),
	}
}

func (s *ScoreLedger) notify(actor string) {
	if s.OnChange != nil {
		s.OnChange(actor)
	}
}
