package main

import (
	"encoding/json"
	"log"
	"time"
)

const (
	TickRate       = 60 // simulation ticks per second
	SyncRate       = 20 // transform syncs per second
	TickDuration   = time.Second / TickRate
	syncEveryTicks = TickRate / SyncRate
)

// Transport is the reliable-ordered messaging seam between a peer and the
// room. Delivery is best-effort fire-and-forget from the core's point of
// view: a lost HitEvent means no damage was applied, never a retry.
type Transport interface {
	Send(env Envelope) error
}

// Peer is the client-side combat core. It runs a single-threaded fixed
// tick simulation, is authoritative for exactly one entity, and mirrors
// everything else from received broadcasts.
type Peer struct {
	ActorID string
	Name    string

	entity   *Entity
	world    *World
	detector *CombatDetector

	transport Transport
	seq       uint64            // outgoing, per-sender monotonic
	lastSeq   map[string]uint64 // inbound dedupe per sender

	// authority role for global simulation; assigned by the room. Traps
	// are mirrored on every peer with locally ticking countdowns, so the
	// role can migrate mid-countdown; only the master deals damage.
	isMaster   bool
	traps      []*Trap
	trapPool   TrapPool
	indicators *IndicatorTracker

	// replicated read-only views
	scores map[string]ScoreRecordMsg

	countdownRunning   bool
	countdownRemaining float64

	tick uint64
}

// NewPeer builds the simulation core for one actor. Fails fast if the
// entity cannot be assembled.
func NewPeer(actorID, name string, transport Transport) (*Peer, error) {
	entity, err := NewEntity(actorID, actorID, name)
	if err != nil {
		return nil, err
	}
	p := &Peer{
		ActorID:    actorID,
		Name:       name,
		entity:     entity,
		world:      NewWorld(),
		transport:  transport,
		lastSeq:    make(map[string]uint64),
		indicators: NewIndicatorTracker(),
		scores:     make(map[string]ScoreRecordMsg),
	}
	p.world.AddEntity(entity)
	seedProps(p.world)
	p.detector = NewCombatDetector(entity, p.world)
	p.detector.EmitHit = p.emitHit
	p.detector.MirrorPropHit = p.mirrorPropHit
	p.wireEntityHooks()
	return p, nil
}

// seedProps places the static destructible layout every peer shares
func seedProps(w *World) {
	layout := []struct {
		tag  string
		x, z float64
	}{
		{"Fragile", 15, 15},
		{"Fragile", 45, 45},
		{"HeavyObject", 30, 12},
		{"HeavyObject", 30, 48},
		{"Crate", 12, 30},
		{"Crate", 48, 30},
	}
	for i, l := range layout {
		w.AddProp(&Destructible{
			ID:   "prop" + GenerateID(2) + string(rune('a'+i)),
			Tag:  l.tag,
			Body: &Body{X: l.x, Z: l.z, Radius: 0.5, Grounded: true},
		})
	}
}

func (p *Peer) wireEntityHooks() {
	p.entity.Stun.OnPhase = func(phase int, duration float64) {
		p.broadcast(MsgStun, StunMsg{EntityID: p.entity.ID, Phase: phase, Duration: duration})
	}
	p.entity.Health.OnDeath = func(killerID string) {
		p.entity.Stun.Clear()
		p.broadcast(MsgDeath, DeathMsg{EntityID: p.entity.ID, KillerID: killerID})
		p.broadcast(MsgHealth, p.healthMsg())
		p.sendScoreOp(ScoreOpDeath, p.ActorID)
	}
	p.entity.Health.OnRespawn = func() {
		p.entity.Relocate()
		p.broadcast(MsgRespawn, RespawnMsg{
			EntityID: p.entity.ID,
			X:        p.entity.Body.X,
			Y:        p.entity.Body.Y,
			Z:        p.entity.Body.Z,
		})
		p.broadcast(MsgHealth, p.healthMsg())
		p.sendScoreOp(ScoreOpHitRst, p.ActorID)
	}
}

// Entity exposes the local authoritative entity (input wiring and tests)
func (p *Peer) Entity() *Entity {
	return p.entity
}

// World exposes the peer's simulation view
func (p *Peer) World() *World {
	return p.world
}

// IsMaster reports whether this peer holds the global-events authority role
func (p *Peer) IsMaster() bool {
	return p.isMaster
}

// Indicators exposes the danger-marker tracker (presentation reads it)
func (p *Peer) Indicators() *IndicatorTracker {
	return p.indicators
}

// CountdownRemaining returns the locally tracked match time left
func (p *Peer) CountdownRemaining() float64 {
	return p.countdownRemaining
}

// Scores returns the replicated score record for an actor (zero if absent)
func (p *Peer) Scores(actor string) ScoreRecordMsg {
	return p.scores[actor]
}

// Tick advances the simulation one step
func (p *Peer) Tick(dt float64) {
	p.tick++
	p.world.Rebuild()

	p.entity.Update(dt)
	p.detector.Update(dt)

	// remote mirrors only advance their cosmetic stun countdown; position
	// and health arrive over the wire
	for _, e := range p.world.entities {
		if e.ID != p.entity.ID {
			e.Stun.Update(dt)
		}
	}

	for _, prop := range p.world.props {
		prop.Body.Step(dt)
	}

	p.updateTraps(dt)
	p.indicators.Update(p.entity.Body.X, p.entity.Body.Z, p.traps)

	if p.countdownRunning {
		p.countdownRemaining -= dt
		if p.countdownRemaining < 0 {
			p.countdownRemaining = 0
		}
	}

	if p.tick%syncEveryTicks == 0 {
		p.broadcast(MsgEntity, p.entity.ToStateMsg())
	}
}

// PlaceTrap arms a trap in the shared scene and announces it. Only the
// master peer places traps; every peer mirrors them.
func (p *Peer) PlaceTrap(mode TrapMode, x, z float64) *Trap {
	if !p.isMaster {
		return nil
	}
	t := p.acquireTrap("", mode, x, z)
	p.broadcast(MsgTrapPlace, TrapMsg{TrapID: t.ID, Mode: int(mode), X: x, Z: z})
	return t
}

// ActivateTrap starts a timed trap's countdown and announces it so every
// mirror counts down in parallel
func (p *Peer) ActivateTrap(t *Trap) bool {
	if !p.isMaster || !t.Activate() {
		return false
	}
	p.broadcast(MsgTrapArm, TrapMsg{TrapID: t.ID})
	return true
}

func (p *Peer) acquireTrap(id string, mode TrapMode, x, z float64) *Trap {
	t := p.trapPool.Acquire(mode, x, z)
	if id != "" {
		t.ID = id
	}
	t.OnDetonate = p.onDetonate
	t.OnCooled = p.onTrapCooled
	p.traps = append(p.traps, t)
	return t
}

func (p *Peer) trapByID(id string) *Trap {
	for _, t := range p.traps {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// announceTraps re-broadcasts live traps so a late joiner mirrors them;
// peers that already track a trap drop the duplicate by ID
func (p *Peer) announceTraps() {
	if !p.isMaster {
		return
	}
	for _, t := range p.traps {
		p.broadcast(MsgTrapPlace, TrapMsg{TrapID: t.ID, Mode: int(t.Mode), X: t.X, Z: t.Z})
		if t.State == TrapCountdown || t.State == TrapShaking {
			p.broadcast(MsgTrapArm, TrapMsg{TrapID: t.ID, Remaining: t.timer})
		}
	}
}

func (p *Peer) updateTraps(dt float64) {
	for _, t := range p.traps {
		t.Update(dt)
		// only the authority turns a collision into a detonation; mirror
		// traps stay armed until the broadcast arrives
		if p.isMaster && t.Mode == CollisionDetonation && t.State == TrapArmed {
			victims := p.world.OverlapEntities(t.X, t.Z, 1.0)
			if len(victims) > 0 {
				t.Trigger()
			}
		}
	}
}

// onDetonate broadcasts the detonation and routes an explosion HitEvent
// to each victim's owning peer (including ourselves). On non-master
// peers a trap detonating on its local countdown is cosmetic; the
// authority's hits arrive over the wire.
func (p *Peer) onDetonate(t *Trap) {
	if !p.isMaster {
		return
	}
	p.broadcast(MsgDetonation, DetonationMsg{
		TrapID: t.ID, X: t.X, Y: t.Y, Z: t.Z, Radius: t.BlastRadius,
	})
	for _, hit := range t.BlastHits(p.world) {
		victim := p.world.Entity(hit.VictimID)
		if victim == nil {
			continue // destroyed between detection and delivery
		}
		if victim.ID == p.entity.ID {
			p.applyHit(hit)
			continue
		}
		p.sendTo(victim.OwnerID, MsgHit, hit)
	}
}

func (p *Peer) onTrapCooled(t *Trap) {
	for i, cur := range p.traps {
		if cur == t {
			p.traps = append(p.traps[:i], p.traps[i+1:]...)
			break
		}
	}
	p.trapPool.Release(t)
}

// emitHit routes a dash HitEvent to the victim's owning peer and claims
// the dash-hit score. Self-hits (solo testing) apply directly.
func (p *Peer) emitHit(hit HitEventMsg) {
	victim := p.world.Entity(hit.VictimID)
	if victim == nil {
		return
	}
	p.sendTo(victim.OwnerID, MsgHit, hit)
	p.sendScoreOp(ScoreOpDashHit, p.ActorID)
}

func (p *Peer) mirrorPropHit(m PropHitMsg) {
	p.broadcast(MsgPropHit, m)
}

// applyHit is the authoritative damage path, runs only for hits targeting
// our own entity
func (p *Peer) applyHit(hit HitEventMsg) {
	if p.entity.Health.Dead {
		return
	}
	p.entity.Stun.ApplyKnockbackAndStun(hit.DirX, hit.DirZ, hit.Force, hit.StunDur)
	died := p.entity.Health.ApplyDamage(hit.Amount, hit.AttackerID, hit.Kind)
	if !died {
		// death path broadcasts its own health sync via the OnDeath hook
		p.broadcast(MsgHealth, p.healthMsg())
	}
	switch hit.Kind {
	case DamageDash:
		p.sendScoreOp(ScoreOpHitInc, p.ActorID)
	case DamageExplosion:
		p.sendScoreOp(ScoreOpExpl, p.ActorID)
	}
}

func (p *Peer) healthMsg() HealthMsg {
	return HealthMsg{
		EntityID:  p.entity.ID,
		Health:    p.entity.Health.Current,
		HitsTaken: p.entity.Health.HitsTaken,
		Dead:      p.entity.Health.Dead,
	}
}

// Handle processes one inbound envelope. Duplicate or out-of-order
// envelopes from a sender are dropped by sequence number, so every
// handler below is idempotent by construction.
func (p *Peer) Handle(env InEnvelope) {
	if env.From != "" && env.Seq > 0 {
		if last, ok := p.lastSeq[env.From]; ok && env.Seq <= last {
			return
		}
		p.lastSeq[env.From] = env.Seq
	}

	switch env.T {
	case MsgHit:
		var m HitEventMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if m.VictimID != p.entity.ID {
			return // misrouted or stale target
		}
		p.applyHit(m)

	case MsgEntity:
		var m EntityStateMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if mirror := p.mirror(m.EntityID); mirror != nil {
			mirror.Body.X = m.X
			mirror.Body.Y = m.Y
			mirror.Body.Z = m.Z
			mirror.Facing = m.Facing
			mirror.State = EntityState(m.State)
		}

	case MsgStun:
		var m StunMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		// cosmetic replica: run a parallel countdown from the received
		// duration instead of re-deriving the stun
		if mirror := p.mirror(m.EntityID); mirror != nil {
			mirror.Stun.Phase = m.Phase
			mirror.Stun.timer = m.Duration
		}

	case MsgHealth:
		var m HealthMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if mirror := p.mirror(m.EntityID); mirror != nil {
			mirror.Health.Current = m.Health
			mirror.Health.HitsTaken = m.HitsTaken
			mirror.Health.Dead = m.Dead
		}

	case MsgDeath:
		var m DeathMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if mirror := p.mirror(m.EntityID); mirror != nil {
			mirror.Health.Dead = true
			mirror.Stun.Clear()
		}

	case MsgRespawn:
		var m RespawnMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if mirror := p.mirror(m.EntityID); mirror != nil {
			mirror.Health.Dead = false
			mirror.Health.Current = mirror.Health.MaxHealth
			mirror.Health.HitsTaken = 0
			mirror.Body.X = m.X
			mirror.Body.Y = m.Y
			mirror.Body.Z = m.Z
		}

	case MsgTrapPlace:
		var m TrapMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if p.trapByID(m.TrapID) == nil {
			p.acquireTrap(m.TrapID, TrapMode(m.Mode), m.X, m.Z)
		}

	case MsgTrapArm:
		var m TrapMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if trap := p.trapByID(m.TrapID); trap != nil {
			if trap.Activate() && m.Remaining > 0 {
				trap.timer = m.Remaining
			}
		}

	case MsgDetonation:
		var m DetonationMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		// timed mirrors usually fire on their own countdown and this
		// collapses the drift; for collision traps it is the only path
		if trap := p.trapByID(m.TrapID); trap != nil {
			trap.Detonate()
		}

	case MsgPropHit:
		var m PropHitMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		if prop := p.world.Prop(m.PropID); prop != nil {
			prop.Body.Grounded = false
			prop.Body.ApplyImpulse(m.DirX*m.Force, m.DirY*m.Force, m.DirZ*m.Force)
		}

	case MsgScores:
		var m ScoreRecordMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		p.scores[m.Actor] = m

	case MsgPeerJoin:
		var m PeerInfoMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		p.addMirror(m.ActorID, m.Name)
		p.announceTraps()

	case MsgPeerLeave:
		var m PeerInfoMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		p.world.RemoveEntity(m.ActorID)
		delete(p.scores, m.ActorID)

	case MsgMaster:
		var m PeerInfoMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		p.isMaster = m.ActorID == p.ActorID

	case MsgCountdown:
		var m CountdownMsg
		if err := json.Unmarshal(env.D, &m); err != nil {
			return
		}
		p.startCountdown(m.Duration, m.StartTime, m.ServerTime)

	case MsgMatchEnd:
		p.countdownRunning = false
		p.countdownRemaining = 0
	}
}

// ApplySnapshot reconciles a late joiner from the replicated room state
func (p *Peer) ApplySnapshot(s RoomSnapshot) {
	p.isMaster = s.MasterID == p.ActorID
	for _, a := range s.Actors {
		if a.ActorID == p.ActorID {
			continue
		}
		mirror := p.addMirror(a.ActorID, a.Name)
		if mirror != nil {
			mirror.Body.X = a.X
			mirror.Body.Y = a.Y
			mirror.Body.Z = a.Z
		}
		p.scores[a.ActorID] = ScoreRecordMsg{
			Actor: a.ActorID, Score: a.Score, Kills: a.Kills,
			Deaths: a.Deaths, HitsTaken: a.HitsTaken,
		}
	}
	if s.CountdownStarted {
		p.startCountdown(s.CountdownDuration, s.CountdownStartTime, s.ServerTime)
	}
}

// startCountdown reconstructs remaining time from the shared server-clock
// start timestamp, so late joiners land within clock-sync tolerance of
// existing peers
func (p *Peer) startCountdown(duration, startTime, serverNow float64) {
	remaining := duration - (serverNow - startTime)
	if remaining < 0 {
		remaining = 0
	}
	p.countdownRunning = remaining > 0
	p.countdownRemaining = remaining
}

func (p *Peer) mirror(entityID string) *Entity {
	if entityID == p.entity.ID {
		return nil // never let remote state overwrite our authority
	}
	return p.world.Entity(entityID)
}

func (p *Peer) addMirror(actorID, name string) *Entity {
	if actorID == p.ActorID || p.world.Entity(actorID) != nil {
		return p.world.Entity(actorID)
	}
	mirror, err := NewEntity(actorID, actorID, name)
	if err != nil {
		log.Printf("peer %s: mirror for %s: %v", p.ActorID, actorID, err)
		return nil
	}
	p.world.AddEntity(mirror)
	return mirror
}

// StartMatch asks the room to begin the countdown (master only; the room
// enforces the role)
func (p *Peer) StartMatch() {
	p.send(Envelope{T: MsgStart})
}

func (p *Peer) sendScoreOp(op, actor string) {
	p.send(Envelope{T: MsgScoreOp, Data: ScoreOpMsg{Op: op, Actor: actor}})
}

func (p *Peer) broadcast(t string, data interface{}) {
	p.send(Envelope{T: t, Data: data})
}

func (p *Peer) sendTo(ownerID, t string, data interface{}) {
	p.send(Envelope{T: t, To: ownerID, Data: data})
}

func (p *Peer) send(env Envelope) {
	if p.transport == nil {
		return
	}
	p.seq++
	env.From = p.ActorID
	env.Seq = p.seq
	if err := p.transport.Send(env); err != nil {
		log.Printf("peer %s: send %s: %v", p.ActorID, env.T, err)
	}
}
