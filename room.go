package main

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	maxPeersPerRoom = 8
	maxRooms        = 100

	// MatchDuration is the countdown length shared through room properties
	MatchDuration = 180.0
)

// RoomIdleTimeout is how long an empty room lingers before cleanup.
// Variable so integration tests can shrink it.
var RoomIdleTimeout = 60 * time.Second

// Broadcaster is the send-side of a connected peer
type Broadcaster interface {
	SendJSON(msg interface{})
	SendBinary(data []byte)
}

type roomMember struct {
	actorID      string
	name         string
	authPlayerID int64
	client       Broadcaster
	lastX, lastZ float64
}

// Room hosts one match: it routes envelopes between peers, owns the
// replicated property store and the score ledger, and designates the
// master peer. All mutation is serialized through the room mutex, which
// is what makes the ledger's read-modify-write updates safe and the
// survival-bonus fan-out exactly-once.
type Room struct {
	ID   string
	Name string

	mu      sync.RWMutex
	members map[string]*roomMember
	master  string

	props  *PropertyStore
	scores *ScoreLedger

	started bool
	ended   bool
	startT  float64 // server clock, unix seconds

	// per-sender dedupe for score ops; relayed combat messages are
	// deduped at the receiving peers
	opSeq map[string]uint64

	db        *DB
	analytics *Analytics

	lastActive time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewRoom creates an empty room
func NewRoom(name string, db *DB, analytics *Analytics) *Room {
	r := &Room{
		ID:         GenerateUUID(),
		Name:       name,
		members:    make(map[string]*roomMember),
		props:      NewPropertyStore(),
		opSeq:      make(map[string]uint64),
		db:         db,
		analytics:  analytics,
		lastActive: time.Now(),
		stop:       make(chan struct{}),
	}
	r.scores = NewScoreLedger(r.props)
	r.scores.OnChange = func(actor string) {
		r.broadcastLocked(Envelope{T: MsgScores, Data: r.scores.Record(actor)})
	}
	r.props.OnRoomChange = func(key string, value interface{}) {
		r.broadcastLocked(Envelope{T: MsgProp, Data: PropMsg{Key: key, Value: value}})
	}
	return r
}

// Run watches for match end and idle cleanup
func (r *Room) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.checkMatchEnd()
		case <-r.stop:
			return
		}
	}
}

// Stop terminates the room watcher
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// Join adds a peer, assigns its actor ID and registers its replicated
// score record. The first peer becomes master.
func (r *Room) Join(name string, authPlayerID int64, client Broadcaster) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= maxPeersPerRoom {
		return "", false
	}
	actorID := GenerateID(4)
	m := &roomMember{actorID: actorID, name: name, authPlayerID: authPlayerID, client: client}
	r.members[actorID] = m
	if r.master == "" {
		r.master = actorID
	}
	r.scores.Register(actorID)
	r.lastActive = time.Now()

	r.broadcastExceptLocked(actorID, Envelope{T: MsgPeerJoin, Data: PeerInfoMsg{ActorID: actorID, Name: name}})
	r.broadcastLocked(Envelope{T: MsgMaster, Data: PeerInfoMsg{ActorID: r.master}})

	if r.analytics != nil {
		r.analytics.Track(EvtPeerJoin, authPlayerID, r.ID, "")
	}
	return actorID, true
}

// Leave removes a peer. Master role migrates to any remaining peer.
func (r *Room) Leave(actorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[actorID]
	if !ok {
		return
	}
	delete(r.members, actorID)
	r.scores.Remove(actorID)
	delete(r.opSeq, actorID)
	r.lastActive = time.Now()

	r.broadcastLocked(Envelope{T: MsgPeerLeave, Data: PeerInfoMsg{ActorID: actorID, Name: m.name}})

	if r.master == actorID {
		r.master = ""
		for id := range r.members {
			r.master = id
			break
		}
		if r.master != "" {
			r.broadcastLocked(Envelope{T: MsgMaster, Data: PeerInfoMsg{ActorID: r.master}})
		}
	}
	if r.analytics != nil {
		r.analytics.Track(EvtPeerLeave, m.authPlayerID, r.ID, "")
	}
}

// PeerCount returns the number of joined peers
func (r *Room) PeerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// MasterID returns the current authority peer
func (r *Room) MasterID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.master
}

// Route relays a peer envelope: targeted messages go to the owning peer
// of env.To, the rest are broadcast to everyone else. Score ops are not
// relayed; they mutate the ledger here.
func (r *Room) Route(senderID string, env InEnvelope) {
	if env.T == MsgScoreOp {
		r.handleScoreOp(senderID, env)
		return
	}
	out := Envelope{T: env.T, From: senderID, To: env.To, Seq: env.Seq, Data: json.RawMessage(env.D)}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActiveTouch()

	if env.T == MsgEntity {
		r.trackPosition(senderID, env.D)
	}
	if env.T == MsgDetonation {
		r.track(senderID, EvtDetonation)
	}
	if env.To != "" {
		if m, ok := r.members[env.To]; ok {
			m.client.SendJSON(out)
		}
		// target gone: drop the event, best-effort delivery
		return
	}
	for id, m := range r.members {
		if id == senderID {
			continue
		}
		m.client.SendJSON(out)
	}
}

// trackPosition keeps last-known transforms for late-join snapshots
func (r *Room) trackPosition(senderID string, raw json.RawMessage) {
	var m EntityStateMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	if member, ok := r.members[senderID]; ok && m.EntityID == senderID {
		member.lastX = m.X
		member.lastZ = m.Z
	}
}

// handleScoreOp applies a score mutation. Duplicate deliveries from the
// same sender are dropped by sequence number; the fan-out inside
// IncrementDeaths runs under the room mutex, exactly once per death.
func (r *Room) handleScoreOp(senderID string, env InEnvelope) {
	var op ScoreOpMsg
	if err := json.Unmarshal(env.D, &op); err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActiveTouch()

	if env.Seq > 0 {
		if last := r.opSeq[senderID]; env.Seq <= last {
			return
		}
		r.opSeq[senderID] = env.Seq
	}

	switch op.Op {
	case ScoreOpDashHit:
		r.scores.AddDashHitScore(op.Actor)
		r.track(senderID, EvtDashHit)
	case ScoreOpExpl:
		r.scores.RemoveExplosionScore(op.Actor)
	case ScoreOpHitInc:
		r.scores.IncrementHits(op.Actor)
	case ScoreOpHitRst:
		r.scores.ResetHits(op.Actor)
	case ScoreOpDeath:
		r.scores.IncrementDeaths(op.Actor)
		r.track(senderID, EvtDeath)
	default:
		log.Printf("room %s: unknown score op %q from %s", r.ID, op.Op, senderID)
	}
}

func (r *Room) track(actorID, evt string) {
	if r.analytics == nil {
		return
	}
	var pid int64
	if m, ok := r.members[actorID]; ok {
		pid = m.authPlayerID
	}
	r.analytics.Track(evt, pid, r.ID, "")
}

// StartCountdown begins the match. Only the master peer may start; the
// start timestamp is the server clock so every peer, including late
// joiners, derives the same remaining time.
func (r *Room) StartCountdown(actorID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actorID != r.master || r.started {
		return false
	}
	r.started = true
	r.startT = serverNow()
	r.props.SetRoom(PropCountdownStartTime, r.startT)
	r.props.SetRoom(PropCountdownStarted, true)
	r.broadcastLocked(Envelope{T: MsgCountdown, Data: CountdownMsg{
		StartTime:  r.startT,
		Duration:   MatchDuration,
		ServerTime: serverNow(),
	}})
	if r.analytics != nil {
		r.analytics.Track(EvtMatchStart, 0, r.ID, "")
	}
	return true
}

// RemainingTime computes the countdown left on the server clock
func (r *Room) RemainingTime() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.started || r.ended {
		return 0
	}
	rem := MatchDuration - (serverNow() - r.startT)
	if rem < 0 {
		return 0
	}
	return rem
}

func (r *Room) checkMatchEnd() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.ended {
		return
	}
	if MatchDuration-(serverNow()-r.startT) > 0 {
		return
	}
	r.ended = true
	r.broadcastLocked(Envelope{T: MsgMatchEnd})
	r.persistMatchLocked()
	if r.analytics != nil {
		r.analytics.Track(EvtMatchEnd, 0, r.ID, "")
	}
}

// persistMatchLocked records the final score records for authenticated
// peers
func (r *Room) persistMatchLocked() {
	if r.db == nil {
		return
	}
	matchID, err := r.db.RecordMatch(r.Name, MatchDuration)
	if err != nil {
		log.Printf("room %s: record match: %v", r.ID, err)
		return
	}
	for id, m := range r.members {
		if m.authPlayerID == 0 {
			continue
		}
		rec := r.scores.Record(id)
		if err := r.db.RecordMatchPlayer(matchID, m.authPlayerID, rec.Score, rec.Kills, rec.Deaths); err != nil {
			log.Printf("room %s: record match player: %v", r.ID, err)
		}
		if err := r.db.UpdateCareerStats(m.authPlayerID, rec.Kills, rec.Deaths, rec.Score); err != nil {
			log.Printf("room %s: update career stats: %v", r.ID, err)
		}
	}
}

// Snapshot builds the msgpack late-join payload from the replicated state
func (r *Room) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := RoomSnapshot{
		RoomID:             r.ID,
		MasterID:           r.master,
		CountdownStarted:   r.props.RoomBool(PropCountdownStarted),
		CountdownStartTime: r.props.RoomFloat(PropCountdownStartTime),
		CountdownDuration:  MatchDuration,
		ServerTime:         serverNow(),
	}
	for id, m := range r.members {
		rec := r.scores.Record(id)
		s.Actors = append(s.Actors, SnapshotActor{
			ActorID:   id,
			Name:      m.name,
			Score:     rec.Score,
			Kills:     rec.Kills,
			Deaths:    rec.Deaths,
			HitsTaken: rec.HitsTaken,
			X:         m.lastX,
			Z:         m.lastZ,
		})
	}
	return msgpack.Marshal(s)
}

// Scores exposes the ledger (tests and HTTP surface)
func (r *Room) Scores() *ScoreLedger {
	return r.scores
}

// IdleSince reports how long the room has been without traffic
func (r *Room) IdleSince() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return time.Since(r.lastActive)
}

func (r *Room) lastActiveTouch() {
	r.lastActive = time.Now()
}

// broadcastLocked sends to every member; callers hold r.mu (read or write)
func (r *Room) broadcastLocked(env Envelope) {
	for _, m := range r.members {
		m.client.SendJSON(env)
	}
}

func (r *Room) broadcastExceptLocked(exceptID string, env Envelope) {
	for id, m := range r.members {
		if id == exceptID {
			continue
		}
		m.client.SendJSON(env)
	}
}

// serverNow is the shared match clock in unix seconds
func serverNow() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// RoomManager handles creation and lookup of rooms
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRoomManager creates an empty manager and starts the idle sweeper
func NewRoomManager() *RoomManager {
	rm := &RoomManager{rooms: make(map[string]*Room)}
	go rm.sweepIdle()
	return rm
}

// sweepIdle removes rooms that were created but never joined, or sat
// empty past the idle timeout
func (rm *RoomManager) sweepIdle() {
	for {
		time.Sleep(RoomIdleTimeout / 2)
		rm.mu.Lock()
		for id, room := range rm.rooms {
			if room.PeerCount() == 0 && room.IdleSince() > RoomIdleTimeout {
				room.Stop()
				delete(rm.rooms, id)
			}
		}
		rm.mu.Unlock()
	}
}

// CreateRoom creates a new room. Returns nil if the limit is reached.
func (rm *RoomManager) CreateRoom(name string, db *DB, analytics *Analytics) *Room {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.rooms) >= maxRooms {
		return nil
	}
	room := NewRoom(name, db, analytics)
	rm.rooms[room.ID] = room
	go room.Run()
	return room
}

// GetRoom returns a room by ID
func (rm *RoomManager) GetRoom(id string) *Room {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.rooms[id]
}

// RemovePeer removes a peer and cleans up the room if it emptied
func (rm *RoomManager) RemovePeer(roomID, actorID string) {
	rm.mu.RLock()
	room, ok := rm.rooms[roomID]
	rm.mu.RUnlock()
	if !ok {
		return
	}
	room.Leave(actorID)

	if room.PeerCount() == 0 {
		room.Stop()
		rm.mu.Lock()
		delete(rm.rooms, roomID)
		rm.mu.Unlock()
	}
}

// RoomCount returns the number of active rooms
func (rm *RoomManager) RoomCount() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.rooms)
}

// ListRooms returns info about all active rooms
func (rm *RoomManager) ListRooms() []RoomInfo {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	list := make([]RoomInfo, 0, len(rm.rooms))
	for _, room := range rm.rooms {
		list = append(list, RoomInfo{
			ID:    room.ID,
			Name:  room.Name,
			Peers: room.PeerCount(),
		})
	}
	return list
}
