package main

import "encoding/json"

// Client -> Server message types
const (
	MsgJoin     = "join"
	MsgLeave    = "leave"
	MsgCreate   = "create"  // create room
	MsgList     = "list"    // list rooms
	MsgRegister = "register"
	MsgLogin    = "login"
	MsgAuth     = "auth" // token re-auth
	MsgProfile  = "profile"
	MsgStart    = "start" // master starts the match countdown
)

// Peer -> Peer message types, relayed through the room. Targeted messages
// carry To (the owning peer of the victim entity); the rest are broadcasts.
const (
	MsgHit        = "hit"     // HitEvent, delivered to the victim's owner
	MsgStun       = "stun"    // stun phase transition, cosmetic mirror
	MsgHealth     = "health"  // health sync after authoritative damage
	MsgDeath      = "death"   // death notification, cosmetic mirror
	MsgRespawn    = "respawn" // respawn notification
	MsgDetonation = "deto"    // trap detonated by the authority
	MsgTrapPlace  = "trap"    // trap placed, mirrored on every peer
	MsgTrapArm    = "traparm" // timed trap countdown started
	MsgPropHit    = "prophit" // destructible prop knocked, fire-and-forget
	MsgEntity     = "entity"  // transform sync at broadcast rate
	MsgScoreOp    = "score"   // score mutation, applied by the room
)

// Server -> Client message types
const (
	MsgRooms     = "rooms"
	MsgJoined    = "joined"
	MsgCreated   = "created"
	MsgWelcome   = "welcome"
	MsgError     = "error"
	MsgAuthOK    = "auth_ok"
	MsgProfileOK = "profile_data"
	MsgPeerJoin  = "peer_join"
	MsgPeerLeave = "peer_leave"
	MsgMaster    = "master"    // authority-role assignment
	MsgProp      = "prop"      // replicated property change
	MsgScores    = "scores"    // score record change
	MsgCountdown = "countdown" // countdown started
	MsgMatchEnd  = "match_end"
	MsgSnapshot  = "snapshot" // msgpack binary, late-join sync
)

// DamageKind classifies a damage source. Only Dash damage counts toward
// the hit-threshold death condition.
type DamageKind int

const (
	DamageDash DamageKind = iota
	DamageExplosion
	DamageGeneric
)

// Envelope wraps all messages. From is the sending peer's actor ID, To is
// the target actor for owner-routed messages (empty = broadcast). Seq is a
// per-sender monotonic counter used by receivers to drop duplicates.
type Envelope struct {
	T    string      `json:"t"`
	From string      `json:"f,omitempty"`
	To   string      `json:"to,omitempty"`
	Seq  uint64      `json:"q,omitempty"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T    string          `json:"t"`
	From string          `json:"f,omitempty"`
	To   string          `json:"to,omitempty"`
	Seq  uint64          `json:"q,omitempty"`
	D    json.RawMessage `json:"d,omitempty"`
}

// JoinMsg is sent when a peer wants to join a room
type JoinMsg struct {
	Name   string `json:"name"`
	RoomID string `json:"rid"`
}

// CreateMsg is sent when a peer wants to create a room
type CreateMsg struct {
	Name     string `json:"name"`
	RoomName string `json:"rname"`
}

// HitEventMsg carries a proposed hit from the attacker's peer to the
// victim's owning peer. The victim's peer is the only one that applies it.
type HitEventMsg struct {
	AttackerID string     `json:"aid,omitempty"` // empty for traps
	VictimID   string     `json:"vid"`
	Kind       DamageKind `json:"k"`
	Amount     float64    `json:"dmg"`
	DirX       float64    `json:"dx"`
	DirY       float64    `json:"dy"`
	DirZ       float64    `json:"dz"`
	Force      float64    `json:"fc"`
	StunDur    float64    `json:"st"`
}

// StunMsg mirrors a stun phase transition to remote peers (cosmetic only)
type StunMsg struct {
	EntityID string  `json:"eid"`
	Phase    int     `json:"ph"`
	Duration float64 `json:"dur,omitempty"`
}

// HealthMsg syncs authoritative health state to remote peers
type HealthMsg struct {
	EntityID  string  `json:"eid"`
	Health    float64 `json:"hp"`
	HitsTaken int     `json:"ht"`
	Dead      bool    `json:"dead,omitempty"`
}

// DeathMsg notifies peers that an entity died
type DeathMsg struct {
	EntityID string `json:"eid"`
	KillerID string `json:"kid,omitempty"`
}

// RespawnMsg notifies peers that an entity respawned
type RespawnMsg struct {
	EntityID string  `json:"eid"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
}

// DetonationMsg mirrors a trap detonation (cosmetic only; damage travels
// as HitEvents to each victim's owner)
type DetonationMsg struct {
	TrapID string  `json:"tid"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Radius float64 `json:"r"`
}

// TrapMsg announces a trap placed or armed by the authority peer. Every
// peer mirrors the trap and runs its countdown locally, so the authority
// role can migrate mid-countdown without a resync. Remaining carries the
// time left when a live trap is re-announced to a late joiner.
type TrapMsg struct {
	TrapID    string  `json:"tid"`
	Mode      int     `json:"m,omitempty"`
	X         float64 `json:"x,omitempty"`
	Z         float64 `json:"z,omitempty"`
	Remaining float64 `json:"rem,omitempty"`
}

// PropHitMsg mirrors a destructible-prop knock to remote peers
type PropHitMsg struct {
	PropID string  `json:"pid"`
	DirX   float64 `json:"dx"`
	DirY   float64 `json:"dy"`
	DirZ   float64 `json:"dz"`
	Force  float64 `json:"fc"`
}

// EntityStateMsg is the per-entity transform sync sent at broadcast rate
type EntityStateMsg struct {
	EntityID string  `json:"eid"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Facing   float64 `json:"r"`
	State    int     `json:"s"`
}

// Score operation names, applied serially by the room
const (
	ScoreOpDashHit = "dash_hit"
	ScoreOpExpl    = "expl_penalty"
	ScoreOpHitInc  = "hit_inc"
	ScoreOpHitRst  = "hit_reset"
	ScoreOpDeath   = "death"
)

// ScoreOpMsg asks the room to mutate the replicated score record of Actor
type ScoreOpMsg struct {
	Op    string `json:"op"`
	Actor string `json:"actor"`
}

// ScoreRecordMsg broadcasts one actor's replicated score record
type ScoreRecordMsg struct {
	Actor     string `json:"actor"`
	Score     int    `json:"sc"`
	Kills     int    `json:"k"`
	Deaths    int    `json:"d"`
	HitsTaken int    `json:"ht"`
}

// PropMsg broadcasts a replicated room-property change
type PropMsg struct {
	Key   string      `json:"key"`
	Value interface{} `json:"val"`
}

// CountdownMsg announces the match countdown. StartTime is server clock
// (unix seconds); late joiners reconstruct remaining time from it.
type CountdownMsg struct {
	StartTime  float64 `json:"start"`
	Duration   float64 `json:"dur"`
	ServerTime float64 `json:"now"`
}

// WelcomeMsg is sent to a peer when they join a room
type WelcomeMsg struct {
	ActorID  string `json:"id"`
	MasterID string `json:"mid"`
}

// PeerInfoMsg announces a peer joining or leaving
type PeerInfoMsg struct {
	ActorID string `json:"id"`
	Name    string `json:"name"`
}

// RoomInfo is used in the room list
type RoomInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Peers int    `json:"peers"`
}

// ErrorMsg sends an error to the client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// RegisterMsg / LoginMsg / AuthMsg carry account credentials
type RegisterMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

type LoginMsg struct {
	Username string `json:"u"`
	Password string `json:"p"`
}

type AuthMsg struct {
	Token string `json:"tok"`
}

// AuthOKMsg confirms authentication
type AuthOKMsg struct {
	Token    string `json:"tok"`
	Username string `json:"u"`
	PlayerID int64  `json:"pid"`
}

// ProfileDataMsg returns persisted career stats
type ProfileDataMsg struct {
	Username  string `json:"u"`
	Kills     int    `json:"kills"`
	Deaths    int    `json:"deaths"`
	BestScore int    `json:"best"`
	Matches   int    `json:"matches"`
}

// SnapshotActor is one actor's replicated record inside a RoomSnapshot
type SnapshotActor struct {
	ActorID   string  `msgpack:"id"`
	Name      string  `msgpack:"n"`
	Score     int     `msgpack:"sc"`
	Kills     int     `msgpack:"k"`
	Deaths    int     `msgpack:"d"`
	HitsTaken int     `msgpack:"ht"`
	X         float64 `msgpack:"x"`
	Y         float64 `msgpack:"y"`
	Z         float64 `msgpack:"z"`
}

// RoomSnapshot is the msgpack-encoded late-join sync payload: full
// replicated property state plus the server clock for countdown math.
type RoomSnapshot struct {
	RoomID             string          `msgpack:"rid"`
	MasterID           string          `msgpack:"mid"`
	Actors             []SnapshotActor `msgpack:"actors"`
	CountdownStarted   bool            `msgpack:"cds"`
	CountdownStartTime float64         `msgpack:"cdt"`
	CountdownDuration  float64         `msgpack:"cdd"`
	ServerTime         float64         `msgpack:"now"`
}
