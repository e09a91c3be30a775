package main

import "sync"

// Replicated property keys. Per-actor records hold the score state; room
// properties carry the countdown for late-join synchronization.
const (
	PropPlayerScore = "PlayerScore"
	PropHitsTaken   = "HitsTaken"
	PropKills       = "Kills"
	PropDeaths      = "Deaths"

	PropCountdownStartTime = "CountdownStartTime"
	PropCountdownStarted   = "CountdownStarted"
)

// PropertyStore is the room-scoped replicated key-value state. Writes are
// last-writer-wins per key; reads tolerate absent actors (zero value, never
// an error). The room serializes all mutation through its own lock, which
// is what makes read-modify-write score updates safe here.
type PropertyStore struct {
	mu     sync.RWMutex
	room   map[string]interface{}
	actors map[string]map[string]int

	// OnRoomChange fires after each room-property write so the owner can
	// replicate it to peers
	OnRoomChange func(key string, value interface{})
}

// NewPropertyStore creates an empty store
func NewPropertyStore() *PropertyStore {
	return &PropertyStore{
		room:   make(map[string]interface{}),
		actors: make(map[string]map[string]int),
	}
}

// SetRoom writes a room property (last-writer-wins)
func (ps *PropertyStore) SetRoom(key string, value interface{}) {
	ps.mu.Lock()
	ps.room[key] = value
	ps.mu.Unlock()
	if ps.OnRoomChange != nil {
		ps.OnRoomChange(key, value)
	}
}

// RoomFloat reads a room property as float64 (0 if absent)
func (ps *PropertyStore) RoomFloat(key string) float64 {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if v, ok := ps.room[key].(float64); ok {
		return v
	}
	return 0
}

// RoomBool reads a room property as bool (false if absent)
func (ps *PropertyStore) RoomBool(key string) bool {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	if v, ok := ps.room[key].(bool); ok {
		return v
	}
	return false
}

// SetActor writes one actor property
func (ps *PropertyStore) SetActor(actor, key string, value int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	m, ok := ps.actors[actor]
	if !ok {
		m = make(map[string]int)
		ps.actors[actor] = m
	}
	m[key] = value
}

// ActorInt reads one actor property. Absent actors or keys read as 0.
func (ps *PropertyStore) ActorInt(actor, key string) int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.actors[actor][key]
}

// Actors returns the IDs of all actors with any replicated property
func (ps *PropertyStore) Actors() []string {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]string, 0, len(ps.actors))
	for id := range ps.actors {
		out = append(out, id)
	}
	return out
}

// RemoveActor drops an actor's record (on leave)
func (ps *PropertyStore) RemoveActor(actor string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	delete(ps.actors, actor)
}

// ActorSnapshot returns a copy of one actor's record
func (ps *PropertyStore) ActorSnapshot(actor string) map[string]int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make(map[string]int, len(ps.actors[actor]))
	for k, v := range ps.actors[actor] {
		out[k] = v
	}
	return out
}
