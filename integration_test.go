package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server with a Hub and returns
// the server, its WebSocket URL, and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, func()) {
	t.Helper()

	prevIdleTimeout := RoomIdleTimeout
	RoomIdleTimeout = 150 * time.Millisecond

	hub := NewHub(nil)
	go hub.Run()

	mux := SetupRoutes(hub)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, func() {
		RoomIdleTimeout = prevIdleTimeout
		srv.Close()
	}
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	env := Envelope{T: msgType, Data: data}
	raw, _ := json.Marshal(env)
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// readUntil reads JSON messages until one of the wanted type arrives,
// skipping broadcasts that interleave (peer_join, master, scores...).
func readUntil(t *testing.T, conn *websocket.Conn, want string) Envelope {
	t.Helper()
	for i := 0; i < 20; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS waiting for %s: %v", want, err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.T == want {
			return env
		}
	}
	t.Fatalf("never received %s", want)
	return Envelope{}
}

// readSnapshot reads messages until the binary msgpack snapshot arrives.
func readSnapshot(t *testing.T, conn *websocket.Conn) RoomSnapshot {
	t.Helper()
	for i := 0; i < 20; i++ {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read WS waiting for snapshot: %v", err)
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		var snap RoomSnapshot
		if err := msgpack.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return snap
	}
	t.Fatal("never received a snapshot")
	return RoomSnapshot{}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createAndJoin creates a room then joins it. Returns (roomID, actorID).
func createAndJoin(t *testing.T, conn *websocket.Conn, name, rname string) (string, string) {
	t.Helper()
	sendMsg(t, conn, MsgCreate, CreateMsg{Name: name, RoomName: rname})
	created := readUntil(t, conn, MsgCreated)
	rid := dataMap(t, created)["rid"].(string)

	sendMsg(t, conn, MsgJoin, JoinMsg{Name: name, RoomID: rid})
	readUntil(t, conn, MsgJoined)
	welcome := readUntil(t, conn, MsgWelcome)
	aid := dataMap(t, welcome)["id"].(string)
	return rid, aid
}

// joinRoom joins an existing room. Returns the actor ID.
func joinRoom(t *testing.T, conn *websocket.Conn, name, rid string) string {
	t.Helper()
	sendMsg(t, conn, MsgJoin, JoinMsg{Name: name, RoomID: rid})
	readUntil(t, conn, MsgJoined)
	welcome := readUntil(t, conn, MsgWelcome)
	return dataMap(t, welcome)["id"].(string)
}

// ---------- room lifecycle over WS ----------

func TestCreateJoinFlow(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgCreate, CreateMsg{Name: "Alice", RoomName: "TestArena"})
	created := readUntil(t, c, MsgCreated)
	rid := dataMap(t, created)["rid"].(string)
	if rid == "" {
		t.Fatal("created room should have an ID")
	}

	sendMsg(t, c, MsgJoin, JoinMsg{Name: "Alice", RoomID: rid})
	readUntil(t, c, MsgJoined)
	welcome := readUntil(t, c, MsgWelcome)
	d := dataMap(t, welcome)
	if d["id"] == "" {
		t.Error("welcome should carry the actor ID")
	}
	// first peer is master
	if d["mid"] != d["id"] {
		t.Errorf("first peer should be master: id=%v mid=%v", d["id"], d["mid"])
	}

	snap := readSnapshot(t, c)
	if len(snap.Actors) != 1 {
		t.Errorf("snapshot should carry 1 actor, got %d", len(snap.Actors))
	}
	if snap.CountdownStarted {
		t.Error("countdown should not be running yet")
	}
}

func TestJoinNonExistentRoom(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgJoin, JoinMsg{Name: "Lost", RoomID: GenerateUUID()})
	errMsg := readUntil(t, c, MsgError)
	if errMsg.T != MsgError {
		t.Fatal("expected an error")
	}
}

func TestListRooms(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgList, nil)
	list := readUntil(t, c, MsgRooms)
	raw, _ := json.Marshal(list.Data)
	var rooms []RoomInfo
	json.Unmarshal(raw, &rooms)
	if len(rooms) != 0 {
		t.Errorf("expected 0 rooms, got %d", len(rooms))
	}

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	createAndJoin(t, c2, "Alice", "Arena1")

	sendMsg(t, c, MsgList, nil)
	list2 := readUntil(t, c, MsgRooms)
	raw2, _ := json.Marshal(list2.Data)
	var rooms2 []RoomInfo
	json.Unmarshal(raw2, &rooms2)
	if len(rooms2) != 1 {
		t.Fatalf("expected 1 room, got %d", len(rooms2))
	}
	if rooms2[0].Name != "Arena1" || rooms2[0].Peers != 1 {
		t.Errorf("unexpected room info: %+v", rooms2[0])
	}
}

func TestEmptyRoomCleanedUp(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Temp", "TempArena")
	sendMsg(t, c, MsgLeave, nil)

	time.Sleep(RoomIdleTimeout + 100*time.Millisecond)

	sendMsg(t, c, MsgList, nil)
	list := readUntil(t, c, MsgRooms)
	raw, _ := json.Marshal(list.Data)
	var rooms []RoomInfo
	json.Unmarshal(raw, &rooms)
	if len(rooms) != 0 {
		t.Errorf("empty room should be cleaned up, got %d", len(rooms))
	}
}

// ---------- relay ----------

func TestRelayBetweenPeers(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid, a1 := createAndJoin(t, c1, "Alice", "RelayTest")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	joinRoom(t, c2, "Bob", rid)

	sendMsg(t, c1, MsgEntity, EntityStateMsg{EntityID: a1, X: 10, Z: 20, State: int(StateMoving)})

	env := readUntil(t, c2, MsgEntity)
	if env.From != a1 {
		t.Errorf("relayed envelope should carry From=%s, got %s", a1, env.From)
	}
	d := dataMap(t, env)
	if d["x"].(float64) != 10 || d["z"].(float64) != 20 {
		t.Errorf("relayed transform wrong: %v", d)
	}
}

func TestTargetedHitDelivery(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid, a1 := createAndJoin(t, c1, "Alice", "HitTest")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	a2 := joinRoom(t, c2, "Bob", rid)

	raw, _ := json.Marshal(Envelope{
		T:    MsgHit,
		To:   a2,
		Seq:  1,
		Data: HitEventMsg{AttackerID: a1, VictimID: a2, Kind: DamageDash, Amount: 1, DirX: 1, Force: 15, StunDur: 2},
	})
	if err := c1.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}

	env := readUntil(t, c2, MsgHit)
	d := dataMap(t, env)
	if d["vid"] != a2 {
		t.Errorf("expected victim %s, got %v", a2, d["vid"])
	}
}

func TestScoreReplication(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid, a1 := createAndJoin(t, c1, "Alice", "ScoreTest")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	joinRoom(t, c2, "Bob", rid)

	sendMsg(t, c1, MsgScoreOp, ScoreOpMsg{Op: ScoreOpDashHit, Actor: a1})

	// the zeroed register record for each join also travels as MsgScores,
	// so wait for the record that carries the reward
	for _, conn := range []*websocket.Conn{c1, c2} {
		found := false
		for i := 0; i < 10 && !found; i++ {
			env := readUntil(t, conn, MsgScores)
			d := dataMap(t, env)
			if d["actor"] == a1 && d["sc"].(float64) == DashHitScore {
				found = true
			}
		}
		if !found {
			t.Error("score update should replicate to every peer")
		}
	}
}

// ---------- countdown ----------

func TestCountdownBroadcastAndLateJoin(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid, _ := createAndJoin(t, c1, "Alice", "CountdownTest")

	sendMsg(t, c1, MsgStart, nil)
	cd := readUntil(t, c1, MsgCountdown)
	d := dataMap(t, cd)
	if d["dur"].(float64) != MatchDuration {
		t.Errorf("expected duration %f, got %v", MatchDuration, d["dur"])
	}
	if d["start"].(float64) <= 0 {
		t.Error("countdown should carry the server-clock start time")
	}

	// a late joiner reconstructs the countdown from the snapshot
	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgJoin, JoinMsg{Name: "Late", RoomID: rid})
	snap := readSnapshot(t, c2)
	if !snap.CountdownStarted {
		t.Fatal("snapshot should show the countdown running")
	}
	remaining := snap.CountdownDuration - (snap.ServerTime - snap.CountdownStartTime)
	if remaining <= MatchDuration-5 || remaining > MatchDuration {
		t.Errorf("late joiner should land near the shared clock, remaining %f", remaining)
	}
}

func TestStartByNonMasterRejected(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid, _ := createAndJoin(t, c1, "Alice", "AuthorityTest")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	joinRoom(t, c2, "Bob", rid)

	sendMsg(t, c2, MsgStart, nil)
	errMsg := readUntil(t, c2, MsgError)
	if errMsg.T != MsgError {
		t.Fatal("non-master start should be rejected")
	}
}

// ---------- HTTP surface ----------

func TestInviteQREndpoint(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	rid, _ := createAndJoin(t, c, "Alice", "QRTest")

	resp, err := http.Get(srv.URL + "/invite/" + rid)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("GET /invite/%s status = %d, want 200", rid, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}

	resp2, err := http.Get(srv.URL + "/invite/" + GenerateUUID())
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != 404 {
		t.Errorf("unknown room should 404, got %d", resp2.StatusCode)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	createAndJoin(t, c, "Alice", "StatsTest")

	resp, err := http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("stats status = %d, want 200", resp.StatusCode)
	}
	var stats map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats["rooms"].(float64) != 1 {
		t.Errorf("expected 1 room, got %v", stats["rooms"])
	}
	if stats["conns"].(float64) < 1 {
		t.Errorf("expected at least 1 connection, got %v", stats["conns"])
	}
}

func TestLeaderboardEndpointWithoutDB(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/leaderboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("no-DB leaderboard should 503, got %d", resp.StatusCode)
	}
}

func TestLeaderboardEndpointWithDB(t *testing.T) {
	db := openTestDB(t)
	hub := NewHub(db)
	go hub.Run()
	defer hub.analytics.Stop()

	srv := httptest.NewServer(SetupRoutes(hub))
	defer srv.Close()

	id, _ := db.CreatePlayer("alice", "h")
	db.UpdateCareerStats(id, 5, 1, 50)

	resp, err := http.Get(srv.URL + "/leaderboard?by=kills")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("leaderboard status = %d, want 200", resp.StatusCode)
	}
	var entries []LeaderboardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Username != "alice" {
		t.Errorf("unexpected leaderboard: %+v", entries)
	}
}

// ---------- auth over WS ----------

func TestRegisterLoginOverWS(t *testing.T) {
	db := openTestDB(t)
	hub := NewHub(db)
	go hub.Run()
	defer hub.analytics.Stop()

	srv := httptest.NewServer(SetupRoutes(hub))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	c := dialWS(t, wsURL)
	defer c.Close()

	sendMsg(t, c, MsgRegister, RegisterMsg{Username: "alice", Password: "secret"})
	ok := readUntil(t, c, MsgAuthOK)
	d := dataMap(t, ok)
	token := d["tok"].(string)
	if token == "" || d["u"] != "alice" {
		t.Fatalf("unexpected auth response: %v", d)
	}

	// re-auth with the token on a fresh connection
	c2 := dialWS(t, wsURL)
	defer c2.Close()
	sendMsg(t, c2, MsgAuth, AuthMsg{Token: token})
	ok2 := readUntil(t, c2, MsgAuthOK)
	if dataMap(t, ok2)["u"] != "alice" {
		t.Error("token re-auth should restore the username")
	}

	// profile for the authenticated account
	sendMsg(t, c2, MsgProfile, nil)
	profile := readUntil(t, c2, MsgProfileOK)
	if dataMap(t, profile)["u"] != "alice" {
		t.Error("profile should belong to the authenticated user")
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL)
	defer c.Close()
	sendMsg(t, c, MsgProfile, nil)
	errMsg := readUntil(t, c, MsgError)
	if errMsg.T != MsgError {
		t.Fatal("unauthenticated profile should error")
	}
}

// ---------- full combat round trip ----------

func TestTwoPeerDashHitRoundTrip(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	// Two websocket clients back two simulation peers; the wire in the
	// middle is the real relay.
	c1 := dialWS(t, wsURL)
	defer c1.Close()
	rid, a1 := createAndJoin(t, c1, "Alice", "Brawl")

	c2 := dialWS(t, wsURL)
	defer c2.Close()
	a2 := joinRoom(t, c2, "Bob", rid)

	p2, err := NewPeer(a2, "Bob", nil)
	if err != nil {
		t.Fatal(err)
	}
	snap := readSnapshot(t, c2)
	p2.ApplySnapshot(snap)

	// attacker proposes a dash hit; it travels the wire to the victim's
	// owner, who applies it authoritatively
	raw, _ := json.Marshal(Envelope{
		T:   MsgHit,
		To:  a2,
		Seq: 1,
		Data: HitEventMsg{
			AttackerID: a1, VictimID: a2, Kind: DamageDash,
			Amount: DashDamage, DirX: 1, Force: BaseKnockback, StunDur: DashStunDuration,
		},
	})
	if err := c1.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatal(err)
	}

	env := readUntil(t, c2, MsgHit)
	rawD, _ := json.Marshal(env.Data)
	p2.Handle(InEnvelope{T: env.T, From: env.From, Seq: env.Seq, D: rawD})

	if got := p2.Entity().Health.Current; got != EntityMaxHealth-DashDamage {
		t.Errorf("victim health should drop to %f, got %f", EntityMaxHealth-DashDamage, got)
	}
	if !p2.Entity().Stun.IsStunned() {
		t.Error("victim should be stunned after the hit")
	}
}
