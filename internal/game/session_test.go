package game

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/cb-v4s/ghoulies/internal/iso"
	"github.com/cb-v4s/ghoulies/protocol"
)

// fakeConn records outbound sends.
type fakeConn struct {
	mu     sync.Mutex
	sent   []sentMsg
	closed int
}

type sentMsg struct {
	event   string
	payload interface{}
}

func (f *fakeConn) Send(event string, v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{event, v})
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConn) snapshot() []sentMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...)
}

func envelope(t *testing.T, event string, v interface{}) protocol.Envelope {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return protocol.Envelope{Event: event, Data: data}
}

func joinedSession(t *testing.T, fc *fakeConn) *Session {
	t.Helper()
	s := NewSession(Config{DebounceWindow: 20 * time.Millisecond}, fc)
	s.HandleEnvelope(envelope(t, protocol.EvSetUserID, protocol.SetUserID{UserID: "me"}))
	s.HandleEnvelope(envelope(t, protocol.EvUpdateScene, protocol.UpdateScene{
		RoomID: "r1",
		Users: []protocol.User{
			{UserID: "me", UserName: "Me", Position: protocol.Position{Row: 0, Col: 0}, Direction: protocol.Right},
			{UserID: "u1", UserName: "Alice", Position: protocol.Position{Row: 2, Col: 5}, Direction: protocol.Left},
		},
	}))
	return s
}

func TestSceneSnapshotReplace(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	before := s.Users()
	if len(before) != 2 {
		t.Fatalf("want 2 users, got %d", len(before))
	}

	s.HandleEnvelope(envelope(t, protocol.EvUpdateScene, protocol.UpdateScene{
		RoomID: "r1",
		Users: []protocol.User{
			{UserID: "u1", UserName: "Alice", Position: protocol.Position{Row: 3, Col: 3}, Direction: protocol.Right},
		},
	}))

	after := s.Users()
	if len(after) != 1 || after[0].ID != "u1" || after[0].Tile != (iso.Tile{Row: 3, Col: 3}) {
		t.Fatalf("want wholesale replacement with u1@(3,3), got %+v", after)
	}

	// The snapshot handed out before the update must be untouched: the
	// update swapped the slice, it did not write through it.
	if before[1].Tile != (iso.Tile{Row: 2, Col: 5}) {
		t.Fatalf("old snapshot mutated in place: %+v", before)
	}
	if s.RoomID() != "r1" {
		t.Fatalf("room id lost: %q", s.RoomID())
	}
}

func TestSceneDropsOutOfBoundsUsers(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	s.HandleEnvelope(envelope(t, protocol.EvUpdateScene, protocol.UpdateScene{
		RoomID: "r1",
		Users: []protocol.User{
			{UserID: "ok", UserName: "Ok", Position: protocol.Position{Row: 1, Col: 1}},
			{UserID: "bad", UserName: "Bad", Position: protocol.Position{Row: 42, Col: -1}},
		},
	}))

	users := s.Users()
	if len(users) != 1 || users[0].ID != "ok" {
		t.Fatalf("out-of-bounds user must be skipped, got %+v", users)
	}
}

func TestSetUserIDFiresIdentityCallback(t *testing.T) {
	fc := &fakeConn{}
	s := NewSession(Config{}, fc)

	var got string
	s.OnIdentity(func(id string) { got = id })
	s.HandleEnvelope(envelope(t, protocol.EvSetUserID, protocol.SetUserID{UserID: "me"}))

	if got != "me" || s.UserID() != "me" {
		t.Fatalf("identity not applied: callback=%q stored=%q", got, s.UserID())
	}
}

func TestBroadcastAnchoredToSender(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	s.HandleEnvelope(envelope(t, protocol.EvBroadcastMessage, protocol.InboundMessage{From: "u1", Msg: "hey"}))

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(msgs))
	}
	if msgs[0].From != "Alice" || msgs[0].Origin != (iso.Tile{Row: 2, Col: 5}) || msgs[0].Text != "hey" {
		t.Fatalf("message not anchored to sender: %+v", msgs[0])
	}
}

func TestBroadcastFromUnknownSenderDropped(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	s.HandleEnvelope(envelope(t, protocol.EvBroadcastMessage, protocol.InboundMessage{From: "Ghost", Msg: "boo"}))

	if n := len(s.Messages()); n != 0 {
		t.Fatalf("unanchorable message must be dropped, got %d", n)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	s.HandleEnvelope(protocol.Envelope{Event: "iceCandidate", Data: []byte(`{}`)})

	// Still alive and consistent afterwards.
	if len(s.Users()) != 2 || s.RoomID() != "r1" {
		t.Fatal("unknown event corrupted session state")
	}
}

func TestChatTTLPurge(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	base := time.Now()
	clock := base
	s.now = func() time.Time { return clock }

	s.HandleEnvelope(envelope(t, protocol.EvBroadcastMessage, protocol.InboundMessage{From: "u1", Msg: "old"}))

	// One millisecond past the TTL: the message goes; a fresh one stays.
	clock = base.Add(s.cfg.ChatTTL + time.Millisecond)
	s.HandleEnvelope(envelope(t, protocol.EvBroadcastMessage, protocol.InboundMessage{From: "u1", Msg: "new"}))
	s.Tick()

	msgs := s.Messages()
	if len(msgs) != 1 || msgs[0].Text != "new" {
		t.Fatalf("want only the fresh message after purge, got %+v", msgs)
	}
}

func TestPurgeHonorsInterval(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	base := time.Now()
	clock := base.Add(-s.cfg.ChatTTL - time.Second) // already expired on arrival
	s.now = func() time.Time { return clock }
	s.lastPurge = base

	s.HandleEnvelope(envelope(t, protocol.EvBroadcastMessage, protocol.InboundMessage{From: "u1", Msg: "m"}))

	// Expired, but the sweep only runs once per purge interval.
	clock = base.Add(s.cfg.PurgeInterval / 2)
	s.Tick()
	if len(s.Messages()) != 1 {
		t.Fatal("purge ran before its interval elapsed")
	}

	clock = base.Add(s.cfg.PurgeInterval + time.Millisecond)
	s.Tick()
	if len(s.Messages()) != 0 {
		t.Fatal("purge missed an expired message after the interval")
	}
}

// Scenario: click on tile (3,3), release without drag, wait the debounce
// window -> exactly one updatePosition with dest "3,3".
func TestClickToSingleUpdatePosition(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	pan := iso.Offset{X: 320, Y: 180}
	c := iso.TileCenter(iso.Tile{Row: 3, Col: 3}, pan, s.cfg.Geometry)

	tile, ok := s.ClickTile(c.X, c.Y, pan)
	if !ok || tile != (iso.Tile{Row: 3, Col: 3}) {
		t.Fatalf("click did not resolve to (3,3): %v %v", tile, ok)
	}

	time.Sleep(100 * time.Millisecond)

	var updates []protocol.UpdatePosition
	for _, m := range fc.snapshot() {
		if m.event == protocol.EvUpdatePosition {
			updates = append(updates, m.payload.(protocol.UpdatePosition))
		}
	}
	if len(updates) != 1 {
		t.Fatalf("want exactly 1 updatePosition, got %d", len(updates))
	}
	if updates[0].Dest != "3,3" || updates[0].RoomID != "r1" || updates[0].UserID != "me" {
		t.Fatalf("bad updatePosition payload: %+v", updates[0])
	}
}

func TestClickBurstDebounced(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	pan := iso.Offset{}
	for _, tl := range []iso.Tile{{Row: 3, Col: 3}, {Row: 4, Col: 4}, {Row: 5, Col: 5}} {
		c := iso.TileCenter(tl, pan, s.cfg.Geometry)
		s.ClickTile(c.X, c.Y, pan)
	}

	time.Sleep(100 * time.Millisecond)

	var updates []protocol.UpdatePosition
	for _, m := range fc.snapshot() {
		if m.event == protocol.EvUpdatePosition {
			updates = append(updates, m.payload.(protocol.UpdatePosition))
		}
	}
	if len(updates) != 1 || updates[0].Dest != "5,5" {
		t.Fatalf("want 1 send carrying the last tile (5,5), got %+v", updates)
	}
}

func TestClickRejectedCases(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)
	pan := iso.Offset{}

	// Outside the map entirely.
	if _, ok := s.ClickTile(-4000, -4000, pan); ok {
		t.Fatal("click far outside the grid must be rejected")
	}

	// On another user's tile (Alice sits on (2,5)).
	c := iso.TileCenter(iso.Tile{Row: 2, Col: 5}, pan, s.cfg.Geometry)
	if _, ok := s.ClickTile(c.X, c.Y, pan); ok {
		t.Fatal("click on an occupied tile must be rejected")
	}

	// Same tile twice: the repeat is a no-op.
	c = iso.TileCenter(iso.Tile{Row: 6, Col: 6}, pan, s.cfg.Geometry)
	if _, ok := s.ClickTile(c.X, c.Y, pan); !ok {
		t.Fatal("first click should schedule")
	}
	if _, ok := s.ClickTile(c.X, c.Y, pan); ok {
		t.Fatal("repeated intent for the same tile must be suppressed")
	}
}

func TestTypingEdgeAlwaysClears(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	s.SetTyping(true)
	s.SetTyping(false)
	s.SetTyping(true) // throttled away
	s.SetTyping(false)

	var events []protocol.UpdateTyping
	for _, m := range fc.snapshot() {
		if m.event == protocol.EvUpdateTyping {
			events = append(events, m.payload.(protocol.UpdateTyping))
		}
	}
	if len(events) == 0 {
		t.Fatal("typing events never sent")
	}
	if last := events[len(events)-1]; last.IsTyping {
		t.Fatalf("final typing state must be false, got %+v", last)
	}
}

func TestSessionJoinAndReconnectReplay(t *testing.T) {
	fc := &fakeConn{}
	s := NewSession(Config{}, fc)

	if err := s.Join("r1", "Me"); err != nil {
		t.Fatal(err)
	}
	sent := fc.snapshot()
	if len(sent) != 1 || sent[0].event != protocol.EvJoinRoom {
		t.Fatalf("want joinRoom, got %+v", sent)
	}

	// New connection after a drop: the join intent is replayed on it.
	fc2 := &fakeConn{}
	if err := s.AttachNet(fc2); err != nil {
		t.Fatal(err)
	}
	if fc.closed == 0 {
		t.Fatal("old connection must be closed on reattach")
	}
	sent2 := fc2.snapshot()
	if len(sent2) != 1 || sent2[0].event != protocol.EvJoinRoom {
		t.Fatalf("join intent not replayed: %+v", sent2)
	}
	jr := sent2[0].payload.(protocol.JoinRoom)
	if jr.RoomID != "r1" || jr.UserName != "Me" {
		t.Fatalf("replayed payload wrong: %+v", jr)
	}
}

func TestLeaveSendsAndCloses(t *testing.T) {
	fc := &fakeConn{}
	s := joinedSession(t, fc)

	s.Leave()
	s.Close() // idempotent

	if fc.closed != 1 {
		t.Fatalf("want exactly one close, got %d", fc.closed)
	}
	var sawLeave bool
	for _, m := range fc.snapshot() {
		if m.event == protocol.EvLeaveRoom {
			if m.payload.(protocol.LeaveRoom).UserID != "me" {
				t.Fatalf("leaveRoom carries wrong user: %+v", m.payload)
			}
			sawLeave = true
		}
	}
	if !sawLeave {
		t.Fatal("leaveRoom never sent")
	}
}
