package game

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cb-v4s/ghoulies/internal/iso"
	"github.com/cb-v4s/ghoulies/protocol"
)

// conn is what the session needs from the connection client. Tests
// substitute a recorder.
type conn interface {
	Send(event string, v interface{}) error
	Close() error
}

// RemoteUser is one peer as last reported by the server.
type RemoteUser struct {
	ID        string
	Name      string
	Tile      iso.Tile
	Direction protocol.XAxis
	IsTyping  bool
}

// ChatMessage is a broadcast anchored to the tile its sender stood on when
// it arrived.
type ChatMessage struct {
	From   string
	Text   string
	Origin iso.Tile
	At     time.Time
}

// Session bridges the wire and the renderer for one joined room. Inbound
// envelopes come in through HandleEnvelope, pointer input through
// ClickTile; the renderer pulls Users/Messages snapshots every frame.
//
// The user list is replaced wholesale on every scene update, never patched
// in place, so a draw that is already holding a snapshot can never observe
// a half-applied update.
type Session struct {
	cfg Config

	mu       sync.Mutex
	net      conn
	roomID   string
	userID   string
	userName string
	users    []RemoteUser
	msgs     []ChatMessage
	closed   bool

	// last join intent, replayed on reconnect
	joinEvent   string
	joinPayload interface{}

	lastIntent  iso.Tile
	haveIntent  bool
	deb         *moveDebouncer
	typing      *rate.Limiter
	typingState bool

	lastPurge time.Time
	now       func() time.Time

	// onIdentity fires when the server assigns our user id, which is
	// also the signal that the join completed.
	onIdentity func(userID string)
}

func NewSession(cfg Config, net conn) *Session {
	cfg = cfg.withDefaults()
	s := &Session{
		cfg: cfg,
		net: net,
		now: time.Now,
		// Typing notifications are advisory; two per second is plenty.
		typing: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
	}
	s.deb = newMoveDebouncer(cfg.DebounceWindow, s.sendPosition)
	return s
}

// OnIdentity registers the callback invoked when setUserId arrives.
func (s *Session) OnIdentity(fn func(userID string)) { s.onIdentity = fn }

// Join asks the server to add us to an existing room.
func (s *Session) Join(roomID, userName string) error {
	payload := protocol.JoinRoom{RoomID: roomID, UserName: userName}
	s.mu.Lock()
	s.userName = userName
	s.joinEvent, s.joinPayload = protocol.EvJoinRoom, payload
	net := s.net
	s.mu.Unlock()
	return net.Send(protocol.EvJoinRoom, payload)
}

// Create asks the server for a fresh room.
func (s *Session) Create(roomName, userName string) error {
	payload := protocol.NewRoom{RoomName: roomName, UserName: userName}
	s.mu.Lock()
	s.userName = userName
	s.joinEvent, s.joinPayload = protocol.EvNewRoom, payload
	net := s.net
	s.mu.Unlock()
	return net.Send(protocol.EvNewRoom, payload)
}

// AttachNet swaps in a freshly dialed connection and replays the join
// intent. The session keeps its local state so the next updateScene
// resumes the room seamlessly.
func (s *Session) AttachNet(net conn) error {
	s.mu.Lock()
	old := s.net
	s.net = net
	ev, payload := s.joinEvent, s.joinPayload
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if ev == "" {
		return nil
	}
	return net.Send(ev, payload)
}

// HandleEnvelope dispatches one inbound wire message. Unknown events are
// logged and dropped; they are never fatal.
func (s *Session) HandleEnvelope(env protocol.Envelope) {
	switch env.Event {
	case protocol.EvUpdateScene:
		var sc protocol.UpdateScene
		if err := json.Unmarshal(env.Data, &sc); err != nil {
			log.Printf("WS: bad updateScene payload: %v", err)
			return
		}
		s.applyScene(sc)

	case protocol.EvSetUserID:
		var su protocol.SetUserID
		if err := json.Unmarshal(env.Data, &su); err != nil {
			log.Printf("WS: bad setUserId payload: %v", err)
			return
		}
		s.mu.Lock()
		s.userID = su.UserID
		fn := s.onIdentity
		s.mu.Unlock()
		if fn != nil {
			fn(su.UserID)
		}

	case protocol.EvBroadcastMessage:
		var m protocol.InboundMessage
		if err := json.Unmarshal(env.Data, &m); err != nil {
			log.Printf("WS: bad broadcastMessage payload: %v", err)
			return
		}
		s.applyBroadcast(m)

	default:
		log.Printf("WS: unknown event %q dropped", env.Event)
	}
}

// applyScene replaces the room snapshot. Users parked on impossible tiles
// are dropped rather than rendered off the map.
func (s *Session) applyScene(sc protocol.UpdateScene) {
	users := make([]RemoteUser, 0, len(sc.Users))
	for _, u := range sc.Users {
		t := iso.Tile{Row: u.Position.Row, Col: u.Position.Col}
		if t.Row < 0 || t.Row >= s.cfg.GridSize || t.Col < 0 || t.Col >= s.cfg.GridSize {
			log.Printf("scene: user %s out of bounds at %v, skipped", u.UserID, t)
			continue
		}
		users = append(users, RemoteUser{
			ID:        u.UserID,
			Name:      u.UserName,
			Tile:      t,
			Direction: u.Direction,
			IsTyping:  u.IsTyping,
		})
	}

	s.mu.Lock()
	s.roomID = sc.RoomID
	s.users = users
	s.mu.Unlock()
}

// applyBroadcast anchors an incoming message to its sender's current tile.
// A message from a sender we do not know cannot be placed, so it is
// dropped.
func (s *Session) applyBroadcast(m protocol.InboundMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sender *RemoteUser
	for i := range s.users {
		if s.users[i].ID == m.From || s.users[i].Name == m.From {
			sender = &s.users[i]
			break
		}
	}
	if sender == nil {
		log.Printf("chat: message from unknown sender %q dropped", m.From)
		return
	}

	s.msgs = append(s.msgs, ChatMessage{
		From:   sender.Name,
		Text:   m.Msg,
		Origin: sender.Tile,
		At:     s.now(),
	})
}

// ClickTile resolves a pointer position to a movement intent. Clicks
// outside the grid, on the tile we already requested, or on an occupied
// tile do nothing. The intent goes through the debouncer, so a burst of
// clicks costs one send.
func (s *Session) ClickTile(screenX, screenY float64, pan iso.Offset) (iso.Tile, bool) {
	t, ok := iso.ScreenToTileUnclamped(screenX-pan.X, screenY-pan.Y, s.cfg.Geometry, s.cfg.GridSize)
	if !ok {
		return iso.Tile{}, false
	}

	s.mu.Lock()
	if s.haveIntent && s.lastIntent == t {
		s.mu.Unlock()
		return t, false
	}
	for _, u := range s.users {
		if u.ID != s.userID && u.Tile == t {
			s.mu.Unlock()
			log.Printf("move: tile %v occupied by %s", t, u.Name)
			return t, false
		}
	}
	s.lastIntent = t
	s.haveIntent = true
	s.mu.Unlock()

	s.deb.Schedule(t)
	return t, true
}

// sendPosition is the debouncer's sink.
func (s *Session) sendPosition(t iso.Tile) {
	s.mu.Lock()
	net, roomID, userID := s.net, s.roomID, s.userID
	s.mu.Unlock()
	if net == nil || roomID == "" || userID == "" {
		return
	}

	err := net.Send(protocol.EvUpdatePosition, protocol.UpdatePosition{
		Dest:   protocol.Position{Row: t.Row, Col: t.Col}.Dest(),
		RoomID: roomID,
		UserID: userID,
	})
	if err != nil {
		log.Printf("NET: send(updatePosition) failed: %v", err)
	}
}

// SendChat broadcasts a chat line to the room.
func (s *Session) SendChat(text string) error {
	if text == "" {
		return nil
	}
	s.mu.Lock()
	net, roomID, userID := s.net, s.roomID, s.userID
	s.mu.Unlock()
	if net == nil || roomID == "" || userID == "" {
		return nil
	}
	return net.Send(protocol.EvBroadcastMessage, protocol.BroadcastMessage{
		RoomID: roomID,
		From:   userID,
		Msg:    text,
	})
}

// SetTyping forwards the typing indicator, throttled so keystroke-by-
// keystroke toggling does not spam the wire.
func (s *Session) SetTyping(isTyping bool) {
	s.mu.Lock()
	if s.typingState == isTyping {
		s.mu.Unlock()
		return
	}
	s.typingState = isTyping
	net, roomID, userID := s.net, s.roomID, s.userID
	s.mu.Unlock()
	if net == nil || roomID == "" || userID == "" {
		return
	}
	// A "stopped typing" notice always goes out so the indicator cannot
	// stick; only the noisy "typing" edge is throttled.
	if isTyping && !s.typing.Allow() {
		return
	}
	_ = net.Send(protocol.EvUpdateTyping, protocol.UpdateTyping{
		RoomID:   roomID,
		UserID:   userID,
		IsTyping: isTyping,
	})
}

// Tick runs the recurring housekeeping: expired chat messages are purged
// once per purge interval. Call it from the update step.
func (s *Session) Tick() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastPurge) < s.cfg.PurgeInterval {
		return
	}
	s.lastPurge = now

	kept := s.msgs[:0]
	for _, m := range s.msgs {
		if now.Sub(m.At) <= s.cfg.ChatTTL {
			kept = append(kept, m)
		}
	}
	s.msgs = kept
}

// Users returns the current room snapshot. The slice is replaced, never
// mutated, on scene updates; callers may hold it across a frame.
func (s *Session) Users() []RemoteUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users
}

// Messages returns the live chat log, most recent last.
func (s *Session) Messages() []ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChatMessage(nil), s.msgs...)
}

func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

func (s *Session) UserName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

// Me returns our own entry from the last snapshot, if present.
func (s *Session) Me() (RemoteUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == s.userID && s.userID != "" {
			return u, true
		}
	}
	return RemoteUser{}, false
}

// Leave tells the server we are going and closes the connection.
func (s *Session) Leave() {
	s.mu.Lock()
	net, userID := s.net, s.userID
	s.mu.Unlock()
	if net != nil && userID != "" {
		_ = net.Send(protocol.EvLeaveRoom, protocol.LeaveRoom{UserID: userID})
	}
	s.Close()
}

// Close releases the session: the pending movement timer is cleared and
// the connection closed. Safe to call repeatedly.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	net := s.net
	s.mu.Unlock()

	s.deb.Cancel()
	if net != nil {
		_ = net.Close()
	}
}
