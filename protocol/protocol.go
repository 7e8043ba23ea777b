package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope wraps every frame on the wire, both directions. The server
// dispatches on Event, so the field names and casing are fixed.
type Envelope struct {
	Event string          `json:"Event"`
	Data  json.RawMessage `json:"Data"`
}

// Outbound event names.
const (
	EvNewRoom          = "newRoom"
	EvJoinRoom         = "joinRoom"
	EvLeaveRoom        = "leaveRoom"
	EvUpdatePosition   = "updatePosition"
	EvUpdateTyping     = "updateTyping"
	EvBroadcastMessage = "broadcastMessage"
)

// Inbound event names. EvBroadcastMessage is shared with outbound.
const (
	EvUpdateScene = "updateScene"
	EvSetUserID   = "setUserId"
)

// XAxis is the facing direction of an avatar.
type XAxis int

const (
	Right XAxis = 1
	Left  XAxis = -1
)

// Position is a tile address inside the room grid.
type Position struct {
	Row int `json:"Row"`
	Col int `json:"Col"`
}

// Dest renders the position in the "row,col" form updatePosition expects.
func (p Position) Dest() string {
	return fmt.Sprintf("%d,%d", p.Row, p.Col)
}

// ParseDest parses a "row,col" destination string.
func ParseDest(s string) (Position, error) {
	var p Position
	if _, err := fmt.Sscanf(s, "%d,%d", &p.Row, &p.Col); err != nil {
		return Position{}, fmt.Errorf("bad dest %q: %w", s, err)
	}
	return p, nil
}

// User is one connected peer as carried by updateScene snapshots.
type User struct {
	UserID    string   `json:"UserID"`
	UserName  string   `json:"UserName"`
	Position  Position `json:"Position"`
	Direction XAxis    `json:"Direction"`
	IsTyping  bool     `json:"IsTyping"`
}

type NewRoom struct {
	RoomName string `json:"roomName"`
	UserName string `json:"userName"`
}

type JoinRoom struct {
	RoomID   string `json:"roomId"`
	UserName string `json:"userName"`
}

type LeaveRoom struct {
	UserID string `json:"userId"`
}

type UpdatePosition struct {
	Dest   string `json:"dest"` // "row,col"
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type UpdateTyping struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

type BroadcastMessage struct {
	RoomID string `json:"roomId"`
	From   string `json:"from"`
	Msg    string `json:"msg"`
}

// UpdateScene is the full room snapshot. The server always sends the whole
// user list; there is no incremental form.
type UpdateScene struct {
	RoomID string `json:"roomId"`
	Users  []User `json:"users"`
}

type SetUserID struct {
	UserID string `json:"userId"`
}

// InboundMessage is the chat relay as received from the server.
type InboundMessage struct {
	Msg  string `json:"msg"`
	From string `json:"from"`
}

// RoomSummary is one entry of the REST room listing.
type RoomSummary struct {
	RoomID     string `json:"roomId"`
	RoomName   string `json:"roomName"`
	TotalConns int    `json:"totalConns"`
}
