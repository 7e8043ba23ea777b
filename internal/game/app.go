package game

import (
	"fmt"
	"image/color"
	"log"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/basicfont"

	"github.com/cb-v4s/ghoulies/internal/iso"
	"github.com/cb-v4s/ghoulies/internal/netcfg"
	"github.com/cb-v4s/ghoulies/protocol"
)

type screen int

const (
	screenLobby screen = iota
	screenRoom
)

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateFailed
)

const (
	connRetryDelay = 2 * time.Second
	maxNameLen     = 24
	maxRoomLen     = 32
	maxMsgLen      = 60
)

type connResult struct {
	n   *Net
	err error
}

type roomsResult struct {
	rooms []protocol.RoomSummary
	err   error
}

// App is the ebiten game: it owns the connection lifecycle, the room
// session, and the two screens (lobby and room).
type App struct {
	cfg Config

	scr screen

	connSt          connState
	connErrMsg      string
	connRetryAt     time.Time
	connectInFlight bool
	connCh          chan connResult

	net     *Net
	session *Session

	view *View
	loop *Loop
	rend *renderer
	ptr  pointer

	start  time.Time
	frames int

	// lobby
	roomsCh   chan roomsResult
	rooms     []protocol.RoomSummary
	roomsErr  string
	selRoom   int
	nameField textField
	roomField textField
	createNew bool
	joining   bool

	// room
	chatField  textField
	intent     iso.Tile
	haveIntent bool
}

func New() *App {
	cfg := DefaultConfig()
	a := &App{
		cfg:     cfg,
		scr:     screenLobby,
		connCh:  make(chan connResult, 4),
		roomsCh: make(chan roomsResult, 1),
		view:    NewView(cfg, 740, 710),
		rend:    newRenderer(cfg),
		start:   time.Now(),
	}
	a.view.SetPan(320, 180)
	a.nameField.maxLen = maxNameLen
	a.nameField.focused = true
	a.roomField.maxLen = maxRoomLen
	a.chatField.maxLen = maxMsgLen

	a.loop = NewLoop(a.step, func() { a.frames++ })
	a.loop.Start()

	a.retryConnect()
	a.fetchRooms()
	return a
}

// step is the fixed-timestep update: session housekeeping runs here so its
// cadence does not drift with the display refresh rate.
func (a *App) step(dtMs float64) {
	if a.session != nil {
		a.session.Tick()
	}
}

func (a *App) retryConnect() {
	if a.connectInFlight {
		return
	}
	a.connSt = stateConnecting
	a.connErrMsg = ""
	a.connectInFlight = true
	go a.connectAsync()
}

func (a *App) connectAsync() {
	n, err := NewNet(netcfg.ServerURL)
	select {
	case a.connCh <- connResult{n: n, err: err}:
	default:
	}
}

func (a *App) fetchRooms() {
	go func() {
		rooms, err := ListRooms()
		select {
		case a.roomsCh <- roomsResult{rooms: rooms, err: err}:
		default:
		}
	}()
}

func (a *App) Update() error {
	a.pollConnection()
	a.drainInbound()

	switch a.scr {
	case screenLobby:
		a.updateLobby()
	case screenRoom:
		a.updateRoom()
	}

	a.loop.Frame(float64(time.Since(a.start).Milliseconds()))
	return nil
}

func (a *App) pollConnection() {
	select {
	case res := <-a.connCh:
		a.connectInFlight = false
		if res.err != nil {
			a.connSt = stateFailed
			a.connErrMsg = res.err.Error()
			a.connRetryAt = time.Now().Add(connRetryDelay)
			return
		}
		a.net = res.n
		a.connSt = stateConnected
		if a.session == nil {
			a.session = NewSession(a.cfg, a.net)
			a.session.OnIdentity(a.onIdentity)
		} else if err := a.session.AttachNet(a.net); err != nil {
			log.Printf("NET: rejoin failed: %v", err)
		}
	default:
	}

	if a.connSt == stateFailed && time.Now().After(a.connRetryAt) {
		a.retryConnect()
	}
}

// drainInbound dispatches everything the reader delivered since the last
// frame, in arrival order.
func (a *App) drainInbound() {
	if a.net == nil {
		return
	}
	for {
		select {
		case env, ok := <-a.net.In():
			if !ok {
				log.Println("NET: connection lost")
				a.net = nil
				a.connSt = stateFailed
				a.connErrMsg = "connection lost"
				a.connRetryAt = time.Now().Add(connRetryDelay)
				return
			}
			if a.session != nil {
				a.session.HandleEnvelope(env)
			}
		default:
			return
		}
	}
}

// onIdentity runs when the server acknowledges the join: switch to the
// room and drop any transient lobby state.
func (a *App) onIdentity(string) {
	a.joining = false
	a.scr = screenRoom
	a.chatField.clear()
	a.chatField.focused = true
	a.haveIntent = false
}

func (a *App) updateLobby() {
	select {
	case res := <-a.roomsCh:
		if res.err != nil {
			a.roomsErr = res.err.Error()
		} else {
			a.roomsErr = ""
			a.rooms = res.rooms
			if a.selRoom >= len(a.rooms) {
				a.selRoom = 0
			}
		}
	default:
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		a.nameField.focused = !a.nameField.focused
		a.roomField.focused = !a.nameField.focused
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.fetchRooms()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF2) {
		a.createNew = !a.createNew
		a.roomField.focused = a.createNew
		a.nameField.focused = !a.createNew
	}
	if len(a.rooms) > 0 && !a.createNew {
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
			a.selRoom = (a.selRoom + 1) % len(a.rooms)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
			a.selRoom = (a.selRoom + len(a.rooms) - 1) % len(a.rooms)
		}
	}

	a.nameField.update()
	a.roomField.update()

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.submitLobby()
	}
}

func (a *App) submitLobby() {
	if a.session == nil || a.connSt != stateConnected || a.joining {
		return
	}
	name := a.nameField.value
	if name == "" {
		return
	}

	var err error
	switch {
	case a.createNew:
		if a.roomField.value == "" {
			return
		}
		err = a.session.Create(a.roomField.value, name)
	case len(a.rooms) > 0:
		err = a.session.Join(a.rooms[a.selRoom].RoomID, name)
	default:
		return
	}
	if err != nil {
		log.Printf("NET: join failed: %v", err)
		return
	}
	a.joining = true
}

func (a *App) updateRoom() {
	if a.session == nil {
		a.scr = screenLobby
		return
	}

	if x, y, clicked := a.ptr.update(a.view); clicked {
		if t, ok := a.session.ClickTile(x, y, a.view.Pan); ok {
			a.intent = t
			a.haveIntent = true
		}
	}

	a.chatField.update()
	a.session.SetTyping(a.chatField.value != "")

	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) && a.chatField.value != "" {
		if err := a.session.SendChat(a.chatField.value); err != nil {
			log.Printf("NET: send chat failed: %v", err)
		}
		a.chatField.clear()
		a.session.SetTyping(false)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.leaveRoom()
	}
}

func (a *App) leaveRoom() {
	if a.session != nil {
		a.session.Leave()
	}
	a.session = nil
	a.net = nil
	a.scr = screenLobby
	a.joining = false
	a.haveIntent = false
	a.connSt = stateIdle
	a.retryConnect()
	a.fetchRooms()
}

// Close tears the client down: the frame loop stops, the pending movement
// timer is cleared and the connection closed. Idempotent.
func (a *App) Close() {
	a.loop.Stop()
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
	if a.net != nil {
		_ = a.net.Close()
		a.net = nil
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	switch a.scr {
	case screenLobby:
		a.drawLobby(screen)
	case screenRoom:
		a.rend.draw(screen, a.session, a.view, a.intent, a.haveIntent)
		a.drawRoomHUD(screen)
	}
	a.drawConnBanner(screen)
}

func (a *App) drawLobby(screen *ebiten.Image) {
	screen.Fill(colBackground)
	f := basicfont.Face7x13

	text.Draw(screen, "ghoulies", f, 24, 36, colText)

	drawField := func(label, value string, focused bool, y int) {
		cur := ""
		if focused {
			cur = "_"
		}
		text.Draw(screen, fmt.Sprintf("%s %s%s", label, value, cur), f, 24, y, colText)
	}
	drawField("name:", a.nameField.value, a.nameField.focused, 72)
	if a.createNew {
		drawField("new room:", a.roomField.value, a.roomField.focused, 92)
	}

	y := 132
	if a.roomsErr != "" {
		text.Draw(screen, "room list unavailable: "+a.roomsErr, f, 24, y, colTileMark)
	} else if len(a.rooms) == 0 {
		text.Draw(screen, "no rooms yet - F2 to create one", f, 24, y, colDimText)
	}
	for i, r := range a.rooms {
		line := fmt.Sprintf("%-24s %d online", r.RoomName, r.TotalConns)
		var c color.Color = colDimText
		if i == a.selRoom && !a.createNew {
			c = colText
			vector.DrawFilledRect(screen, 18, float32(y-12), 320, 16, colBubble, false)
		}
		text.Draw(screen, line, f, 24, y, c)
		y += 18
	}

	help := "enter: join   f2: create   f5: refresh   tab: focus"
	if a.joining {
		help = "joining..."
	}
	text.Draw(screen, help, f, 24, a.view.Height-24, colDimText)
}

func (a *App) drawRoomHUD(screen *ebiten.Image) {
	f := basicfont.Face7x13
	s := a.session
	if s == nil {
		return
	}

	text.Draw(screen, s.RoomID(), f, 12, 20, colDimText)
	if me, ok := s.Me(); ok {
		pos := fmt.Sprintf("%s - {%d,%d}", me.Name, me.Tile.Row, me.Tile.Col)
		text.Draw(screen, pos, f, 12, 36, colDimText)
	}

	// chat input line
	vector.DrawFilledRect(screen, 0, float32(a.view.Height-28), float32(a.view.Width), 28, colBubble, false)
	text.Draw(screen, "> "+a.chatField.value+"_", f, 12, a.view.Height-10, colText)
}

func (a *App) drawConnBanner(screen *ebiten.Image) {
	f := basicfont.Face7x13
	switch a.connSt {
	case stateConnecting:
		text.Draw(screen, "Connecting to server...", f, a.view.Width-180, 20, colDimText)
	case stateFailed:
		text.Draw(screen, "Disconnected - retrying", f, a.view.Width-180, 20, colTileMark)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	a.view.Resize(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
