package game

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cb-v4s/ghoulies/protocol"
)

// ConnState is the lifecycle of one websocket connection. A Net never goes
// back from Closed; reconnecting means dialing a fresh Net.
type ConnState int

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
)

// ErrConnClosed is returned by Send once the connection is no longer open.
// The session owns the reopen policy; Net itself never redials.
var ErrConnClosed = errors.New("net: write on closed connection")

const dialTimeout = 5 * time.Second

// Net owns exactly one live websocket. Inbound frames are decoded into
// protocol envelopes and delivered on In(); the channel closes when the
// connection dies, however it dies.
type Net struct {
	mu    sync.Mutex
	conn  *websocket.Conn
	state ConnState
	inCh  chan protocol.Envelope

	// writeMu serializes WriteMessage: the debounced movement send fires
	// on a timer goroutine while chat and typing go out from the update
	// goroutine, and gorilla allows only one writer at a time.
	writeMu sync.Mutex
}

// NewNet dials the server and starts the reader. The dial has an explicit
// handshake timeout so a dead server fails the attempt instead of hanging.
func NewNet(wsURL string) (*Net, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  dialTimeout,
		EnableCompression: true,
		Proxy: func(*http.Request) (*neturl.URL, error) {
			return nil, nil // disable proxies
		},
	}

	log.Printf("WS dial: %s", wsURL)

	c, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			log.Printf("WS dial failed: %s\n%s", resp.Status, string(body))
		} else {
			log.Printf("WS dial failed: %v", err)
		}
		return nil, err
	}

	n := &Net{conn: c, state: StateOpen, inCh: make(chan protocol.Envelope, 128)}
	go n.reader()
	return n, nil
}

// In is the stream of inbound envelopes, in wire arrival order. Closed on
// disconnect.
func (n *Net) In() <-chan protocol.Envelope { return n.inCh }

func (n *Net) reader() {
	for {
		_, data, err := n.conn.ReadMessage()
		if err != nil {
			n.mu.Lock()
			if n.state != StateClosing && n.state != StateClosed {
				log.Println("read:", err)
			}
			n.state = StateClosed
			n.conn = nil
			n.mu.Unlock()
			close(n.inCh)
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			// One malformed frame must not poison the stream.
			log.Printf("WS: dropping malformed frame: %v", err)
			continue
		}
		select {
		case n.inCh <- env:
		default:
			// Nobody is draining. Blocking here would leak the reader
			// once the app lets go of the connection, so drop instead;
			// the next scene snapshot carries the full room state anyway.
			log.Printf("WS: inbound buffer full, dropping %s", env.Event)
		}
	}
}

// Send serializes one outbound envelope. It fails fast with ErrConnClosed
// when the connection is not open.
func (n *Net) Send(event string, v interface{}) error {
	n.mu.Lock()
	if n.state != StateOpen || n.conn == nil {
		n.mu.Unlock()
		return ErrConnClosed
	}
	c := n.conn
	n.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, _ := json.Marshal(protocol.Envelope{Event: event, Data: data})

	n.writeMu.Lock()
	err = c.WriteMessage(websocket.TextMessage, b)
	n.writeMu.Unlock()
	if err != nil {
		log.Println("write:", err)
		n.mu.Lock()
		n.state = StateClosed
		n.conn = nil
		n.mu.Unlock()
		return err
	}
	return nil
}

// State reports the current connection state.
func (n *Net) State() ConnState {
	if n == nil {
		return StateClosed
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// IsClosed reports whether the connection is gone or Close was called.
func (n *Net) IsClosed() bool {
	return n.State() == StateClosed || n.State() == StateClosing
}

// Close tears the websocket down. Safe to call repeatedly; the reader
// goroutine observes the closed socket and finishes the transition to
// StateClosed.
func (n *Net) Close() error {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	if n.state == StateClosed || n.state == StateClosing {
		n.mu.Unlock()
		return nil
	}
	n.state = StateClosing
	c := n.conn
	n.mu.Unlock()

	var err error
	if c != nil {
		err = c.Close()
	}
	return err
}
