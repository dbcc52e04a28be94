// Package client connects a peer.Peer to a room server over a websocket.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game/reversi"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/peer"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("client closed")

const writeWait = 10 * time.Second

// Client runs a Peer on a single goroutine. Inbound frames and user actions
// are both funnelled through that goroutine so the Peer never sees two
// operations at once.
type Client struct {
	log  *zap.Logger
	conn *websocket.Conn
	peer *peer.Peer

	writeMu sync.Mutex
	actions chan func()
	done    chan struct{}
	once    sync.Once
	err     error

	// Updates receives every event applied to the peer. It is never closed
	// and events are dropped when nobody is reading.
	Updates chan comms.Event
}

// Dial connects to a server's websocket endpoint and starts the event loop.
// It returns once the server has assigned this client an identifier.
func Dial(ctx context.Context, log *zap.Logger, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	c := &Client{
		log:     log,
		conn:    conn,
		actions: make(chan func()),
		done:    make(chan struct{}),
		Updates: make(chan comms.Event, 64),
	}
	c.peer = peer.New(log.Named("peer"), c)

	connected := make(chan struct{})
	inbound := make(chan comms.Event)
	go c.readLoop(inbound)
	go c.run(inbound, connected)

	select {
	case <-connected:
		return c, nil
	case <-c.done:
		return nil, c.err
	case <-ctx.Done():
		c.Close()
		return nil, ctx.Err()
	}
}

// Emit implements peer.Emitter.
func (c *Client) Emit(e comms.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(comms.ToMessage(e))
}

func (c *Client) readLoop(inbound chan<- comms.Event) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		m, err := comms.DecodeMessage(data)
		if err != nil {
			c.log.Debug("Ignoring malformed frame", zap.Error(err))
			continue
		}
		e, err := comms.ParseEvent(m)
		if err != nil {
			c.log.Debug("Ignoring invalid event", zap.Error(err))
			continue
		}
		select {
		case inbound <- e:
		case <-c.done:
			return
		}
	}
}

func (c *Client) run(inbound <-chan comms.Event, connected chan<- struct{}) {
	for {
		select {
		case <-c.done:
			c.peer.Disconnect()
			return
		case action := <-c.actions:
			action()
		case e := <-inbound:
			if err := c.peer.Handle(e); err != nil {
				c.log.Warn("Unable to apply event", zap.String("type", string(e.Kind())), zap.Error(err))
				continue
			}
			if _, ok := e.(comms.Connected); ok && connected != nil {
				close(connected)
				connected = nil
			}
			select {
			case c.Updates <- e:
			default:
			}
		}
	}
}

// do runs fn on the event loop and waits for it to finish.
func (c *Client) do(fn func() error) error {
	result := make(chan error, 1)
	action := func() {
		select {
		case <-c.done:
			result <- ErrClosed
		default:
			result <- fn()
		}
	}
	select {
	case c.actions <- action:
	case <-c.done:
		return ErrClosed
	}
	return <-result
}

func (c *Client) ID() string {
	var id string
	c.do(func() error { id = c.peer.ID(); return nil })
	return id
}

func (c *Client) CreateRoom() error {
	return c.do(c.peer.CreateRoom)
}

func (c *Client) JoinRoom(roomID string) error {
	return c.do(func() error { return c.peer.JoinRoom(roomID) })
}

func (c *Client) LeaveRoom() error {
	return c.do(c.peer.LeaveRoom)
}

// Room returns the last membership snapshot and this client's seat in it.
func (c *Client) Room() (info comms.RoomInfo, player game.Player, seated bool) {
	c.do(func() error {
		info = c.peer.Room()
		player, seated = c.peer.PlayerIndex()
		return nil
	})
	return info, player, seated
}

// Place puts one of this client's pieces at pos and returns the captures.
func (c *Client) Place(pos game.Position) ([]game.Position, error) {
	var flipped []game.Position
	err := c.do(func() error {
		var err error
		flipped, err = c.peer.Place(pos)
		return err
	})
	return flipped, err
}

// Board returns a copy of the local board.
func (c *Client) Board() *reversi.Board {
	b := reversi.NewBoard()
	c.do(func() error { *b = *c.peer.Board(); return nil })
	return b
}

// Close sends a close frame and stops the event loop.
func (c *Client) Close() error {
	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	c.shutdown(ErrClosed)
	return err
}

// Done is closed when the connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err reports why the connection ended.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

func (c *Client) shutdown(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
		c.conn.Close()
	})
}
