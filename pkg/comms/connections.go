package comms

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	// ErrMalformedFrame wraps a frame that arrived intact but is not a valid
	// envelope. The connection is still usable.
	ErrMalformedFrame = errors.New("malformed frame")
)

// Timeouts used by a Connection's keepalive.
type Timeouts struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

// ConnectionWrapper wraps a client websocket connection. Reads happen on the
// caller's goroutine; writes are queued on WriteChannel and drained by
// WritePump so that a slow client never blocks the sender.
type ConnectionWrapper struct {
	Socket       *websocket.Conn
	WriteChannel chan Message
	PeerID       string

	log       *zap.Logger
	timeouts  Timeouts
	closeOnce sync.Once
	done      chan struct{}
}

func NewConnectionWrapper(log *zap.Logger, socket *websocket.Conn, peerID string, queueSize int, timeouts Timeouts) *ConnectionWrapper {
	return &ConnectionWrapper{
		Socket:       socket,
		WriteChannel: make(chan Message, queueSize),
		PeerID:       peerID,
		log:          log.With(zap.String("peer", peerID)),
		timeouts:     timeouts,
		done:         make(chan struct{}),
	}
}

// ReadMessage blocks until the next frame arrives. Any received frame or pong
// extends the read deadline. A frame that cannot be decoded yields an error
// wrapping ErrMalformedFrame; any other error means the transport is gone.
func (c *ConnectionWrapper) ReadMessage() (Message, error) {
	_, data, err := c.Socket.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	if c.timeouts.PongWait > 0 {
		c.Socket.SetReadDeadline(time.Now().Add(c.timeouts.PongWait))
	}
	return DecodeMessage(data)
}

// DecodeMessage parses one raw frame into its envelope.
func DecodeMessage(data []byte) (Message, error) {
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return message, nil
}

// Send queues a message without blocking.
func (c *ConnectionWrapper) Send(message Message) error {
	select {
	case <-c.done:
		return websocket.ErrCloseSent
	default:
	}
	select {
	case c.WriteChannel <- message:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// WritePump writes queued messages and periodic pings until the connection
// is closed. It owns the socket and closes it on return.
func (c *ConnectionWrapper) WritePump() {
	defer c.Socket.Close()

	var tick <-chan time.Time
	if c.timeouts.PingPeriod > 0 {
		ticker := time.NewTicker(c.timeouts.PingPeriod)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-c.done:
			c.Socket.SetWriteDeadline(time.Now().Add(c.timeouts.WriteWait))
			c.Socket.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case message := <-c.WriteChannel:
			c.Socket.SetWriteDeadline(time.Now().Add(c.timeouts.WriteWait))
			if err := c.Socket.WriteJSON(message); err != nil {
				c.log.Warn("Error sending message", zap.String("type", string(message.Type)), zap.Error(err))
				c.Close()
				return
			}
		case <-tick:
			c.Socket.SetWriteDeadline(time.Now().Add(c.timeouts.WriteWait))
			if err := c.Socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", zap.Error(err))
				c.Close()
				return
			}
		}
	}
}

// StartKeepalive arms the read deadline and extends it on every pong.
func (c *ConnectionWrapper) StartKeepalive(readLimit int64) {
	if readLimit > 0 {
		c.Socket.SetReadLimit(readLimit)
	}
	if c.timeouts.PongWait <= 0 {
		return
	}
	c.Socket.SetReadDeadline(time.Now().Add(c.timeouts.PongWait))
	c.Socket.SetPongHandler(func(string) error {
		return c.Socket.SetReadDeadline(time.Now().Add(c.timeouts.PongWait))
	})
}

// Close stops the write pump, which sends a close frame. The reader notices
// the close and returns. Safe to call more than once.
func (c *ConnectionWrapper) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		// Unblock the reader if the peer never answers the close frame. The
		// deadline goes on the net.Conn since the reader goroutine owns Socket.
		c.Socket.UnderlyingConn().SetReadDeadline(time.Now().Add(c.timeouts.WriteWait))
	})
}

// Done is closed once Close has been called.
func (c *ConnectionWrapper) Done() <-chan struct{} {
	return c.done
}

// ConnectionStore maps peer identifiers to live connections.
type ConnectionStore struct {
	// We're using a sync.Map which is optimised for keys written once and read many times
	store sync.Map
}

func (s *ConnectionStore) Put(conn *ConnectionWrapper) {
	s.store.Store(conn.PeerID, conn)
}

func (s *ConnectionStore) Get(peerID string) (*ConnectionWrapper, bool) {
	if value, ok := s.store.Load(peerID); ok {
		return value.(*ConnectionWrapper), true
	}
	return nil, false
}

func (s *ConnectionStore) Delete(peerID string) {
	s.store.Delete(peerID)
}

// Send queues a message for peerID. A peer whose queue is full is closed
// rather than silently missing an event; its disconnect then runs the
// normal leave path.
func (s *ConnectionStore) Send(peerID string, message Message) error {
	conn, ok := s.Get(peerID)
	if !ok {
		return errors.New("no connection for peer " + peerID)
	}
	err := conn.Send(message)
	if errors.Is(err, ErrSendQueueFull) {
		conn.log.Warn("Send queue full, closing connection")
		conn.Close()
	}
	return err
}

// CloseAll closes every stored connection.
func (s *ConnectionStore) CloseAll() {
	s.store.Range(func(_, value interface{}) bool {
		value.(*ConnectionWrapper).Close()
		return true
	})
}
