package server

import (
	"errors"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// connectionHandler upgrades new HTTP requests from clients to websockets,
// reading in further messages from those clients.
func (s *Server) connectionHandler(c *gin.Context) {
	socket, err := s.socketUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("Error upgrading connection", zap.Error(err))
		return
	}

	peerID := uuid.NewString()
	conn := comms.NewConnectionWrapper(s.log.Named("conn"), socket, peerID, s.config.SendQueueSize, comms.Timeouts{
		WriteWait:  s.config.WriteWait,
		PongWait:   s.config.PongWait,
		PingPeriod: s.config.PingPeriod,
	})
	conn.StartKeepalive(s.config.ReadLimit)
	go conn.WritePump()

	defer conn.Close()
	if !s.submit(Request{Type: connectRequest, Conn: conn, PeerID: peerID}) {
		return
	}
	defer s.submit(Request{Type: disconnectRequest, PeerID: peerID})

	// Forever handle messages from this new client
	for {
		if err := s.handleIncomingMessage(conn); err != nil {
			return
		}
	}
}

// handleIncomingMessage reads one frame and submits it to the dispatcher,
// returning an error once the client has disconnected. Frames that are not
// valid events are logged and skipped.
func (s *Server) handleIncomingMessage(conn *comms.ConnectionWrapper) error {
	message, err := conn.ReadMessage()
	if err != nil {
		if errors.Is(err, comms.ErrMalformedFrame) {
			s.log.Debug("Ignoring malformed frame", zap.String("peer", conn.PeerID), zap.Error(err))
			return nil
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			s.log.Info("Client errored or disconnected", zap.String("peer", conn.PeerID), zap.Error(err))
		}
		return err
	}

	event, err := comms.ParseEvent(message)
	if err != nil {
		s.log.Debug("Ignoring invalid event", zap.String("peer", conn.PeerID), zap.Error(err))
		return nil
	}

	if !s.submit(Request{Type: eventRequest, PeerID: conn.PeerID, Event: event}) {
		return errors.New("dispatcher stopped")
	}
	return nil
}
