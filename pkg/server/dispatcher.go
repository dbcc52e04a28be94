package server

import (
	"context"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"go.uber.org/zap"
)

type requestType int

const (
	connectRequest requestType = iota
	disconnectRequest
	eventRequest
	roomQueryRequest
)

// Request is a unit of work for the dispatcher. Which fields are set depends
// on Type.
type Request struct {
	Type   requestType
	Conn   *comms.ConnectionWrapper
	PeerID string
	Event  comms.Event
	RoomID string
	Reply  chan roomQueryReply
}

type roomQueryReply struct {
	info comms.RoomInfo
	ok   bool
}

// RunDispatcher pops requests off the broadcast channel one at a time until
// ctx is cancelled. It is the only goroutine that touches the room registry,
// so every event observes the effects of all earlier ones.
func (s *Server) RunDispatcher(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Dispatcher stopped")
			return
		case request := <-s.broadcast:
			s.handleRequest(request)
		}
	}
}

// submit hands a request to the dispatcher, reporting false once the
// dispatcher has stopped.
func (s *Server) submit(request Request) bool {
	select {
	case s.broadcast <- request:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) handleRequest(request Request) {
	switch request.Type {
	case connectRequest:
		s.connections.Put(request.Conn)
		err := s.connections.Send(request.PeerID, comms.ToMessage(comms.Connected{ID: request.PeerID}))
		if err != nil {
			s.log.Warn("Error sending connect", zap.String("peer", request.PeerID), zap.Error(err))
		}

	case disconnectRequest:
		s.registry.Disconnect(request.PeerID)
		s.connections.Delete(request.PeerID)
		s.log.Debug("Peer disconnected", zap.String("peer", request.PeerID))

	case roomQueryRequest:
		info, ok := s.registry.Snapshot(request.RoomID)
		request.Reply <- roomQueryReply{info: info, ok: ok}

	case eventRequest:
		s.handleEvent(request.PeerID, request.Event)
	}
}

// handleEvent applies one client event. Registry errors are already logged
// by the registry and never reach the client.
func (s *Server) handleEvent(peerID string, event comms.Event) {
	switch e := event.(type) {
	case comms.RoomCreate:
		if _, err := s.registry.CreateAndJoin(peerID); err != nil {
			s.log.Error("Unable to create room", zap.String("peer", peerID), zap.Error(err))
		}
	case comms.RoomJoin:
		_ = s.registry.JoinRoom(peerID, e.RoomID)
	case comms.RoomLeave:
		_ = s.registry.LeaveCurrent(peerID)
	case comms.GameMove:
		s.registry.ForwardMove(peerID, e)
	case comms.GameFlip:
		s.registry.ForwardFlip(peerID, e)
	default:
		s.log.Debug("Ignoring server-bound event", zap.String("peer", peerID), zap.String("type", string(event.Kind())))
	}
}
