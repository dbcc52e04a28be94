package room

import (
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"go.uber.org/zap"
)

// Sender delivers a message to a single connected peer.
type Sender interface {
	Send(peerID string, message comms.Message) error
}

// Relay fans events out to room members. Delivery is fire-and-forget: a failed
// send is logged and never retried.
type Relay struct {
	log    *zap.Logger
	sender Sender
}

func NewRelay(log *zap.Logger, sender Sender) *Relay {
	return &Relay{log: log, sender: sender}
}

// BroadcastMembership sends the room's snapshot to every member, plus any
// extra peers (a peer that just left still needs to learn it is out).
func (r *Relay) BroadcastMembership(room *Room, extra ...string) {
	message := comms.ToMessage(room.Info())
	for _, member := range room.Members {
		r.send(member, message)
	}
	for _, peer := range extra {
		r.send(peer, message)
	}
}

// ForwardMove sends a move to every member except its origin.
func (r *Relay) ForwardMove(room *Room, origin string, move comms.GameMove) {
	r.forward(room, origin, comms.ToMessage(move))
}

// ForwardFlip sends a flip to every member except its origin.
func (r *Relay) ForwardFlip(room *Room, origin string, flip comms.GameFlip) {
	r.forward(room, origin, comms.ToMessage(flip))
}

func (r *Relay) forward(room *Room, origin string, message comms.Message) {
	for _, member := range room.Members {
		if member != origin {
			r.send(member, message)
		}
	}
}

func (r *Relay) send(peerID string, message comms.Message) {
	if err := r.sender.Send(peerID, message); err != nil {
		r.log.Debug("Dropped message",
			zap.String("peer", peerID),
			zap.String("type", string(message.Type)),
			zap.Error(err),
		)
	}
}
