package room

import (
	"errors"
	"fmt"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"go.uber.org/zap"
)

var ErrRoomNotFound = errors.New("room does not exist")

// Registry is the authoritative room table. It is not safe for concurrent
// use: the server owns one Registry and drives it from a single goroutine,
// so every operation sees a fully-updated table.
//
// Invariants held between operations:
//   - every room in the table has at least one member;
//   - peerToRoom[p] == id exactly when p is in rooms[id].Members.
type Registry struct {
	log        *zap.Logger
	relay      *Relay
	rooms      map[string]*Room
	peerToRoom map[string]string
}

func NewRegistry(log *zap.Logger, sender Sender) *Registry {
	return &Registry{
		log:        log,
		relay:      NewRelay(log.Named("relay"), sender),
		rooms:      make(map[string]*Room),
		peerToRoom: make(map[string]string),
	}
}

// createRoom inserts a new, empty room. The caller must join a member before
// returning, otherwise the room breaks the non-empty invariant.
func (r *Registry) createRoom() (*Room, error) {
	id, err := newRoomID()
	if err != nil {
		return nil, fmt.Errorf("generating room id: %w", err)
	}
	room := &Room{ID: id, Members: []string{}}
	r.rooms[id] = room
	r.log.Debug("Created room", zap.String("room", id))
	return room, nil
}

// CreateAndJoin creates a room and joins peerID to it as player 0.
func (r *Registry) CreateAndJoin(peerID string) (*Room, error) {
	room, err := r.createRoom()
	if err != nil {
		return nil, err
	}
	if err := r.JoinRoom(peerID, room.ID); err != nil {
		return nil, err
	}
	return room, nil
}

// Get looks up a room by id.
func (r *Registry) Get(roomID string) (*Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

// RoomOf returns the room peerID is currently in.
func (r *Registry) RoomOf(peerID string) (*Room, bool) {
	id, ok := r.peerToRoom[peerID]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// JoinRoom moves peerID into roomID, leaving its previous room first, and
// broadcasts the new membership. An unknown room is logged and ignored.
// Joining the room the peer is already in only re-sends the snapshot.
func (r *Registry) JoinRoom(peerID, roomID string) error {
	room, ok := r.Get(roomID)
	if !ok {
		r.log.Debug("Join of unknown room ignored", zap.String("peer", peerID), zap.String("room", roomID))
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	if current, ok := r.RoomOf(peerID); ok {
		if current == room {
			r.relay.BroadcastMembership(room)
			return nil
		}
		r.leave(peerID, current, false)
	}

	room.Members = append(room.Members, peerID)
	r.peerToRoom[peerID] = room.ID
	r.log.Debug("Peer joined room", zap.String("peer", peerID), zap.String("room", room.ID))

	r.relay.BroadcastMembership(room)
	return nil
}

// LeaveRoom removes peerID from roomID. The remaining members and the leaver
// receive the updated snapshot. Leaving a room the peer is not in is a no-op;
// an unknown room is logged and ignored.
func (r *Registry) LeaveRoom(peerID, roomID string) error {
	room, ok := r.Get(roomID)
	if !ok {
		r.log.Debug("Leave of unknown room ignored", zap.String("peer", peerID), zap.String("room", roomID))
		return fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	r.leave(peerID, room, true)
	return nil
}

// LeaveCurrent removes peerID from whatever room it is in.
func (r *Registry) LeaveCurrent(peerID string) error {
	room, ok := r.RoomOf(peerID)
	if !ok {
		r.log.Debug("Leave ignored, peer is not in a room", zap.String("peer", peerID))
		return fmt.Errorf("%w: peer %s has no room", ErrRoomNotFound, peerID)
	}
	r.leave(peerID, room, true)
	return nil
}

// Disconnect is the implicit leave run when a peer's transport is lost.
func (r *Registry) Disconnect(peerID string) {
	if room, ok := r.RoomOf(peerID); ok {
		r.leave(peerID, room, false)
	}
}

func (r *Registry) leave(peerID string, room *Room, notifyLeaver bool) {
	if !room.remove(peerID) {
		return
	}
	if r.peerToRoom[peerID] == room.ID {
		delete(r.peerToRoom, peerID)
	}
	r.log.Debug("Peer left room", zap.String("peer", peerID), zap.String("room", room.ID))

	if room.IsEmpty() {
		delete(r.rooms, room.ID)
		r.log.Debug("Destroyed empty room", zap.String("room", room.ID))
	}

	if notifyLeaver {
		r.relay.BroadcastMembership(room, peerID)
	} else {
		r.relay.BroadcastMembership(room)
	}
}

// ForwardMove relays a move to the other members of the origin's room.
func (r *Registry) ForwardMove(origin string, move comms.GameMove) {
	room, ok := r.RoomOf(origin)
	if !ok {
		r.log.Debug("Move from peer outside any room dropped", zap.String("peer", origin))
		return
	}
	r.relay.ForwardMove(room, origin, move)
}

// ForwardFlip relays a flip to the other members of the origin's room.
func (r *Registry) ForwardFlip(origin string, flip comms.GameFlip) {
	room, ok := r.RoomOf(origin)
	if !ok {
		r.log.Debug("Flip from peer outside any room dropped", zap.String("peer", origin))
		return
	}
	r.relay.ForwardFlip(room, origin, flip)
}

// Snapshot returns the membership of roomID.
func (r *Registry) Snapshot(roomID string) (comms.RoomInfo, bool) {
	room, ok := r.Get(roomID)
	if !ok {
		return comms.RoomInfo{}, false
	}
	return room.Info(), true
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	return len(r.rooms)
}
