package room

import (
	"encoding/hex"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"
)

// Room is a group of peers playing one game. Members are kept in join order;
// a member's index is its player index.
type Room struct {
	ID      string
	Members []string
}

// newRoomID returns 32 hex characters drawn from crypto/rand.
func newRoomID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(id[:]), nil
}

func (r *Room) IsEmpty() bool {
	return len(r.Members) == 0
}

func (r *Room) Has(peerID string) bool {
	return slices.Contains(r.Members, peerID)
}

// remove deletes peerID from the member list, reporting whether it was there.
func (r *Room) remove(peerID string) bool {
	idx := slices.Index(r.Members, peerID)
	if idx < 0 {
		return false
	}
	r.Members = slices.Delete(r.Members, idx, idx+1)
	return true
}

// Info returns a snapshot that does not alias the member list.
func (r *Room) Info() comms.RoomInfo {
	members := slices.Clone(r.Members)
	if members == nil {
		members = []string{}
	}
	return comms.RoomInfo{ID: r.ID, Members: members}
}
