package comms

import (
	"errors"
	"fmt"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game"
	"github.com/mitchellh/mapstructure"
)

// EventKind names a protocol event. The set is closed: ParseEvent rejects
// anything not listed here.
type EventKind string

const (
	KindConnect    EventKind = "connect"
	KindRoomCreate EventKind = "roomCreate"
	KindRoomJoin   EventKind = "roomJoin"
	KindRoomLeave  EventKind = "roomLeave"
	KindRoomInfo   EventKind = "roomInfo"
	KindGameMove   EventKind = "gameMove"
	KindGameFlip   EventKind = "gameFlip"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Message is the envelope of every frame sent across a socket connection.
type Message struct {
	Type     EventKind   `json:"type"`
	Contents interface{} `json:"contents,omitempty"`
}

// Event is implemented by every payload type.
type Event interface {
	Kind() EventKind
}

// Connected tells a peer its own connection identifier.
type Connected struct {
	ID string `json:"id"`
}

type RoomCreate struct{}

// RoomJoin carries the target room identifier. On the wire its contents is the
// bare identifier string.
type RoomJoin struct {
	RoomID string
}

type RoomLeave struct{}

// RoomInfo is a full membership snapshot. Member order is join order.
type RoomInfo struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
}

type GameMove struct {
	Position game.Position `json:"position"`
	Player   game.Player   `json:"player"`
}

type GameFlip struct {
	Position game.Position `json:"position"`
}

func (Connected) Kind() EventKind  { return KindConnect }
func (RoomCreate) Kind() EventKind { return KindRoomCreate }
func (RoomJoin) Kind() EventKind   { return KindRoomJoin }
func (RoomLeave) Kind() EventKind  { return KindRoomLeave }
func (RoomInfo) Kind() EventKind   { return KindRoomInfo }
func (GameMove) Kind() EventKind   { return KindGameMove }
func (GameFlip) Kind() EventKind   { return KindGameFlip }

// ToMessage wraps an event in its envelope.
func ToMessage(e Event) Message {
	switch e := e.(type) {
	case RoomCreate, RoomLeave:
		return Message{Type: e.Kind()}
	case RoomJoin:
		return Message{Type: e.Kind(), Contents: e.RoomID}
	default:
		return Message{Type: e.Kind(), Contents: e}
	}
}

// ParseEvent decodes a Message read off the wire into its typed payload.
// Contents arrive as generic JSON values (maps, slices, float64) and are
// decoded with mapstructure using the payloads' json tags.
func ParseEvent(m Message) (Event, error) {
	var (
		e   Event
		err error
	)
	switch m.Type {
	case KindConnect:
		var c Connected
		err = decode(m, &c)
		e = c
	case KindRoomCreate:
		e = RoomCreate{}
	case KindRoomJoin:
		var j RoomJoin
		err = decode(m, &j.RoomID)
		e = j
	case KindRoomLeave:
		e = RoomLeave{}
	case KindRoomInfo:
		var info RoomInfo
		err = decode(m, &info)
		e = info
	case KindGameMove:
		var move GameMove
		if err = decode(m, &move); err == nil && !move.Player.Valid() {
			err = fmt.Errorf("decoding %s: invalid player %d", m.Type, move.Player)
		}
		e = move
	case KindGameFlip:
		var flip GameFlip
		err = decode(m, &flip)
		e = flip
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownEvent, m.Type)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func decode(m Message, out interface{}) error {
	if m.Contents == nil {
		return fmt.Errorf("decoding %s: missing contents", m.Type)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "json",
		ErrorUnused: true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(m.Contents); err != nil {
		return fmt.Errorf("decoding %s: %w", m.Type, err)
	}
	return nil
}
