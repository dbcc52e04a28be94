// Package peer implements the per-connection game actor. A Peer owns a private
// board, turns local user actions into outbound events and applies inbound
// events from the room.
//
// Only the player who places a piece resolves captures. It emits the move
// followed by one flip per captured cell; the other side places the piece
// without resolving and mirrors each flip as it arrives.
package peer

import (
	"errors"
	"fmt"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game/reversi"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrNotInRoom    = errors.New("not in a room")
	ErrNoSeat       = errors.New("no player seat in this room")
)

type State int

const (
	Disconnected State = iota
	ConnectedNoRoom
	ConnectedInRoom
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case ConnectedNoRoom:
		return "Connected-NoRoom"
	case ConnectedInRoom:
		return "Connected-InRoom"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Emitter sends an event toward the server.
type Emitter interface {
	Emit(e comms.Event) error
}

// Peer is not safe for concurrent use; its owner must deliver inbound events
// and user actions one at a time.
type Peer struct {
	log *zap.Logger
	out Emitter

	id         string
	state      State
	room       comms.RoomInfo
	lastRoomID string
	// seats holds the seated members of the snapshot the board belongs to.
	seats  [game.NumPlayers]string
	player game.Player
	seated bool
	board  *reversi.Board
}

func New(log *zap.Logger, out Emitter) *Peer {
	return &Peer{
		log:   log,
		out:   out,
		board: reversi.NewBoard(),
	}
}

func (p *Peer) ID() string            { return p.id }
func (p *Peer) State() State          { return p.state }
func (p *Peer) Room() comms.RoomInfo  { return p.room }
func (p *Peer) Board() *reversi.Board { return p.board }

// PlayerIndex returns this peer's seat, derived from its position in the last
// membership snapshot. It reports false outside a room and for members past
// the second seat.
func (p *Peer) PlayerIndex() (game.Player, bool) {
	return p.player, p.state == ConnectedInRoom && p.seated
}

// Connect records the identifier the server assigned to this connection.
func (p *Peer) Connect(id string) {
	p.id = id
	p.state = ConnectedNoRoom
	p.log.Debug("Connected", zap.String("peer", id))
}

// Disconnect drops all local state. A reconnect starts over as a new peer.
func (p *Peer) Disconnect() {
	p.log.Debug("Disconnected", zap.String("peer", p.id))
	*p = Peer{log: p.log, out: p.out, board: reversi.NewBoard()}
}

// Handle applies one inbound event.
func (p *Peer) Handle(e comms.Event) error {
	switch e := e.(type) {
	case comms.Connected:
		p.Connect(e.ID)
		return nil
	case comms.RoomInfo:
		p.applyRoomInfo(e)
		return nil
	case comms.GameMove:
		return p.applyRemoteMove(e)
	case comms.GameFlip:
		return p.applyRemoteFlip(e)
	default:
		return fmt.Errorf("unexpected %s event from server", e.Kind())
	}
}

func (p *Peer) applyRoomInfo(info comms.RoomInfo) {
	idx := -1
	for i, member := range info.Members {
		if member == p.id {
			idx = i
			break
		}
	}

	if idx < 0 {
		if p.state == ConnectedInRoom && info.ID == p.room.ID {
			p.log.Debug("No longer in room", zap.String("room", info.ID))
			p.state = ConnectedNoRoom
			p.room = comms.RoomInfo{}
			p.seated = false
		}
		return
	}

	// A game belongs to one pair of seated players. When either seat changes
	// hands both sides start over on an empty board.
	seats := seatsOf(info.Members)
	if info.ID != p.lastRoomID || seats != p.seats {
		p.board.Reset()
		p.lastRoomID = info.ID
		p.seats = seats
	}
	p.state = ConnectedInRoom
	p.room = info
	p.player, p.seated = game.PlayerFromIndex(idx)
	p.log.Debug("Room membership",
		zap.String("room", info.ID),
		zap.Strings("members", info.Members),
		zap.Int("playerIndex", idx),
	)
}

func seatsOf(members []string) [game.NumPlayers]string {
	var seats [game.NumPlayers]string
	copy(seats[:], members)
	return seats
}

func (p *Peer) applyRemoteMove(move comms.GameMove) error {
	if err := p.board.Place(move.Position, move.Player); err != nil {
		p.log.Warn("Rejected remote move", zap.Stringer("position", move.Position), zap.Error(err))
		return err
	}
	p.log.Debug("Applied remote move", zap.Stringer("position", move.Position), zap.Int("player", int(move.Player)))
	return nil
}

func (p *Peer) applyRemoteFlip(flip comms.GameFlip) error {
	if err := p.board.ApplyRemoteFlip(flip.Position); err != nil {
		p.log.Warn("Rejected remote flip", zap.Stringer("position", flip.Position), zap.Error(err))
		return err
	}
	return nil
}

// CreateRoom asks the server for a new room.
func (p *Peer) CreateRoom() error {
	if p.state == Disconnected {
		return ErrNotConnected
	}
	return p.out.Emit(comms.RoomCreate{})
}

// JoinRoom asks the server to move this peer into roomID. Unknown rooms are
// ignored by the server, so no snapshot arriving is the only failure signal.
func (p *Peer) JoinRoom(roomID string) error {
	if p.state == Disconnected {
		return ErrNotConnected
	}
	return p.out.Emit(comms.RoomJoin{RoomID: roomID})
}

// LeaveRoom leaves the current room. The peer is immediately eligible to join
// another one.
func (p *Peer) LeaveRoom() error {
	if p.state != ConnectedInRoom {
		return ErrNotInRoom
	}
	if err := p.out.Emit(comms.RoomLeave{}); err != nil {
		return err
	}
	p.state = ConnectedNoRoom
	p.room = comms.RoomInfo{}
	p.seated = false
	return nil
}

// Place is a local user placement at pos for this peer's own seat. It returns
// the captured cells. A rejected placement emits nothing.
func (p *Peer) Place(pos game.Position) ([]game.Position, error) {
	player, ok := p.PlayerIndex()
	if !ok {
		if p.state != ConnectedInRoom {
			return nil, ErrNotInRoom
		}
		return nil, ErrNoSeat
	}
	return p.place(pos, player)
}

// place applies a placement and, when player is this peer's own seat,
// announces the move and then each capture as a separate flip.
func (p *Peer) place(pos game.Position, player game.Player) ([]game.Position, error) {
	flipped, err := p.board.ApplyPlacement(pos, player)
	if err != nil {
		p.log.Debug("Placement rejected", zap.Stringer("position", pos), zap.Error(err))
		return nil, err
	}

	if own, ok := p.PlayerIndex(); !ok || own != player {
		return flipped, nil
	}
	if err := p.out.Emit(comms.GameMove{Position: pos, Player: player}); err != nil {
		return flipped, fmt.Errorf("emitting move: %w", err)
	}
	for _, f := range flipped {
		if err := p.out.Emit(comms.GameFlip{Position: f}); err != nil {
			return flipped, fmt.Errorf("emitting flip %s: %w", f, err)
		}
	}
	return flipped, nil
}
