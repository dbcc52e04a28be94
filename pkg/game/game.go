package game

import "fmt"

// NumPlayers is the number of seats in a game. A peer's player index is its
// position in the room's member list, so only the first NumPlayers members play.
const NumPlayers = 2

// Player is a player index, 0 or 1.
type Player int

const (
	PlayerOne Player = 0
	PlayerTwo Player = 1
)

// Valid reports whether p is one of the two seats.
func (p Player) Valid() bool {
	return p == PlayerOne || p == PlayerTwo
}

// Opponent returns the other seat.
func (p Player) Opponent() Player {
	return 1 - p
}

// PlayerFromIndex converts a member-list index into a Player, returning false
// for spectators and for peers that are not in the list at all.
func PlayerFromIndex(index int) (Player, bool) {
	p := Player(index)
	return p, index >= 0 && p.Valid()
}

// Position is a (row, col) board coordinate. It encodes on the wire as a
// two-element JSON array.
type Position [2]int

func Pos(row, col int) Position {
	return Position{row, col}
}

func (p Position) Row() int { return p[0] }
func (p Position) Col() int { return p[1] }

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p[0], p[1])
}
