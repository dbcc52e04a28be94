package reversi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game"
)

const BoardSize = 8

var (
	ErrOccupied    = errors.New("cell is already occupied")
	ErrOutOfBounds = errors.New("position is off the board")
	ErrEmptyCell   = errors.New("cell is empty")
	ErrBadPlayer   = errors.New("invalid player")
)

// Cell is the occupancy of a single square. The zero value is empty; an
// occupied cell stores its owner offset by one.
type Cell uint8

const Empty Cell = 0

func cellFor(p game.Player) Cell {
	return Cell(p + 1)
}

// Owner returns the player owning the cell, or false if it is empty.
func (c Cell) Owner() (game.Player, bool) {
	if c == Empty {
		return 0, false
	}
	return game.Player(c - 1), true
}

// Compass directions, clockwise from north-west.
var directions = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1}, {0, 1},
	{1, 1}, {1, 0}, {1, -1}, {0, -1},
}

// Board is an 8x8 Reversi grid. Each peer owns a private Board; it is not safe
// for concurrent use.
type Board struct {
	cells [BoardSize][BoardSize]Cell
}

func NewBoard() *Board {
	return &Board{}
}

// Reset clears every cell.
func (b *Board) Reset() {
	b.cells = [BoardSize][BoardSize]Cell{}
}

func InBounds(pos game.Position) bool {
	return pos.Row() >= 0 && pos.Row() < BoardSize && pos.Col() >= 0 && pos.Col() < BoardSize
}

// At returns the cell at pos. Positions off the board read as empty.
func (b *Board) At(pos game.Position) Cell {
	if !InBounds(pos) {
		return Empty
	}
	return b.cells[pos.Row()][pos.Col()]
}

// Count returns how many cells p owns.
func (b *Board) Count(p game.Player) int {
	n := 0
	for _, row := range b.cells {
		for _, c := range row {
			if c == cellFor(p) {
				n++
			}
		}
	}
	return n
}

// Place sets an empty cell to player without resolving captures.
func (b *Board) Place(pos game.Position, player game.Player) error {
	if !player.Valid() {
		return fmt.Errorf("%w: %d", ErrBadPlayer, player)
	}
	if !InBounds(pos) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	if b.At(pos) != Empty {
		return fmt.Errorf("%w: %s", ErrOccupied, pos)
	}
	b.cells[pos.Row()][pos.Col()] = cellFor(player)
	return nil
}

// ResolveCaptures returns every opposing cell that a piece of player at pos
// would capture. It does not check whether pos itself is empty and does not
// modify the board.
//
// A run is captured when, walking away from pos, one or more opposing cells
// are followed directly by a cell owned by player. Leaving the board or
// meeting an empty cell first ends the walk with nothing captured.
func (b *Board) ResolveCaptures(pos game.Position, player game.Player) []game.Position {
	var captured []game.Position
	for _, d := range directions {
		var run []game.Position
		next := pos
		for {
			next = game.Pos(next.Row()+d[0], next.Col()+d[1])
			owner, occupied := b.At(next).Owner()
			if !InBounds(next) || !occupied {
				break
			}
			if owner == player {
				captured = append(captured, run...)
				break
			}
			run = append(run, next)
		}
	}
	return captured
}

// ApplyPlacement places player's piece at pos and flips every captured cell,
// returning the flipped positions in scan order.
func (b *Board) ApplyPlacement(pos game.Position, player game.Player) ([]game.Position, error) {
	if err := b.Place(pos, player); err != nil {
		return nil, err
	}
	captured := b.ResolveCaptures(pos, player)
	for _, c := range captured {
		b.cells[c.Row()][c.Col()] = cellFor(player)
	}
	return captured, nil
}

// ApplyRemoteFlip toggles the owner of an occupied cell. It trusts the sender's
// capture resolution and performs no rule checks beyond refusing positions
// that cannot be represented.
func (b *Board) ApplyRemoteFlip(pos game.Position) error {
	if !InBounds(pos) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, pos)
	}
	owner, occupied := b.At(pos).Owner()
	if !occupied {
		return fmt.Errorf("%w: %s", ErrEmptyCell, pos)
	}
	b.cells[pos.Row()][pos.Col()] = cellFor(owner.Opponent())
	return nil
}

// String renders the board one row per line, '.' for empty, 'X' for player 0
// and 'O' for player 1.
func (b *Board) String() string {
	var sb strings.Builder
	sb.WriteString("  ")
	for col := 0; col < BoardSize; col++ {
		fmt.Fprintf(&sb, " %d", col)
	}
	sb.WriteByte('\n')
	for row := 0; row < BoardSize; row++ {
		fmt.Fprintf(&sb, "%d ", row)
		for col := 0; col < BoardSize; col++ {
			sb.WriteByte(' ')
			switch owner, occupied := b.cells[row][col].Owner(); {
			case !occupied:
				sb.WriteByte('.')
			case owner == game.PlayerOne:
				sb.WriteByte('X')
			default:
				sb.WriteByte('O')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
