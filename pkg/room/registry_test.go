package room

import (
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"testing"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

// recordingSender keeps every message sent to each peer.
type recordingSender struct {
	sent map[string][]comms.Message
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(map[string][]comms.Message)}
}

func (s *recordingSender) Send(peerID string, message comms.Message) error {
	s.sent[peerID] = append(s.sent[peerID], message)
	return nil
}

func (s *recordingSender) reset() {
	s.sent = make(map[string][]comms.Message)
}

// lastRoomInfo returns the most recent snapshot sent to peer.
func (s *recordingSender) lastRoomInfo(t *testing.T, peer string) comms.RoomInfo {
	t.Helper()
	msgs := s.sent[peer]
	for i := len(msgs) - 1; i >= 0; i-- {
		if info, ok := msgs[i].Contents.(comms.RoomInfo); ok {
			return info
		}
	}
	t.Fatalf("peer %s received no roomInfo", peer)
	return comms.RoomInfo{}
}

func newTestRegistry(t *testing.T) (*Registry, *recordingSender) {
	sender := newRecordingSender()
	return NewRegistry(zaptest.NewLogger(t), sender), sender
}

func equalMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkInvariants verifies that no room is empty and that the peer table and
// member lists agree in both directions.
func checkInvariants(t *testing.T, r *Registry) {
	t.Helper()
	seen := make(map[string]string)
	for id, room := range r.rooms {
		if room.IsEmpty() {
			t.Fatalf("room %s is empty but still registered", id)
		}
		for _, m := range room.Members {
			if other, dup := seen[m]; dup {
				t.Fatalf("peer %s is in rooms %s and %s", m, other, id)
			}
			seen[m] = id
			if r.peerToRoom[m] != id {
				t.Fatalf("peer %s in room %s but table says %q", m, id, r.peerToRoom[m])
			}
		}
	}
	for peer, id := range r.peerToRoom {
		if seen[peer] != id {
			t.Fatalf("table maps %s to %s but it is not a member", peer, id)
		}
	}
}

func TestCreateAndJoin(t *testing.T) {
	r, sender := newTestRegistry(t)

	room, err := r.CreateAndJoin("A")
	if err != nil {
		t.Fatalf("CreateAndJoin: %v", err)
	}
	if got := sender.lastRoomInfo(t, "A"); got.ID != room.ID || !equalMembers(got.Members, []string{"A"}) {
		t.Errorf("A got %+v", got)
	}

	if err := r.JoinRoom("B", room.ID); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	want := []string{"A", "B"}
	for _, peer := range want {
		info := sender.lastRoomInfo(t, peer)
		if !equalMembers(info.Members, want) {
			t.Errorf("%s got members %v, want %v", peer, info.Members, want)
		}
	}

	info := sender.lastRoomInfo(t, "B")
	for i, peer := range want {
		idx := indexOf(info.Members, peer)
		if p, ok := game.PlayerFromIndex(idx); !ok || p != game.Player(i) {
			t.Errorf("%s player index = %d, want %d", peer, idx, i)
		}
	}
	checkInvariants(t, r)
}

func indexOf(members []string, peer string) int {
	for i, m := range members {
		if m == peer {
			return i
		}
	}
	return -1
}

func TestRoomIDs(t *testing.T) {
	r, _ := newTestRegistry(t)
	hexID := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		room, err := r.CreateAndJoin(fmt.Sprintf("peer-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if !hexID.MatchString(room.ID) {
			t.Fatalf("room id %q is not 32 hex characters", room.ID)
		}
		if seen[room.ID] {
			t.Fatalf("duplicate room id %s", room.ID)
		}
		seen[room.ID] = true
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sender := newRecordingSender()
	r := NewRegistry(zap.New(core), sender)

	room, _ := r.CreateAndJoin("A")
	sender.reset()

	err := r.JoinRoom("A", "no-such-room")
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
	if len(sender.sent) != 0 {
		t.Errorf("unexpected messages %v", sender.sent)
	}
	if got, _ := r.RoomOf("A"); got != room {
		t.Error("failed join moved the peer out of its room")
	}
	if logs.FilterMessage("Join of unknown room ignored").Len() != 1 {
		t.Error("failed join was not logged")
	}
	checkInvariants(t, r)
}

func TestDisconnect(t *testing.T) {
	r, sender := newTestRegistry(t)
	room, _ := r.CreateAndJoin("A")
	r.JoinRoom("B", room.ID)

	r.Disconnect("A")
	if got := sender.lastRoomInfo(t, "B"); !equalMembers(got.Members, []string{"B"}) {
		t.Errorf("B got %v after A disconnected", got.Members)
	}
	if _, ok := r.RoomOf("A"); ok {
		t.Error("A still mapped to a room")
	}
	checkInvariants(t, r)

	if err := r.LeaveRoom("B", room.ID); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	if _, ok := r.Get(room.ID); ok {
		t.Error("room survived its last member leaving")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestLeaveNotifiesLeaver(t *testing.T) {
	r, sender := newTestRegistry(t)
	room, _ := r.CreateAndJoin("A")
	r.JoinRoom("B", room.ID)

	if err := r.LeaveCurrent("B"); err != nil {
		t.Fatal(err)
	}
	for _, peer := range []string{"A", "B"} {
		if got := sender.lastRoomInfo(t, peer); !equalMembers(got.Members, []string{"A"}) {
			t.Errorf("%s got %v", peer, got.Members)
		}
	}

	if err := r.LeaveCurrent("A"); err != nil {
		t.Fatal(err)
	}
	if got := sender.lastRoomInfo(t, "A"); got.ID != room.ID || len(got.Members) != 0 {
		t.Errorf("A got %+v after leaving the last seat", got)
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r, sender := newTestRegistry(t)
	roomA, _ := r.CreateAndJoin("A")
	r.JoinRoom("B", roomA.ID)
	roomC, _ := r.CreateAndJoin("C")
	sender.reset()

	// Not a member.
	if err := r.LeaveRoom("C", roomA.ID); err != nil {
		t.Fatalf("LeaveRoom of non-member: %v", err)
	}
	if !equalMembers(roomA.Members, []string{"A", "B"}) || !equalMembers(roomC.Members, []string{"C"}) {
		t.Errorf("membership changed: %v %v", roomA.Members, roomC.Members)
	}
	if len(sender.sent) != 0 {
		t.Errorf("no-op leave sent %v", sender.sent)
	}

	// Double leave.
	r.LeaveRoom("B", roomA.ID)
	if err := r.LeaveRoom("B", roomA.ID); err != nil {
		t.Fatalf("second LeaveRoom: %v", err)
	}
	if !equalMembers(roomA.Members, []string{"A"}) {
		t.Errorf("room A members = %v", roomA.Members)
	}

	// Unknown room.
	if err := r.LeaveRoom("A", "gone"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v", err)
	}
	if err := r.LeaveCurrent("nobody"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("err = %v", err)
	}
	r.Disconnect("nobody")
	checkInvariants(t, r)
}

func TestJoinSwitchesRoom(t *testing.T) {
	r, sender := newTestRegistry(t)
	first, _ := r.CreateAndJoin("A")
	r.JoinRoom("B", first.ID)
	second, _ := r.CreateAndJoin("C")

	if err := r.JoinRoom("B", second.ID); err != nil {
		t.Fatal(err)
	}
	if got := sender.lastRoomInfo(t, "A"); !equalMembers(got.Members, []string{"A"}) {
		t.Errorf("A got %v", got.Members)
	}
	if got := sender.lastRoomInfo(t, "B"); got.ID != second.ID || !equalMembers(got.Members, []string{"C", "B"}) {
		t.Errorf("B got %+v", got)
	}
	checkInvariants(t, r)
}

func TestCreateWhileInRoomDestroysOldRoom(t *testing.T) {
	r, _ := newTestRegistry(t)
	first, _ := r.CreateAndJoin("A")
	second, _ := r.CreateAndJoin("A")

	if _, ok := r.Get(first.ID); ok {
		t.Error("abandoned room was not destroyed")
	}
	if got, _ := r.RoomOf("A"); got != second {
		t.Error("A is not in the new room")
	}
	checkInvariants(t, r)
}

func TestRejoinSameRoom(t *testing.T) {
	r, sender := newTestRegistry(t)
	room, _ := r.CreateAndJoin("A")
	r.JoinRoom("B", room.ID)
	sender.reset()

	if err := r.JoinRoom("A", room.ID); err != nil {
		t.Fatal(err)
	}
	if !equalMembers(room.Members, []string{"A", "B"}) {
		t.Errorf("members = %v", room.Members)
	}
	if len(sender.sent["A"]) != 1 || len(sender.sent["B"]) != 1 {
		t.Errorf("expected one snapshot each, got %v", sender.sent)
	}
	checkInvariants(t, r)
}

func TestForwardExcludesOrigin(t *testing.T) {
	r, sender := newTestRegistry(t)
	room, _ := r.CreateAndJoin("A")
	r.JoinRoom("B", room.ID)
	r.CreateAndJoin("C")
	sender.reset()

	move := comms.GameMove{Position: game.Pos(2, 2), Player: game.PlayerTwo}
	flip := comms.GameFlip{Position: game.Pos(2, 3)}
	r.ForwardMove("B", move)
	r.ForwardFlip("B", flip)

	if len(sender.sent["B"]) != 0 {
		t.Errorf("origin received its own events: %v", sender.sent["B"])
	}
	if len(sender.sent["C"]) != 0 {
		t.Errorf("peer in another room received events: %v", sender.sent["C"])
	}
	got := sender.sent["A"]
	if len(got) != 2 {
		t.Fatalf("A received %d messages, want 2", len(got))
	}
	if got[0].Type != comms.KindGameMove || got[0].Contents != move {
		t.Errorf("first message = %+v", got[0])
	}
	if got[1].Type != comms.KindGameFlip || got[1].Contents != flip {
		t.Errorf("second message = %+v", got[1])
	}

	sender.reset()
	r.ForwardMove("nobody", move)
	if len(sender.sent) != 0 {
		t.Errorf("move from a room-less peer was forwarded: %v", sender.sent)
	}
}

// TestRandomOperationsKeepInvariants drives the registry with a seeded random
// mix of create, join, leave and disconnect and checks the room invariants
// after every step.
func TestRandomOperationsKeepInvariants(t *testing.T) {
	r := NewRegistry(zap.NewNop(), newRecordingSender())
	rng := rand.New(rand.NewSource(42))
	peers := []string{"p0", "p1", "p2", "p3", "p4", "p5"}
	var known []string

	for step := 0; step < 2000; step++ {
		peer := peers[rng.Intn(len(peers))]
		switch rng.Intn(5) {
		case 0:
			room, err := r.CreateAndJoin(peer)
			if err != nil {
				t.Fatal(err)
			}
			known = append(known, room.ID)
		case 1:
			if len(known) > 0 {
				r.JoinRoom(peer, known[rng.Intn(len(known))])
			}
		case 2:
			if len(known) > 0 {
				r.LeaveRoom(peer, known[rng.Intn(len(known))])
			}
		case 3:
			r.LeaveCurrent(peer)
		case 4:
			r.Disconnect(peer)
		}
		checkInvariants(t, r)
	}
}
