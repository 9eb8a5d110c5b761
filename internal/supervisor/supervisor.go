// Package supervisor owns the Inventory Ledger and the single current
// Forming Room, and opens a fresh Forming Room the instant the current one
// seals (§4.3 C6).
package supervisor

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"gameserver/internal/eventlog"
	"gameserver/internal/ledger"
	"gameserver/internal/room"
)

// Supervisor is the direct, in-process replacement for the source's
// pipe-signalled parent/child room handoff (§9).
type Supervisor struct {
	Ledger   *ledger.Ledger
	Capacity int
	MaxQuota int
	Events   *eventlog.Log // optional; nil disables event recording

	mu      sync.Mutex
	current *room.Room
	nextID  atomic.Uint64

	mu2        sync.Mutex
	runningLog []RunningRoomInfo
}

// RunningRoomInfo is a diagnostics-facing snapshot of a room that has sealed.
type RunningRoomInfo struct {
	RoomID uint64   `json:"room_id"`
	Names  []string `json:"names"`
}

// New constructs a Supervisor with an initial Forming Room already open.
// events may be nil, disabling event recording entirely.
func New(led *ledger.Ledger, capacity, maxQuota int, events *eventlog.Log) *Supervisor {
	s := &Supervisor{Ledger: led, Capacity: capacity, MaxQuota: maxQuota, Events: events}
	s.current = s.newRoom()
	return s
}

func (s *Supervisor) newRoom() *room.Room {
	id := s.nextID.Add(1)
	r := room.New(id, s.Capacity, s.onPreStartForfeit, s.onDrain)
	slog.Info("forming room opened", "room_id", id, "capacity", s.Capacity)
	return r
}

// Current returns the supervisor's current Forming Room. Called once per
// connection by the Admission Handler immediately before attempting
// admission, never cached across connections — this is what makes the
// "new Forming room exists before the next accept" ordering guarantee hold.
func (s *Supervisor) Current() *room.Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// CompleteSeal opens the replacement Forming Room and records sealed room's
// membership for diagnostics. The Admission Handler calls this exactly once
// — from the single connection whose admission sealed the room — as soon as
// the debit+reservation commit is known to have succeeded, satisfying
// §4.3's "new Forming room exists before the next accept" guarantee. It does
// not touch the sealed room's sockets; the caller is responsible for
// starting the sealed room's chat machinery (Room.FinalizeSeal) only after
// it has written its own admission reply.
func (s *Supervisor) CompleteSeal(sealed *room.Room) {
	s.mu.Lock()
	s.current = s.newRoom()
	s.mu.Unlock()

	names := make([]string, 0, len(sealed.Members()))
	for _, m := range sealed.Members() {
		names = append(names, m.Name)
	}
	s.mu2.Lock()
	s.runningLog = append(s.runningLog, RunningRoomInfo{RoomID: sealed.ID, Names: names})
	s.mu2.Unlock()

	slog.Info("room sealed", "room_id", sealed.ID, "members", names)
	if s.Events != nil {
		if err := s.Events.Record(context.Background(), sealed.ID, eventlog.KindRoomSealed, "", strings.Join(names, ",")); err != nil {
			slog.Warn("eventlog: record room_sealed failed", "err", err)
		}
	}
}

func (s *Supervisor) onDrain(roomID uint64) {
	if s.Events == nil {
		return
	}
	if err := s.Events.Record(context.Background(), roomID, eventlog.KindRoomDrained, "", ""); err != nil {
		slog.Warn("eventlog: record room_drained failed", "err", err)
	}
}

// onPreStartForfeit restores the ledger debit of a member who departed
// during the pre-start keep-alive phase (§4.5); the Room has already
// released that member's slot before calling it. Apart from the admission
// handler's own rollback of a failed slot reservation, this is the one
// place a refund happens: pre-Running, the no-refund-on-disconnect rule
// (§9) has not yet taken effect because the player was never part of a
// started game.
func (s *Supervisor) onPreStartForfeit(sess *room.Session) {
	s.Ledger.Lock()
	s.Ledger.RefundLocked(sess.Request)
	s.Ledger.Unlock()
	slog.Info("pre-start departure refunded", "session_id", sess.ID, "name", sess.Name)
	if s.Events != nil {
		if err := s.Events.Record(context.Background(), 0, eventlog.KindPreStartForfeit, sess.Name, ""); err != nil {
			slog.Warn("eventlog: record pre_start_forfeit failed", "err", err)
		}
	}
}

// RunningRooms returns a snapshot of sealed-room history for diagnostics.
func (s *Supervisor) RunningRooms() []RunningRoomInfo {
	s.mu2.Lock()
	defer s.mu2.Unlock()
	out := make([]RunningRoomInfo, len(s.runningLog))
	copy(out, s.runningLog)
	return out
}
