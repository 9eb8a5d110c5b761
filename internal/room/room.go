// Package room implements the Room state machine (Forming/Sealing/Running/
// Drained) and the per-room Chat Relay broadcast fabric.
package room

import (
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"gameserver/internal/ledger"
	"gameserver/internal/wire"
)

// State is one of the four Room lifecycle states (§4.3).
type State int

const (
	Forming State = iota
	Sealing
	Running
	Drained
)

func (s State) String() string {
	switch s {
	case Forming:
		return "Forming"
	case Sealing:
		return "Sealing"
	case Running:
		return "Running"
	case Drained:
		return "Drained"
	default:
		return "Unknown"
	}
}

// ErrRoomClosed is returned by TryAdmit when the room is no longer Forming —
// a concurrent admission already sealed it. Per §4.3 the caller may re-route
// the connection to the Supervisor's current Forming room.
var ErrRoomClosed = errors.New("room: closed to new admissions")

// sendTimeout bounds how long a single broadcast write to one member may
// block before it is skipped, so one slow peer never stalls the relay.
const sendTimeout = 50 * time.Millisecond

// preStartKeepAliveInterval is the cadence of the optional
// "Waiting for more players ..." frames sent during Forming (§4.5).
const preStartKeepAliveInterval = 5 * time.Second

type recordKind int

const (
	kindMessage recordKind = iota
	kindDeparture
)

type broadcastRecord struct {
	senderID uint64
	kind     recordKind
	frame    []byte
}

// Session is one admitted player's connection, owned by exactly one Room
// for its lifetime.
type Session struct {
	ID       uint64
	Name     string
	Conn     net.Conn
	Request  ledger.Inventory // the debited inventory, needed for pre-start forfeit refund
	outbox   chan []byte
	departed atomic.Bool
}

func newSession(id uint64, name string, conn net.Conn, req ledger.Inventory) *Session {
	return &Session{
		ID:      id,
		Name:    name,
		Conn:    conn,
		Request: req,
		outbox:  make(chan []byte, 64),
	}
}

// ForfeitFunc is invoked when a member departs during the pre-start
// keep-alive phase (still Forming), so the caller can refund the ledger
// debit and release the room slot. Room never calls this for departures
// after Running — no-refund-on-disconnect (§9) applies from Running on.
type ForfeitFunc func(session *Session)

// DrainFunc is invoked once, after the last member of a sealed room has
// departed and the room has moved to Drained, for diagnostics logging.
type DrainFunc func(roomID uint64)

// Room is a bounded set of admitted sessions plus its broadcast fabric.
type Room struct {
	ID       uint64
	Capacity int

	mu            sync.Mutex
	state         State
	members       map[uint64]*Session
	initialCount  int
	departedCount int

	bus     chan broadcastRecord
	forfeit ForfeitFunc
	onDrain DrainFunc
}

// New creates an Empty-Forming Room. forfeit is called for a pre-start
// (still-Forming) departure; onDrain is called once the room fully drains.
func New(id uint64, capacity int, forfeit ForfeitFunc, onDrain DrainFunc) *Room {
	return &Room{
		ID:       id,
		Capacity: capacity,
		state:    Forming,
		members:  make(map[uint64]*Session),
		bus:      make(chan broadcastRecord, 64),
		forfeit:  forfeit,
		onDrain:  onDrain,
	}
}

// State returns the room's current lifecycle state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// MemberCount returns the current member count.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// TryAdmit reserves a slot for (id, name, conn, req) if the room is still
// Forming. The caller must already hold the Ledger's lock — per §5, debit
// and slot reservation are joint-atomic, so TryAdmit itself takes only the
// Room's own lock, which is always acquired after the Ledger's.
//
// Returns the new Session and whether this admission sealed the room
// (reached capacity). If the room is not Forming, it returns ErrRoomClosed
// and the caller is responsible for rolling back the ledger debit.
func (r *Room) TryAdmit(id uint64, name string, conn net.Conn, req ledger.Inventory) (*Session, bool, error) {
	r.mu.Lock()

	if r.state != Forming {
		r.mu.Unlock()
		return nil, false, ErrRoomClosed
	}

	sess := newSession(id, name, conn, req)
	r.members[id] = sess

	sealed := len(r.members) == r.Capacity
	if sealed {
		r.state = Sealing
		r.initialCount = len(r.members)
		r.state = Running
	}
	r.mu.Unlock()

	return sess, sealed, nil
}

// FinalizeSeal starts the sealed room's chat machinery: the START broadcast
// and every member's read loop, followed by the relay drain loop. The
// caller — the Admission Handler for the admission that sealed the room —
// must invoke this only after it has already written its own OK reply, so
// that client never observes START arriving before its own admission reply
// (§4.4 step 5 must happen-before §4.5's immediate START broadcast).
func (r *Room) FinalizeSeal() {
	r.BroadcastStart()
	members := r.Members()
	for _, m := range members {
		go r.ReadLoop(m)
	}
	r.RunRelay()
}

// Members returns a snapshot of currently admitted sessions, safe to use
// after releasing the room's lock.
func (r *Room) Members() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.members))
	for _, s := range r.members {
		out = append(out, s)
	}
	return out
}

// BroadcastStart sends "START\n" to every member exactly once, immediately
// on sealing (§9 Open Question 2: immediate START, not deferred).
func (r *Room) BroadcastStart() {
	frame := make([]byte, wire.RequestFrameLen)
	copy(frame, wire.StartText)
	for _, s := range r.Members() {
		trySend(s.outbox, frame)
	}
}

// RunRelay drains the room's broadcast bus, writing each record to every
// member except the sender, until the room has fully drained. It also
// starts one writer goroutine per member to flush the outbox to its
// connection. Grounded on ChannelState.Broadcast's
// snapshot-under-lock-then-release pattern and its trySend helper.
func (r *Room) RunRelay() {
	for _, s := range r.Members() {
		go r.writeLoop(s)
	}

	for rec := range r.bus {
		switch rec.kind {
		case kindMessage:
			r.mu.Lock()
			targets := make([]*Session, 0, len(r.members))
			for id, s := range r.members {
				if id == rec.senderID {
					continue
				}
				targets = append(targets, s)
			}
			r.mu.Unlock()
			for _, t := range targets {
				trySend(t.outbox, rec.frame)
			}
		case kindDeparture:
			r.mu.Lock()
			if s, ok := r.members[rec.senderID]; ok {
				close(s.outbox)
				delete(r.members, rec.senderID)
			}
			r.departedCount++
			drained := r.initialCount > 0 && r.departedCount >= r.initialCount
			r.mu.Unlock()
			if drained {
				r.mu.Lock()
				r.state = Drained
				r.mu.Unlock()
				close(r.bus)
				slog.Info("room drained", "room_id", r.ID)
				if r.onDrain != nil {
					r.onDrain(r.ID)
				}
				return
			}
		}
	}
}

// writeLoop flushes one session's outbox to its connection until the outbox
// is closed or a write fails.
func (r *Room) writeLoop(s *Session) {
	for frame := range s.outbox {
		if _, err := s.Conn.Write(frame); err != nil {
			slog.Debug("chat write failed", "room_id", r.ID, "session_id", s.ID, "err", err)
			s.departed.Store(true)
			return
		}
	}
}

// ReadLoop runs a member's concurrent chat read loop (§4.5). It publishes
// each complete incoming message to the broadcast bus, tagged with the
// sender's handle and the "[name]: " prefix, and publishes a departure
// sentinel when the read fails or returns 0 bytes.
func (r *Room) ReadLoop(s *Session) {
	// Idempotently clear any admission-handshake deadline still set on the
	// connection — the sealing admission's own goroutine may not have had a
	// chance to clear it yet by the time this loop starts.
	s.Conn.SetDeadline(time.Time{})
	for {
		line, err := wire.ReadChatLine(s.Conn)
		if err != nil {
			s.departed.Store(true)
			r.publishDeparture(s.ID)
			return
		}
		if line == "" {
			continue
		}
		r.publishMessage(s.ID, wire.ChatFrame(s.Name, line))
	}
}

func (r *Room) publishMessage(senderID uint64, frame []byte) {
	defer func() { recover() }() // bus may already be closed if the room just drained
	r.bus <- broadcastRecord{senderID: senderID, kind: kindMessage, frame: frame}
}

func (r *Room) publishDeparture(senderID uint64) {
	defer func() { recover() }()
	r.bus <- broadcastRecord{senderID: senderID, kind: kindDeparture}
}

// RunPreStartKeepAlive sends "Waiting for more players ..." to s roughly
// every 5 seconds while the room is still Forming (§4.5, optional phase).
// It stops when the room leaves Forming or the write fails. A write failure
// marks the session departed and invokes forfeit so the caller can restore
// the slot and refund the debit, since pre-start departures are not subject
// to the no-refund-on-disconnect rule that governs the Running phase.
func (r *Room) RunPreStartKeepAlive(s *Session) {
	ticker := time.NewTicker(preStartKeepAliveInterval)
	defer ticker.Stop()

	frame := make([]byte, wire.RequestFrameLen)
	copy(frame, wire.WaitingText)

	for range ticker.C {
		if r.State() != Forming {
			return
		}
		if _, err := s.Conn.Write(frame); err != nil {
			s.departed.Store(true)
			r.forfeitPreStart(s)
			return
		}
	}
}

func (r *Room) forfeitPreStart(s *Session) {
	r.mu.Lock()
	if r.state != Forming {
		r.mu.Unlock()
		return
	}
	delete(r.members, s.ID)
	r.mu.Unlock()

	if r.forfeit != nil {
		r.forfeit(s)
	}
}

// trySend writes frame to ch without blocking past sendTimeout, recovering
// from a send-on-closed-channel panic. Grounded on
// internal/core/channel_state.go's trySend.
func trySend(ch chan []byte, frame []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case ch <- frame:
		return true
	case <-time.After(sendTimeout):
		return false
	}
}
