// Package admission implements the per-connection Admission Handler (§4.4):
// the handshake from raw TCP accept through OK/reject reply and into the
// Chat Relay.
package admission

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"gameserver/internal/eventlog"
	"gameserver/internal/ledger"
	"gameserver/internal/room"
	"gameserver/internal/supervisor"
	"gameserver/internal/wire"
)

// WaitTimeout is the hard deadline for the full admission handshake (§4.4
// step 1, default 60s).
const WaitTimeout = 60 * time.Second

var nextSessionID atomic.Uint64

// Handle runs one connection's full admission sequence. It always closes
// conn before returning, except when the session joins a room's chat —
// in that case the room's own read/write loops own the connection's
// lifetime from here on.
func Handle(conn net.Conn, sup *supervisor.Supervisor) {
	remote := conn.RemoteAddr().String()

	if err := conn.SetDeadline(time.Now().Add(WaitTimeout)); err != nil {
		slog.Error("admission: set deadline", "remote", remote, "err", err)
		conn.Close()
		return
	}

	frame, err := wire.ReadFrame(conn, wire.RequestFrameLen)
	if err != nil {
		slog.Debug("admission: timed out or disconnected before sending a request", "remote", remote, "err", err)
		conn.Close()
		return
	}

	req, err := wire.ParseRequest(frame)
	if err != nil {
		slog.Debug("admission: malformed request", "remote", remote, "err", err)
		wire.WriteReply(conn, wire.ReplyReject)
		conn.Close()
		return
	}

	r := sup.Current()

	sup.Ledger.Lock()
	debitErr := sup.Ledger.TryDebitLocked(req.Inventory, sup.MaxQuota)
	if debitErr != nil {
		sup.Ledger.Unlock()
		logReject(remote, req.PlayerName, debitErr)
		recordEvent(sup, r.ID, eventlog.KindRejected, req.PlayerName, reasonDetail(debitErr))
		wire.WriteReply(conn, wire.ReplyReject)
		conn.Close()
		return
	}

	id := nextSessionID.Add(1)
	sess, sealed, admitErr := r.TryAdmit(id, req.PlayerName, conn, req.Inventory)
	if admitErr != nil {
		// The room sealed between Current() and TryAdmit; roll back the
		// debit within the same Ledger-locked scope (§4.4 step 4) and let
		// the client retry against the Supervisor's new Forming room.
		sup.Ledger.RefundLocked(req.Inventory)
		sup.Ledger.Unlock()
		if errors.Is(admitErr, room.ErrRoomClosed) {
			slog.Debug("admission: room closed race, rejecting", "remote", remote, "name", req.PlayerName)
		}
		recordEvent(sup, r.ID, eventlog.KindRejected, req.PlayerName, admitErr.Error())
		wire.WriteReply(conn, wire.ReplyReject)
		conn.Close()
		return
	}
	sup.Ledger.Unlock()

	if sealed {
		// Open the replacement Forming Room now, before replying to this
		// connection, so the guarantee holds regardless of how soon the
		// next connection arrives.
		sup.CompleteSeal(r)
	}

	slog.Info("admission: admitted", "remote", remote, "name", req.PlayerName, "room_id", r.ID, "sealed", sealed)
	recordEvent(sup, r.ID, eventlog.KindAdmitted, req.PlayerName, "")

	if err := wire.WriteReply(conn, wire.ReplyOK); err != nil {
		slog.Debug("admission: write OK reply failed", "remote", remote, "err", err)
		return
	}

	// Admission handshake is over; clear the deadline so chat reads are not
	// bounded by WAIT.
	conn.SetDeadline(time.Time{})

	if sealed {
		// This connection's own OK reply is already on the wire, so it is
		// safe to start the room's chat machinery — every member's START
		// frame is always preceded by that member's own OK reply.
		go r.FinalizeSeal()
	} else {
		go r.RunPreStartKeepAlive(sess)
	}
}

func logReject(remote, name string, err error) {
	var rerr *ledger.RejectError
	if errors.As(err, &rerr) {
		slog.Info("admission: rejected", "remote", remote, "name", name, "reason", rerr.Reason.String())
		return
	}
	slog.Info("admission: rejected", "remote", remote, "name", name, "err", err)
}

func reasonDetail(err error) string {
	var rerr *ledger.RejectError
	if errors.As(err, &rerr) {
		return rerr.Reason.String()
	}
	return err.Error()
}

func recordEvent(sup *supervisor.Supervisor, roomID uint64, kind eventlog.Kind, actor, detail string) {
	if sup.Events == nil {
		return
	}
	if err := sup.Events.Record(context.Background(), roomID, kind, actor, detail); err != nil {
		slog.Warn("eventlog: record failed", "kind", kind, "err", err)
	}
}
