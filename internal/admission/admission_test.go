package admission

import (
	"net"
	"testing"
	"time"

	"gameserver/internal/ledger"
	"gameserver/internal/supervisor"
	"gameserver/internal/wire"
)

func newTestSupervisor(t *testing.T, capacity, maxQuota int) *supervisor.Supervisor {
	t.Helper()
	led, err := ledger.New(ledger.Inventory{Entries: []ledger.Entry{{Item: "sword", Quantity: 10}}})
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	return supervisor.New(led, capacity, maxQuota, nil)
}

func dialAndRequest(t *testing.T, ln net.Listener, name string, qty int) (net.Conn, string) {
	t.Helper()
	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	req := wire.AdmissionRequest{PlayerName: name, Inventory: ledger.Inventory{Entries: []ledger.Entry{{Item: "sword", Quantity: qty}}}}
	frame, err := wire.SerializeRequest(req)
	if err != nil {
		t.Fatalf("SerializeRequest: %v", err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write request: %v", err)
	}
	reply, err := wire.ReadReply(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	return conn, reply
}

func TestHandleAdmitsUntilCapacityThenSealsAndOrdersStartAfterOK(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	sup := newTestSupervisor(t, 2, 5)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go Handle(conn, sup)
		}
	}()

	connA, replyA := dialAndRequest(t, ln, "alice", 2)
	defer connA.Close()
	if replyA != wire.ReplyOK {
		t.Fatalf("expected alice admitted, got %q", replyA)
	}

	connB, replyB := dialAndRequest(t, ln, "bob", 2)
	defer connB.Close()
	if replyB != wire.ReplyOK {
		t.Fatalf("expected bob admitted, got %q", replyB)
	}

	// Bob's admission sealed the room; he must see START only after his own
	// OK, which dialAndRequest already consumed — the very next frame on
	// his connection must be START, never anything else.
	connB.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame := make([]byte, wire.RequestFrameLen)
	if _, err := readFull(connB, frame); err != nil {
		t.Fatalf("read start frame: %v", err)
	}
	got := string(frame[:len("START\n")])
	if got != "START\n" {
		t.Fatalf("expected START as first post-admission frame, got %q", got)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func TestHandleRejectsOnQuotaExceeded(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	sup := newTestSupervisor(t, 2, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		Handle(conn, sup)
	}()

	conn, reply := dialAndRequest(t, ln, "alice", 5)
	defer conn.Close()
	if reply == wire.ReplyOK {
		t.Fatal("expected rejection for quota-exceeding request")
	}
}
