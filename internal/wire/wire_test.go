package wire

import (
	"bytes"
	"testing"

	"gameserver/internal/ledger"
)

func TestParseRequestRoundTrip(t *testing.T) {
	req := AdmissionRequest{
		PlayerName: "alice",
		Inventory: ledger.Inventory{Entries: []ledger.Entry{
			{Item: "sword", Quantity: 2},
			{Item: "shield", Quantity: 1},
		}},
	}

	frame, err := SerializeRequest(req)
	if err != nil {
		t.Fatalf("SerializeRequest: %v", err)
	}
	if len(frame) != RequestFrameLen {
		t.Fatalf("expected frame of %d bytes, got %d", RequestFrameLen, len(frame))
	}

	got, err := ParseRequest(frame)
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if got.PlayerName != req.PlayerName {
		t.Fatalf("player name mismatch: got %q want %q", got.PlayerName, req.PlayerName)
	}
	if len(got.Inventory.Entries) != len(req.Inventory.Entries) {
		t.Fatalf("entry count mismatch: got %d want %d", len(got.Inventory.Entries), len(req.Inventory.Entries))
	}
	for i, e := range req.Inventory.Entries {
		if got.Inventory.Entries[i] != e {
			t.Fatalf("entry %d mismatch: got %+v want %+v", i, got.Inventory.Entries[i], e)
		}
	}
}

func TestParseRequestRejectsMalformedRow(t *testing.T) {
	frame := padFrame("alice\nsword 2\n", RequestFrameLen)
	if _, err := ParseRequest(frame); err == nil {
		t.Fatal("expected error for row with no tab separator")
	}
}

func TestParseRequestRejectsDuplicateItem(t *testing.T) {
	frame := padFrame("alice\nsword\t1\nsword\t2\n", RequestFrameLen)
	if _, err := ParseRequest(frame); err == nil {
		t.Fatal("expected error for duplicate item in request")
	}
}

func TestParseRequestRejectsBadQuantity(t *testing.T) {
	frame := padFrame("alice\nsword\tNaN\n", RequestFrameLen)
	if _, err := ParseRequest(frame); err == nil {
		t.Fatal("expected error for non-numeric quantity")
	}
}

func TestParseRequestRejectsWrongFrameLength(t *testing.T) {
	if _, err := ParseRequest(make([]byte, 10)); err == nil {
		t.Fatal("expected error for wrong frame length")
	}
}

func TestReplyFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, ReplyOK); err != nil {
		t.Fatalf("WriteReply: %v", err)
	}
	if buf.Len() != ReplyFrameLen {
		t.Fatalf("expected %d bytes, got %d", ReplyFrameLen, buf.Len())
	}
	got, err := ReadReply(&buf)
	if err != nil {
		t.Fatalf("ReadReply: %v", err)
	}
	if got != ReplyOK {
		t.Fatalf("got %q want %q", got, ReplyOK)
	}
}

func TestChatFrameTruncatesOversizeLine(t *testing.T) {
	long := make([]byte, RequestFrameLen*2)
	for i := range long {
		long[i] = 'x'
	}
	frame := ChatFrame("bob", string(long))
	if len(frame) != RequestFrameLen {
		t.Fatalf("expected frame of %d bytes, got %d", RequestFrameLen, len(frame))
	}
}
