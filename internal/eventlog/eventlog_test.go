package eventlog

import (
	"context"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	log, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	if err := log.Record(ctx, 1, KindAdmitted, "alice", ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := log.Record(ctx, 1, KindRoomSealed, "", "alice,bob"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	events, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
}

func TestForRoomFiltersByRoomID(t *testing.T) {
	log, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer log.Close()

	ctx := context.Background()
	log.Record(ctx, 1, KindAdmitted, "alice", "")
	log.Record(ctx, 2, KindAdmitted, "bob", "")

	events, err := log.ForRoom(ctx, 2, 10)
	if err != nil {
		t.Fatalf("ForRoom: %v", err)
	}
	if len(events) != 1 || events[0].Actor != "bob" {
		t.Fatalf("unexpected events: %+v", events)
	}
}
