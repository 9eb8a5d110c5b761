package ledger

import (
	"errors"
	"testing"
)

func mustLedger(t *testing.T, entries ...Entry) *Ledger {
	t.Helper()
	l, err := New(Inventory{Entries: entries})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestNewRejectsDuplicateItem(t *testing.T) {
	_, err := New(Inventory{Entries: []Entry{{Item: "sword", Quantity: 1}, {Item: "sword", Quantity: 2}}})
	if err == nil {
		t.Fatal("expected error for duplicate item")
	}
}

func TestNewRejectsNegativeQuantity(t *testing.T) {
	_, err := New(Inventory{Entries: []Entry{{Item: "sword", Quantity: -1}}})
	if err == nil {
		t.Fatal("expected error for negative quantity")
	}
}

func TestTryDebitHappyPath(t *testing.T) {
	l := mustLedger(t, Entry{Item: "sword", Quantity: 5}, Entry{Item: "shield", Quantity: 3})

	err := l.TryDebit(Inventory{Entries: []Entry{{Item: "sword", Quantity: 2}}}, 10)
	if err != nil {
		t.Fatalf("TryDebit: %v", err)
	}

	snap := l.Snapshot()
	for _, e := range snap.Entries {
		if e.Item == "sword" && e.Quantity != 3 {
			t.Fatalf("expected 3 swords remaining, got %d", e.Quantity)
		}
	}
}

func TestTryDebitRejectReasonOrder(t *testing.T) {
	l := mustLedger(t, Entry{Item: "sword", Quantity: 1})

	// Quota exceeded must be detected before unknown item or insufficient
	// stock, even when both also apply.
	err := l.TryDebit(Inventory{Entries: []Entry{
		{Item: "sword", Quantity: 1},
		{Item: "ghost-item", Quantity: 100},
	}}, 1)
	var rerr *RejectError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RejectError, got %v", err)
	}
	if rerr.Reason != ReasonQuotaExceeded {
		t.Fatalf("expected ReasonQuotaExceeded, got %v", rerr.Reason)
	}
}

func TestTryDebitUnknownItem(t *testing.T) {
	l := mustLedger(t, Entry{Item: "sword", Quantity: 5})

	err := l.TryDebit(Inventory{Entries: []Entry{{Item: "ghost-item", Quantity: 1}}}, 10)
	var rerr *RejectError
	if !errors.As(err, &rerr) || rerr.Reason != ReasonUnknownItem {
		t.Fatalf("expected ReasonUnknownItem, got %v", err)
	}
}

func TestTryDebitInsufficientStock(t *testing.T) {
	l := mustLedger(t, Entry{Item: "sword", Quantity: 1})

	err := l.TryDebit(Inventory{Entries: []Entry{{Item: "sword", Quantity: 2}}}, 10)
	var rerr *RejectError
	if !errors.As(err, &rerr) || rerr.Reason != ReasonInsufficientStock {
		t.Fatalf("expected ReasonInsufficientStock, got %v", err)
	}
}

func TestTryDebitNoOversellUnderConcurrency(t *testing.T) {
	l := mustLedger(t, Entry{Item: "sword", Quantity: 10})

	const workers = 50
	done := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			done <- l.TryDebit(Inventory{Entries: []Entry{{Item: "sword", Quantity: 1}}}, 1)
		}()
	}

	successes := 0
	for i := 0; i < workers; i++ {
		if err := <-done; err == nil {
			successes++
		}
	}
	if successes != 10 {
		t.Fatalf("expected exactly 10 successful debits, got %d", successes)
	}

	snap := l.Snapshot()
	if snap.Entries[0].Quantity != 0 {
		t.Fatalf("expected 0 remaining, got %d", snap.Entries[0].Quantity)
	}
}

func TestRefundLockedRestoresQuantity(t *testing.T) {
	l := mustLedger(t, Entry{Item: "sword", Quantity: 5})

	req := Inventory{Entries: []Entry{{Item: "sword", Quantity: 3}}}
	if err := l.TryDebit(req, 10); err != nil {
		t.Fatalf("TryDebit: %v", err)
	}

	l.Lock()
	l.RefundLocked(req)
	l.Unlock()

	snap := l.Snapshot()
	if snap.Entries[0].Quantity != 5 {
		t.Fatalf("expected 5 after refund, got %d", snap.Entries[0].Quantity)
	}
}

func TestQuotaUsesSumOfRequestedQuantities(t *testing.T) {
	inv := Inventory{Entries: []Entry{{Item: "a", Quantity: 2}, {Item: "b", Quantity: 3}}}
	if got := inv.Quota(); got != 5 {
		t.Fatalf("expected quota 5, got %d", got)
	}
}
