// Package ledger holds the process-wide game inventory and the single
// mutator that debits it on a successful admission.
package ledger

import (
	"fmt"
	"sync"
)

// RejectReason is why try_debit declined a request. The zero value is never
// carried by a real rejection; a RejectError always holds one of the three
// reject reasons below.
type RejectReason int

const (
	// ReasonNone is the zero value; no RejectError carries it.
	ReasonNone RejectReason = iota
	ReasonQuotaExceeded
	ReasonUnknownItem
	ReasonInsufficientStock
)

func (r RejectReason) String() string {
	switch r {
	case ReasonQuotaExceeded:
		return "QuotaExceeded"
	case ReasonUnknownItem:
		return "UnknownItem"
	case ReasonInsufficientStock:
		return "InsufficientStock"
	default:
		return "None"
	}
}

// RejectError wraps a RejectReason so callers can use errors.As/Is while
// still getting a readable message.
type RejectError struct {
	Reason RejectReason
	Item   string // set for UnknownItem / InsufficientStock
}

func (e *RejectError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Item)
	}
	return e.Reason.String()
}

// Entry is one (item, quantity) pair. Inventory preserves entry order since
// the wire codec round-trips that order.
type Entry struct {
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
}

// Inventory is an ordered set of distinct items with quantities.
type Inventory struct {
	Entries []Entry
}

// Quota is the sum of all requested quantities.
func (inv Inventory) Quota() int {
	total := 0
	for _, e := range inv.Entries {
		total += e.Quantity
	}
	return total
}

// HasDuplicateItem reports whether the same item name appears more than
// once, by string equality — unlike the source implementation this
// supplants, which compared pointers and so could never detect a duplicate.
func (inv Inventory) HasDuplicateItem() bool {
	seen := make(map[string]struct{}, len(inv.Entries))
	for _, e := range inv.Entries {
		if _, ok := seen[e.Item]; ok {
			return true
		}
		seen[e.Item] = struct{}{}
	}
	return false
}

// Ledger is the authoritative item->remaining mapping. The zero value is not
// usable; construct with New.
type Ledger struct {
	mu        sync.Mutex
	order     []string       // immutable item-name vector, set at startup
	remaining map[string]int // protected by mu
}

// New builds a Ledger from a starting inventory. It returns an error if the
// inventory contains a duplicate item name or a negative quantity — both are
// startup-fatal per the source's own load-time validation.
func New(initial Inventory) (*Ledger, error) {
	if initial.HasDuplicateItem() {
		return nil, fmt.Errorf("ledger: duplicate item in starting inventory")
	}
	order := make([]string, 0, len(initial.Entries))
	remaining := make(map[string]int, len(initial.Entries))
	for _, e := range initial.Entries {
		if e.Quantity < 0 {
			return nil, fmt.Errorf("ledger: item %q has negative quantity", e.Item)
		}
		order = append(order, e.Item)
		remaining[e.Item] = e.Quantity
	}
	return &Ledger{order: order, remaining: remaining}, nil
}

// TryDebit attempts to atomically decrement remaining quantities for every
// entry in request. Either every entry is applied or none are; the checks
// run in the order QuotaExceeded, UnknownItem, InsufficientStock, matching
// §4.1. The entire check-then-update sequence runs under one lock, so two
// concurrent callers never both succeed against the same stock.
func (l *Ledger) TryDebit(request Inventory, maxQuota int) error {
	if request.Quota() > maxQuota {
		return &RejectError{Reason: ReasonQuotaExceeded}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range request.Entries {
		if _, ok := l.remaining[e.Item]; !ok {
			return &RejectError{Reason: ReasonUnknownItem, Item: e.Item}
		}
	}
	for _, e := range request.Entries {
		if l.remaining[e.Item]-e.Quantity < 0 {
			return &RejectError{Reason: ReasonInsufficientStock, Item: e.Item}
		}
	}

	for _, e := range request.Entries {
		l.remaining[e.Item] -= e.Quantity
	}
	return nil
}

// Snapshot returns a read-only copy of the current remaining quantities, in
// the original item order.
func (l *Ledger) Snapshot() Inventory {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Inventory{Entries: make([]Entry, 0, len(l.order))}
	for _, item := range l.order {
		out.Entries = append(out.Entries, Entry{Item: item, Quantity: l.remaining[item]})
	}
	return out
}

// Lock and Unlock expose the ledger's single exclusive lock so the admission
// handler can extend its scope across the Room's slot reservation, per §5's
// requirement that debit and reservation be joint-atomic. Callers must call
// TryDebitLocked (not TryDebit) between Lock and Unlock.
func (l *Ledger) Lock()   { l.mu.Lock() }
func (l *Ledger) Unlock() { l.mu.Unlock() }

// TryDebitLocked is TryDebit without acquiring the lock; the caller must
// already hold it via Lock.
func (l *Ledger) TryDebitLocked(request Inventory, maxQuota int) error {
	if request.Quota() > maxQuota {
		return &RejectError{Reason: ReasonQuotaExceeded}
	}
	for _, e := range request.Entries {
		if _, ok := l.remaining[e.Item]; !ok {
			return &RejectError{Reason: ReasonUnknownItem, Item: e.Item}
		}
	}
	for _, e := range request.Entries {
		if l.remaining[e.Item]-e.Quantity < 0 {
			return &RejectError{Reason: ReasonInsufficientStock, Item: e.Item}
		}
	}
	for _, e := range request.Entries {
		l.remaining[e.Item] -= e.Quantity
	}
	return nil
}

// RefundLocked restores quantities previously debited. The caller must hold
// the lock via Lock. Used in the admission handler's slot-reservation
// rollback path (§4.4 step 4) and for a member who departs while the room is
// still Forming (Supervisor.onPreStartForfeit); never used for a departure
// from a Running room, per the adopted no-refund-on-disconnect design
// decision (§9).
func (l *Ledger) RefundLocked(request Inventory) {
	for _, e := range request.Entries {
		l.remaining[e.Item] += e.Quantity
	}
}
