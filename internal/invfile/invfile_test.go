package invfile

import (
	"strings"
	"testing"
)

func TestParseHappyPath(t *testing.T) {
	inv, err := Parse(strings.NewReader("sword\t5\nshield\t3\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(inv.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(inv.Entries))
	}
	if inv.Entries[0].Item != "sword" || inv.Entries[0].Quantity != 5 {
		t.Fatalf("unexpected first entry: %+v", inv.Entries[0])
	}
}

func TestParseTrailingBlankLineTolerated(t *testing.T) {
	if _, err := Parse(strings.NewReader("sword\t5\n\n")); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestParseRejectsMalformedLine(t *testing.T) {
	if _, err := Parse(strings.NewReader("sword 5\n")); err == nil {
		t.Fatal("expected error for line without tab separator")
	}
}

func TestParseRejectsNonIntegerQuantity(t *testing.T) {
	if _, err := Parse(strings.NewReader("sword\tmany\n")); err == nil {
		t.Fatal("expected error for non-integer quantity")
	}
}

func TestParseRejectsDuplicateItem(t *testing.T) {
	if _, err := Parse(strings.NewReader("sword\t1\nsword\t2\n")); err == nil {
		t.Fatal("expected error for duplicate item")
	}
}
