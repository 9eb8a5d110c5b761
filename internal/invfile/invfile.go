// Package invfile parses the shared inventory file format used by both the
// server (starting ledger) and the client (request building): one
// "<item>\t<quantity>\n" record per line.
package invfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gameserver/internal/ledger"
)

// Load reads an inventory file from path. Unknown lines (not exactly two
// tab-separated fields, or a non-integer quantity) abort the load with an
// error, per §6. Blank (or whitespace-only) lines are skipped wherever they
// appear, so a trailing blank line is tolerated.
func Load(path string) (ledger.Inventory, error) {
	f, err := os.Open(path)
	if err != nil {
		return ledger.Inventory{}, fmt.Errorf("open inventory file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the inventory format from r.
func Parse(r io.Reader) (ledger.Inventory, error) {
	var inv ledger.Inventory
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue // tolerate blank trailing line
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return ledger.Inventory{}, fmt.Errorf("invfile: line %d: expected \"<item>\\t<quantity>\", got %q", lineNo, line)
		}
		item := fields[0]
		qty, err := strconv.Atoi(fields[1])
		if err != nil || qty < 0 {
			return ledger.Inventory{}, fmt.Errorf("invfile: line %d: invalid quantity %q", lineNo, fields[1])
		}
		inv.Entries = append(inv.Entries, ledger.Entry{Item: item, Quantity: qty})
	}
	if err := scanner.Err(); err != nil {
		return ledger.Inventory{}, fmt.Errorf("invfile: read: %w", err)
	}
	if inv.HasDuplicateItem() {
		return ledger.Inventory{}, fmt.Errorf("invfile: duplicate item entry")
	}
	return inv, nil
}
