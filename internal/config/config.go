// Package config implements the strict, fixed-token-count CLI parsers for
// the server and client binaries, grounded on ServerBackend.h's initSettings
// and ClientBackend.h's initcSettings: any deviation from the exact expected
// argument shape is fatal, not a warning.
package config

import (
	"fmt"
	"strconv"
)

// ServerSettings mirrors the source's Settings struct.
type ServerSettings struct {
	Players   int
	Quota     int
	Inventory string
}

// ParseServerArgs parses the server's command line: exactly three flag
// pairs, "-p <players> -q <max_quota> -i <inventory_file>", in any order.
// args excludes the program name (len(args) must be 6).
func ParseServerArgs(args []string) (ServerSettings, error) {
	if len(args) != 6 {
		return ServerSettings{}, fmt.Errorf("config: invalid parameters")
	}

	var s ServerSettings
	var gotP, gotQ, gotI bool

	for i := 0; i < len(args); i += 2 {
		flag, val := args[i], args[i+1]
		switch {
		case flag == "-p" && !gotP:
			n, err := strconv.Atoi(val)
			if err != nil {
				return ServerSettings{}, fmt.Errorf("config: -p: %w", err)
			}
			s.Players = n
			gotP = true
		case flag == "-q" && !gotQ:
			n, err := strconv.Atoi(val)
			if err != nil {
				return ServerSettings{}, fmt.Errorf("config: -q: %w", err)
			}
			s.Quota = n
			gotQ = true
		case flag == "-i" && !gotI:
			s.Inventory = val
			gotI = true
		default:
			return ServerSettings{}, fmt.Errorf("config: invalid or missing parameters")
		}
	}

	if !gotP || !gotQ || !gotI {
		return ServerSettings{}, fmt.Errorf("config: invalid or missing parameters")
	}
	return s, nil
}

// ClientSettings mirrors the source's cSettings struct, minus roomID (a
// server-assigned, in-process concept with no client-side CLI presence).
type ClientSettings struct {
	Name      string
	Inventory string
	Host      string
}

// ParseClientArgs parses the client's command line: "-n <name>
// -i <inventory_file> <hostname>", where the bare hostname token may appear
// in any position, not only last — matching initcSettings' i-- re-scan of
// the slot it didn't consume a pair from. args excludes the program name
// (len(args) must be 5).
func ParseClientArgs(args []string) (ClientSettings, error) {
	if len(args) != 5 {
		return ClientSettings{}, fmt.Errorf("config: invalid parameters")
	}

	var s ClientSettings
	var gotN, gotI, gotH bool

	i := 0
	for i < len(args) {
		switch {
		case args[i] == "-n" && !gotN:
			if i+1 >= len(args) {
				return ClientSettings{}, fmt.Errorf("config: -n: missing value")
			}
			s.Name = args[i+1]
			gotN = true
			i += 2
		case args[i] == "-i" && !gotI:
			if i+1 >= len(args) {
				return ClientSettings{}, fmt.Errorf("config: -i: missing value")
			}
			s.Inventory = args[i+1]
			gotI = true
			i += 2
		case !gotH:
			s.Host = args[i]
			gotH = true
			i++
		default:
			return ClientSettings{}, fmt.Errorf("config: invalid or missing parameters")
		}
	}

	if !gotN || !gotI || !gotH {
		return ClientSettings{}, fmt.Errorf("config: invalid or missing parameters")
	}
	return s, nil
}
