// Command gamectl is an operator CLI over a gameserver's event log.
//
// Usage:
//
//	gamectl events [--room ID] [--limit N]
//
// Grounded on server/cli.go's subcommand dispatch and exit-1-on-error style.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gameserver/internal/eventlog"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	dbPath := envOr("GAMESERVER_EVENTS_DB", "gameserver-events.db")

	switch os.Args[1] {
	case "events":
		cmdEvents(os.Args[2:], dbPath)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: gamectl events [--room ID] [--limit N]")
}

func cmdEvents(args []string, dbPath string) {
	var roomID uint64
	limit := 50

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--room":
			if i+1 >= len(args) {
				usage()
				os.Exit(1)
			}
			n, err := strconv.ParseUint(args[i+1], 10, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: invalid --room value %q\n", args[i+1])
				os.Exit(1)
			}
			roomID = n
			i++
		case "--limit":
			if i+1 >= len(args) {
				usage()
				os.Exit(1)
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: invalid --limit value %q\n", args[i+1])
				os.Exit(1)
			}
			limit = n
			i++
		default:
			usage()
			os.Exit(1)
		}
	}

	log, err := eventlog.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening event log: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx := context.Background()
	var events []eventlog.Event
	if roomID != 0 {
		events, err = log.ForRoom(ctx, roomID, limit)
	} else {
		events, err = log.Recent(ctx, limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(events) == 0 {
		fmt.Println("No events found.")
		return
	}
	for _, e := range events {
		fmt.Printf("  [%d] room=%d kind=%-20s actor=%-16s %s\n", e.CreatedAt, e.RoomID, e.Kind, e.Actor, e.Detail)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
