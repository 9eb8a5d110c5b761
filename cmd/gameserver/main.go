// Command gameserver runs the admission server: it loads a starting
// inventory, accepts player connections on the game port, and forms rooms
// of -p players each, debiting each admitted player's request from the
// shared ledger.
//
// Usage: gameserver -p <players> -q <max_quota> -i <inventory_file>
//
// The three flags above are the only command-line surface, matching the
// source's fixed six-token contract. Ambient server configuration (listen
// addresses, event log path, admission rate limit) is read from environment
// variables so it never perturbs that contract.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/time/rate"

	"gameserver/internal/adminapi"
	"gameserver/internal/config"
	"gameserver/internal/eventlog"
	"gameserver/internal/invfile"
	"gameserver/internal/ledger"
	"gameserver/internal/supervisor"
	"gameserver/internal/tcpserver"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	settings, err := config.ParseServerArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid parameters. Exiting ...")
		os.Exit(1)
	}

	inv, err := invfile.Load(settings.Inventory)
	if err != nil {
		slog.Error("load inventory", "path", settings.Inventory, "err", err)
		os.Exit(1)
	}

	led, err := ledger.New(inv)
	if err != nil {
		slog.Error("initialize ledger", "err", err)
		os.Exit(1)
	}

	slog.Info("settings for this game",
		"players", settings.Players,
		"quota_per_player", settings.Quota,
		"inventory_file", settings.Inventory,
	)
	for _, e := range inv.Entries {
		slog.Info("stocked item", "item", e.Item, "quantity", e.Quantity)
	}

	eventsPath := envOr("GAMESERVER_EVENTS_DB", "gameserver-events.db")
	events, err := eventlog.Open(eventsPath)
	if err != nil {
		slog.Error("open event log", "path", eventsPath, "err", err)
		os.Exit(1)
	}
	defer events.Close()

	sup := supervisor.New(led, settings.Players, settings.Quota, events)

	gameAddr := envOr("GAMESERVER_ADDR", ":5623")
	adminAddr := envOr("GAMESERVER_ADMIN_ADDR", ":8623")
	rateLimit := envFloat("GAMESERVER_RATE_LIMIT", 5)
	rateBurst := envInt("GAMESERVER_RATE_BURST", 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("shutting down, thanks for playing")
		cancel()
	}()

	game := tcpserver.New(gameAddr, sup, rate.Limit(rateLimit), rateBurst)
	admin := adminapi.New(sup, events)

	errCh := make(chan error, 2)
	go func() { errCh <- game.Run(ctx) }()
	go func() { errCh <- admin.Run(ctx, adminAddr) }()
	slog.Info("admin api listening", "addr", adminAddr)

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil {
			slog.Error("server exited", "err", err)
			os.Exit(1)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
		return def
	}
	return f
}
