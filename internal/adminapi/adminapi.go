// Package adminapi exposes a diagnostics/admin HTTP surface over the
// Supervisor and Ledger, bound to a separate address from the game port.
// Grounded on internal/httpapi/server.go's Echo wiring, request-logging
// middleware, and health/state JSON handler shape.
package adminapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gameserver/internal/eventlog"
	"gameserver/internal/ledger"
	"gameserver/internal/supervisor"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the admin Echo application.
type Server struct {
	echo *echo.Echo
	sup  *supervisor.Supervisor
	log  *eventlog.Log
}

// New constructs the admin app. log may be nil if the event log is disabled.
func New(sup *supervisor.Supervisor, log *eventlog.Log) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger())

	s := &Server{echo: e, sup: sup, log: log}
	s.registerRoutes()
	return s
}

func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			slog.Debug("admin http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/rooms", s.handleRooms)
	s.echo.GET("/api/inventory", s.handleInventory)
	s.echo.GET("/api/metrics", s.handleMetrics)
	if s.log != nil {
		s.echo.GET("/api/events", s.handleEvents)
	}
}

// Run starts the admin Echo server and blocks until ctx cancellation.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("shutting down admin http server")
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

type roomSummary struct {
	RoomID   uint64 `json:"room_id"`
	State    string `json:"state"`
	Members  int    `json:"members"`
	Capacity int    `json:"capacity"`
}

type roomsResponse struct {
	Forming roomSummary                  `json:"forming"`
	Sealed  []supervisor.RunningRoomInfo `json:"sealed"`
}

func (s *Server) handleRooms(c echo.Context) error {
	cur := s.sup.Current()
	return c.JSON(http.StatusOK, roomsResponse{
		Forming: roomSummary{
			RoomID:   cur.ID,
			State:    cur.State().String(),
			Members:  cur.MemberCount(),
			Capacity: cur.Capacity,
		},
		Sealed: s.sup.RunningRooms(),
	})
}

type inventoryResponse struct {
	Entries          []ledger.Entry `json:"entries"`
	TotalRemaining   int            `json:"total_remaining"`
	TotalRemainingHR string         `json:"total_remaining_human"`
}

func (s *Server) handleInventory(c echo.Context) error {
	entries := s.sup.Ledger.Snapshot().Entries
	total := 0
	for _, e := range entries {
		total += e.Quantity
	}
	return c.JSON(http.StatusOK, inventoryResponse{
		Entries:          entries,
		TotalRemaining:   total,
		TotalRemainingHR: humanize.Comma(int64(total)),
	})
}

type metricsResponse struct {
	SealedRooms int `json:"sealed_rooms"`
	FormingSize int `json:"forming_size"`
	Capacity    int `json:"capacity"`
	MaxQuota    int `json:"max_quota"`
}

func (s *Server) handleMetrics(c echo.Context) error {
	cur := s.sup.Current()
	return c.JSON(http.StatusOK, metricsResponse{
		SealedRooms: len(s.sup.RunningRooms()),
		FormingSize: cur.MemberCount(),
		Capacity:    s.sup.Capacity,
		MaxQuota:    s.sup.MaxQuota,
	})
}

func (s *Server) handleEvents(c echo.Context) error {
	events, err := s.log.Recent(c.Request().Context(), 200)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}
