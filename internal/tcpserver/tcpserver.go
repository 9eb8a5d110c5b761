// Package tcpserver implements the Listener (C7): it binds the game port,
// accepts connections, and hands each one to the Admission Handler. Grounded
// on the accept-loop shape of other_examples' daemon.go (context-cancellable
// listener, goroutine-per-connection, accept errors logged and retried
// rather than fatal).
package tcpserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/time/rate"

	"gameserver/internal/admission"
	"gameserver/internal/supervisor"
)

// Backlog is advisory under Go's net package (the kernel backlog is set by
// the OS from net.ListenConfig internals), kept here only as documentation
// of the source's intended concurrent-connection headroom.
const Backlog = 150

// Server owns the game port listener and a per-source-IP admission
// throttle, since nothing in the wire protocol itself bounds how fast a
// single peer can retry a rejected admission.
type Server struct {
	Addr       string
	Supervisor *supervisor.Supervisor
	RateLimit  rate.Limit // admissions/sec allowed per IP; 0 disables throttling
	RateBurst  int

	listener net.Listener

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New constructs a Server bound to addr (not yet listening).
func New(addr string, sup *supervisor.Supervisor, rateLimit rate.Limit, rateBurst int) *Server {
	return &Server{
		Addr:       addr,
		Supervisor: sup,
		RateLimit:  rateLimit,
		RateBurst:  rateBurst,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Run binds the listener and accepts connections until ctx is canceled or
// a non-transient accept error occurs.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	slog.Info("listening", "addr", s.Addr)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			slog.Warn("accept error, retrying", "err", err)
			continue
		}
		if !s.allow(conn) {
			slog.Debug("admission throttled", "remote", conn.RemoteAddr())
			conn.Close()
			continue
		}
		go admission.Handle(conn, s.Supervisor)
	}
}

func (s *Server) allow(conn net.Conn) bool {
	if s.RateLimit <= 0 {
		return true
	}
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}

	s.mu.Lock()
	lim, ok := s.limiters[host]
	if !ok {
		lim = rate.NewLimiter(s.RateLimit, s.RateBurst)
		s.limiters[host] = lim
	}
	s.mu.Unlock()

	return lim.Allow()
}
