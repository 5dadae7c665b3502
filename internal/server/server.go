package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/cmdclient/internal/observability"
	"github.com/danmuck/cmdclient/internal/protocol/command"
	"github.com/danmuck/cmdclient/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddrRequired    = errors.New("server: listen addr required")
	ErrHandlerRequired = errors.New("server: handler required")
	ErrServerClosed    = errors.New("server: closed")
)

// Handler receives every decoded command. Calls for one connection are
// sequential; calls across connections are concurrent.
type Handler interface {
	HandleCommand(ctx context.Context, peer net.Addr, cmd command.Command)
}

type HandlerFunc func(ctx context.Context, peer net.Addr, cmd command.Command)

func (f HandlerFunc) HandleCommand(ctx context.Context, peer net.Addr, cmd command.Command) {
	f(ctx, peer, cmd)
}

type Config struct {
	Addr    string
	Limits  command.Limits
	Session session.Config
	// IdleTimeout drops connections with no complete frame for this long.
	// Zero disables it.
	IdleTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:    "127.0.0.1:7400",
		Limits:  command.DefaultLimits(),
		Session: session.DefaultConfig(),
	}
}

// Server accepts command streams and decodes frames until EOF.
type Server struct {
	cfg     Config
	handler Handler
	logger  zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config, h Handler) (*Server, error) {
	if h == nil {
		return nil, ErrHandlerRequired
	}
	if cfg.Limits.MaxAddressBytes <= 0 || cfg.Limits.MaxMetadataBytes <= 0 {
		cfg.Limits = command.DefaultLimits()
	}
	cfg.Session = cfg.Session.WithDefaults()
	return &Server{
		cfg:     cfg,
		handler: h,
		logger:  log.Logger.With().Str("component", "server").Logger(),
		conns:   make(map[net.Conn]struct{}),
	}, nil
}

// Listen binds the configured address, wrapping it in tls when enabled.
func (s *Server) Listen() (net.Listener, error) {
	if strings.TrimSpace(s.cfg.Addr) == "" {
		return nil, ErrAddrRequired
	}
	if err := s.cfg.Session.ValidateServerTransport(); err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return nil, err
	}
	if !s.cfg.Session.TLS.Enabled {
		return ln, nil
	}
	tlsCfg, err := s.cfg.Session.ServerTLSConfig()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	return tls.NewListener(ln, tlsCfg), nil
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve runs the accept loop on ln until ctx ends or Close is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			return err
		}
		if !s.track(conn) {
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Close stops accepting and drops every open connection.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	peer := conn.RemoteAddr()
	logger := s.logger.With().Str("peer", peer.String()).Logger()
	logger.Debug().Msg("connection opened")
	reader := bufio.NewReader(conn)
	for {
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
		cmd, err := command.Decode(reader, s.cfg.Limits)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				logger.Debug().Msg("connection closed")
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Debug().Dur("idle_timeout", s.cfg.IdleTimeout).Msg("connection idle")
			default:
				observability.RecordDecodeError()
				logger.Warn().Err(err).Msg("dropping connection on bad frame")
			}
			return
		}
		observability.RecordReceived(cmd)
		logger.Debug().
			Str("type", cmd.Type.String()).
			Str("target", cmd.Target.String()).
			Int("metadata_bytes", len(cmd.Metadata)).
			Msg("command received")
		s.handler.HandleCommand(ctx, peer, cmd)
	}
}
