package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	Addr   string
	WSAddr string // empty disables the WebSocket listener

	LobbyRoom string
	Spawn     Position

	OutboundBuffer int
	Session        SessionOptions
}

type Server struct {
	opts     Options
	logger   *zap.Logger
	reg      *Registry
	disp     *Dispatcher
	admin    *AdminExecutor
	listener net.Listener
	httpSrv  *http.Server

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewServer(opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.LobbyRoom == "" {
		opts.LobbyRoom = DefaultLobby
	}
	reg := NewRegistry(logger)
	return &Server{
		opts:    opts,
		logger:  logger,
		reg:     reg,
		disp:    NewDispatcher(reg, opts.LobbyRoom, logger),
		admin:   NewAdminExecutor(reg, opts.LobbyRoom, opts.Spawn, logger),
		clients: make(map[*Client]struct{}),
	}
}

func (s *Server) Registry() *Registry { return s.reg }

// AdminExecutor applies queued admin actions to this server's sessions.
func (s *Server) AdminExecutor() *AdminExecutor { return s.admin }

// Addr is the bound TCP address, valid after Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Handler serves WebSocket sessions on /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWS)
	return mux
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	s.listener = ln

	if s.opts.WSAddr != "" {
		wsln, err := net.Listen("tcp", s.opts.WSAddr)
		if err != nil {
			_ = ln.Close()
			return err
		}
		s.httpSrv = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := s.httpSrv.Serve(wsln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("websocket listener failed", zap.Error(err))
			}
		}()
		s.logger.Info("websocket listener started", zap.String("addr", wsln.Addr().String()))
	}

	go s.acceptLoop(ln)

	s.logger.Info("server started", zap.String("addr", ln.Addr().String()), zap.String("lobby", s.opts.LobbyRoom))
	return nil
}

// Stop closes the listeners and every live connection, then waits for all
// session loops to finish their cleanup.
func (s *Server) Stop() {
	s.logger.Info("shutting down")

	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.httpSrv.Shutdown(ctx)
		cancel()
	}

	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		_ = c.Conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("shutdown complete")
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// listener closed: normal shutdown
			return
		}
		go s.serve(NewTCPConn(conn), "tcp")
	}
}

func (s *Server) serve(conn LineConn, transport string) {
	c := NewClient(conn, s.opts.OutboundBuffer)
	s.logger.Info("client connected", zap.String("session", c.Key), zap.String("transport", transport))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		s.wg.Done()
	}()

	HandleSession(c, s.disp, s.opts.Session)
}
