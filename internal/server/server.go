package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

// Server accepts websocket upgrades on /ws and hands each socket to the
// manager. It optionally serves the static client assets, which are a thin
// I/O wrapper around the real protocol.
type Server struct {
	addr      string
	staticDir string
	upgrader  websocket.Upgrader
	logger    *log.Logger
	manager   *Manager

	mu          sync.Mutex
	connections map[*Conn]bool
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewServer creates a websocket server routing into manager.
func NewServer(addr, staticDir string, logger *log.Logger, manager *Manager) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      addr,
		staticDir: staticDir,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Identity is client-supplied and trusted; origin checking
				// buys nothing here.
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger:      logger.WithPrefix("server"),
		manager:     manager,
		connections: make(map[*Conn]bool),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}

	s.logger.Info("starting websocket server", "addr", s.addr)
	return http.ListenAndServe(s.addr, mux)
}

// Stop closes every open connection.
func (s *Server) Stop() error {
	s.cancel()

	s.mu.Lock()
	for conn := range s.connections {
		_ = conn.Close()
	}
	s.mu.Unlock()

	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := NewConn(conn, s.logger, s.manager)

	s.mu.Lock()
	s.connections[client] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("client connected", "total", total)

	client.Start()

	go func() {
		<-client.ctx.Done()
		s.mu.Lock()
		delete(s.connections, client)
		total := len(s.connections)
		s.mu.Unlock()
		s.logger.Info("client disconnected", "total", total)
	}()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}
