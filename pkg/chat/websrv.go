package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mosspond/wildspawn/pkg/events"
)

// Config holds transport configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// Server accepts websocket chat clients and feeds their lines to the game.
type Server struct {
	cfg      Config
	bus      *events.Bus
	handle   func(Message)
	httpSrv  *http.Server
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu    sync.Mutex
	descs map[*Descriptor]struct{}
}

// NewServer creates a chat server. handle is called once per inbound line;
// metrics, when non-nil, is mounted at /metrics.
func NewServer(cfg Config, bus *events.Bus, handle func(Message), metrics http.Handler) *Server {
	s := &Server{
		cfg:    cfg,
		bus:    bus,
		handle: handle,
		mux:    http.NewServeMux(),
		descs:  make(map[*Descriptor]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(cfg.AllowedOrigins) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range cfg.AllowedOrigins {
					if strings.EqualFold(o, origin) {
						return true
					}
				}
				return false
			},
		},
	}

	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: s.mux,
	}
	return s
}

// Handler exposes the route mux for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens until the server is stopped.
func (s *Server) Start() error {
	log.Printf("chat: listening on %s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP server down and closes all connected descriptors.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpSrv.Shutdown(ctx)

	s.mu.Lock()
	descs := make([]*Descriptor, 0, len(s.descs))
	for d := range s.descs {
		descs = append(descs, d)
	}
	s.mu.Unlock()
	for _, d := range descs {
		d.Close()
	}
	s.bus.Cleanup()
	return err
}

// handleWebSocket upgrades a client and pumps its inbound lines. The user
// and channel identities come from query parameters; the transport owns
// identity per the collaborator contract.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	channel := r.URL.Query().Get("channel")
	if user == "" || channel == "" {
		http.Error(w, "user and channel query parameters are required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chat: upgrade failed: %v", err)
		return
	}

	d := newDescriptor(conn, user, channel)
	s.mu.Lock()
	s.descs[d] = struct{}{}
	s.mu.Unlock()
	s.bus.Subscribe(channel, d)
	s.bus.SubscribeUser(user, d)
	log.Printf("chat: %s joined %s from %s", user, channel, r.RemoteAddr)

	defer func() {
		s.bus.Unsubscribe(channel, d)
		s.bus.UnsubscribeUser(user, d)
		s.mu.Lock()
		delete(s.descs, d)
		s.mu.Unlock()
		d.Close()
		log.Printf("chat: %s left %s", user, channel)
	}()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("chat: read from %s@%s: %v", user, channel, err)
			}
			return
		}
		if frame.Text == "" {
			continue
		}
		s.handle(Message{
			Author:   user,
			Channel:  channel,
			Text:     frame.Text,
			Mentions: frame.Mentions,
			Private:  frame.Private,
		})
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}
