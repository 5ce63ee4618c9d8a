package server

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"laserdamage/engine"
	"laserdamage/executor"
	"laserdamage/model"
)

// Server exposes the finite-difference solver as an engine over websocket.
// At most maxSessions clients hold a session at the same time.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	licenses chan struct{}
	e        *executor.Executor
}

func NewServer(addr string, upgrader websocket.Upgrader, maxSessions int) *Server {
	if maxSessions <= 0 {
		maxSessions = 1
	}
	return &Server{
		addr:     addr,
		upgrader: upgrader,
		licenses: make(chan struct{}, maxSessions),
		e:        executor.New(0),
	}
}

// serveWs handles websocket requests from the peer.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	select {
	case s.licenses <- struct{}{}:
		defer func() { <-s.licenses }()
	default:
		log.WithField("remote", r.RemoteAddr).Warn("no session license left")
		_ = conn.WriteJSON(&model.Msg{Type: engine.TypeBusy})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(conn, s.e)
	go hub.handleResponse(ctx)
	go hub.handleRequest(ctx)
	go hub.handleSolve(ctx)
	hub.replies <- model.Msg{Type: engine.TypeReady}
	log.WithField("remote", r.RemoteAddr).Info("engine session started")

	for {
		var msg model.Msg
		if err := conn.ReadJSON(&msg); err != nil {
			log.WithError(err).WithField("remote", r.RemoteAddr).Info("engine session ended")
			return
		}
		select {
		case hub.msg <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	return mux
}

func (s *Server) Serve() error {
	log.WithField("addr", s.addr).Info("engine listening")
	return http.ListenAndServe(s.addr, s.Handler())
}
