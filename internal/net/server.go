package net

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to websocket connections and hands them to
// the game loop via channels. New/dead connections are communicated over
// newConns and deadCh.
type Server struct {
	httpSrv    *http.Server
	newConns   chan *Conn
	deadCh     chan string // connection IDs of dead connections
	inSize     int
	outCeiling int64
	maxPayload int64
	authPerMin int
	log        *zap.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The world server sits behind the gateway, which enforces origin.
		return true
	},
}

func NewServer(bindAddr string, inSize int, outCeiling, maxPayload int64, authPerMin int, log *zap.Logger) *Server {
	s := &Server{
		newConns:   make(chan *Conn, 64),
		deadCh:     make(chan string, 64),
		inSize:     inSize,
		outCeiling: outCeiling,
		maxPayload: maxPayload,
		authPerMin: authPerMin,
		log:        log,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Addr: bindAddr, Handler: mux}
	return s
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("連線升級失敗", zap.Error(err))
		return
	}

	conn := NewConn(ws, r.UserAgent(), s.inSize, s.outCeiling, s.maxPayload, s.authPerMin, s.log)
	conn.Start()

	s.log.Info("玩家連線", zap.String("conn", conn.ID[:8]), zap.String("ip", conn.IP))

	select {
	case s.newConns <- conn:
	default:
		s.log.Warn("連線佇列已滿，拒絕新連線")
		conn.Close()
	}
}

// ListenAndServe runs in its own goroutine.
func (s *Server) ListenAndServe() {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error("HTTP 伺服器錯誤", zap.Error(err))
	}
}

// NewConns returns the channel of newly connected clients.
func (s *Server) NewConns() <-chan *Conn {
	return s.newConns
}

// NotifyDead reports a dead connection ID to the game loop.
func (s *Server) NotifyDead(connID string) {
	select {
	case s.deadCh <- connID:
	default:
	}
}

// DeadConns returns the channel of dead connection IDs.
func (s *Server) DeadConns() <-chan string {
	return s.deadCh
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(ctx)
}

// Addr returns the configured bind address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}
