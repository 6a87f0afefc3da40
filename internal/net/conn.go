package net

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mirthwood/server/internal/net/packet"
	"go.uber.org/zap"
	xrate "golang.org/x/time/rate"
)

// DeferredPacket is an inbound packet whose handler was deferred because the
// connection's outbound buffer was over the backpressure ceiling. Owned by
// the game loop goroutine.
type DeferredPacket struct {
	Env       packet.Envelope
	Retries   int
	NotBefore time.Time
}

// Conn represents a single client connection. Network I/O runs in dedicated
// goroutines; everything else is touched only from the game loop.
type Conn struct {
	ID      string // 256-bit opaque identity token, hex encoded
	Agent   string // client-agent string from the upgrade request
	ChatKey string // per-connection chat key sent on login

	ws *websocket.Conn
	IP string

	InQueue chan packet.Envelope // game loop reads decoded envelopes from here

	// Outbound queue, bounded by bytes rather than message count so the
	// backpressure ceiling is the one limit that governs slow clients.
	outMu      sync.Mutex
	outCond    *sync.Cond // signaled on enqueue and on close
	outQ       [][]byte
	outCeiling int64

	buffered atomic.Int64 // outbound bytes enqueued but not yet written

	// Game loop only.
	Authed   bool
	Language string
	Deferred []DeferredPacket

	// AuthLimiter throttles AUTH attempts on this connection.
	AuthLimiter *xrate.Limiter

	maxPayload int64

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	log *zap.Logger
}

// newToken returns n random bytes hex encoded.
func newToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is beyond saving
		panic(err)
	}
	return hex.EncodeToString(buf)
}

func NewConn(ws *websocket.Conn, agent string, inSize int, outCeiling, maxPayload int64, authPerMin int, log *zap.Logger) *Conn {
	id := newToken(32)
	c := &Conn{
		ID:          id,
		Agent:       agent,
		ChatKey:     newToken(16),
		ws:          ws,
		IP:          ws.RemoteAddr().String(),
		InQueue:     make(chan packet.Envelope, inSize),
		outCeiling:  outCeiling,
		maxPayload:  maxPayload,
		closeCh:     make(chan struct{}),
		AuthLimiter: xrate.NewLimiter(xrate.Every(time.Minute/time.Duration(max(authPerMin, 1))), max(authPerMin, 1)),
		log:         log.With(zap.String("conn", id[:8])),
	}
	c.outCond = sync.NewCond(&c.outMu)
	return c
}

// Start launches the reader and writer goroutines.
func (c *Conn) Start() {
	go c.readPump()
	go c.writePump()
}

// Send encodes and queues an envelope for the writer goroutine. Non-blocking:
// queued bytes past the backpressure ceiling mean the client cannot keep up
// even though the deferral gate held new work back, and it is dropped.
func (c *Conn) Send(env packet.Envelope) {
	if c.closed.Load() {
		return
	}
	raw, err := packet.Encode(env)
	if err != nil {
		c.log.Error("封包編碼失敗", zap.String("type", env.Type), zap.Error(err))
		return
	}
	c.outMu.Lock()
	if c.closed.Load() {
		c.outMu.Unlock()
		return
	}
	if c.buffered.Load()+int64(len(raw)) > c.outCeiling {
		c.outMu.Unlock()
		c.log.Warn("輸出緩衝超過上限，斷開慢速連線", zap.Int64("buffered", c.buffered.Load()))
		c.Close()
		return
	}
	c.outQ = append(c.outQ, raw)
	c.buffered.Add(int64(len(raw)))
	c.outCond.Signal()
	c.outMu.Unlock()
}

// Buffered returns the number of outbound bytes queued but not yet flushed
// to the socket. The backpressure gate compares this against the ceiling.
func (c *Conn) Buffered() int64 {
	return c.buffered.Load()
}

// Close gracefully shuts down the connection.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
		c.ws.Close()
		// Wake the writer so it can observe the closed flag.
		c.outMu.Lock()
		c.outCond.Broadcast()
		c.outMu.Unlock()
	})
}

// CloseWithCode sends a close control frame with a protocol-failure code
// before tearing the connection down.
func (c *Conn) CloseWithCode(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.Close()
}

func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}

// CloseNotify exposes the close channel for select loops.
func (c *Conn) CloseNotify() <-chan struct{} {
	return c.closeCh
}

// readPump reads frames from the websocket, decodes the envelope, and pushes
// it onto InQueue for the game loop. Protocol errors close the connection
// with a distinct code per failure class.
func (c *Conn) readPump() {
	defer c.Close()

	c.ws.SetReadLimit(c.maxPayload)
	c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(idleTimeout))
		return nil
	})

	for {
		select {
		case <-c.closeCh:
			return
		default:
		}

		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if err == websocket.ErrReadLimit {
				c.log.Warn("封包超過大小上限", zap.Int64("limit", c.maxPayload))
				c.CloseWithCode(packet.CloseOversized, "payload too large")
			} else if !c.closed.Load() {
				c.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(idleTimeout))

		env, err := packet.Decode(raw)
		if err != nil {
			c.log.Warn("封包解碼失敗", zap.Error(err))
			c.CloseWithCode(packet.CloseCodeFor(err), err.Error())
			return
		}

		// Block until InQueue has space or the connection closes. The
		// readPump goroutine is per-connection, so blocking here only
		// stalls this client — dropping envelopes instead would desync
		// server-tracked position.
		select {
		case c.InQueue <- env:
		case <-c.closeCh:
			return
		}
	}
}

const idleTimeout = 60 * time.Second

// writePump drains the out queue to the websocket.
func (c *Conn) writePump() {
	defer c.Close()

	for {
		c.outMu.Lock()
		for len(c.outQ) == 0 && !c.closed.Load() {
			c.outCond.Wait()
		}
		if c.closed.Load() {
			c.outMu.Unlock()
			return
		}
		batch := c.outQ
		c.outQ = nil
		c.outMu.Unlock()

		for _, raw := range batch {
			c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
			err := c.ws.WriteMessage(websocket.TextMessage, raw)
			c.buffered.Add(-int64(len(raw)))
			if err != nil {
				if !c.closed.Load() {
					c.log.Debug("寫入錯誤", zap.Error(err))
				}
				return
			}
		}
	}
}
