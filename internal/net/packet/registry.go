package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// HandlerFunc is the callback signature for packet handlers.
// The connection is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(conn any, env Envelope)

// ErrUnknownType is returned by Dispatch for an unregistered packet type.
// The caller closes the connection with CloseUnknownType.
var ErrUnknownType = errors.New("unknown packet type")

type handlerEntry struct {
	fn          HandlerFunc
	requireAuth bool
	priority    bool // bypasses the backpressure gate
}

// Registry maps packet types to handlers with auth-state access control.
type Registry struct {
	handlers map[string]*handlerEntry
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]*handlerEntry),
		log:      log,
	}
}

// Register maps a packet type to a handler. requireAuth restricts the
// handler to authenticated sessions.
func (reg *Registry) Register(typ string, requireAuth bool, fn HandlerFunc) {
	reg.handlers[typ] = &handlerEntry{fn: fn, requireAuth: requireAuth}
}

// RegisterPriority registers a handler that is exempt from the backpressure
// gate. Only movement qualifies: its packets are idempotent and supersede
// each other, and latency there is directly visible to the player.
func (reg *Registry) RegisterPriority(typ string, requireAuth bool, fn HandlerFunc) {
	reg.handlers[typ] = &handlerEntry{fn: fn, requireAuth: requireAuth, priority: true}
}

// IsPriority reports whether the packet type bypasses the backpressure gate.
func (reg *Registry) IsPriority(typ string) bool {
	e, ok := reg.handlers[typ]
	return ok && e.priority
}

// Known reports whether the packet type has a registered handler.
func (reg *Registry) Known(typ string) bool {
	_, ok := reg.handlers[typ]
	return ok
}

// Dispatch finds the handler for the envelope type, validates the auth
// state, and calls the handler. ErrUnknownType means the connection must be
// closed with a specific code; other errors are logged by the caller.
func (reg *Registry) Dispatch(conn any, authed bool, env Envelope) error {
	entry, ok := reg.handlers[env.Type]
	if !ok {
		reg.log.Debug("未知封包類型", zap.String("type", env.Type))
		return fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}

	if entry.requireAuth && !authed {
		reg.log.Warn("未認證連線送出需認證的封包", zap.String("type", env.Type))
		return fmt.Errorf("packet %s requires an authenticated session", env.Type)
	}

	return reg.safeCall(entry.fn, conn, env)
}

// safeCall executes a handler with panic recovery so a single bad packet
// cannot crash the entire game loop.
func (reg *Registry) safeCall(fn HandlerFunc, conn any, env Envelope) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.String("type", env.Type),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", env.Type, rec)
		}
	}()
	fn(conn, env)
	return nil
}
