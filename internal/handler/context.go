package handler

import (
	"context"
	"time"

	"github.com/mirthwood/server/internal/config"
	"github.com/mirthwood/server/internal/core/event"
	"github.com/mirthwood/server/internal/data"
	"github.com/mirthwood/server/internal/net"
	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/scripting"
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
)

// MovementController is the movement system's surface seen by handlers.
// Breaking the interface out here avoids a handler↔system import cycle.
type MovementController interface {
	// Start arms (or re-arms) the session's mover with a new heading.
	Start(p *world.PlayerInfo, heading int)
	// Abort disarms the session's mover, if any.
	Abort(p *world.PlayerInfo)
}

// Deps carries everything handlers need. One instance is built at startup
// and shared; all access happens on the game loop goroutine.
type Deps struct {
	Config     *config.Config
	Log        *zap.Logger
	World      *world.State
	Maps       *data.MapTable
	Assets     data.AssetCache
	Store      world.PlayerStore
	Scripts    *scripting.Engine
	Translator translate.Translator
	Conns      *net.Registry
	Rate       *net.RateTable
	Bus        *event.Bus
	Movement   MovementController
}

// conn casts the opaque dispatch argument back to the concrete connection.
func (d *Deps) conn(c any) *net.Conn {
	return c.(*net.Conn)
}

// player resolves the session bound to a connection, or nil.
func (d *Deps) player(c any) *world.PlayerInfo {
	return d.World.GetByConn(d.conn(c).ID)
}

// storeCtx returns a short deadline context for store calls made from the
// game loop. Handlers must not hold one open across a tick.
func storeCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 3*time.Second)
}

// RegisterAll wires every packet type to its handler.
func RegisterAll(reg *packet.Registry, d *Deps) {
	// Pre-auth.
	reg.Register(packet.CPing, false, func(c any, env packet.Envelope) { d.handlePing(c, env) })
	reg.Register(packet.CAuth, false, func(c any, env packet.Envelope) { d.handleAuth(c, env) })

	// Movement is priority: exempt from the backpressure deferral gate.
	reg.RegisterPriority(packet.CMoveXY, true, func(c any, env packet.Envelope) { d.handleMoveXY(c, env) })
	reg.Register(packet.CTeleportXY, true, func(c any, env packet.Envelope) { d.handleTeleportXY(c, env) })

	reg.Register(packet.CChat, true, func(c any, env packet.Envelope) { d.handleChat(c, env) })
	reg.Register(packet.CTyping, true, func(c any, env packet.Envelope) { d.handleTyping(c, env) })
	reg.Register(packet.CStopTyping, true, func(c any, env packet.Envelope) { d.handleStopTyping(c, env) })

	reg.Register(packet.CAttack, true, func(c any, env packet.Envelope) { d.handleAttack(c, env) })

	reg.Register(packet.CClientConfig, true, func(c any, env packet.Envelope) { d.handleClientConfig(c, env) })
	reg.Register(packet.CSelectPlayer, true, func(c any, env packet.Envelope) { d.handleSelectPlayer(c, env) })
	reg.Register(packet.CTargetClosest, true, func(c any, env packet.Envelope) { d.handleTargetClosest(c, env) })
	reg.Register(packet.CInspectPlayer, true, func(c any, env packet.Envelope) { d.handleInspectPlayer(c, env) })

	reg.Register(packet.CNoclip, true, func(c any, env packet.Envelope) { d.handleNoclip(c, env) })
	reg.Register(packet.CStealth, true, func(c any, env packet.Envelope) { d.handleStealth(c, env) })
	reg.Register(packet.CCommand, true, func(c any, env packet.Envelope) { d.handleCommand(c, env) })

	reg.Register(packet.CAddFriend, true, func(c any, env packet.Envelope) { d.handleAddFriend(c, env) })
	reg.Register(packet.CRemoveFriend, true, func(c any, env packet.Envelope) { d.handleRemoveFriend(c, env) })
	reg.Register(packet.CInviteParty, true, func(c any, env packet.Envelope) { d.handleInviteParty(c, env) })
	reg.Register(packet.CInvitationResponse, true, func(c any, env packet.Envelope) { d.handleInvitationResponse(c, env) })
	reg.Register(packet.CKickPartyMember, true, func(c any, env packet.Envelope) { d.handleKickPartyMember(c, env) })
	reg.Register(packet.CLeaveParty, true, func(c any, env packet.Envelope) { d.handleLeaveParty(c, env) })

	reg.Register(packet.CLogout, true, func(c any, env packet.Envelope) { d.handleLogout(c, env) })
	reg.Register(packet.CDisconnect, true, func(c any, env packet.Envelope) { d.handleDisconnect(c, env) })
	reg.Register(packet.CBenchmark, true, func(c any, env packet.Envelope) { d.handleBenchmark(c, env) })

	// A disconnect flips the leaver's online flag on everyone who lists
	// them as a friend.
	event.Subscribe(d.Bus, func(ev event.PlayerDisconnected) {
		d.World.AllPlayers(func(p *world.PlayerInfo) {
			if p.IsFriend(ev.Name) {
				d.sendFriendList(p)
			}
		})
	})
}

// DropSession tears down a connection and its session: mover disarmed, party
// membership resolved, state saved, map peers told, topics updated. Safe to
// call for connections that never authenticated.
func (d *Deps) DropSession(connID string, save bool) {
	c := d.Conns.Remove(connID)
	d.Rate.Remove(connID)

	p := d.World.RemovePlayer(connID)
	if p != nil {
		d.Movement.Abort(p)
		if party := d.World.Parties.RemoveMember(p.Name); party != nil {
			d.sendPartyUpdate(party)
		}
		if save && !p.Guest {
			ctx, cancel := storeCtx()
			if err := d.Store.SaveState(ctx, world.RecordOf(p)); err != nil {
				d.Log.Error("離線存檔失敗", zap.String("player", p.Name), zap.Error(err))
			}
			cancel()
		}
		d.BroadcastToMap(p.MapName, "", false,
			packet.New(packet.SDisconnectPlayer, namedPayload{Name: p.Name}))
		event.Emit(d.Bus, event.PlayerDisconnected{ConnID: connID, Name: p.Name, Map: p.MapName})
		d.Log.Info("玩家離線", zap.String("player", p.Name))
	}

	event.Emit(d.Bus, event.ConnectionCountChanged{Count: d.Conns.Count()})
	if c != nil {
		c.Close()
	}
}
