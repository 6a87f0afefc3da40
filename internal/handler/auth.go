package handler

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mirthwood/server/internal/core/event"
	"github.com/mirthwood/server/internal/net"
	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/translate"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type loginFailedPayload struct {
	Reason string `json:"reason"`
}

// handleAuth runs the full login flow. An AUTH with an empty token starts a
// guest session; otherwise the name/token pair is verified against the store.
func (d *Deps) handleAuth(c any, env packet.Envelope) {
	conn := d.conn(c)
	if conn.Authed {
		return
	}
	if !conn.AuthLimiter.Allow() {
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "too many attempts"}))
		return
	}

	payload, err := packet.Payload[packet.AuthPayload](env)
	if err != nil {
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "bad request"}))
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" || len(name) > d.Config.Gameplay.MaxNameLength {
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "invalid name"}))
		return
	}

	var p *world.PlayerInfo
	if payload.Token == "" {
		p = d.guestSession(conn, name)
	} else {
		p = d.storedSession(conn, name, payload.Token)
	}
	if p == nil {
		return
	}

	// A second login for the same name displaces the old session. The old
	// client is told to reconnect rather than silently going dark.
	if old := d.World.GetByName(p.Name); old != nil {
		old.Conn.Send(packet.New(packet.SReconnect, namedPayload{Name: p.Name}))
		d.DropSession(old.ConnID, true)
	}

	def := d.Maps.Get(p.MapName)
	if def == nil {
		def = d.Maps.Get(d.Config.Gameplay.SpawnMap)
		if def == nil {
			conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "no world available"}))
			return
		}
		p.MapName = def.Meta.Name
		p.X = def.Meta.SpawnX
		p.Y = def.Meta.SpawnY
	}

	conn.Authed = true
	if env.Language != "" {
		conn.Language = translate.NormalizeLang(env.Language)
	} else if p.Language != "" {
		conn.Language = p.Language
	} else {
		conn.Language = d.Config.Translation.DefaultLanguage
	}
	p.Language = conn.Language

	d.World.AddPlayer(p)

	// LOGIN_SUCCESS carries the session secret and chat key in the envelope
	// itself, not the payload.
	success := packet.New(packet.SLoginSuccess, snapshotOf(p))
	success.Secret = conn.ID
	success.ChatDecryptionKey = conn.ChatKey
	conn.Send(success)

	// Post-login sequence. Order matters to the client: state payloads
	// first, then the map, then the entities on it.
	d.sendInventory(p)
	d.sendQuestLog(p)
	conn.Send(packet.New(packet.SClientConfig, json.RawMessage(`{}`)))
	conn.Send(packet.New(packet.SLoadMap, loadMapPayload{
		Map: p.MapName, X: p.X, Y: p.Y,
	}))
	d.sendMusic(p, def.Meta.Music)

	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth,
		packet.New(packet.SSpawnPlayer, snapshotOf(p)))

	others := make([]playerSnapshot, 0, 8)
	d.World.PlayersOnMap(p.MapName, func(other *world.PlayerInfo) {
		if other.ConnID == p.ConnID || !visibleTo(other, p) {
			return
		}
		others = append(others, snapshotOf(other))
	})
	conn.Send(packet.New(packet.SLoadPlayers, others))

	d.sendFriendList(p)
	d.SendStats(p)
	if party := d.World.Parties.PartyOf(p.Name); party != nil {
		p.PartyID = party.ID
		d.sendPartyUpdate(party)
	}

	event.Emit(d.Bus, event.ConnectionCountChanged{Count: d.Conns.Count()})
	d.Log.Info("玩家登入",
		zap.String("player", p.Name),
		zap.String("map", p.MapName),
		zap.Bool("guest", p.Guest),
	)
}

// guestSession builds an ephemeral session. Guests are never persisted and
// the name must not shadow a stored player.
func (d *Deps) guestSession(conn *net.Conn, name string) *world.PlayerInfo {
	ctx, cancel := storeCtx()
	defer cancel()
	if _, err := d.Store.Load(ctx, name); err == nil {
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "name requires a token"}))
		return nil
	} else if !errors.Is(err, world.ErrNotFound) {
		d.Log.Error("讀取玩家資料失敗", zap.String("player", name), zap.Error(err))
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "try again later"}))
		return nil
	}

	def := d.Maps.Get(d.Config.Gameplay.SpawnMap)
	p := &world.PlayerInfo{
		ConnID: conn.ID,
		Conn:   conn,
		Name:   name,
		Guest:  true,
		Stats: world.Stats{
			Health: 100, MaxHealth: 100,
			Stamina: 100, MaxStamina: 100,
			Level: 1, XP: 0, MaxXP: 100,
		},
		Facing: 4,
	}
	if def != nil {
		p.MapName = def.Meta.Name
		p.X = def.Meta.SpawnX
		p.Y = def.Meta.SpawnY
	}
	return p
}

// storedSession verifies the token against the stored bcrypt hash and
// hydrates a session from the durable record.
func (d *Deps) storedSession(conn *net.Conn, name, token string) *world.PlayerInfo {
	ctx, cancel := storeCtx()
	defer cancel()
	rec, err := d.Store.Load(ctx, name)
	if errors.Is(err, world.ErrNotFound) {
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "unknown player"}))
		return nil
	}
	if err != nil {
		d.Log.Error("讀取玩家資料失敗", zap.String("player", name), zap.Error(err))
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "try again later"}))
		return nil
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.TokenHash), []byte(token)) != nil {
		d.Log.Warn("登入驗證失敗", zap.String("player", name), zap.String("ip", conn.IP))
		conn.Send(packet.New(packet.SLoginFailed, loginFailedPayload{Reason: "invalid token"}))
		return nil
	}

	return &world.PlayerInfo{
		ConnID:      conn.ID,
		Conn:        conn,
		AccountID:   rec.AccountID,
		Name:        rec.Name,
		MapName:     rec.MapName,
		X:           rec.X,
		Y:           rec.Y,
		Facing:      rec.Facing,
		Stats:       rec.Stats,
		Admin:       rec.Admin,
		Permissions: rec.Permissions,
		Friends:     rec.Friends,
		Language:    rec.Language,
	}
}

// sendInventory pushes the durable inventory to a fresh session. Guests get
// an empty list.
func (d *Deps) sendInventory(p *world.PlayerInfo) {
	items := []world.Item{}
	if !p.Guest {
		ctx, cancel := storeCtx()
		loaded, err := d.Store.Inventory(ctx, p.AccountID)
		cancel()
		if err != nil {
			d.Log.Error("讀取背包失敗", zap.String("player", p.Name), zap.Error(err))
		} else if loaded != nil {
			items = loaded
		}
	}
	p.Conn.Send(packet.New(packet.SInventory, items))
}

// sendQuestLog pushes the durable quest log to a fresh session.
func (d *Deps) sendQuestLog(p *world.PlayerInfo) {
	quests := []world.QuestEntry{}
	if !p.Guest {
		ctx, cancel := storeCtx()
		loaded, err := d.Store.QuestLog(ctx, p.AccountID)
		cancel()
		if err != nil {
			d.Log.Error("讀取任務紀錄失敗", zap.String("player", p.Name), zap.Error(err))
		} else if loaded != nil {
			quests = loaded
		}
	}
	p.Conn.Send(packet.New(packet.SQuestLog, quests))
}
