package handler

import (
	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/world"
)

// ---- Outbound payload shapes ----

type namedPayload struct {
	Name string `json:"name"`
}

type noticePayload struct {
	Text string `json:"text"`
}

type loadMapPayload struct {
	Map string  `json:"map"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type musicPayload struct {
	Track string `json:"track"`
}

type audioPayload struct {
	Sound  string `json:"sound"`
	Source string `json:"source,omitempty"`
}

// playerSnapshot is the public view of one session, used by SPAWN_PLAYER,
// LOAD_PLAYERS and the inspect/select responses.
type playerSnapshot struct {
	Name    string      `json:"name"`
	Map     string      `json:"map"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Facing  int         `json:"facing"`
	Moving  bool        `json:"moving"`
	Stats   world.Stats `json:"stats"`
	Admin   bool        `json:"admin,omitempty"`
	Stealth bool        `json:"stealth,omitempty"`
	PartyID int32       `json:"party_id,omitempty"`
}

func snapshotOf(p *world.PlayerInfo) playerSnapshot {
	return playerSnapshot{
		Name:    p.Name,
		Map:     p.MapName,
		X:       p.X,
		Y:       p.Y,
		Facing:  p.Facing,
		Moving:  p.Moving,
		Stats:   p.Stats,
		Admin:   p.Admin,
		Stealth: p.Stealth,
		PartyID: p.PartyID,
	}
}

type movePayload struct {
	Name   string  `json:"name"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Facing int     `json:"facing"`
	Moving bool    `json:"moving"`
}

type statsPayload struct {
	Name  string      `json:"name"`
	Stats world.Stats `json:"stats"`
}

type chatPayload struct {
	From string `json:"from"`
	Text string `json:"text"`
}

type partyPayload struct {
	ID      int32    `json:"id"`
	Leader  string   `json:"leader"`
	Members []string `json:"members"`
}

type friendStatus struct {
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

type connectionCountPayload struct {
	Count int `json:"count"`
}

// Notify sends a server notice to one session.
func (d *Deps) Notify(p *world.PlayerInfo, text string) {
	p.Conn.Send(packet.New(packet.SNotify, noticePayload{Text: text}))
}

// BroadcastToMap fans an envelope out to every session on a map. skipConn
// excludes one connection (usually the originator). When aboutStealth is
// true the subject of the envelope is stealthed and only admins receive it.
func (d *Deps) BroadcastToMap(mapName, skipConn string, aboutStealth bool, env packet.Envelope) {
	d.World.PlayersOnMap(mapName, func(p *world.PlayerInfo) {
		if p.ConnID == skipConn {
			return
		}
		if aboutStealth && !p.Admin {
			return
		}
		p.Conn.Send(env)
	})
}

// SendStats pushes a session's stat block to its owner and to every map
// observer who can see it.
func (d *Deps) SendStats(p *world.PlayerInfo) {
	env := packet.New(packet.SUpdateStats, statsPayload{Name: p.Name, Stats: p.Stats})
	p.Conn.Send(env)
	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth, env)
}

// BroadcastMove pushes a position delta for one session to its map.
func (d *Deps) BroadcastMove(p *world.PlayerInfo) {
	env := packet.New(packet.SMoveXY, movePayload{
		Name: p.Name, X: p.X, Y: p.Y, Facing: p.Facing, Moving: p.Moving,
	})
	d.BroadcastToMap(p.MapName, p.ConnID, p.Stealth, env)
}

// sendMusic starts the destination map's music track, if it has one.
func (d *Deps) sendMusic(p *world.PlayerInfo, track string) {
	if track == "" {
		return
	}
	p.Conn.Send(packet.New(packet.SMusic, musicPayload{Track: track}))
}

// sendPartyUpdate pushes the current roster to every online member.
func (d *Deps) sendPartyUpdate(party *world.Party) {
	env := packet.New(packet.SUpdateParty, partyPayload{
		ID: party.ID, Leader: party.Leader(), Members: party.Members,
	})
	for _, name := range party.Members {
		if member := d.World.GetByName(name); member != nil {
			member.Conn.Send(env)
		}
	}
}

// sendFriendList pushes the friends list with online flags.
func (d *Deps) sendFriendList(p *world.PlayerInfo) {
	list := make([]friendStatus, 0, len(p.Friends))
	for _, name := range p.Friends {
		list = append(list, friendStatus{
			Name:   name,
			Online: d.World.GetByName(name) != nil,
		})
	}
	p.Conn.Send(packet.New(packet.SUpdateFriends, list))
}

// visibleTo reports whether the subject session is visible to the observer.
// Stealthed sessions are visible only to admins and to themselves.
func visibleTo(subject, observer *world.PlayerInfo) bool {
	if subject.ConnID == observer.ConnID {
		return true
	}
	return !subject.Stealth || observer.Admin
}
