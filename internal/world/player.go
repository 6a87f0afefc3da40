package world

import (
	"time"

	"github.com/mirthwood/server/internal/net"
)

// Player bounding box in pixels, used for tile-unit collision queries.
const (
	PlayerWidth  = 16.0
	PlayerHeight = 16.0
)

// Stats is the mutable stat block broadcast via UPDATESTATS.
type Stats struct {
	Health     int `json:"health"`
	MaxHealth  int `json:"max_health"`
	Stamina    int `json:"stamina"`
	MaxStamina int `json:"max_stamina"`
	Level      int `json:"level"`
	XP         int `json:"xp"`
	MaxXP      int `json:"max_xp"`
}

// Invitation is a pending party invitation.
type Invitation struct {
	ID      int32  `json:"id"`
	From    string `json:"from"`
	PartyID int32  `json:"party_id"`
}

// PlayerInfo holds the authoritative in-memory record of one connected
// player, keyed by connection identity. Exactly one session exists per live
// connection, and it lives only while that connection is open. Accessed only
// from the game loop goroutine — no locks needed.
type PlayerInfo struct {
	ConnID    string
	Conn      *net.Conn
	AccountID int64
	Name      string

	MapName string
	X       float64
	Y       float64
	Facing  int // heading 0-7, 0=N clockwise

	Stats Stats

	Admin       bool
	Guest       bool
	Stealth     bool
	Noclip      bool
	Permissions []string

	Friends     []string
	PartyID     int32 // 0 = not in a party
	Invitations []Invitation

	PvP            bool
	LastAttackedAt time.Time
	AttackReadyAt  time.Time // attacks blocked until this instant

	Language string

	// Moving is true while a movement interval is armed for this session.
	// Owned by the movement system; at most one mover exists per session.
	Moving bool

	// Dirty marks persisted state (position, stats) as changed since the
	// last save. The save loop only writes dirty non-guest sessions.
	Dirty bool

	nextInviteID int32
}

// HasPermission reports whether the player carries the named permission.
// Admins implicitly hold every permission.
func (p *PlayerInfo) HasPermission(perm string) bool {
	if p.Admin {
		return true
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// IsFriend reports whether name is on the player's friends list.
func (p *PlayerInfo) IsFriend(name string) bool {
	for _, f := range p.Friends {
		if f == name {
			return true
		}
	}
	return false
}

// AddInvitation records a pending invitation and returns it. Duplicate
// invitations from the same sender are replaced.
func (p *PlayerInfo) AddInvitation(from string, partyID int32) Invitation {
	p.RemoveInvitationFrom(from)
	p.nextInviteID++
	inv := Invitation{ID: p.nextInviteID, From: from, PartyID: partyID}
	p.Invitations = append(p.Invitations, inv)
	return inv
}

// TakeInvitation removes and returns the pending invitation with the given
// id, or nil.
func (p *PlayerInfo) TakeInvitation(id int32) *Invitation {
	for i, inv := range p.Invitations {
		if inv.ID == id {
			p.Invitations = append(p.Invitations[:i], p.Invitations[i+1:]...)
			return &inv
		}
	}
	return nil
}

// RemoveInvitationFrom drops any pending invitation sent by from.
func (p *PlayerInfo) RemoveInvitationFrom(from string) {
	for i, inv := range p.Invitations {
		if inv.From == from {
			p.Invitations = append(p.Invitations[:i], p.Invitations[i+1:]...)
			return
		}
	}
}

// Dead reports whether the player is out of health.
func (p *PlayerInfo) Dead() bool {
	return p.Stats.Health <= 0
}
