package handler

import (
	"strings"

	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/world"
	"go.uber.org/zap"
)

func (d *Deps) handleAddFriend(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil || p.Guest {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" || name == p.Name || p.IsFriend(name) {
		return
	}
	p.Friends = append(p.Friends, name)
	d.saveFriends(p)
	d.sendFriendList(p)
}

func (d *Deps) handleRemoveFriend(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil || p.Guest {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	for i, f := range p.Friends {
		if f == payload.Name {
			p.Friends = append(p.Friends[:i], p.Friends[i+1:]...)
			d.saveFriends(p)
			d.sendFriendList(p)
			return
		}
	}
}

// saveFriends writes the friends list through to the store immediately.
// Unlike position and stats it is low-churn, so it is not batched with the
// dirty-save loop.
func (d *Deps) saveFriends(p *world.PlayerInfo) {
	ctx, cancel := storeCtx()
	defer cancel()
	if err := d.Store.SaveFriends(ctx, p.Name, p.Friends); err != nil {
		d.Log.Error("好友名單存檔失敗", zap.String("player", p.Name), zap.Error(err))
	}
}

// handleInviteParty records a pending invitation on the target and notifies
// them. The party itself is only created when the first invitation is
// accepted.
func (d *Deps) handleInviteParty(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	target := d.World.GetByName(payload.Name)
	if target == nil || target.ConnID == p.ConnID {
		d.Notify(p, "player not found")
		return
	}
	if party := d.World.Parties.PartyOf(p.Name); party != nil {
		if party.Leader() != p.Name {
			d.Notify(p, "only the party leader can invite")
			return
		}
		if party.Has(target.Name) {
			return
		}
	}
	if d.World.Parties.PartyOf(target.Name) != nil {
		d.Notify(p, "that player is already in a party")
		return
	}

	var partyID int32
	if party := d.World.Parties.PartyOf(p.Name); party != nil {
		partyID = party.ID
	}
	inv := target.AddInvitation(p.Name, partyID)
	target.Conn.Send(packet.New(packet.SInvitation, inv))
	d.Notify(p, "invitation sent")
}

// handleInvitationResponse consumes a pending invitation. Accepting joins
// the inviter's party, creating it on first accept; declining just clears
// the invitation.
func (d *Deps) handleInvitationResponse(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	payload, err := packet.Payload[packet.InvitationResponsePayload](env)
	if err != nil {
		return
	}
	inv := p.TakeInvitation(payload.ID)
	if inv == nil {
		return
	}
	if !payload.Accept {
		if from := d.World.GetByName(inv.From); from != nil {
			d.Notify(from, p.Name+" declined your invitation")
		}
		return
	}

	inviter := d.World.GetByName(inv.From)
	if inviter == nil {
		d.Notify(p, "the inviter is no longer online")
		return
	}
	if d.World.Parties.PartyOf(p.Name) != nil {
		d.Notify(p, "you are already in a party")
		return
	}

	party := d.World.Parties.PartyOf(inviter.Name)
	if party == nil {
		party = d.World.Parties.Create(inviter.Name)
		inviter.PartyID = party.ID
	}
	d.World.Parties.AddMember(party.ID, p.Name)
	p.PartyID = party.ID
	d.sendPartyUpdate(party)
}

// handleKickPartyMember removes a member from the leader's party.
func (d *Deps) handleKickPartyMember(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	payload, err := packet.Payload[packet.NamePayload](env)
	if err != nil {
		return
	}
	party := d.World.Parties.PartyOf(p.Name)
	if party == nil || party.Leader() != p.Name {
		d.Notify(p, "only the party leader can kick")
		return
	}
	if payload.Name == p.Name || !party.Has(payload.Name) {
		return
	}
	d.removeFromParty(payload.Name)
	if kicked := d.World.GetByName(payload.Name); kicked != nil {
		d.Notify(kicked, "you were removed from the party")
	}
}

// handleLeaveParty removes the sender from their party.
func (d *Deps) handleLeaveParty(c any, env packet.Envelope) {
	p := d.player(c)
	if p == nil {
		return
	}
	if d.World.Parties.PartyOf(p.Name) == nil {
		return
	}
	d.removeFromParty(p.Name)
}

// removeFromParty drops a member, pushing the new roster to survivors and an
// empty roster to everyone who fell out of the party.
func (d *Deps) removeFromParty(name string) {
	before := d.World.Parties.PartyOf(name)
	if before == nil {
		return
	}
	members := append([]string(nil), before.Members...)

	survivor := d.World.Parties.RemoveMember(name)
	if survivor != nil {
		d.sendPartyUpdate(survivor)
	}
	empty := packet.New(packet.SUpdateParty, partyPayload{})
	for _, member := range members {
		if survivor != nil && survivor.Has(member) {
			continue
		}
		if p := d.World.GetByName(member); p != nil {
			p.PartyID = 0
			p.Conn.Send(empty)
		}
	}
}
