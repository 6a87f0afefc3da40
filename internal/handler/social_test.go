package handler_test

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/mirthwood/server/internal/net/packet"
	"github.com/mirthwood/server/internal/world"
)

func TestPartyInviteAcceptFlow(t *testing.T) {
	e := newEnv(t)
	alice, scA := e.addPlayer("alice", "arena", 0, 0)
	bob, scB := e.addPlayer("bob", "arena", 20, 0)

	e.reg.Dispatch(scA, true, packet.Envelope{
		Type: packet.CInviteParty,
		Data: []byte(`{"name":"bob"}`),
	})
	if len(bob.Invitations) != 1 {
		t.Fatalf("invitations = %v, want one", bob.Invitations)
	}

	inv := bob.Invitations[0]
	e.reg.Dispatch(scB, true, packet.Envelope{
		Type: packet.CInvitationResponse,
		Data: []byte(fmt.Sprintf(`{"id":%d,"accept":true}`, inv.ID)),
	})

	party := e.deps.World.Parties.PartyOf("alice")
	if party == nil || !party.Has("bob") {
		t.Fatalf("party = %+v, want alice and bob together", party)
	}
	if party.Leader() != "alice" {
		t.Errorf("leader = %q, want alice", party.Leader())
	}
	if alice.PartyID != party.ID || bob.PartyID != party.ID {
		t.Error("both sessions should carry the party id")
	}
}

func TestPartyDeclineLeavesNoParty(t *testing.T) {
	e := newEnv(t)
	_, scA := e.addPlayer("alice", "arena", 0, 0)
	bob, scB := e.addPlayer("bob", "arena", 20, 0)

	e.reg.Dispatch(scA, true, packet.Envelope{
		Type: packet.CInviteParty,
		Data: []byte(`{"name":"bob"}`),
	})
	inv := bob.Invitations[0]
	e.reg.Dispatch(scB, true, packet.Envelope{
		Type: packet.CInvitationResponse,
		Data: []byte(fmt.Sprintf(`{"id":%d,"accept":false}`, inv.ID)),
	})

	if e.deps.World.Parties.PartyOf("alice") != nil {
		t.Error("declined invitation must not create a party")
	}
	if len(bob.Invitations) != 0 {
		t.Error("invitation should be consumed either way")
	}
}

func TestLeavePartyDisbandsBelowTwo(t *testing.T) {
	e := newEnv(t)
	_, scA := e.addPlayer("alice", "arena", 0, 0)
	bob, scB := e.addPlayer("bob", "arena", 20, 0)

	e.reg.Dispatch(scA, true, packet.Envelope{
		Type: packet.CInviteParty,
		Data: []byte(`{"name":"bob"}`),
	})
	inv := bob.Invitations[0]
	e.reg.Dispatch(scB, true, packet.Envelope{
		Type: packet.CInvitationResponse,
		Data: []byte(fmt.Sprintf(`{"id":%d,"accept":true}`, inv.ID)),
	})

	e.reg.Dispatch(scB, true, packet.Envelope{
		Type: packet.CLeaveParty,
		Data: []byte(`{}`),
	})
	if e.deps.World.Parties.PartyOf("alice") != nil {
		t.Error("a two-member party disbands when one leaves")
	}
	if bob.PartyID != 0 {
		t.Error("leaver's party id should clear")
	}
}

func TestDisconnectRefreshesFriendPresence(t *testing.T) {
	e := newEnv(t)
	sc, client := e.connect()
	sc.Authed = true
	alice := &world.PlayerInfo{
		ConnID:  sc.ID,
		Conn:    sc,
		Name:    "alice",
		MapName: "arena",
		Friends: []string{"bob"},
		Stats: world.Stats{
			Health: 100, MaxHealth: 100,
			Stamina: 100, MaxStamina: 100,
			Level: 1, MaxXP: 100,
		},
	}
	e.deps.World.AddPlayer(alice)
	bob, _ := e.addPlayer("bob", "arena", 20, 0)

	e.deps.DropSession(bob.ConnID, false)
	e.deps.Bus.SwapBuffers()
	e.deps.Bus.DispatchAll()

	envs := readEnvelopes(t, client, 500*time.Millisecond)
	var friends []struct {
		Name   string `json:"name"`
		Online bool   `json:"online"`
	}
	seen := false
	for _, env := range envs {
		if env.Type != packet.SUpdateFriends {
			continue
		}
		seen = true
		if err := json.Unmarshal(env.Data, &friends); err != nil {
			t.Fatalf("decode UPDATE_FRIENDS: %v", err)
		}
	}
	if !seen {
		t.Fatal("alice should receive a friends refresh on bob's disconnect")
	}
	if len(friends) != 1 || friends[0].Name != "bob" || friends[0].Online {
		t.Errorf("friends = %+v, want bob offline", friends)
	}
}

func TestFriendsAddRemove(t *testing.T) {
	e := newEnv(t)
	alice, sc := e.addPlayer("alice", "arena", 0, 0)

	e.reg.Dispatch(sc, true, packet.Envelope{
		Type: packet.CAddFriend,
		Data: []byte(`{"name":"bob"}`),
	})
	if !alice.IsFriend("bob") {
		t.Fatal("bob should be a friend")
	}

	// Duplicates and self-adds are ignored.
	e.reg.Dispatch(sc, true, packet.Envelope{
		Type: packet.CAddFriend,
		Data: []byte(`{"name":"bob"}`),
	})
	e.reg.Dispatch(sc, true, packet.Envelope{
		Type: packet.CAddFriend,
		Data: []byte(`{"name":"alice"}`),
	})
	if len(alice.Friends) != 1 {
		t.Errorf("friends = %v, want just bob", alice.Friends)
	}

	e.reg.Dispatch(sc, true, packet.Envelope{
		Type: packet.CRemoveFriend,
		Data: []byte(`{"name":"bob"}`),
	})
	if alice.IsFriend("bob") {
		t.Error("bob should be removed")
	}
}
