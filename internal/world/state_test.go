package world

import "testing"

func testPlayer(connID, name, mapName string) *PlayerInfo {
	return &PlayerInfo{ConnID: connID, Name: name, MapName: mapName}
}

func TestStateIndexes(t *testing.T) {
	s := NewState()
	p := testPlayer("c1", "alice", "overworld")
	s.AddPlayer(p)

	if s.GetByConn("c1") != p {
		t.Error("GetByConn failed")
	}
	if s.GetByName("alice") != p {
		t.Error("GetByName failed")
	}
	if s.PlayerCount() != 1 {
		t.Errorf("count = %d", s.PlayerCount())
	}

	seen := 0
	s.PlayersOnMap("overworld", func(*PlayerInfo) { seen++ })
	if seen != 1 {
		t.Errorf("players on map = %d", seen)
	}

	removed := s.RemovePlayer("c1")
	if removed != p {
		t.Error("RemovePlayer should return the session")
	}
	if s.GetByConn("c1") != nil || s.GetByName("alice") != nil {
		t.Error("indexes should be empty after removal")
	}
	if s.RemovePlayer("c1") != nil {
		t.Error("double removal should return nil")
	}
}

func TestMoveToMapReindexes(t *testing.T) {
	s := NewState()
	p := testPlayer("c1", "alice", "overworld")
	s.AddPlayer(p)

	s.MoveToMap(p, "cavern", 10, 20)
	if p.MapName != "cavern" || p.X != 10 || p.Y != 20 {
		t.Errorf("session = %+v", p)
	}
	onOld := 0
	s.PlayersOnMap("overworld", func(*PlayerInfo) { onOld++ })
	if onOld != 0 {
		t.Error("session still indexed on old map")
	}
	onNew := 0
	s.PlayersOnMap("cavern", func(*PlayerInfo) { onNew++ })
	if onNew != 1 {
		t.Error("session not indexed on new map")
	}
}

func TestPartyLifecycle(t *testing.T) {
	m := NewPartyManager()
	party := m.Create("alice")
	if party.Leader() != "alice" {
		t.Errorf("leader = %q", party.Leader())
	}
	m.AddMember(party.ID, "bob")
	m.AddMember(party.ID, "carol")
	if len(party.Members) != 3 {
		t.Fatalf("members = %v", party.Members)
	}

	// The leader leaving passes leadership to the next member.
	survivor := m.RemoveMember("alice")
	if survivor == nil || survivor.Leader() != "bob" {
		t.Fatalf("survivor = %+v", survivor)
	}
	if m.PartyOf("alice") != nil {
		t.Error("alice should be out of the party")
	}

	// Dropping below two members disbands the party entirely.
	if got := m.RemoveMember("carol"); got != nil {
		t.Errorf("expected disband, got %+v", got)
	}
	if m.PartyOf("bob") != nil {
		t.Error("bob should be partyless after disband")
	}
}

func TestInvitations(t *testing.T) {
	p := testPlayer("c1", "bob", "overworld")
	first := p.AddInvitation("alice", 0)
	second := p.AddInvitation("carol", 7)
	if len(p.Invitations) != 2 {
		t.Fatalf("invitations = %v", p.Invitations)
	}

	// A repeat invitation from the same sender replaces the old one.
	replaced := p.AddInvitation("alice", 3)
	if len(p.Invitations) != 2 {
		t.Fatalf("after replace: %v", p.Invitations)
	}
	if replaced.ID == first.ID {
		t.Error("replacement should get a fresh id")
	}

	inv := p.TakeInvitation(second.ID)
	if inv == nil || inv.From != "carol" || inv.PartyID != 7 {
		t.Errorf("taken = %+v", inv)
	}
	if p.TakeInvitation(second.ID) != nil {
		t.Error("invitation should be consumed")
	}
}
