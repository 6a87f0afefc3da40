package world

// Party is a named group of players. The leader is always Members[0].
type Party struct {
	ID      int32
	Members []string // player names, leader first
}

// Leader returns the party leader's name.
func (p *Party) Leader() string {
	if len(p.Members) == 0 {
		return ""
	}
	return p.Members[0]
}

// Has reports whether name is a member.
func (p *Party) Has(name string) bool {
	for _, m := range p.Members {
		if m == name {
			return true
		}
	}
	return false
}

// PartyManager tracks all parties. Game loop access only.
type PartyManager struct {
	parties map[int32]*Party
	byName  map[string]int32
	nextID  int32
}

func NewPartyManager() *PartyManager {
	return &PartyManager{
		parties: make(map[int32]*Party),
		byName:  make(map[string]int32),
	}
}

// Create starts a new party with the given leader.
func (m *PartyManager) Create(leader string) *Party {
	m.nextID++
	p := &Party{ID: m.nextID, Members: []string{leader}}
	m.parties[p.ID] = p
	m.byName[leader] = p.ID
	return p
}

// Get returns a party by ID, or nil.
func (m *PartyManager) Get(id int32) *Party {
	return m.parties[id]
}

// PartyOf returns the party the named player belongs to, or nil.
func (m *PartyManager) PartyOf(name string) *Party {
	id, ok := m.byName[name]
	if !ok {
		return nil
	}
	return m.parties[id]
}

// AddMember joins a player to a party.
func (m *PartyManager) AddMember(id int32, name string) *Party {
	p := m.parties[id]
	if p == nil || p.Has(name) {
		return p
	}
	p.Members = append(p.Members, name)
	m.byName[name] = id
	return p
}

// RemoveMember drops a player from their party. A party left with fewer
// than two members is disbanded; if the leader leaves, leadership passes to
// the next member. Returns the surviving party, or nil if disbanded.
func (m *PartyManager) RemoveMember(name string) *Party {
	id, ok := m.byName[name]
	if !ok {
		return nil
	}
	p := m.parties[id]
	delete(m.byName, name)
	for i, member := range p.Members {
		if member == name {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			break
		}
	}
	if len(p.Members) < 2 {
		for _, member := range p.Members {
			delete(m.byName, member)
		}
		delete(m.parties, id)
		return nil
	}
	return p
}

// Disband removes a party entirely.
func (m *PartyManager) Disband(id int32) {
	p := m.parties[id]
	if p == nil {
		return
	}
	for _, member := range p.Members {
		delete(m.byName, member)
	}
	delete(m.parties, id)
}
