package world

// State tracks all players currently in-world: the single shared mutable
// resource. Mutation happens only inside the game loop (one dispatcher
// invocation per inbound packet at a time); reads of other sessions for
// map-scoped broadcast interleave freely because no mutation crosses a
// suspension point.
type State struct {
	byConn map[string]*PlayerInfo
	byName map[string]*PlayerInfo
	byMap  map[string]map[string]*PlayerInfo

	Parties *PartyManager
}

func NewState() *State {
	return &State{
		byConn:  make(map[string]*PlayerInfo),
		byName:  make(map[string]*PlayerInfo),
		byMap:   make(map[string]map[string]*PlayerInfo),
		Parties: NewPartyManager(),
	}
}

// AddPlayer registers a player in the world.
func (s *State) AddPlayer(p *PlayerInfo) {
	s.byConn[p.ConnID] = p
	s.byName[p.Name] = p
	s.mapSet(p.MapName)[p.ConnID] = p
}

// RemovePlayer removes a player from the world and returns it, or nil.
func (s *State) RemovePlayer(connID string) *PlayerInfo {
	p, ok := s.byConn[connID]
	if !ok {
		return nil
	}
	delete(s.byConn, connID)
	delete(s.byName, p.Name)
	delete(s.byMap[p.MapName], connID)
	return p
}

// GetByConn returns a player by connection identity.
func (s *State) GetByConn(connID string) *PlayerInfo {
	return s.byConn[connID]
}

// GetByName returns a player by name.
func (s *State) GetByName(name string) *PlayerInfo {
	return s.byName[name]
}

// MoveToMap reindexes a player under a new map and updates its position.
func (s *State) MoveToMap(p *PlayerInfo, mapName string, x, y float64) {
	delete(s.byMap[p.MapName], p.ConnID)
	p.MapName = mapName
	p.X = x
	p.Y = y
	s.mapSet(mapName)[p.ConnID] = p
}

// PlayersOnMap iterates every player on the named map.
func (s *State) PlayersOnMap(mapName string, fn func(*PlayerInfo)) {
	for _, p := range s.byMap[mapName] {
		fn(p)
	}
}

// AllPlayers iterates all in-world players.
func (s *State) AllPlayers(fn func(*PlayerInfo)) {
	for _, p := range s.byConn {
		fn(p)
	}
}

// PlayerCount returns the number of players in-world.
func (s *State) PlayerCount() int {
	return len(s.byConn)
}

func (s *State) mapSet(mapName string) map[string]*PlayerInfo {
	set := s.byMap[mapName]
	if set == nil {
		set = make(map[string]*PlayerInfo)
		s.byMap[mapName] = set
	}
	return set
}
