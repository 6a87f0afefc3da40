package net

import (
	"github.com/mirthwood/server/internal/net/packet"
)

// Registry tracks every open connection and the process-wide pub/sub
// topics. It is owned and injected explicitly — not a package global — and
// accessed only from the game loop goroutine, so no locking is needed.
type Registry struct {
	conns  map[string]*Conn
	topics map[string]map[string]*Conn
}

func NewRegistry() *Registry {
	r := &Registry{
		conns:  make(map[string]*Conn),
		topics: make(map[string]map[string]*Conn),
	}
	r.topics[packet.TopicConnectionCount] = make(map[string]*Conn)
	r.topics[packet.TopicBroadcast] = make(map[string]*Conn)
	return r
}

// Add registers a connection and joins it to the process-wide topics.
func (r *Registry) Add(c *Conn) {
	r.conns[c.ID] = c
	for _, members := range r.topics {
		members[c.ID] = c
	}
}

// Remove deregisters a connection and leaves all topics.
func (r *Registry) Remove(connID string) *Conn {
	c, ok := r.conns[connID]
	if !ok {
		return nil
	}
	delete(r.conns, connID)
	for _, members := range r.topics {
		delete(members, connID)
	}
	return c
}

// Get returns a connection by identity, or nil.
func (r *Registry) Get(connID string) *Conn {
	return r.conns[connID]
}

// Count returns the number of open connections.
func (r *Registry) Count() int {
	return len(r.conns)
}

// All iterates every open connection.
func (r *Registry) All(fn func(*Conn)) {
	for _, c := range r.conns {
		fn(c)
	}
}

// Publish fans an envelope out to every subscriber of a topic.
func (r *Registry) Publish(topic string, env packet.Envelope) {
	for _, c := range r.topics[topic] {
		c.Send(env)
	}
}
