package world

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when no row matches.
var ErrNotFound = errors.New("not found")

// PlayerRecord mirrors the durable player row. It is the shape exchanged
// with the store; live session state lives in PlayerInfo.
type PlayerRecord struct {
	AccountID   int64
	Name        string
	TokenHash   string // bcrypt hash of the login token
	MapName     string
	X, Y        float64
	Facing      int
	Stats       Stats
	Admin       bool
	Permissions []string
	Friends     []string
	Language    string
}

// Item is one inventory slot.
type Item struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// QuestEntry is one quest log row.
type QuestEntry struct {
	ID    int32  `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// PlayerStore is the durable side of player state. Implementations block;
// callers on the game loop must confine calls to login and batched saves.
type PlayerStore interface {
	Load(ctx context.Context, name string) (*PlayerRecord, error)
	SaveState(ctx context.Context, rec *PlayerRecord) error
	SaveFriends(ctx context.Context, name string, friends []string) error
	Inventory(ctx context.Context, accountID int64) ([]Item, error)
	QuestLog(ctx context.Context, accountID int64) ([]QuestEntry, error)
}

// RecordOf snapshots a live session into its durable shape.
func RecordOf(p *PlayerInfo) *PlayerRecord {
	return &PlayerRecord{
		AccountID:   p.AccountID,
		Name:        p.Name,
		MapName:     p.MapName,
		X:           p.X,
		Y:           p.Y,
		Facing:      p.Facing,
		Stats:       p.Stats,
		Admin:       p.Admin,
		Permissions: p.Permissions,
		Friends:     p.Friends,
		Language:    p.Language,
	}
}
