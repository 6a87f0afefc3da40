package persist

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/mirthwood/server/internal/world"
)

// PlayerRepo implements world.PlayerStore on top of postgres.
type PlayerRepo struct {
	db *DB
}

func NewPlayerRepo(db *DB) *PlayerRepo {
	return &PlayerRepo{db: db}
}

// Load fetches a player row by name, including the login token hash.
func (r *PlayerRepo) Load(ctx context.Context, name string) (*world.PlayerRecord, error) {
	var rec world.PlayerRecord
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, token_hash, map, x, y, facing,
		        health, max_health, stamina, max_stamina,
		        level, xp, max_xp,
		        admin, permissions, friends, language
		 FROM players
		 WHERE lower(name) = lower($1)`, name,
	).Scan(
		&rec.AccountID, &rec.Name, &rec.TokenHash, &rec.MapName,
		&rec.X, &rec.Y, &rec.Facing,
		&rec.Stats.Health, &rec.Stats.MaxHealth,
		&rec.Stats.Stamina, &rec.Stats.MaxStamina,
		&rec.Stats.Level, &rec.Stats.XP, &rec.Stats.MaxXP,
		&rec.Admin, &rec.Permissions, &rec.Friends, &rec.Language,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, world.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveState writes back position and stats for one player.
func (r *PlayerRepo) SaveState(ctx context.Context, rec *world.PlayerRecord) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players
		 SET map = $2, x = $3, y = $4, facing = $5,
		     health = $6, max_health = $7,
		     stamina = $8, max_stamina = $9,
		     level = $10, xp = $11, max_xp = $12,
		     language = $13, updated_at = now()
		 WHERE id = $1`,
		rec.AccountID, rec.MapName, rec.X, rec.Y, rec.Facing,
		rec.Stats.Health, rec.Stats.MaxHealth,
		rec.Stats.Stamina, rec.Stats.MaxStamina,
		rec.Stats.Level, rec.Stats.XP, rec.Stats.MaxXP,
		rec.Language,
	)
	return err
}

// SaveFriends replaces a player's friend list.
func (r *PlayerRepo) SaveFriends(ctx context.Context, name string, friends []string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE players SET friends = $2, updated_at = now()
		 WHERE lower(name) = lower($1)`,
		name, friends,
	)
	return err
}

// Inventory loads all inventory slots for an account.
func (r *PlayerRepo) Inventory(ctx context.Context, accountID int64) ([]world.Item, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT slot, name, quantity FROM items
		 WHERE player_id = $1 ORDER BY slot`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []world.Item
	for rows.Next() {
		var it world.Item
		if err := rows.Scan(&it.Slot, &it.Name, &it.Quantity); err != nil {
			return nil, err
		}
		result = append(result, it)
	}
	return result, rows.Err()
}

// QuestLog loads all quest entries for an account.
func (r *PlayerRepo) QuestLog(ctx context.Context, accountID int64) ([]world.QuestEntry, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT quest_id, name, state FROM quests
		 WHERE player_id = $1 ORDER BY quest_id`, accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []world.QuestEntry
	for rows.Next() {
		var q world.QuestEntry
		if err := rows.Scan(&q.ID, &q.Name, &q.State); err != nil {
			return nil, err
		}
		result = append(result, q)
	}
	return result, rows.Err()
}
