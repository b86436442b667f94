package storage

import (
	"context"
	"database/sql"
)

type ChannelRepo struct{ db *sql.DB }

func NewChannelRepo(db *sql.DB) *ChannelRepo { return &ChannelRepo{db: db} }

// List devuelve los canales bajo automatización en orden de alta;
// el primero es el que recibe los comandos diarios.
func (r *ChannelRepo) List(ctx context.Context) ([]ChannelEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT channel_id, guild_id, label, added_at
  FROM channels
 ORDER BY added_at
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChannelEntry
	for rows.Next() {
		var ch ChannelEntry
		if err := rows.Scan(&ch.ChannelID, &ch.GuildID, &ch.Label, &ch.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *ChannelRepo) Upsert(ctx context.Context, ch ChannelEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO channels (channel_id, guild_id, label)
VALUES ($1, $2, $3)
ON CONFLICT (channel_id) DO UPDATE SET
  guild_id = EXCLUDED.guild_id,
  label    = EXCLUDED.label
`, ch.ChannelID, ch.GuildID, ch.Label)
	return err
}

func (r *ChannelRepo) Remove(ctx context.Context, channelID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM channels WHERE channel_id = $1
`, channelID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
