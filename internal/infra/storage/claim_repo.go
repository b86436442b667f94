package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

type ClaimRepo struct{ db *sql.DB }

func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{db: db} }

// InsertClaim guarda un intento ya resuelto (el coordinator sólo
// persiste terminales). El janitor poda los viejos.
func (r *ClaimRepo) InsertClaim(ctx context.Context, a domain.ClaimAttempt) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO claim_attempts
  (drop_message_id, channel_id, character_name, entry_name, status, retries, created_at, resolved_at)
VALUES
  ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (drop_message_id) DO UPDATE SET
  status      = EXCLUDED.status,
  retries     = EXCLUDED.retries,
  resolved_at = EXCLUDED.resolved_at
`, a.DropMessageID, a.ChannelID, a.CharacterName, a.EntryName,
		a.Status.String(), a.Retries, a.CreatedAt, a.ResolvedAt)
	return err
}

// Recent lista los últimos intentos resueltos (para el comando de stats).
func (r *ClaimRepo) Recent(ctx context.Context, limit int) ([]ClaimRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT drop_message_id, channel_id, character_name, entry_name, status, retries, created_at, resolved_at
  FROM claim_attempts
 ORDER BY resolved_at DESC
 LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClaimRecord
	for rows.Next() {
		var rec ClaimRecord
		if err := rows.Scan(&rec.DropMessageID, &rec.ChannelID, &rec.CharacterName, &rec.EntryName,
			&rec.Status, &rec.Retries, &rec.CreatedAt, &rec.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
