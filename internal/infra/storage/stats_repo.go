package storage

import (
	"context"
	"database/sql"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

type StatsRepo struct{ db *sql.DB }

func NewStatsRepo(db *sql.DB) *StatsRepo { return &StatsRepo{db: db} }

// Load lee la fila singleton de contadores (sembrada por la migración).
func (r *StatsRepo) Load(ctx context.Context) (domain.StatsCounters, error) {
	var c domain.StatsCounters
	err := r.db.QueryRowContext(ctx, `
SELECT rolled, rolls_executed, matched, claimed, kakera, uptime_seconds, last_daily_at
  FROM bot_stats
 WHERE id = 1
`).Scan(&c.Rolled, &c.RollsExecuted, &c.Matched, &c.Claimed, &c.Kakera, &c.UptimeSeconds, &c.LastDailyAt)
	if err == sql.ErrNoRows {
		return domain.StatsCounters{}, ErrNotFound
	}
	return c, err
}

// SaveStats es el write del flush del aggregator: pisa la fila entera,
// los contadores ya vienen acumulados en memoria.
func (r *StatsRepo) SaveStats(ctx context.Context, c domain.StatsCounters) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE bot_stats SET
  rolled         = $1,
  rolls_executed = $2,
  matched        = $3,
  claimed        = $4,
  kakera         = $5,
  uptime_seconds = $6,
  last_daily_at  = $7,
  updated_at     = NOW()
WHERE id = 1
`, c.Rolled, c.RollsExecuted, c.Matched, c.Claimed, c.Kakera, c.UptimeSeconds, c.LastDailyAt)
	return err
}
