package storage

import (
	"context"
	"database/sql"
	"strings"
)

type ConfigRepo struct{ db *sql.DB }

func NewConfigRepo(db *sql.DB) *ConfigRepo { return &ConfigRepo{db: db} }

// Load lee la fila singleton. La migración la siembra, así que
// ErrNotFound acá significa una DB rota y el caller corta el arranque.
func (r *ConfigRepo) Load(ctx context.Context) (BotConfig, error) {
	var (
		c      BotConfig
		rolls  string
		dailys string
	)
	err := r.db.QueryRowContext(ctx, `
SELECT roll_commands, daily_commands, cooldown_seconds, daily_time,
       fuzzy_enabled, fuzzy_threshold, auto_roll, kakera_react, game_bot_id,
       claim_timeout_seconds, claim_max_retries, updated_at
  FROM bot_config
 WHERE id = 1
`).Scan(
		&rolls, &dailys, &c.CooldownSeconds, &c.DailyTime,
		&c.FuzzyEnabled, &c.FuzzyThreshold, &c.AutoRoll, &c.KakeraReact, &c.GameBotID,
		&c.ClaimTimeoutSec, &c.ClaimMaxRetries, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return BotConfig{}, ErrNotFound
	}
	if err != nil {
		return BotConfig{}, err
	}
	c.RollCommands = splitCSV(rolls)
	c.DailyCommands = splitCSV(dailys)
	return c, nil
}

func (r *ConfigRepo) Save(ctx context.Context, c BotConfig) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE bot_config SET
  roll_commands         = $1,
  daily_commands        = $2,
  cooldown_seconds      = $3,
  daily_time            = $4,
  fuzzy_enabled         = $5,
  fuzzy_threshold       = $6,
  auto_roll             = $7,
  kakera_react          = $8,
  game_bot_id           = $9,
  claim_timeout_seconds = $10,
  claim_max_retries     = $11,
  updated_at            = NOW()
WHERE id = 1
`, joinCSV(c.RollCommands), joinCSV(c.DailyCommands), c.CooldownSeconds, c.DailyTime,
		c.FuzzyEnabled, c.FuzzyThreshold, c.AutoRoll, c.KakeraReact, c.GameBotID,
		c.ClaimTimeoutSec, c.ClaimMaxRetries)
	return err
}

// los comandos van como CSV en una columna de texto; son dos o tres
// strings cortos, no vale la pena un tipo array
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinCSV(parts []string) string { return strings.Join(parts, ",") }
