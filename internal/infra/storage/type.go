package storage

import "time"

// BotConfig es la fila singleton (id = 1) con la config operativa.
// Lo que no está acá viene del entorno (ver infra/config).
type BotConfig struct {
	RollCommands    []string // ej. {"$wa","$ha"}
	DailyCommands   []string // ej. {"$daily","$dk"}
	CooldownSeconds int
	DailyTime       string // "HH:MM" local, vacío = daily deshabilitado
	FuzzyEnabled    bool
	FuzzyThreshold  float64
	AutoRoll        bool
	KakeraReact     bool
	GameBotID       string // user id del bot del juego
	ClaimTimeoutSec int
	ClaimMaxRetries int
	UpdatedAt       time.Time
}

type ChannelEntry struct {
	ChannelID string
	GuildID   string
	Label     string
	AddedAt   time.Time
}

// Credentials también es singleton (id = 1): token y metadata de la
// cuenta, para arrancar sin variables de entorno.
type Credentials struct {
	Token     string
	UserID    string
	Username  string
	UpdatedAt time.Time
}

type ClaimRecord struct {
	DropMessageID string
	ChannelID     string
	CharacterName string
	EntryName     string
	Status        string // terminal: succeeded | lost_to_other | failed | expired
	Retries       int
	CreatedAt     time.Time
	ResolvedAt    time.Time
}
