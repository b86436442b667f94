package config

import (
	"log"
	"os"
)

type Config struct {
	DatabaseURL  string
	DiscordToken string // opcional: si falta se usa la fila de credenciales
	WishlistFile string // opcional, default wishlist.json
	StatsFlushS  string // opcional, segundos entre flushes de stats
	ChannelIDs   string // opcional, CSV para sembrar la tabla channels
}

func Load() Config {
	get := func(k string, req bool) string {
		v := os.Getenv(k)
		if v == "" && req {
			log.Fatalf("faltante env %s", k)
		}
		return v
	}

	cfg := Config{
		DatabaseURL:  get("DATABASE_URL", true),
		DiscordToken: get("DISCORD_TOKEN", false),
		WishlistFile: get("WISHLIST_FILE", false),
		StatsFlushS:  get("STATS_FLUSH_SECONDS", false),
		ChannelIDs:   get("CHANNEL_IDS", false),
	}
	if cfg.WishlistFile == "" {
		cfg.WishlistFile = "wishlist.json"
	}
	return cfg
}
