package main

import (
	"context"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jose-valero/mudae-claim-bot/internal/adapters/discord"
	"github.com/jose-valero/mudae-claim-bot/internal/app/claim"
	"github.com/jose-valero/mudae-claim-bot/internal/app/parser"
	"github.com/jose-valero/mudae-claim-bot/internal/app/scheduler"
	"github.com/jose-valero/mudae-claim-bot/internal/app/service"
	"github.com/jose-valero/mudae-claim-bot/internal/app/stats"
	"github.com/jose-valero/mudae-claim-bot/internal/app/wishlist"
	"github.com/jose-valero/mudae-claim-bot/internal/infra/config"
	"github.com/jose-valero/mudae-claim-bot/internal/infra/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := config.Load()

	// DB
	db, err := storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal("migrate:", err)
	}
	log.Println("✅ DB lista y migrada")

	// Repos
	configRepo := storage.NewConfigRepo(db)
	statsRepo := storage.NewStatsRepo(db)
	channelRepo := storage.NewChannelRepo(db)
	credsRepo := storage.NewCredsRepo(db)
	claimRepo := storage.NewClaimRepo(db)

	boot, cancelBoot := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelBoot()

	bc, err := configRepo.Load(boot)
	if err != nil {
		log.Fatalf("config de DB: %v", err)
	}

	// Token: env primero, fila de credenciales como fallback. El de env se
	// persiste para que el próximo arranque no lo necesite.
	token := cfg.DiscordToken
	if token == "" {
		creds, err := credsRepo.Get(boot)
		if err != nil {
			log.Fatal("sin token: seteá DISCORD_TOKEN o la fila de credenciales")
		}
		token = creds.Token
	} else if err := credsRepo.Save(boot, token); err != nil {
		log.Printf("⚠️ no pude persistir el token: %v", err)
	}

	client, err := discord.New(token, bc.GameBotID)
	if err != nil {
		log.Fatal(err)
	}

	// Wishlist
	wl := wishlist.NewMatcher(bc.FuzzyThreshold, bc.FuzzyEnabled)
	if loaded, skipped, err := wl.LoadFile(cfg.WishlistFile); err != nil {
		log.Printf("⚠️ wishlist %s no cargada (%v); arranco sin entries", cfg.WishlistFile, err)
	} else {
		log.Printf("✅ wishlist: %d entries cargadas, %d salteadas", loaded, skipped)
	}

	// Stats
	initial, err := statsRepo.Load(boot)
	if err != nil {
		log.Fatalf("stats de DB: %v", err)
	}
	flush := 60 * time.Second
	if cfg.StatsFlushS != "" {
		if n, err := strconv.Atoi(cfg.StatsFlushS); err == nil && n > 0 {
			flush = time.Duration(n) * time.Second
		}
	}
	agg := stats.New(statsRepo, initial, flush)

	// Claim coordinator
	coord := claim.New(client, agg, claimRepo, claim.Config{
		Timeout:    time.Duration(bc.ClaimTimeoutSec) * time.Second,
		MaxRetries: uint64(bc.ClaimMaxRetries),
		Backoff:    2 * time.Second,
		Jitter:     500 * time.Millisecond,
	})

	// Daily (deshabilitado con daily_time vacío)
	var daily *scheduler.Daily
	if bc.DailyTime != "" {
		var lastFired time.Time
		if initial.LastDailyAt > 0 {
			lastFired = time.Unix(initial.LastDailyAt, 0)
		}
		daily, err = scheduler.NewDaily(bc.DailyTime, lastFired)
		if err != nil {
			log.Fatal(err)
		}
	}

	// El engine existe antes de abrir el gateway: el handler de discordgo
	// despacha directo, sin variables compartidas a medio inicializar.
	// Los mensajes que lleguen antes de Run se descartan (sin workers).
	par := parser.New("")
	eng := service.NewEngine(client, par, wl, coord, agg, daily, channelRepo, service.Options{
		AutoRoll:      bc.AutoRoll,
		RollCommands:  bc.RollCommands,
		Cooldown:      time.Duration(bc.CooldownSeconds) * time.Second,
		DailyCommands: bc.DailyCommands,
		KakeraReact:   bc.KakeraReact,
	})

	if err := client.Open(eng.Dispatch); err != nil {
		log.Fatal(err)
	}
	defer client.Close()
	// el engine todavía no corre, así que setear el username acá es seguro
	par.SetSelfName(client.SelfName())
	if err := credsRepo.SaveUserInfo(boot, client.SelfID(), client.SelfName()); err != nil {
		log.Printf("⚠️ no pude guardar user info: %v", err)
	}

	// siembra opcional de canales por env (útil en el primer deploy)
	for _, id := range strings.Split(cfg.ChannelIDs, ",") {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if err := channelRepo.Upsert(boot, storage.ChannelEntry{ChannelID: id}); err != nil {
			log.Printf("⚠️ no pude registrar canal %s: %v", id, err)
		}
	}

	chs, err := channelRepo.List(boot)
	if err != nil {
		log.Fatalf("canales de DB: %v", err)
	}
	if len(chs) == 0 {
		log.Println("⚠️ sin canales registrados; agregá filas en channels")
	}
	ids := make([]string, 0, len(chs))
	for _, ch := range chs {
		ids = append(ids, ch.ChannelID)
	}

	// recap de la corrida anterior
	if recent, err := claimRepo.Recent(boot, 5); err == nil && len(recent) > 0 {
		for _, r := range recent {
			log.Printf("claim previo: %s %s (%s)", r.Status, r.CharacterName, r.ResolvedAt.Format("2006-01-02 15:04"))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(ctx, ids); err != nil && ctx.Err() == nil {
		log.Fatalf("engine: %v", err)
	}
	log.Println("✅ apagado limpio")
}
