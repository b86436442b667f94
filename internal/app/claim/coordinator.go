package claim

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/jose-valero/mudae-claim-bot/internal/app/stats"
	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

// Lo implementa internal/adapters/discord.Client
type ChatSender interface {
	SendClaimAction(ctx context.Context, channelID, messageID string, act domain.ClaimAction) error
}

// Lo implementa internal/app/stats.Aggregator
type Recorder interface {
	Record(d stats.Delta)
}

// Logbook guarda los intentos resueltos para auditoría (opcional).
// Lo implementa internal/infra/storage.ClaimRepo
type Logbook interface {
	InsertClaim(ctx context.Context, a domain.ClaimAttempt) error
}

type Config struct {
	Timeout    time.Duration // ventana para ver el outcome antes de Expired
	MaxRetries uint64        // reintentos ante fallos transitorios
	Backoff    time.Duration // base exponencial
	Jitter     time.Duration
	Retention  time.Duration // cuánto queda visible un intento terminal
}

type Request struct {
	Drop  domain.DropEvent
	Entry domain.WishlistEntry
	Score float64
}

type timerKind int

const (
	timerIssue timerKind = iota
	timerExpire
	timerPrune
)

type timerEvent struct {
	id   string
	kind timerKind
}

type attempt struct {
	domain.ClaimAttempt
	action   domain.ClaimAction
	backoff  retry.Backoff
	deadline time.Time
}

// Coordinator emite las acciones de claim y resuelve las carreras.
// Una sola goroutine (Run) es dueña del estado; el resto habla por colas.
type Coordinator struct {
	chat  ChatSender
	rec   Recorder
	book  Logbook // puede ser nil
	cfg   Config
	delay func() time.Duration // demora humanizante antes del primer intento

	requests chan Request
	outcomes chan domain.ClaimOutcome
	timers   chan timerEvent

	mu       sync.Mutex
	attempts map[string]*attempt // por message id del drop
}

func New(chat ChatSender, rec Recorder, book Logbook, cfg Config) *Coordinator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Minute
	}
	return &Coordinator{
		chat: chat,
		rec:  rec,
		book: book,
		cfg:  cfg,
		delay: func() time.Duration {
			return 100*time.Millisecond + rand.N(500*time.Millisecond)
		},
		requests: make(chan Request, 64),
		outcomes: make(chan domain.ClaimOutcome, 64),
		timers:   make(chan timerEvent, 64),
		attempts: make(map[string]*attempt),
	}
}

// Submit encola un match para reclamar. Un segundo match sobre el mismo
// drop se rechaza adentro, sin efectos.
func (c *Coordinator) Submit(req Request) {
	c.requests <- req
}

// Outcome entrega una resolución parseada (correlada por message id).
func (c *Coordinator) Outcome(out domain.ClaimOutcome) {
	c.outcomes <- out
}

// Attempt expone el estado de un intento (monitoreo y tests).
func (c *Coordinator) Attempt(dropMessageID string) (domain.ClaimAttempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.attempts[dropMessageID]
	if !ok {
		return domain.ClaimAttempt{}, false
	}
	return a.ClaimAttempt, true
}

func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case req := <-c.requests:
			c.handleRequest(req)
		case out := <-c.outcomes:
			c.handleOutcome(ctx, out)
		case ev := <-c.timers:
			c.handleTimer(ctx, ev)
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Coordinator) handleRequest(req Request) {
	c.mu.Lock()
	if _, exists := c.attempts[req.Drop.MessageID]; exists {
		c.mu.Unlock()
		log.Printf("claim: ya hay intento para msg=%s, match descartado", req.Drop.MessageID)
		return
	}

	b := retry.NewExponential(c.cfg.Backoff)
	if c.cfg.Jitter > 0 {
		b = retry.WithJitter(c.cfg.Jitter, b)
	}
	act := domain.ClaimAction{CustomID: req.Drop.ClaimButtonID, Emoji: "💖"}
	c.attempts[req.Drop.MessageID] = &attempt{
		ClaimAttempt: domain.ClaimAttempt{
			DropMessageID: req.Drop.MessageID,
			ChannelID:     req.Drop.ChannelID,
			CharacterName: req.Drop.RawName,
			EntryName:     req.Entry.RawName,
			Status:        domain.ClaimPending,
			CreatedAt:     time.Now(),
		},
		action:  act,
		backoff: retry.WithMaxRetries(c.cfg.MaxRetries, b),
	}
	c.mu.Unlock()

	log.Printf("💖 claim: %s (entry %q, score %.2f) msg=%s",
		req.Drop.RawName, req.Entry.RawName, req.Score, req.Drop.MessageID)
	c.schedule(req.Drop.MessageID, timerIssue, c.delay())
}

func (c *Coordinator) handleTimer(ctx context.Context, ev timerEvent) {
	c.mu.Lock()
	a, ok := c.attempts[ev.id]
	if ev.kind == timerPrune {
		// pasada la retención el intento terminal sale del mapa; sin esto
		// crece un entry por drop hasta el fin del proceso
		if ok && a.Status.Terminal() {
			delete(c.attempts, ev.id)
		}
		c.mu.Unlock()
		return
	}
	if !ok || a.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	switch ev.kind {
	case timerExpire:
		if time.Now().Before(a.deadline) {
			// hubo un reintento después de este timer; manda el deadline nuevo
			c.mu.Unlock()
			return
		}
		c.resolveLocked(a, domain.ClaimExpired)
		c.mu.Unlock()
		c.persist(ctx, a)
		log.Printf("⌛ claim expirado sin outcome: msg=%s (%s)", a.DropMessageID, a.CharacterName)

	case timerIssue:
		c.mu.Unlock()
		c.issue(ctx, ev.id)
	}
}

func (c *Coordinator) issue(ctx context.Context, id string) {
	c.mu.Lock()
	a, ok := c.attempts[id]
	if !ok || a.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	act := a.action
	channelID := a.ChannelID
	c.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := c.chat.SendClaimAction(cctx, channelID, id, act)
	cancel()

	if err != nil {
		log.Printf("⚠️ claim send falló msg=%s: %v", id, err)
		c.retryOrFail(ctx, id)
		return
	}

	c.mu.Lock()
	if a, ok := c.attempts[id]; ok && !a.Status.Terminal() {
		a.deadline = time.Now().Add(c.cfg.Timeout)
	}
	c.mu.Unlock()
	c.schedule(id, timerExpire, c.cfg.Timeout)
}

// retryOrFail consume el schedule de backoff; agotado, el intento queda
// Failed terminal.
func (c *Coordinator) retryOrFail(ctx context.Context, id string) {
	c.mu.Lock()
	a, ok := c.attempts[id]
	if !ok || a.Status.Terminal() {
		c.mu.Unlock()
		return
	}
	wait, stop := a.backoff.Next()
	if stop {
		c.resolveLocked(a, domain.ClaimFailed)
		c.mu.Unlock()
		c.persist(ctx, a)
		log.Printf("❌ claim agotó reintentos (%d): msg=%s (%s)", a.Retries, a.DropMessageID, a.CharacterName)
		return
	}
	a.Retries++
	retries := a.Retries
	c.mu.Unlock()

	log.Printf("claim: reintento %d para msg=%s en %s", retries, id, wait)
	c.schedule(id, timerIssue, wait)
}

func (c *Coordinator) handleOutcome(ctx context.Context, out domain.ClaimOutcome) {
	c.mu.Lock()
	a, ok := c.attempts[out.MessageID]
	if !ok || a.Status.Terminal() {
		c.mu.Unlock()
		return
	}

	switch out.Result {
	case domain.ClaimWon:
		c.resolveLocked(a, domain.ClaimSucceeded)
		c.mu.Unlock()
		c.rec.Record(stats.Delta{Kind: stats.KindClaimed, N: 1, At: time.Now()})
		c.persist(ctx, a)
		log.Printf("✅ claim ganado: %s (msg=%s)", a.CharacterName, a.DropMessageID)

	case domain.ClaimLostToOther:
		// otro participante llegó primero: resultado esperado, nunca se
		// reintenta (el recurso ya no existe)
		c.resolveLocked(a, domain.ClaimLost)
		c.mu.Unlock()
		c.persist(ctx, a)
		log.Printf("claim perdido contra otro: %s (msg=%s)", a.CharacterName, a.DropMessageID)

	case domain.ClaimRejected:
		c.mu.Unlock()
		c.retryOrFail(ctx, out.MessageID)
	}
}

func (c *Coordinator) resolveLocked(a *attempt, st domain.ClaimStatus) {
	a.Status = st
	a.ResolvedAt = time.Now()
	c.schedule(a.DropMessageID, timerPrune, c.cfg.Retention)
}

func (c *Coordinator) persist(ctx context.Context, a *attempt) {
	if c.book == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := c.book.InsertClaim(cctx, a.ClaimAttempt); err != nil {
		log.Printf("⚠️ no pude guardar el intento msg=%s: %v", a.DropMessageID, err)
	}
}

func (c *Coordinator) schedule(id string, kind timerKind, d time.Duration) {
	time.AfterFunc(d, func() {
		select {
		case c.timers <- timerEvent{id: id, kind: kind}:
		default:
			// coordinator parado; perder el timer en shutdown es aceptable
		}
	})
}
