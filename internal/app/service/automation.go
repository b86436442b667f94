package service

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jose-valero/mudae-claim-bot/internal/app/claim"
	"github.com/jose-valero/mudae-claim-bot/internal/app/parser"
	"github.com/jose-valero/mudae-claim-bot/internal/app/scheduler"
	"github.com/jose-valero/mudae-claim-bot/internal/app/stats"
	"github.com/jose-valero/mudae-claim-bot/internal/app/wishlist"
	"github.com/jose-valero/mudae-claim-bot/internal/domain"
	"github.com/jose-valero/mudae-claim-bot/internal/infra/storage"
)

type Options struct {
	AutoRoll        bool     // apagado: sólo mira, no tira rolls
	RollCommands    []string // ej. ["$wa", "$ha"]
	Cooldown        time.Duration
	DailyCommands   []string // ej. ["$daily", "$dk"]
	KakeraReact     bool
	TickEvery       time.Duration // reevaluación de readiness por canal
	ResponseTimeout time.Duration // cuánto esperar la respuesta a un roll
}

func (o *Options) defaults() {
	if o.TickEvery <= 0 {
		o.TickEvery = time.Second
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = 10 * time.Second
	}
}

// channelWorker: una goroutine por canal, dueña del scheduler de ese
// canal. Los mensajes le llegan por el inbox en el orden del gateway.
type channelWorker struct {
	channelID string
	inbox     chan domain.RawMessage
	sched     *scheduler.Scheduler
	cancel    context.CancelFunc
}

// Engine cablea parser, wishlist, schedulers, claim y stats. Es el único
// que habla con todos; los componentes no se conocen entre sí.
type Engine struct {
	chat     ChatClient
	par      *parser.Parser
	wl       *wishlist.Matcher
	coord    *claim.Coordinator
	agg      *stats.Aggregator
	daily    *scheduler.Daily // nil = daily deshabilitado
	channels ChannelRepo      // puede ser nil (sin persistencia de canales)
	opts     Options

	mu      sync.Mutex
	ctx     context.Context // vive mientras Run corre
	workers map[string]*channelWorker
	ordered []string // canales en orden de alta (el daily usa el primero)
	wg      sync.WaitGroup
}

func NewEngine(chat ChatClient, par *parser.Parser, wl *wishlist.Matcher,
	coord *claim.Coordinator, agg *stats.Aggregator, daily *scheduler.Daily,
	channels ChannelRepo, opts Options) *Engine {

	opts.defaults()
	return &Engine{
		chat:     chat,
		par:      par,
		wl:       wl,
		coord:    coord,
		agg:      agg,
		daily:    daily,
		channels: channels,
		opts:     opts,
		workers:  make(map[string]*channelWorker),
	}
}

// Run supervisa coordinator, aggregator, daily y los workers de canal.
// Devuelve cuando cancelan el contexto o un componente muere.
func (e *Engine) Run(ctx context.Context, channels []string) error {
	g, gctx := errgroup.WithContext(ctx)

	e.mu.Lock()
	e.ctx = gctx
	e.mu.Unlock()

	// el aggregator vive en su propio contexto: tiene que seguir
	// aceptando deltas hasta que workers y coordinator terminen, y
	// recién ahí drenar y hacer el flush final
	aggCtx, aggCancel := context.WithCancel(context.Background())
	defer aggCancel()

	coordDone := make(chan struct{})
	g.Go(func() error {
		defer close(coordDone)
		return e.coord.Run(gctx)
	})
	g.Go(func() error { return e.agg.Run(aggCtx) })
	g.Go(func() error { return e.dailyLoop(gctx) })

	for _, ch := range channels {
		e.AddChannel(ch)
	}
	log.Printf("✅ engine corriendo con %d canal(es)", len(channels))

	<-gctx.Done()

	e.mu.Lock()
	for _, w := range e.workers {
		w.cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
	<-coordDone
	aggCancel()

	return g.Wait()
}

// AddChannel arranca el worker de un canal. Idempotente.
func (e *Engine) AddChannel(channelID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.workers[channelID]; ok {
		return
	}
	if e.ctx == nil {
		log.Printf("⚠️ AddChannel(%s) antes de Run, ignorado", channelID)
		return
	}

	wctx, cancel := context.WithCancel(e.ctx)
	w := &channelWorker{
		channelID: channelID,
		inbox:     make(chan domain.RawMessage, 128),
		sched:     scheduler.New(channelID, e.opts.RollCommands, e.opts.Cooldown),
		cancel:    cancel,
	}
	e.workers[channelID] = w
	e.ordered = append(e.ordered, channelID)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runWorker(wctx, w)
	}()
	log.Printf("✅ canal %s bajo automatización", channelID)
}

// RemoveChannel frena el worker. Los claims pendientes del canal siguen
// vivos: el coordinator no depende del worker.
func (e *Engine) RemoveChannel(channelID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	w, ok := e.workers[channelID]
	if !ok {
		return
	}
	w.cancel()
	delete(e.workers, channelID)
	for i, id := range e.ordered {
		if id == channelID {
			e.ordered = append(e.ordered[:i], e.ordered[i+1:]...)
			break
		}
	}
	log.Printf("canal %s fuera de automatización", channelID)
}

// RegisterChannel persiste el canal y arranca su worker.
func (e *Engine) RegisterChannel(ctx context.Context, ch storage.ChannelEntry) error {
	if e.channels != nil {
		if err := e.channels.Upsert(ctx, ch); err != nil {
			return err
		}
	}
	e.AddChannel(ch.ChannelID)
	return nil
}

// UnregisterChannel saca el canal de la DB y frena su worker.
func (e *Engine) UnregisterChannel(ctx context.Context, channelID string) error {
	if e.channels != nil {
		if _, err := e.channels.Remove(ctx, channelID); err != nil {
			return err
		}
	}
	e.RemoveChannel(channelID)
	return nil
}

// Dispatch rutea un mensaje entrante al worker de su canal. Mensajes de
// canales no manejados se descartan acá mismo.
func (e *Engine) Dispatch(m domain.RawMessage) {
	e.mu.Lock()
	w, ok := e.workers[m.ChannelID]
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case w.inbox <- m:
	default:
		log.Printf("⚠️ inbox lleno en canal %s, mensaje %s descartado", m.ChannelID, m.MessageID)
	}
}

func (e *Engine) Snapshot() domain.StatsCounters { return e.agg.Snapshot() }

func (e *Engine) runWorker(ctx context.Context, w *channelWorker) {
	t := time.NewTicker(e.opts.TickEvery)
	defer t.Stop()

	for {
		select {
		case m := <-w.inbox:
			e.handleMessage(ctx, w, m)
		case <-t.C:
			e.tickChannel(ctx, w, time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) handleMessage(ctx context.Context, w *channelWorker, m domain.RawMessage) {
	if !m.FromGame {
		return
	}
	now := time.Now()

	switch ev := e.par.Parse(m).(type) {
	case domain.DropEvent:
		w.sched.OnResponse(now)
		if ev.AlreadyClaimed {
			// edición del drop: alguien ya lo tiene; si era un intento
			// nuestro, esto lo resuelve
			res := domain.ClaimLostToOther
			if ev.ClaimedByUs {
				res = domain.ClaimWon
			}
			e.coord.Outcome(domain.ClaimOutcome{ChannelID: ev.ChannelID, MessageID: ev.MessageID, Result: res})
			return
		}
		e.agg.Record(stats.Delta{Kind: stats.KindRolled, At: now})
		if match, ok := e.wl.Match(ev); ok {
			e.agg.Record(stats.Delta{Kind: stats.KindMatched, At: now})
			e.coord.Submit(claim.Request{Drop: ev, Entry: match.Entry, Score: match.Score})
		}

	case domain.KakeraDrop:
		w.sched.OnResponse(now)
		if e.opts.KakeraReact && ev.ButtonID != "" {
			e.collectKakera(ctx, ev)
		}

	case domain.CooldownNotice:
		switch ev.Command {
		case "roll":
			// el juego corrige nuestro reloj; aplica a todos los comandos
			w.sched.OnCooldownNotice("", ev.Remaining, now)
		default:
			log.Printf("cooldown de %s en canal %s: %s", ev.Command, ev.ChannelID, ev.Remaining)
			w.sched.OnResponse(now)
		}

	case domain.ClaimOutcome:
		e.coord.Outcome(ev)
		w.sched.OnResponse(now)

	case domain.DailyRewardNotice:
		w.sched.OnResponse(now)

	case domain.Unrecognized:
		// cualquier respuesta del juego saca al scheduler de RollIssued
		w.sched.OnResponse(now)
	}
}

// tickChannel emite a lo sumo un roll por tick; el resto sale en los
// ticks siguientes, que con el jitter queda con cadencia humana.
func (e *Engine) tickChannel(ctx context.Context, w *channelWorker, now time.Time) {
	if w.sched.State() == scheduler.RollIssued &&
		now.Sub(w.sched.LastRoll()) > e.opts.ResponseTimeout {
		// el juego nunca respondió; no nos quedamos clavados esperando
		w.sched.OnResponse(now)
	}

	if !e.opts.AutoRoll {
		return
	}

	w.sched.Tick(now)
	cmds := w.sched.ReadyCommands(now)
	if len(cmds) == 0 {
		return
	}

	cmd := cmds[0]
	sleepJitter(ctx, 150*time.Millisecond, 400*time.Millisecond)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := e.chat.SendCommand(cctx, w.channelID, cmd)
	cancel()
	if err != nil {
		log.Printf("⚠️ no pude mandar %s en canal %s: %v", cmd, w.channelID, err)
		return // el comando sigue ready, se reintenta en el próximo tick
	}
	w.sched.MarkIssued(cmd, time.Now())
	e.agg.Record(stats.Delta{Kind: stats.KindRollExecuted, At: now})
}

func (e *Engine) collectKakera(ctx context.Context, ev domain.KakeraDrop) {
	sleepJitter(ctx, 100*time.Millisecond, 500*time.Millisecond)

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	act := domain.ClaimAction{CustomID: ev.ButtonID}
	if err := e.chat.SendClaimAction(cctx, ev.ChannelID, ev.MessageID, act); err != nil {
		log.Printf("⚠️ kakera sin recolectar en msg=%s: %v", ev.MessageID, err)
		return
	}
	e.agg.Record(stats.Delta{Kind: stats.KindKakera, At: time.Now()})
	log.Printf("💎 kakera recolectado (msg=%s)", ev.MessageID)
}

// dailyLoop dispara los comandos diarios una vez por día calendario en
// el primer canal registrado.
func (e *Engine) dailyLoop(ctx context.Context) error {
	if e.daily == nil {
		return nil
	}
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			now := time.Now()
			if !e.daily.ShouldFire(now) {
				continue
			}
			e.mu.Lock()
			var channelID string
			if len(e.ordered) > 0 {
				channelID = e.ordered[0]
			}
			e.mu.Unlock()
			if channelID == "" {
				continue // sin canales todavía; reintenta en el próximo tick
			}

			if e.daily.MissedBySkew(now) {
				log.Printf("⚠️ daily atrasado (próximo era %s), disparando igual", e.daily.Next(now).Format("15:04"))
			}
			for i, cmd := range e.opts.DailyCommands {
				if i > 0 {
					sleepJitter(ctx, 2*time.Second, 3*time.Second)
				}
				cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := e.chat.SendCommand(cctx, channelID, cmd)
				cancel()
				if err != nil {
					log.Printf("⚠️ daily %s falló: %v", cmd, err)
				}
			}
			e.daily.Fired(now)
			e.agg.Record(stats.Delta{Kind: stats.KindDailyFired, At: now})
			log.Printf("✅ daily disparado en canal %s", channelID)

		case <-ctx.Done():
			return nil
		}
	}
}

// sleepJitter duerme un rato al azar en [min, max), cortable por ctx.
// Las pausas imitan el ritmo de una persona, no de un loop.
func sleepJitter(ctx context.Context, min, max time.Duration) {
	d := min + rand.N(max-min)
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
