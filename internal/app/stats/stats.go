package stats

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

type Kind int

const (
	KindRolled Kind = iota
	KindRollExecuted
	KindMatched
	KindClaimed
	KindKakera
	KindDailyFired
	KindReset
)

type Delta struct {
	Kind Kind
	N    uint64
	At   time.Time
}

// Store lo implementa storage.StatsRepo.
type Store interface {
	SaveStats(ctx context.Context, c domain.StatsCounters) error
}

// Aggregator es el único escritor de los contadores: los demás
// componentes sólo le mandan deltas por la cola. Flushea al store en un
// intervalo fijo y en el shutdown; las ráfagas se acumulan en memoria,
// nunca más de un write por intervalo.
type Aggregator struct {
	store    Store
	interval time.Duration

	deltas  chan Delta
	started time.Time

	mu    sync.Mutex
	c     domain.StatsCounters
	base  uint64 // uptime acumulado de corridas anteriores
	dirty bool
}

func New(store Store, initial domain.StatsCounters, interval time.Duration) *Aggregator {
	return &Aggregator{
		store:    store,
		interval: interval,
		deltas:   make(chan Delta, 256),
		started:  time.Now(),
		c:        initial,
		base:     initial.UptimeSeconds,
	}
}

// Record encola un delta. No bloquea al emisor salvo cola llena, que con
// el buffer actual significa que el aggregator murió.
func (a *Aggregator) Record(d Delta) {
	if d.N == 0 && d.Kind != KindReset && d.Kind != KindDailyFired {
		d.N = 1
	}
	a.deltas <- d
}

func (a *Aggregator) Snapshot() domain.StatsCounters {
	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.c
	c.UptimeSeconds = a.base + uint64(time.Since(a.started).Seconds())
	return c
}

// Run procesa deltas hasta que cancelen el contexto; antes de salir
// drena la cola y hace el flush final, así el último write refleja todo
// lo procesado.
func (a *Aggregator) Run(ctx context.Context) error {
	t := time.NewTicker(a.interval)
	defer t.Stop()

	for {
		select {
		case d := <-a.deltas:
			a.apply(d)
		case <-t.C:
			a.flush(context.Background())
		case <-ctx.Done():
			a.drain()
			a.flush(context.Background())
			return nil
		}
	}
}

func (a *Aggregator) drain() {
	for {
		select {
		case d := <-a.deltas:
			a.apply(d)
		default:
			return
		}
	}
}

func (a *Aggregator) apply(d Delta) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch d.Kind {
	case KindRolled:
		a.c.Rolled += d.N
	case KindRollExecuted:
		a.c.RollsExecuted += d.N
	case KindMatched:
		a.c.Matched += d.N
	case KindClaimed:
		a.c.Claimed += d.N
	case KindKakera:
		a.c.Kakera += d.N
	case KindDailyFired:
		a.c.LastDailyAt = d.At.Unix()
	case KindReset:
		a.c = domain.StatsCounters{LastDailyAt: a.c.LastDailyAt}
		a.base = 0
		a.started = time.Now()
	}
	a.dirty = true
}

// flush escribe una vez por intervalo como máximo; un error se reintenta
// una vez y después degrada a "stats sin flushear" (no tira el proceso).
func (a *Aggregator) flush(ctx context.Context) {
	a.mu.Lock()
	if !a.dirty {
		a.mu.Unlock()
		return
	}
	c := a.c
	c.UptimeSeconds = a.base + uint64(time.Since(a.started).Seconds())
	a.mu.Unlock()

	// timeout fresco por intento: si el primero se comió los 5s, el
	// reintento arranca con su propio presupuesto
	save := func() error {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return a.store.SaveStats(cctx, c)
	}
	err := save()
	if err != nil {
		err = save()
	}
	if err != nil {
		log.Printf("⚠️ stats sin flushear (reintento agotado): %v", err)
		return
	}

	a.mu.Lock()
	a.dirty = false
	a.mu.Unlock()
}
