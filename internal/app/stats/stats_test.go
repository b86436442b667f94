package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

type fakeStore struct {
	mu    sync.Mutex
	saves []domain.StatsCounters
}

func (f *fakeStore) SaveStats(_ context.Context, c domain.StatsCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves = append(f.saves, c)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeStore) last() domain.StatsCounters {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saves) == 0 {
		return domain.StatsCounters{}
	}
	return f.saves[len(f.saves)-1]
}

func TestAggregatorAccumulatesAndFlushesOnShutdown(t *testing.T) {
	store := &fakeStore{}
	a := New(store, domain.StatsCounters{Rolled: 10}, time.Hour) // el ticker no llega a disparar

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = a.Run(ctx); close(done) }()

	for range 5 {
		a.Record(Delta{Kind: KindRolled})
	}
	a.Record(Delta{Kind: KindMatched})
	a.Record(Delta{Kind: KindClaimed})
	a.Record(Delta{Kind: KindKakera, N: 3})

	cancel()
	<-done

	got := store.last()
	if got.Rolled != 15 {
		t.Errorf("rolled = %d, quería 15 (10 base + 5)", got.Rolled)
	}
	if got.Matched != 1 || got.Claimed != 1 || got.Kakera != 3 {
		t.Errorf("matched/claimed/kakera = %d/%d/%d", got.Matched, got.Claimed, got.Kakera)
	}
}

func TestAggregatorCoalescesWrites(t *testing.T) {
	store := &fakeStore{}
	a := New(store, domain.StatsCounters{}, 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = a.Run(ctx); close(done) }()

	// ráfaga: muchos deltas, pocos writes
	for range 50 {
		a.Record(Delta{Kind: KindRolled})
	}
	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	if n := store.count(); n > 5 {
		t.Errorf("writes = %d; la ráfaga tenía que coalescer", n)
	}
	if got := store.last(); got.Rolled != 50 {
		t.Errorf("rolled = %d, quería 50", got.Rolled)
	}
}

func TestAggregatorNoWriteWhenClean(t *testing.T) {
	store := &fakeStore{}
	a := New(store, domain.StatsCounters{}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = a.Run(ctx); close(done) }()

	time.Sleep(70 * time.Millisecond)
	cancel()
	<-done

	if n := store.count(); n != 0 {
		t.Errorf("sin deltas no hay writes, hubo %d", n)
	}
}

// flakyStore falla el primer save y anota el deadline de cada intento.
type flakyStore struct {
	mu        sync.Mutex
	calls     int
	deadlines []time.Time
}

func (f *flakyStore) SaveStats(ctx context.Context, _ domain.StatsCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, _ := ctx.Deadline()
	f.deadlines = append(f.deadlines, d)
	f.calls++
	if f.calls == 1 {
		time.Sleep(5 * time.Millisecond) // simula un save que consumió presupuesto
		return context.DeadlineExceeded
	}
	return nil
}

func TestFlushRetryGetsFreshTimeout(t *testing.T) {
	store := &flakyStore{}
	a := New(store, domain.StatsCounters{}, time.Hour)
	a.apply(Delta{Kind: KindRolled, N: 1})

	a.flush(context.Background())

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.calls != 2 {
		t.Fatalf("saves = %d, quería intento + reintento", store.calls)
	}
	// el reintento no hereda el presupuesto gastado del primer intento
	if !store.deadlines[1].After(store.deadlines[0]) {
		t.Errorf("deadline del reintento (%v) no avanzó respecto del primero (%v)",
			store.deadlines[1], store.deadlines[0])
	}
}

func TestSnapshotIncludesUptime(t *testing.T) {
	a := New(&fakeStore{}, domain.StatsCounters{UptimeSeconds: 100}, time.Hour)
	got := a.Snapshot()
	if got.UptimeSeconds < 100 {
		t.Errorf("uptime = %d, el acumulado anterior se perdió", got.UptimeSeconds)
	}
}

func TestDailyFiredUpdatesTimestamp(t *testing.T) {
	store := &fakeStore{}
	a := New(store, domain.StatsCounters{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = a.Run(ctx); close(done) }()

	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	a.Record(Delta{Kind: KindDailyFired, At: at})
	cancel()
	<-done

	if got := store.last(); got.LastDailyAt != at.Unix() {
		t.Errorf("last_daily_at = %d, quería %d", got.LastDailyAt, at.Unix())
	}
}
