package claim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jose-valero/mudae-claim-bot/internal/app/stats"
	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

type fakeSender struct {
	mu    sync.Mutex
	calls int
	errs  []error // respuesta por llamada; agotadas = nil
}

func (f *fakeSender) SendClaimAction(_ context.Context, _, _ string, _ domain.ClaimAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if f.calls < len(f.errs) {
		err = f.errs[f.calls]
	}
	f.calls++
	return err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecorder struct {
	mu     sync.Mutex
	deltas []stats.Delta
}

func (f *fakeRecorder) Record(d stats.Delta) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deltas = append(f.deltas, d)
}

func (f *fakeRecorder) claimed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.deltas {
		if d.Kind == stats.KindClaimed {
			n++
		}
	}
	return n
}

func newTestCoordinator(t *testing.T, sender *fakeSender, rec *fakeRecorder, cfg Config) *Coordinator {
	t.Helper()
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	c := New(sender, rec, nil, cfg)
	c.delay = func() time.Duration { return 0 } // sin pausa humanizante en tests

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)
	return c
}

func request(msgID string) Request {
	return Request{
		Drop:  domain.DropEvent{MessageID: msgID, ChannelID: "ch1", RawName: "Rem", ClaimButtonID: "btn-1"},
		Entry: domain.WishlistEntry{Name: "rem", RawName: "Rem"},
		Score: 1,
	}
}

func waitStatus(t *testing.T, c *Coordinator, msgID string, want domain.ClaimStatus) domain.ClaimAttempt {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if a, ok := c.Attempt(msgID); ok && a.Status == want {
			return a
		}
		time.Sleep(5 * time.Millisecond)
	}
	a, _ := c.Attempt(msgID)
	t.Fatalf("intento %s quedó en %s, quería %s", msgID, a.Status, want)
	return domain.ClaimAttempt{}
}

func waitCalls(t *testing.T, s *fakeSender, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("sender recibió %d llamadas, esperaba %d", s.count(), want)
}

func TestClaimWon(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3})

	c.Submit(request("drop1"))
	waitCalls(t, sender, 1)

	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop1", Result: domain.ClaimWon})
	a := waitStatus(t, c, "drop1", domain.ClaimSucceeded)
	if a.Retries != 0 {
		t.Errorf("retries = %d", a.Retries)
	}
	if rec.claimed() != 1 {
		t.Errorf("deltas de claimed = %d, quería 1", rec.claimed())
	}
}

func TestClaimLostToOtherIsTerminal(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3})

	c.Submit(request("drop2"))
	waitCalls(t, sender, 1)

	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop2", Result: domain.ClaimLostToOther})
	a := waitStatus(t, c, "drop2", domain.ClaimLost)
	if a.Retries != 0 {
		t.Errorf("perder contra otro no reintenta: retries = %d", a.Retries)
	}
	if rec.claimed() != 0 {
		t.Error("perder no suma claimed")
	}

	// outcomes tardíos sobre un terminal se ignoran
	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop2", Result: domain.ClaimWon})
	time.Sleep(30 * time.Millisecond)
	if a, _ := c.Attempt("drop2"); a.Status != domain.ClaimLost {
		t.Errorf("el estado cambió después del terminal: %s", a.Status)
	}
}

func TestTransientFailuresExhaustRetries(t *testing.T) {
	boom := errors.New("gateway caído")
	sender := &fakeSender{errs: []error{boom, boom, boom, boom}}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3})

	c.Submit(request("drop3"))

	a := waitStatus(t, c, "drop3", domain.ClaimFailed)
	if a.Retries != 3 {
		t.Errorf("retries = %d, quería 3", a.Retries)
	}
	// 1 intento original + 3 reintentos
	waitCalls(t, sender, 4)
	if got := sender.count(); got != 4 {
		t.Errorf("sends = %d, quería 4", got)
	}
}

func TestTransientFailureThenSuccess(t *testing.T) {
	boom := errors.New("timeout")
	sender := &fakeSender{errs: []error{boom}}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3})

	c.Submit(request("drop4"))
	waitCalls(t, sender, 2) // el segundo send ya sale bien

	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop4", Result: domain.ClaimWon})
	a := waitStatus(t, c, "drop4", domain.ClaimSucceeded)
	if a.Retries != 1 {
		t.Errorf("retries = %d, quería 1", a.Retries)
	}
}

func TestRejectedOutcomeRetries(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3})

	c.Submit(request("drop5"))
	waitCalls(t, sender, 1)

	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop5", Result: domain.ClaimRejected})
	waitCalls(t, sender, 2)

	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop5", Result: domain.ClaimWon})
	waitStatus(t, c, "drop5", domain.ClaimSucceeded)
}

func TestDuplicateSubmitRejected(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3})

	c.Submit(request("drop6"))
	c.Submit(request("drop6"))
	waitCalls(t, sender, 1)
	time.Sleep(50 * time.Millisecond)

	if got := sender.count(); got != 1 {
		t.Errorf("el duplicado generó sends extra: %d", got)
	}
}

func TestTerminalAttemptsPruned(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3, Retention: 20 * time.Millisecond})

	c.Submit(request("drop8"))
	waitCalls(t, sender, 1)
	c.Outcome(domain.ClaimOutcome{ChannelID: "ch1", MessageID: "drop8", Result: domain.ClaimWon})
	waitStatus(t, c, "drop8", domain.ClaimSucceeded)

	// pasada la retención el intento desaparece del mapa
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Attempt("drop8"); !ok {
			// y el drop queda reclamable de nuevo si reaparece
			c.Submit(request("drop8"))
			waitCalls(t, sender, 2)
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("el intento terminal nunca salió del mapa")
}

func TestExpiresWithoutOutcome(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	c := newTestCoordinator(t, sender, rec, Config{MaxRetries: 3, Timeout: 40 * time.Millisecond})

	c.Submit(request("drop7"))
	a := waitStatus(t, c, "drop7", domain.ClaimExpired)
	if a.Retries != 0 {
		t.Errorf("expirar no reintenta: retries = %d", a.Retries)
	}
	if rec.claimed() != 0 {
		t.Error("expirar no suma claimed")
	}
}
