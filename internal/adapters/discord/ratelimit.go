package discord

import (
	"sync"
	"time"
)

// channelLimiter espacia los sends por canal, aparte del ratelimit del
// propio discordgo. Lo usamos para que los comandos salgan con cadencia
// tranquila y no en ráfaga.
type channelLimiter struct {
	mu   sync.Mutex
	next map[string]time.Time
	win  time.Duration
}

func newChannelLimiter(window time.Duration) *channelLimiter {
	return &channelLimiter{next: map[string]time.Time{}, win: window}
}

// Reserve toma el próximo turno del canal y devuelve cuánto esperar
// antes de mandar. Cero si el canal está libre.
func (l *channelLimiter) Reserve(channelID string) time.Duration {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := l.next[channelID]
	if !ok || at.Before(now) {
		at = now
	}
	l.next[channelID] = at.Add(l.win)
	return at.Sub(now)
}
