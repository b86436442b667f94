package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// tolerancia para considerar "perdido" un trigger tras downtime; pasado
// esto igual dispara una vez y reprograma hacia adelante
const dailySkew = time.Hour

// Daily trackea un único próximo trigger calculado desde una hora "HH:MM"
// local. Nunca dispara dos veces para el mismo día calendario, incluso si
// el proceso arranca tarde: lastFired se persiste y se pasa al construir.
type Daily struct {
	hour, min int
	lastFired time.Time
}

func NewDaily(hhmm string, lastFired time.Time) (*Daily, error) {
	h, m, err := parseClock(hhmm)
	if err != nil {
		return nil, err
	}
	return &Daily{hour: h, min: m, lastFired: lastFired}, nil
}

// ShouldFire: ya pasó el trigger de hoy y todavía no corrimos hoy.
// Cubre el arranque tardío (dispara una vez, enseguida) y el caso normal.
func (d *Daily) ShouldFire(now time.Time) bool {
	if sameDay(d.lastFired, now) {
		return false
	}
	return !now.Before(d.triggerFor(now))
}

// Fired marca el disparo; el próximo queda para el día siguiente.
func (d *Daily) Fired(now time.Time) {
	d.lastFired = now
}

// MissedBySkew: el trigger de hoy quedó atrás más allá de la tolerancia
// (típico después de downtime). Sólo informativo: se dispara igual, una vez.
func (d *Daily) MissedBySkew(now time.Time) bool {
	return now.After(d.triggerFor(now).Add(dailySkew))
}

// Next devuelve el próximo trigger pendiente (para logs/monitoreo).
func (d *Daily) Next(now time.Time) time.Time {
	t := d.triggerFor(now)
	if sameDay(d.lastFired, now) {
		return t.AddDate(0, 0, 1)
	}
	if now.Before(t) {
		return t
	}
	return t // vencido pero pendiente: dispara ya
}

func (d *Daily) triggerFor(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), d.hour, d.min, 0, 0, now.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func parseClock(hhmm string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(hhmm), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("daily_time inválido %q (esperado HH:MM)", hhmm)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("daily_time inválido %q (esperado HH:MM)", hhmm)
	}
	return h, m, nil
}
