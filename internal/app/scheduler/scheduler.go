package scheduler

import "time"

type State int

const (
	Idle State = iota
	CooldownWait
	Ready
	RollIssued
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CooldownWait:
		return "cooldown_wait"
	case Ready:
		return "ready"
	case RollIssued:
		return "roll_issued"
	}
	return "unknown"
}

// Scheduler es la máquina de estados de UN canal:
//
//	Idle → CooldownWait → Ready → RollIssued → Idle
//
// Cada (canal, comando) tiene su reloj de cooldown independiente; lo
// único que comparte con otros canales es la config. Lo muta sólo el
// worker del canal, así que no lleva locks.
type Scheduler struct {
	ChannelID string

	commands []string
	cooldown time.Duration

	state         State
	cooldownUntil map[string]time.Time
	lastRoll      time.Time
	issuedCmd     string
}

func New(channelID string, commands []string, cooldown time.Duration) *Scheduler {
	return &Scheduler{
		ChannelID:     channelID,
		commands:      commands,
		cooldown:      cooldown,
		state:         Idle,
		cooldownUntil: make(map[string]time.Time, len(commands)),
	}
}

func (s *Scheduler) State() State { return s.state }

// Tick reevalúa readiness en Idle/CooldownWait. En RollIssued no hace
// nada: estamos esperando la respuesta del juego.
func (s *Scheduler) Tick(now time.Time) {
	switch s.state {
	case Idle, CooldownWait:
		if len(s.ready(now)) > 0 {
			s.state = Ready
		} else {
			s.state = CooldownWait
		}
	}
}

// ReadyCommands devuelve los comandos emitibles cuando el estado es Ready.
func (s *Scheduler) ReadyCommands(now time.Time) []string {
	if s.state != Ready {
		return nil
	}
	return s.ready(now)
}

// MarkIssued registra la emisión de un roll: arranca el cooldown del
// comando y pasa a RollIssued. Las expiries nunca retroceden.
func (s *Scheduler) MarkIssued(cmd string, now time.Time) {
	until := now.Add(s.cooldown)
	if until.After(s.cooldownUntil[cmd]) {
		s.cooldownUntil[cmd] = until
	}
	if now.After(s.lastRoll) {
		s.lastRoll = now
	}
	s.state = RollIssued
	s.issuedCmd = cmd
}

// OnCooldownNotice: el juego corrige nuestro reloj. Resetea la expiry
// (sin retrocederla) y vuelve a CooldownWait.
func (s *Scheduler) OnCooldownNotice(cmd string, remaining time.Duration, now time.Time) {
	if cmd == "" {
		// aviso genérico: aplica a todos los comandos de roll
		for _, c := range s.commands {
			s.bumpCooldown(c, now.Add(remaining))
		}
	} else {
		s.bumpCooldown(cmd, now.Add(remaining))
	}
	s.state = CooldownWait
}

// OnResponse: cualquier respuesta no-cooldown después de RollIssued
// devuelve a Idle y reevalúa enseguida.
func (s *Scheduler) OnResponse(now time.Time) {
	if s.state != RollIssued {
		return
	}
	s.state = Idle
	s.issuedCmd = ""
	s.Tick(now)
}

// CooldownUntil expone la expiry de un comando (para monitoreo y tests).
func (s *Scheduler) CooldownUntil(cmd string) time.Time {
	return s.cooldownUntil[cmd]
}

func (s *Scheduler) LastRoll() time.Time { return s.lastRoll }

func (s *Scheduler) bumpCooldown(cmd string, until time.Time) {
	if until.After(s.cooldownUntil[cmd]) {
		s.cooldownUntil[cmd] = until
	}
}

func (s *Scheduler) ready(now time.Time) []string {
	var out []string
	for _, cmd := range s.commands {
		if !now.Before(s.cooldownUntil[cmd]) {
			out = append(out, cmd)
		}
	}
	return out
}
