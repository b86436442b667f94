package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

var (
	reKakeraValue = regexp.MustCompile(`(\d+)\s*<:kakera`)
	reClaimEmoji  = regexp.MustCompile(`^(💖|❤️|💕|💗|💘|💝)$`)
	reMarried     = regexp.MustCompile(`(?i)\*\*(.+?)\*\* and \*\*(.+?)\*\* are now married`)
	reBelongsTo   = regexp.MustCompile(`(?i)belongs to \*?\*?([^*\n]+)`)
	reHours       = regexp.MustCompile(`(?i)(\d+)\s*h(?:our|r)?s?\b`)
	reMinutes     = regexp.MustCompile(`(?i)(\d+)\s*min(?:ute)?s?\b`)
	reRollsLeft   = regexp.MustCompile(`(?i)(\d+)\s*rolls?\s*left`)
)

// Parser clasifica RawMessage en exactamente un Event del set cerrado.
// Las reglas se prueban en orden fijo; eso resuelve la ambigüedad entre
// un aviso de cooldown y un drop que también traen números.
type Parser struct {
	selfName string // username propio, para distinguir Won de LostToOther
}

func New(selfName string) *Parser {
	return &Parser{selfName: Normalize(selfName)}
}

// SetSelfName fija el username una vez conectados. Llamar antes de que
// el engine arranque a parsear; después el Parser es de sólo lectura.
func (p *Parser) SetSelfName(name string) {
	p.selfName = Normalize(name)
}

func (p *Parser) Parse(m domain.RawMessage) domain.Event {
	// 1) loot de kakera: botón con emoji kakera, sin importar el embed
	if btn, ok := kakeraButton(m.Buttons); ok {
		color := 0
		if m.Embed != nil {
			color = m.Embed.Color
		}
		return domain.KakeraDrop{
			MessageID: m.MessageID,
			ChannelID: m.ChannelID,
			ButtonID:  btn.CustomID,
			Color:     color,
		}
	}

	// 2) drop de personaje: embed con author + description
	if m.Embed != nil && m.Embed.AuthorName != "" && m.Embed.Description != "" {
		return p.parseDrop(m)
	}

	// 3) resolución de claim por contenido
	if ev, ok := p.parseClaimOutcome(m); ok {
		return ev
	}

	// 4) avisos de cooldown
	if ev, ok := parseCooldown(m); ok {
		return ev
	}

	// 5) daily listo
	if strings.Contains(strings.ToLower(m.Content), "$daily") &&
		(strings.Contains(strings.ToLower(m.Content), "reset") || strings.Contains(strings.ToLower(m.Content), "ready")) {
		return domain.DailyRewardNotice{ChannelID: m.ChannelID}
	}

	return domain.Unrecognized{ChannelID: m.ChannelID, MessageID: m.MessageID}
}

func (p *Parser) parseDrop(m domain.RawMessage) domain.DropEvent {
	e := m.Embed
	series := firstLine(e.Description)

	kakera := 0
	if mm := reKakeraValue.FindStringSubmatch(e.FooterText); len(mm) == 2 {
		kakera, _ = strconv.Atoi(mm[1])
	}
	if kakera == 0 {
		if mm := reKakeraValue.FindStringSubmatch(e.Description); len(mm) == 2 {
			kakera, _ = strconv.Atoi(mm[1])
		}
	}

	btnID := ""
	for _, b := range m.Buttons {
		if reClaimEmoji.MatchString(b.Emoji) || strings.Contains(strings.ToLower(b.Label), "marry") {
			btnID = b.CustomID
			break
		}
	}

	ev := domain.DropEvent{
		Name:          Normalize(e.AuthorName),
		Series:        Normalize(series),
		RawName:       strings.TrimSpace(e.AuthorName),
		RawSeries:     series,
		Kakera:        kakera,
		MessageID:     m.MessageID,
		ChannelID:     m.ChannelID,
		Timestamp:     m.Timestamp,
		ClaimButtonID: btnID,
	}
	// el juego edita el embed con "Belongs to X" cuando lo reclaman
	if mm := reBelongsTo.FindStringSubmatch(e.Description); len(mm) == 2 {
		ev.AlreadyClaimed = true
		ev.ClaimedByUs = Normalize(mm[1]) == p.selfName
	}
	return ev
}

func (p *Parser) parseClaimOutcome(m domain.RawMessage) (domain.Event, bool) {
	if mm := reMarried.FindStringSubmatch(m.Content); len(mm) == 3 {
		res := domain.ClaimLostToOther
		if Normalize(mm[1]) == p.selfName || Normalize(mm[2]) == p.selfName {
			res = domain.ClaimWon
		}
		return domain.ClaimOutcome{
			ChannelID: m.ChannelID,
			MessageID: correlationID(m),
			Result:    res,
		}, true
	}

	// "belongs to X" como respuesta: otro llegó primero
	if m.ReplyToID != "" {
		if mm := reBelongsTo.FindStringSubmatch(m.Content); len(mm) == 2 {
			res := domain.ClaimLostToOther
			if Normalize(mm[1]) == p.selfName {
				res = domain.ClaimWon
			}
			return domain.ClaimOutcome{
				ChannelID: m.ChannelID,
				MessageID: m.ReplyToID,
				Result:    res,
			}, true
		}
	}
	return nil, false
}

func parseCooldown(m domain.RawMessage) (domain.Event, bool) {
	low := strings.ToLower(m.Content)

	switch {
	case strings.Contains(low, "roulette is limited"):
		return domain.CooldownNotice{
			ChannelID: m.ChannelID,
			Command:   "roll",
			Remaining: parseRemaining(low),
		}, true

	case reRollsLeft.MatchString(low):
		// con rolls disponibles el remaining es cero: listo para tirar
		n, _ := strconv.Atoi(reRollsLeft.FindStringSubmatch(low)[1])
		remaining := time.Duration(0)
		if n == 0 {
			remaining = parseRemaining(low)
		}
		return domain.CooldownNotice{ChannelID: m.ChannelID, Command: "roll", Remaining: remaining}, true

	case strings.Contains(low, "can't marry") || strings.Contains(low, "cant marry"):
		return domain.CooldownNotice{
			ChannelID: m.ChannelID,
			Command:   "claim",
			Remaining: parseRemaining(low),
		}, true
	}
	return nil, false
}

// parseRemaining junta "2h 17 min", "45 min left", "1h", etc.
func parseRemaining(s string) time.Duration {
	var d time.Duration
	if mm := reHours.FindStringSubmatch(s); len(mm) == 2 {
		h, _ := strconv.Atoi(mm[1])
		d += time.Duration(h) * time.Hour
	}
	if mm := reMinutes.FindStringSubmatch(s); len(mm) == 2 {
		min, _ := strconv.Atoi(mm[1])
		d += time.Duration(min) * time.Minute
	}
	return d
}

func kakeraButton(buttons []domain.RawButton) (domain.RawButton, bool) {
	for _, b := range buttons {
		if strings.Contains(strings.ToLower(b.Emoji), "kakera") {
			return b, true
		}
	}
	return domain.RawButton{}, false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// correlationID: el outcome se correlaciona con el mensaje del drop vía
// message reference; sin referencia usamos el propio id y el coordinator
// decide si le sirve.
func correlationID(m domain.RawMessage) string {
	if m.ReplyToID != "" {
		return m.ReplyToID
	}
	return m.MessageID
}
