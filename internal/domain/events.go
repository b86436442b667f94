package domain

import "time"

// RawMessage es el mensaje entrante ya aplanado por el adapter de chat.
// El parser trabaja sobre esto, nunca sobre tipos del transporte.
type RawMessage struct {
	ChannelID  string
	MessageID  string
	AuthorID   string
	AuthorName string
	FromGame   bool
	Content    string
	ReplyToID  string // message reference, si viene como respuesta
	Embed      *RawEmbed
	Buttons    []RawButton
	Timestamp  time.Time
}

type RawEmbed struct {
	AuthorName  string
	Title       string
	Description string
	FooterText  string
	Color       int
	ImageURL    string
}

type RawButton struct {
	CustomID string
	Label    string
	Emoji    string
}

// Event es el set cerrado de eventos tipados que produce el parser.
// Una regla por variante, en orden fijo; la primera que matchea gana.
type Event interface{ isEvent() }

// DropEvent: apareció un personaje reclamable en el canal.
type DropEvent struct {
	Name      string // normalizado
	Series    string // normalizado
	RawName   string
	RawSeries string
	Kakera    int // valor del footer, 0 si no viene

	MessageID string
	ChannelID string
	Timestamp time.Time

	AlreadyClaimed bool
	ClaimedByUs    bool   // el "Belongs to" nos nombra a nosotros
	ClaimButtonID  string // custom_id del botón de claim, si existe
}

// KakeraDrop: botón de kakera suelto, se recolecta con react/click.
type KakeraDrop struct {
	MessageID string
	ChannelID string
	ButtonID  string
	Color     int
}

// CooldownNotice: el juego avisa que un comando está limitado.
type CooldownNotice struct {
	ChannelID string
	Command   string // "roll", "claim" o "daily"
	Remaining time.Duration
}

// ClaimOutcome: resolución de un claim, correlacionada por message id.
type ClaimOutcome struct {
	ChannelID string
	MessageID string // id del mensaje del drop
	Result    ClaimResult
}

type DailyRewardNotice struct {
	ChannelID string
}

// Unrecognized: ninguna regla matcheó. Se descarta con log debug.
type Unrecognized struct {
	ChannelID string
	MessageID string
}

func (DropEvent) isEvent()         {}
func (KakeraDrop) isEvent()        {}
func (CooldownNotice) isEvent()    {}
func (ClaimOutcome) isEvent()      {}
func (DailyRewardNotice) isEvent() {}
func (Unrecognized) isEvent()      {}

type ClaimResult int

const (
	ClaimWon ClaimResult = iota
	ClaimLostToOther
	ClaimRejected // fallo transitorio reportado por el juego
)
