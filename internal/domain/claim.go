package domain

import "time"

type ClaimStatus int

const (
	ClaimPending ClaimStatus = iota
	ClaimSucceeded
	ClaimLost
	ClaimFailed
	ClaimExpired
)

func (s ClaimStatus) Terminal() bool { return s != ClaimPending }

func (s ClaimStatus) String() string {
	switch s {
	case ClaimPending:
		return "pending"
	case ClaimSucceeded:
		return "succeeded"
	case ClaimLost:
		return "lost_to_other"
	case ClaimFailed:
		return "failed"
	case ClaimExpired:
		return "expired"
	}
	return "unknown"
}

// ClaimAttempt referencia drop y entry por identificador, sin aliasing.
// Invariante: a lo sumo un intento no-terminal por drop.
type ClaimAttempt struct {
	DropMessageID string
	ChannelID     string
	CharacterName string
	EntryName     string
	Status        ClaimStatus
	Retries       int
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

// ClaimAction describe cómo reclamar: click de botón si hay custom_id,
// si no una reacción con el emoji indicado.
type ClaimAction struct {
	CustomID string
	Emoji    string
}
