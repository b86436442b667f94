package service

import (
	"context"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
	"github.com/jose-valero/mudae-claim-bot/internal/infra/storage"
)

// Lo implementa internal/adapters/discord.Client
type ChatClient interface {
	SendCommand(ctx context.Context, channelID, command string) error
	SendClaimAction(ctx context.Context, channelID, messageID string, act domain.ClaimAction) error
}

// Lo implementa internal/infra/storage.ChannelRepo
type ChannelRepo interface {
	List(ctx context.Context) ([]storage.ChannelEntry, error)
	Upsert(ctx context.Context, ch storage.ChannelEntry) error
	Remove(ctx context.Context, channelID string) (bool, error)
}
