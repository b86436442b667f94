package discord

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/mudae-claim-bot/internal/domain"
)

// Client envuelve la sesión de discordgo y traduce el gateway a
// domain.RawMessage. El engine nunca ve tipos de discordgo.
type Client struct {
	s         *discordgo.Session
	gameBotID string
	limiter   *channelLimiter
	dispatch  func(domain.RawMessage)
}

func New(token, gameBotID string) (*Client, error) {
	auth := strings.TrimSpace(token)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent

	return &Client{
		s:         s,
		gameBotID: gameBotID,
		limiter:   newChannelLimiter(1200 * time.Millisecond),
	}, nil
}

// Open conecta el gateway y empieza a rutear mensajes hacia dispatch.
func (c *Client) Open(dispatch func(domain.RawMessage)) error {
	c.dispatch = dispatch
	c.s.AddHandler(c.onMessageCreate)
	c.s.AddHandler(c.onMessageUpdate)
	if err := c.s.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	log.Printf("✅ Conectado como %s (%s)", c.s.State.User.Username, c.s.State.User.ID)
	return nil
}

func (c *Client) Close() error { return c.s.Close() }

// SelfName es el username propio; el parser lo usa para distinguir
// "ganamos" de "ganó otro" en los anuncios de claim.
func (c *Client) SelfName() string {
	if c.s.State != nil && c.s.State.User != nil {
		return c.s.State.User.Username
	}
	return ""
}

func (c *Client) SelfID() string {
	if c.s.State != nil && c.s.State.User != nil {
		return c.s.State.User.ID
	}
	return ""
}

func (c *Client) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil {
		return
	}
	c.dispatch(c.toRaw(m.Message))
}

// El juego edita el mensaje del drop cuando lo reclaman; el update trae
// el "Belongs to" que el create no tenía.
func (c *Client) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil || m.Author == nil {
		return
	}
	c.dispatch(c.toRaw(m.Message))
}

func (c *Client) toRaw(m *discordgo.Message) domain.RawMessage {
	raw := domain.RawMessage{
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
	if m.Author != nil {
		raw.AuthorID = m.Author.ID
		raw.AuthorName = m.Author.Username
		raw.FromGame = m.Author.ID == c.gameBotID ||
			strings.Contains(strings.ToLower(m.Author.Username), "mudae")
	}
	if ref := m.MessageReference; ref != nil {
		raw.ReplyToID = ref.MessageID
	}
	if len(m.Embeds) > 0 {
		e := m.Embeds[0]
		re := &domain.RawEmbed{
			Title:       e.Title,
			Description: e.Description,
			Color:       e.Color,
		}
		if e.Author != nil {
			re.AuthorName = e.Author.Name
		}
		if e.Footer != nil {
			re.FooterText = e.Footer.Text
		}
		if e.Image != nil {
			re.ImageURL = e.Image.URL
		}
		raw.Embed = re
	}
	for _, row := range m.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range ar.Components {
			btn, ok := comp.(*discordgo.Button)
			if !ok {
				continue
			}
			rb := domain.RawButton{CustomID: btn.CustomID, Label: btn.Label}
			if btn.Emoji != nil {
				rb.Emoji = btn.Emoji.Name
			}
			raw.Buttons = append(raw.Buttons, rb)
		}
	}
	return raw
}

// SendCommand manda un comando de texto al canal, respetando el espaciado
// por canal del limiter.
func (c *Client) SendCommand(ctx context.Context, channelID, command string) error {
	if err := c.waitTurn(ctx, channelID); err != nil {
		return err
	}
	if _, err := c.s.ChannelMessageSend(channelID, command, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send %q en canal %s: %w", command, channelID, err)
	}
	return nil
}

// SendClaimAction intenta el click de componente; si el endpoint lo
// rechaza cae a la reacción clásica con el emoji de claim.
func (c *Client) SendClaimAction(ctx context.Context, channelID, messageID string, act domain.ClaimAction) error {
	if err := c.waitTurn(ctx, channelID); err != nil {
		return err
	}

	if act.CustomID != "" {
		if err := c.clickComponent(ctx, channelID, messageID, act.CustomID); err == nil {
			return nil
		} else {
			log.Printf("click de componente falló (msg=%s), pruebo con reacción: %v", messageID, err)
		}
	}

	emoji := act.Emoji
	if emoji == "" {
		emoji = "💖"
	}
	if err := c.s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("react %s en msg %s: %w", emoji, messageID, err)
	}
	return nil
}

func (c *Client) clickComponent(ctx context.Context, channelID, messageID, customID string) error {
	payload := map[string]any{
		"type":           3, // MESSAGE_COMPONENT
		"channel_id":     channelID,
		"message_id":     messageID,
		"application_id": c.gameBotID,
		"session_id":     c.s.State.SessionID,
		"data": map[string]any{
			"component_type": 2, // BUTTON
			"custom_id":      customID,
		},
	}
	endpoint := discordgo.EndpointAPI + "interactions"
	_, err := c.s.RequestWithBucketID("POST", endpoint, payload, endpoint, discordgo.WithContext(ctx))
	return err
}

func (c *Client) waitTurn(ctx context.Context, channelID string) error {
	wait := c.limiter.Reserve(channelID)
	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
