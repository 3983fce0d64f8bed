package handler

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// DiscordSession is the part of *discordgo.Session the handlers talk to.
type DiscordSession interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type InteractionCreateHandler = func(*discordgo.Session, *discordgo.InteractionCreate)
type MessageCreateHandler = func(*discordgo.Session, *discordgo.MessageCreate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID, "guilds", len(r.Guilds))
}

type Handlers struct {
	Ready             ReadyHandler
	InteractionCreate InteractionCreateHandler
	// MessageCreate is optional.
	MessageCreate MessageCreateHandler
}

// Attach registers the handlers on s.
func (h Handlers) Attach(s *discordgo.Session) {
	if h.Ready != nil {
		s.AddHandler(h.Ready)
	}
	if h.InteractionCreate != nil {
		s.AddHandler(h.InteractionCreate)
	}
	if h.MessageCreate != nil {
		s.AddHandler(h.MessageCreate)
	}
}

// NewSession creates a bot session with the intents needed for voice and
// for reading media links out of chat.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	return s, nil
}
