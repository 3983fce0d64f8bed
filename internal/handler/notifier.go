package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/player"
	"github.com/glizzus/encore/internal/presenters"
)

// ChannelNotifier posts playback events to the text channel each guild last
// used a music command in.
type ChannelNotifier struct {
	session DiscordSession
	logger  *slog.Logger

	mu       sync.RWMutex
	channels map[string]string
}

var _ player.Listener = (*ChannelNotifier)(nil)

func NewChannelNotifier(session DiscordSession, logger *slog.Logger) *ChannelNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelNotifier{
		session:  session,
		logger:   logger,
		channels: make(map[string]string),
	}
}

// Bind sets where guildID's events are posted.
func (n *ChannelNotifier) Bind(guildID, channelID string) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels[guildID] = channelID
}

func (n *ChannelNotifier) channel(guildID string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	id, ok := n.channels[guildID]
	return id, ok
}

func (n *ChannelNotifier) Notify(_ context.Context, event player.Event) {
	msg := eventMessage(event)
	if msg == nil {
		return
	}
	n.send(event.GuildID, msg)
}

// IdleDisconnected reports that guildID's session left voice after sitting
// idle.
func (n *ChannelNotifier) IdleDisconnected(guildID string) {
	n.send(guildID, &discordgo.MessageSend{Content: "Left the voice channel after being idle."})
}

func (n *ChannelNotifier) send(guildID string, msg *discordgo.MessageSend) {
	channelID, ok := n.channel(guildID)
	if !ok {
		return
	}
	if _, err := n.session.ChannelMessageSendComplex(channelID, msg); err != nil {
		n.logger.Warn("Failed to post playback update", "guildID", guildID, "channelID", channelID, "error", err)
	}
}

func eventMessage(event player.Event) *discordgo.MessageSend {
	switch event.Kind {
	case player.EventNowPlaying:
		embed := presenters.NowPlayingEmbed(event.Item)
		embed.Author = &discordgo.MessageEmbedAuthor{Name: "Now Playing"}
		return &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	case player.EventQueueEmpty:
		return &discordgo.MessageSend{Content: "The queue is empty."}
	case player.EventSkipped:
		return &discordgo.MessageSend{Content: fmt.Sprintf("Skipped **%s**: it could not be loaded.", event.Item.Title)}
	case player.EventPlaybackFailed:
		return &discordgo.MessageSend{Content: fmt.Sprintf("Playback of **%s** stopped early.", event.Item.Title)}
	default:
		return nil
	}
}
