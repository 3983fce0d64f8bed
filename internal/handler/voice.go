package handler

import (
	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/util"
	"github.com/glizzus/encore/internal/voice"
)

// VoiceLocator finds the voice channel a member is sitting in.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (voice.Channel, bool)
}

// StateVoiceLocator reads voice states from discordgo's state cache.
type StateVoiceLocator struct {
	State *discordgo.State
}

var _ VoiceLocator = (*StateVoiceLocator)(nil)

func (l *StateVoiceLocator) UserVoiceChannel(guildID, userID string) (voice.Channel, bool) {
	guild, err := l.State.Guild(guildID)
	if err != nil {
		return voice.Channel{}, false
	}

	l.State.RLock()
	vs, ok := util.FindFirst(guild.VoiceStates, func(vs *discordgo.VoiceState) bool {
		return vs.UserID == userID && vs.ChannelID != ""
	})
	l.State.RUnlock()
	if !ok {
		return voice.Channel{}, false
	}

	ch := voice.Channel{ID: vs.ChannelID}
	if channel, err := l.State.Channel(vs.ChannelID); err == nil {
		ch.Name = channel.Name
	}
	return ch, true
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
