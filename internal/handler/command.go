package handler

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

var (
	volumeMin   = 0.0
	positionMin = 1.0
	dmAllowed   = false
)

// Commands is a list of all the commands the bot can handle.
// This is used to register the commands with Discord.
var Commands = []*discordgo.ApplicationCommand{
	{Name: "ping", Description: "Check that the bot is alive"},
	{
		Name:         "play",
		Description:  "Play a song or playlist from a URL or search",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "query",
				Type:        discordgo.ApplicationCommandOptionString,
				Description: "A URL, playlist URL or search terms.",
				Required:    true,
			},
		},
	},
	{Name: "skip", Description: "Skip the current track", DMPermission: &dmAllowed},
	{Name: "stop", Description: "Stop playback and clear the queue", DMPermission: &dmAllowed},
	{Name: "pause", Description: "Pause the current track", DMPermission: &dmAllowed},
	{Name: "resume", Description: "Resume the paused track", DMPermission: &dmAllowed},
	{
		Name:         "volume",
		Description:  "Set the playback volume",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "level",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "Volume from 0 to 100. Applies from the next track.",
				Required:    true,
				MinValue:    &volumeMin,
				MaxValue:    100,
			},
		},
	},
	{Name: "repeat", Description: "Toggle repeating the current track", DMPermission: &dmAllowed},
	{Name: "queue", Description: "Show the queue", DMPermission: &dmAllowed},
	{Name: "nowplaying", Description: "Show the current track", DMPermission: &dmAllowed},
	{Name: "history", Description: "Show recently played tracks", DMPermission: &dmAllowed},
	{Name: "shuffle", Description: "Shuffle the queue", DMPermission: &dmAllowed},
	{Name: "clear", Description: "Clear the queue without stopping the current track", DMPermission: &dmAllowed},
	{
		Name:         "remove",
		Description:  "Remove a track from the queue",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "position",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "Position in the queue, starting at 1.",
				Required:    true,
				MinValue:    &positionMin,
			},
		},
	},
	{
		Name:         "move",
		Description:  "Move a track to a different position in the queue",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "from",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "Current position, starting at 1.",
				Required:    true,
				MinValue:    &positionMin,
			},
			{
				Name:        "to",
				Type:        discordgo.ApplicationCommandOptionInteger,
				Description: "New position, starting at 1.",
				Required:    true,
				MinValue:    &positionMin,
			},
		},
	},
	{Name: "status", Description: "Show the player and connection status", DMPermission: &dmAllowed},
	{Name: "disconnect", Description: "Leave the voice channel and clear the queue", DMPermission: &dmAllowed},
	{
		Name:         "reconnect",
		Description:  "Reconnect to your voice channel",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "force",
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Description: "Tear the connection down completely before reconnecting.",
				Required:    false,
			},
		},
	},
	{
		Name:         "convert",
		Description:  "Compress a video so it fits under the upload limit",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "video",
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Description: "The video to compress.",
				Required:    true,
			},
		},
	},
	{
		Name:         "mediainfo",
		Description:  "Show the container and streams of a media file",
		DMPermission: &dmAllowed,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "file",
				Type:        discordgo.ApplicationCommandOptionAttachment,
				Description: "The file to inspect.",
				Required:    true,
			},
		},
	},
	{Name: "compressions", Description: "Show recent transcode jobs", DMPermission: &dmAllowed},
}

// EstablishCommands registers Commands for one guild, or globally when
// guildID is empty.
func EstablishCommands(s *discordgo.Session, guildID string) error {
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, Commands)
	if err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}
	return nil
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		m[option.Name] = option
	}
	return m
}
