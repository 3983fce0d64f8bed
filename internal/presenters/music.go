package presenters

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/voice"
)

const (
	ComponentIDQueueRemove = "queue_remove_menu"

	colorPlaying = 0xFF0000
	colorInfo    = 0x5865F2

	// Discord caps select menus at 25 options and labels at 100 characters.
	maxMenuOptions = 25
	maxLabelLength = 100

	queuePreviewLength = 10
)

var queueRemoveMinValues = 1

// Message is a plain reply visible to the whole channel.
func Message(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}
}

// EphemeralMessage is a reply only the invoking user sees.
func EphemeralMessage(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// Deferred acknowledges a command whose answer arrives later through an
// interaction edit.
func Deferred() *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
}

func EditContent(content string) *discordgo.WebhookEdit {
	return &discordgo.WebhookEdit{Content: &content}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

func percent(v float64) string {
	return strconv.Itoa(int(v*100+0.5)) + "%"
}

// NowPlayingEmbed describes a single track.
func NowPlayingEmbed(item *music.PlayableItem) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: item.Title,
		URL:   item.PageURL,
		Color: colorPlaying,
	}
	if item.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: item.ThumbnailURL}
	}
	if item.Uploader != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Uploader", Value: item.Uploader, Inline: true})
	}
	if item.DurationSeconds > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Duration", Value: music.FormatDuration(item.DurationSeconds), Inline: true})
	}
	if item.RequestedBy != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Requested by", Value: "<@" + item.RequestedBy + ">", Inline: true})
	}
	return embed
}

func BuildNowPlayingResponse(status voice.Status) *discordgo.InteractionResponse {
	if status.CurrentItem == nil {
		return Message("Nothing is playing.")
	}

	embed := NowPlayingEmbed(status.CurrentItem)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: "Now Playing"}
	if status.Paused {
		embed.Author.Name = "Paused"
	}
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Volume %s · Repeat %s", percent(status.Volume), onOff(status.RepeatMode)),
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}
}

func BuildStatusResponse(status voice.Status, info music.QueueInfo) *discordgo.InteractionResponse {
	channel := "None"
	if status.ChannelName != "" {
		channel = status.ChannelName
	} else if status.ChannelID != "" {
		channel = "<#" + status.ChannelID + ">"
	}

	playing := "Nothing"
	if status.CurrentItem != nil {
		playing = status.CurrentItem.Title
		if status.Paused {
			playing += " (paused)"
		}
	}

	embed := &discordgo.MessageEmbed{
		Title: "Player Status",
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Connection", Value: status.State.String(), Inline: true},
			{Name: "Channel", Value: channel, Inline: true},
			{Name: "Volume", Value: percent(status.Volume), Inline: true},
			{Name: "Repeat", Value: onOff(status.RepeatMode), Inline: true},
			{Name: "Queue", Value: fmt.Sprintf("%d/%d (%s)", info.Size, info.Capacity, music.FormatDuration(info.TotalDuration)), Inline: true},
			{Name: "Playing", Value: truncate(playing, 1024)},
		},
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}
}

func queueLine(position int, item music.PlayableItem) string {
	return fmt.Sprintf("`%d.` %s [%s]", position, item.Title, music.FormatDuration(item.DurationSeconds))
}

func buildQueueRemoveMenu(items []music.PlayableItem, instanceID string) discordgo.ActionsRow {
	var options []discordgo.SelectMenuOption
	for i, item := range items {
		if i == maxMenuOptions {
			break
		}
		options = append(options, discordgo.SelectMenuOption{
			Label: truncate(fmt.Sprintf("%d. %s", i+1, item.Title), maxLabelLength),
			Value: strconv.Itoa(i),
		})
	}

	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    ComponentIDQueueRemove + ":" + instanceID,
				Placeholder: "Remove a track",
				MinValues:   &queueRemoveMinValues,
				MaxValues:   1,
				Options:     options,
			},
		},
	}
}

// BuildQueueResponse lists the current track and what is queued after it,
// with a menu for removing queued tracks.
func BuildQueueResponse(current *music.PlayableItem, items []music.PlayableItem, info music.QueueInfo, instanceID string) *discordgo.InteractionResponse {
	if current == nil && len(items) == 0 {
		return Message("The queue is empty.")
	}

	var b strings.Builder
	if current != nil {
		fmt.Fprintf(&b, "**Now playing:** %s\n", current.Title)
	}
	if len(items) > 0 {
		b.WriteString("\n**Up next**\n")
		for i, item := range items {
			if i == queuePreviewLength {
				fmt.Fprintf(&b, "_…and %d more_\n", len(items)-queuePreviewLength)
				break
			}
			b.WriteString(queueLine(i+1, item))
			b.WriteByte('\n')
		}
	}
	fmt.Fprintf(&b, "\n%d/%d tracks · %s total", info.Size, info.Capacity, music.FormatDuration(info.TotalDuration))

	data := &discordgo.InteractionResponseData{
		Content: b.String(),
	}
	if len(items) > 0 {
		data.Components = []discordgo.MessageComponent{buildQueueRemoveMenu(items, instanceID)}
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

// BuildRemovedResponse replaces the queue message once a track was picked
// from the remove menu.
func BuildRemovedResponse(item music.PlayableItem, removed bool) *discordgo.InteractionResponse {
	content := "That track is no longer in the queue."
	if removed {
		content = fmt.Sprintf("Removed **%s** from the queue.", item.Title)
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	}
}

func BuildHistoryResponse(history []music.PlayableItem) *discordgo.InteractionResponse {
	if len(history) == 0 {
		return Message("Nothing has been played yet.")
	}
	var b strings.Builder
	b.WriteString("**Recently played**\n")
	for i, item := range history {
		b.WriteString(queueLine(i+1, item))
		b.WriteByte('\n')
	}
	return Message(strings.TrimRight(b.String(), "\n"))
}

// BuildEnqueuedEdit summarises a play request once resolution finishes.
// failed counts items that resolved with an error; full reports that the
// queue ran out of room.
func BuildEnqueuedEdit(added []music.PlayableItem, failed int, full bool) *discordgo.WebhookEdit {
	var notes []string
	if failed > 0 {
		notes = append(notes, fmt.Sprintf("%d could not be loaded", failed))
	}
	if full {
		notes = append(notes, "the queue is full")
	}
	suffix := ""
	if len(notes) > 0 {
		suffix = " (" + strings.Join(notes, ", ") + ")"
	}

	switch len(added) {
	case 0:
		return EditContent("Nothing was added to the queue" + suffix + ".")
	case 1:
		embed := NowPlayingEmbed(&added[0])
		embed.Author = &discordgo.MessageEmbedAuthor{Name: "Added to queue"}
		content := strings.TrimPrefix(suffix, " ")
		return &discordgo.WebhookEdit{
			Content: &content,
			Embeds:  &[]*discordgo.MessageEmbed{embed},
		}
	default:
		return EditContent(fmt.Sprintf("Added %d tracks to the queue%s.", len(added), suffix))
	}
}
