package presenters

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/music"
	"github.com/glizzus/encore/internal/repository"
	"github.com/glizzus/encore/internal/transcode"
)

const ComponentIDJobSelect = "job_select_menu"

var jobSelectMinValues = 1

func bytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// DeliveryContent is the text posted alongside a processed media link.
func DeliveryContent(d *media.Delivery, linkExpiresAt time.Time) string {
	if d.URL != "" {
		return fmt.Sprintf("Too large to upload (%s). Download it here, the link expires %s:\n%s",
			bytes(d.Size), humanize.Time(linkExpiresAt), d.URL)
	}
	switch d.Outcome {
	case transcode.OutcomeFit, transcode.OutcomeDegraded:
		return fmt.Sprintf("Compressed to %s.", bytes(d.Size))
	default:
		return ""
	}
}

// DeliveryFile names an attachment after the platform it came from.
func DeliveryFile(d *media.Delivery, contents *discordgo.File) *discordgo.File {
	contents.Name = d.Link.Platform.String() + ".mp4"
	contents.ContentType = "video/mp4"
	return contents
}

func BuildMediaInfoEmbed(name string, probe *transcode.ProbeResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: truncate(name, 256),
		Color: colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Container", Value: orUnknown(probe.FormatName), Inline: true},
			{Name: "Duration", Value: music.FormatDuration(int(probe.Duration + 0.5)), Inline: true},
			{Name: "Size", Value: bytes(probe.Size), Inline: true},
		},
	}
	if probe.HasVideo {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Resolution", Value: fmt.Sprintf("%dx%d", probe.Width, probe.Height), Inline: true,
		})
	}
	if probe.Duration > 0 && probe.Size > 0 {
		bitrate := int64(float64(probe.Size*8) / probe.Duration)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Bitrate", Value: humanize.SI(float64(bitrate), "bps"), Inline: true,
		})
	}

	var streams []string
	for _, s := range probe.Streams {
		streams = append(streams, fmt.Sprintf("#%d %s (%s)", s.Index, s.CodecType, orUnknown(s.CodecName)))
	}
	if len(streams) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Streams", Value: truncate(strings.Join(streams, "\n"), 1024),
		})
	}
	return embed
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

func jobLabel(job repository.JobSummary) string {
	return truncate(fmt.Sprintf("%s · %s → %s (%s)",
		job.StartedAt.UTC().Format("Jan 2 15:04"),
		bytes(job.OriginalSize),
		bytes(job.OutputSize),
		job.Outcome,
	), maxLabelLength)
}

// BuildJobHistoryResponse lists recent transcode jobs in a select menu;
// picking one shows its attempts.
func BuildJobHistoryResponse(jobs []repository.JobSummary, instanceID string) *discordgo.InteractionResponse {
	if len(jobs) == 0 {
		return Message("No transcode jobs recorded")
	}

	var options []discordgo.SelectMenuOption
	for i, job := range jobs {
		if i == maxMenuOptions {
			break
		}
		options = append(options, discordgo.SelectMenuOption{
			Label: jobLabel(job),
			Value: job.ID,
		})
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "**Recent transcode jobs** _(select for attempts)_",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    ComponentIDJobSelect + ":" + instanceID,
							Placeholder: "Select a job",
							MinValues:   &jobSelectMinValues,
							MaxValues:   1,
							Options:     options,
						},
					},
				},
			},
		},
	}
}

func BuildJobAttemptsResponse(jobID string, attempts []transcode.Attempt) *discordgo.InteractionResponse {
	var b strings.Builder
	fmt.Fprintf(&b, "**Job** `%s`\n", jobID)
	if len(attempts) == 0 {
		b.WriteString("No encode attempts; the input was returned as is.")
	} else {
		b.WriteString("```\n")
		fmt.Fprintf(&b, "%-4s %-15s %-10s %-10s %-10s %s\n", "rung", "codecs", "video", "audio", "size", "result")
		for _, a := range attempts {
			result := "over"
			switch {
			case a.Err != "":
				result = "failed"
			case a.Success:
				result = "fit"
			}
			fmt.Fprintf(&b, "%-4d %-15s %-10s %-10s %-10s %s\n",
				a.Rung,
				a.Codecs.String(),
				humanize.SI(float64(a.VideoBitrate), "bps"),
				humanize.SI(float64(a.AudioBitrate), "bps"),
				bytes(a.ResultSize),
				result,
			)
		}
		b.WriteString("```")
	}

	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    truncate(b.String(), 2000),
			Components: []discordgo.MessageComponent{},
		},
	}
}
