package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/glizzus/encore/internal/media"
	"github.com/glizzus/encore/internal/presenters"
	"github.com/glizzus/encore/internal/transcode"
	"github.com/glizzus/encore/internal/worker"
)

type MediaProcessor interface {
	Process(ctx context.Context, link media.Link) (*media.Delivery, error)
}

type Prober interface {
	Probe(ctx context.Context, path string) (*transcode.ProbeResult, error)
}

// MediaJobHandler runs media jobs off the worker pool and posts the result
// back to Discord.
type MediaJobHandler struct {
	Session DiscordSession
	// Links handles links found in chat; Attachments handles files passed
	// to /convert.
	Links       MediaProcessor
	Attachments MediaProcessor
	// Fetch and Prober serve /mediainfo.
	Fetch      media.Downloader
	Prober     Prober
	Scratch    media.Scratch
	LinkExpiry time.Duration
	Logger     *slog.Logger
}

var _ worker.JobHandler = (*MediaJobHandler)(nil)

func (h *MediaJobHandler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *MediaJobHandler) HandleJob(ctx context.Context, job worker.Job) error {
	switch job.Kind {
	case worker.JobInspect:
		return h.inspect(ctx, job)
	default:
		return h.deliver(ctx, job)
	}
}

func (h *MediaJobHandler) deliver(ctx context.Context, job worker.Job) error {
	processor := h.Links
	if job.Link.Platform == media.PlatformAttachment {
		processor = h.Attachments
	}

	d, err := processor.Process(ctx, job.Link)
	if err != nil {
		// Plenty of posts behind a link carry no video at all.
		if job.Interaction != nil || !errors.Is(err, media.ErrNoMedia) {
			h.reply(job, &discordgo.MessageSend{Content: describeMediaError(err)})
		}
		return err
	}
	defer func() {
		if err := d.Cleanup(); err != nil {
			h.logger().Warn("Failed to clean up delivery", "jobID", job.ID, "error", err)
		}
	}()

	msg := &discordgo.MessageSend{
		Content: presenters.DeliveryContent(d, time.Now().Add(h.LinkExpiry)),
	}
	if d.Path != "" {
		f, err := os.Open(d.Path)
		if err != nil {
			return fmt.Errorf("failed to open delivery: %w", err)
		}
		defer f.Close()
		msg.Files = []*discordgo.File{presenters.DeliveryFile(d, &discordgo.File{Reader: f})}
	}
	return h.reply(job, msg)
}

func (h *MediaJobHandler) inspect(ctx context.Context, job worker.Job) error {
	name := fileName(job.Link.URL)
	dest, err := h.Scratch.Path("inspect", filepath.Ext(name))
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger().Warn("Failed to remove inspected file", "path", dest, "error", err)
		}
	}()

	if err := h.Fetch.Download(ctx, job.Link.URL, dest); err != nil {
		h.reply(job, &discordgo.MessageSend{Content: describeMediaError(err)})
		return err
	}
	probe, err := h.Prober.Probe(ctx, dest)
	if err != nil {
		h.reply(job, &discordgo.MessageSend{Content: "Couldn't read that file as media."})
		return err
	}

	return h.reply(job, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{presenters.BuildMediaInfoEmbed(name, probe)},
	})
}

// fileName is the last path element of rawURL, ignoring any query string.
func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "file"
	}
	return path.Base(u.Path)
}

// reply answers the job's interaction, or replies to the message the link
// was posted in.
func (h *MediaJobHandler) reply(job worker.Job, msg *discordgo.MessageSend) error {
	var err error
	if job.Interaction != nil {
		edit := &discordgo.WebhookEdit{Content: &msg.Content, Files: msg.Files}
		if len(msg.Embeds) > 0 {
			edit.Embeds = &msg.Embeds
		}
		_, err = h.Session.InteractionResponseEdit(job.Interaction, edit)
	} else {
		msg.Reference = &discordgo.MessageReference{
			MessageID: job.MessageID,
			ChannelID: job.ChannelID,
			GuildID:   job.GuildID,
		}
		_, err = h.Session.ChannelMessageSendComplex(job.ChannelID, msg)
	}
	if err != nil {
		h.logger().Warn("Failed to post media result", "jobID", job.ID, "error", err)
	}
	return err
}
